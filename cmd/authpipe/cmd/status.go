package cmd

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display authentication status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		pterm.DefaultSection.Println("Authentication Status")
		status := client.Status()
		if !status.IsAuthenticated() {
			pterm.Info.Println("Not logged in")
			if client.Tokens().RefreshToken != "" {
				pterm.Info.Println("A refresh token is stored; the next request will try to renew the session")
			}
			return nil
		}

		p := status.Principal
		data := pterm.TableData{
			{"FIELD", "VALUE"},
			{"Subject", p.Subject},
			{"Expires", p.ExpiresAt.Local().Format(time.RFC1123)},
			{"Remaining", p.ExpiresIn(time.Now()).Round(time.Second).String()},
		}
		if !p.IssuedAt.IsZero() {
			data = append(data, []string{"Issued", p.IssuedAt.Local().Format(time.RFC1123)})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

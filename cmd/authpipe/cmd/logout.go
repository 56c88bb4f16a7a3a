package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored credentials and notify the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}

		if err := client.Logout(cmd.Context()); err != nil {
			pterm.Warning.Printf("Credential store not fully cleared: %v\n", err)
		}
		// Close waits for the server notification.
		if err := client.Close(); err != nil {
			return err
		}
		pterm.Success.Println("Logged out")
		return nil
	},
}

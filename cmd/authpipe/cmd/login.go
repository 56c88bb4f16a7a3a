package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/MrEthical07/authpipe"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	loginName     string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the credential pair",
	Long: `Posts the login and password to the login endpoint and stores the returned
access and refresh tokens in the configured credential store.

The password is read from --password, then AUTHPIPE_PASSWORD, then an
interactive prompt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := loginPassword
		if password == "" {
			password = os.Getenv("AUTHPIPE_PASSWORD")
		}
		if password == "" {
			if nonInteractive {
				return errors.New("no password given and prompts are disabled")
			}
			var err error
			password, err = pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
		}

		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		res, err := client.Login(cmd.Context(), loginName, password)
		if errors.Is(err, authpipe.ErrLoginRejected) {
			return errors.New("login rejected: check the login and password")
		}
		if err != nil {
			return err
		}

		pterm.Success.Println("Login successful")
		if res.Status.Principal != nil {
			pterm.Info.Printf("Authenticated as: %s\n", res.Status.Principal.Subject)
		}
		if res.PersistErr != nil {
			pterm.Warning.Printf("Credentials could not be saved: %v\n", res.PersistErr)
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginName, "login", "l", "", "account login")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password (prefer AUTHPIPE_PASSWORD)")
	_ = loginCmd.MarkFlagRequired("login")
}

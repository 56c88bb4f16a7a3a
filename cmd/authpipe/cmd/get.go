package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var rawOutput bool

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Send an authenticated GET and print the body",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		resp, err := client.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if !rawOutput && json.Valid(body) {
			var out bytes.Buffer
			if err := json.Indent(&out, body, "", "  "); err == nil {
				body = out.Bytes()
			}
		}
		_, err = fmt.Fprintln(os.Stdout, string(body))
		return err
	},
}

func init() {
	getCmd.Flags().BoolVar(&rawOutput, "raw", false, "print the body unformatted")
}

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/device-next/devicecheck/commands"
)

var suiteCmd = &cobra.Command{
	Use:   "suite",
	Short: "Run the full diagnostic sequence",
	Long:  `Run every diagnostic test in the canonical order and print a summary. Tests blocked on missing devices or permission are reported as skipped.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := commands.SuiteRequest{
			Duration:  time.Duration(duration) * time.Millisecond,
			AutoGrant: autoGrant,
		}
		response := commands.SuiteCommand(cmd.Context(), req)
		printJson(response)
		if response.Status == "error" {
			return fmt.Errorf("%s", response.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(suiteCmd)

	suiteCmd.Flags().IntVar(&duration, "duration", 0, "how long to hold each session open, in milliseconds")
	suiteCmd.Flags().BoolVar(&autoGrant, "grant", true, "request permissions automatically when required")
}

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/device-next/devicecheck/commands"
)

var testCmd = &cobra.Command{
	Use:   "test <name>",
	Short: "Run a single diagnostic test",
	Long:  `Run one diagnostic test (camera, microphone, speaker, keyboard, mouse, touch, battery) through its full lifecycle and print the recorded result.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := commands.TestRunRequest{
			Test:      args[0],
			DeviceID:  deviceID,
			Duration:  time.Duration(duration) * time.Millisecond,
			AutoGrant: autoGrant,
		}
		response := commands.TestRunCommand(cmd.Context(), req)
		printJson(response)
		if response.Status == "error" {
			return fmt.Errorf("%s", response.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(testCmd)

	testCmd.Flags().StringVar(&deviceID, "device", "", "device id to test (default: first enumerated)")
	testCmd.Flags().IntVar(&duration, "duration", 0, "how long to hold the session open, in milliseconds")
	testCmd.Flags().BoolVar(&autoGrant, "grant", true, "request permission automatically when required")
}

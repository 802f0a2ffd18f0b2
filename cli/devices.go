package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/device-next/devicecheck/commands"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List discovered devices",
	Long:  `List devices known to the platform, optionally filtered by kind (videoinput, audioinput, audiooutput, other).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		response := commands.DevicesCommand(cmd.Context(), deviceKind)
		printJson(response)
		if response.Status == "error" {
			return fmt.Errorf("%s", response.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)

	devicesCmd.Flags().StringVar(&deviceKind, "kind", "", "filter by device kind (videoinput, audioinput, audiooutput, other)")
}

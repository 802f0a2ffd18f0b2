package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/device-next/devicecheck/commands"
)

var permissionsCmd = &cobra.Command{
	Use:   "permissions",
	Short: "Permission management commands",
	Long:  `Commands for checking and requesting capability grants (camera, microphone, ...).`,
}

var permissionsCheckCmd = &cobra.Command{
	Use:   "check <category>",
	Short: "Check grant status without prompting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		response := commands.PermissionCheckCommand(cmd.Context(), args[0])
		printJson(response)
		if response.Status == "error" {
			return fmt.Errorf("%s", response.Error)
		}
		return nil
	},
}

var permissionsRequestCmd = &cobra.Command{
	Use:   "request <category>",
	Short: "Perform a live grant request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		response := commands.PermissionRequestCommand(cmd.Context(), args[0])
		printJson(response)
		if response.Status == "error" {
			return fmt.Errorf("%s", response.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(permissionsCmd)
	permissionsCmd.AddCommand(permissionsCheckCmd)
	permissionsCmd.AddCommand(permissionsRequestCmd)
}

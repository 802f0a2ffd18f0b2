package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"
)

const keyringService = "devicecheck"
const keyringUser = "server-token"

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Server token management",
	Long:  `Commands for managing the bearer token used by 'server start --auth'. The token is stored in the OS keyring.`,
}

var authGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate and store a new server token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tokenBytes := make([]byte, 24)
		if _, err := rand.Read(tokenBytes); err != nil {
			return fmt.Errorf("failed to generate token: %w", err)
		}
		token := hex.EncodeToString(tokenBytes)

		if err := keyring.Set(keyringService, keyringUser, token); err != nil {
			return fmt.Errorf("failed to store token in keyring: %w", err)
		}

		fmt.Println(token)
		return nil
	},
}

var authShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored server token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := loadAuthToken()
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

var authClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored server token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := keyring.Delete(keyringService, keyringUser); err != nil {
			return fmt.Errorf("failed to remove token: %w", err)
		}
		fmt.Println("Token removed")
		return nil
	},
}

func loadAuthToken() (string, error) {
	token, err := keyring.Get(keyringService, keyringUser)
	if err != nil {
		return "", fmt.Errorf("no token stored (run 'devicecheck auth generate'): %w", err)
	}
	return token, nil
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authGenerateCmd)
	authCmd.AddCommand(authShowCmd)
	authCmd.AddCommand(authClearCmd)
}

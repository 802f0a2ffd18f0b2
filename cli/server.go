package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/device-next/devicecheck/daemon"
	"github.com/device-next/devicecheck/server"
)

const defaultServerAddress = "localhost:12100"

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Server management commands",
	Long:  `Commands for managing the devicecheck JSON-RPC server.`,
}

var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the devicecheck server",
	Long:  `Starts the JSON-RPC server exposing the diagnostic harness, with a WebSocket event stream on /events.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		listenAddr := cmd.Flag("listen").Value.String()
		if listenAddr == "" {
			listenAddr = loadedConfig.Listen
		}
		if listenAddr == "" {
			listenAddr = defaultServerAddress
		}

		// GetBool cannot fail for defined flags
		enableCORS, _ := cmd.Flags().GetBool("cors")
		isDaemon, _ := cmd.Flags().GetBool("daemon")
		requireAuth, _ := cmd.Flags().GetBool("auth")

		if !enableCORS {
			enableCORS = loadedConfig.CORS
		}

		var token string
		if requireAuth {
			var err error
			token, err = loadAuthToken()
			if err != nil {
				return fmt.Errorf("--auth requires a stored token: %w", err)
			}
		}

		if isDaemon && !daemon.IsChild() {
			_, err := daemon.Daemonize()
			if err != nil {
				return fmt.Errorf("failed to start daemon: %w", err)
			}

			fmt.Printf("Server daemon spawned, attempting to listen on %s\n", listenAddr)
			return nil
		}

		return server.StartServer(server.Options{
			Addr:       listenAddr,
			EnableCORS: enableCORS,
			AuthToken:  token,
		})
	},
}

var serverKillCmd = &cobra.Command{
	Use:   "kill",
	Short: "Stop the daemonized devicecheck server",
	Long:  `Connects to the server and sends a shutdown command via JSON-RPC.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// GetString cannot fail for defined flags
		addr, _ := cmd.Flags().GetString("listen")
		if addr == "" {
			addr = defaultServerAddress
		}

		err := daemon.KillServer(addr)
		if err != nil {
			return err
		}

		fmt.Println("Server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.AddCommand(serverStartCmd)
	serverCmd.AddCommand(serverKillCmd)

	serverStartCmd.Flags().String("listen", "", "address to listen on (host:port or port)")
	serverStartCmd.Flags().Bool("cors", false, "allow cross-origin requests")
	serverStartCmd.Flags().Bool("daemon", false, "run the server in the background")
	serverStartCmd.Flags().Bool("auth", false, "require the stored bearer token on every request")

	serverKillCmd.Flags().String("listen", "", "address of the server to stop")
}

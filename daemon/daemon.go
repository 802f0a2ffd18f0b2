// Package daemon runs the devicecheck server as a detached background
// process and implements the client side of its shutdown RPC.
package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	godaemon "github.com/sevlyar/go-daemon"

	"github.com/device-next/devicecheck/server"
)

// DaemonEnvVar marks the reborn child so the command layer can tell the
// two halves of a --daemon start apart.
const DaemonEnvVar = "DEVICECHECK_DAEMON_CHILD"

const killTimeout = 10 * time.Second

// Daemonize forks the current invocation into the background. In the
// parent the returned process is the detached child; in the child it is
// nil and the caller proceeds to run the server. The child skips PID and
// log files since the server owns its logging and shutdown RPC.
func Daemonize() (*os.Process, error) {
	ctx := &godaemon.Context{
		WorkDir: "/",
		Umask:   027,
		Args:    os.Args,
		Env:     append(os.Environ(), DaemonEnvVar+"=1"),
	}

	child, err := ctx.Reborn()
	if err != nil {
		return nil, fmt.Errorf("failed to daemonize: %w", err)
	}
	return child, nil
}

// IsChild reports whether this process is the detached server half.
func IsChild() bool {
	return os.Getenv(DaemonEnvVar) == "1"
}

// KillServer asks the server listening on addr to shut down through its
// own server.shutdown method. addr takes the same forms as the serve
// flag: host:port or a bare port.
func KillServer(addr string) error {
	normalized, err := server.NormalizeAddr(addr)
	if err != nil {
		return err
	}
	if strings.HasPrefix(normalized, ":") {
		normalized = "localhost" + normalized
	}
	endpoint := "http://" + normalized + "/rpc"

	body, err := json.Marshal(server.JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  "server.shutdown",
		ID:      1,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	client := &http.Client{Timeout: killTimeout}
	resp, err := client.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		if strings.Contains(err.Error(), "connection refused") {
			return fmt.Errorf("server is not running on %s", normalized)
		}
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned error: %s", resp.Status)
	}
	return nil
}

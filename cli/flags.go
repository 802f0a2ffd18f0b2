package cli

import "github.com/device-next/devicecheck/utils"

var (
	verbose    bool
	configPath string

	// loadedConfig holds the parsed config file for commands that need
	// server defaults.
	loadedConfig utils.Config

	deviceKind string
	deviceID   string
	duration   int
	autoGrant  bool
)

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/ini.v1"
)

// Config holds the tunables read from the devicecheck ini file. Zero
// values mean "use the built-in default".
type Config struct {
	DeviceListTTL     time.Duration
	PermissionTTL     time.Duration
	GraceWindow       time.Duration
	InputRingCapacity int
	Listen            string
	CORS              bool
}

// DefaultConfigPath returns ~/.devicecheck.ini, or "" when the home
// directory cannot be resolved.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".devicecheck.ini")
}

// LoadConfig parses the ini file at path. A missing file is not an error;
// it returns an empty config so flags and defaults take over.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		path = DefaultConfigPath()
	}
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	harness := file.Section("harness")
	cfg.DeviceListTTL = durationKey(harness, "device_list_ttl")
	cfg.PermissionTTL = durationKey(harness, "permission_ttl")
	cfg.GraceWindow = durationKey(harness, "grace_window")
	cfg.InputRingCapacity = harness.Key("input_ring_capacity").MustInt(0)

	server := file.Section("server")
	cfg.Listen = server.Key("listen").String()
	cfg.CORS = server.Key("cors").MustBool(false)

	Verbose("loaded config from %s", path)
	return cfg, nil
}

func durationKey(section *ini.Section, name string) time.Duration {
	raw := section.Key(name).String()
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		Warn("ignoring invalid duration for %s: %q", name, raw)
		return 0
	}
	return d
}

package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables read by fsync.
const (
	EnvConfigPath = "FSYNC_CONFIG_PATH"
	EnvHome       = "FSYNC_HOME"
	EnvAPIToken   = "FSYNC_API_TOKEN"
	EnvPassphrase = "FSYNC_PASSPHRASE"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - FSYNC_CONFIG_PATH: config file location (default: ~/.config/fsync.toml)
//   - FSYNC_HOME: base directory for fsync data (default: ~/.local/share/fsync)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking FSYNC_CONFIG_PATH first,
// then falling back to the default ~/.config/fsync.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "fsync.toml"), nil
}

// getBaseDir returns the base directory for fsync data, checking FSYNC_HOME first,
// then falling back to the XDG default ~/.local/share/fsync.
func getBaseDir() (string, error) {
	if path := os.Getenv(EnvHome); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "fsync"), nil
}

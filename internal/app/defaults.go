package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - ARK_CONFIG_PATH: config file location (default: ~/.config/ark.toml)
//   - ARK_HOME: base directory for ark data (default: ~/.local/share/ark)
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

// getConfigPath returns the config file path, checking ARK_CONFIG_PATH env
// var first, then falling back to the default ~/.config/ark.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("ARK_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "ark.toml"), nil
}

// getBaseDir returns the data directory, checking ARK_HOME env var first,
// then falling back to the default ~/.local/share/ark.
func getBaseDir() (string, error) {
	if dir := os.Getenv("ARK_HOME"); dir != "" {
		return dir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "ark"), nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hugo-lorenzo-mato/crashguard/internal/fsutil"
)

// UserConfigDir returns the directory holding the per-user configuration.
func UserConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "crashguard"), nil
}

// UserConfigPath returns the per-user configuration file, the fallback when
// no .crashguard.yaml is found in the working directory.
func UserConfigPath() (string, error) {
	dir, err := UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefaultConfig writes DefaultConfigYAML to path. An existing file is
// kept unless force is set.
func WriteDefaultConfig(path string, force bool) error {
	if !force {
		if _, statErr := os.Stat(path); statErr == nil {
			return fmt.Errorf("config already exists: %s", path)
		} else if !os.IsNotExist(statErr) {
			return fmt.Errorf("checking config: %w", statErr)
		}
	}

	if err := fsutil.WriteFileAtomic(path, []byte(DefaultConfigYAML), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// EnsureUserConfigFile ensures the per-user configuration file exists on disk.
// If it does not exist, it is created using DefaultConfigYAML.
func EnsureUserConfigFile() (string, error) {
	path, err := UserConfigPath()
	if err != nil {
		return "", err
	}

	if _, statErr := os.Stat(path); statErr == nil {
		return path, nil
	} else if !os.IsNotExist(statErr) {
		return "", fmt.Errorf("checking user config: %w", statErr)
	}

	if err := WriteDefaultConfig(path, true); err != nil {
		return "", err
	}
	return path, nil
}

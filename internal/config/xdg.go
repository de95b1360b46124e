// Package config resolves shadowshield's file locations and reads its TOML
// settings.
package config

import (
	"os"
	"path/filepath"
)

const appDir = "shadowshield"

// xdgBase returns $env when it holds an absolute path, otherwise the
// fallback below the user's home. Relative values are ignored as the XDG
// base directory rules require.
func xdgBase(env string, fallback ...string) string {
	if v := os.Getenv(env); v != "" && filepath.IsAbs(v) {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}

// ConfigDir is the directory holding config.toml.
func ConfigDir() string {
	return filepath.Join(xdgBase("XDG_CONFIG_HOME", ".config"), appDir)
}

// DataDir is the directory holding the history database and the log.
func DataDir() string {
	return filepath.Join(xdgBase("XDG_DATA_HOME", ".local", "share"), appDir)
}

// DefaultDBPath returns the default path for the attempt history database.
func DefaultDBPath() string {
	return filepath.Join(DataDir(), "history.db")
}

// DefaultLogPath returns the default diagnostic log file.
func DefaultLogPath() string {
	return filepath.Join(DataDir(), appDir+".log")
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Package config provides XDG path helpers.
package config

import (
	"os"
	"path/filepath"
)

const appName = "sqlquest"

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// DefaultDBPath returns the default path for the SQLite database.
func DefaultDBPath() string {
	return filepath.Join(XDGDataHome(), appName, appName+".db")
}

// DefaultSessionPath returns where the sign-in token is kept.
func DefaultSessionPath() string {
	return filepath.Join(XDGDataHome(), appName, "session.jwt")
}

// DefaultCatalogCacheDir returns the cache directory for remote lesson catalogs.
func DefaultCatalogCacheDir() string {
	return filepath.Join(XDGDataHome(), appName, "catalog")
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), appName, "config.toml")
}

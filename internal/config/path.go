// Package config provides configuration utilities for the application.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

// DefaultDatabasePath is where the transaction corpus lives unless
// database.path is configured.
func DefaultDatabasePath() string {
	return ExpandPath("$HOME/.local/share/fafycat/fafycat.db")
}

// DefaultModelPath is where trained model snapshots live unless
// model.path is configured.
func DefaultModelPath() string {
	return ExpandPath("$HOME/.local/share/fafycat/models.db")
}

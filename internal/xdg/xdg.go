// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package xdg resolves XDG Base Directory paths for universal-mcp.
// Directories fall back to the traditional ~/.config and ~/.local/state
// locations when the XDG variables are unset, and are created private (0700)
// because they hold the config file and the encrypted file keyring.
package xdg

import (
	"os"
	"path/filepath"
)

// AppName is the directory name used under every XDG base directory.
const AppName = "universal-mcp"

// ConfigDir returns $XDG_CONFIG_HOME/universal-mcp, creating it if missing.
func ConfigDir() (string, error) {
	return appDir("XDG_CONFIG_HOME", ".config")
}

// StateDir returns $XDG_STATE_HOME/universal-mcp, creating it if missing.
func StateDir() (string, error) {
	return appDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func appDir(env, fallback string) (string, error) {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, fallback)
	}
	dir := filepath.Join(base, AppName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// Copyright (c) 2025 Polenta
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package xdg resolves XDG Base Directory paths for polenta.
// Configuration lives under the config dir and REPL history under the state dir.
// Both fall back to the conventional locations below $HOME when the XDG
// variables are unset.
package xdg

import (
	"os"
	"path/filepath"
)

// AppName is the directory name used below every XDG base.
const AppName = "polenta"

// ConfigDir returns the XDG config directory for polenta.
// The directory is created with private permissions (0700) if missing.
func ConfigDir() (string, error) {
	return ensure("XDG_CONFIG_HOME", ".config")
}

// StateDir returns the XDG state directory for polenta.
// The directory is created with private permissions (0700) if missing.
func StateDir() (string, error) {
	return ensure("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

// ConfigFile returns the default config file path. The file itself may not exist.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func ensure(envVar, homeRel string) (string, error) {
	base := os.Getenv(envVar)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, homeRel)
	}
	dir := filepath.Join(base, AppName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

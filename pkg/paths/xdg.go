// Package paths provides XDG-compliant path resolution for ragsync.
//
// Resolution order:
// 1. RAGSYNC_HOME (portable root) → $RAGSYNC_HOME/{config,state}
// 2. XDG env vars → $XDG_*_HOME/ragsync
// 3. Platform defaults → ~/.config/ragsync, ~/.local/state/ragsync
package paths

import (
	"os"
	"path/filepath"
)

const appName = "ragsync"

// getConfigHome returns the base config home directory.
func getConfigHome() string {
	if home := os.Getenv("RAGSYNC_HOME"); home != "" {
		return filepath.Join(home, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

// getStateHome returns the base state home directory.
func getStateHome() string {
	if home := os.Getenv("RAGSYNC_HOME"); home != "" {
		return filepath.Join(home, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// ConfigDir returns the ragsync configuration directory.
// Used for the global ragsync.yml.
func ConfigDir() string {
	if home := os.Getenv("RAGSYNC_HOME"); home != "" {
		return getConfigHome()
	}
	base := getConfigHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, appName)
}

// StateDir returns the ragsync state directory.
// Used for runtime state and logs.
func StateDir() string {
	if home := os.Getenv("RAGSYNC_HOME"); home != "" {
		return getStateHome()
	}
	base := getStateHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, appName)
}

// LogDir returns the directory holding component log files.
func LogDir() string {
	state := StateDir()
	if state == "" {
		return ""
	}
	return filepath.Join(state, "logs")
}

// EnsureDirs creates all ragsync directories if they don't exist.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), StateDir(), LogDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

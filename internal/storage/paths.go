// Package storage provides optional on-disk persistence for network
// evaluations, so a long warm cache survives process restarts.
package storage

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "mctschess"

// GetDataDir returns the platform-specific data directory for the engine.
// - macOS: ~/Library/Application Support/mctschess/
// - Linux: ~/.local/share/mctschess/
// - Windows: %APPDATA%/mctschess/
func GetDataDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		baseDir = filepath.Join(homeDir, "Library", "Application Support")

	case "windows":
		baseDir = os.Getenv("APPDATA")
		if baseDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			baseDir = filepath.Join(homeDir, "AppData", "Roaming")
		}

	default:
		baseDir = os.Getenv("XDG_DATA_HOME")
		if baseDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			baseDir = filepath.Join(homeDir, ".local", "share")
		}
	}

	dataDir := filepath.Join(baseDir, appName)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}
	return dataDir, nil
}

// GetDatabaseDir returns the directory for storing the BadgerDB-backed
// evaluation cache overflow store. Unlike the GUI predecessor this never
// writes to stdout: stdout is the UCI protocol stream.
func GetDatabaseDir() (string, error) {
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}

	dbDir := filepath.Join(dataDir, "cachedb")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return "", err
	}
	return dbDir, nil
}

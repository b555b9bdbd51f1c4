// Package storage locates the magic folder and keeps the run index.
package storage

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

const (
	appName = "slidermagic"

	// MagicDirName is the folder holding the candidate streams.
	MagicDirName = "magic"

	// EnvMagicDir overrides the magic folder search.
	EnvMagicDir = "MAGIC_DIR"

	// searchParents is how many parent directories are searched for the magic folder.
	searchParents = 3
)

// ErrNoMagicDir is returned when no magic folder exists and none may be created.
var ErrNoMagicDir = errors.New("no magic folder found")

// FindMagicDir returns the magic folder: $MAGIC_DIR if set, otherwise the
// first "magic" directory in start or one of its three parents. When none is
// found and create is true, start/magic is created.
func FindMagicDir(start string, create bool) (string, error) {
	if dir := os.Getenv(EnvMagicDir); dir != "" {
		if create {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return "", err
			}
		}
		if isDir(dir) {
			return dir, nil
		}
		return "", ErrNoMagicDir
	}

	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for i := 0; i <= searchParents; i++ {
		candidate := filepath.Join(dir, MagicDirName)
		if isDir(candidate) {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if !create {
		return "", ErrNoMagicDir
	}

	created, err := filepath.Abs(filepath.Join(start, MagicDirName))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(created, 0755); err != nil {
		return "", err
	}
	return created, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// GetDataDir returns the platform-specific data directory for the application.
// - macOS: ~/Library/Application Support/slidermagic/
// - Linux: ~/.local/share/slidermagic/
// - Windows: %APPDATA%/slidermagic/
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
		// Check XDG_DATA_HOME first
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

// GetIndexDir returns the default directory of the BadgerDB run index.
func GetIndexDir() (string, error) {
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}

	dbDir := filepath.Join(dataDir, "index")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return "", err
	}

	return dbDir, nil
}

package config

import (
	"os"
	"path/filepath"
)

const appDirName = ".tether"

// DataDir returns the base data directory for tether.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, appDirName), nil
}

// ConfigPath returns the path to the TOML settings file.
func ConfigPath() (string, error) {
	return dataPath("config.toml")
}

// DBPath returns the path to the bbolt database holding client state.
func DBPath() (string, error) {
	return dataPath("tether.db")
}

// StateDir returns the directory used by the file storage backend.
func StateDir() (string, error) {
	return dataPath("state")
}

// LogPath returns the path to the client log file.
func LogPath() (string, error) {
	return dataPath("tether.log")
}

func dataPath(name string) (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, name), nil
}

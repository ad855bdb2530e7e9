package store

import (
	"tether/internal/config"
)

// OpenKV opens the configured backend under the tether data dir.
func OpenKV(backend string) (KV, error) {
	switch backend {
	case config.StorageBackendFile:
		dir, err := config.StateDir()
		if err != nil {
			return nil, err
		}
		return NewFileKV(dir)
	default:
		path, err := config.DBPath()
		if err != nil {
			return nil, err
		}
		return NewBboltKV(path)
	}
}

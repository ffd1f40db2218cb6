// Package config resolves the on-disk layout the storage engine reads
// and writes: the database file and the directory of patch blobs.
package config

import (
	"os"
	"path/filepath"
)

// StorageConfig carries the two durable paths the engine owns.
type StorageConfig struct {
	DBPath   string
	DiffsDir string
}

// DefaultPaths resolves the standard per-user data directory for dromos,
// following the platform conventions os.UserConfigDir already knows about.
func DefaultPaths() (StorageConfig, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return StorageConfig{}, err
	}
	dataDir := filepath.Join(base, "dromos")
	return StorageConfig{
		DBPath:   filepath.Join(dataDir, "dromos.db"),
		DiffsDir: filepath.Join(dataDir, "diffs"),
	}, nil
}

// EnsureDirsExist creates the database's parent directory and the diffs
// directory if they don't already exist.
func (c StorageConfig) EnsureDirsExist() error {
	if dir := filepath.Dir(c.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.MkdirAll(c.DiffsDir, 0o755)
}

// Package file keeps the catalog and carts in flat JSON documents, one file
// per collection. Every operation reads the whole file and rewrites it.
package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// collection serializes access to one JSON array on disk
type collection[T any] struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
}

func newCollection[T any](fs afero.Fs, path string) *collection[T] {
	return &collection[T]{fs: fs, path: path}
}

// read loads every record. A missing file is an empty collection.
func (c *collection[T]) read() ([]T, error) {
	data, err := afero.ReadFile(c.fs, c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", c.path, err)
	}

	records := []T{}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", c.path, err)
	}

	return records, nil
}

// write replaces the file through a temp file and rename
func (c *collection[T]) write(records []T) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", c.path, err)
	}

	if err := c.fs.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", c.path, err)
	}

	tmp := c.path + ".tmp"
	if err := afero.WriteFile(c.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}

	if err := c.fs.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", c.path, err)
	}

	return nil
}

// Health reports whether the directory holding path is reachable
func Health(fs afero.Fs, paths ...string) map[string]string {
	stats := map[string]string{"status": "up"}
	for _, p := range paths {
		if _, err := fs.Stat(filepath.Dir(p)); err != nil && !errors.Is(err, os.ErrNotExist) {
			stats["status"] = "down"
			stats["error"] = err.Error()
		}
	}
	return stats
}

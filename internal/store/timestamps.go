package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sbinet/npyio"
)

// Timestamps implements the archive-then-overwrite protocol over .npy
// timestamp arrays. It is stateless; every method takes the target
// directory explicitly.
type Timestamps struct{}

// WriteAligned replaces dir/current with ts. On the first write the prior
// current file is renamed to dir/archive; on later writes the archive is
// left untouched and the stale current file is removed. First archival
// wins.
func (Timestamps) WriteAligned(dir string, ts []float64, current, archive string) error {
	currentPath := filepath.Join(dir, current)
	archivePath := filepath.Join(dir, archive)

	if _, err := os.Stat(archivePath); os.IsNotExist(err) {
		if err := os.Rename(currentPath, archivePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("store: archiving %s: %w", currentPath, err)
		}
	} else if err != nil {
		return fmt.Errorf("store: checking archive %s: %w", archivePath, err)
	} else {
		// Archive already present; only the derived current file is
		// replaced.
		if err := os.Remove(currentPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("store: removing stale %s: %w", currentPath, err)
		}
	}

	return writeNpy(currentPath, ts)
}

// Archived reports whether the archive file exists in dir.
func (Timestamps) Archived(dir, archive string) (bool, error) {
	_, err := os.Stat(filepath.Join(dir, archive))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: checking archive in %s: %w", dir, err)
	}
	return true, nil
}

// Restore copies the archived array back over the current file. The
// archive itself is preserved so restore-then-align cycles keep the true
// original values. Restoring without an archive is an error.
func (Timestamps) Restore(dir, current, archive string) error {
	archivePath := filepath.Join(dir, archive)
	raw, err := os.ReadFile(archivePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("store: no archive %s to restore from", archivePath)
	}
	if err != nil {
		return fmt.Errorf("store: reading archive %s: %w", archivePath, err)
	}
	currentPath := filepath.Join(dir, current)
	if err := os.WriteFile(currentPath, raw, 0o644); err != nil {
		return fmt.Errorf("store: restoring %s: %w", currentPath, err)
	}
	return nil
}

func writeNpy(path string, ts []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store: creating %s: %w", path, err)
	}
	if err := npyio.Write(f, ts); err != nil {
		f.Close()
		return fmt.Errorf("store: writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("store: closing %s: %w", path, err)
	}
	return nil
}

package fsutil

import (
	"errors"
	"fmt"
	"os"
)

// FileSnapshot is the on-disk state of one path at a point in time
type FileSnapshot struct {
	Path    string
	Existed bool
	Data    []byte
	Mode    os.FileMode
}

// Snapshot captures the current contents of path. A missing file is not an
// error; it yields a snapshot with Existed=false.
func Snapshot(path string) (FileSnapshot, error) {
	snap := FileSnapshot{Path: path}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return snap, nil
	}
	if err != nil {
		return snap, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return snap, fmt.Errorf("%s is a directory", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return snap, fmt.Errorf("failed to read %s: %w", path, err)
	}

	snap.Existed = true
	snap.Data = data
	snap.Mode = info.Mode().Perm()
	return snap, nil
}

// Restore puts path back into the captured state: prior bytes are rewritten,
// and a file that did not exist is removed.
func Restore(snap FileSnapshot) error {
	if !snap.Existed {
		if err := os.Remove(snap.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", snap.Path, err)
		}
		return nil
	}

	mode := snap.Mode
	if mode == 0 {
		mode = 0644
	}
	return AtomicWriteMode(snap.Path, snap.Data, mode)
}

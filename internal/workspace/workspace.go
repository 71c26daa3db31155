// Package workspace lays out the .actuator directory that holds event logs,
// receipts and run state next to the files being changed.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the state directory created at the workspace root
const DirName = ".actuator"

// Dir returns the state directory for root
func Dir(root string) string {
	return filepath.Join(root, DirName)
}

// GetRequiredDirectories returns the directories that must exist under Dir
func GetRequiredDirectories() []string {
	return []string{
		"state",    // state/run.json
		"events",   // events/run-<id>.ndjson (append-only ledger)
		"receipts", // receipts/<id>.json (applied diffs)
	}
}

// Initialize creates the state directory and its subdirectories with 0700
// permissions. It is safe to call repeatedly.
func Initialize(root string) error {
	for _, dir := range GetRequiredDirectories() {
		path := filepath.Join(Dir(root), dir)
		if err := os.MkdirAll(path, 0700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", path, err)
		}
	}
	return nil
}

// IsInitialized checks if a workspace has all required directories
func IsInitialized(root string) (bool, error) {
	for _, dir := range GetRequiredDirectories() {
		path := filepath.Join(Dir(root), dir)

		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to check directory %s: %w", path, err)
		}
		if !info.IsDir() {
			return false, nil
		}
	}
	return true, nil
}

// EventLogPath returns the ledger path for a run
func EventLogPath(root, runID string) string {
	return filepath.Join(Dir(root), "events", fmt.Sprintf("run-%s.ndjson", runID))
}

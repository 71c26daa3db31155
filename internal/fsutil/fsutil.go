package fsutil

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// ErrPathEscape is returned (wrapped) when a path is empty, malformed, or
// resolves outside the workspace root.
var ErrPathEscape = errors.New("path escapes workspace")

// RenameBackoff is the wait schedule between rename attempts when the target
// is locked or busy. Its length is the number of retries.
var RenameBackoff = []time.Duration{
	20 * time.Millisecond,
	40 * time.Millisecond,
	80 * time.Millisecond,
	120 * time.Millisecond,
	200 * time.Millisecond,
}

// Seams for tests that need to simulate a contended filesystem.
var (
	renameFile = os.Rename
	writeFile  = os.WriteFile
	sleep      = time.Sleep
)

// AtomicWrite writes data to path atomically, preserving the mode of an
// existing file (new files get 0644). See AtomicWriteMode.
func AtomicWrite(path string, data []byte) error {
	perm := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	return AtomicWriteMode(path, data, perm)
}

// AtomicWriteMode writes data to a file atomically using the pattern:
// 1. Write to .<basename>.tmp.<pid>.<rand>
// 2. fsync(tmp)
// 3. rename(tmp, final), retried on permission/busy errors per RenameBackoff
// 4. fsync(dir)
//
// If every rename attempt fails, the target is written in place. If that also
// fails the returned error names both failures. The temporary file is removed
// unless the rename succeeded.
func AtomicWriteMode(path string, data []byte, perm os.FileMode) error {
	// Private files get private parents
	dirPerm := os.FileMode(0755)
	if perm&0077 == 0 {
		dirPerm = 0700
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath, err := generateTempPath(path)
	if err != nil {
		return fmt.Errorf("failed to generate temp path: %w", err)
	}

	tmpFile, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	renamed := false
	defer func() {
		tmpFile.Close()
		if !renamed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	renameErr := renameWithRetry(tmpPath, path)
	if renameErr == nil {
		renamed = true
		if err := syncDir(dir); err != nil {
			return fmt.Errorf("failed to sync directory: %w", err)
		}
		return nil
	}

	if !isContention(renameErr) {
		return fmt.Errorf("failed to rename temp file: %w", renameErr)
	}

	// Last resort: the target is held open by someone who blocks replacement
	// but may still allow writes.
	if err := writeFile(path, data, perm); err != nil {
		return errors.Join(
			fmt.Errorf("failed to rename temp file: %w", renameErr),
			fmt.Errorf("failed to write in place: %w", err),
		)
	}

	return nil
}

func renameWithRetry(from, to string) error {
	err := renameFile(from, to)
	for _, wait := range RenameBackoff {
		if err == nil || !isContention(err) {
			return err
		}
		sleep(wait)
		err = renameFile(from, to)
	}
	return err
}

// isContention reports whether err looks like a transient lock on the target
// (antivirus scanners, editors and indexers on Windows are the usual cause).
func isContention(err error) bool {
	return errors.Is(err, os.ErrPermission) ||
		errors.Is(err, syscall.EACCES) ||
		errors.Is(err, syscall.EPERM) ||
		errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.ETXTBSY)
}

// AtomicWriteJSON writes a JSON-serialized value to a file atomically
// The JSON is pretty-printed with indentation for readability
func AtomicWriteJSON(path string, v interface{}) error {
	if v == nil {
		return fmt.Errorf("cannot write nil value")
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	data = append(data, '\n')

	return AtomicWriteMode(path, data, 0600)
}

// generateTempPath creates a temporary filename in the same directory as the target
// Format: .<basename>.tmp.<pid>.<rand>
func generateTempPath(path string) (string, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	pid := os.Getpid()

	// 8 hex chars = 4 random bytes
	randBytes := make([]byte, 4)
	if _, err := rand.Read(randBytes); err != nil {
		return "", fmt.Errorf("failed to generate random suffix: %w", err)
	}
	randSuffix := hex.EncodeToString(randBytes)

	tmpName := fmt.Sprintf(".%s.tmp.%d.%s", base, pid, randSuffix)
	return filepath.Join(dir, tmpName), nil
}

// syncDir opens a directory and calls fsync on it
// This ensures directory metadata (including rename operations) is durable
func syncDir(path string) error {
	dir, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open directory: %w", err)
	}
	defer dir.Close()

	if err := dir.Sync(); err != nil {
		// Directories cannot be fsynced on some platforms (Windows)
		if errors.Is(err, os.ErrInvalid) || errors.Is(err, os.ErrPermission) {
			return nil
		}
		return fmt.Errorf("failed to sync directory: %w", err)
	}

	return nil
}

// ResolveWorkspacePath validates and resolves a relative path within workspace
// Returns canonical absolute path or an error wrapping ErrPathEscape if the
// path is empty, contains a NUL byte, is absolute, or escapes the workspace
// (including through symlinks in any existing prefix of the path).
func ResolveWorkspacePath(workspace, relative string) (string, error) {
	if strings.TrimSpace(relative) == "" {
		return "", fmt.Errorf("%w: empty path", ErrPathEscape)
	}
	if strings.ContainsRune(relative, 0) {
		return "", fmt.Errorf("%w: path contains NUL byte", ErrPathEscape)
	}

	absWorkspace, err := filepath.Abs(workspace)
	if err != nil {
		return "", fmt.Errorf("failed to resolve workspace: %w", err)
	}
	rootAbs, err := filepath.EvalSymlinks(absWorkspace)
	if err != nil {
		return "", fmt.Errorf("failed to resolve workspace: %w", err)
	}

	if filepath.IsAbs(relative) || strings.HasPrefix(relative, "/") || strings.HasPrefix(relative, `\`) {
		return "", fmt.Errorf("%w: absolute paths not allowed: %s", ErrPathEscape, relative)
	}

	cleanPath := filepath.Clean(filepath.Join(rootAbs, relative))
	if !within(rootAbs, cleanPath) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, relative)
	}

	// The target (or some of its parents) may not exist yet
	resolved, err := resolveExistingPrefix(cleanPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve symlinks: %w", err)
	}
	if !within(rootAbs, resolved) {
		return "", fmt.Errorf("%w: symlink escapes workspace: %s", ErrPathEscape, relative)
	}

	return resolved, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolveExistingPrefix resolves symlinks for the longest existing prefix of
// path and re-appends the part that does not exist yet.
func resolveExistingPrefix(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	dir := filepath.Dir(path)
	if dir == path {
		return path, nil
	}

	resolvedDir, err := resolveExistingPrefix(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, filepath.Base(path)), nil
}

// ErrFileTooLarge is returned by ReadFileSafe for a file over its limit
var ErrFileTooLarge = errors.New("file too large")

// ReadFileSafe reads a workspace-relative file after validating the path.
// A file larger than maxBytes is an error wrapping ErrFileTooLarge rather
// than a truncated read.
func ReadFileSafe(workspace, relativePath string, maxBytes int64) ([]byte, error) {
	fullPath, err := ResolveWorkspacePath(workspace, relativePath)
	if err != nil {
		return nil, fmt.Errorf("invalid file path: %w", err)
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(content)) > maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, relativePath, maxBytes)
	}

	return content, nil
}

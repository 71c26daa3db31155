// Package checksum computes "sha256:<hex>" digests of bytes and workspace files.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const prefix = "sha256:"

// ErrMismatch is wrapped by VerifyFile when the digests differ
var ErrMismatch = errors.New("checksum mismatch")

// SHA256Bytes computes the SHA256 hash of a byte slice and returns it as "sha256:hexstring"
func SHA256Bytes(data []byte) string {
	hash := sha256.Sum256(data)
	return prefix + hex.EncodeToString(hash[:])
}

// SHA256File streams a file through SHA256 and returns "sha256:hexstring"
func SHA256File(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return prefix + hex.EncodeToString(hasher.Sum(nil)), nil
}

// SumPaths hashes each root-relative path. A path that does not exist maps
// to the empty string, so deletions can be recorded and checked later.
func SumPaths(root string, rels []string) (map[string]string, error) {
	sums := make(map[string]string, len(rels))
	for _, rel := range rels {
		sum, err := SHA256File(filepath.Join(root, filepath.FromSlash(rel)))
		if errors.Is(err, os.ErrNotExist) {
			sums[rel] = ""
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", rel, err)
		}
		sums[rel] = sum
	}
	return sums, nil
}

// Validate checks that sum has the "sha256:" prefix and 64 hex digits
func Validate(sum string) error {
	if !strings.HasPrefix(sum, prefix) {
		return fmt.Errorf("invalid checksum format: must start with '%s'", prefix)
	}
	if len(sum) != len(prefix)+64 {
		return fmt.Errorf("invalid checksum format: expected %d characters, got %d", len(prefix)+64, len(sum))
	}
	if _, err := hex.DecodeString(sum[len(prefix):]); err != nil {
		return fmt.Errorf("invalid checksum format: %w", err)
	}
	return nil
}

// VerifyFile checks if a file's SHA256 hash matches the expected value
func VerifyFile(path string, expectedSum string) error {
	if err := Validate(expectedSum); err != nil {
		return err
	}

	actualSum, err := SHA256File(path)
	if err != nil {
		return fmt.Errorf("failed to compute checksum: %w", err)
	}
	if actualSum != expectedSum {
		return fmt.Errorf("%w: expected %s, got %s", ErrMismatch, expectedSum, actualSum)
	}
	return nil
}

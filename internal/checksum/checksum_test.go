package checksum

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSHA256Bytes(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "empty",
			input:    []byte{},
			expected: "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:     "hello world",
			input:    []byte("hello world"),
			expected: "sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
		{
			name:     "json object",
			input:    []byte(`{"key":"value"}`),
			expected: "sha256:e43abcf3375244839c012f9633f95862d232a95b00d5bc7348b3098b9fed7f32",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SHA256Bytes(tt.input)
			if result != tt.expected {
				t.Errorf("SHA256Bytes() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestSHA256File(t *testing.T) {
	tmpDir := t.TempDir()

	// Create test file
	testFile := filepath.Join(tmpDir, "test.txt")
	content := []byte("hello world")
	if err := os.WriteFile(testFile, content, 0600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	// Test successful hash
	hash, err := SHA256File(testFile)
	if err != nil {
		t.Fatalf("SHA256File() error = %v", err)
	}

	expected := "sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if hash != expected {
		t.Errorf("SHA256File() = %v, want %v", hash, expected)
	}

	// Test non-existent file
	_, err = SHA256File(filepath.Join(tmpDir, "missing.txt"))
	if err == nil {
		t.Error("SHA256File() expected error for missing file")
	}
}

func TestVerifyFile(t *testing.T) {
	tmpDir := t.TempDir()

	// Create test file
	testFile := filepath.Join(tmpDir, "test.txt")
	content := []byte("hello world")
	if err := os.WriteFile(testFile, content, 0600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	tests := []struct {
		name        string
		path        string
		expectedSum string
		wantErr     bool
		mismatch    bool
	}{
		{
			name:        "valid checksum",
			path:        testFile,
			expectedSum: "sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
			wantErr:     false,
		},
		{
			name:        "invalid checksum",
			path:        testFile,
			expectedSum: "sha256:0000000000000000000000000000000000000000000000000000000000000000",
			wantErr:     true,
			mismatch:    true,
		},
		{
			name:        "missing file",
			path:        filepath.Join(tmpDir, "missing.txt"),
			expectedSum: "sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
			wantErr:     true,
		},
		{
			name:        "malformed checksum (truncated)",
			path:        testFile,
			expectedSum: "sha256:b94d27b9",
			wantErr:     true,
		},
		{
			name:        "malformed checksum (no prefix)",
			path:        testFile,
			expectedSum: "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyFile(tt.path, tt.expectedSum)
			if (err != nil) != tt.wantErr {
				t.Errorf("VerifyFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, ErrMismatch); got != tt.mismatch {
				t.Errorf("errors.Is(err, ErrMismatch) = %v, want %v", got, tt.mismatch)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		sum     string
		wantErr bool
	}{
		{"valid", "sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", false},
		{"no prefix", "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", true},
		{"too short", "sha256:b94d", true},
		{"not hex", "sha256:zz4d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.sum)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSumPaths(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "src"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "src", "a.txt"), []byte("hello world"), 0600); err != nil {
		t.Fatal(err)
	}

	sums, err := SumPaths(root, []string{"src/a.txt", "gone.txt"})
	if err != nil {
		t.Fatalf("SumPaths() error = %v", err)
	}

	want := "sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if sums["src/a.txt"] != want {
		t.Errorf("src/a.txt = %s, want %s", sums["src/a.txt"], want)
	}
	if sum, ok := sums["gone.txt"]; !ok || sum != "" {
		t.Errorf("missing file should map to empty sum, got %q (present=%v)", sum, ok)
	}

	// A directory cannot be hashed
	if _, err := SumPaths(root, []string{"src"}); err == nil {
		t.Error("SumPaths() expected error for a directory")
	}
}

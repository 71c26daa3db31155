// Package receipt records applied diffs and the commands that followed them,
// so a repeated apply can be detected and what changed can be audited.
package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iambrandonn/actuator/internal/checksum"
	"github.com/iambrandonn/actuator/internal/diff"
	"github.com/iambrandonn/actuator/internal/fsutil"
	"github.com/iambrandonn/actuator/internal/idempotency"
	"github.com/iambrandonn/actuator/internal/protocol"
	"github.com/iambrandonn/actuator/internal/tool"
)

// ErrStale is returned by Verify when the workspace no longer matches a receipt
var ErrStale = errors.New("workspace differs from receipt")

// File is the post-image of one changed path. SHA256 is empty for a deletion.
type File struct {
	Path      string `json:"path"`
	SHA256    string `json:"sha256,omitempty"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// Command is the outcome of one command run after the diff
type Command struct {
	Command         string `json:"command"`
	ToolID          string `json:"tool_id,omitempty"`
	ExitCode        *int   `json:"exit_code"`
	Attempts        int    `json:"attempts"`
	RecoveryApplied bool   `json:"recovery_applied,omitempty"`
	// OutputSHA256 is the digest of the captured output tail
	OutputSHA256 string `json:"output_sha256,omitempty"`
}

// Receipt is the record of one executed proposal
type Receipt struct {
	ID             string                `json:"id"`
	TaskID         string                `json:"task_id,omitempty"`
	ProposalID     string                `json:"proposal_id,omitempty"`
	IdempotencyKey string                `json:"idempotency_key"`
	Files          []File                `json:"files"`
	Commands       []Command             `json:"commands,omitempty"`
	Status         protocol.FinishStatus `json:"status,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

// NewReceipt records diffText as applied under root. changed is the path
// list returned by the applier; post-images are hashed from disk.
func NewReceipt(root, diffText string, commands []string, changed []string) (*Receipt, error) {
	key, err := idempotency.ApplyKey(diffText, commands)
	if err != nil {
		return nil, err
	}

	stats := make(map[string]diff.FileStat)
	if strings.TrimSpace(diffText) != "" {
		list, err := diff.Summarize(diffText)
		if err != nil {
			return nil, fmt.Errorf("failed to summarize diff: %w", err)
		}
		for _, s := range list {
			stats[s.Path] = s
		}
	}

	sums, err := checksum.SumPaths(root, changed)
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, len(changed))
	for _, p := range changed {
		s := stats[p]
		files = append(files, File{Path: p, SHA256: sums[p], Additions: s.Additions, Deletions: s.Deletions})
	}

	return &Receipt{
		ID:             uuid.New().String(),
		IdempotencyKey: key,
		Files:          files,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// AddCommand appends the outcome of a command run for this receipt
func (r *Receipt) AddCommand(command string, report tool.Report) {
	r.Commands = append(r.Commands, Command{
		Command:         command,
		ToolID:          report.ToolID,
		ExitCode:        report.ExitCode,
		Attempts:        report.Attempts,
		RecoveryApplied: report.RecoveryApplied,
		OutputSHA256:    outputSum(report.Output),
	})
}

func outputSum(output string) string {
	if output == "" {
		return ""
	}
	return checksum.SHA256Bytes([]byte(output))
}

// Verify checks that every recorded file under root still has its recorded
// post-image, and that every deleted file is still absent. A mismatch wraps
// ErrStale; a malformed recorded digest is reported as is.
func (r *Receipt) Verify(root string) error {
	for _, f := range r.Files {
		abs := filepath.Join(root, filepath.FromSlash(f.Path))

		if f.SHA256 == "" {
			_, err := os.Lstat(abs)
			if err == nil {
				return r.stale(f.Path)
			}
			if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to check %s: %w", f.Path, err)
			}
			continue
		}

		err := checksum.VerifyFile(abs, f.SHA256)
		switch {
		case err == nil:
		case errors.Is(err, checksum.ErrMismatch), errors.Is(err, os.ErrNotExist):
			return r.stale(f.Path)
		default:
			return fmt.Errorf("failed to verify %s: %w", f.Path, err)
		}
	}
	return nil
}

func (r *Receipt) stale(path string) error {
	return fmt.Errorf("%w: %s changed since %s", ErrStale, path, r.CreatedAt.Format(time.RFC3339))
}

// WriteReceipt writes a receipt to disk atomically
func WriteReceipt(receipt *Receipt, path string) error {
	return fsutil.AtomicWriteJSON(path, receipt)
}

// ReadReceipt reads a receipt from disk
func ReadReceipt(path string) (*Receipt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt: %w", err)
	}

	var receipt Receipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal receipt: %w", err)
	}
	return &receipt, nil
}

// GetReceiptPath returns the standard path for a receipt
// Format: <state_dir>/receipts/<id>.json
func GetReceiptPath(stateDir, id string) string {
	return filepath.Join(stateDir, "receipts", id+".json")
}

// ListReceipts returns every receipt under stateDir, oldest first
func ListReceipts(stateDir string) ([]*Receipt, error) {
	receiptsDir := filepath.Join(stateDir, "receipts")

	entries, err := os.ReadDir(receiptsDir)
	if os.IsNotExist(err) {
		return []*Receipt{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read receipts directory: %w", err)
	}

	receipts := make([]*Receipt, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		receipt, err := ReadReceipt(filepath.Join(receiptsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read receipt %s: %w", entry.Name(), err)
		}
		receipts = append(receipts, receipt)
	}

	sort.SliceStable(receipts, func(i, j int) bool {
		return receipts[i].CreatedAt.Before(receipts[j].CreatedAt)
	})
	return receipts, nil
}

// FindApplied returns the newest receipt with key whose files still match
// the workspace under root, or nil when there is none
func FindApplied(stateDir, root, key string) (*Receipt, error) {
	receipts, err := ListReceipts(stateDir)
	if err != nil {
		return nil, err
	}

	for i := len(receipts) - 1; i >= 0; i-- {
		r := receipts[i]
		if r.IdempotencyKey != key || r.Status == protocol.FinishError {
			continue
		}
		err := r.Verify(root)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, ErrStale) {
			return nil, err
		}
	}
	return nil, nil
}

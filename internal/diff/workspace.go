package diff

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/iambrandonn/actuator/internal/fsutil"
)

// Applier applies parsed diffs to a workspace root. The zero value is not
// usable; create one with NewApplier.
//
// Concurrent Apply calls against the same root are not serialized here;
// callers must do that.
type Applier struct {
	logger *slog.Logger

	// MaxFileSize bounds the pre-image of a modified file
	MaxFileSize int64

	// WriteFile and Remove perform the mutations. They default to
	// fsutil.AtomicWrite and os.Remove and exist so tests can inject failures.
	WriteFile func(path string, data []byte) error
	Remove    func(path string) error
}

// NewApplier creates an Applier. A nil logger discards output.
func NewApplier(logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Applier{
		logger:      logger,
		MaxFileSize: DefaultMaxFileSize,
		WriteFile:   fsutil.AtomicWrite,
		Remove:      os.Remove,
	}
}

// DefaultMaxFileSize is the largest file a diff may modify
const DefaultMaxFileSize = 32 << 20

// ApplyUnifiedDiff applies diff text to root with a default Applier
func ApplyUnifiedDiff(text, root string) ([]string, error) {
	return NewApplier(nil).Apply(context.Background(), text, root)
}

// preparedOp is one filesystem mutation with the state needed to undo it
type preparedOp struct {
	rel     string
	abs     string
	before  fsutil.FileSnapshot
	content []byte
	delete  bool
}

// Apply parses text and applies every patch to root. Either all patches are
// applied, or the operations that were applied are rolled back (best effort)
// and the first error is returned. On success the root-relative paths touched
// are returned in patch order.
func (a *Applier) Apply(ctx context.Context, text, root string) ([]string, error) {
	patches, err := Parse(text)
	if err != nil {
		return nil, err
	}

	ops, err := a.prepare(root, patches)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("applying diff", "root", root, "patches", len(patches), "operations", len(ops))

	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			a.rollback(ops[:i])
			return nil, err
		}
		if err := a.execute(op); err != nil {
			a.logger.Warn("diff operation failed, rolling back",
				"path", op.rel,
				"applied", i,
				"error", err)
			a.rollback(ops[:i])
			return nil, err
		}
	}

	changed := changedPaths(ops)
	a.logger.Info("diff applied", "root", root, "files", len(changed))
	return changed, nil
}

// Check parses text and computes every post-image without touching the
// workspace. It returns the paths Apply would change.
func (a *Applier) Check(text, root string) ([]string, error) {
	patches, err := Parse(text)
	if err != nil {
		return nil, err
	}
	ops, err := a.prepare(root, patches)
	if err != nil {
		return nil, err
	}
	return changedPaths(ops), nil
}

// prepare resolves paths, computes post-images and snapshots every target
// before anything is written.
func (a *Applier) prepare(root string, patches []FilePatch) ([]preparedOp, error) {
	var ops []preparedOp
	// Content produced by earlier patches in the same diff, keyed by abs path
	pending := make(map[string]*[]byte)

	for _, patch := range patches {
		var oldAbs, oldRel string
		if !patch.IsCreate() {
			rel, abs, err := resolve(root, patch.OldPath)
			if err != nil {
				return nil, err
			}
			oldRel, oldAbs = rel, abs
		}

		// Deletions do not need a post-image; an already absent file is fine
		if patch.IsDelete() {
			op, err := newOp(oldRel, oldAbs, nil, true)
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
			pending[oldAbs] = nil
			continue
		}

		newRel, newAbs, err := resolve(root, patch.NewPath)
		if err != nil {
			return nil, err
		}

		preImage, err := a.readPreImage(root, oldAbs, oldRel, pending)
		if err != nil {
			return nil, err
		}

		postImage, err := ApplyPatch(preImage, patch)
		if err != nil {
			var diffErr *Error
			if errors.As(err, &diffErr) {
				diffErr.Path = newRel
			}
			return nil, err
		}

		content := []byte(postImage)
		op, err := newOp(newRel, newAbs, content, false)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		pending[newAbs] = &content

		if patch.IsRename() && oldAbs != newAbs {
			op, err := newOp(oldRel, oldAbs, nil, true)
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
			pending[oldAbs] = nil
		}
	}

	return ops, nil
}

func newOp(rel, abs string, content []byte, del bool) (preparedOp, error) {
	snap, err := fsutil.Snapshot(abs)
	if err != nil {
		return preparedOp{}, fmt.Errorf("failed to snapshot %s: %w", rel, err)
	}
	return preparedOp{rel: rel, abs: abs, before: snap, content: content, delete: del}, nil
}

func (a *Applier) readPreImage(root, abs, rel string, pending map[string]*[]byte) (string, error) {
	if abs == "" {
		return "", nil
	}
	if content, ok := pending[abs]; ok {
		if content == nil {
			return "", newError(ErrMissingFile, rel, 0, "removed earlier in the same diff")
		}
		return string(*content), nil
	}

	data, err := fsutil.ReadFileSafe(root, rel, a.MaxFileSize)
	if errors.Is(err, os.ErrNotExist) {
		return "", &Error{Kind: ErrMissingFile, Path: rel}
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", rel, err)
	}
	return string(data), nil
}

func resolve(root, p string) (string, string, error) {
	abs, err := fsutil.ResolveWorkspacePath(root, p)
	if err != nil {
		return "", "", &Error{Kind: ErrPathTraversal, Path: p, Err: err}
	}
	return path.Clean(filepath.ToSlash(p)), abs, nil
}

func (a *Applier) execute(op preparedOp) error {
	if op.delete {
		if err := a.Remove(op.abs); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete %s: %w", op.rel, err)
		}
		return nil
	}
	if err := a.WriteFile(op.abs, op.content); err != nil {
		return fmt.Errorf("failed to write %s: %w", op.rel, err)
	}
	return nil
}

// rollback undoes applied operations in reverse order. Failures are logged
// and otherwise ignored so the caller still sees the original error.
func (a *Applier) rollback(applied []preparedOp) {
	for i := len(applied) - 1; i >= 0; i-- {
		op := applied[i]
		if err := fsutil.Restore(op.before); err != nil {
			a.logger.Warn("rollback failed", "path", op.rel, "error", err)
		}
	}
}

func changedPaths(ops []preparedOp) []string {
	seen := make(map[string]bool, len(ops))
	paths := make([]string, 0, len(ops))
	for _, op := range ops {
		if seen[op.rel] {
			continue
		}
		seen[op.rel] = true
		paths = append(paths, op.rel)
	}
	return paths
}

package diff

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by this package matches exactly one of
// these with errors.Is.
var (
	ErrNoPatchFound      = errors.New("no patch found")
	ErrMalformedHeader   = errors.New("malformed file header")
	ErrInvalidHunkHeader = errors.New("invalid hunk header")
	ErrPathTraversal     = errors.New("path traversal")
	ErrContextMismatch   = errors.New("context mismatch")
	ErrDeleteMismatch    = errors.New("delete mismatch")
	ErrOverlap           = errors.New("overlapping hunks")
	ErrMissingFile       = errors.New("target file missing")
)

// Error carries enough detail to render a failed parse or apply to an operator
type Error struct {
	Kind   error
	Path   string
	Line   int // 1-based line in the diff text (parse) or source file (apply); 0 if unknown
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Path != "" {
		fmt.Fprintf(&b, " in %s", e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, path string, line int, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Line: line, Detail: fmt.Sprintf(format, args...)}
}

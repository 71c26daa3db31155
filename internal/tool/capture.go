package tool

import (
	"bytes"
	"strings"
	"sync"
)

// DefaultTailLines is the number of output lines kept when none is configured
const DefaultTailLines = 200

// maxPartialLine bounds a single unterminated line so output without
// newlines cannot grow without limit.
const maxPartialLine = 64 * 1024

// TailBuffer keeps the last N lines written to it. It implements io.Writer
// and is safe for concurrent use, so stdout and stderr can share one buffer.
type TailBuffer struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial []byte
	dropped int
}

// NewTailBuffer creates a buffer holding at most maxLines lines. Values below
// one use DefaultTailLines.
func NewTailBuffer(maxLines int) *TailBuffer {
	if maxLines < 1 {
		maxLines = DefaultTailLines
	}
	return &TailBuffer{max: maxLines}
}

// Write appends p and trims the buffer to its line limit. It never fails.
func (b *TailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := p
	for len(data) > 0 {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			b.partial = append(b.partial, data...)
			if over := len(b.partial) - maxPartialLine; over > 0 {
				b.partial = append(b.partial[:0], b.partial[over:]...)
			}
			break
		}
		line := string(append(b.partial, data[:idx]...))
		b.partial = b.partial[:0]
		b.lines = append(b.lines, strings.TrimSuffix(line, "\r"))
		data = data[idx+1:]
	}

	b.trim()
	return len(p), nil
}

func (b *TailBuffer) trim() {
	limit := b.max
	if len(b.partial) > 0 {
		limit--
	}
	if over := len(b.lines) - limit; over > 0 {
		b.dropped += over
		// Copy so the backing array does not keep dropped lines alive
		b.lines = append([]string(nil), b.lines[over:]...)
	}
}

// String returns the retained lines joined with newlines
func (b *TailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var sb strings.Builder
	for _, line := range b.lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.Write(b.partial)
	return sb.String()
}

// Lines returns a copy of the retained lines, including an unterminated last line
func (b *TailBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := append([]string(nil), b.lines...)
	if len(b.partial) > 0 {
		out = append(out, string(b.partial))
	}
	return out
}

// Dropped returns how many lines have been discarded to honor the limit
func (b *TailBuffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseOne(t *testing.T, text string) FilePatch {
	t.Helper()
	patches, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, patches, 1)
	return patches[0]
}

func TestApplyPatch(t *testing.T) {
	tests := []struct {
		name   string
		source string
		diff   string
		want   string
	}{
		{
			name:   "create from empty",
			source: "",
			diff:   "--- /dev/null\n+++ b/notes.txt\n@@ -0,0 +1,2 @@\n+line1\n+line2",
			want:   "line1\nline2",
		},
		{
			name:   "replace middle line",
			source: "a\nb\nc\n",
			diff:   "--- a/f\n+++ b/f\n@@ -1,3 +1,3 @@\n a\n-b\n+B\n c\n",
			want:   "a\nB\nc\n",
		},
		{
			name:   "two hunks keep untouched lines between them",
			source: "1\n2\n3\n4\n5\n6\n7\n8\n",
			diff: "--- a/f\n+++ b/f\n" +
				"@@ -1,2 +1,2 @@\n-1\n+one\n 2\n" +
				"@@ -7,2 +7,3 @@\n 7\n-8\n+eight\n+nine\n",
			want: "one\n2\n3\n4\n5\n6\n7\neight\nnine\n",
		},
		{
			name:   "pure insertion after a line",
			source: "a\nb\nc\n",
			diff:   "--- a/f\n+++ b/f\n@@ -2,0 +3 @@\n+x\n",
			want:   "a\nb\nx\nc\n",
		},
		{
			name:   "crlf source keeps crlf",
			source: "a\r\nb\r\nc\r\n",
			diff:   "--- a/f\n+++ b/f\n@@ -2 +2 @@\n-b\n+B\n",
			want:   "a\r\nB\r\nc\r\n",
		},
		{
			name:   "missing final newline is preserved",
			source: "a\nb",
			diff:   "--- a/f\n+++ b/f\n@@ -2 +2 @@\n-b\n\\ No newline at end of file\n+B\n\\ No newline at end of file\n",
			want:   "a\nB",
		},
		{
			name:   "deleting everything yields empty content",
			source: "only\n",
			diff:   "--- a/f\n+++ b/f\n@@ -1 +0,0 @@\n-only\n",
			want:   "",
		},
		{
			name:   "append at end of file",
			source: "a\n",
			diff:   "--- a/f\n+++ b/f\n@@ -1 +1,2 @@\n a\n+b\n",
			want:   "a\nb\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyPatch(tt.source, mustParseOne(t, tt.diff))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyPatchErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		patch  FilePatch
		kind   error
	}{
		{
			name:   "context differs",
			source: "a\nb\n",
			patch:  FilePatch{OldPath: "f", NewPath: "f", Hunks: []Hunk{{OldStart: 1, Lines: []string{" x", "-b"}}}},
			kind:   ErrContextMismatch,
		},
		{
			name:   "deleted line differs",
			source: "a\nb\n",
			patch:  FilePatch{OldPath: "f", NewPath: "f", Hunks: []Hunk{{OldStart: 2, Lines: []string{"-c"}}}},
			kind:   ErrDeleteMismatch,
		},
		{
			name:   "context runs past end of file",
			source: "a\n",
			patch:  FilePatch{OldPath: "f", NewPath: "f", Hunks: []Hunk{{OldStart: 1, Lines: []string{" a", " b"}}}},
			kind:   ErrContextMismatch,
		},
		{
			name:   "hunk starts past end of file",
			source: "a\n",
			patch:  FilePatch{OldPath: "f", NewPath: "f", Hunks: []Hunk{{OldStart: 5, Lines: []string{"+z"}}}},
			kind:   ErrContextMismatch,
		},
		{
			name:   "hunks out of order",
			source: "1\n2\n3\n4\n",
			patch: FilePatch{OldPath: "f", NewPath: "f", Hunks: []Hunk{
				{OldStart: 3, Lines: []string{" 3"}},
				{OldStart: 1, Lines: []string{" 1"}},
			}},
			kind: ErrOverlap,
		},
		{
			name:   "hunk starts inside the previous one",
			source: "1\n2\n3\n4\n",
			patch: FilePatch{OldPath: "f", NewPath: "f", Hunks: []Hunk{
				{OldStart: 1, Lines: []string{" 1", " 2", " 3"}},
				{OldStart: 2, Lines: []string{" 2"}},
			}},
			kind: ErrOverlap,
		},
		{
			name:   "same start twice",
			source: "1\n2\n",
			patch: FilePatch{OldPath: "f", NewPath: "f", Hunks: []Hunk{
				{OldStart: 1, Lines: []string{"+x"}},
				{OldStart: 1, Lines: []string{"+y"}},
			}},
			kind: ErrOverlap,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ApplyPatch(tt.source, tt.patch)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestApplyPatchMismatchDetail(t *testing.T) {
	patch := FilePatch{OldPath: "src/a.txt", NewPath: "src/a.txt", Hunks: []Hunk{
		{OldStart: 2, Lines: []string{" expected"}},
	}}

	_, err := ApplyPatch("one\nactual\n", patch)
	var diffErr *Error
	require.ErrorAs(t, err, &diffErr)
	assert.Equal(t, "src/a.txt", diffErr.Path)
	assert.Equal(t, 2, diffErr.Line)
	assert.Contains(t, diffErr.Detail, `expected "expected", found "actual"`)
}

// Applying the diff of A->B to A gives B for any line ending style.
func TestApplyPatchRoundTrip(t *testing.T) {
	diffText := "--- a/cfg.ini\n+++ b/cfg.ini\n" +
		"@@ -1,3 +1,3 @@\n [core]\n-debug = false\n+debug = true\n name = demo\n" +
		"@@ -6,2 +6,3 @@\n [remote]\n url = x\n+branch = main\n"

	for _, eol := range []string{"\n", "\r\n"} {
		join := func(lines ...string) string {
			out := ""
			for _, l := range lines {
				out += l + eol
			}
			return out
		}
		a := join("[core]", "debug = false", "name = demo", "", "", "[remote]", "url = x")
		b := join("[core]", "debug = true", "name = demo", "", "", "[remote]", "url = x", "branch = main")

		got, err := ApplyPatch(a, mustParseOne(t, diffText))
		require.NoError(t, err)
		assert.Equal(t, b, got, "eol %q", eol)
	}
}

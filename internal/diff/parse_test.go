package diff

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []FilePatch
	}{
		{
			name: "bare create",
			text: "--- /dev/null\n+++ b/notes.txt\n@@ -0,0 +1,2 @@\n+line1\n+line2",
			want: []FilePatch{{
				OldPath: DevNull,
				NewPath: "notes.txt",
				Hunks:   []Hunk{{OldStart: 0, Lines: []string{"+line1", "+line2"}}},
			}},
		},
		{
			name: "git style with index line",
			text: "diff --git a/src/app.go b/src/app.go\n" +
				"index 83db48f..bf269f4 100644\n" +
				"--- a/src/app.go\n" +
				"+++ b/src/app.go\n" +
				"@@ -1,3 +1,3 @@\n" +
				" package app\n" +
				"-var x = 1\n" +
				"+var x = 2\n",
			want: []FilePatch{{
				OldPath: "src/app.go",
				NewPath: "src/app.go",
				Hunks: []Hunk{{OldStart: 1, Lines: []string{
					" package app", "-var x = 1", "+var x = 2",
				}}},
			}},
		},
		{
			name: "multiple files and hunks",
			text: "--- a/one.txt\n+++ b/one.txt\n" +
				"@@ -1,2 +1,2 @@\n-a\n+A\n b\n" +
				"@@ -10,1 +10,1 @@\n-j\n+J\n" +
				"--- a/two.txt\n+++ /dev/null\n" +
				"@@ -1,1 +0,0 @@\n-gone\n",
			want: []FilePatch{
				{
					OldPath: "one.txt",
					NewPath: "one.txt",
					Hunks: []Hunk{
						{OldStart: 1, Lines: []string{"-a", "+A", " b"}},
						{OldStart: 10, Lines: []string{"-j", "+J"}},
					},
				},
				{
					OldPath: "two.txt",
					NewPath: DevNull,
					Hunks:   []Hunk{{OldStart: 1, Lines: []string{"-gone"}}},
				},
			},
		},
		{
			name: "header timestamps are dropped",
			text: "--- a/x.txt\t2024-01-01 10:00:00.000000000 +0000\n" +
				"+++ b/x.txt\t2024-01-02 10:00:00.000000000 +0000\n" +
				"@@ -1 +1 @@\n-old\n+new\n",
			want: []FilePatch{{
				OldPath: "x.txt",
				NewPath: "x.txt",
				Hunks:   []Hunk{{OldStart: 1, Lines: []string{"-old", "+new"}}},
			}},
		},
		{
			name: "no newline marker is discarded",
			text: "--- a/x.txt\n+++ b/x.txt\n@@ -1 +1 @@\n-old\n\\ No newline at end of file\n+new\n\\ No newline at end of file\n",
			want: []FilePatch{{
				OldPath: "x.txt",
				NewPath: "x.txt",
				Hunks:   []Hunk{{OldStart: 1, Lines: []string{"-old", "+new"}}},
			}},
		},
		{
			name: "blank lines inside a hunk are context",
			text: "--- a/f\n+++ b/f\n@@ -1,3 +1,3 @@\n a\n\n-b\n+c\n\n",
			want: []FilePatch{{
				OldPath: "f",
				NewPath: "f",
				Hunks:   []Hunk{{OldStart: 1, Lines: []string{" a", " ", "-b", "+c"}}},
			}},
		},
		{
			name: "pure insertion points at the following line",
			text: "--- a/f\n+++ b/f\n@@ -3,0 +4,1 @@\n+x\n",
			want: []FilePatch{{
				OldPath: "f",
				NewPath: "f",
				Hunks:   []Hunk{{OldStart: 4, Lines: []string{"+x"}}},
			}},
		},
		{
			name: "prose around the diff is ignored",
			text: "Here is the change:\n\n```diff\n--- a/f\n+++ b/f\n@@ -1 +1 @@\n-a\n+b\n```\nThanks",
			want: []FilePatch{{
				OldPath: "f",
				NewPath: "f",
				Hunks:   []Hunk{{OldStart: 1, Lines: []string{"-a", "+b"}}},
			}},
		},
		{
			name: "rename without content change",
			text: "diff --git a/old.txt b/new.txt\n" +
				"similarity index 100%\n" +
				"rename from old.txt\n" +
				"rename to new.txt\n",
			want: []FilePatch{{OldPath: "old.txt", NewPath: "new.txt"}},
		},
		{
			name: "binary block is skipped",
			text: "diff --git a/logo.png b/logo.png\n" +
				"index 1111111..2222222 100644\n" +
				"Binary files a/logo.png and b/logo.png differ\n" +
				"diff --git a/f b/f\n" +
				"--- a/f\n+++ b/f\n@@ -1 +1 @@\n-a\n+b\n",
			want: []FilePatch{{
				OldPath: "f",
				NewPath: "f",
				Hunks:   []Hunk{{OldStart: 1, Lines: []string{"-a", "+b"}}},
			}},
		},
		{
			name: "empty file creation from git metadata",
			text: "diff --git a/empty.txt b/empty.txt\nnew file mode 100644\nindex 0000000..e69de29\n",
			want: []FilePatch{{OldPath: DevNull, NewPath: "empty.txt"}},
		},
		{
			name: "crlf diff text",
			text: "--- a/f\r\n+++ b/f\r\n@@ -1 +1 @@\r\n-a\r\n+b\r\n",
			want: []FilePatch{{
				OldPath: "f",
				NewPath: "f",
				Hunks:   []Hunk{{OldStart: 1, Lines: []string{"-a", "+b"}}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.text)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		kind error
	}{
		{"empty input", "", ErrNoPatchFound},
		{"prose only", "just some words\nno diff here\n", ErrNoPatchFound},
		{"missing plus header", "--- a/f\n@@ -1 +1 @@\n-a\n+b\n", ErrMalformedHeader},
		{"missing plus header at end", "--- a/f", ErrMalformedHeader},
		{"both sides null", "--- /dev/null\n+++ /dev/null\n@@ -0,0 +1 @@\n+a\n", ErrMalformedHeader},
		{"bad hunk header", "--- a/f\n+++ b/f\n@@ -a +1 @@\n-a\n", ErrInvalidHunkHeader},
		{"truncated hunk header", "--- a/f\n+++ b/f\n@@ -1\n-a\n", ErrInvalidHunkHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)

			var diffErr *Error
			require.ErrorAs(t, err, &diffErr)
			assert.Equal(t, tt.kind, diffErr.Kind)
		})
	}
}

func TestParseErrorReportsLine(t *testing.T) {
	_, err := Parse("junk\n--- a/f\n+++ b/f\n@@ nope @@\n")
	var diffErr *Error
	require.ErrorAs(t, err, &diffErr)
	assert.Equal(t, 4, diffErr.Line)
	assert.Equal(t, "f", diffErr.Path)
	assert.Contains(t, err.Error(), "invalid hunk header in f at line 4")
}

func TestFilePatchPredicates(t *testing.T) {
	create := FilePatch{OldPath: DevNull, NewPath: "a"}
	del := FilePatch{OldPath: "a", NewPath: DevNull}
	rename := FilePatch{OldPath: "a", NewPath: "b"}
	modify := FilePatch{OldPath: "a", NewPath: "a"}

	assert.True(t, create.IsCreate())
	assert.False(t, create.IsRename())
	assert.True(t, del.IsDelete())
	assert.Equal(t, "a", del.Path())
	assert.True(t, rename.IsRename())
	assert.Equal(t, "b", rename.Path())
	assert.False(t, modify.IsCreate() || modify.IsDelete() || modify.IsRename())
}

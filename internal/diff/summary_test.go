package diff

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	diffText := "--- a/a.txt\n+++ b/a.txt\n@@ -1,3 +1,4 @@\n keep\n-old\n+new\n+extra\n keep2\n" +
		"--- /dev/null\n+++ b/b.txt\n@@ -0,0 +1,2 @@\n+x\n+y\n" +
		"--- a/c.txt\n+++ /dev/null\n@@ -1 +0,0 @@\n-z\n"

	stats, err := Summarize(diffText)
	require.NoError(t, err)

	want := []FileStat{
		{Path: "a.txt", Additions: 2, Deletions: 1},
		{Path: "b.txt", Additions: 2},
		{Path: "c.txt", Deletions: 1},
	}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("Summarize() mismatch (-want +got):\n%s", diff)
	}

	adds, dels := Totals(stats)
	assert.Equal(t, 4, adds)
	assert.Equal(t, 2, dels)
}

func TestSummarizeNoPatch(t *testing.T) {
	_, err := Summarize("nothing to see")
	assert.ErrorIs(t, err, ErrNoPatchFound)
}

package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"git status", []string{"git", "status"}},
		{"  git   log  -n 5 ", []string{"git", "log", "-n", "5"}},
		{`git commit -m "fix the thing"`, []string{"git", "commit", "-m", "fix the thing"}},
		{`git commit -m 'it''s'`, []string{"git", "commit", "-m", "its"}},
		{`echo "a \"quoted\" word"`, []string{"echo", `a "quoted" word`}},
		{`echo "back\\slash" "keep\n"`, []string{"echo", `back\slash`, `keep\n`}},
		{`echo ''`, []string{"echo", ""}},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := tokenize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenizeUnterminatedQuote(t *testing.T) {
	_, err := tokenize(`git commit -m "oops`)
	assert.ErrorIs(t, err, errUnterminatedQuote)

	_, err = tokenize(`echo 'oops`)
	assert.ErrorIs(t, err, errUnterminatedQuote)
}

func TestQuoteArgRoundTrip(t *testing.T) {
	for _, arg := range []string{"plain", "with space", "it's", `dq"`, ""} {
		tokens, err := tokenize("x " + quoteArg(arg))
		require.NoError(t, err)
		assert.Equal(t, []string{"x", arg}, tokens, "arg %q", arg)
	}
}

func TestHasShellMeta(t *testing.T) {
	for _, text := range []string{"a; b", "a && b", "a || b", "a | b", "$(x)", "`x`", "a > f", "a < f", "a\nb"} {
		assert.True(t, hasShellMeta(text), text)
	}
	assert.False(t, hasShellMeta("git log --oneline -n 5"))
}

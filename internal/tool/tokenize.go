package tool

import (
	"errors"
	"strings"
)

// shellMeta lists characters that make a command text more than a single
// argv. Narrow tools refuse any text containing them.
const shellMeta = ";&|$`><()\n\r"

var errUnterminatedQuote = errors.New("unterminated quote")

func hasShellMeta(text string) bool {
	return strings.ContainsAny(text, shellMeta)
}

// tokenize splits text on whitespace. Single quotes preserve everything up to
// the closing quote; double quotes do too, except that \" and \\ are
// unescaped. There is no variable expansion or globbing.
func tokenize(text string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		inToken bool
		quote   rune
		escaped bool
	)

	for _, r := range text {
		switch {
		case escaped:
			if r != '"' && r != '\\' {
				current.WriteRune('\\')
			}
			current.WriteRune(r)
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case quote == '"':
			switch r {
			case '"':
				quote = 0
			case '\\':
				escaped = true
			default:
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case r == ' ' || r == '\t':
			if inToken {
				tokens = append(tokens, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(r)
			inToken = true
		}
	}

	if quote != 0 || escaped {
		return nil, errUnterminatedQuote
	}
	if inToken {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}

// quoteArg renders arg so tokenize reads it back as one token
func quoteArg(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t'\"\\") {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'"'"'`) + "'"
}

// normalizeSpace collapses runs of whitespace to single spaces
func normalizeSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

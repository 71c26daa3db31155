package diff

import "strings"

// ApplyPatch applies the hunks of one patch to source and returns the result.
// The line ending convention of source (LF or CRLF) and whether it ends with
// a newline are carried over to the result.
func ApplyPatch(source string, patch FilePatch) (string, error) {
	eol := detectEOL(source)
	src, trailingNewline := splitContent(source)
	path := patch.Path()

	out := make([]string, 0, len(src))
	cursor := 0

	for i, hunk := range patch.Hunks {
		target := hunk.OldStart - 1
		if target < 0 {
			target = 0
		}
		if i > 0 && hunk.OldStart <= patch.Hunks[i-1].OldStart {
			return "", newError(ErrOverlap, path, hunk.OldStart,
				"hunk %d starts at or before hunk %d", i+1, i)
		}
		if target < cursor {
			return "", newError(ErrOverlap, path, hunk.OldStart,
				"hunk %d starts before the end of the previous hunk (line %d)", i+1, cursor+1)
		}
		if target > len(src) {
			return "", newError(ErrContextMismatch, path, hunk.OldStart,
				"hunk %d starts past end of file (%d lines)", i+1, len(src))
		}

		out = append(out, src[cursor:target]...)
		cursor = target

		for _, line := range hunk.Lines {
			tag, text := byte(' '), ""
			if line != "" {
				tag, text = line[0], line[1:]
			}
			switch tag {
			case ' ':
				if cursor >= len(src) || src[cursor] != text {
					return "", mismatch(ErrContextMismatch, path, src, cursor, text)
				}
				out = append(out, text)
				cursor++
			case '-':
				if cursor >= len(src) || src[cursor] != text {
					return "", mismatch(ErrDeleteMismatch, path, src, cursor, text)
				}
				cursor++
			case '+':
				out = append(out, text)
			default:
				return "", newError(ErrContextMismatch, path, cursor+1, "unknown hunk line prefix %q", tag)
			}
		}
	}

	out = append(out, src[cursor:]...)

	if len(out) == 0 {
		return "", nil
	}
	result := strings.Join(out, eol)
	if trailingNewline {
		result += eol
	}
	return result, nil
}

func mismatch(kind error, path string, src []string, cursor int, want string) *Error {
	if cursor >= len(src) {
		return newError(kind, path, cursor+1, "expected %q, found end of file", want)
	}
	return newError(kind, path, cursor+1, "expected %q, found %q", want, src[cursor])
}

func detectEOL(source string) string {
	if idx := strings.IndexByte(source, '\n'); idx > 0 && source[idx-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}

// splitContent splits file content into lines without terminators
func splitContent(source string) ([]string, bool) {
	if source == "" {
		return nil, false
	}
	trailing := strings.HasSuffix(source, "\n")
	source = strings.TrimSuffix(source, "\n")
	lines := strings.Split(source, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines, trailing
}

// Package diff parses unified diffs and applies them to a workspace as a
// single rollback-capable transaction.
//
// Two per-file header styles are accepted: the extended git style
// ("diff --git a/X b/Y", metadata lines, then a ---/+++ pair) and the bare
// style (a ---/+++ pair on consecutive lines). Hunks are matched against the
// source by exact context; there is no fuzz and no three-way merge.
package diff

import (
	"regexp"
	"strconv"
	"strings"
)

// DevNull is the sentinel path meaning "no file on this side" (create/delete)
const DevNull = "/dev/null"

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Hunk is one contiguous change region. Lines keep their ' ', '-' or '+' prefix.
type Hunk struct {
	// OldStart is the 1-based line in the old file where the hunk begins.
	// For a pure insertion (old count 0) it is the line the insertion precedes.
	OldStart int
	Lines    []string
}

// FilePatch is the set of hunks for one file
type FilePatch struct {
	OldPath string
	NewPath string
	Hunks   []Hunk
}

// IsCreate reports whether the patch creates a file
func (p FilePatch) IsCreate() bool { return p.OldPath == DevNull }

// IsDelete reports whether the patch deletes a file
func (p FilePatch) IsDelete() bool { return p.NewPath == DevNull }

// IsRename reports whether the patch moves a file
func (p FilePatch) IsRename() bool {
	return !p.IsCreate() && !p.IsDelete() && p.OldPath != p.NewPath
}

// Path returns the path the patch leaves behind, or the removed path for deletions
func (p FilePatch) Path() string {
	if p.IsDelete() {
		return p.OldPath
	}
	return p.NewPath
}

// Parse splits diff text into per-file patches. Text outside file blocks
// (commit messages, prose around a fenced diff) is ignored.
func Parse(text string) ([]FilePatch, error) {
	lines := splitDiffLines(text)
	var patches []FilePatch

	for i := 0; i < len(lines); {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "diff --git "):
			patch, next, ok, err := parseGitBlock(lines, i)
			if err != nil {
				return nil, err
			}
			if ok {
				patches = append(patches, patch)
			}
			i = next

		case strings.HasPrefix(line, "--- "):
			if i+1 >= len(lines) || !strings.HasPrefix(lines[i+1], "+++ ") {
				return nil, newError(ErrMalformedHeader, "", i+1, "'---' must be followed by '+++'")
			}
			patch, next, err := parseFileBody(lines, i, "", "")
			if err != nil {
				return nil, err
			}
			patches = append(patches, patch)
			i = next

		default:
			i++
		}
	}

	if len(patches) == 0 {
		return nil, &Error{Kind: ErrNoPatchFound}
	}
	return patches, nil
}

// parseGitBlock parses one "diff --git" block. ok is false for blocks that
// carry no content change (binary, mode-only).
func parseGitBlock(lines []string, start int) (FilePatch, int, bool, error) {
	oldPath, newPath := parseGitHeaderPaths(lines[start])
	var renameFrom, renameTo string
	created, deleted := false, false

	i := start + 1
	for ; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "--- "):
			if i+1 >= len(lines) || !strings.HasPrefix(lines[i+1], "+++ ") {
				return FilePatch{}, 0, false, newError(ErrMalformedHeader, newPath, i+1, "'---' must be followed by '+++'")
			}
			patch, next, err := parseFileBody(lines, i, oldPath, newPath)
			return patch, next, true, err
		case strings.HasPrefix(line, "diff --git "), strings.HasPrefix(line, "@@"):
			return metadataOnlyPatch(oldPath, newPath, renameFrom, renameTo, created, deleted, i)
		case strings.HasPrefix(line, "rename from "):
			renameFrom = parsePathToken(strings.TrimPrefix(line, "rename from "), false)
		case strings.HasPrefix(line, "rename to "):
			renameTo = parsePathToken(strings.TrimPrefix(line, "rename to "), false)
		case strings.HasPrefix(line, "new file mode"):
			created = true
		case strings.HasPrefix(line, "deleted file mode"):
			deleted = true
		}
	}

	return metadataOnlyPatch(oldPath, newPath, renameFrom, renameTo, created, deleted, i)
}

func metadataOnlyPatch(oldPath, newPath, renameFrom, renameTo string, created, deleted bool, next int) (FilePatch, int, bool, error) {
	switch {
	case renameFrom != "" && renameTo != "":
		return FilePatch{OldPath: renameFrom, NewPath: renameTo}, next, true, nil
	case created && newPath != "":
		return FilePatch{OldPath: DevNull, NewPath: newPath}, next, true, nil
	case deleted && oldPath != "":
		return FilePatch{OldPath: oldPath, NewPath: DevNull}, next, true, nil
	default:
		return FilePatch{}, next, false, nil
	}
}

// parseFileBody parses a ---/+++ pair starting at lines[start] and the hunks
// that follow it.
func parseFileBody(lines []string, start int, fallbackOld, fallbackNew string) (FilePatch, int, error) {
	oldPath := parsePathToken(strings.TrimPrefix(lines[start], "--- "), true)
	newPath := parsePathToken(strings.TrimPrefix(lines[start+1], "+++ "), true)
	if oldPath == "" {
		oldPath = fallbackOld
	}
	if newPath == "" {
		newPath = fallbackNew
	}
	if oldPath == "" || newPath == "" {
		return FilePatch{}, 0, newError(ErrMalformedHeader, "", start+1, "empty path in file header")
	}
	if oldPath == DevNull && newPath == DevNull {
		return FilePatch{}, 0, newError(ErrMalformedHeader, "", start+1, "both sides are %s", DevNull)
	}

	patch := FilePatch{OldPath: oldPath, NewPath: newPath}
	hunks, next, err := parseHunks(lines, start+2, patch.Path())
	if err != nil {
		return FilePatch{}, 0, err
	}
	patch.Hunks = hunks
	return patch, next, nil
}

func parseHunks(lines []string, start int, path string) ([]Hunk, int, error) {
	var hunks []Hunk
	i := start

	for i < len(lines) && strings.HasPrefix(lines[i], "@@") {
		hunk, err := parseHunkHeader(lines[i], path, i+1)
		if err != nil {
			return nil, 0, err
		}
		i++

		// Blank lines are context lines whose leading space was stripped.
		// Trailing ones are dropped: they only separate blocks.
		synthesized := 0
	body:
		for i < len(lines) {
			line := lines[i]
			switch {
			case isFileStart(lines, i), strings.HasPrefix(line, "@@"):
				break body
			case strings.HasPrefix(line, `\`):
				// "\ No newline at end of file"
			case line == "":
				hunk.Lines = append(hunk.Lines, " ")
				synthesized++
				i++
				continue
			case line[0] == ' ', line[0] == '-', line[0] == '+':
				hunk.Lines = append(hunk.Lines, line)
			default:
				break body
			}
			synthesized = 0
			i++
		}
		hunk.Lines = hunk.Lines[:len(hunk.Lines)-synthesized]
		hunks = append(hunks, hunk)
	}

	return hunks, i, nil
}

func parseHunkHeader(line, path string, lineNum int) (Hunk, error) {
	m := hunkHeaderRe.FindStringSubmatch(line)
	if m == nil {
		return Hunk{}, newError(ErrInvalidHunkHeader, path, lineNum, "%q", line)
	}

	oldStart, err := strconv.Atoi(m[1])
	if err != nil {
		return Hunk{}, newError(ErrInvalidHunkHeader, path, lineNum, "bad old start %q", m[1])
	}

	// "-N,0" inserts after line N; normalize to the line the insertion precedes
	if m[2] == "0" && oldStart > 0 {
		oldStart++
	}

	return Hunk{OldStart: oldStart}, nil
}

// isFileStart reports whether lines[i] opens a new file block
func isFileStart(lines []string, i int) bool {
	if strings.HasPrefix(lines[i], "diff --git ") {
		return true
	}
	return strings.HasPrefix(lines[i], "--- ") && i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ ")
}

// parseGitHeaderPaths extracts paths from "diff --git a/X b/Y"
func parseGitHeaderPaths(line string) (string, string) {
	rest := strings.TrimPrefix(line, "diff --git ")
	if strings.HasPrefix(rest, "a/") {
		if idx := strings.Index(rest, " b/"); idx >= 0 {
			return rest[2:idx], rest[idx+3:]
		}
	}
	fields := strings.Fields(rest)
	if len(fields) == 2 {
		return parsePathToken(fields[0], true), parsePathToken(fields[1], true)
	}
	return "", ""
}

// parsePathToken normalizes a header path: drops a trailing timestamp,
// unquotes C-style quoting and strips the a/ b/ prefixes.
func parsePathToken(raw string, stripPrefix bool) string {
	token := raw
	if idx := strings.IndexByte(token, '\t'); idx >= 0 {
		token = token[:idx]
	}
	token = strings.TrimSpace(token)

	if strings.HasPrefix(token, `"`) {
		if unquoted, err := strconv.Unquote(token); err == nil {
			token = unquoted
		}
	}

	if token == DevNull {
		return DevNull
	}
	if stripPrefix && (strings.HasPrefix(token, "a/") || strings.HasPrefix(token, "b/")) {
		token = token[2:]
	}
	return token
}

// splitDiffLines splits on \n, tolerating CRLF diff text
func splitDiffLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

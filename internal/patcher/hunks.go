package patcher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sokinpui/aipatch/model"
)

// ErrHunkNotFound is returned when a hunk's context cannot be located in the
// source.
var ErrHunkNotFound = errors.New("could not find matching block for a hunk")

// IsUnifiedDiff reports whether text looks like a unified diff: at least one
// "@@" hunk header followed by an added or removed line.
func IsUnifiedDiff(text string) bool {
	inHunk := false
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			inHunk = true
		case inHunk && (strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-")):
			return true
		}
	}
	return false
}

// getTargetBlock creates a "search pattern" from a diff hunk.
// It uses only lines that are guaranteed to be in the original source file
// (context ` ` and removed `-` lines). It also ignores empty lines to make
// matching more robust against whitespace-only changes.
func getTargetBlock(hunk []string) []string {
	var block []string
	for _, line := range hunk {
		if line == "" {
			continue
		}
		if line[0] != '-' && line[0] != ' ' {
			continue
		}
		if content := line[1:]; strings.TrimSpace(content) != "" {
			block = append(block, content)
		}
	}
	return block
}

// normalizeLineForMatching prepares a line for comparison by trimming whitespace
// and normalizing all internal whitespace sequences to a single space.
func normalizeLineForMatching(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

// matchBlock finds the index of the first line of block within source,
// looking no earlier than from. Empty lines on either side are skipped and
// lines are compared whitespace-normalized. It returns -1 when there is no
// match.
func matchBlock(source, block []string, from int) int {
	if len(block) == 0 {
		return -1
	}

	normalizedBlock := make([]string, len(block))
	for i, line := range block {
		normalizedBlock[i] = normalizeLineForMatching(line)
	}

	var filteredSource []string
	var originalIndexes []int
	for i := from; i < len(source); i++ {
		if normalized := normalizeLineForMatching(source[i]); normalized != "" {
			filteredSource = append(filteredSource, normalized)
			originalIndexes = append(originalIndexes, i)
		}
	}

	for i := 0; i <= len(filteredSource)-len(normalizedBlock); i++ {
		match := true
		for j := range normalizedBlock {
			if filteredSource[i+j] != normalizedBlock[j] {
				match = false
				break
			}
		}
		if match {
			return originalIndexes[i]
		}
	}
	return -1
}

// parseHunks splits the body of a unified diff into hunks, dropping file
// headers and anything that is not a hunk line. Inside a hunk a "---" or
// "+++" line is a removed or added line unless it opens the next file's
// header.
func parseHunks(diffLines []string) [][]string {
	var hunks [][]string
	var current []string
	inHunk := false

	for i := 0; i < len(diffLines); i++ {
		line := diffLines[i]
		if !inHunk && (strings.HasPrefix(line, "---") || strings.HasPrefix(line, "+++")) {
			continue
		}
		if inHunk && isFileHeader(diffLines[i:]) {
			if len(current) > 0 {
				hunks = append(hunks, current)
			}
			current = nil
			inHunk = false
			i++
			continue
		}
		if strings.HasPrefix(line, "@@") {
			if len(current) > 0 {
				hunks = append(hunks, current)
			}
			current = nil
			inHunk = true
			continue
		}
		if !inHunk {
			continue
		}
		if line == "" {
			// Chat models often strip the leading space of blank context lines.
			current = append(current, " ")
			continue
		}
		switch line[0] {
		case '+', '-', ' ':
			current = append(current, line)
		}
	}
	if len(current) > 0 {
		hunks = append(hunks, current)
	}
	return hunks
}

// isFileHeader reports whether lines start with a "--- "/"+++ " pair
// followed by a hunk header.
func isFileHeader(lines []string) bool {
	return len(lines) > 2 &&
		strings.HasPrefix(lines[0], "--- ") &&
		strings.HasPrefix(lines[1], "+++ ") &&
		strings.HasPrefix(lines[2], "@@")
}

// applyHunk rewrites the hunk starting at source[start]. It returns the
// replacement lines and the index just past the last consumed source line.
// Context lines keep the source's text; blank source lines the hunk did not
// mention are kept.
func applyHunk(source []string, start int, hunk []string) ([]string, int) {
	var replacement []string
	pos := start
	for _, line := range hunk {
		tag, content := line[0], line[1:]
		if tag == '+' {
			replacement = append(replacement, content)
			continue
		}

		if normalizeLineForMatching(content) == "" {
			if pos < len(source) && normalizeLineForMatching(source[pos]) == "" {
				if tag == ' ' {
					replacement = append(replacement, source[pos])
				}
				pos++
			}
			continue
		}
		for pos < len(source) && normalizeLineForMatching(source[pos]) == "" {
			replacement = append(replacement, source[pos])
			pos++
		}
		if pos < len(source) {
			if tag == ' ' {
				replacement = append(replacement, source[pos])
			}
			pos++
		}
	}
	return replacement, pos
}

// ApplyUnifiedDiff applies the hunks of a unified diff to source, locating
// each hunk by its content rather than by the line numbers in its header,
// which chat models rarely get right. It returns the patched lines and the
// range of original lines the hunks covered.
func ApplyUnifiedDiff(source []string, rawDiff string) ([]string, model.LineRange, error) {
	hunks := parseHunks(strings.Split(rawDiff, "\n"))
	if len(hunks) == 0 {
		return nil, model.LineRange{}, fmt.Errorf("no hunks found in diff")
	}

	lines := append([]string(nil), source...)
	covered := model.LineRange{Start: -1}
	from, shift := 0, 0

	for i, hunk := range hunks {
		block := getTargetBlock(hunk)
		start := len(lines)
		if len(block) > 0 {
			start = matchBlock(lines, block, from)
			if start < 0 {
				return nil, model.LineRange{}, fmt.Errorf("hunk %d: %w", i+1, ErrHunkNotFound)
			}
		}

		replacement, end := applyHunk(lines, start, hunk)

		origStart, origEnd := start-shift, end-shift
		if covered.Start < 0 {
			covered.Start = origStart + 1
		}
		covered.End = origEnd

		patched := make([]string, 0, len(lines)-(end-start)+len(replacement))
		patched = append(patched, lines[:start]...)
		patched = append(patched, replacement...)
		patched = append(patched, lines[end:]...)
		lines = patched

		shift += len(replacement) - (end - start)
		from = start + len(replacement)
	}

	return lines, covered, nil
}

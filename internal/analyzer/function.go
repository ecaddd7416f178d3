package analyzer

import (
	"strings"

	"github.com/sokinpui/aipatch/internal/classify"
	"github.com/sokinpui/aipatch/model"
)

// maxSignatureLines bounds how far below a declaration its opening brace may
// be.
const maxSignatureLines = 4

// LocateFunction finds the definition of the function called name in lines
// and returns its 1-based line range. Brace-delimited bodies end where the
// braces balance; other bodies end at the last line indented deeper than the
// declaration.
func LocateFunction(lines []string, name string) (model.LineRange, bool) {
	for i, line := range lines {
		if !strings.Contains(line, name) || classify.FunctionName(line) != name {
			continue
		}
		end, ok := braceEnd(lines, i)
		if !ok {
			end = indentEnd(lines, i)
		}
		return model.LineRange{Start: i + 1, End: end + 1}, true
	}
	return model.LineRange{}, false
}

// ExtendOverComments widens rng upwards over the comment lines directly
// above it.
func ExtendOverComments(lines []string, rng model.LineRange) model.LineRange {
	for rng.Start > 1 && isComment(lines[rng.Start-2]) {
		rng.Start--
	}
	return rng
}

func startsWithComment(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			return isComment(line)
		}
	}
	return false
}

func isComment(line string) bool {
	t := strings.TrimSpace(line)
	for _, p := range []string{"//", "#", "/*", "*", "--", `"""`} {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}

// braceEnd returns the line on which the braces opened at or just below
// lines[start] balance. Quoted text and line comments are skipped.
func braceEnd(lines []string, start int) (int, bool) {
	depth := 0
	opened := false
	for j := start; j < len(lines); j++ {
		if !opened && j-start >= maxSignatureLines {
			return 0, false
		}
		var quote rune
		prev := rune(0)
	scan:
		for _, r := range lines[j] {
			switch {
			case quote != 0:
				if r == quote && prev != '\\' {
					quote = 0
				}
			case r == '"' || r == '\'' || r == '`':
				quote = r
			case r == '/' && prev == '/':
				break scan
			case r == '{':
				depth++
				opened = true
			case r == '}':
				depth--
			}
			prev = r
		}
		if opened && depth <= 0 {
			return j, true
		}
		if !opened {
			switch trimmed := strings.TrimSpace(lines[j]); {
			case j == start && strings.HasSuffix(trimmed, ";"):
				return j, true
			case strings.HasSuffix(trimmed, ":"):
				return 0, false
			}
		}
	}
	if opened {
		return len(lines) - 1, true
	}
	return 0, false
}

// indentEnd returns the last line below lines[start] that is indented deeper
// than it, ignoring trailing blank lines.
func indentEnd(lines []string, start int) int {
	base := indentWidth(lines[start])
	last := start
	for j := start + 1; j < len(lines); j++ {
		if strings.TrimSpace(lines[j]) == "" {
			continue
		}
		if indentWidth(lines[j]) <= base {
			break
		}
		last = j
	}
	return last
}

func indentWidth(line string) int {
	w := 0
	for _, r := range line {
		switch r {
		case ' ':
			w++
		case '\t':
			w += 4
		default:
			return w
		}
	}
	return w
}

// Package patcher rebuilds file content from a line diff and applies edits to
// a target range of an existing file.
package patcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sokinpui/aipatch/internal/diff"
	"github.com/sokinpui/aipatch/model"
)

var fencedCodeRegex = regexp.MustCompile("(?s)(?:^|\\n)[ \\t]*(```|~~~)[^\\n]*\\n(.*?)\\n?[ \\t]*```")

// Reconstruct returns prefix, the kept (New and Same) diff lines joined by
// newlines, and suffix, concatenated.
func Reconstruct(prefix string, lines []model.DiffLine, suffix string) string {
	return prefix + strings.Join(diff.NewLines(lines), "\n") + suffix
}

// Summarize renders diff counts as "+added -removed ~unchanged lines".
func Summarize(c diff.Counts) string {
	return fmt.Sprintf("+%d -%d ~%d lines", c.Added, c.Removed, c.Unchanged)
}

// Confidence scores how targeted an edit looks. An edit that leaves most of
// the lines it touches alone scores higher than a wholesale rewrite.
func Confidence(c diff.Counts) int {
	changed := c.Added + c.Removed
	if changed == 0 {
		return 100
	}
	score := 40 + 60*c.Unchanged/(c.Unchanged+changed)
	if score > 100 {
		score = 100
	}
	return score
}

// SplitLines splits content into lines and reports whether it ended with a
// newline. Empty content has no lines.
func SplitLines(content string) ([]string, bool) {
	if content == "" {
		return nil, false
	}
	content = strings.ReplaceAll(content, "\r\n", "\n")
	trailing := strings.HasSuffix(content, "\n")
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n"), trailing
}

// ExtractCode returns the body of the first fenced block in request, or the
// whole request when it has none.
func ExtractCode(request string) string {
	if m := fencedCodeRegex.FindStringSubmatch(request); m != nil {
		return m[2]
	}
	return strings.TrimSuffix(request, "\n")
}

// ApplyEdit applies editRequest to originalContent. The request is either
// replacement code (bare or fenced) for targetRange, or a unified diff. With
// no range the whole file is replaced. A range whose End is before its Start
// is an insertion point: the new lines are inserted before Start and take the
// indentation of the line above.
func ApplyEdit(originalContent, editRequest string, targetRange *model.LineRange) model.EditResult {
	lines, trailing := SplitLines(originalContent)

	code := ExtractCode(editRequest)
	if IsUnifiedDiff(code) {
		if patched, _, err := ApplyUnifiedDiff(lines, code); err == nil {
			return build(nil, diff.Lines(lines, patched), nil, trailing)
		}
	}

	var replacement []string
	if code != "" {
		replacement = strings.Split(code, "\n")
	}
	return Splice(lines, replacement, targetRange, trailing)
}

// Splice replaces the lines selected by rng with replacement and diffs the
// selection against it. A nil rng selects every line.
func Splice(lines, replacement []string, rng *model.LineRange, trailingNewline bool) model.EditResult {
	start, end := 0, len(lines)
	insertion := false
	if rng != nil {
		start = clamp(rng.Start-1, 0, len(lines))
		if rng.IsInsertion() {
			end = start
			insertion = true
		} else {
			end = clamp(rng.End, start, len(lines))
		}
	}

	prefix, selected, suffix := lines[:start], lines[start:end], lines[end:]
	if insertion && len(prefix) > 0 {
		replacement = Reindent(replacement, indentation(prefix[len(prefix)-1]))
	}
	return build(prefix, diff.Lines(selected, replacement), suffix, trailingNewline)
}

func build(prefix []string, lines []model.DiffLine, suffix []string, trailingNewline bool) model.EditResult {
	var head, tail string
	if len(prefix) > 0 {
		head = strings.Join(prefix, "\n") + "\n"
	}
	if len(suffix) > 0 {
		tail = "\n" + strings.Join(suffix, "\n")
	}

	kept := diff.NewLines(lines)
	content := Reconstruct(head, lines, tail)
	switch {
	case len(kept) == 0 && len(prefix) > 0 && len(suffix) > 0:
		// Both separators are present; drop one so no empty line appears.
		content = head + strings.Join(suffix, "\n")
	case len(kept) == 0 && len(prefix) > 0:
		content = strings.TrimSuffix(head, "\n")
	case len(kept) == 0 && len(suffix) > 0:
		content = strings.TrimPrefix(tail, "\n")
	}
	if trailingNewline && content != "" {
		content += "\n"
	}

	counts := diff.Count(lines)
	return model.EditResult{
		DiffLines:  lines,
		NewContent: content,
		Summary:    Summarize(counts),
		Confidence: Confidence(counts),
	}
}

// Reindent shifts lines so their common indentation becomes indent, keeping
// their relative indentation. Blank lines are left empty.
func Reindent(lines []string, indent string) []string {
	common := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		ind := indentation(line)
		if first {
			common, first = ind, false
			continue
		}
		common = commonPrefix(common, ind)
	}

	out := make([]string, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			out[i] = ""
			continue
		}
		out[i] = indent + strings.TrimPrefix(line, common)
	}
	return out
}

func indentation(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

func commonPrefix(a, b string) string {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/sokinpui/aipatch/model"
)

// --- Summaries ---

func list(c func(string, ...interface{}), title string, paths []string) {
	if len(paths) == 0 {
		return
	}
	c(title, len(paths))
	for _, p := range paths {
		Path("- %s", p)
	}
}

// PrintAnalysis reports how the blocks of a response were classified and which
// file changes were found.
func PrintAnalysis(res model.AnalysisResult) {
	a := res.Analysis
	Header("\n--- Analysis ---")
	Info("%d block(s): %d actionable, %d example(s), %d explanation(s)",
		a.TotalBlocks, a.ActionableBlocks, a.Examples, a.Explanations)

	if len(res.FileChanges) == 0 {
		Info("No file changes found.")
		return
	}
	for _, c := range res.FileChanges {
		line := fmt.Sprintf("%-6s %s (confidence %d)", c.ChangeType, c.Path, c.Confidence)
		if c.LineRange != nil {
			line += fmt.Sprintf(" lines %d-%d", c.LineRange.Start, c.LineRange.End)
		}
		Success("%s", line)
		for _, r := range c.Reasoning {
			Path("- %s", r)
		}
	}
}

// PrintApplySummary reports the outcome of applying candidates.
func PrintApplySummary(s model.Summary) {
	Header("\n--- Update Summary ---")
	if s.Message != "" {
		Info("%s", s.Message)
	}

	if len(s.Created) == 0 && len(s.Modified) == 0 && len(s.Deleted) == 0 && len(s.Failed) == 0 {
		Info("No files were updated.")
		return
	}
	list(Success, "Created %d new file(s):", s.Created)
	list(Success, "Modified %d file(s):", s.Modified)
	list(Success, "Deleted %d file(s):", s.Deleted)
	list(Error, "Failed to process %d file(s):", s.Failed)

	failed := make([]string, 0, len(s.Errors))
	for path := range s.Errors {
		failed = append(failed, path)
	}
	sort.Strings(failed)
	for _, path := range failed {
		Error("  %s: %v", path, s.Errors[path])
	}
}

// RenderPreview renders a line diff of oldContent against newContent, with
// at most context unchanged lines kept around each change.
func RenderPreview(oldContent, newContent string, context int) string {
	dmp := diffmatchpatch.New()
	chars1, chars2, lines := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(chars1, chars2, false), lines)

	type row struct {
		op   diffmatchpatch.Operation
		text string
	}
	var rows []row
	for _, d := range diffs {
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			rows = append(rows, row{op: d.Type, text: strings.TrimSuffix(line, "\n")})
		}
	}

	keep := make([]bool, len(rows))
	for i, r := range rows {
		if r.op == diffmatchpatch.DiffEqual {
			continue
		}
		for j := max(0, i-context); j <= min(len(rows)-1, i+context); j++ {
			keep[j] = true
		}
	}

	var b strings.Builder
	skipped := false
	for i, r := range rows {
		if !keep[i] {
			skipped = true
			continue
		}
		if skipped {
			b.WriteString("  ...\n")
			skipped = false
		}
		switch r.op {
		case diffmatchpatch.DiffInsert:
			b.WriteString(AddedColor.Sprint("+ " + r.text))
		case diffmatchpatch.DiffDelete:
			b.WriteString(RemovedColor.Sprint("- " + r.text))
		default:
			b.WriteString("  " + r.text)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// --- Progress Bar ---

type ProgressBar struct {
	total   int
	prefix  string
	current int
}

func NewProgressBar(total int, prefix string) *ProgressBar {
	return &ProgressBar{total: total, prefix: prefix}
}

func (p *ProgressBar) Start() {
	p.draw()
}

// Set moves the bar to current.
func (p *ProgressBar) Set(current int) {
	p.current = current
	p.draw()
}

func (p *ProgressBar) Finish() {
	mu.Lock()
	defer mu.Unlock()
	if !quiet {
		fmt.Fprintln(out)
	}
}

func (p *ProgressBar) draw() {
	if p.total == 0 {
		return
	}
	const barLength = 40
	percent := float64(p.current) / float64(p.total)
	filledLength := int(percent * barLength)
	bar := strings.Repeat("█", filledLength) + strings.Repeat("-", barLength-filledLength)

	percentStr := fmt.Sprintf("%.1f%%", percent*100)
	countStr := fmt.Sprintf("[%d/%d]", p.current, p.total)

	mu.Lock()
	defer mu.Unlock()
	if !quiet {
		fmt.Fprintf(out, "\r%s |%s| %s %s", p.prefix, bar, countStr, percentStr)
	}
}

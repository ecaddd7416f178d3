// Package analyzer turns a chat response into file change candidates.
package analyzer

import (
	"fmt"
	"math"
	"path"
	"strings"

	"github.com/sokinpui/aipatch/internal/changetype"
	"github.com/sokinpui/aipatch/internal/classify"
	"github.com/sokinpui/aipatch/internal/config"
	"github.com/sokinpui/aipatch/internal/diff"
	"github.com/sokinpui/aipatch/internal/naming"
	"github.com/sokinpui/aipatch/internal/parser"
	"github.com/sokinpui/aipatch/internal/patcher"
	"github.com/sokinpui/aipatch/internal/ui"
	"github.com/sokinpui/aipatch/model"
)

// DiffExtension selects unified diff fragments in an extension filter.
const DiffExtension = ".diff"

// FileReader is the part of a file store the analyzer reads through.
type FileReader interface {
	Exists(path string) bool
	Read(path string) (string, error)
}

// Analyzer runs the extraction, naming, classification and patch pipeline.
type Analyzer struct {
	files      FileReader
	extract    parser.Options
	names      *naming.Resolver
	classifier *classify.Classifier
	changes    *changetype.Resolver
	extensions map[string]struct{}
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithExtensions keeps only candidates whose path has one of exts. Entries
// must carry a leading dot; DiffExtension selects diff fragments.
func WithExtensions(exts []string) Option {
	return func(a *Analyzer) {
		if len(exts) == 0 {
			return
		}
		a.extensions = make(map[string]struct{}, len(exts))
		for _, ext := range exts {
			a.extensions[strings.ToLower(ext)] = struct{}{}
		}
	}
}

// WithResolver replaces the filename resolver.
func WithResolver(r *naming.Resolver) Option {
	return func(a *Analyzer) { a.names = r }
}

// WithClassifier replaces the actionability classifier.
func WithClassifier(c *classify.Classifier) Option {
	return func(a *Analyzer) { a.classifier = c }
}

// New creates an Analyzer reading existing files through files.
func New(files FileReader, th config.Thresholds, opts ...Option) *Analyzer {
	th = th.WithDefaults()
	a := &Analyzer{
		files:      files,
		extract:    parser.OptionsFrom(th),
		names:      naming.NewResolver(th),
		classifier: classify.New(th),
		changes:    changetype.New(files),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeResponse extracts every code fragment from text and returns the
// actionable ones as file change candidates, in the order they appear. It
// never fails: fragments that cannot become candidates are counted and
// skipped.
func (a *Analyzer) AnalyzeResponse(text string) model.AnalysisResult {
	fragments := parser.Extract(text, a.extract)
	result := model.AnalysisResult{
		FileChanges: []model.FileChangeCandidate{},
		Analysis:    model.Analysis{TotalBlocks: len(fragments)},
	}
	byPath := make(map[string]int)

	for i, frag := range fragments {
		name := a.names.Resolve(frag, text, i)
		in := a.classifier.InputFor(frag, text, !name.Generated())
		verdict := a.classifier.Classify(in)

		switch verdict.Class {
		case classify.Actionable:
			result.Analysis.ActionableBlocks++
		case classify.Exemplar:
			result.Analysis.Examples++
			continue
		default:
			result.Analysis.Explanations++
			continue
		}

		if !a.selected(name.Filename, frag) {
			continue
		}

		candidate, ok := a.candidate(frag, name, verdict, in.Before+"\n"+in.After, result.FileChanges, byPath)
		if !ok {
			continue
		}
		if prev, seen := byPath[candidate.Path]; seen {
			result.FileChanges[prev] = merge(result.FileChanges[prev], candidate)
			continue
		}
		byPath[candidate.Path] = len(result.FileChanges)
		result.FileChanges = append(result.FileChanges, candidate)
	}
	return result
}

func (a *Analyzer) selected(filename string, frag model.CodeFragment) bool {
	if a.extensions == nil {
		return true
	}
	if isDiffFragment(frag) {
		_, ok := a.extensions[DiffExtension]
		return ok
	}
	_, ok := a.extensions[strings.ToLower(path.Ext(filename))]
	return ok
}

// candidate builds the change for one actionable fragment. Content already
// proposed for the same path by an earlier fragment is used as the base, so
// successive edits to one file compose.
func (a *Analyzer) candidate(
	frag model.CodeFragment,
	name naming.Resolution,
	verdict classify.Result,
	surrounding string,
	earlier []model.FileChangeCandidate,
	byPath map[string]int,
) (model.FileChangeCandidate, bool) {
	decision, ok := a.changes.Resolve(name.Filename, frag, surrounding)
	if !ok {
		return model.FileChangeCandidate{}, false
	}
	ct := decision.Type

	c := model.FileChangeCandidate{
		Path:       name.Filename,
		ChangeType: ct,
		Confidence: verdict.Confidence,
		Reasoning:  append([]string(nil), verdict.Reasoning...),
	}
	if name.Generated() {
		c.Reasoning = append(c.Reasoning, fmt.Sprintf("filename generated from language %q", frag.Language))
	} else {
		c.Reasoning = append(c.Reasoning, fmt.Sprintf("filename from %s", name.Source))
	}
	if decision.Cue != "" {
		c.Reasoning = append(c.Reasoning, fmt.Sprintf("delete cue %q", decision.Cue))
	}

	switch ct {
	case model.Create:
		if !isDiffFragment(frag) {
			c.Content = withTrailingNewline(frag.Content)
			return c, true
		}
		// A diff against a missing file only adds lines.
		created, _, err := patcher.ApplyUnifiedDiff(nil, frag.Content)
		if err != nil {
			ui.Warning("Skipping diff for %s: %v", c.Path, err)
			return c, false
		}
		c.Content = joinLines(created, true)
		return c, true
	case model.Delete:
		original, err := a.files.Read(c.Path)
		if err != nil {
			ui.Warning("Skipping %s: %v", c.Path, err)
			return c, false
		}
		c.OriginalContent = original
		return c, true
	}

	original, err := a.files.Read(c.Path)
	if err != nil {
		ui.Warning("Skipping %s: %v", c.Path, err)
		return c, false
	}
	c.OriginalContent = original

	base := original
	if prev, seen := byPath[c.Path]; seen && earlier[prev].ChangeType == model.Update {
		base = earlier[prev].Content
	}
	return a.update(c, frag, base)
}

// update fills in the content of an Update candidate by patching base with
// the fragment: as a unified diff, as a single function spliced over its old
// definition, or as a whole-file replacement.
func (a *Analyzer) update(c model.FileChangeCandidate, frag model.CodeFragment, base string) (model.FileChangeCandidate, bool) {
	lines, trailing := patcher.SplitLines(base)

	if isDiffFragment(frag) {
		patched, rng, err := patcher.ApplyUnifiedDiff(lines, frag.Content)
		if err != nil {
			ui.Warning("Skipping diff for %s: %v", c.Path, err)
			return c, false
		}
		c.Content = joinLines(patched, trailing)
		c.LineRange = &rng
		summary := patcher.Summarize(diff.Count(diff.Lines(lines, patched)))
		c.Reasoning = append(c.Reasoning, fmt.Sprintf("unified diff applied to lines %d-%d (%s)", rng.Start, rng.End, summary))
		return c, true
	}

	replacement := strings.Split(strings.TrimSuffix(frag.Content, "\n"), "\n")
	if name := classify.FunctionName(frag.Content); name != "" && classify.IsSmallFunction(frag.Content, math.MaxInt) {
		if rng, ok := LocateFunction(lines, name); ok {
			if startsWithComment(frag.Content) {
				rng = ExtendOverComments(lines, rng)
			}
			res := patcher.Splice(lines, replacement, &rng, trailing)
			c.Content = res.NewContent
			c.LineRange = &rng
			c.Reasoning = append(c.Reasoning, fmt.Sprintf("function %s patched in lines %d-%d (%s)", name, rng.Start, rng.End, res.Summary))
			return c, true
		}
	}

	res := patcher.Splice(lines, replacement, nil, trailing)
	c.Content = res.NewContent
	c.Reasoning = append(c.Reasoning, fmt.Sprintf("replaces whole file (%s)", res.Summary))
	return c, true
}

// merge folds a later candidate for the same path into an earlier one. The
// later content wins; it was built on top of the earlier one when both are
// updates.
func merge(prev, next model.FileChangeCandidate) model.FileChangeCandidate {
	out := next
	if prev.OriginalContent != "" {
		out.OriginalContent = prev.OriginalContent
	}
	if prev.ChangeType == model.Update && next.ChangeType == model.Update {
		out.LineRange = nil
	}
	out.Confidence = max(prev.Confidence, next.Confidence)
	out.Reasoning = append(append([]string(nil), prev.Reasoning...), next.Reasoning...)
	return out
}

func isDiffFragment(frag model.CodeFragment) bool {
	switch frag.Language {
	case "diff", "patch", "udiff":
		return true
	}
	return patcher.IsUnifiedDiff(frag.Content)
}

func joinLines(lines []string, trailingNewline bool) string {
	s := strings.Join(lines, "\n")
	if trailingNewline && s != "" {
		s += "\n"
	}
	return s
}

func withTrailingNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

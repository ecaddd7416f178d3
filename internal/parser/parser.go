package parser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sokinpui/aipatch/internal/config"
	"github.com/sokinpui/aipatch/model"
)

var (
	// fileHeaderRegex finds a "Create path/to/file.ext:" line immediately
	// followed by a fenced block. A single blank line between the two is
	// tolerated.
	fileHeaderRegex = regexp.MustCompile(
		`(?im)\b(?P<verb>create|update|modify|add)[ \t]+` +
			"[*`]*" + `(?P<path>[^\s*` + "`" + `:]+)` + "[*`]*" + `[ \t]*:[ \t]*\n(?:[ \t]*\n)?` +
			`[ \t]*(?P<fence>` + "```" + `)(?P<info>[^\n]*)\n` +
			`(?P<content>[\s\S]*?)` +
			`^[ \t]*` + "```" + `[ \t]*$`)
)

// Options controls fragment filtering.
type Options struct {
	// MinLength is the trimmed content length a fragment must exceed.
	MinLength int
	// DedupPrefixLength is how much of the content takes part in duplicate
	// detection.
	DedupPrefixLength int
}

// OptionsFrom builds extraction options from pipeline thresholds.
func OptionsFrom(th config.Thresholds) Options {
	th = th.WithDefaults()
	return Options{
		MinLength:         th.MinFragmentLength,
		DedupPrefixLength: th.DedupPrefixLength,
	}
}

type span struct{ start, end int }

// Extract parses response text into code fragments. Blocks introduced by a
// file header take priority over generic fenced blocks, and a block is never
// captured twice. Fragments are returned in document order.
func Extract(content string, opts Options) []model.CodeFragment {
	if opts.MinLength == 0 && opts.DedupPrefixLength == 0 {
		opts = OptionsFrom(config.Defaults())
	}

	seen := make(map[string]struct{})
	var fragments []model.CodeFragment
	add := func(f model.CodeFragment) bool {
		if len(strings.TrimSpace(f.Content)) <= opts.MinLength {
			return false
		}
		key := dedupKey(f, opts.DedupPrefixLength)
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
		fragments = append(fragments, f)
		return true
	}

	headerFragments, covered := parseFileHeaders(content)
	for _, f := range headerFragments {
		add(f)
	}

	blocks, err := extractFencedBlocks([]byte(content))
	if err == nil {
		for _, b := range blocks {
			if within(b.Offset, covered) {
				continue
			}
			add(model.CodeFragment{
				Content:       b.Content,
				Language:      b.Lang,
				InlineComment: b.Comment,
				SourceOffset:  b.Offset,
				SourceEnd:     b.End,
			})
		}
	}

	sort.SliceStable(fragments, func(i, j int) bool {
		return fragments[i].SourceOffset < fragments[j].SourceOffset
	})
	return fragments
}

// parseFileHeaders runs the file-header pass and reports the text spans it
// consumed.
func parseFileHeaders(content string) ([]model.CodeFragment, []span) {
	var fragments []model.CodeFragment
	var covered []span

	names := fileHeaderRegex.SubexpNames()
	for _, idx := range fileHeaderRegex.FindAllStringSubmatchIndex(content, -1) {
		groups := make(map[string]string, len(names))
		starts := make(map[string]int, len(names))
		for i, name := range names {
			if i == 0 || name == "" || idx[2*i] < 0 {
				continue
			}
			groups[name] = content[idx[2*i]:idx[2*i+1]]
			starts[name] = idx[2*i]
		}

		lang, comment := splitInfo(groups["info"])
		fragments = append(fragments, model.CodeFragment{
			Content:       strings.TrimRight(groups["content"], "\n"),
			Language:      lang,
			Filename:      strings.TrimSpace(groups["path"]),
			ActionHint:    strings.ToLower(groups["verb"]),
			InlineComment: comment,
			SourceOffset:  starts["fence"],
			SourceEnd:     idx[1],
		})
		covered = append(covered, span{start: idx[0], end: idx[1]})
	}
	return fragments, covered
}

func within(offset int, spans []span) bool {
	for _, s := range spans {
		if offset >= s.start && offset < s.end {
			return true
		}
	}
	return false
}

func dedupKey(f model.CodeFragment, prefixLen int) string {
	prefix := f.Content
	if prefixLen > 0 && len(prefix) > prefixLen {
		prefix = prefix[:prefixLen]
	}
	return prefix + "\x00" + f.Language + "\x00" + f.Filename
}

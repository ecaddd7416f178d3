package naming

import (
	"regexp"
	"sort"
	"strings"
)

// Context is what a heuristic gets to look at.
type Context struct {
	// Window is the response text around the fragment.
	Window string
	// Pos is the fragment's position inside Window.
	Pos int
	// InlineComment is the trailing text of the opening fence line.
	InlineComment string
	// Language and Content describe the fragment itself.
	Language string
	Content  string
}

// Heuristic proposes filenames for a fragment. Candidates are returned in
// order of preference; the resolver keeps the first valid one.
type Heuristic struct {
	Name string
	Find func(ctx Context) []string
}

const (
	pathChars = `[\w./\-]+\.\w+`
	verbs     = `(?:create|update|modify|edit|add|replace|change|fix|rewrite)`
)

var (
	diffTargetRegex       = regexp.MustCompile(`(?m)^\+\+\+ (?:b/)?(\S+)`)
	verbBacktickRegex     = regexp.MustCompile("(?i)\\b" + verbs + `\s+(?:the\s+)?(?:file\s+)?` + "`([^`\\n]+)`")
	verbPathRegex         = regexp.MustCompile(`(?i)\b` + verbs + `\s+(?:the\s+)?(?:file\s+)?(` + `[\w.\-]+(?:/[\w.\-]+)+\.\w+` + `)`)
	boldRegex             = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	backtickRegex         = regexp.MustCompile("`([^`\\s]+)`")
	colonSuffixRegex      = regexp.MustCompile(`(?m)(` + pathChars + `)\s*:[ \t]*$`)
	heresYourRegex        = regexp.MustCompile(`(?i)here(?:'s|’s| is)\s+(?:your\s+|the\s+)?(?:updated\s+|new\s+|modified\s+|complete\s+)?(` + pathChars + `)`)
	forFileRegex          = regexp.MustCompile(`(?i)\bfor\s+(` + pathChars + `)`)
	addToRegex            = regexp.MustCompile(`(?i)\badd\b[^\n]{0,80}?\bto\s+(` + pathChars + `)`)
	updateFileRegex       = regexp.MustCompile(`(?i)\bupdate\s+(` + pathChars + `)`)
	leadingCommentMarkers = []string{"//", "#", "--", "/*", "<!--", ";"}
)

// DefaultHeuristics returns the built-in heuristics in evaluation order.
func DefaultHeuristics() []Heuristic {
	return []Heuristic{
		{Name: "diff-header", Find: diffHeader},
		{Name: "verb-backtick", Find: nearest(verbBacktickRegex)},
		{Name: "verb-path", Find: nearest(verbPathRegex)},
		{Name: "bold", Find: nearest(boldRegex)},
		{Name: "backtick", Find: nearest(backtickRegex)},
		{Name: "colon-suffix", Find: nearest(colonSuffixRegex)},
		{Name: "fence-comment", Find: fenceComment},
		{Name: "first-line-comment", Find: firstLineComment},
		{Name: "heres-your", Find: nearest(heresYourRegex)},
		{Name: "for-file", Find: nearest(forFileRegex)},
		{Name: "add-to", Find: nearest(addToRegex)},
		{Name: "update-file", Find: nearest(updateFileRegex)},
	}
}

// nearest returns a heuristic yielding the first capture group of every
// match of re, closest to the fragment first. Ties go to text before the
// fragment.
func nearest(re *regexp.Regexp) func(Context) []string {
	return func(ctx Context) []string {
		type hit struct {
			name string
			dist int
		}
		var hits []hit
		for _, m := range re.FindAllStringSubmatchIndex(ctx.Window, -1) {
			if len(m) < 4 || m[2] < 0 {
				continue
			}
			dist := ctx.Pos - m[1]
			if m[0] >= ctx.Pos {
				dist = m[0] - ctx.Pos
			}
			if dist < 0 {
				dist = 0
			}
			hits = append(hits, hit{name: ctx.Window[m[2]:m[3]], dist: dist})
		}
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

		names := make([]string, len(hits))
		for i, h := range hits {
			names[i] = h.name
		}
		return names
	}
}

func diffHeader(ctx Context) []string {
	lang := strings.ToLower(ctx.Language)
	if lang != "diff" && lang != "patch" && !strings.HasPrefix(ctx.Content, "--- ") {
		return nil
	}
	if m := diffTargetRegex.FindStringSubmatch(ctx.Content); len(m) > 1 && m[1] != "/dev/null" {
		return []string{m[1]}
	}
	return nil
}

func fenceComment(ctx Context) []string {
	if ctx.InlineComment == "" {
		return nil
	}
	var names []string
	for _, field := range strings.Fields(ctx.InlineComment) {
		field = strings.TrimPrefix(field, "title=")
		names = append(names, strings.Trim(field, `"'`+"`"))
	}
	return names
}

// firstLineComment reads a "// path/to/file.ext" comment on the first line
// of the block, a convention most chat models follow.
func firstLineComment(ctx Context) []string {
	first, _, _ := strings.Cut(ctx.Content, "\n")
	first = strings.TrimSpace(first)
	for _, m := range leadingCommentMarkers {
		if strings.HasPrefix(first, m) {
			rest := strings.TrimSpace(strings.TrimPrefix(first, m))
			rest = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(rest, "-->"), "*/"))
			rest = strings.TrimPrefix(rest, "File:")
			rest = strings.TrimPrefix(rest, "file:")
			fields := strings.Fields(rest)
			if len(fields) == 1 {
				return fields
			}
			return nil
		}
	}
	return nil
}

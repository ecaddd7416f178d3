// Package naming infers target file paths for code fragments.
package naming

import (
	"path"
	"strings"

	"github.com/sokinpui/aipatch/internal/config"
	"github.com/sokinpui/aipatch/model"
)

// SourceGenerated marks a name that was made up from the fragment language.
const SourceGenerated = "generated"

// SourceExplicit marks a name that came with the fragment itself.
const SourceExplicit = "explicit"

// Resolution is the outcome of resolving a fragment's filename.
type Resolution struct {
	Filename string
	// Source names the heuristic that produced Filename.
	Source string
}

// Generated reports whether the name was fabricated rather than found.
func (r Resolution) Generated() bool {
	return r.Source == SourceGenerated
}

// Resolver runs an ordered list of heuristics over the text around a
// fragment, falling back to a deterministic generated name.
type Resolver struct {
	heuristics   []Heuristic
	windowBefore int
	windowAfter  int
	maxLength    int
}

// NewResolver creates a resolver. With no heuristics, DefaultHeuristics is used.
func NewResolver(th config.Thresholds, heuristics ...Heuristic) *Resolver {
	th = th.WithDefaults()
	if len(heuristics) == 0 {
		heuristics = DefaultHeuristics()
	}
	return &Resolver{
		heuristics:   heuristics,
		windowBefore: th.FilenameWindowBefore,
		windowAfter:  th.FilenameWindowAfter,
		maxLength:    th.MaxFilenameLength,
	}
}

// Resolve picks a filename for fragment, which is the index-th fragment of
// response. It never fails: when nothing in the text names a file, a name is
// generated from the fragment's language.
func (r *Resolver) Resolve(fragment model.CodeFragment, response string, index int) Resolution {
	if name := clean(fragment.Filename); name != "" && IsValid(name, r.maxLength) {
		return Resolution{Filename: name, Source: SourceExplicit}
	}

	window, pos := Window(response, fragment.SourceOffset, r.windowBefore, r.windowAfter)
	ctx := Context{
		Window:        window,
		Pos:           pos,
		InlineComment: fragment.InlineComment,
		Language:      fragment.Language,
		Content:       fragment.Content,
	}
	for _, h := range r.heuristics {
		for _, candidate := range h.Find(ctx) {
			if name := clean(candidate); IsValid(name, r.maxLength) {
				return Resolution{Filename: name, Source: h.Name}
			}
		}
	}

	return Resolution{Filename: Generate(fragment.Language, index), Source: SourceGenerated}
}

// Window cuts the text from before bytes ahead of offset to after bytes past
// it and returns the offset's position inside the cut.
func Window(text string, offset, before, after int) (string, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(text) {
		offset = len(text)
	}
	start := offset - before
	if start < 0 {
		start = 0
	}
	end := offset + after
	if end > len(text) {
		end = len(text)
	}
	return text[start:end], offset - start
}

func clean(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, "`*\"'()[],")
	name = strings.TrimPrefix(name, "./")
	return strings.TrimRight(name, ".")
}

// IsValid reports whether name can be used as a target filename: it has a
// recognized extension, is at most maxLength bytes and holds no characters
// that are illegal in paths.
func IsValid(name string, maxLength int) bool {
	if maxLength <= 0 {
		maxLength = config.DefaultMaxFilenameLength
	}
	if name == "" || len(name) > maxLength || !strings.Contains(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `<>:"|?*`) || strings.ContainsAny(name, " \t\n") {
		return false
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	_, ok := knownExtensions[ext]
	return ok
}

// Generate builds a conventional filename for a language, cycling through
// the usual names for that language by index.
func Generate(language string, index int) string {
	ext := CanonicalExtension(language)
	names, ok := conventionalNames[ext]
	if !ok {
		names = []string{"main." + ext}
	}
	if index < 0 {
		index = -index
	}
	return names[index%len(names)]
}

// CanonicalExtension maps a fence language to a file extension. Unknown
// languages map to "txt".
func CanonicalExtension(language string) string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if ext, ok := languageExtensions[lang]; ok {
		return ext
	}
	if _, ok := knownExtensions[lang]; ok && lang != "" {
		return lang
	}
	return "txt"
}

var knownExtensions = toSet(
	"js", "jsx", "mjs", "cjs", "ts", "tsx", "py", "pyi", "rb", "go", "rs",
	"java", "kt", "kts", "scala", "swift", "m", "mm", "c", "h", "cc", "cpp",
	"cxx", "hpp", "cs", "php", "html", "htm", "css", "scss", "sass", "less",
	"vue", "svelte", "json", "jsonc", "yaml", "yml", "toml", "ini", "cfg",
	"conf", "xml", "md", "mdx", "sql", "sh", "bash", "zsh", "fish", "ps1",
	"lua", "dart", "r", "pl", "ex", "exs", "erl", "hs", "ml", "clj", "elm",
	"gradle", "tf", "proto", "graphql", "gql", "env", "txt", "mod", "sum",
	"diff", "patch", "dockerfile", "mk", "cmake", "zig", "nim", "vim",
)

var languageExtensions = map[string]string{
	"javascript": "js",
	"node":       "js",
	"typescript": "ts",
	"python":     "py",
	"python3":    "py",
	"golang":     "go",
	"rust":       "rs",
	"ruby":       "rb",
	"kotlin":     "kt",
	"csharp":     "cs",
	"c#":         "cs",
	"c++":        "cpp",
	"shell":      "sh",
	"console":    "sh",
	"powershell": "ps1",
	"markdown":   "md",
	"yml":        "yaml",
	"jsonc":      "json",
	"text":       "txt",
	"plaintext":  "txt",
	"react":      "jsx",
	"terraform":  "tf",
}

var conventionalNames = map[string][]string{
	"js":   {"app.js", "index.js", "server.js", "script.js"},
	"jsx":  {"App.jsx", "index.jsx", "Component.jsx"},
	"ts":   {"index.ts", "app.ts", "main.ts", "server.ts"},
	"tsx":  {"App.tsx", "index.tsx", "Component.tsx"},
	"py":   {"main.py", "app.py", "utils.py", "script.py"},
	"go":   {"main.go", "handler.go", "server.go", "utils.go"},
	"rs":   {"main.rs", "lib.rs", "mod.rs"},
	"java": {"Main.java", "App.java", "Application.java"},
	"rb":   {"app.rb", "main.rb", "script.rb"},
	"html": {"index.html", "page.html"},
	"css":  {"styles.css", "style.css", "main.css"},
	"scss": {"styles.scss", "main.scss"},
	"json": {"config.json", "package.json", "data.json"},
	"yaml": {"config.yaml", "docker-compose.yaml"},
	"sql":  {"schema.sql", "query.sql", "migration.sql"},
	"sh":   {"script.sh", "setup.sh", "run.sh"},
	"md":   {"README.md", "NOTES.md"},
	"c":    {"main.c", "utils.c"},
	"cpp":  {"main.cpp", "utils.cpp"},
	"cs":   {"Program.cs", "App.cs"},
	"php":  {"index.php", "app.php"},
	"txt":  {"snippet.txt", "notes.txt"},
}

func toSet(items ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

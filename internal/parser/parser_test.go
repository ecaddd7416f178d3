package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFileHeader(t *testing.T) {
	content := "Create utils/math.js:\n```js\nfunction add(a,b){return a+b;}\n```"

	fragments := Extract(content, Options{})
	require.Len(t, fragments, 1)

	f := fragments[0]
	assert.Equal(t, "utils/math.js", f.Filename)
	assert.Equal(t, "js", f.Language)
	assert.Equal(t, "create", f.ActionHint)
	assert.Equal(t, "function add(a,b){return a+b;}", f.Content)
	assert.Equal(t, strings.Index(content, "```"), f.SourceOffset)
}

func TestExtractHeaderVariants(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		filename string
		verb     string
	}{
		{
			name:     "backticked path",
			content:  "Update `src/app.ts`:\n```ts\nexport const app = createApp();\n```",
			filename: "src/app.ts",
			verb:     "update",
		},
		{
			name:     "bold path with blank line",
			content:  "MODIFY **main.go**:\n\n```go\npackage main\n\nfunc main() {}\n```",
			filename: "main.go",
			verb:     "modify",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fragments := Extract(tt.content, Options{})
			require.Len(t, fragments, 1)
			assert.Equal(t, tt.filename, fragments[0].Filename)
			assert.Equal(t, tt.verb, fragments[0].ActionHint)
		})
	}
}

func TestExtractGenericBlocks(t *testing.T) {
	content := strings.Join([]string{
		"Some prose first.",
		"",
		"```python # app/models.py",
		"class User:",
		"    pass",
		"```",
		"",
		"And a second one:",
		"",
		"```go",
		"func main() { run() }",
		"```",
	}, "\n")

	fragments := Extract(content, Options{})
	require.Len(t, fragments, 2)

	assert.Equal(t, "python", fragments[0].Language)
	assert.Equal(t, "app/models.py", fragments[0].InlineComment)
	assert.Equal(t, "class User:\n    pass", fragments[0].Content)
	assert.Empty(t, fragments[0].Filename)
	assert.Empty(t, fragments[0].ActionHint)

	assert.Equal(t, "go", fragments[1].Language)
	assert.Less(t, fragments[0].SourceOffset, fragments[1].SourceOffset)
	assert.Equal(t, "```go", content[fragments[1].SourceOffset:fragments[1].SourceOffset+5])
}

func TestExtractDoesNotRecaptureHeaderBlocks(t *testing.T) {
	content := "Update server.js:\n```js\nconst port = process.env.PORT;\n```\n\nThen:\n\n```bash\nnpm run start --watch\n```"

	fragments := Extract(content, Options{})
	require.Len(t, fragments, 2)
	assert.Equal(t, "server.js", fragments[0].Filename)
	assert.Equal(t, "bash", fragments[1].Language)
}

func TestExtractDropsDuplicates(t *testing.T) {
	block := "```js\nconsole.log('same thing');\n```"
	fragments := Extract(block+"\n\ntext\n\n"+block, Options{})
	assert.Len(t, fragments, 1)
}

func TestExtractLengthBoundary(t *testing.T) {
	t.Run("ten characters are discarded", func(t *testing.T) {
		fragments := Extract("```\n0123456789\n```", Options{})
		assert.Empty(t, fragments)
	})

	t.Run("eleven characters are kept", func(t *testing.T) {
		fragments := Extract("```\n0123456789a\n```", Options{})
		require.Len(t, fragments, 1)
		assert.Equal(t, "0123456789a", fragments[0].Content)
	})

	t.Run("whitespace does not count", func(t *testing.T) {
		fragments := Extract("```\n   0123456789   \n```", Options{})
		assert.Empty(t, fragments)
	})
}

func TestExtractIsPure(t *testing.T) {
	content := "Add lib/a.py:\n```python\ndef a():\n    return 1\n```\n```js\nlet x = compute();\n```"
	assert.Equal(t, Extract(content, Options{}), Extract(content, Options{}))
}

func TestSplitInfo(t *testing.T) {
	tests := []struct {
		info, lang, comment string
	}{
		{"go", "go", ""},
		{"JS // src/index.js", "js", "src/index.js"},
		{"ts:src/app.ts", "ts", "src/app.ts"},
		{"html <!-- index.html -->", "html", "index.html"},
		{"", "", ""},
	}
	for _, tt := range tests {
		lang, comment := splitInfo(tt.info)
		assert.Equal(t, tt.lang, lang, tt.info)
		assert.Equal(t, tt.comment, comment, tt.info)
	}
}

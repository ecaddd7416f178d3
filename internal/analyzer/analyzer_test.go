package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/aipatch/internal/config"
	"github.com/sokinpui/aipatch/internal/fs"
	"github.com/sokinpui/aipatch/model"
)

const mathJS = "function add(a, b) {\n  return a + b;\n}\n\nfunction sub(a, b) {\n  return b - a;\n}\n"

func analyze(t *testing.T, files map[string]string, response string, opts ...Option) model.AnalysisResult {
	t.Helper()
	a := New(fs.NewMemStore(files), config.Defaults(), opts...)
	return a.AnalyzeResponse(response)
}

func TestCreateFromFileHeader(t *testing.T) {
	res := analyze(t, nil, "Create utils/math.js:\n```js\nfunction add(a,b){return a+b;}\n```")

	require.Len(t, res.FileChanges, 1)
	c := res.FileChanges[0]
	assert.Equal(t, "utils/math.js", c.Path)
	assert.Equal(t, model.Create, c.ChangeType)
	assert.GreaterOrEqual(t, c.Confidence, 65)
	assert.LessOrEqual(t, c.Confidence, 100)
	assert.Equal(t, "function add(a,b){return a+b;}\n", c.Content)
	assert.Contains(t, c.Reasoning, "explicit filename (+30)")
	assert.Contains(t, c.Reasoning, "explicit action hint (+35)")
	assert.Equal(t, model.Analysis{TotalBlocks: 1, ActionableBlocks: 1}, res.Analysis)
}

func TestExampleNeverBecomesCandidate(t *testing.T) {
	res := analyze(t, nil, "here's an example of logging\n```js\nconsole.log('hello world')\n```")

	assert.Empty(t, res.FileChanges)
	assert.Equal(t, model.Analysis{TotalBlocks: 1, Examples: 1}, res.Analysis)
}

func TestFunctionScopedUpdate(t *testing.T) {
	res := analyze(t, map[string]string{"utils/math.js": mathJS},
		"Fix the bug in `utils/math.js`:\n```js\nfunction sub(a, b) {\n  return a - b;\n}\n```")

	require.Len(t, res.FileChanges, 1)
	c := res.FileChanges[0]
	assert.Equal(t, model.Update, c.ChangeType)
	assert.Equal(t, mathJS, c.OriginalContent)
	assert.Equal(t, "function add(a, b) {\n  return a + b;\n}\n\nfunction sub(a, b) {\n  return a - b;\n}\n", c.Content)
	require.NotNil(t, c.LineRange)
	assert.Equal(t, model.LineRange{Start: 5, End: 7}, *c.LineRange)
	assert.Contains(t, c.Reasoning, "function sub patched in lines 5-7 (+1 -1 ~2 lines)")
}

func TestSuccessiveEditsToOneFileCompose(t *testing.T) {
	response := "Fix `utils/math.js` like this:\n```js\nfunction add(a, b) {\n  return a + b + 0;\n}\n```\n\n" +
		"And also fix `utils/math.js` here:\n```js\nfunction sub(a, b) {\n  return a - b;\n}\n```"
	res := analyze(t, map[string]string{"utils/math.js": mathJS}, response)

	require.Len(t, res.FileChanges, 1)
	c := res.FileChanges[0]
	assert.Equal(t, "function add(a, b) {\n  return a + b + 0;\n}\n\nfunction sub(a, b) {\n  return a - b;\n}\n", c.Content)
	assert.Equal(t, mathJS, c.OriginalContent)
	assert.Nil(t, c.LineRange)
	assert.Equal(t, 2, res.Analysis.ActionableBlocks)
}

func TestWholeFileReplacement(t *testing.T) {
	original := "package main\n\nfunc main() {}\n"
	res := analyze(t, map[string]string{"main.go": original},
		"Update `main.go`:\n```go\npackage main\n\nimport \"fmt\"\n\nfunc main() { fmt.Println(1) }\n```")

	require.Len(t, res.FileChanges, 1)
	c := res.FileChanges[0]
	assert.Equal(t, model.Update, c.ChangeType)
	assert.Equal(t, "package main\n\nimport \"fmt\"\n\nfunc main() { fmt.Println(1) }\n", c.Content)
	assert.Nil(t, c.LineRange)
	assert.Contains(t, c.Reasoning[len(c.Reasoning)-1], "replaces whole file")
}

func TestUnifiedDiffFragment(t *testing.T) {
	original := "package main\n\nfunc main() {\n\tprintln(\"a\")\n}\n"
	response := "Apply this patch:\n```diff\n--- a/main.go\n+++ b/main.go\n@@ -3,3 +3,3 @@\n func main() {\n-\tprintln(\"a\")\n+\tprintln(\"b\")\n }\n```"

	res := analyze(t, map[string]string{"main.go": original}, response)

	require.Len(t, res.FileChanges, 1)
	c := res.FileChanges[0]
	assert.Equal(t, "main.go", c.Path)
	assert.Equal(t, model.Update, c.ChangeType)
	assert.Equal(t, "package main\n\nfunc main() {\n\tprintln(\"b\")\n}\n", c.Content)
	assert.Equal(t, &model.LineRange{Start: 3, End: 5}, c.LineRange)
}

func TestUnifiedDiffWithUnknownContextIsSkipped(t *testing.T) {
	response := "Apply this patch:\n```diff\n--- a/main.go\n+++ b/main.go\n@@ -1 +1 @@\n-nothing like this\n+replacement\n```"
	res := analyze(t, map[string]string{"main.go": "package main\n"}, response)

	assert.Empty(t, res.FileChanges)
	assert.Equal(t, 1, res.Analysis.ActionableBlocks)
}

func TestDeleteCue(t *testing.T) {
	res := analyze(t, map[string]string{"old.js": "module.exports = {};\n"},
		"You can remove `old.js`, it is no longer used:\n```js\nmodule.exports = {};\n```")

	require.Len(t, res.FileChanges, 1)
	c := res.FileChanges[0]
	assert.Equal(t, model.Delete, c.ChangeType)
	assert.Equal(t, "module.exports = {};\n", c.OriginalContent)
	assert.Contains(t, c.Reasoning, "delete cue \"remove `old.js`\"")
}

func TestRemoveInsideFileIsAnUpdate(t *testing.T) {
	res := analyze(t, map[string]string{"main.go": "package main\n\nimport \"os\"\n\nfunc main() {}\n"},
		"Update `main.go` to remove the unused import:\n```go\npackage main\n\nfunc main() {}\n```")

	require.Len(t, res.FileChanges, 1)
	c := res.FileChanges[0]
	assert.Equal(t, model.Update, c.ChangeType)
	assert.Equal(t, "package main\n\nfunc main() {}\n", c.Content)
}

func TestGeneratedFilenameIsTagged(t *testing.T) {
	res := analyze(t, nil, "Implement the helper:\n```python\nimport os\n\nprint(os.getcwd())\n```")

	require.Len(t, res.FileChanges, 1)
	c := res.FileChanges[0]
	assert.Equal(t, "main.py", c.Path)
	assert.Contains(t, c.Reasoning, `filename generated from language "python"`)
}

func TestExtensionFilter(t *testing.T) {
	response := "Create a.js:\n```js\nconsole.log('a');\n```\n\nCreate b.go:\n```go\npackage b\n\nvar B = 1\n```"

	res := analyze(t, nil, response, WithExtensions([]string{".go"}))
	require.Len(t, res.FileChanges, 1)
	assert.Equal(t, "b.go", res.FileChanges[0].Path)
	assert.Equal(t, 2, res.Analysis.ActionableBlocks)

	res = analyze(t, nil, response, WithExtensions([]string{DiffExtension}))
	assert.Empty(t, res.FileChanges)
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	response := "Create utils/math.js:\n```js\nfunction add(a,b){return a+b;}\n```\n\nFor example:\n```js\nadd(1, 2) // 3\n```"
	first := analyze(t, nil, response)
	second := analyze(t, nil, response)
	assert.Equal(t, first, second)
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/aipatch/model"
)

func TestParseLines(t *testing.T) {
	maxInt := int(^uint(0) >> 1)
	tests := []struct {
		in      string
		want    *model.LineRange
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "3:5", want: &model.LineRange{Start: 3, End: 5}},
		{in: "4", want: &model.LineRange{Start: 4, End: 4}},
		{in: "2:", want: &model.LineRange{Start: 2, End: maxInt}},
		{in: "3:2", want: &model.LineRange{Start: 3, End: 2}},
		{in: "0:2", wantErr: true},
		{in: "a:b", wantErr: true},
		{in: "1:x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLines(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize(t *testing.T) {
	cfg := &Config{Extensions: []string{"py", ".js", "diff"}}
	require.NoError(t, cfg.normalize())
	assert.Equal(t, []string{".py", ".js", ".diff"}, cfg.Extensions)

	cfg = &Config{Buffer: true, Nvim: true}
	assert.Error(t, cfg.normalize())
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestAnalyzeJSON(t *testing.T) {
	dir := t.TempDir()
	response := filepath.Join(t.TempDir(), "response.md")
	writeFile(t, response, "Create utils/math.js:\n```js\nfunction add(a,b){return a+b;}\n```\n")

	out, err := run(t, "analyze", response, "--json", "-l", dir)
	require.NoError(t, err)

	var res model.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.FileChanges, 1)
	assert.Equal(t, "utils/math.js", res.FileChanges[0].Path)
	assert.Equal(t, 1, res.Analysis.ActionableBlocks)
	assert.NoFileExists(t, filepath.Join(dir, "utils", "math.js"))
}

func TestApplyThenUndo(t *testing.T) {
	dir := t.TempDir()
	response := filepath.Join(t.TempDir(), "response.md")
	writeFile(t, response, "Create hello.py:\n```python\nprint('hi')\n```\n")

	_, err := run(t, "apply", response, "--no-animation", "-l", dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "hello.py"))
	assert.FileExists(t, filepath.Join(dir, ".aipatch", "aipatch.log"))

	out, err := run(t, "undo", "--json", "-l", dir)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "hello.py"))
	assert.Contains(t, out, `"deleted": [`)
}

func TestEditPrintsPatchedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "notes.txt"), "a\nb\nc\n")
	request := filepath.Join(t.TempDir(), "request.txt")
	writeFile(t, request, "B\n")

	out, err := run(t, "edit", "notes.txt", request, "--lines", "2:2", "-l", dir)
	require.NoError(t, err)
	assert.Equal(t, "a\nB\nc\n", out)

	_, err = run(t, "edit", "notes.txt", request, "--lines", "2:2", "--write", "-l", dir)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a\nB\nc\n", string(data))
}

func TestInvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "analyze", filepath.Join(dir, "missing.md"), "--config", filepath.Join(dir, "nope.yaml"), "-l", dir)
	assert.ErrorContains(t, err, "failed to read config")
}

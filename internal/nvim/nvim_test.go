package nvim

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/aipatch/internal/fs"
)

func TestToLines(t *testing.T) {
	assert.Equal(t, []string{}, ToLines(""))
	assert.Equal(t, []string{"a", "b"}, ToLines("a\nb\n"))
	assert.Equal(t, []string{"a", "b"}, ToLines("a\nb"))
	assert.Equal(t, []string{"a", ""}, ToLines("a\n\n"))
}

func TestEscapePath(t *testing.T) {
	assert.Equal(t, `/tmp/my\ dir/a\%b\#c.go`, escapePath("/tmp/my dir/a%b#c.go"))
}

func TestBufferStoreWritesThroughNeovim(t *testing.T) {
	if _, err := exec.LookPath("nvim"); err != nil {
		t.Skip("nvim not installed")
	}
	t.Setenv("NVIM", "")
	t.Setenv("NVIM_LISTEN_ADDRESS", "")

	root := t.TempDir()
	disk, err := fs.NewOSStore([]string{root})
	require.NoError(t, err)

	m, err := New(context.Background())
	require.NoError(t, err)
	defer m.Close()

	store := NewBufferStore(m, disk, true)
	require.NoError(t, store.Write("src/app.js", "console.log(1);\n"))

	data, err := os.ReadFile(filepath.Join(root, "src", "app.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log(1);\n", string(data))

	require.NoError(t, store.Remove("src/app.js"))
	assert.False(t, store.Exists("src/app.js"))
}

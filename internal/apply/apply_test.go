package apply

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/aipatch/internal/fs"
	"github.com/sokinpui/aipatch/internal/state"
	"github.com/sokinpui/aipatch/model"
)

func newApplier(t *testing.T, files map[string]string) (*Applier, *fs.MemStore) {
	t.Helper()
	store := fs.NewMemStore(files)
	history, err := state.Open(t.TempDir())
	require.NoError(t, err)
	return New(store, WithBackups(store), WithHistory(history)), store
}

func read(t *testing.T, store *fs.MemStore, path string) string {
	t.Helper()
	content, err := store.Read(path)
	require.NoError(t, err)
	return content
}

var batch = []model.FileChangeCandidate{
	{Path: "new.js", Content: "console.log(1)\n", ChangeType: model.Create},
	{Path: "main.go", Content: "package main // v2\n", ChangeType: model.Update},
	{Path: "old.txt", ChangeType: model.Delete},
}

func TestApplyUndoRedo(t *testing.T) {
	a, store := newApplier(t, map[string]string{
		"main.go": "package main\n",
		"old.txt": "obsolete\n",
	})
	ctx := context.Background()

	summary := a.Apply(ctx, batch)
	assert.Equal(t, []string{"new.js"}, summary.Created)
	assert.Equal(t, []string{"main.go"}, summary.Modified)
	assert.Equal(t, []string{"old.txt"}, summary.Deleted)
	assert.Empty(t, summary.Failed)
	assert.Equal(t, "console.log(1)\n", read(t, store, "new.js"))
	assert.Equal(t, "package main // v2\n", read(t, store, "main.go"))
	assert.False(t, store.Exists("old.txt"))

	summary, err := a.Undo(ctx)
	require.NoError(t, err)
	assert.Empty(t, summary.Failed)
	assert.False(t, store.Exists("new.js"))
	assert.Equal(t, "package main\n", read(t, store, "main.go"))
	assert.Equal(t, "obsolete\n", read(t, store, "old.txt"))
	assert.Equal(t, []string{"old.txt"}, summary.Created)
	assert.Equal(t, []string{"new.js"}, summary.Deleted)

	summary, err = a.Redo(ctx)
	require.NoError(t, err)
	assert.Empty(t, summary.Failed)
	assert.Equal(t, "console.log(1)\n", read(t, store, "new.js"))
	assert.Equal(t, "package main // v2\n", read(t, store, "main.go"))
	assert.False(t, store.Exists("old.txt"))

	_, err = a.Redo(ctx)
	assert.ErrorIs(t, err, state.ErrNothingToRedo)
}

func TestUndoRefusesToClobberLaterEdits(t *testing.T) {
	a, store := newApplier(t, map[string]string{"main.go": "v1\n"})
	ctx := context.Background()

	a.Apply(ctx, []model.FileChangeCandidate{{Path: "main.go", Content: "v2\n", ChangeType: model.Update}})
	require.NoError(t, store.Write("main.go", "edited by hand\n"))

	summary, err := a.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, summary.Failed)
	assert.ErrorIs(t, summary.Errors["main.go"], ErrChanged)
	assert.Equal(t, "edited by hand\n", read(t, store, "main.go"))
	assert.Equal(t, "Nothing was undone. The operation is still in the history.", summary.Message)

	_, err = a.Redo(ctx)
	assert.ErrorIs(t, err, state.ErrNothingToRedo)

	require.NoError(t, store.Write("main.go", "v2\n"))
	summary, err = a.Undo(ctx)
	require.NoError(t, err)
	assert.Empty(t, summary.Failed)
	assert.Equal(t, "v1\n", read(t, store, "main.go"))
}

// flakyBackups fails the failOn-th CreateBackup call.
type flakyBackups struct {
	*fs.MemStore
	calls  int
	failOn int
}

func (f *flakyBackups) CreateBackup(path string) (string, error) {
	f.calls++
	if f.calls == f.failOn {
		return "", errors.New("disk full")
	}
	return f.MemStore.CreateBackup(path)
}

func TestApplyKeepsUndoWhenSnapshotFails(t *testing.T) {
	store := fs.NewMemStore(map[string]string{"a.go": "old\n"})
	history, err := state.Open(t.TempDir())
	require.NoError(t, err)
	a := New(store, WithBackups(&flakyBackups{MemStore: store, failOn: 2}), WithHistory(history))
	ctx := context.Background()

	summary := a.Apply(ctx, []model.FileChangeCandidate{{Path: "a.go", Content: "new\n", ChangeType: model.Update}})
	assert.Empty(t, summary.Failed)
	assert.Equal(t, []string{"a.go"}, summary.Modified)
	entries, index := history.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 0, index)

	summary, err = a.Undo(ctx)
	require.NoError(t, err)
	assert.Empty(t, summary.Failed)
	assert.Equal(t, "old\n", read(t, store, "a.go"))

	summary, err = a.Redo(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, summary.Errors["a.go"], ErrNoSnapshot)
	assert.Equal(t, "old\n", read(t, store, "a.go"))
}

func TestUndoSamePathTwiceRestoresOriginal(t *testing.T) {
	a, store := newApplier(t, map[string]string{"a.txt": "v1\n"})
	ctx := context.Background()

	a.Apply(ctx, []model.FileChangeCandidate{
		{Path: "a.txt", Content: "v2\n", ChangeType: model.Update},
		{Path: "a.txt", Content: "v3\n", ChangeType: model.Update},
	})
	assert.Equal(t, "v3\n", read(t, store, "a.txt"))

	_, err := a.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1\n", read(t, store, "a.txt"))

	_, err = a.Redo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v3\n", read(t, store, "a.txt"))
}

type failingStore struct {
	*fs.MemStore
	failOn string
}

func (f failingStore) Write(path, content string) error {
	if path == f.failOn {
		return fs.ErrIgnored
	}
	return f.MemStore.Write(path, content)
}

func TestApplyKeepsGoingAfterAFailure(t *testing.T) {
	store := failingStore{MemStore: fs.NewMemStore(nil), failOn: "build/out.js"}
	var progress [][2]int
	a := New(store, WithProgress(func(current, total int) {
		progress = append(progress, [2]int{current, total})
	}))

	summary := a.Apply(context.Background(), []model.FileChangeCandidate{
		{Path: "build/out.js", Content: "x", ChangeType: model.Create},
		{Path: "src/in.js", Content: "y", ChangeType: model.Create},
	})

	assert.Equal(t, []string{"build/out.js"}, summary.Failed)
	assert.True(t, errors.Is(summary.Errors["build/out.js"], fs.ErrIgnored))
	assert.Equal(t, []string{"src/in.js"}, summary.Created)
	assert.Equal(t, [][2]int{{0, 2}, {1, 2}, {2, 2}}, progress)
}

func TestApplyStopsOnCancel(t *testing.T) {
	a, store := newApplier(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := a.Apply(ctx, []model.FileChangeCandidate{{Path: "a.js", Content: "x", ChangeType: model.Create}})
	assert.ErrorIs(t, summary.Errors["a.js"], context.Canceled)
	assert.False(t, store.Exists("a.js"))
}

func TestUndoWithoutBackups(t *testing.T) {
	a := New(fs.NewMemStore(nil))
	_, err := a.Undo(context.Background())
	assert.ErrorIs(t, err, ErrNoBackups)
}

func TestConcurrentApplySerializesPerPath(t *testing.T) {
	store := fs.NewMemStore(nil)
	a := New(store)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Apply(context.Background(), []model.FileChangeCandidate{
				{Path: "shared.txt", Content: "same", ChangeType: model.Create},
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, "same", read(t, store, "shared.txt"))
}

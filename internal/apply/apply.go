// Package apply writes file change candidates through a file store and keeps
// the history needed to undo them.
package apply

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sokinpui/aipatch/internal/fs"
	"github.com/sokinpui/aipatch/internal/state"
	"github.com/sokinpui/aipatch/internal/ui"
	"github.com/sokinpui/aipatch/model"
)

// ErrChanged is returned when a file no longer holds what an earlier apply
// left in it, so undoing or redoing would lose someone's edits.
var ErrChanged = errors.New("file changed since it was last written")

// ErrNoBackups is returned by Undo and Redo when no backup store is set.
var ErrNoBackups = errors.New("undo and redo need a backup store")

// ErrNoSnapshot is returned when redoing a write whose result was never
// backed up.
var ErrNoSnapshot = errors.New("no snapshot of the written file to redo from")

// History records applied batches. *state.Manager implements it. Undo and
// Redo only move past a batch when run reports progress.
type History interface {
	Record(ops []state.Operation) error
	Undo(run func(ops []state.Operation) bool) error
	Redo(run func(ops []state.Operation) bool) error
}

// ProgressUpdate is called after each file is processed.
type ProgressUpdate func(current, total int)

// Applier applies candidates one at a time. Writes to the same path are
// serialized, also across concurrent calls.
type Applier struct {
	files    fs.FileStore
	backups  fs.BackupStore
	history  History
	progress ProgressUpdate

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures an Applier.
type Option func(*Applier)

// WithBackups snapshots files before and after they change.
func WithBackups(b fs.BackupStore) Option {
	return func(a *Applier) { a.backups = b }
}

// WithHistory records every applied batch.
func WithHistory(h History) Option {
	return func(a *Applier) { a.history = h }
}

// WithProgress reports progress through cb.
func WithProgress(cb ProgressUpdate) Option {
	return func(a *Applier) { a.progress = cb }
}

// New creates an Applier writing through files.
func New(files fs.FileStore, opts ...Option) *Applier {
	a := &Applier{files: files, locks: make(map[string]*sync.Mutex)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetProgress replaces the progress callback.
func (a *Applier) SetProgress(cb ProgressUpdate) {
	a.progress = cb
}

func (a *Applier) lock(path string) func() {
	a.mu.Lock()
	l, ok := a.locks[path]
	if !ok {
		l = &sync.Mutex{}
		a.locks[path] = l
	}
	a.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (a *Applier) report(current, total int) {
	if a.progress != nil {
		a.progress(current, total)
	}
}

// Apply writes every candidate. A failing candidate is recorded in the
// summary and the rest still run.
func (a *Applier) Apply(ctx context.Context, candidates []model.FileChangeCandidate) model.Summary {
	summary := model.Summary{Errors: map[string]error{}}
	var ops []state.Operation

	a.report(0, len(candidates))
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			fail(&summary, c.Path, err)
			continue
		}

		op, existed, err := a.applyOne(c)
		if err != nil {
			fail(&summary, c.Path, err)
		} else {
			ops = append(ops, op)
			switch {
			case c.ChangeType == model.Delete:
				summary.Deleted = append(summary.Deleted, c.Path)
			case existed:
				summary.Modified = append(summary.Modified, c.Path)
			default:
				summary.Created = append(summary.Created, c.Path)
			}
		}
		a.report(i+1, len(candidates))
	}

	if a.history != nil && len(ops) > 0 {
		if err := a.history.Record(ops); err != nil {
			ui.Warning("Could not record history: %v", err)
			summary.Message = "Changes applied, but they cannot be undone."
		}
	}
	return summary
}

func (a *Applier) applyOne(c model.FileChangeCandidate) (state.Operation, bool, error) {
	unlock := a.lock(c.Path)
	defer unlock()

	op := state.Operation{Path: c.Path, Action: c.ChangeType.String()}
	existed := a.files.Exists(c.Path)
	if existed && c.ChangeType == model.Create {
		op.Action = model.Update.String()
	}

	if existed && a.backups != nil {
		backup, err := a.backups.CreateBackup(c.Path)
		if err != nil {
			return op, existed, fmt.Errorf("backup before change: %w", err)
		}
		op.Backup = backup
	}

	if c.ChangeType == model.Delete {
		if err := a.files.Remove(c.Path); err != nil {
			return op, existed, err
		}
		ui.Success("Deleted %s", c.Path)
		return op, existed, nil
	}

	if err := a.files.Write(c.Path, c.Content); err != nil {
		return op, existed, err
	}
	op.ContentHash = fs.HashContent(c.Content)
	if a.backups != nil {
		// The write already happened, so the op is kept for undo either way.
		snapshot, err := a.backups.CreateBackup(c.Path)
		if err != nil {
			ui.Warning("Could not snapshot %s, it cannot be redone after an undo: %v", c.Path, err)
		}
		op.Snapshot = snapshot
	}
	ui.Success("Wrote %s", c.Path)
	return op, existed, nil
}

// Undo reverts the latest applied batch. The batch stays current when no
// file in it could be reverted.
func (a *Applier) Undo(ctx context.Context) (model.Summary, error) {
	if a.backups == nil || a.history == nil {
		return model.Summary{}, ErrNoBackups
	}

	var summary model.Summary
	err := a.history.Undo(func(ops []state.Operation) bool {
		summary = a.undoAll(ctx, ops)
		return len(summary.Failed) < len(ops)
	})
	if err != nil {
		return summary, err
	}
	if summary.Message == "" {
		summary.Message = "Nothing was undone. The operation is still in the history."
	}
	return summary, nil
}

func (a *Applier) undoAll(ctx context.Context, ops []state.Operation) model.Summary {
	summary := model.Summary{Errors: map[string]error{}}
	a.report(0, len(ops))
	// Reverse order, so a file touched twice ends up as it started.
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		if err := ctx.Err(); err != nil {
			fail(&summary, op.Path, err)
			continue
		}
		if err := a.undoOne(op); err != nil {
			fail(&summary, op.Path, err)
		} else {
			switch op.Action {
			case "create":
				summary.Deleted = append(summary.Deleted, op.Path)
			case "delete":
				summary.Created = append(summary.Created, op.Path)
			default:
				summary.Modified = append(summary.Modified, op.Path)
			}
		}
		a.report(len(ops)-i, len(ops))
	}
	if len(summary.Failed) < len(ops) {
		summary.Message = "Undid last operation."
	}
	return summary
}

func (a *Applier) undoOne(op state.Operation) error {
	unlock := a.lock(op.Path)
	defer unlock()

	if op.Action == "delete" {
		if a.files.Exists(op.Path) {
			return fmt.Errorf("restore %s: %w", op.Path, ErrChanged)
		}
		return a.restore(op.Path, op.Backup)
	}

	if err := a.expect(op.Path, op.ContentHash); err != nil {
		return err
	}
	if op.Backup == "" {
		return a.files.Remove(op.Path)
	}
	return a.restore(op.Path, op.Backup)
}

// Redo re-applies the latest undone batch. The batch stays undone when no
// file in it could be re-applied.
func (a *Applier) Redo(ctx context.Context) (model.Summary, error) {
	if a.backups == nil || a.history == nil {
		return model.Summary{}, ErrNoBackups
	}

	var summary model.Summary
	err := a.history.Redo(func(ops []state.Operation) bool {
		summary = a.redoAll(ctx, ops)
		return len(summary.Failed) < len(ops)
	})
	if err != nil {
		return summary, err
	}
	if summary.Message == "" {
		summary.Message = "Nothing was redone. The operation can still be redone."
	}
	return summary, nil
}

func (a *Applier) redoAll(ctx context.Context, ops []state.Operation) model.Summary {
	summary := model.Summary{Errors: map[string]error{}}
	a.report(0, len(ops))
	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			fail(&summary, op.Path, err)
			continue
		}
		if err := a.redoOne(op); err != nil {
			fail(&summary, op.Path, err)
		} else {
			switch op.Action {
			case "create":
				summary.Created = append(summary.Created, op.Path)
			case "delete":
				summary.Deleted = append(summary.Deleted, op.Path)
			default:
				summary.Modified = append(summary.Modified, op.Path)
			}
		}
		a.report(i+1, len(ops))
	}
	if len(summary.Failed) < len(ops) {
		summary.Message = "Redid last undone operation."
	}
	return summary
}

func (a *Applier) redoOne(op state.Operation) error {
	unlock := a.lock(op.Path)
	defer unlock()

	if op.Action != "delete" && op.Snapshot == "" {
		return fmt.Errorf("redo %s: %w", op.Path, ErrNoSnapshot)
	}
	if op.Backup == "" {
		if a.files.Exists(op.Path) {
			return fmt.Errorf("recreate %s: %w", op.Path, ErrChanged)
		}
	} else {
		before, err := a.backups.ReadBackup(op.Backup)
		if err != nil {
			return err
		}
		if err := a.expect(op.Path, fs.HashContent(before)); err != nil {
			return err
		}
	}

	if op.Action == "delete" {
		return a.files.Remove(op.Path)
	}
	return a.restore(op.Path, op.Snapshot)
}

// expect checks that path currently hashes to want.
func (a *Applier) expect(path, want string) error {
	current, err := a.files.Read(path)
	if err != nil {
		return err
	}
	if fs.HashContent(current) != want {
		return fmt.Errorf("%s: %w", path, ErrChanged)
	}
	return nil
}

func (a *Applier) restore(path, backup string) error {
	content, err := a.backups.ReadBackup(backup)
	if err != nil {
		return err
	}
	return a.files.Write(path, content)
}

func fail(summary *model.Summary, path string, err error) {
	ui.Error("Failed %s: %v", path, err)
	summary.Failed = append(summary.Failed, path)
	summary.Errors[path] = err
}

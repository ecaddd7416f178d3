// Package aipatch turns AI chat responses into file changes. App wires the
// analysis pipeline to a file store, backups and undo history.
package aipatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/sokinpui/aipatch/internal/analyzer"
	"github.com/sokinpui/aipatch/internal/apply"
	"github.com/sokinpui/aipatch/internal/config"
	"github.com/sokinpui/aipatch/internal/fs"
	"github.com/sokinpui/aipatch/internal/nvim"
	"github.com/sokinpui/aipatch/internal/patcher"
	"github.com/sokinpui/aipatch/internal/source"
	"github.com/sokinpui/aipatch/internal/state"
	"github.com/sokinpui/aipatch/model"
)

// Config selects where files live and how they are written.
type Config struct {
	LookupDirs []string
	Extensions []string
	Thresholds config.Thresholds
	// ResponseFile is read instead of stdin or the clipboard when set.
	ResponseFile string
	// Nvim writes files through Neovim buffers and saves them.
	Nvim bool
	// Buffer updates Neovim buffers without saving them. No history is
	// recorded, so the changes are undone from the editor.
	Buffer bool
}

// Action is what Execute runs.
type Action int

const (
	ActionApply Action = iota
	ActionUndo
	ActionRedo
)

// ProgressUpdate is a callback function to report progress.
type ProgressUpdate = apply.ProgressUpdate

// App orchestrates the entire application logic.
type App struct {
	cfg      Config
	store    *fs.OSStore
	history  *state.Manager
	analyzer *analyzer.Analyzer
	applier  *apply.Applier
	source   func(ctx context.Context) (string, error)
	progress ProgressUpdate
}

// ErrBufferHistory is returned by Undo and Redo in Buffer mode.
var ErrBufferHistory = errors.New("buffer mode keeps no history; undo the changes in Neovim")

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

func (e *DetailedError) Unwrap() error {
	return e.Err
}

// New creates a new App instance. History and backups live under
// .aipatch/ in the first lookup directory.
func New(cfg Config) (*App, error) {
	cfg.Thresholds = cfg.Thresholds.WithDefaults()

	store, err := fs.NewOSStore(cfg.LookupDirs)
	if err != nil {
		return nil, err
	}
	history, err := state.Open(filepath.Join(store.Root(), fs.StateDirName))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state manager: %w", err)
	}

	a := &App{
		cfg:      cfg,
		store:    store,
		history:  history,
		analyzer: analyzer.New(store, cfg.Thresholds, analyzer.WithExtensions(cfg.Extensions)),
		applier:  apply.New(store, apply.WithBackups(store), apply.WithHistory(history)),
	}

	provider := source.New()
	a.source = provider.GetContent
	if cfg.ResponseFile != "" {
		a.source = func(context.Context) (string, error) {
			return source.FromFile(cfg.ResponseFile)
		}
	}
	return a, nil
}

// SetProgressCallback sets a function to be called for progress updates.
func (a *App) SetProgressCallback(cb ProgressUpdate) {
	a.progress = cb
	a.applier.SetProgress(cb)
}

// SetSource replaces where Execute reads the response from.
func (a *App) SetSource(read func(ctx context.Context) (string, error)) {
	a.source = read
}

// Root is the directory new files are created in.
func (a *App) Root() string {
	return a.store.Root()
}

// ReadResponse reads the response text from the configured source.
func (a *App) ReadResponse(ctx context.Context) (string, error) {
	return a.source(ctx)
}

// AnalyzeResponse extracts the file changes a response proposes. Nothing is
// written.
func (a *App) AnalyzeResponse(text string) model.AnalysisResult {
	return a.analyzer.AnalyzeResponse(text)
}

// ApplyEdit patches content with an edit request: a unified diff, or code
// (optionally fenced) replacing targetRange or the whole content.
func (a *App) ApplyEdit(originalContent, editRequest string, targetRange *model.LineRange) model.EditResult {
	return patcher.ApplyEdit(originalContent, editRequest, targetRange)
}

// EditFile is ApplyEdit over a file in the lookup directories. The file is
// not written.
func (a *App) EditFile(path, editRequest string, targetRange *model.LineRange) (model.EditResult, error) {
	content, err := a.store.Read(path)
	if err != nil {
		return model.EditResult{}, err
	}
	return patcher.ApplyEdit(content, editRequest, targetRange), nil
}

// Apply writes candidates, backing up what they replace and recording the
// batch for undo.
func (a *App) Apply(ctx context.Context, candidates []model.FileChangeCandidate) (model.Summary, error) {
	applier, done, err := a.applierFor(ctx)
	if err != nil {
		return model.Summary{}, err
	}
	defer done()

	summary := applier.Apply(ctx, candidates)
	if a.cfg.Buffer && len(summary.Failed) < len(candidates) {
		summary.Message = "Buffers updated in Neovim but not saved."
	}
	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

// Undo reverts the last applied batch.
func (a *App) Undo(ctx context.Context) (model.Summary, error) {
	if a.cfg.Buffer {
		return model.Summary{}, ErrBufferHistory
	}
	applier, done, err := a.applierFor(ctx)
	if err != nil {
		return model.Summary{}, err
	}
	defer done()

	summary, err := applier.Undo(ctx)
	if errors.Is(err, state.ErrNothingToUndo) {
		return model.Summary{Message: "No operation to undo."}, nil
	}
	if err != nil {
		return model.Summary{}, err
	}
	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

// Redo re-applies the last undone batch.
func (a *App) Redo(ctx context.Context) (model.Summary, error) {
	if a.cfg.Buffer {
		return model.Summary{}, ErrBufferHistory
	}
	applier, done, err := a.applierFor(ctx)
	if err != nil {
		return model.Summary{}, err
	}
	defer done()

	summary, err := applier.Redo(ctx)
	if errors.Is(err, state.ErrNothingToRedo) {
		return model.Summary{Message: "No operation to redo."}, nil
	}
	if err != nil {
		return model.Summary{}, err
	}
	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

// Process analyzes text and applies the candidates it yields.
func (a *App) Process(ctx context.Context, text string) (model.Summary, error) {
	if text == "" {
		return model.Summary{Message: "Source is empty. Nothing to process."}, nil
	}

	result := a.AnalyzeResponse(text)
	if len(result.FileChanges) == 0 {
		return model.Summary{
			Message:  "No actionable changes were found. Nothing to do.",
			Analysis: &result.Analysis,
		}, nil
	}

	summary, err := a.Apply(ctx, result.FileChanges)
	if err != nil {
		return model.Summary{}, err
	}
	summary.Analysis = &result.Analysis
	return summary, nil
}

// Execute runs action, turning a panic anywhere below into a DetailedError.
func (a *App) Execute(ctx context.Context, action Action) (summary model.Summary, err error) {
	// Centralized panic recovery.
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	switch action {
	case ActionUndo:
		return a.Undo(ctx)
	case ActionRedo:
		return a.Redo(ctx)
	default:
		text, err := a.source(ctx)
		if err != nil {
			return model.Summary{}, err
		}
		return a.Process(ctx, text)
	}
}

// applierFor returns the applier for the configured write mode. Neovim
// modes connect per call, like an editor session would.
func (a *App) applierFor(ctx context.Context) (*apply.Applier, func(), error) {
	if !a.cfg.Nvim && !a.cfg.Buffer {
		return a.applier, func() {}, nil
	}

	manager, err := nvim.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	files := nvim.NewBufferStore(manager, a.store, !a.cfg.Buffer)
	opts := []apply.Option{apply.WithBackups(a.store), apply.WithProgress(a.progress)}
	if !a.cfg.Buffer {
		opts = append(opts, apply.WithHistory(a.history))
	}
	return apply.New(files, opts...), manager.Close, nil
}

// relativizeSummaryPaths converts absolute file paths in a summary to be
// relative to the current working directory for cleaner display.
func (a *App) relativizeSummaryPaths(summary *model.Summary) {
	wd, err := os.Getwd()
	if err != nil {
		return
	}

	makeRelative := func(paths []string) []string {
		for i, p := range paths {
			if !filepath.IsAbs(p) {
				continue
			}
			if rel, err := filepath.Rel(wd, p); err == nil {
				paths[i] = rel
			}
		}
		return paths
	}

	summary.Created = makeRelative(summary.Created)
	summary.Modified = makeRelative(summary.Modified)
	summary.Deleted = makeRelative(summary.Deleted)
	if len(summary.Errors) == 0 {
		summary.Failed = makeRelative(summary.Failed)
		return
	}

	errs := make(map[string]error, len(summary.Errors))
	for _, p := range summary.Failed {
		rel := makeRelative([]string{p})[0]
		if err, ok := summary.Errors[p]; ok {
			errs[rel] = err
		}
	}
	summary.Failed = makeRelative(summary.Failed)
	summary.Errors = errs
}

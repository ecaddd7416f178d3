package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sokinpui/aipatch/aipatch"
	"github.com/sokinpui/aipatch/internal/tui"
	"github.com/sokinpui/aipatch/internal/ui"
	"github.com/sokinpui/aipatch/model"
)

const previewContext = 3

func newAnalyzeCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [response-file]",
		Short: "Show the file changes a response proposes without applying them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cfg.newApp(responseArg(args), false)
			if err != nil {
				return err
			}
			defer ui.Close()

			text, err := app.ReadResponse(cmd.Context())
			if err != nil {
				return err
			}
			result := app.AnalyzeResponse(text)
			if cfg.JSON {
				return cfg.printJSON(result)
			}

			ui.PrintAnalysis(result)
			for _, c := range result.FileChanges {
				if c.ChangeType != model.Update {
					continue
				}
				fmt.Fprintf(cfg.stdout, "\n--- %s ---\n", c.Path)
				fmt.Fprint(cfg.stdout, ui.RenderPreview(c.OriginalContent, c.Content, cfg.Context))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&cfg.Context, "context", "C", previewContext, "Unchanged lines shown around each change in previews.")
	return cmd
}

func newApplyCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "apply [response-file]",
		Short: "Apply the file changes a response proposes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, cfg, aipatch.ActionApply, args)
		},
	}
}

func newHistoryCmd(cfg *Config, use, short string, action aipatch.Action) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, cfg, action, nil)
		},
	}
}

func newEditCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <file> [request-file]",
		Short: "Patch one file with code or a unified diff",
		Long: `edit applies an edit request to a single file. The request is a unified
diff, or code (fenced or not) that replaces --lines or the whole file. The
request is read from request-file, stdin or the clipboard. The patched file is
printed unless --write is given.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := ParseLines(cfg.Lines)
			if err != nil {
				return err
			}
			app, err := cfg.newApp(responseArg(args[1:]), cfg.Write)
			if err != nil {
				return err
			}
			defer ui.Close()

			request, err := app.ReadResponse(cmd.Context())
			if err != nil {
				return err
			}
			result, err := app.EditFile(args[0], request, rng)
			if err != nil {
				return err
			}

			if cfg.JSON {
				if err := cfg.printJSON(result); err != nil {
					return err
				}
			} else if !cfg.Write {
				fmt.Fprint(cfg.stdout, result.NewContent)
			}
			ui.Info("%s (confidence %d)", result.Summary, result.Confidence)

			if !cfg.Write {
				return nil
			}
			summary, err := app.Apply(cmd.Context(), []model.FileChangeCandidate{{
				Path:       args[0],
				Content:    result.NewContent,
				ChangeType: model.Update,
				Confidence: result.Confidence,
				LineRange:  rng,
			}})
			if err != nil {
				return err
			}
			ui.PrintApplySummary(summary)
			return summaryErr(summary)
		},
	}
	cmd.Flags().StringVar(&cfg.Lines, "lines", "", "Line range to replace, as start:end (1-based, inclusive).")
	cmd.Flags().BoolVarP(&cfg.Write, "write", "w", false, "Write the result and record it for undo.")
	return cmd
}

// runAction executes an apply, undo or redo, under the TUI when stderr is a
// terminal and animation is on.
func runAction(cmd *cobra.Command, cfg *Config, action aipatch.Action, args []string) error {
	app, err := cfg.newApp(responseArg(args), true)
	if err != nil {
		return err
	}
	defer ui.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if !cfg.NoAnimation && !cfg.JSON && term.IsTerminal(int(os.Stderr.Fd())) {
		ui.SetQuiet(true)
		return tui.Run(ctx, app, action)
	}

	var bar *ui.ProgressBar
	app.SetProgressCallback(func(current, total int) {
		if cfg.NoAnimation || cfg.JSON {
			return
		}
		if bar == nil {
			bar = ui.NewProgressBar(total, "Applying")
			bar.Start()
		}
		bar.Set(current)
	})

	summary, err := app.Execute(ctx, action)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}
	if cfg.JSON {
		return cfg.printJSON(jsonSummary(summary))
	}
	ui.PrintApplySummary(summary)
	return summaryErr(summary)
}

// summaryErr makes a run with failed files exit non-zero.
func summaryErr(s model.Summary) error {
	if len(s.Failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d file(s) failed", len(s.Failed))
}

// jsonSummary flattens Summary.Errors, which encoding/json cannot render.
func jsonSummary(s model.Summary) interface{} {
	errs := make(map[string]string, len(s.Errors))
	for path, err := range s.Errors {
		errs[path] = err.Error()
	}
	return struct {
		Created  []string          `json:"created"`
		Modified []string          `json:"modified"`
		Deleted  []string          `json:"deleted"`
		Failed   []string          `json:"failed"`
		Message  string            `json:"message,omitempty"`
		Errors   map[string]string `json:"errors,omitempty"`
		Analysis *model.Analysis   `json:"analysis,omitempty"`
	}{s.Created, s.Modified, s.Deleted, s.Failed, s.Message, errs, s.Analysis}
}

// IsDetailed reports whether err carries a stack trace worth printing.
func IsDetailed(err error) (*aipatch.DetailedError, bool) {
	var detailed *aipatch.DetailedError
	ok := errors.As(err, &detailed)
	return detailed, ok
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sokinpui/aipatch/aipatch"
	"github.com/sokinpui/aipatch/internal/config"
	"github.com/sokinpui/aipatch/internal/fs"
	"github.com/sokinpui/aipatch/internal/ui"
	"github.com/sokinpui/aipatch/model"
)

// Config holds all the command-line flag values.
type Config struct {
	LookupDirs  []string
	Extensions  []string
	ConfigFile  string
	LogFile     string
	NoAnimation bool
	JSON        bool
	Buffer      bool
	Nvim        bool

	// edit
	Lines string
	Write bool

	// analyze
	Context int

	stdout io.Writer
}

// NewRootCmd builds the aipatch command tree. Run without a subcommand it
// behaves like apply.
func NewRootCmd() *cobra.Command {
	return newRootCmd(os.Stdout)
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	cfg := &Config{stdout: stdout}

	root := &cobra.Command{
		Use:   "aipatch [response-file]",
		Short: "Apply the code changes proposed in an AI chat response",
		Long: `aipatch reads an AI assistant's response from a file, stdin (pipe) or the
clipboard, works out which code blocks are meant as file changes, and applies
them. Every apply is backed up and can be undone.`,
		Example:       "  pbpaste | aipatch -e py\n  aipatch analyze response.md --json\n  aipatch undo",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.normalize()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, cfg, aipatch.ActionApply, args)
		},
	}
	cfg.bindFlags(root.PersistentFlags())

	root.AddCommand(
		newAnalyzeCmd(cfg),
		newApplyCmd(cfg),
		newEditCmd(cfg),
		newHistoryCmd(cfg, "undo", "Undo the last operation.", aipatch.ActionUndo),
		newHistoryCmd(cfg, "redo", "Redo the last undone operation.", aipatch.ActionRedo),
	)
	return root
}

func (c *Config) bindFlags(flags *pflag.FlagSet) {
	flags.StringSliceVarP(&c.LookupDirs, "lookup-dir", "l", []string{}, "Directories to resolve file paths in. New files go to the first one (default: current directory).")
	flags.StringSliceVarP(&c.Extensions, "extension", "e", []string{}, "Filter by extension. Use 'diff' to process only diff blocks (e.g., 'py', 'js', 'diff').")
	flags.StringVar(&c.ConfigFile, "config", "", "Thresholds file (default: "+config.FileName+" in the first lookup directory).")
	flags.StringVar(&c.LogFile, "log-file", "", "Also log to this file (default: "+filepath.Join(fs.StateDirName, "aipatch.log")+" when changing files).")
	flags.BoolVar(&c.NoAnimation, "no-animation", false, "Disable loading spinner and progress updates.")
	flags.BoolVar(&c.JSON, "json", false, "Print machine-readable JSON to stdout.")
	flags.BoolVarP(&c.Buffer, "buffer", "b", false, "Update buffers in Neovim without saving them to disk (changes are saved by default).")
	flags.BoolVar(&c.Nvim, "nvim", false, "Write files through Neovim buffers and save them.")
}

// normalize validates flag combinations and gives extensions a leading dot.
func (c *Config) normalize() error {
	if c.Buffer && c.Nvim {
		return fmt.Errorf("--buffer and --nvim are mutually exclusive")
	}
	for i, ext := range c.Extensions {
		if len(ext) > 0 && ext[0] != '.' {
			c.Extensions[i] = "." + ext
		}
	}
	return nil
}

// newApp loads the thresholds file and opens the log, then builds the App.
// logByDefault turns on the default log file for commands that change files.
func (c *Config) newApp(responseFile string, logByDefault bool) (*aipatch.App, error) {
	root := "."
	if len(c.LookupDirs) > 0 {
		root = c.LookupDirs[0]
	}

	configPath, explicit := c.ConfigFile, c.ConfigFile != ""
	if !explicit {
		configPath = filepath.Join(root, config.FileName)
	}
	thresholds, err := config.Load(configPath, explicit)
	if err != nil {
		return nil, err
	}

	logFile := c.LogFile
	if logFile == "" && logByDefault {
		logFile = filepath.Join(root, fs.StateDirName, "aipatch.log")
	}
	if err := ui.SetLogFile(logFile); err != nil {
		return nil, err
	}
	ui.SetQuiet(c.JSON)

	app, err := aipatch.New(aipatch.Config{
		LookupDirs:   c.LookupDirs,
		Extensions:   c.Extensions,
		Thresholds:   thresholds,
		ResponseFile: responseFile,
		Nvim:         c.Nvim,
		Buffer:       c.Buffer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return app, nil
}

func (c *Config) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ParseLines parses a 1-based inclusive "start:end" range. "start:" runs to
// the end of the file and "n" is a single line. An end below start marks an
// insertion before start.
func ParseLines(s string) (*model.LineRange, error) {
	if s == "" {
		return nil, nil
	}
	startStr, endStr, found := strings.Cut(s, ":")
	start, err := strconv.Atoi(strings.TrimSpace(startStr))
	if err != nil || start < 1 {
		return nil, fmt.Errorf("invalid line range %q: start must be a positive number", s)
	}
	end := start
	if found {
		endStr = strings.TrimSpace(endStr)
		if endStr == "" {
			end = int(^uint(0) >> 1)
		} else if end, err = strconv.Atoi(endStr); err != nil || end < 0 {
			return nil, fmt.Errorf("invalid line range %q: end must be a number", s)
		}
	}
	return &model.LineRange{Start: start, End: end}, nil
}

func responseArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

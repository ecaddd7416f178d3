package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default tuning values. They have no derivation beyond having worked well
// in practice; override them through the config file rather than editing.
const (
	DefaultActionableScore       = 20
	DefaultClassifyWindow        = 200
	DefaultFilenameWindowBefore  = 300
	DefaultFilenameWindowAfter   = 100
	DefaultMinFragmentLength     = 10
	DefaultDedupPrefixLength     = 100
	DefaultMaxFilenameLength     = 100
	DefaultSmallFunctionMaxLines = 10
	DefaultFunctionScopeDistance = 40
)

// FileName is the config file looked up in the working directory.
const FileName = ".aipatch.yaml"

// Thresholds holds every magic number used by the analysis pipeline.
type Thresholds struct {
	ActionableScore       int `yaml:"actionable_score"`
	ClassifyWindow        int `yaml:"classify_window"`
	FilenameWindowBefore  int `yaml:"filename_window_before"`
	FilenameWindowAfter   int `yaml:"filename_window_after"`
	MinFragmentLength     int `yaml:"min_fragment_length"`
	DedupPrefixLength     int `yaml:"dedup_prefix_length"`
	MaxFilenameLength     int `yaml:"max_filename_length"`
	SmallFunctionMaxLines int `yaml:"small_function_max_lines"`
	// FunctionScopeDistance is how many characters may separate "function"
	// from "in"/"inside" for the function-scoped edit signal.
	FunctionScopeDistance int `yaml:"function_scope_distance"`
}

// Defaults returns the built-in thresholds.
func Defaults() Thresholds {
	return Thresholds{
		ActionableScore:       DefaultActionableScore,
		ClassifyWindow:        DefaultClassifyWindow,
		FilenameWindowBefore:  DefaultFilenameWindowBefore,
		FilenameWindowAfter:   DefaultFilenameWindowAfter,
		MinFragmentLength:     DefaultMinFragmentLength,
		DedupPrefixLength:     DefaultDedupPrefixLength,
		MaxFilenameLength:     DefaultMaxFilenameLength,
		SmallFunctionMaxLines: DefaultSmallFunctionMaxLines,
		FunctionScopeDistance: DefaultFunctionScopeDistance,
	}
}

// WithDefaults fills every zero field of t from Defaults.
func (t Thresholds) WithDefaults() Thresholds {
	d := Defaults()
	fill := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}
	fill(&t.ActionableScore, d.ActionableScore)
	fill(&t.ClassifyWindow, d.ClassifyWindow)
	fill(&t.FilenameWindowBefore, d.FilenameWindowBefore)
	fill(&t.FilenameWindowAfter, d.FilenameWindowAfter)
	fill(&t.MinFragmentLength, d.MinFragmentLength)
	fill(&t.DedupPrefixLength, d.DedupPrefixLength)
	fill(&t.MaxFilenameLength, d.MaxFilenameLength)
	fill(&t.SmallFunctionMaxLines, d.SmallFunctionMaxLines)
	fill(&t.FunctionScopeDistance, d.FunctionScopeDistance)
	return t
}

type file struct {
	Thresholds Thresholds `yaml:"thresholds"`
}

// Load reads thresholds from a YAML file. A missing file yields the defaults
// unless the path was given explicitly.
func Load(path string, explicit bool) (Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return Defaults(), nil
		}
		return Thresholds{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML document into thresholds, defaulting unset fields.
func Parse(data []byte) (Thresholds, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Thresholds{}, fmt.Errorf("invalid config: %w", err)
	}
	if f.Thresholds.ActionableScore < 0 || f.Thresholds.MinFragmentLength < 0 {
		return Thresholds{}, fmt.Errorf("invalid config: thresholds must not be negative")
	}
	return f.Thresholds.WithDefaults(), nil
}

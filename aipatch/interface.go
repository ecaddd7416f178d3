package aipatch

import (
	"context"
	"fmt"

	"github.com/sokinpui/aipatch/model"
)

// Analyze runs the analysis pipeline over content without writing anything.
func Analyze(content string, config Config) (model.AnalysisResult, error) {
	app, err := New(config)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to initialize aipatch app: %w", err)
	}
	return app.AnalyzeResponse(content), nil
}

// Apply parses the given content string and applies the changes to files.
// It returns a summary of the operations in a map.
func Apply(ctx context.Context, content string, config Config) (map[string][]string, error) {
	app, err := New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize aipatch app: %w", err)
	}

	summary, err := app.Process(ctx, content)
	if err != nil {
		return nil, err
	}

	result := map[string][]string{
		"Created":  summary.Created,
		"Modified": summary.Modified,
		"Deleted":  summary.Deleted,
		"Failed":   summary.Failed,
	}

	return result, nil
}

package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"golang.org/x/term"
	"golang.org/x/text/unicode/norm"

	"github.com/sokinpui/aipatch/internal/ui"
)

// SourceProvider determines and retrieves the response text to analyze.
type SourceProvider struct {
	stdin     io.Reader
	piped     func() bool
	clipboard func() (string, error)
}

// New creates a SourceProvider reading from the process's stdin or the
// system clipboard.
func New() *SourceProvider {
	return &SourceProvider{
		stdin: os.Stdin,
		piped: func() bool {
			return !term.IsTerminal(int(os.Stdin.Fd()))
		},
		clipboard: clipboard.ReadAll,
	}
}

// NewWith creates a SourceProvider over explicit inputs.
func NewWith(stdin io.Reader, piped bool, clip func() (string, error)) *SourceProvider {
	return &SourceProvider{
		stdin:     stdin,
		piped:     func() bool { return piped },
		clipboard: clip,
	}
}

// GetContent retrieves content from stdin (if piped) or the clipboard. The
// text is normalized to NFC, since browser copies mix composed and
// decomposed forms.
func (sp *SourceProvider) GetContent(ctx context.Context) (string, error) {
	if sp.piped() {
		ui.Header("--- Reading from stdin ---")
		content, err := readAll(ctx, sp.stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return Normalize(content), nil
	}

	ui.Header("--- Reading from clipboard ---")
	if err := ctx.Err(); err != nil {
		return "", err
	}
	content, err := sp.clipboard()
	if err != nil {
		return "", fmt.Errorf("failed to read from clipboard: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		ui.Warning("Clipboard is empty. Nothing to process.")
		return "", nil
	}
	return Normalize(content), nil
}

// FromFile reads and normalizes a saved response.
func FromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Normalize(string(data)), nil
}

// Normalize converts text to NFC and unifies line endings.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return norm.NFC.String(text)
}

func readAll(ctx context.Context, r io.Reader) (string, error) {
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := io.ReadAll(r)
		done <- result{data, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return string(res.data), res.err
	}
}

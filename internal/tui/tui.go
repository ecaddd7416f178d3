package tui

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/aipatch/aipatch"
	"github.com/sokinpui/aipatch/model"
)

// --- Styles ---
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")) // Mauve
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))            // Green
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))           // Orange
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))           // Red
	pathStyle    = lipgloss.NewStyle()
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// --- Messages ---
type summaryMsg struct {
	model.Summary
}

type progressMsg struct {
	current, total int
}

type errorMsg struct{ err error }

func (e errorMsg) Error() string { return e.err.Error() }

// --- Model ---
type Model struct {
	run      func() (model.Summary, error)
	spinner  spinner.Model
	state    state
	progress progressMsg
	summary  summaryMsg
	err      error
}

type state int

const (
	stateProcessing state = iota
	stateSummary
	stateError
)

// New creates a model that shows a spinner while run executes, then its
// summary.
func New(run func() (model.Summary, error)) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		run:     run,
		spinner: s,
		state:   stateProcessing,
	}
}

// Run executes action on app under a bubbletea program and returns the
// error the action ended with.
func Run(ctx context.Context, app *aipatch.App, action aipatch.Action) error {
	m := New(func() (model.Summary, error) {
		return app.Execute(ctx, action)
	})
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr), tea.WithContext(ctx))
	app.SetProgressCallback(func(current, total int) {
		p.Send(progressMsg{current: current, total: total})
	})

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	if fm, ok := final.(Model); ok && fm.err != nil {
		return fm.err
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runApp)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case progressMsg:
		m.progress = msg
		return m, nil

	case summaryMsg:
		m.state = stateSummary
		m.summary = msg
		return m, tea.Quit

	case errorMsg:
		m.state = stateError
		m.err = msg.err
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		if m.state == stateProcessing {
			m.spinner, cmd = m.spinner.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	switch m.state {
	case stateProcessing:
		if m.progress.total > 0 {
			return fmt.Sprintf("%s Processing... [%d/%d]", m.spinner.View(), m.progress.current, m.progress.total)
		}
		return fmt.Sprintf("%s Processing...", m.spinner.View())
	case stateError:
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	case stateSummary:
		return m.renderSummary()
	default:
		return ""
	}
}

func (m *Model) renderSummary() string {
	var b strings.Builder

	if a := m.summary.Analysis; a != nil {
		b.WriteString(faintStyle.Render(fmt.Sprintf(
			"Analyzed %d block(s): %d actionable, %d example(s), %d explanation(s)",
			a.TotalBlocks, a.ActionableBlocks, a.Examples, a.Explanations)))
		b.WriteString("\n")
	}

	if m.summary.Message != "" {
		b.WriteString(headerStyle.Render(m.summary.Message))
		b.WriteString("\n\n")
	}

	hasContent := false
	section := func(title string, style lipgloss.Style, paths []string) {
		if len(paths) == 0 {
			return
		}
		hasContent = true
		b.WriteString(style.Render(title))
		b.WriteString("\n")
		for _, f := range paths {
			line := pathStyle.Render(f)
			if err, ok := m.summary.Errors[f]; ok {
				line += faintStyle.Render(": " + err.Error())
			}
			b.WriteString(fmt.Sprintf("  %s\n", line))
		}
	}
	section("Created:", successStyle, m.summary.Created)
	section("Modified:", successStyle, m.summary.Modified)
	section("Deleted:", warnStyle, m.summary.Deleted)
	failed := append([]string(nil), m.summary.Failed...)
	sort.Strings(failed)
	section("Failed:", errorStyle, failed)

	if !hasContent && m.summary.Message == "" {
		b.WriteString(faintStyle.Render("Nothing to do."))
		b.WriteString("\n")
	}

	return b.String()
}

func (m *Model) runApp() tea.Msg {
	summary, err := m.run()
	if err != nil {
		// The stack of a DetailedError is printed by the caller once the
		// program has released the terminal.
		return errorMsg{err}
	}
	return summaryMsg{
		Summary: summary,
	}
}

// Package state keeps the history of applied changes so they can be undone
// and redone.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const stateFileName = "history"

// emptyField stands in for an empty value in the state file.
const emptyField = "-"

var (
	ErrNothingToUndo = errors.New("no operation to undo")
	ErrNothingToRedo = errors.New("no operation to redo")
)

// Operation is one file change within an applied batch.
type Operation struct {
	Path   string
	Action string
	// ContentHash is the SHA-256 of the file after the operation, empty for
	// a delete.
	ContentHash string
	// Backup holds the file as it was before the operation; empty for a
	// create.
	Backup string
	// Snapshot holds the file as it was after the operation; empty for a
	// delete.
	Snapshot string
}

// HistoryEntry represents one complete apply run.
type HistoryEntry struct {
	Timestamp  int64
	Operations []Operation
}

// State represents the entire state file.
type State struct {
	History      []HistoryEntry
	CurrentIndex int
}

// Manager handles the lifecycle of the state file.
type Manager struct {
	mu        sync.Mutex
	statePath string
	state     *State
	now       func() time.Time
}

// Open loads the history kept in dir, creating dir if needed. An unreadable
// state file starts a fresh history.
func Open(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create state directory: %w", err)
	}
	m := &Manager{
		statePath: filepath.Join(dir, stateFileName),
		now:       time.Now,
	}
	if err := m.load(); err != nil {
		m.state = freshState()
	}
	return m, nil
}

func freshState() *State {
	return &State{CurrentIndex: -1, History: []HistoryEntry{}}
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.state = freshState()
			return nil
		}
		return err
	}
	st, err := parse(string(data))
	if err != nil {
		return err
	}
	m.state = st
	return nil
}

// parse reads the state file: the current index, then one blank-line
// separated block per history entry holding a timestamp followed by five
// lines per operation.
func parse(content string) (*State, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	blocks := strings.Split(content, "\n\n")
	if len(blocks) == 0 || strings.TrimSpace(blocks[0]) == "" {
		return freshState(), nil
	}

	index, err := strconv.Atoi(strings.TrimSpace(blocks[0]))
	if err != nil {
		return nil, fmt.Errorf("invalid state file: could not parse current index: %w", err)
	}
	st := &State{CurrentIndex: index, History: []HistoryEntry{}}

	for _, block := range blocks[1:] {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		ts, err := strconv.ParseInt(lines[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid state file: could not parse timestamp from '%s': %w", lines[0], err)
		}

		entry := HistoryEntry{Timestamp: ts}
		opLines := lines[1:]
		if len(opLines)%5 != 0 {
			return nil, fmt.Errorf("invalid state file: incomplete operation record")
		}
		for i := 0; i < len(opLines); i += 5 {
			entry.Operations = append(entry.Operations, Operation{
				Action:      opLines[i],
				Path:        opLines[i+1],
				ContentHash: field(opLines[i+2]),
				Backup:      field(opLines[i+3]),
				Snapshot:    field(opLines[i+4]),
			})
		}
		st.History = append(st.History, entry)
	}

	if st.CurrentIndex < -1 || st.CurrentIndex >= len(st.History) {
		return nil, fmt.Errorf("invalid state file: index %d out of range", st.CurrentIndex)
	}
	return st, nil
}

func field(s string) string {
	if s == emptyField {
		return ""
	}
	return s
}

func orEmpty(s string) string {
	if s == "" {
		return emptyField
	}
	return s
}

func (m *Manager) save() error {
	blocks := []string{strconv.Itoa(m.state.CurrentIndex)}

	for _, entry := range m.state.History {
		lines := []string{strconv.FormatInt(entry.Timestamp, 10)}
		for _, op := range entry.Operations {
			lines = append(lines,
				op.Action,
				op.Path,
				orEmpty(op.ContentHash),
				orEmpty(op.Backup),
				orEmpty(op.Snapshot),
			)
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}

	content := strings.Join(blocks, "\n\n") + "\n"
	if err := os.WriteFile(m.statePath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("could not save history: %w", err)
	}
	return nil
}

// Record adds a new set of operations to the history, discarding anything
// that had been undone.
func (m *Manager) Record(operations []Operation) error {
	if len(operations) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.CurrentIndex < len(m.state.History)-1 {
		m.state.History = m.state.History[:m.state.CurrentIndex+1]
	}
	m.state.History = append(m.state.History, HistoryEntry{
		Timestamp:  m.now().UTC().Unix(),
		Operations: operations,
	})
	m.state.CurrentIndex++
	return m.save()
}

// Undo hands the latest applied operations to run and moves the history
// pointer back if run reports that anything was reverted.
func (m *Manager) Undo(run func(ops []Operation) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.CurrentIndex < 0 {
		return ErrNothingToUndo
	}
	if !run(m.state.History[m.state.CurrentIndex].Operations) {
		return nil
	}
	m.state.CurrentIndex--
	return m.save()
}

// Redo hands the next undone operations to run and moves the history
// pointer forward if run reports that anything was re-applied.
func (m *Manager) Redo(run func(ops []Operation) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.state.CurrentIndex + 1
	if next >= len(m.state.History) {
		return ErrNothingToRedo
	}
	if !run(m.state.History[next].Operations) {
		return nil
	}
	m.state.CurrentIndex = next
	return m.save()
}

// Entries returns a copy of the history and the index of the latest applied
// entry.
func (m *Manager) Entries() ([]HistoryEntry, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]HistoryEntry(nil), m.state.History...), m.state.CurrentIndex
}

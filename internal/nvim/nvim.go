package nvim

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/neovim/go-client/nvim"

	"github.com/sokinpui/aipatch/internal/fs"
)

// Manager handles the connection and interaction with a Neovim instance.
type Manager struct {
	nvim          *nvim.Nvim
	isSelfStarted bool
	cmd           *exec.Cmd
	socketPath    string
}

// New creates a new Neovim manager, connecting to an existing instance
// or starting a new headless one.
func New(ctx context.Context) (*Manager, error) {
	// Try to connect to a running instance first.
	for _, env := range []string{"NVIM", "NVIM_LISTEN_ADDRESS"} {
		if addr := os.Getenv(env); addr != "" {
			if v, err := nvim.Dial(addr, nvim.DialContext(ctx)); err == nil {
				return &Manager{nvim: v}, nil
			}
		}
	}

	// If that fails, start a temporary headless instance.
	tmpDir, err := os.MkdirTemp("", "aipatch-nvim-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir for nvim: %w", err)
	}
	socketPath := filepath.Join(tmpDir, "nvim.sock")

	cmd := exec.CommandContext(ctx, "nvim", "--headless", "--clean", "--listen", socketPath)
	if err := cmd.Start(); err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("failed to start headless nvim: %w. Is 'nvim' in your PATH?", err)
	}

	// Wait for the socket file to appear.
	for i := 0; i < 20; i++ {
		if _, err := os.Stat(socketPath); err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	v, err := nvim.Dial(socketPath, nvim.DialContext(ctx))
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("failed to connect to headless nvim: %w", err)
	}

	m := &Manager{
		nvim:          v,
		isSelfStarted: true,
		cmd:           cmd,
		socketPath:    socketPath,
	}
	if err := m.configureTempInstance(); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

// configureTempInstance keeps a headless instance from leaving swap files
// behind.
func (m *Manager) configureTempInstance() error {
	b := m.nvim.NewBatch()
	b.Command("set noswapfile")
	b.Command("set hidden")
	if err := b.Execute(); err != nil {
		return fmt.Errorf("failed to configure headless nvim: %w", err)
	}
	return nil
}

// Close disconnects from Neovim and cleans up if it was self-started.
func (m *Manager) Close() {
	if m.nvim != nil {
		m.nvim.Close()
	}
	if m.isSelfStarted && m.cmd != nil && m.cmd.Process != nil {
		if err := m.cmd.Process.Kill(); err == nil {
			m.cmd.Wait()
			os.RemoveAll(filepath.Dir(m.socketPath))
		}
	}
}

// updateBuffer loads absPath into a buffer and replaces its lines, writing
// it to disk when save is set.
func (m *Manager) updateBuffer(absPath string, lines []string, save bool) error {
	byteContent := make([][]byte, len(lines))
	for i, s := range lines {
		byteContent[i] = []byte(s)
	}

	b := m.nvim.NewBatch()
	b.Command("edit " + escapePath(absPath))
	b.SetBufferLines(0, 0, -1, true, byteContent)
	if save {
		b.Command("write")
	}
	if err := b.Execute(); err != nil {
		return fmt.Errorf("failed to update buffer for %s: %w", absPath, err)
	}
	return nil
}

// wipeBuffer drops any buffer still showing absPath.
func (m *Manager) wipeBuffer(absPath string) error {
	return m.nvim.Command(fmt.Sprintf("silent! bwipeout! %s", escapePath(absPath)))
}

// BufferStore is a FileStore whose writes go through Neovim buffers, so an
// editor attached to the instance sees changes with its undo history intact.
// Reads and existence checks use the disk.
type BufferStore struct {
	m    *Manager
	disk *fs.OSStore
	save bool
}

// NewBufferStore writes through m. With save unset, buffers are updated but
// left modified and unsaved.
func NewBufferStore(m *Manager, disk *fs.OSStore, save bool) *BufferStore {
	return &BufferStore{m: m, disk: disk, save: save}
}

func (s *BufferStore) Exists(path string) bool {
	return s.disk.Exists(path)
}

func (s *BufferStore) Read(path string) (string, error) {
	return s.disk.Read(path)
}

func (s *BufferStore) Write(path, content string) error {
	abs, err := s.disk.Prepare(path)
	if err != nil {
		return err
	}
	return s.m.updateBuffer(abs, ToLines(content), s.save)
}

func (s *BufferStore) Remove(path string) error {
	abs := s.disk.ResolveExisting(path)
	if err := s.disk.Remove(path); err != nil {
		return err
	}
	if err := s.m.wipeBuffer(abs); err != nil {
		return fmt.Errorf("file removed but its buffer could not be closed: %w", err)
	}
	return nil
}

// ToLines splits content into buffer lines. A final newline is implied by
// Neovim's 'eol' option, so it does not become an extra empty line.
func ToLines(content string) []string {
	if content == "" {
		return []string{}
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

// escapePath escapes characters that are special in Ex command arguments.
func escapePath(path string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		" ", `\ `,
		"%", `\%`,
		"#", `\#`,
		"|", `\|`,
		`"`, `\"`,
	)
	return r.Replace(path)
}

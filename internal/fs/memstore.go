package fs

import (
	"fmt"
	"sort"
	"sync"
)

// MemStore is an in-memory FileStore and BackupStore. It is safe for
// concurrent use.
type MemStore struct {
	mu      sync.RWMutex
	files   map[string]string
	backups map[string]string
	seq     int
}

// NewMemStore returns a store holding files.
func NewMemStore(files map[string]string) *MemStore {
	m := &MemStore{
		files:   make(map[string]string, len(files)),
		backups: make(map[string]string),
	}
	for path, content := range files {
		m.files[path] = content
	}
	return m
}

func (m *MemStore) Exists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[path]
	return ok
}

func (m *MemStore) Read(path string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.files[path]
	if !ok {
		return "", fmt.Errorf("read %s: %w", path, ErrNotFound)
	}
	return content, nil
}

func (m *MemStore) Write(path, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
	return nil
}

func (m *MemStore) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; !ok {
		return fmt.Errorf("remove %s: %w", path, ErrNotFound)
	}
	delete(m.files, path)
	return nil
}

// CreateBackup stores a copy of path under a sequence-qualified name.
func (m *MemStore) CreateBackup(path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[path]
	if !ok {
		return "", fmt.Errorf("backup %s: %w", path, ErrNotFound)
	}
	m.seq++
	name := fmt.Sprintf("%s.%d.bak", path, m.seq)
	m.backups[name] = content
	return name, nil
}

// ReadBackup returns the content saved under name by CreateBackup.
func (m *MemStore) ReadBackup(name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.backups[name]
	if !ok {
		return "", fmt.Errorf("read backup %s: %w", name, ErrNotFound)
	}
	return content, nil
}

// Paths lists stored files in order.
func (m *MemStore) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.files))
	for path := range m.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

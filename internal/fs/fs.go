// Package fs provides the file stores the pipeline reads from and the apply
// layer writes to.
package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
)

var (
	// ErrNotFound is returned when reading or removing a file that does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrOutsideRoot is returned when a path escapes every lookup directory.
	ErrOutsideRoot = errors.New("path is outside the lookup directories")
	// ErrIgnored is returned when writing to a path matched by an ignore file.
	ErrIgnored = errors.New("path is ignored")
)

// StateDirName is the per-project directory holding backups, history and logs.
const StateDirName = ".aipatch"

// FileStore is the file access the pipeline and the apply layer need.
type FileStore interface {
	Exists(path string) bool
	Read(path string) (string, error)
	Write(path, content string) error
	Remove(path string) error
}

// BackupStore snapshots a file before it is changed.
type BackupStore interface {
	// CreateBackup copies path aside and returns where it went. Names carry a
	// timestamp and never collide.
	CreateBackup(path string) (string, error)
	// ReadBackup returns the content of a backup made by CreateBackup.
	ReadBackup(name string) (string, error)
}

// OSStore is a FileStore on the local disk. Relative paths are looked up in
// each lookup directory in turn; new files go to the first one.
type OSStore struct {
	lookupDirs []string
	ignore     *ignore.GitIgnore
	backupDir  string
	now        func() time.Time

	mu  sync.Mutex
	seq int
}

// NewOSStore creates a store over lookupDirs, or the working directory when
// none are given. Ignore rules come from .gitignore and .aipatch/ignore in the
// first lookup directory.
func NewOSStore(lookupDirs []string) (*OSStore, error) {
	if len(lookupDirs) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("could not get current working directory: %w", err)
		}
		lookupDirs = []string{wd}
	}

	absDirs := make([]string, 0, len(lookupDirs))
	for _, dir := range lookupDirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("invalid lookup directory %q: %w", dir, err)
		}
		absDirs = append(absDirs, abs)
	}

	root := absDirs[0]
	return &OSStore{
		lookupDirs: absDirs,
		ignore:     loadIgnoreRules(root),
		backupDir:  filepath.Join(root, StateDirName, "backups"),
		now:        time.Now,
	}, nil
}

// Root is the first lookup directory.
func (s *OSStore) Root() string {
	return s.lookupDirs[0]
}

// Resolve finds an absolute path, assuming a new file in the first lookup
// directory if it doesn't exist.
func (s *OSStore) Resolve(path string) string {
	if existing := s.ResolveExisting(path); existing != "" {
		return existing
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(s.lookupDirs[0], path)
}

// ResolveExisting finds an absolute path only if the file exists inside a
// lookup directory.
func (s *OSStore) ResolveExisting(path string) string {
	abs := s.find(path)
	if abs == "" || s.containingRoot(abs) == "" {
		return ""
	}
	return abs
}

// find returns the first existing file path names, contained or not.
func (s *OSStore) find(path string) string {
	if filepath.IsAbs(path) {
		if isFile(path) {
			return filepath.Clean(path)
		}
		return ""
	}
	for _, dir := range s.lookupDirs {
		absPath := filepath.Join(dir, path)
		if isFile(absPath) {
			return absPath
		}
	}
	return ""
}

// existing is ResolveExisting with an error saying why nothing was found.
func (s *OSStore) existing(path string) (string, error) {
	abs := s.find(path)
	if abs == "" {
		return "", ErrNotFound
	}
	if s.containingRoot(abs) == "" {
		return "", ErrOutsideRoot
	}
	return abs, nil
}

// Rel returns path relative to the first lookup directory when possible.
func (s *OSStore) Rel(path string) string {
	rel, err := filepath.Rel(s.lookupDirs[0], s.Resolve(path))
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

func (s *OSStore) Exists(path string) bool {
	return s.ResolveExisting(path) != ""
}

func (s *OSStore) Read(path string) (string, error) {
	abs, err := s.existing(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// Prepare resolves path for writing: it must be inside a lookup directory
// and not ignored. Its parent directory is created.
func (s *OSStore) Prepare(path string) (string, error) {
	abs := s.Resolve(path)
	if err := s.checkWritable(abs); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("create directory for %s: %w", path, err)
	}
	return abs, nil
}

func (s *OSStore) Write(path, content string) error {
	abs, err := s.Prepare(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Remove deletes path and then its parent directory if that is left empty.
func (s *OSStore) Remove(path string) error {
	abs, err := s.existing(path)
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	if err := s.checkWritable(abs); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	parent := filepath.Dir(abs)
	if parent != s.containingRoot(abs) {
		if empty, _ := IsEmpty(parent); empty {
			_ = os.Remove(parent)
		}
	}
	return nil
}

// CreateBackup copies an existing file into .aipatch/backups.
func (s *OSStore) CreateBackup(path string) (string, error) {
	abs, err := s.existing(path)
	if err != nil {
		return "", fmt.Errorf("backup %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("backup %s: %w", path, err)
	}

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("could not create backup directory: %w", err)
	}
	dest := filepath.Join(s.backupDir, s.backupName(s.Rel(abs)))
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("backup %s: %w", path, err)
	}
	return dest, nil
}

func (s *OSStore) ReadBackup(name string) (string, error) {
	data, err := os.ReadFile(name)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read backup %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read backup %s: %w", name, err)
	}
	return string(data), nil
}

// backupName flattens rel and qualifies it with a timestamp and a sequence
// number, so two backups taken in the same instant still differ.
func (s *OSStore) backupName(rel string) string {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	flat := strings.NewReplacer("/", "__", "\\", "__").Replace(rel)
	stamp := s.now().UTC().Format("20060102T150405.000000000")
	return fmt.Sprintf("%s.%s.%d.bak", flat, stamp, seq)
}

func (s *OSStore) checkWritable(abs string) error {
	root := s.containingRoot(abs)
	if root == "" {
		return ErrOutsideRoot
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return ErrOutsideRoot
	}
	if s.ignore != nil && s.ignore.MatchesPath(filepath.ToSlash(rel)) {
		return ErrIgnored
	}
	return nil
}

func (s *OSStore) containingRoot(abs string) string {
	for _, dir := range s.lookupDirs {
		rel, err := filepath.Rel(dir, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return dir
	}
	return ""
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// IsEmpty reports whether dir has no entries.
func IsEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

// HashContent returns the hex SHA-256 of content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// GetFileSHA256 returns the hex SHA-256 of the file at path.
func GetFileSHA256(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return HashContent(string(data)), nil
}

// Package logfile is the persistent-storage side of the logger: the Store
// abstraction the session talks to, a directory-backed implementation, the
// log naming policy, and the buffered log writer with its sync cadence.
package logfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Store is the storage collaborator: it holds schema files and receives log
// files, addressed by bare names chosen by the core.
type Store interface {
	// Exists reports whether a named file is present.
	Exists(name string) bool
	// ReadFile returns the full contents of a named file.
	ReadFile(name string) ([]byte, error)
	// Create opens a fresh writable log file under name.
	Create(name string) (LogFile, error)
}

// LogFile is an append-only log handle. Sync flushes buffered data to the
// medium without closing.
type LogFile interface {
	io.WriteCloser
	Sync() error
}

// DirStore implements Store over a directory on the local filesystem.
type DirStore struct {
	dir string
}

// NewDirStore creates the directory if needed and returns a store over it.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logfile: mkdir %s: %w", dir, err)
	}
	return &DirStore{dir: dir}, nil
}

// Dir returns the backing directory path.
func (s *DirStore) Dir() string { return s.dir }

func (s *DirStore) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}

func (s *DirStore) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dir, name))
}

func (s *DirStore) Create(name string) (LogFile, error) {
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logfile: create %s: %w", name, err)
	}
	return f, nil
}

// WriteFile drops a file into the store. Used to seed demo schema files; not
// part of the Store contract the session sees.
func (s *DirStore) WriteFile(name string, data []byte) error {
	return os.WriteFile(filepath.Join(s.dir, name), data, 0o644)
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	Files map[string][]byte
	Logs  map[string]*MemFile

	// CreateErr, when set, fails the next Create call.
	CreateErr error
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{Files: map[string][]byte{}, Logs: map[string]*MemFile{}}
}

func (s *MemStore) Exists(name string) bool {
	if _, ok := s.Files[name]; ok {
		return true
	}
	_, ok := s.Logs[name]
	return ok
}

func (s *MemStore) ReadFile(name string) ([]byte, error) {
	data, ok := s.Files[name]
	if !ok {
		return nil, fmt.Errorf("logfile: %s: not found", name)
	}
	return data, nil
}

func (s *MemStore) Create(name string) (LogFile, error) {
	if s.CreateErr != nil {
		err := s.CreateErr
		s.CreateErr = nil
		return nil, err
	}
	f := &MemFile{}
	s.Logs[name] = f
	return f, nil
}

// LogNames returns the names of created logs in sorted order.
func (s *MemStore) LogNames() []string {
	names := make([]string, 0, len(s.Logs))
	for n := range s.Logs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MemFile records writes and sync/close calls for assertions.
type MemFile struct {
	Data   []byte
	Syncs  int
	Closed bool
}

func (f *MemFile) Write(p []byte) (int, error) {
	f.Data = append(f.Data, p...)
	return len(p), nil
}

func (f *MemFile) Sync() error { f.Syncs++; return nil }
func (f *MemFile) Close() error { f.Closed = true; return nil }

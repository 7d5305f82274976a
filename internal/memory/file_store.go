package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"conduit/internal/agent"
	"conduit/internal/jsonx"
)

// FileStore keeps every run in a single JSON array file.
type FileStore struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore opens path, creating it (and its directory) with an empty
// history when missing.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = DefaultConfig().Path
	}
	s := &FileStore{path: path, now: time.Now}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create memory dir: %w", err)
		}
		if err := s.write(nil); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat memory file: %w", err)
	}
	return s, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) SaveRun(_ context.Context, history []agent.RunRecord) error {
	if len(history) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, err := s.read()
	if err != nil {
		return err
	}
	runs = append(runs, newRun(history, s.now()))
	return s.write(runs)
}

func (s *FileStore) All(context.Context) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) Latest(context.Context) (*Run, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	runs, err := s.read()
	if err != nil || len(runs) == 0 {
		return nil, false, err
	}
	return &runs[len(runs)-1], true, nil
}

func (s *FileStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(nil)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) read() ([]Run, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read memory file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var runs []Run
	if err := jsonx.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("decode memory file %s: %w", s.path, err)
	}
	return runs, nil
}

// write replaces the file atomically.
func (s *FileStore) write(runs []Run) error {
	if runs == nil {
		runs = []Run{}
	}
	data, err := jsonx.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode memory file: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".memory-*.json")
	if err != nil {
		return fmt.Errorf("write memory file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write memory file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write memory file: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

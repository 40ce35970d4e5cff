package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// index is the on-disk layout of a FileStore.
type index struct {
	Entries []Entry `json:"entries"`
}

// FileStore keeps every target's entries in one JSON index file, oldest
// first, trimmed to the most recent limit entries.
type FileStore struct {
	path  string
	limit int
	mu    sync.Mutex
}

// NewFileStore creates a store backed by the JSON file at path. The file and
// its directory are created on the first Append.
func NewFileStore(path string, limit int) *FileStore {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &FileStore{path: path, limit: limit}
}

// Path returns the index file location.
func (s *FileStore) Path() string { return s.path }

// Append adds an entry to the index.
func (s *FileStore) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.load()
	if err != nil {
		return err
	}
	idx.Entries = append(idx.Entries, e)
	if len(idx.Entries) > s.limit {
		idx.Entries = idx.Entries[len(idx.Entries)-s.limit:]
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("history: creating directory: %w", err)
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("history: encoding index: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("history: writing index: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("history: writing index: %w", err)
	}
	return nil
}

// Latest returns the most recent entry for target.
func (s *FileStore) Latest(ctx context.Context, target string) (Entry, error) {
	entries, err := s.List(ctx, target, 1)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, ErrNoHistory
	}
	return entries[0], nil
}

// List returns up to limit entries for target, newest first. A limit of
// zero or less returns every entry.
func (s *FileStore) List(ctx context.Context, target string, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	idx, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var out []Entry
	for i := len(idx.Entries) - 1; i >= 0; i-- {
		if idx.Entries[i].Target != target {
			continue
		}
		out = append(out, idx.Entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) load() (index, error) {
	var idx index
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return idx, fmt.Errorf("history: reading index: %w", err)
	}
	if err := json.Unmarshal(data, &idx); err != nil {
		return idx, fmt.Errorf("history: parsing index %s: %w", s.path, err)
	}
	return idx, nil
}

package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store manages session record files on disk, keyed by sanitized name.
// Concurrent writers to the same key are last-write-wins.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates a Store and ensures the directory exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session store: mkdir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, SanitizeName(name)+".json")
}

// Save serializes the record under its sanitized name.
func (s *Store) Save(rec *Record) error {
	if rec == nil || strings.TrimSpace(rec.Name) == "" {
		return fmt.Errorf("session store: record name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("session store: marshal %s: %w", rec.Name, err)
	}
	if err := os.WriteFile(s.path(rec.Name), data, 0o644); err != nil {
		return fmt.Errorf("session store: write %s: %w", rec.Name, err)
	}
	return nil
}

// Load returns the record for name, or nil when no usable record exists.
// A corrupt file reads as absent, never as an error.
func (s *Store) Load(name string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("session store: read %s: %w", name, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		slog.Debug("session file unreadable, treating as absent", "session", name, "error", err)
		return nil, nil
	}
	return &rec, nil
}

// List returns all stored session keys, sorted. Keys are sanitized names,
// not the originals.
func (s *Store) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("session store: glob: %w", err)
	}

	names := make([]string, 0, len(matches))
	for _, path := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(path), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the record for name. Deleting an absent record is a no-op.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("session store: delete %s: %w", name, err)
	}
	return nil
}

// Package flags keeps small advisory markers outside the database, such as
// when the client went offline and when the queue was last flushed. Readers
// treat them as hints only.
package flags

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/offlinekit/internal/filex"
)

const (
	KeyOfflineSince     = "offline_since"
	KeyLastFlushAttempt = "last_flush_attempt"
)

// FileStore persists flags as one JSON object of RFC 3339 timestamps.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) load() (map[string]time.Time, error) {
	m := map[string]time.Time{}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read flags: %w", err)
	}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode flags: %w", err)
	}
	return m, nil
}

func (s *FileStore) save(m map[string]time.Time) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return filex.WriteFileAtomic(s.path, b, 0o600)
}

// Get returns the flag and whether it is set.
func (s *FileStore) Get(key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return time.Time{}, false, err
	}
	t, ok := m[key]
	return t, ok, nil
}

func (s *FileStore) Set(key string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	m[key] = t.UTC()
	return s.save(m)
}

// SetIfAbsent keeps an existing value; it reports whether t was stored.
func (s *FileStore) SetIfAbsent(key string, t time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return false, err
	}
	if _, ok := m[key]; ok {
		return false, nil
	}
	m[key] = t.UTC()
	return true, s.save(m)
}

func (s *FileStore) Clear(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return s.save(m)
}

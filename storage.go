/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const (
	tokenKey = "taboo_token"
	roleKey  = "taboo_role"
)

// Storage is the client-side key-value store that outlives a single run.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	// SetAll writes every pair at once, so readers never see half of them.
	SetAll(values map[string]string) error
	Delete(keys ...string) error
}

// fileStorage keeps string keys in one JSON object on disk.
type fileStorage struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "taboostaff", "session.json")
}

func openFileStorage(path string) (*fileStorage, error) {
	s := &fileStorage{path: path}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// reload re-reads the file, discarding anything cached in memory.
func (s *fileStorage) reload() error {
	values := make(map[string]string)

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("read session file: %w", err)
	case len(data) > 0:
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("decode session file %s: %w", s.path, err)
		}
	}

	s.mu.Lock()
	s.values = values
	s.mu.Unlock()

	return nil
}

func (s *fileStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	return v, ok
}

func (s *fileStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return s.flushLocked()
}

func (s *fileStorage) SetAll(values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range values {
		s.values[k] = v
	}
	return s.flushLocked()
}

func (s *fileStorage) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.values, k)
	}
	return s.flushLocked()
}

func (s *fileStorage) flushLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}

	return os.Rename(tmp.Name(), s.path)
}

type memStorage struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemStorage() *memStorage {
	return &memStorage{values: make(map[string]string)}
}

func (m *memStorage) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.values[key]
	return v, ok
}

func (m *memStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}

func (m *memStorage) SetAll(values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range values {
		m.values[k] = v
	}
	return nil
}

func (m *memStorage) Delete(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

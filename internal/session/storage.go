package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	cerrors "github.com/tessro/cadence/internal/errors"
)

const (
	// DefaultStorageFileName is the default name for the durable storage file.
	DefaultStorageFileName = "storage.json"

	KeyAccess   = "access"
	KeyRefresh  = "refresh"
	KeyUser     = "user"
	KeyMenuOpen = "menuOpen"
)

// Storage is a durable string key/value file, readable only by its owner.
type Storage struct {
	path string
	mu   sync.Mutex
}

// NewStorage creates a storage file handle at the specified path.
// If path is empty, uses the default location (~/.config/cadence/storage.json).
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		path = filepath.Join(configDir, "cadence", DefaultStorageFileName)
	}

	return &Storage{path: path}, nil
}

// Get returns the value stored under key.
func (s *Storage) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// All returns every stored value.
func (s *Storage) All() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Set stores each key/value pair in a single write.
func (s *Storage) Set(kv map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	for k, v := range kv {
		values[k] = v
	}
	return s.write(values)
}

// Delete removes keys. Deleting absent keys is not an error.
func (s *Storage) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(values, k)
	}
	return s.write(values)
}

// Reset discards the whole file, including unreadable contents.
func (s *Storage) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete storage file: %w", err)
	}
	return nil
}

// Path returns the path to the storage file.
func (s *Storage) Path() string {
	return s.path
}

func (s *Storage) read() (map[string]string, error) {
	values := make(map[string]string)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, fmt.Errorf("failed to read storage file: %w", err)
	}
	if len(data) == 0 {
		return values, nil
	}

	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse storage file: %w: %w", cerrors.ErrCorruptSession, err)
	}
	return values, nil
}

func (s *Storage) write(values map[string]string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal storage: %w", err)
	}

	// Write with restricted permissions (owner only)
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write storage file: %w", err)
	}

	return nil
}

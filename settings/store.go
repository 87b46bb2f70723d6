package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStore keeps Values in a YAML file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath is <user config dir>/safewatch/settings.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "safewatch", "settings.yaml"), nil
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Load() (Values, bool, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Values{}, false, nil
	}
	if err != nil {
		return Values{}, false, err
	}

	// Start from defaults so absent keys keep them.
	v := Defaults()
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Values{}, false, fmt.Errorf("%w: %s: %v", ErrInvalid, f.path, err)
	}
	return v, true, nil
}

// Save writes to a temp file and renames it over the target.
func (f *FileStore) Save(v Values) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// MemStore keeps Values in memory.
type MemStore struct {
	mu    sync.Mutex
	v     Values
	ok    bool
	saves int
	Err   error
}

func (m *MemStore) Load() (Values, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.v, m.ok, nil
}

func (m *MemStore) Save(v Values) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.Err != nil {
		return m.Err
	}
	m.v, m.ok = v, true
	return nil
}

func (m *MemStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

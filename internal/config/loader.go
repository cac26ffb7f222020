package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kilupskalvis/changelogs/internal/models"
)

// LoaderConfigStore persists the serialized loader configuration read by the
// navigation layer. One handle is created per build.
type LoaderConfigStore struct {
	path string
}

// NewLoaderConfigStore creates a handle bound to path.
func NewLoaderConfigStore(path string) *LoaderConfigStore {
	return &LoaderConfigStore{path: path}
}

// Path returns the file the handle reads and writes.
func (s *LoaderConfigStore) Path() string {
	return s.path
}

// Read returns the stored bytes, or "[]" when nothing was written yet.
func (s *LoaderConfigStore) Read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []byte("[]"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read loader config: %w", err)
	}
	return data, nil
}

// Save serializes sources and writes them unless the stored content is
// byte-identical. It reports whether the file was written.
func (s *LoaderConfigStore) Save(sources []*Source) (bool, error) {
	serialized := make([]models.LoaderConfig, 0, len(sources))
	for _, src := range sources {
		serialized = append(serialized, src.Serialize())
	}
	data, err := json.Marshal(serialized)
	if err != nil {
		return false, fmt.Errorf("marshal loader config: %w", err)
	}
	return WriteFileIfChanged(s.path, data)
}

// Load parses the stored loader configuration.
func (s *LoaderConfigStore) Load() ([]models.LoaderConfig, error) {
	data, err := s.Read()
	if err != nil {
		return nil, err
	}
	var configs []models.LoaderConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("parse loader config %s: %w", s.path, err)
	}
	return configs, nil
}

// WriteFileIfChanged writes data to path unless the file already holds the
// same bytes. It reports whether a write happened.
func WriteFileIfChanged(path string, data []byte) (bool, error) {
	old, err := os.ReadFile(path)
	if err == nil && bytes.Equal(old, data) {
		return false, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vitrine-io/vitrine/pkg/protocol"
)

// FileStore implements Store with a single JSON document on disk. Saves go
// through a temp file and rename, so a crash mid-write leaves the previous
// document readable.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the JSON file at path. The file
// is created on the first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (protocol.Catalog, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return protocol.Catalog{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", s.path, err)
	}

	var cat protocol.Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	if cat == nil {
		cat = protocol.Catalog{}
	}
	return cat, nil
}

func (s *FileStore) Save(cat protocol.Catalog) error {
	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: mkdir %s: %w", dir, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: rename %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Record is one persisted custom profile.
type Record struct {
	Name     string `yaml:"name"`
	Server   string `yaml:"server"`
	Token    string `yaml:"token,omitempty"`
	Insecure bool   `yaml:"insecure"`
}

// RecordStore persists custom profiles. Load reads every record; Save
// replaces the whole set.
type RecordStore interface {
	Load() ([]Record, error)
	Save(records []Record) error
}

type recordFile struct {
	Profiles []Record `yaml:"profiles"`
}

// FileStore is a RecordStore backed by a YAML file.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore at path. The file is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load returns no records when the file does not exist. A malformed file is
// an error.
func (s *FileStore) Load() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile store: read %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var f recordFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("profile store: parse %s: %w", s.path, err)
	}
	for i, r := range f.Profiles {
		if r.Name == "" {
			return nil, fmt.Errorf("profile store: record %d has no name", i)
		}
	}
	return f.Profiles, nil
}

// Save writes all records to a temp file in the same directory and renames
// it over the target, so readers never see a partial file.
func (s *FileStore) Save(records []Record) error {
	data, err := yaml.Marshal(recordFile{Profiles: records})
	if err != nil {
		return fmt.Errorf("profile store: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("profile store: create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".profiles-*.yaml")
	if err != nil {
		return fmt.Errorf("profile store: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("profile store: chmod: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("profile store: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("profile store: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("profile store: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("profile store: rename: %w", err)
	}
	return nil
}

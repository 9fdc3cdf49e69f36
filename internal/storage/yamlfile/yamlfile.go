// Package yamlfile stores the location index as a single YAML document on
// disk. Every mutation rewrites the file through a temporary file and an
// atomic rename, so a crash never leaves a truncated index behind.
package yamlfile

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/openagenda-tools/uniqloc/internal/storage/memory"
	"github.com/openagenda-tools/uniqloc/pkg/constants"
	"github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/locations"
	"github.com/openagenda-tools/uniqloc/pkg/store"
)

// formatVersion is written into every file.
const formatVersion = 1

type document struct {
	Version   int                   `yaml:"version"`
	UpdatedAt time.Time             `yaml:"updated_at"`
	Locations []*locations.Location `yaml:"locations"`
}

// Store is a YAML file backed store.
type Store struct {
	path string
	mu   sync.Mutex
	mem  *memory.Store
}

var _ store.Store = (*Store)(nil)

// Open loads path, or starts empty when the file does not exist yet.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.NewValidationError("store.dsn", path, "file path cannot be empty")
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return &Store{path: path, mem: memory.New()}, nil
	case err != nil:
		return nil, errors.WrapIO("read", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	return &Store{path: path, mem: memory.New(doc.Locations...)}, nil
}

// Path returns the file location.
func (s *Store) Path() string {
	return s.path
}

// InsertOne implements store.Store.
func (s *Store) InsertOne(ctx context.Context, doc *locations.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mem.InsertOne(ctx, doc); err != nil {
		return err
	}
	return s.save()
}

// UpdateOne implements store.Store.
func (s *Store) UpdateOne(ctx context.Context, filter store.Filter, update store.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mem.UpdateOne(ctx, filter, update); err != nil {
		return err
	}
	return s.save()
}

// FindAll implements store.Store.
func (s *Store) FindAll(ctx context.Context, filter store.Filter) ([]*locations.Location, error) {
	return s.mem.FindAll(ctx, filter)
}

// Close implements store.Store.
func (s *Store) Close() error {
	return nil
}

func (s *Store) save() error {
	data, err := yaml.Marshal(document{
		Version:   formatVersion,
		UpdatedAt: time.Now().UTC(),
		Locations: s.mem.Snapshot(),
	})
	if err != nil {
		return errors.WrapParse("yaml", s.path, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return errors.WrapIO("create", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.WrapIO("create", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.WrapIO("write", tmpName, err)
	}
	if err := tmp.Chmod(constants.FilePermissions); err != nil {
		_ = tmp.Close()
		return errors.WrapIO("chmod", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapIO("write", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.WrapIO("rename", s.path, err)
	}
	return nil
}

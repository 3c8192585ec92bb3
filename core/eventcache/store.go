package eventcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/kilianp07/evsim/internal/atomicfile"
)

// ErrNotFound is returned by a Store when no entry exists for a name.
var ErrNotFound = errors.New("cache entry not found")

// Store persists encoded cache entries by name.
type Store interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
}

// FileStore keeps one JSON file per entry in a directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir. The directory is created on
// first write.
func NewFileStore(dir string) *FileStore { return &FileStore{dir: dir} }

// Dir returns the root directory.
func (s *FileStore) Dir() string { return s.dir }

// Path returns the file used for name.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Load reads the entry for name.
func (s *FileStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Save writes the entry through a temporary file renamed into place, so a
// reader never sees a partially written entry under its final name.
func (s *FileStore) Save(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return atomicfile.WriteFile(s.Path(name), data)
}

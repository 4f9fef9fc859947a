package canvasstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/vk/actiongraph/internal/ctxlog"
)

// FileExt is the extension of canvas documents in a FileStore.
const FileExt = ".hcl"

// FileStore keeps one document per file in a directory.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFile creates a store rooted at dir, creating the directory if needed.
func NewFile(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create canvas directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file that holds the canvas called name.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name+FileExt)
}

// Save writes data atomically by renaming a temp file into place.
func (s *FileStore) Save(ctx context.Context, name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write canvas %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write canvas %q: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(name)); err != nil {
		return fmt.Errorf("failed to save canvas %q: %w", name, err)
	}
	ctxlog.FromContext(ctx).Debug("Saved canvas.", "name", name, "path", s.Path(name), "bytes", len(data))
	return nil
}

// Load reads the document stored under name.
func (s *FileStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read canvas %q: %w", name, err)
	}
	return data, nil
}

// List returns the names of all documents in the directory, sorted.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list canvases: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != FileExt {
			continue
		}
		name := strings.TrimSuffix(e.Name(), FileExt)
		if ValidName(name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

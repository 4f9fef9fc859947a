// Package canvasstore persists serialized canvas documents by name. The
// stores only move bytes; encoding and decoding live in the hcl package.
package canvasstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sync"

	"github.com/vk/actiongraph/internal/errdefs"
)

// ErrNotFound is returned by Load when no canvas is stored under a name.
var ErrNotFound = fmt.Errorf("%w: canvas not found", errdefs.ErrInvalidArgument)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// Store saves and loads canvas documents.
type Store interface {
	Save(ctx context.Context, name string, data []byte) error
	Load(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context) ([]string, error)
	Close() error
}

// ValidName reports whether name can be used as a canvas name. Names must
// not contain path separators and must not start with a dot.
func ValidName(name string) bool {
	return nameRegex.MatchString(name) && name[0] != '.'
}

func checkName(name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: invalid canvas name %q", errdefs.ErrInvalidArgument, name)
	}
	return nil
}

// IsNotFound reports whether err means the canvas does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// MemoryStore is an in-process Store backed by a sync.Map.
type MemoryStore struct {
	docs sync.Map // Key: canvas name, Value: []byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

// Save stores a copy of data under name.
func (s *MemoryStore) Save(ctx context.Context, name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	s.docs.Store(name, slices.Clone(data))
	return nil
}

// Load returns a copy of the document stored under name.
func (s *MemoryStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	data, ok := s.docs.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return slices.Clone(data.([]byte)), nil
}

// List returns the stored names in sorted order.
func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	var names []string
	s.docs.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	slices.Sort(names)
	return names, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store keeps uploaded blobs on the local filesystem under opaque
// uuid-derived keys. Callers never choose the key, so a stored path can
// never be traversed out of the root directory.
type Store struct {
	Root string
}

func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blob root %s: %w", root, err)
	}
	return &Store{Root: root}, nil
}

// Save streams r to disk and returns the generated key.
func (s *Store) Save(ctx context.Context, r io.Reader) (string, error) {
	key := uuid.NewString()
	f, err := os.Create(s.path(key))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(s.path(key))
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if !validKey(key) {
		return nil, os.ErrNotExist
	}
	return os.Open(s.path(key))
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return os.ErrNotExist
	}
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *Store) path(key string) string {
	return filepath.Join(s.Root, key)
}

func validKey(key string) bool {
	if key == "" || strings.ContainsAny(key, "/\\.") {
		return false
	}
	_, err := uuid.Parse(key)
	return err == nil
}

// Package file implements db.Store over a plain directory, one file per key.
// It is the default driver for local pipeline runs where Redis is overkill:
// entries survive process restarts and concurrent readers are always safe
// because files are written atomically and never modified afterwards.
package file

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/quizforge/quizmetrics/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds settings for a file store.
type Config struct {
	// Path is the root directory. Created if missing.
	Path string
}

// Store implements db.Store over a directory of one-file-per-key entries.
type Store struct {
	root string
}

// NewStore creates a file store rooted at cfg.Path.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store{root: cfg.Path}, nil
}

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// Set stores a value at the given key. The value is written to a temp file
// and renamed into place, so readers never observe a partial entry.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	target := s.path(key)

	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	tmpName := tmp.Name()

	if _, err = tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &db.Error{Op: db.OpSet, Err: err}
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &db.Error{Op: db.OpSet, Err: err}
	}
	if err = os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// Ping verifies the root directory is still accessible.
func (s *Store) Ping(_ context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	if !info.IsDir() {
		return &db.Error{Op: db.OpPing, Err: fmt.Errorf("%s is not a directory", s.root)}
	}
	return nil
}

// Close is a no-op: the store holds no open handles between operations.
func (s *Store) Close() {}

// WaitForReady checks accessibility once; a local directory is ready or it isn't.
func (s *Store) WaitForReady(ctx context.Context, _ time.Duration) error {
	if err := s.Ping(ctx); err != nil {
		return fmt.Errorf("file store not ready: %w", err)
	}
	return nil
}

// path maps a key to a filename. Keys are hex-encoded so arbitrary key
// characters (colons, slashes in model names) cannot collide or escape the root.
func (s *Store) path(key string) string {
	return filepath.Join(s.root, hex.EncodeToString([]byte(key))+".bin")
}

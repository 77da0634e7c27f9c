package db

import (
	"context"
	"time"
)

// Store is the durable key-value facade used by the embedding cache.
// Entries are immutable once written, so last-writer-wins semantics are
// sufficient for every backend.
type Store interface {
	Pinger
	KVStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides point lookup and point insert by key.
// Get returns ErrKeyNotFound when the key is absent.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Package storage provides key-value persistence adapters for the session
// manager's single persisted record.
//
// Three adapters ship with the package: [Memory] (process-local), [File] (one file per
// key under a directory, for CLIs and desktop processes) and [Redis] (shared between
// processes through go-redis).
//
// # What this package must NOT do
//
//   - Interpret stored bytes. Encoding and corruption handling belong to the manager.
//   - Import authsession or any sibling package.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no record exists under the key.
var ErrNotFound = errors.New("storage: record not found")

// ErrInvalidKey is returned when a key is empty or unusable by the adapter.
var ErrInvalidKey = errors.New("storage: invalid key")

// Storage is the persistence capability injected into the session manager.
// Implementations must be safe for concurrent use.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Package kvstore persists the flat field set read by the map UI.
//
// A Store is a string-keyed map of raw JSON values. The Writer on top of it
// encodes each field independently and decides whether a write replaces the
// whole store or only overwrites the keys it carries.
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for a key the store does not hold.
var ErrNotFound = errors.New("key not found")

// Entry is one encoded key/value pair.
type Entry struct {
	Key   string
	Value []byte
}

// Store is a flat key-value store. Implementations must be safe for
// concurrent use.
type Store interface {
	// Clear removes every key.
	Clear(ctx context.Context) error
	// SetAll writes entries in order, overwriting existing keys.
	SetAll(ctx context.Context, entries []Entry) error
	// Get returns the raw value for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Keys returns every key in ascending order.
	Keys(ctx context.Context) ([]string, error)
	// Close releases backend resources.
	Close() error
}

// pinger is implemented by backends with a cheap liveness call.
type pinger interface {
	Ping(ctx context.Context) error
}

// Reachable reports whether s can serve reads. Backends with a Ping use it;
// the rest are probed with Keys.
func Reachable(ctx context.Context, s Store) error {
	if p, ok := s.(pinger); ok {
		return p.Ping(ctx)
	}
	_, err := s.Keys(ctx)
	return err
}

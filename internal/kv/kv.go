// Package kv is the client's durable local key-value store.
package kv

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/cockroachdb/pebble"
)

// Store wraps a pebble database opened under the client data directory.
// Every write is synced; there are no transactions between keys.
type Store struct {
	db   *pebble.DB
	path string
}

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("internal/kv: failed to open pebble db at %s: %w", path, err)
	}
	slog.Debug("local store opened", "path", path)
	return &Store{db: db, path: path}, nil
}

// Get returns the value stored under key. ok is false when the key is
// absent.
func (s *Store) Get(key string) (value string, ok bool, err error) {
	v, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("internal/kv: get %q: %w", key, err)
	}
	// v is only valid until closer is closed.
	value = string(v)
	if err := closer.Close(); err != nil {
		return "", false, fmt.Errorf("internal/kv: release %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key.
func (s *Store) Set(key, value string) error {
	if err := s.db.Set([]byte(key), []byte(value), pebble.Sync); err != nil {
		return fmt.Errorf("internal/kv: set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	if err := s.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("internal/kv: delete %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

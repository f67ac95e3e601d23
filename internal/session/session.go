// Package session persists the display identity of the logged in user.
package session

import (
	"context"
	"log/slog"

	"github.com/johndosdos/chatterfeed/internal/model"
)

// Storage keys.
const (
	KeyUsername = "user.name"
	KeyUID      = "user.uid"
)

// KV is the subset of the local store the session needs.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Store reads and writes the session. Failures are logged and never
// returned; the two keys are written independently.
type Store struct {
	kv KV
}

// New returns a session store backed by kv.
func New(kv KV) *Store {
	return &Store{kv: kv}
}

// Set saves the username, and the uid when it is non-empty.
func (s *Store) Set(ctx context.Context, username, uid string) {
	if err := s.kv.Set(KeyUsername, username); err != nil {
		slog.ErrorContext(ctx, "failed to save session", "error", err)
		return
	}
	if uid == "" {
		return
	}
	if err := s.kv.Set(KeyUID, uid); err != nil {
		slog.ErrorContext(ctx, "failed to save session", "error", err)
	}
}

// Get returns the stored session, or false when no username is stored.
func (s *Store) Get(ctx context.Context) (model.Session, bool) {
	username, ok, err := s.kv.Get(KeyUsername)
	if err != nil {
		slog.ErrorContext(ctx, "failed to get session", "error", err)
		return model.Session{}, false
	}
	if !ok || username == "" {
		return model.Session{}, false
	}

	uid, _, err := s.kv.Get(KeyUID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to get session", "error", err)
		return model.Session{}, false
	}

	return model.Session{Username: username, UID: uid}, true
}

// Clear removes both session keys.
func (s *Store) Clear(ctx context.Context) {
	for _, key := range []string{KeyUsername, KeyUID} {
		if err := s.kv.Delete(key); err != nil {
			slog.ErrorContext(ctx, "failed to clear session", "key", key, "error", err)
		}
	}
}

package feed

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/johndosdos/chatterfeed/internal/model"
)

// CacheKey is the local store key of the cached feed snapshot.
const CacheKey = "chat_messages"

// KV is the subset of the local store the cache needs.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Cache keeps the last live snapshot for the next cold start. It is
// overwritten wholesale on every save. Failures are logged and swallowed.
type Cache struct {
	kv KV
}

// NewCache returns a cache over kv.
func NewCache(kv KV) *Cache {
	return &Cache{kv: kv}
}

// Load returns the cached snapshot, or false when none is stored or it
// cannot be decoded.
func (c *Cache) Load(ctx context.Context) ([]model.Message, bool) {
	raw, ok, err := c.kv.Get(CacheKey)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read feed cache", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var msgs []model.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		slog.WarnContext(ctx, "discarding corrupt feed cache", "error", err)
		return nil, false
	}
	return msgs, true
}

// Save replaces the cached snapshot with msgs.
func (c *Cache) Save(ctx context.Context, msgs []model.Message) {
	if msgs == nil {
		msgs = []model.Message{}
	}
	p, err := json.Marshal(msgs)
	if err != nil {
		slog.ErrorContext(ctx, "could not encode feed cache", "error", err)
		return
	}
	if err := c.kv.Set(CacheKey, string(p)); err != nil {
		slog.ErrorContext(ctx, "failed to write feed cache", "error", err, "messages", len(msgs))
	}
}

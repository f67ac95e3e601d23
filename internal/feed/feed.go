// Package feed keeps the visible message feed in step with the live query
// over the messages collection and mirrors it to the local cache.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/johndosdos/chatterfeed/internal/docstore"
	"github.com/johndosdos/chatterfeed/internal/model"
)

// Defaults.
const (
	DefaultScrollDelay = 100 * time.Millisecond
	DefaultSendsPerMin = 30
)

// Subscription is a running live query.
type Subscription interface {
	Unsubscribe()
}

// Documents is the document store.
type Documents interface {
	AddMessage(ctx context.Context, msg model.NewMessage) (model.Message, error)
	WatchMessages(ctx context.Context, onSnapshot func([]model.Message), onError func(error)) (Subscription, error)
}

type storeDocs struct {
	*docstore.Store
}

func (d storeDocs) WatchMessages(ctx context.Context, onSnapshot func([]model.Message), onError func(error)) (Subscription, error) {
	sub, err := d.Store.WatchMessages(ctx, onSnapshot, onError)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Docs adapts a document store client.
func Docs(s *docstore.Store) Documents {
	return storeDocs{s}
}

// View renders the feed.
type View interface {
	ShowMessages(msgs []model.Message)
	ScrollToLatest()
}

// Author stamps outgoing messages.
type Author struct {
	Name string
	UID  string
}

// ResolveAuthor picks the display name of the signed in identity, falling
// back to the stored session and then to guest.
func ResolveAuthor(id *model.Identity, sess model.Session, guest string) Author {
	var a Author
	if id != nil {
		a.Name = id.DisplayName()
		a.UID = id.UID.String()
	}
	if a.Name == "" {
		a.Name = sess.Username
	}
	if a.UID == "" {
		a.UID = sess.UID
	}
	if a.Name == "" {
		a.Name = guest
	}
	return a
}

// Options tune a Synchronizer. Zero values take the defaults.
type Options struct {
	ScrollDelay time.Duration
	SendsPerMin int
}

// Synchronizer owns the in-memory feed and is the only writer of the cache.
type Synchronizer struct {
	docs  Documents
	cache *Cache
	view  View
	opts  Options

	limiter *rate.Limiter
	sending atomic.Bool

	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex
	sub       Subscription

	mu       sync.Mutex
	messages []model.Message
	live     bool
	scroll   *time.Timer
}

// New returns a synchronizer rendering into view.
func New(docs Documents, cache *Cache, view View, opts Options) *Synchronizer {
	if opts.ScrollDelay <= 0 {
		opts.ScrollDelay = DefaultScrollDelay
	}
	if opts.SendsPerMin <= 0 {
		opts.SendsPerMin = DefaultSendsPerMin
	}
	return &Synchronizer{
		docs:    docs,
		cache:   cache,
		view:    view,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.SendsPerMin)), opts.SendsPerMin),
	}
}

// Mount shows the cached snapshot and starts the live query.
func (s *Synchronizer) Mount(ctx context.Context) error {
	s.LoadCachedSnapshot(ctx)
	return s.Start(ctx)
}

// LoadCachedSnapshot shows the cached feed unless a live snapshot has
// already arrived.
func (s *Synchronizer) LoadCachedSnapshot(ctx context.Context) {
	msgs, ok := s.cache.Load(ctx)
	if !ok {
		return
	}

	s.mu.Lock()
	if s.live {
		s.mu.Unlock()
		return
	}
	s.messages = msgs
	shown := cloneMessages(msgs)
	s.mu.Unlock()

	slog.DebugContext(ctx, "showing cached feed", "messages", len(msgs))
	s.view.ShowMessages(shown)
}

// Start opens the live query, first stopping a running one.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.stopLocked()

	sub, err := s.docs.WatchMessages(ctx,
		func(msgs []model.Message) { s.applySnapshot(ctx, msgs) },
		func(err error) {
			slog.ErrorContext(ctx, "live query failed", "error", err)
		})
	if err != nil {
		return fmt.Errorf("internal/feed: failed to start live query: %w", err)
	}
	s.sub = sub
	return nil
}

// Stop releases the live query. It is safe to call when not started.
func (s *Synchronizer) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stopLocked()

	s.mu.Lock()
	if s.scroll != nil {
		s.scroll.Stop()
		s.scroll = nil
	}
	s.mu.Unlock()
}

func (s *Synchronizer) stopLocked() {
	if s.sub != nil {
		s.sub.Unsubscribe()
		s.sub = nil
	}
}

// applySnapshot replaces the feed with msgs. Snapshots arrive one at a
// time, so the cache write order matches the delivery order.
func (s *Synchronizer) applySnapshot(ctx context.Context, msgs []model.Message) {
	s.mu.Lock()
	s.messages = msgs
	s.live = true
	shown := cloneMessages(msgs)
	s.mu.Unlock()

	s.view.ShowMessages(shown)
	s.cache.Save(ctx, msgs)
	s.scheduleScroll()
}

func (s *Synchronizer) scheduleScroll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scroll != nil {
		s.scroll.Stop()
	}
	s.scroll = time.AfterFunc(s.opts.ScrollDelay, s.view.ScrollToLatest)
}

// Messages returns a copy of the visible feed.
func (s *Synchronizer) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMessages(s.messages)
}

// Send writes a text message. The feed only changes when the live query
// delivers the write.
func (s *Synchronizer) Send(ctx context.Context, author Author, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &SendError{Kind: SendEmpty}
	}

	if !s.sending.CompareAndSwap(false, true) {
		return &SendError{Kind: SendBusy}
	}
	defer s.sending.Store(false)

	if !s.limiter.Allow() {
		slog.WarnContext(ctx, "send rate limit exceeded", "uid", author.UID)
		return &SendError{Kind: SendRateLimited}
	}

	if _, err := s.Post(ctx, author, model.NewMessage{Text: trimmed}); err != nil {
		return &SendError{Kind: SendUnknown, Err: err}
	}
	return nil
}

// Post writes msg stamped with author.
func (s *Synchronizer) Post(ctx context.Context, author Author, msg model.NewMessage) (model.Message, error) {
	msg.Sender = author.Name
	msg.UID = author.UID

	created, err := s.docs.AddMessage(ctx, msg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to post message", "error", err, "sender", author.Name)
		return model.Message{}, err
	}
	return created, nil
}

func cloneMessages(msgs []model.Message) []model.Message {
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Package docstore is the document database client: writes to the messages
// and users collections and ordered live queries over messages.
package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/johndosdos/chatterfeed/internal/broker"
	"github.com/johndosdos/chatterfeed/internal/database"
	"github.com/johndosdos/chatterfeed/internal/model"
)

// Collection names.
const (
	CollectionMessages = "messages"
	CollectionUsers    = "users"
)

// Querier is the subset of database.Queries the store needs.
type Querier interface {
	CreateMessage(ctx context.Context, arg database.CreateMessageParams) (database.Message, error)
	ListMessages(ctx context.Context) ([]database.Message, error)
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
}

// Notifier announces and observes document changes.
type Notifier interface {
	Publish(ctx context.Context, event broker.ChangeEvent) error
	Subscribe(ctx context.Context, onEvent func(broker.ChangeEvent), onErr func(error)) (stop func(), err error)
}

// Store writes documents and runs live queries.
type Store struct {
	db       Querier
	notifier Notifier
}

// New returns a store over db and notifier.
func New(db Querier, notifier Notifier) *Store {
	return &Store{db: db, notifier: notifier}
}

// AddMessage writes msg; the store assigns ID and CreatedAt. A failed
// change notification is logged: the document is already written and will
// appear with the next change.
func (s *Store) AddMessage(ctx context.Context, msg model.NewMessage) (model.Message, error) {
	params := database.CreateMessageParams{
		Text:     pgtype.Text{String: msg.Text, Valid: msg.Text != ""},
		ImageUrl: pgtype.Text{String: msg.ImageURL, Valid: msg.ImageURL != ""},
		Sender:   msg.Sender,
	}
	if uid, err := uuid.Parse(msg.UID); err == nil {
		params.UserID = pgtype.UUID{Bytes: uid, Valid: true}
	}

	row, err := s.db.CreateMessage(ctx, params)
	if err != nil {
		return model.Message{}, fmt.Errorf("internal/docstore: failed to add message: %w", err)
	}
	created := toModel(row)

	err = s.notifier.Publish(ctx, broker.ChangeEvent{
		Collection: CollectionMessages,
		DocID:      created.ID,
		At:         created.CreatedAt,
	})
	if err != nil {
		slog.ErrorContext(ctx, "change notification failed",
			"error", err,
			"collection", CollectionMessages,
			"doc_id", created.ID)
	}

	return created, nil
}

// AddUser writes a profile to the users collection.
func (s *Store) AddUser(ctx context.Context, profile model.UserProfile) error {
	_, err := s.db.CreateUser(ctx, database.CreateUserParams{
		UserID:   pgtype.UUID{Bytes: profile.UID, Valid: true},
		Username: profile.Username,
		Email:    profile.Email,
	})
	if err != nil {
		return fmt.Errorf("internal/docstore: failed to add user: %w", err)
	}
	return nil
}

// Subscription is a running live query.
type Subscription struct {
	cancel context.CancelFunc
	stop   func()
	done   chan struct{}
	once   sync.Once
}

// Unsubscribe stops the live query and waits until no further snapshot can
// be delivered. It must not be called from the snapshot callback.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		s.stop()
		<-s.done
	})
}

// WatchMessages runs the ordered live query over messages. onSnapshot is
// called with the full result set once at start and again after every
// change, never concurrently with itself. Query and consumer failures go
// to onError; the subscription keeps running and is never retried by the
// store on its own.
func (s *Store) WatchMessages(ctx context.Context, onSnapshot func([]model.Message), onError func(error)) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)

	// dirty coalesces bursts of change events into one re-query.
	dirty := make(chan struct{}, 1)
	dirty <- struct{}{}
	markDirty := func() {
		select {
		case dirty <- struct{}{}:
		default:
		}
	}

	report := func(err error) {
		if onError != nil && subCtx.Err() == nil {
			onError(err)
		}
	}

	stop, err := s.notifier.Subscribe(subCtx, func(event broker.ChangeEvent) {
		if event.Collection == CollectionMessages {
			markDirty()
		}
	}, report)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("internal/docstore: failed to subscribe: %w", err)
	}

	sub := &Subscription{cancel: cancel, stop: stop, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		for {
			select {
			case <-subCtx.Done():
				return
			case <-dirty:
			}

			rows, err := s.db.ListMessages(subCtx)
			if err != nil {
				report(fmt.Errorf("internal/docstore: live query failed: %w", err))
				continue
			}
			if subCtx.Err() != nil {
				return
			}

			snapshot := make([]model.Message, 0, len(rows))
			for _, row := range rows {
				snapshot = append(snapshot, toModel(row))
			}
			onSnapshot(snapshot)
		}
	}()

	return sub, nil
}

func toModel(row database.Message) model.Message {
	msg := model.Message{
		Text:      row.Text.String,
		ImageURL:  row.ImageUrl.String,
		Sender:    row.Sender,
		CreatedAt: row.CreatedAt.Time,
	}
	if row.ID.Valid {
		msg.ID = uuid.UUID(row.ID.Bytes).String()
	}
	if row.UserID.Valid {
		msg.UID = uuid.UUID(row.UserID.Bytes).String()
	}
	return msg
}

// JetStreamNotifier is the Notifier over NATS JetStream.
type JetStreamNotifier struct {
	js jetstream.JetStream
}

// NewJetStreamNotifier returns a notifier publishing on js.
func NewJetStreamNotifier(js jetstream.JetStream) *JetStreamNotifier {
	return &JetStreamNotifier{js: js}
}

func (n *JetStreamNotifier) Publish(ctx context.Context, event broker.ChangeEvent) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	_, err := broker.Publisher(ctx, n.js, event)
	return err
}

func (n *JetStreamNotifier) Subscribe(ctx context.Context, onEvent func(broker.ChangeEvent), onErr func(error)) (func(), error) {
	return broker.Subscriber(ctx, n.js, onEvent, onErr)
}

// Package broker carries document change notifications over NATS
// JetStream.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// ChangeEvent announces that a document was written. Subscribers re-read
// the collection; the event itself carries no document data.
type ChangeEvent struct {
	Collection string    `json:"collection"`
	DocID      string    `json:"doc_id"`
	At         time.Time `json:"at"`
}

// EnsureStream creates or updates the stream holding change events.
func EnsureStream(ctx context.Context, js jetstream.JetStream) (jetstream.Stream, error) {
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectGlobalRoom},
		MaxAge:   24 * time.Hour,
		MaxBytes: 1 << 30, // 1GB max storage
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream [%s]: %w", StreamName, err)
	}
	return stream, nil
}

func Publisher(ctx context.Context, js jetstream.JetStream, event ChangeEvent) (uint64, error) {
	if js == nil {
		return 0, errors.New("jetstream interface is nil")
	}
	if ctx == nil {
		return 0, errors.New("context is nil")
	}

	p, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("could not encode payload to JSON: %w", err)
	}

	pubAck, err := js.Publish(ctx,
		SubjectGlobalRoom,
		p,
		jetstream.WithMsgID(uuid.NewString()),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to publish to stream [%s]: %w", SubjectGlobalRoom, err)
	}
	slog.DebugContext(ctx, "change published",
		"collection", event.Collection,
		"doc_id", event.DocID,
		"seq", pubAck.Sequence)

	return pubAck.Sequence, nil
}

// Subscriber delivers change events published after the call, in order,
// until stop is called or ctx is done. onErr receives consumer errors;
// the subscription is not restarted.
func Subscriber(ctx context.Context, js jetstream.JetStream, onEvent func(ChangeEvent), onErr func(error)) (stop func(), err error) {
	consumer, err := js.OrderedConsumer(ctx, StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{SubjectGlobalRoom},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ordered consumer: %w", err)
	}

	consumeHandler := func(msg jetstream.Msg) {
		var event ChangeEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			slog.Warn("could not decode change event", "error", err)
			return
		}
		onEvent(event)
	}

	optErrHandler := jetstream.ConsumeErrHandler(func(cc jetstream.ConsumeContext, err error) {
		if onErr != nil {
			onErr(err)
		}
	})

	consumeCtx, err := consumer.Consume(consumeHandler, optErrHandler)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming messages: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		<-subCtx.Done()
		consumeCtx.Stop()
	}()

	return cancel, nil
}

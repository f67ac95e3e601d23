// Package media stores uploaded blobs in a NATS JetStream object store.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// ErrNotFound is returned for a key with no object.
var ErrNotFound = errors.New("media: object not found")

const metaContentType = "content-type"

// Info describes a stored object.
type Info struct {
	Key         string
	ContentType string
	Size        uint64
	ModTime     time.Time
}

// Store is a bucket of the object store.
type Store struct {
	obs jetstream.ObjectStore
}

// Open returns the named bucket, creating it when missing.
func Open(ctx context.Context, js jetstream.JetStream, bucket string) (*Store, error) {
	obs, err := js.ObjectStore(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		slog.InfoContext(ctx, "creating object store bucket", "bucket", bucket)
		obs, err = js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
			Bucket:      bucket,
			Description: "chat image attachments",
		})
	}
	if err != nil {
		return nil, fmt.Errorf("internal/media: failed to open bucket [%s]: %w", bucket, err)
	}
	return &Store{obs: obs}, nil
}

// Put stores r under key.
func (s *Store) Put(ctx context.Context, key, contentType string, r io.Reader) (Info, error) {
	info, err := s.obs.Put(ctx, jetstream.ObjectMeta{
		Name:     key,
		Metadata: map[string]string{metaContentType: contentType},
	}, r)
	if err != nil {
		return Info{}, fmt.Errorf("internal/media: put %q: %w", key, err)
	}
	return toInfo(info), nil
}

// Stat returns the object's info.
func (s *Store) Stat(ctx context.Context, key string) (Info, error) {
	info, err := s.obs.GetInfo(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return Info{}, ErrNotFound
	}
	if err != nil {
		return Info{}, fmt.Errorf("internal/media: stat %q: %w", key, err)
	}
	if info.Deleted {
		return Info{}, ErrNotFound
	}
	return toInfo(info), nil
}

// Get opens the object for reading. The caller closes the reader.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, Info, error) {
	res, err := s.obs.Get(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil, Info{}, ErrNotFound
	}
	if err != nil {
		return nil, Info{}, fmt.Errorf("internal/media: get %q: %w", key, err)
	}
	info, err := res.Info()
	if err != nil {
		res.Close()
		return nil, Info{}, fmt.Errorf("internal/media: get %q: %w", key, err)
	}
	return res, toInfo(info), nil
}

// Delete removes key. A missing key is reported as ErrNotFound.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.obs.Delete(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("internal/media: delete %q: %w", key, err)
	}
	return nil
}

func toInfo(info *jetstream.ObjectInfo) Info {
	ct := info.Metadata[metaContentType]
	if ct == "" {
		ct = "application/octet-stream"
	}
	return Info{
		Key:         info.Name,
		ContentType: ct,
		Size:        info.Size,
		ModTime:     info.ModTime,
	}
}

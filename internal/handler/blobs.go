// Package handler holds the media gateway's HTTP handlers.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/johndosdos/chatterfeed/internal/auth"
	"github.com/johndosdos/chatterfeed/internal/media"
	"github.com/johndosdos/chatterfeed/internal/metrics"
)

// BlobStore is the object store behind the gateway.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (media.Info, error)
	Stat(ctx context.Context, key string) (media.Info, error)
	Get(ctx context.Context, key string) (io.ReadCloser, media.Info, error)
	Delete(ctx context.Context, key string) error
}

// blobKey is the wildcard part of /blobs/*. Empty, "." and ".." segments
// are rejected.
func blobKey(r *http.Request) (string, bool) {
	key := chi.URLParam(r, "*")
	if key == "" {
		return "", false
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", false
		}
	}
	return key, true
}

func setObjectHeaders(w http.ResponseWriter, info media.Info) {
	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Length", strconv.FormatUint(info.Size, 10))
	if !info.ModTime.IsZero() {
		w.Header().Set("Last-Modified", info.ModTime.UTC().Format(http.TimeFormat))
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
}

// ServeBlob answers GET and HEAD for an object. Downloads are public.
func ServeBlob(store BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		key, ok := blobKey(r)
		if !ok {
			http.Error(w, "invalid object key", http.StatusBadRequest)
			return
		}

		if r.Method == http.MethodHead {
			info, err := store.Stat(ctx, key)
			if err != nil {
				writeStoreError(ctx, w, "stat", key, err)
				return
			}
			setObjectHeaders(w, info)
			w.WriteHeader(http.StatusOK)
			return
		}

		body, info, err := store.Get(ctx, key)
		if err != nil {
			metrics.BlobDownloads.WithLabelValues(resultOf(err)).Inc()
			writeStoreError(ctx, w, "get", key, err)
			return
		}
		defer body.Close()

		setObjectHeaders(w, info)
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, body); err != nil {
			slog.WarnContext(ctx, "blob download interrupted", "key", key, "error", err)
			metrics.BlobDownloads.WithLabelValues("interrupted").Inc()
			return
		}
		metrics.BlobDownloads.WithLabelValues("ok").Inc()
	}
}

// UploadBlob stores the request body under the key. Bodies over maxBytes
// are rejected with 413.
func UploadBlob(store BlobStore, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		key, ok := blobKey(r)
		if !ok {
			http.Error(w, "invalid object key", http.StatusBadRequest)
			return
		}

		if r.ContentLength > maxBytes {
			metrics.BlobUploads.WithLabelValues("too_large").Inc()
			http.Error(w, "object exceeds "+humanize.Bytes(uint64(maxBytes)), http.StatusRequestEntityTooLarge)
			return
		}

		ct := r.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		start := time.Now()
		info, err := store.Put(ctx, key, ct, http.MaxBytesReader(w, r.Body, maxBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				metrics.BlobUploads.WithLabelValues("too_large").Inc()
				http.Error(w, "object exceeds "+humanize.Bytes(uint64(maxBytes)), http.StatusRequestEntityTooLarge)
				return
			}
			metrics.BlobUploads.WithLabelValues("error").Inc()
			writeStoreError(ctx, w, "put", key, err)
			return
		}

		metrics.BlobUploads.WithLabelValues("ok").Inc()
		metrics.BlobUploadBytes.Add(float64(info.Size))

		userID, _ := auth.GetUserFromContext(ctx)
		slog.InfoContext(ctx, "blob uploaded",
			"key", key,
			"size", humanize.Bytes(info.Size),
			"content_type", info.ContentType,
			"user_id", userID,
			"took", time.Since(start))

		w.WriteHeader(http.StatusCreated)
	}
}

// DeleteBlob removes the object under the key.
func DeleteBlob(store BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		key, ok := blobKey(r)
		if !ok {
			http.Error(w, "invalid object key", http.StatusBadRequest)
			return
		}

		if err := store.Delete(ctx, key); err != nil {
			metrics.BlobDeletes.WithLabelValues(resultOf(err)).Inc()
			writeStoreError(ctx, w, "delete", key, err)
			return
		}

		metrics.BlobDeletes.WithLabelValues("ok").Inc()
		userID, _ := auth.GetUserFromContext(ctx)
		slog.InfoContext(ctx, "blob deleted", "key", key, "user_id", userID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func resultOf(err error) string {
	if errors.Is(err, media.ErrNotFound) {
		return "not_found"
	}
	return "error"
}

func writeStoreError(ctx context.Context, w http.ResponseWriter, op, key string, err error) {
	if errors.Is(err, media.ErrNotFound) {
		http.Error(w, "object not found", http.StatusNotFound)
		return
	}
	slog.ErrorContext(ctx, "blob store failed", "op", op, "key", key, "error", err)
	http.Error(w, "Server error.", http.StatusInternalServerError)
}

// Package attachment uploads picked images to blob storage and posts them
// to the feed.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/johndosdos/chatterfeed/internal/feed"
	"github.com/johndosdos/chatterfeed/internal/locale"
	"github.com/johndosdos/chatterfeed/internal/model"
)

var (
	// ErrCancelled is returned by a Picker when the user backs out.
	ErrCancelled = errors.New("attachment: pick cancelled")
	// ErrBusy is returned while another upload is in progress.
	ErrBusy = errors.New("attachment: upload in progress")
)

// LocalAsset is a picked file. URI is a local path, a file:// URI or an
// http(s) URL.
type LocalAsset struct {
	URI      string
	FileName string
	MIMEType string
}

// Picker asks the user for an image.
type Picker interface {
	PickImage(ctx context.Context) (LocalAsset, error)
}

// PickerFunc adapts a function to Picker.
type PickerFunc func(ctx context.Context) (LocalAsset, error)

func (f PickerFunc) PickImage(ctx context.Context) (LocalAsset, error) { return f(ctx) }

// PathPicker picks the file at p. An empty p is a cancelled pick.
func PathPicker(p string) Picker {
	return PickerFunc(func(context.Context) (LocalAsset, error) {
		uri := strings.TrimSpace(p)
		if uri == "" {
			return LocalAsset{}, ErrCancelled
		}
		return LocalAsset{URI: uri, FileName: filepath.Base(uri)}, nil
	})
}

// Blobs is the blob storage client.
type Blobs interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Poster writes feed messages.
type Poster interface {
	Post(ctx context.Context, author feed.Author, msg model.NewMessage) (model.Message, error)
}

// UploadKind classifies an UploadError.
type UploadKind int

const (
	UploadUnknown UploadKind = iota
	UploadReadFailed
	UploadNetworkFailed
)

func (k UploadKind) String() string {
	switch k {
	case UploadReadFailed:
		return "read-failed"
	case UploadNetworkFailed:
		return "network-failed"
	default:
		return "unknown"
	}
}

// UploadError is the single failure surfaced for an upload.
type UploadError struct {
	Kind UploadKind
	Err  error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return "attachment: " + e.Kind.String() + ": " + e.Err.Error()
	}
	return "attachment: " + e.Kind.String()
}

func (e *UploadError) Unwrap() error { return e.Err }

// Message is the best diagnostic for the user, falling back to the generic
// storage error text in l.
func (e *UploadError) Message(l locale.Locale) string {
	if e.Err != nil && e.Err.Error() != "" {
		return e.Err.Error()
	}
	return l.T(locale.UploadUnknown)
}

// Uploader runs one upload at a time.
type Uploader struct {
	picker Picker
	blobs  Blobs
	poster Poster
	http   *http.Client
	now    func() time.Time

	busy atomic.Bool
}

// New returns an uploader. A nil httpClient gets a 30 second timeout.
func New(picker Picker, blobs Blobs, poster Poster, httpClient *http.Client) *Uploader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Uploader{
		picker: picker,
		blobs:  blobs,
		poster: poster,
		http:   httpClient,
		now:    time.Now,
	}
}

// SetClock replaces the time source used for object keys.
func (u *Uploader) SetClock(now func() time.Time) {
	u.now = now
}

// Key is the storage key of an image picked from uri at t.
func Key(t time.Time, uri string) string {
	name := uri[strings.LastIndex(uri, "/")+1:]
	if name == "" {
		name = "image"
	}
	return fmt.Sprintf("images/%d_%s", t.UnixMilli(), name)
}

// PickAndUpload asks picker for an image and uploads it. A cancelled pick
// returns ok false and no error.
func (u *Uploader) PickAndUpload(ctx context.Context, picker Picker, author feed.Author) (msg model.Message, ok bool, err error) {
	if !u.busy.CompareAndSwap(false, true) {
		return model.Message{}, false, ErrBusy
	}
	defer u.busy.Store(false)

	if picker == nil {
		picker = u.picker
	}
	if picker == nil {
		return model.Message{}, false, &UploadError{Kind: UploadUnknown, Err: errors.New("no image picker")}
	}

	asset, err := picker.PickImage(ctx)
	if errors.Is(err, ErrCancelled) {
		slog.DebugContext(ctx, "image pick cancelled")
		return model.Message{}, false, nil
	}
	if err != nil {
		return model.Message{}, false, &UploadError{Kind: UploadUnknown, Err: err}
	}

	msg, err = u.upload(ctx, author, asset)
	if err != nil {
		return model.Message{}, false, err
	}
	return msg, true, nil
}

func (u *Uploader) upload(ctx context.Context, author feed.Author, asset LocalAsset) (model.Message, error) {
	data, err := u.read(ctx, asset.URI)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read image", "uri", asset.URI, "error", err)
		return model.Message{}, &UploadError{Kind: UploadReadFailed, Err: err}
	}

	key := Key(u.now(), asset.URI)
	ct := contentType(asset, data)

	start := time.Now()
	if err := u.blobs.Upload(ctx, key, data, ct); err != nil {
		slog.ErrorContext(ctx, "image upload failed", "key", key, "error", err)
		return model.Message{}, &UploadError{Kind: UploadNetworkFailed, Err: err}
	}

	imageURL, err := u.blobs.URL(ctx, key)
	if err != nil {
		slog.ErrorContext(ctx, "failed to resolve image url", "key", key, "error", err)
		u.discard(ctx, key)
		return model.Message{}, &UploadError{Kind: UploadNetworkFailed, Err: err}
	}

	slog.InfoContext(ctx, "image uploaded",
		"key", key,
		"size", humanize.Bytes(uint64(len(data))),
		"took", time.Since(start))

	msg, err := u.poster.Post(ctx, author, model.NewMessage{Text: model.ImageCaption, ImageURL: imageURL})
	if err != nil {
		u.discard(ctx, key)
		return model.Message{}, &UploadError{Kind: UploadUnknown, Err: err}
	}
	return msg, nil
}

// discard removes a blob no message will reference.
func (u *Uploader) discard(ctx context.Context, key string) {
	if err := u.blobs.Delete(ctx, key); err != nil {
		slog.ErrorContext(ctx, "orphaned blob", "key", key, "error", err)
	}
}

func (u *Uploader) read(ctx context.Context, uri string) ([]byte, error) {
	switch {
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, err
		}
		res, err := u.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()
		if res.StatusCode/100 != 2 {
			return nil, fmt.Errorf("fetch %s: %s", uri, res.Status)
		}
		return io.ReadAll(res.Body)

	case strings.HasPrefix(uri, "file://"):
		parsed, err := url.Parse(uri)
		if err != nil {
			return nil, err
		}
		return os.ReadFile(filepath.FromSlash(parsed.Path))

	default:
		return os.ReadFile(uri)
	}
}

func contentType(asset LocalAsset, data []byte) string {
	if asset.MIMEType != "" {
		return asset.MIMEType
	}
	name := asset.FileName
	if name == "" {
		name = path.Base(asset.URI)
	}
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(name))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

package attachment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/chatterfeed/internal/feed"
	"github.com/johndosdos/chatterfeed/internal/locale"
	"github.com/johndosdos/chatterfeed/internal/model"
)

type fakeBlobs struct {
	uploads   map[string][]byte
	types     map[string]string
	deleted   []string
	uploadErr error
	urlErr    error
	deleteErr error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{uploads: make(map[string][]byte), types: make(map[string]string)}
}

func (b *fakeBlobs) Upload(_ context.Context, key string, data []byte, ct string) error {
	if b.uploadErr != nil {
		return b.uploadErr
	}
	b.uploads[key] = data
	b.types[key] = ct
	return nil
}

func (b *fakeBlobs) URL(_ context.Context, key string) (string, error) {
	if b.urlErr != nil {
		return "", b.urlErr
	}
	return "http://media.local/blobs/" + key, nil
}

func (b *fakeBlobs) Delete(_ context.Context, key string) error {
	b.deleted = append(b.deleted, key)
	return b.deleteErr
}

type fakePoster struct {
	posted []model.NewMessage
	err    error
}

func (p *fakePoster) Post(_ context.Context, author feed.Author, msg model.NewMessage) (model.Message, error) {
	if p.err != nil {
		return model.Message{}, p.err
	}
	msg.Sender = author.Name
	msg.UID = author.UID
	p.posted = append(p.posted, msg)
	return model.Message{ID: "m1", Text: msg.Text, ImageURL: msg.ImageURL, Sender: msg.Sender, UID: msg.UID}, nil
}

var bob = feed.Author{Name: "bob", UID: "u2"}

func writePhoto(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(p, []byte("\xff\xd8\xff jpeg"), 0o600))
	return p
}

func newTestUploader(blobs *fakeBlobs, poster *fakePoster) *Uploader {
	u := New(nil, blobs, poster, nil)
	u.SetClock(func() time.Time { return time.UnixMilli(1700000000000) })
	return u
}

func TestKey(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	assert.Equal(t, "images/1700000000000_photo.jpg", Key(at, "file:///data/user/0/cache/photo.jpg"))
	assert.Equal(t, "images/1700000000000_photo.jpg", Key(at, "photo.jpg"))
	assert.Equal(t, "images/1700000000000_image", Key(at, "https://example.com/"))
}

func TestUploadPostsImageMessage(t *testing.T) {
	blobs := newFakeBlobs()
	poster := &fakePoster{}
	u := newTestUploader(blobs, poster)

	p := writePhoto(t)
	msg, ok, err := u.PickAndUpload(context.Background(), PathPicker("file://"+filepath.ToSlash(p)), bob)
	require.NoError(t, err)
	require.True(t, ok)

	key := "images/1700000000000_photo.jpg"
	assert.Equal(t, []byte("\xff\xd8\xff jpeg"), blobs.uploads[key])
	assert.Equal(t, "image/jpeg", blobs.types[key])

	require.Len(t, poster.posted, 1)
	assert.Equal(t, model.NewMessage{
		Text:     model.ImageCaption,
		ImageURL: "http://media.local/blobs/" + key,
		Sender:   "bob",
		UID:      "u2",
	}, poster.posted[0])
	assert.Equal(t, "http://media.local/blobs/"+key, msg.ImageURL)
	assert.Empty(t, msg.Caption())
}

func TestUploadFromLocalPath(t *testing.T) {
	blobs := newFakeBlobs()
	u := newTestUploader(blobs, &fakePoster{})

	_, ok, err := u.PickAndUpload(context.Background(), PathPicker(writePhoto(t)), bob)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, blobs.uploads, "images/1700000000000_photo.jpg")
}

func TestUploadFromHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pics/cat.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("png"))
	}))
	defer srv.Close()

	blobs := newFakeBlobs()
	u := newTestUploader(blobs, &fakePoster{})

	_, ok, err := u.PickAndUpload(context.Background(), PathPicker(srv.URL+"/pics/cat.png"), bob)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("png"), blobs.uploads["images/1700000000000_cat.png"])

	_, _, err = u.PickAndUpload(context.Background(), PathPicker(srv.URL+"/pics/missing.png"), bob)
	var ue *UploadError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, UploadReadFailed, ue.Kind)
}

func TestCancelledPickPostsNothing(t *testing.T) {
	blobs := newFakeBlobs()
	poster := &fakePoster{}
	u := newTestUploader(blobs, poster)

	cancel := PickerFunc(func(context.Context) (LocalAsset, error) { return LocalAsset{}, ErrCancelled })
	for _, picker := range []Picker{cancel, PathPicker("  ")} {
		_, ok, err := u.PickAndUpload(context.Background(), picker, bob)
		assert.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Empty(t, blobs.uploads)
	assert.Empty(t, poster.posted)
}

func TestUploadFailureKinds(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		setup   func(b *fakeBlobs, p *fakePoster)
		want    UploadKind
		wantDel bool
	}{
		{
			name:  "unreadable file",
			path:  func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.jpg") },
			setup: func(*fakeBlobs, *fakePoster) {},
			want:  UploadReadFailed,
		},
		{
			name:  "upload rejected",
			path:  writePhoto,
			setup: func(b *fakeBlobs, _ *fakePoster) { b.uploadErr = errors.New("storage/unauthorized") },
			want:  UploadNetworkFailed,
		},
		{
			name:    "url unresolved",
			path:    writePhoto,
			setup:   func(b *fakeBlobs, _ *fakePoster) { b.urlErr = errors.New("storage/object-not-found") },
			want:    UploadNetworkFailed,
			wantDel: true,
		},
		{
			name:    "post failed",
			path:    writePhoto,
			setup:   func(_ *fakeBlobs, p *fakePoster) { p.err = errors.New("permission denied") },
			want:    UploadUnknown,
			wantDel: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blobs := newFakeBlobs()
			poster := &fakePoster{}
			tt.setup(blobs, poster)
			u := newTestUploader(blobs, poster)

			_, ok, err := u.PickAndUpload(context.Background(), PathPicker(tt.path(t)), bob)
			assert.False(t, ok)

			var ue *UploadError
			require.True(t, errors.As(err, &ue))
			assert.Equal(t, tt.want, ue.Kind)
			assert.NotEmpty(t, ue.Message(locale.ID))
			assert.Empty(t, poster.posted)

			if tt.wantDel {
				assert.Equal(t, []string{"images/1700000000000_photo.jpg"}, blobs.deleted)
			} else {
				assert.Empty(t, blobs.deleted)
			}
		})
	}
}

func TestOrphanedBlobStillReportsPostError(t *testing.T) {
	blobs := newFakeBlobs()
	blobs.deleteErr = errors.New("storage/unknown")
	poster := &fakePoster{err: errors.New("permission denied")}
	u := newTestUploader(blobs, poster)

	_, _, err := u.PickAndUpload(context.Background(), PathPicker(writePhoto(t)), bob)
	assert.ErrorContains(t, err, "permission denied")
}

func TestBusyRejectsReentrantPick(t *testing.T) {
	u := newTestUploader(newFakeBlobs(), &fakePoster{})

	var inner error
	picker := PickerFunc(func(ctx context.Context) (LocalAsset, error) {
		_, _, inner = u.PickAndUpload(ctx, PathPicker("x.jpg"), bob)
		return LocalAsset{}, ErrCancelled
	})

	_, _, err := u.PickAndUpload(context.Background(), picker, bob)
	require.NoError(t, err)
	assert.ErrorIs(t, inner, ErrBusy)
}

func TestUploadErrorMessageFallback(t *testing.T) {
	e := &UploadError{Kind: UploadUnknown}
	assert.Equal(t, "Terjadi kesalahan yang tidak diketahui (storage/unknown)", e.Message(locale.ID))
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"DB_URL", "NATS_URL", "JWT_SECRET", "MEDIA_MAX_UPLOAD", "SPLASH_MIN", "TOKEN_TTL", "CHAT_EMAIL_DOMAIN"} {
		t.Setenv(k, "")
	}
	t.Setenv("CHAT_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "chatapp.local", cfg.EmailDomain)
	assert.Equal(t, 3500*time.Millisecond, cfg.SplashMin)
	assert.Equal(t, int64(10_000_000), cfg.MaxUploadBytes)
	assert.Error(t, cfg.RequireBackend())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHAT_DATA_DIR", t.TempDir())
	t.Setenv("DB_URL", "postgres://localhost/chat")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("MEDIA_MAX_UPLOAD", "2MiB")
	t.Setenv("SPLASH_MIN", "1s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(2<<20), cfg.MaxUploadBytes)
	assert.Equal(t, time.Second, cfg.SplashMin)
	assert.NoError(t, cfg.RequireBackend())
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"bad_size", "MEDIA_MAX_UPLOAD", "lots"},
		{"bad_duration", "SPLASH_MIN", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CHAT_DATA_DIR", t.TempDir())
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

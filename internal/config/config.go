// Package config loads settings from .env and the process environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
)

// Config holds every setting used by the client, the media gateway and the
// load tester. Not every binary needs every field.
type Config struct {
	DBURL        string
	NATSURL      string
	NATSCred     string
	NATSUser     string
	NATSPassword string

	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	MediaURL       string
	MediaBucket    string
	MaxUploadBytes int64
	Port           string

	DataDir     string
	Locale      string
	EmailDomain string
	SplashMin   time.Duration
}

// Load reads .env (when present) and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg := Config{
		DBURL:        os.Getenv("DB_URL"),
		NATSURL:      os.Getenv("NATS_URL"),
		NATSCred:     os.Getenv("NATS_CRED"),
		NATSUser:     os.Getenv("NATS_USER"),
		NATSPassword: os.Getenv("NATS_PASSWORD"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		JWTIssuer:    getenv("JWT_ISS", "chatter"),
		MediaURL:     getenv("MEDIA_URL", "http://localhost:8080"),
		MediaBucket:  getenv("MEDIA_BUCKET", "chat-media"),
		Port:         getenv("PORT", "8080"),
		Locale:       getenv("CHAT_LOCALE", "id"),
		EmailDomain:  getenv("CHAT_EMAIL_DOMAIN", "chatapp.local"),
	}

	var err error
	if cfg.TokenTTL, err = duration("TOKEN_TTL", 7*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.SplashMin, err = duration("SPLASH_MIN", 3500*time.Millisecond); err != nil {
		return Config{}, err
	}

	maxUpload := getenv("MEDIA_MAX_UPLOAD", "10MB")
	n, err := humanize.ParseBytes(maxUpload)
	if err != nil {
		return Config{}, fmt.Errorf("internal/config: invalid MEDIA_MAX_UPLOAD %q: %w", maxUpload, err)
	}
	cfg.MaxUploadBytes = int64(n)

	cfg.DataDir = os.Getenv("CHAT_DATA_DIR")
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("internal/config: cannot resolve home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".config", "chatter")
	}

	return cfg, nil
}

// RequireBackend checks the settings every backend connection needs.
func (c Config) RequireBackend() error {
	var errs []error
	if c.DBURL == "" {
		errs = append(errs, errors.New("DB_URL environment variable is not set"))
	}
	if c.NATSURL == "" {
		errs = append(errs, errors.New("NATS_URL environment variable is not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET environment variable is not set"))
	}
	return errors.Join(errs...)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("internal/config: invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

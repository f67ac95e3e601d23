package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/johndosdos/chatterfeed/internal/backend"
	"github.com/johndosdos/chatterfeed/internal/config"
	"github.com/johndosdos/chatterfeed/internal/identity"
	"github.com/johndosdos/chatterfeed/internal/kv"
	"github.com/johndosdos/chatterfeed/internal/locale"
	"github.com/johndosdos/chatterfeed/internal/session"
)

// env is everything a command needs, opened once per process.
type env struct {
	cfg     config.Config
	loc     locale.Locale
	kv      *kv.Store
	session *session.Store
	app     *backend.App
	gateway *identity.Gateway
	logFile io.Closer
}

// loadEnv reads the configuration, routes logs to a file in the data dir
// and opens the local store.
func loadEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if localeFlag != "" {
		cfg.Locale = localeFlag
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("internal/cli: cannot create data dir: %w", err)
	}

	logFile, err := setupLogging(cfg.DataDir, verbose)
	if err != nil {
		return nil, err
	}

	store, err := kv.Open(filepath.Join(cfg.DataDir, "kv"))
	if err != nil {
		logFile.Close()
		return nil, err
	}

	return &env{
		cfg:     cfg,
		loc:     locale.Parse(cfg.Locale),
		kv:      store,
		session: session.New(store),
		logFile: logFile,
	}, nil
}

// connect opens the primary backend context and the identity gateway.
func (e *env) connect(ctx context.Context) error {
	app, err := backend.Open(ctx, "primary", e.cfg, backend.NewKVTokens(e.kv))
	if err != nil {
		return err
	}
	e.app = app

	cfg := e.cfg
	e.gateway = identity.New(app.Auth, func(ctx context.Context) (identity.Registrar, error) {
		reg, err := backend.OpenIsolated(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return reg, nil
	}, e.session, cfg.EmailDomain)
	return nil
}

func (e *env) close() {
	if e.app != nil {
		e.app.Close()
	}
	if err := e.kv.Close(); err != nil {
		slog.Warn("failed to close local store", "error", err)
	}
	e.logFile.Close()
}

func setupLogging(dir string, verbose bool) (io.Closer, error) {
	f, err := os.OpenFile(filepath.Join(dir, "chatter.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("internal/cli: cannot open log file: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})))

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetOutput(f)

	return f, nil
}

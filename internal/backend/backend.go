// Package backend opens named client contexts: one database pool, one NATS
// connection and the identity, document and blob clients built on them.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/johndosdos/chatterfeed/internal/auth"
	"github.com/johndosdos/chatterfeed/internal/blob"
	"github.com/johndosdos/chatterfeed/internal/broker"
	"github.com/johndosdos/chatterfeed/internal/config"
	"github.com/johndosdos/chatterfeed/internal/database"
	"github.com/johndosdos/chatterfeed/internal/docstore"
	"github.com/johndosdos/chatterfeed/internal/model"
)

// App is one client context.
type App struct {
	Name  string
	Auth  *auth.Service
	Docs  *docstore.Store
	Blobs *blob.Client

	pool *pgxpool.Pool
	nc   *nats.Conn
}

// ConnectNATS dials NATS with the configured credentials and returns a
// JetStream handle on the connection.
func ConnectNATS(cfg config.Config, name string) (*nats.Conn, jetstream.JetStream, error) {
	var natsCredentials []nats.Option

	if cfg.NATSCred != "" {
		natsCredentials = append(natsCredentials, nats.UserCredentials(cfg.NATSCred))
	} else if cfg.NATSUser != "" && cfg.NATSPassword != "" {
		natsCredentials = append(natsCredentials, nats.UserInfo(cfg.NATSUser, cfg.NATSPassword))
	}

	natsCredentials = append(natsCredentials, nats.Timeout(5*time.Second), nats.Name(name))

	conn, err := nats.Connect(cfg.NATSURL, natsCredentials...)
	if err != nil {
		return nil, nil, fmt.Errorf("internal/backend: failed to connect to nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("internal/backend: failed to create jetstream instance: %w", err)
	}

	return conn, js, nil
}

// Open opens the primary client context. Its identity token is persisted
// in tokens and restored before Open returns.
func Open(ctx context.Context, name string, cfg config.Config, tokens auth.TokenStore) (*App, error) {
	app, js, err := open(ctx, name, cfg, tokens)
	if err != nil {
		return nil, err
	}

	if _, err := broker.EnsureStream(ctx, js); err != nil {
		app.Close()
		return nil, fmt.Errorf("internal/backend: %w", err)
	}

	app.Auth.Restore(ctx)
	return app, nil
}

// OpenIsolated opens a throwaway context whose sign-ins never touch the
// primary context or the persisted token. Close it when done.
func OpenIsolated(ctx context.Context, cfg config.Config) (*App, error) {
	app, _, err := open(ctx, "isolated-"+uuid.NewString()[:8], cfg, &auth.MemoryTokens{})
	if err != nil {
		return nil, err
	}
	app.Auth.Restore(ctx)
	return app, nil
}

func open(ctx context.Context, name string, cfg config.Config, tokens auth.TokenStore) (*App, jetstream.JetStream, error) {
	if err := cfg.RequireBackend(); err != nil {
		return nil, nil, fmt.Errorf("internal/backend: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return nil, nil, fmt.Errorf("internal/backend: could not connect to the postgresql database: %w", err)
	}

	nc, js, err := ConnectNATS(cfg, "chatter-"+name)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	queries := database.New(pool)
	app := &App{
		Name: name,
		Auth: auth.NewService(queries, tokens, auth.Options{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.JWTIssuer,
			TokenTTL: cfg.TokenTTL,
		}),
		Docs: docstore.New(queries, docstore.NewJetStreamNotifier(js)),
		pool: pool,
		nc:   nc,
	}

	app.Blobs, err = blob.New(cfg.MediaURL, app.token, nil)
	if err != nil {
		app.Close()
		return nil, nil, err
	}

	slog.DebugContext(ctx, "client context opened", "name", name)
	return app, js, nil
}

func (a *App) token() string {
	if id := a.Auth.CurrentUser(); id != nil {
		return id.Token
	}
	return ""
}

// SignUp creates an account on this context.
func (a *App) SignUp(ctx context.Context, email, password string) (model.Identity, error) {
	return a.Auth.SignUp(ctx, email, password)
}

// AddUser writes a profile document.
func (a *App) AddUser(ctx context.Context, profile model.UserProfile) error {
	return a.Docs.AddUser(ctx, profile)
}

// Close drains the NATS connection and closes the pool.
func (a *App) Close() {
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			slog.Warn("couldn't drain NATS conn", "name", a.Name, "error", err)
		}
		a.nc = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	slog.Debug("client context closed", "name", a.Name)
}

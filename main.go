// Package main runs the media gateway: blob uploads and downloads over the
// JetStream object store, plus schema migrations for the chat backend.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/johndosdos/chatterfeed/internal"
	"github.com/johndosdos/chatterfeed/internal/backend"
	"github.com/johndosdos/chatterfeed/internal/broker"
	"github.com/johndosdos/chatterfeed/internal/config"
	"github.com/johndosdos/chatterfeed/internal/database"
	"github.com/johndosdos/chatterfeed/internal/handler"
	"github.com/johndosdos/chatterfeed/internal/media"
	ratelimiter "github.com/johndosdos/chatterfeed/internal/rate_limiter"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.RequireBackend(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	// Init NATS
	log.Println("Starting media gateway...")
	log.Println("Initializing NATS connection...")

	conn, js, err := backend.ConnectNATS(cfg, "chatter-media")
	if err != nil {
		log.Fatal(err)
	}

	if _, err := broker.EnsureStream(ctx, js); err != nil {
		log.Fatal(err)
	}

	store, err := media.Open(ctx, js, cfg.MediaBucket)
	if err != nil {
		log.Fatal(err)
	}

	// Init DB
	log.Println("Initializing Database connection...")

	dbConn, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		log.Fatalf("could not connect to the postgresql database: %v", err)
	}

	if err := database.Migrate(ctx, dbConn); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	limiter := ratelimiter.NewIPRateLimiter(120, time.Minute, ratelimiter.CleanupOpts{
		TTL:      10 * time.Minute,
		Interval: time.Minute,
	})
	defer limiter.Stop()

	server.Handler = handler.NewRouter(handler.RouterOpts{
		Store:          store,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Auth:           internal.Middleware(cfg.JWTSecret),
		Limit:          limiter.Middleware,
		Health: map[string]handler.Pinger{
			"postgres": dbConn.Ping,
			"nats": func(context.Context) error {
				if !conn.IsConnected() {
					return nats.ErrConnectionClosed
				}
				return nil
			},
		},
	})

	go func() {
		log.Printf("Server starting at 0.0.0.0:%s (bucket %s, max upload %s)",
			cfg.Port, cfg.MediaBucket, humanize.Bytes(uint64(cfg.MaxUploadBytes)))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutdown signal received; shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println(err)
	}

	// Drain NATS connection.
	if err := conn.Drain(); err != nil {
		log.Printf("couldn't drain NATS conn: %+v", err)
	}

	// Close DB connection.
	dbConn.Close()

	log.Println("Server stopped")
}

// Command loadtest registers a batch of bot accounts and has each of them
// post messages to the shared feed.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/johndosdos/chatterfeed/internal/backend"
	"github.com/johndosdos/chatterfeed/internal/config"
	"github.com/johndosdos/chatterfeed/internal/model"
)

var (
	bots     int
	messages int
	interval time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "loadtest",
	Short:         "Sign up bots and post messages to the shared feed",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFlags(bots, messages, interval); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.RequireBackend(); err != nil {
			return err
		}
		return run(ctx, cfg)
	},
}

func checkFlags(bots, messages int, interval time.Duration) error {
	switch {
	case bots < 1:
		return fmt.Errorf("--bots must be at least 1, got %d", bots)
	case messages < 0:
		return fmt.Errorf("--messages must not be negative, got %d", messages)
	case interval <= 0:
		return fmt.Errorf("--interval must be positive, got %s", interval)
	}
	return nil
}

func run(ctx context.Context, cfg config.Config) error {
	var (
		sent   atomic.Int64
		failed atomic.Int64
		wg     sync.WaitGroup
	)

	start := time.Now()
	for i := range bots {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bot(ctx, cfg, i, &sent); err != nil {
				failed.Add(1)
				log.Printf("bot %d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)
	n := sent.Load()
	log.Printf("sent %s messages from %d bots in %s (%s msg/s, %d bots failed)",
		humanize.Comma(n), bots, elapsed.Round(time.Millisecond),
		humanize.FormatFloat("#,###.##", float64(n)/elapsed.Seconds()), failed.Load())
	return nil
}

func bot(ctx context.Context, cfg config.Config, i int, sent *atomic.Int64) error {
	app, err := backend.OpenIsolated(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	name := fmt.Sprintf("bot%d_%s", i, uuid.NewString()[:6])
	id, err := app.SignUp(ctx, name+"@"+cfg.EmailDomain, "loadtest-"+uuid.NewString())
	if err != nil {
		return fmt.Errorf("signup: %w", err)
	}

	if err := app.AddUser(ctx, model.UserProfile{
		UID:       id.UID,
		Username:  name,
		Email:     id.Email,
		CreatedAt: time.Now(),
	}); err != nil {
		return fmt.Errorf("profile: %w", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := range messages {
		if _, err := app.Docs.AddMessage(ctx, model.NewMessage{
			Text:   fmt.Sprintf("message %d from %s", n, name),
			Sender: name,
			UID:    id.UID.String(),
		}); err != nil {
			return fmt.Errorf("message %d: %w", n, err)
		}
		sent.Add(1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	rootCmd.Flags().IntVarP(&bots, "bots", "b", 10, "number of bot accounts")
	rootCmd.Flags().IntVarP(&messages, "messages", "m", 20, "messages per bot")
	rootCmd.Flags().DurationVar(&interval, "interval", 100*time.Millisecond, "delay between a bot's messages")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

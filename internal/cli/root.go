// Package cli is the terminal client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/johndosdos/chatterfeed/internal/auth"
	"github.com/johndosdos/chatterfeed/internal/backend"
)

var (
	version = "dev"

	dataDir    string
	localeFlag string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "chatter",
	Short: "Terminal client for the shared chat room",
	Long: `chatter signs you in and shows the shared chat feed live.
Type to send a message; /image <path> sends a picture.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(ctx context.Context, e *env, p *Prompter) error {
			return runApp(ctx, e, p, cmd.OutOrStdout())
		})
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and remember the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(ctx context.Context, e *env, p *Prompter) error {
			ok, err := loginScreen(ctx, e, p, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("login failed")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged in")
			return nil
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(ctx context.Context, e *env, p *Prompter) error {
			return registerScreen(ctx, e, p, cmd.OutOrStdout())
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(ctx context.Context, e *env, _ *Prompter) error {
			e.gateway.SignOut(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the stored session without connecting",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.close()

		out := cmd.OutOrStdout()
		if sess, ok := e.session.Get(cmd.Context()); ok {
			fmt.Fprintf(out, "session: %s (%s)\n", sess.Username, sess.UID)
		} else {
			fmt.Fprintln(out, "session: none")
		}

		token, ok, err := backend.NewKVTokens(e.kv).LoadToken()
		switch {
		case err != nil:
			return err
		case !ok:
			fmt.Fprintln(out, "token: none")
		default:
			id, err := auth.ValidateJWT(token, e.cfg.JWTSecret)
			if err != nil {
				fmt.Fprintf(out, "token: invalid (%v)\n", err)
				return nil
			}
			fmt.Fprintf(out, "token: %s (%s)\n", id.Email, id.UID)
		}
		return nil
	},
}

// withBackend loads the environment, connects and runs fn with a context
// cancelled on SIGINT or SIGTERM.
func withBackend(cmd *cobra.Command, fn func(ctx context.Context, e *env, p *Prompter) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	if err := e.connect(ctx); err != nil {
		return err
	}

	return fn(ctx, e, NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout()))
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "client data directory (default $CHAT_DATA_DIR or ~/.config/chatter)")
	rootCmd.PersistentFlags().StringVar(&localeFlag, "locale", "", "message language: en or id (default $CHAT_LOCALE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
}

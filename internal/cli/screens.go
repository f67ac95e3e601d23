package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/johndosdos/chatterfeed/internal/app"
	"github.com/johndosdos/chatterfeed/internal/attachment"
	"github.com/johndosdos/chatterfeed/internal/feed"
	"github.com/johndosdos/chatterfeed/internal/identity"
	"github.com/johndosdos/chatterfeed/internal/locale"
	"github.com/johndosdos/chatterfeed/internal/model"
)

var errQuit = errors.New("quit")

type routed struct {
	state app.State
	id    *model.Identity
}

// runApp is the splash, login/register and chat flow.
func runApp(ctx context.Context, e *env, p *Prompter, out io.Writer) error {
	fmt.Fprintln(out, "chatter")
	fmt.Fprintln(out, "loading...")

	// Latest routing decision wins; screens pick it up when they return.
	routes := make(chan routed, 1)
	router := app.NewRouter(func(s app.State, id *model.Identity) {
		select {
		case <-routes:
		default:
		}
		routes <- routed{state: s, id: id}
	})

	authCh, err := e.gateway.ObserveAuthState(ctx)
	if err != nil {
		return err
	}
	go router.Run(ctx, authCh, e.cfg.SplashMin)

	for {
		var r routed
		select {
		case <-ctx.Done():
			return nil
		case r = <-routes:
		}

		slog.DebugContext(ctx, "route", "state", r.state)

		switch r.state {
		case app.StateAnonymous:
			err = authScreen(ctx, e, p, out)
		case app.StateAuthenticated:
			err = chatScreen(ctx, e, p, out, r.id)
		}

		switch {
		case errors.Is(err, errQuit), errors.Is(err, io.EOF), errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			return err
		}
	}
}

// authScreen loops until a login succeeds.
func authScreen(ctx context.Context, e *env, p *Prompter, out io.Writer) error {
	for {
		fmt.Fprintln(out, "\n[1] login  [2] register  [q] quit")
		choice, err := p.Line(ctx, "> ")
		if err != nil {
			return err
		}

		switch strings.TrimSpace(choice) {
		case "1", "login", "":
			ok, err := loginScreen(ctx, e, p, out)
			if err != nil || ok {
				return err
			}
		case "2", "register":
			if err := registerScreen(ctx, e, p, out); err != nil {
				return err
			}
		case "q", "quit", "/quit":
			return errQuit
		}
	}
}

func loginScreen(ctx context.Context, e *env, p *Prompter, out io.Writer) (bool, error) {
	username, err := p.Line(ctx, "Username: ")
	if err != nil {
		return false, err
	}
	secret, err := p.Secret(ctx, "Password: ")
	if err != nil {
		return false, err
	}

	if _, err := e.gateway.SignIn(ctx, username, secret); err != nil {
		fmt.Fprintln(out, "! "+authMessage(err, e.loc))
		return false, nil
	}
	return true, nil
}

func registerScreen(ctx context.Context, e *env, p *Prompter, out io.Writer) error {
	username, err := p.Line(ctx, "Username: ")
	if err != nil {
		return err
	}
	secret, err := p.Secret(ctx, "Password: ")
	if err != nil {
		return err
	}
	confirm, err := p.Secret(ctx, "Confirm password: ")
	if err != nil {
		return err
	}

	if _, err := e.gateway.SignUp(ctx, username, secret, confirm); err != nil {
		fmt.Fprintln(out, "! "+authMessage(err, e.loc))
		return nil
	}

	fmt.Fprintf(out, "%s\n%s\n", e.loc.T(locale.RegisterSuccessTitle), e.loc.T(locale.RegisterSuccessBody))
	return nil
}

func authMessage(err error, loc locale.Locale) string {
	var ae *identity.AuthError
	if errors.As(err, &ae) {
		return ae.Message(loc)
	}
	return err.Error()
}

// chatScreen shows the feed until /logout or /quit.
func chatScreen(ctx context.Context, e *env, p *Prompter, out io.Writer, id *model.Identity) error {
	sess, _ := e.gateway.Session(ctx)
	author := feed.ResolveAuthor(id, sess, e.loc.T(locale.Guest))

	view := NewRenderer(out, author.UID, e.loc)
	sync := feed.New(feed.Docs(e.app.Docs), feed.NewCache(e.kv), view, feed.Options{})
	if err := sync.Mount(ctx); err != nil {
		view.Notice("%v", err)
	}
	defer sync.Stop()

	uploader := attachment.New(nil, e.app.Blobs, sync, nil)

	fmt.Fprintf(out, "signed in as %s. /image <path> sends a picture, /logout, /quit\n", author.Name)

	for {
		line, err := p.Line(ctx, "")
		if err != nil {
			return err
		}

		cmd := strings.TrimSpace(line)
		switch {
		case cmd == "/quit":
			return errQuit

		case cmd == "/logout":
			e.gateway.SignOut(ctx)
			return nil

		case cmd == "/image" || strings.HasPrefix(cmd, "/image "):
			path := strings.TrimSpace(strings.TrimPrefix(cmd, "/image"))
			_, _, err := uploader.PickAndUpload(ctx, attachment.PathPicker(path), author)
			var ue *attachment.UploadError
			switch {
			case errors.Is(err, attachment.ErrBusy):
				view.Notice("%s", e.loc.T(locale.UploadBusy))
			case errors.As(err, &ue):
				view.Notice("%s: %s", e.loc.T(locale.UploadFailedTitle), ue.Message(e.loc))
			}

		default:
			if err := sync.Send(ctx, author, line); err != nil {
				var se *feed.SendError
				if errors.As(err, &se) {
					view.Notice("%s", se.Message(e.loc))
				} else {
					view.Notice("%v", err)
				}
			}
		}
	}
}

// Package identity turns usernames into identity service accounts and owns
// the login, registration and logout flows.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/johndosdos/chatterfeed/internal/model"
	"github.com/johndosdos/chatterfeed/internal/session"
)

// Validation limits for registration.
const (
	MinUsernameLength = 3
	MinSecretLength   = 6
)

// DefaultEmailDomain is appended to usernames without an '@'.
const DefaultEmailDomain = "chatapp.local"

// ErrAlreadyObserved is returned by a second ObserveAuthState call.
var ErrAlreadyObserved = errors.New("identity: auth state is already observed")

// Authenticator is the primary client context's identity service.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (model.Identity, error)
	SignOut(ctx context.Context) error
	OnAuthStateChanged(fn func(*model.Identity)) (unsubscribe func())
}

// Registrar is an isolated client context used for one registration.
type Registrar interface {
	SignUp(ctx context.Context, email, password string) (model.Identity, error)
	AddUser(ctx context.Context, profile model.UserProfile) error
	Close()
}

// Opener opens a fresh isolated context.
type Opener func(ctx context.Context) (Registrar, error)

// Gateway is safe for concurrent use.
type Gateway struct {
	auth    Authenticator
	open    Opener
	session *session.Store
	domain  string

	mu       sync.Mutex
	observed bool
}

// New returns a gateway. An empty domain means DefaultEmailDomain.
func New(auth Authenticator, open Opener, sess *session.Store, domain string) *Gateway {
	if domain == "" {
		domain = DefaultEmailDomain
	}
	return &Gateway{auth: auth, open: open, session: sess, domain: domain}
}

// Email rewrites a username into the account email.
func (g *Gateway) Email(identifier string) string {
	if strings.Contains(identifier, "@") {
		return identifier
	}
	return identifier + "@" + g.domain
}

// SignIn logs in on the primary context and saves the session.
func (g *Gateway) SignIn(ctx context.Context, identifier, secret string) (model.Identity, error) {
	name := strings.TrimSpace(identifier)
	if name == "" || strings.TrimSpace(secret) == "" {
		return model.Identity{}, &AuthError{Kind: KindRequired}
	}

	id, err := g.auth.SignIn(ctx, g.Email(name), secret)
	if err != nil {
		slog.InfoContext(ctx, "sign in failed", "username", name, "error", err)
		return model.Identity{}, classifySignIn(err)
	}

	g.session.Set(ctx, name, id.UID.String())
	slog.InfoContext(ctx, "user logged in", slog.String("username", name))
	return id, nil
}

// SignUp validates locally, then creates the account and profile on an
// isolated context that is closed before returning. The primary context
// and the session are not touched; the caller logs in afterwards.
func (g *Gateway) SignUp(ctx context.Context, identifier, secret, confirmation string) (model.Identity, error) {
	name := strings.TrimSpace(identifier)
	switch {
	case name == "" || strings.TrimSpace(secret) == "":
		return model.Identity{}, &AuthError{Kind: KindRequired, register: true}
	case utf8.RuneCountInString(name) < MinUsernameLength:
		return model.Identity{}, &AuthError{Kind: KindUsernameTooShort, register: true}
	case utf8.RuneCountInString(secret) < MinSecretLength:
		return model.Identity{}, &AuthError{Kind: KindSecretTooShort, register: true}
	case secret != confirmation:
		return model.Identity{}, &AuthError{Kind: KindSecretMismatch, register: true}
	}

	reg, err := g.open(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open isolated context", "error", err)
		return model.Identity{}, &AuthError{Kind: KindUnknown, Err: err, register: true}
	}
	defer reg.Close()

	email := g.Email(name)
	id, err := reg.SignUp(ctx, email, secret)
	if err != nil {
		slog.InfoContext(ctx, "sign up failed", "username", name, "error", err)
		return model.Identity{}, classifySignUp(err)
	}

	err = reg.AddUser(ctx, model.UserProfile{UID: id.UID, Username: name, Email: email})
	if err != nil {
		slog.ErrorContext(ctx, "failed to write user profile", "uid", id.UID, "error", err)
		return model.Identity{}, &AuthError{Kind: KindUnknown, Err: err, register: true}
	}

	slog.InfoContext(ctx, "user registered", slog.String("username", name), slog.String("uid", id.UID.String()))
	return id, nil
}

// SignOut never fails for the caller. The session is cleared even when the
// identity service reports an error.
func (g *Gateway) SignOut(ctx context.Context) {
	if err := g.auth.SignOut(ctx); err != nil {
		slog.ErrorContext(ctx, "sign out failed", "error", err)
	}
	g.session.Clear(ctx)
}

// Session returns the stored display session.
func (g *Gateway) Session(ctx context.Context) (model.Session, bool) {
	return g.session.Get(ctx)
}

// ObserveAuthState streams the current identity (nil when signed out) and
// every change after it. Only the latest value is buffered; a slow reader
// skips intermediate states. The channel is closed when ctx is done. Only
// one observer is allowed per gateway.
func (g *Gateway) ObserveAuthState(ctx context.Context) (<-chan *model.Identity, error) {
	g.mu.Lock()
	if g.observed {
		g.mu.Unlock()
		return nil, ErrAlreadyObserved
	}
	g.observed = true
	g.mu.Unlock()

	var (
		mu     sync.Mutex
		closed bool
	)
	ch := make(chan *model.Identity, 1)

	unsubscribe := g.auth.OnAuthStateChanged(func(id *model.Identity) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case <-ch:
		default:
		}
		ch <- id
	})

	go func() {
		<-ctx.Done()
		unsubscribe()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()

	return ch, nil
}

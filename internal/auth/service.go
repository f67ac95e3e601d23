// Package auth is the identity service client: email/password accounts,
// id tokens and the current-user handle of one client context.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/johndosdos/chatterfeed/internal/database"
	"github.com/johndosdos/chatterfeed/internal/model"
)

// MinPasswordLength is the shortest password the service accepts.
const MinPasswordLength = 6

// Querier is the subset of database.Queries the service needs.
type Querier interface {
	CreateAccount(ctx context.Context, arg database.CreateAccountParams) (database.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (database.Account, error)
}

// TokenStore persists the id token of the signed in user between runs.
type TokenStore interface {
	LoadToken() (string, bool, error)
	SaveToken(token string) error
	ClearToken() error
}

// Options configure token issuance.
type Options struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// Service holds the auth state of a single client context. It is safe for
// concurrent use.
type Service struct {
	db     Querier
	tokens TokenStore
	opts   Options

	// notify orders listener calls the same as state writes. Listeners
	// must not change the auth state.
	notify sync.Mutex

	mu        sync.Mutex
	current   *model.Identity
	resolved  bool
	listeners map[int]func(*model.Identity)
	nextID    int
}

// NewService returns a service with no resolved auth state. Call Restore
// to resolve it.
func NewService(db Querier, tokens TokenStore, opts Options) *Service {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 7 * 24 * time.Hour
	}
	return &Service{
		db:        db,
		tokens:    tokens,
		opts:      opts,
		listeners: make(map[int]func(*model.Identity)),
	}
}

// Restore resolves the initial auth state from the persisted token and
// notifies listeners. An invalid or expired token is discarded.
func (s *Service) Restore(ctx context.Context) {
	var restored *model.Identity

	token, ok, err := s.tokens.LoadToken()
	switch {
	case err != nil:
		slog.WarnContext(ctx, "failed to load persisted token", "error", err)
	case ok:
		id, err := ValidateJWT(token, s.opts.Secret)
		if err != nil {
			slog.InfoContext(ctx, "discarding persisted token", "error", err)
			if err := s.tokens.ClearToken(); err != nil {
				slog.WarnContext(ctx, "failed to clear persisted token", "error", err)
			}
			break
		}
		restored = &id
	}

	s.setCurrent(restored)
}

// CurrentUser returns the signed in identity, or nil.
func (s *Service) CurrentUser() *model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	id := *s.current
	return &id
}

// OnAuthStateChanged registers fn. When the state is already resolved fn
// is called immediately with the current identity. The returned function
// unregisters fn.
func (s *Service) OnAuthStateChanged(fn func(*model.Identity)) (unsubscribe func()) {
	s.notify.Lock()
	defer s.notify.Unlock()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	resolved := s.resolved
	var current *model.Identity
	if s.current != nil {
		c := *s.current
		current = &c
	}
	s.mu.Unlock()

	if resolved {
		fn(current)
	}

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SignIn authenticates email and password and makes the account the
// current user.
func (s *Service) SignIn(ctx context.Context, email, password string) (model.Identity, error) {
	if !isEmail(email) {
		return model.Identity{}, newError(CodeInvalidEmail, nil)
	}

	acc, err := s.db.GetAccountByEmail(ctx, email)
	if errors.Is(err, database.ErrNoRows) {
		return model.Identity{}, newError(CodeUserNotFound, nil)
	}
	if err != nil {
		return model.Identity{}, newError(CodeInternal, err)
	}

	ok, err := CheckPasswordHash(password, acc.HashedPassword)
	if err != nil {
		return model.Identity{}, newError(CodeInternal, err)
	}
	if !ok {
		return model.Identity{}, newError(CodeInvalidCredential, nil)
	}

	return s.signedIn(ctx, uuid.UUID(acc.UserID.Bytes), acc.Email)
}

// SignUp creates an account and makes it the current user of this
// context.
func (s *Service) SignUp(ctx context.Context, email, password string) (model.Identity, error) {
	if !isEmail(email) {
		return model.Identity{}, newError(CodeInvalidEmail, nil)
	}
	if len(password) < MinPasswordLength {
		return model.Identity{}, newError(CodeWeakPassword, nil)
	}

	hashedPw, err := HashPassword(password)
	if err != nil {
		return model.Identity{}, newError(CodeInternal, err)
	}

	acc, err := s.db.CreateAccount(ctx, database.CreateAccountParams{
		UserID:         pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Email:          email,
		HashedPassword: hashedPw,
	})
	if database.IsUniqueViolation(err) {
		return model.Identity{}, newError(CodeEmailInUse, nil)
	}
	if err != nil {
		return model.Identity{}, newError(CodeInternal, err)
	}

	slog.InfoContext(ctx, "account created", slog.String("email", acc.Email))

	return s.signedIn(ctx, uuid.UUID(acc.UserID.Bytes), acc.Email)
}

// SignOut forgets the current user. Listeners are notified even when the
// persisted token could not be removed.
func (s *Service) SignOut(ctx context.Context) error {
	err := s.tokens.ClearToken()
	s.setCurrent(nil)
	if err != nil {
		return newError(CodeInternal, err)
	}
	return nil
}

func (s *Service) signedIn(ctx context.Context, userID uuid.UUID, email string) (model.Identity, error) {
	token, err := MakeJWT(userID, email, s.opts.Issuer, s.opts.Secret, s.opts.TokenTTL)
	if err != nil {
		return model.Identity{}, newError(CodeInternal, err)
	}

	if err := s.tokens.SaveToken(token); err != nil {
		slog.WarnContext(ctx, "failed to persist token", "error", err)
	}

	id := model.Identity{UID: userID, Email: email, Token: token}
	s.setCurrent(&id)
	return id, nil
}

func (s *Service) setCurrent(id *model.Identity) {
	s.notify.Lock()
	defer s.notify.Unlock()

	s.mu.Lock()
	s.current = id
	s.resolved = true
	fns := make([]func(*model.Identity), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		var c *model.Identity
		if id != nil {
			cp := *id
			c = &cp
		}
		fn(c)
	}
}

func isEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// MemoryTokens keeps the token in memory only.
type MemoryTokens struct {
	mu    sync.Mutex
	token string
}

func (m *MemoryTokens) LoadToken() (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.token != "", nil
}

func (m *MemoryTokens) SaveToken(token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryTokens) ClearToken() error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}

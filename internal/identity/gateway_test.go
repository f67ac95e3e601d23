package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/chatterfeed/internal/auth"
	"github.com/johndosdos/chatterfeed/internal/locale"
	"github.com/johndosdos/chatterfeed/internal/model"
	"github.com/johndosdos/chatterfeed/internal/session"
)

type memKV struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemKV() *memKV { return &memKV{m: make(map[string]string)} }

func (k *memKV) Get(key string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.m[key]
	return v, ok, nil
}

func (k *memKV) Set(key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.m[key] = value
	return nil
}

func (k *memKV) Delete(key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.m, key)
	return nil
}

type fakeAuth struct {
	mu         sync.Mutex
	signIns    []string
	secrets    []string
	signInErr  error
	signOutErr error
	uid        uuid.UUID
	current    *model.Identity
	listeners  []func(*model.Identity)
}

func (f *fakeAuth) SignIn(_ context.Context, email, secret string) (model.Identity, error) {
	f.mu.Lock()
	f.signIns = append(f.signIns, email)
	f.secrets = append(f.secrets, secret)
	f.mu.Unlock()
	if f.signInErr != nil {
		return model.Identity{}, f.signInErr
	}
	id := model.Identity{UID: f.uid, Email: email}
	f.emit(&id)
	return id, nil
}

func (f *fakeAuth) SignOut(context.Context) error {
	f.emit(nil)
	return f.signOutErr
}

func (f *fakeAuth) OnAuthStateChanged(fn func(*model.Identity)) func() {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	current := f.current
	f.mu.Unlock()
	fn(current)
	return func() {}
}

func (f *fakeAuth) emit(id *model.Identity) {
	f.mu.Lock()
	f.current = id
	fns := append(([]func(*model.Identity))(nil), f.listeners...)
	f.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

type fakeRegistrar struct {
	signUpErr  error
	addUserErr error
	uid        uuid.UUID
	emails     []string
	profiles   []model.UserProfile
	closed     int
}

func (r *fakeRegistrar) SignUp(_ context.Context, email, _ string) (model.Identity, error) {
	r.emails = append(r.emails, email)
	if r.signUpErr != nil {
		return model.Identity{}, r.signUpErr
	}
	return model.Identity{UID: r.uid, Email: email}, nil
}

func (r *fakeRegistrar) AddUser(_ context.Context, p model.UserProfile) error {
	r.profiles = append(r.profiles, p)
	return r.addUserErr
}

func (r *fakeRegistrar) Close() { r.closed++ }

type fixture struct {
	gw    *Gateway
	auth  *fakeAuth
	reg   *fakeRegistrar
	opens int
	kv    *memKV
	sess  *session.Store
}

func newFixture() *fixture {
	f := &fixture{
		auth: &fakeAuth{uid: uuid.New()},
		reg:  &fakeRegistrar{uid: uuid.New()},
		kv:   newMemKV(),
	}
	f.sess = session.New(f.kv)
	f.gw = New(f.auth, func(context.Context) (Registrar, error) {
		f.opens++
		return f.reg, nil
	}, f.sess, "")
	return f
}

func TestSignInRewritesUsername(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	id, err := f.gw.SignIn(ctx, "  alice ", "secret1")
	require.NoError(t, err)

	assert.Equal(t, []string{"alice@chatapp.local"}, f.auth.signIns)
	assert.Equal(t, f.auth.uid, id.UID)

	s, ok := f.sess.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, model.Session{Username: "alice", UID: f.auth.uid.String()}, s)
}

func TestSignInKeepsFullEmail(t *testing.T) {
	f := newFixture()
	_, err := f.gw.SignIn(context.Background(), "carol@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, []string{"carol@example.com"}, f.auth.signIns)
}

func TestSignInRequired(t *testing.T) {
	f := newFixture()

	for _, tc := range [][2]string{{"", "secret1"}, {"   ", "secret1"}, {"alice", ""}, {"alice", "   "}} {
		_, err := f.gw.SignIn(context.Background(), tc[0], tc[1])
		var ae *AuthError
		require.True(t, errors.As(err, &ae))
		assert.Equal(t, KindRequired, ae.Kind)
		assert.Equal(t, "Username dan password harus diisi", ae.Message(locale.ID))
	}
	assert.Empty(t, f.auth.signIns)
}

func TestSignInSubmitsSecretUntrimmed(t *testing.T) {
	f := newFixture()

	_, err := f.gw.SignIn(context.Background(), "alice", " secret1 ")
	require.NoError(t, err)
	assert.Equal(t, []string{" secret1 "}, f.auth.secrets)
}

func TestSignInClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
		msg  string
	}{
		{"invalid credential", &auth.Error{Code: auth.CodeInvalidCredential}, KindInvalidCredentials, "Username atau password salah."},
		{"user not found", &auth.Error{Code: auth.CodeUserNotFound}, KindInvalidCredentials, "Username atau password salah."},
		{"invalid email", &auth.Error{Code: auth.CodeInvalidEmail}, KindInvalidFormat, "Format username tidak valid."},
		{"other", errors.New("dial tcp: connection refused"), KindUnknown, "dial tcp: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.auth.signInErr = tt.err

			_, err := f.gw.SignIn(context.Background(), "alice", "secret1")
			var ae *AuthError
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, tt.want, ae.Kind)
			assert.Equal(t, tt.msg, ae.Message(locale.ID))

			_, ok := f.sess.Get(context.Background())
			assert.False(t, ok)
		})
	}
}

func TestSignUpUsesIsolatedContext(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	id, err := f.gw.SignUp(ctx, "bob", "abcdef", "abcdef")
	require.NoError(t, err)

	assert.Equal(t, f.reg.uid, id.UID)
	assert.Equal(t, []string{"bob@chatapp.local"}, f.reg.emails)
	require.Len(t, f.reg.profiles, 1)
	assert.Equal(t, model.UserProfile{UID: f.reg.uid, Username: "bob", Email: "bob@chatapp.local"}, f.reg.profiles[0])
	assert.Equal(t, 1, f.reg.closed)

	// The primary context and the session are untouched.
	assert.Empty(t, f.auth.signIns)
	assert.Nil(t, f.auth.current)
	_, ok := f.sess.Get(ctx)
	assert.False(t, ok)
}

func TestSignUpValidatesBeforeNetwork(t *testing.T) {
	tests := []struct {
		name                  string
		user, secret, confirm string
		want                  Kind
	}{
		{"missing username", "", "abcdef", "abcdef", KindRequired},
		{"missing secret", "bob", "", "", KindRequired},
		{"blank secret", "bob", "      ", "      ", KindRequired},
		{"short username", "bo", "abcdef", "abcdef", KindUsernameTooShort},
		{"short secret", "bob", "abc", "abc", KindSecretTooShort},
		{"mismatch", "bob", "abcdef", "abcdeg", KindSecretMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.gw.SignUp(context.Background(), tt.user, tt.secret, tt.confirm)

			var ae *AuthError
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, tt.want, ae.Kind)
			assert.Zero(t, f.opens)
			assert.Empty(t, f.reg.emails)
		})
	}
}

func TestSignUpClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"taken", &auth.Error{Code: auth.CodeEmailInUse}, KindUsernameTaken},
		{"weak", &auth.Error{Code: auth.CodeWeakPassword}, KindWeakSecret},
		{"invalid email", &auth.Error{Code: auth.CodeInvalidEmail}, KindInvalidFormat},
		{"other", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.reg.signUpErr = tt.err

			_, err := f.gw.SignUp(context.Background(), "bob", "abcdef", "abcdef")
			var ae *AuthError
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, tt.want, ae.Kind)
			assert.Equal(t, 1, f.reg.closed)
			assert.Empty(t, f.reg.profiles)
		})
	}
}

func TestSignUpProfileFailure(t *testing.T) {
	f := newFixture()
	f.reg.addUserErr = errors.New("insert failed")

	_, err := f.gw.SignUp(context.Background(), "bob", "abcdef", "abcdef")
	var ae *AuthError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, KindUnknown, ae.Kind)
	assert.Equal(t, 1, f.reg.closed)
}

func TestSignUpOpenFailure(t *testing.T) {
	f := newFixture()
	f.gw.open = func(context.Context) (Registrar, error) { return nil, errors.New("no db") }

	_, err := f.gw.SignUp(context.Background(), "bob", "abcdef", "abcdef")
	var ae *AuthError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, KindUnknown, ae.Kind)
	assert.Equal(t, "no db", ae.Message(locale.EN))
}

func TestSignOutAlwaysClearsSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// Signed out already.
	f.gw.SignOut(ctx)
	_, ok := f.sess.Get(ctx)
	assert.False(t, ok)

	f.sess.Set(ctx, "alice", "uid-1")
	f.auth.signOutErr = errors.New("network down")
	f.gw.SignOut(ctx)
	f.gw.SignOut(ctx)

	_, ok = f.sess.Get(ctx)
	assert.False(t, ok)
	assert.Empty(t, f.kv.m)
}

func TestObserveAuthState(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := f.gw.ObserveAuthState(ctx)
	require.NoError(t, err)

	assert.Nil(t, <-ch)

	_, err = f.gw.SignIn(ctx, "alice", "secret1")
	require.NoError(t, err)
	id := <-ch
	require.NotNil(t, id)
	assert.Equal(t, "alice@chatapp.local", id.Email)

	_, err = f.gw.ObserveAuthState(ctx)
	assert.ErrorIs(t, err, ErrAlreadyObserved)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestObserveAuthStateKeepsLatest(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := f.gw.ObserveAuthState(ctx)
	require.NoError(t, err)

	_, err = f.gw.SignIn(ctx, "alice", "secret1")
	require.NoError(t, err)
	f.gw.SignOut(ctx)

	assert.Nil(t, <-ch)
	select {
	case v := <-ch:
		t.Fatalf("unexpected buffered value %v", v)
	default:
	}
}

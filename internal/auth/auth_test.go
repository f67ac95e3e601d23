package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/johndosdos/chatterfeed/internal/database"
	"github.com/johndosdos/chatterfeed/internal/model"
)

func TestHashPassword(t *testing.T) {
	t.Run("unique hashes", func(t *testing.T) {
		pw := "password1234"
		hash, err := HashPassword(pw)
		if err != nil {
			t.Fatalf("password hash fail #1: %+v", err)
		}

		hash2, err := HashPassword(pw)
		if err != nil {
			t.Fatalf("password hash fail #2: %+v", err)
		}

		if hash == hash2 {
			t.Fatalf("hash and hash2 are the same hashes; should be different: %s, %s", hash, hash2)
		}
	})

	t.Run("empty password", func(t *testing.T) {
		_, err := HashPassword("")
		if err != nil {
			t.Errorf("HashPassword() failed on empty string: %+v", err)
		}
	})
}

func TestCheckPasswordHash(t *testing.T) {
	tests := []struct {
		name      string
		password  string
		checkPw   string
		hash      string
		wantErr   bool
		wantMatch bool
	}{
		{"correct pw", "mypassword1234", "mypassword1234", "", false, true},
		{"incorrect pw", "mypassword1234", "passwordDD1234", "", false, false},
		{"wrong hash", "mypassword1234", "passwordDD1234", "not-a-hash", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hash string
			var err error

			if tt.hash != "" {
				hash = tt.hash
			} else {
				hash, err = HashPassword(tt.password)
				if err != nil {
					t.Fatalf("%+v", err)
				}
			}

			isMatch, err := CheckPasswordHash(tt.checkPw, hash)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckPasswordHash() error = %+v", err)
			}
			if isMatch != tt.wantMatch {
				t.Errorf("password and hash match = %v, want %v", isMatch, tt.wantMatch)
			}
		})
	}
}

func TestJWT(t *testing.T) {
	t.Run("Valid_JWT", func(t *testing.T) {
		userID := uuid.New()
		tokenSecret := "validtokensecret"
		tokenString, err := MakeJWT(userID, "alice@chatapp.local", "chatter", tokenSecret, 15*time.Second)
		if err != nil {
			t.Fatalf("MakeJWT() error = %+v", err)
		}
		got, err := ValidateJWT(tokenString, tokenSecret)
		if err != nil {
			t.Fatalf("ValidateJWT() error = %+v", err)
		}
		if got.UID != userID {
			t.Errorf("want = %+v, got = %+v", userID, got.UID)
		}
		if got.Email != "alice@chatapp.local" {
			t.Errorf("want email alice@chatapp.local, got %q", got.Email)
		}
	})

	t.Run("Incorrect_secret", func(t *testing.T) {
		tokenString, err := MakeJWT(uuid.New(), "a@b.c", "chatter", "validtokensecret", 15*time.Second)
		if err != nil {
			t.Fatalf("MakeJWT() error = %+v", err)
		}
		_, err = ValidateJWT(tokenString, "fakesecret")
		if err == nil {
			t.Fatal("ValidateJWT() expected error but got none")
		}
	})

	t.Run("Expired_token", func(t *testing.T) {
		tokenString, err := MakeJWT(uuid.New(), "a@b.c", "chatter", "validtokensecret", -1*time.Second)
		if err != nil {
			t.Fatalf("MakeJWT() error = %+v", err)
		}
		_, err = ValidateJWT(tokenString, "validtokensecret")
		if err == nil {
			t.Fatal("ValidateJWT() expected error but got none")
		}
	})

	t.Run("Corrupt_token", func(t *testing.T) {
		_, err := ValidateJWT("corrupttoken", "validtokensecret")
		if err == nil {
			t.Fatal("ValidateJWT() expected error but got none")
		}
	})
}

func TestGetUserFromContext(t *testing.T) {
	t.Run("is_valid_UUID", func(t *testing.T) {
		wantUserID := uuid.New()
		ctx := context.WithValue(context.Background(), UserIDKey, wantUserID)
		gotUserID, err := GetUserFromContext(ctx)
		if err != nil {
			t.Fatalf("GetUserFromContext(): expected userID but got error = %+v", err)
		}
		if gotUserID != wantUserID {
			t.Errorf("want %+v but got %+v", wantUserID, gotUserID)
		}
	})

	t.Run("invalid_UUID", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), UserIDKey, "not-UUID")
		if _, err := GetUserFromContext(ctx); err == nil {
			t.Fatal("GetUserFromContext(): expected error but got none")
		}
	})

	t.Run("no_context", func(t *testing.T) {
		if _, err := GetUserFromContext(context.Background()); err == nil {
			t.Fatal("GetUserFromContext(): expected error but got none")
		}
	})
}

type fakeQuerier struct {
	mu       sync.Mutex
	accounts map[string]database.Account
	err      error
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{accounts: make(map[string]database.Account)}
}

func (f *fakeQuerier) CreateAccount(_ context.Context, arg database.CreateAccountParams) (database.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return database.Account{}, f.err
	}
	if _, ok := f.accounts[arg.Email]; ok {
		return database.Account{}, &pgconn.PgError{Code: "23505"}
	}
	acc := database.Account{UserID: arg.UserID, Email: arg.Email, HashedPassword: arg.HashedPassword}
	f.accounts[arg.Email] = acc
	return acc, nil
}

func (f *fakeQuerier) GetAccountByEmail(_ context.Context, email string) (database.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return database.Account{}, f.err
	}
	acc, ok := f.accounts[email]
	if !ok {
		return database.Account{}, database.ErrNoRows
	}
	return acc, nil
}

func newTestService(q Querier, tokens TokenStore) *Service {
	return NewService(q, tokens, Options{Secret: "validtokensecret", Issuer: "chatter", TokenTTL: time.Hour})
}

func TestServiceSignUpAndSignIn(t *testing.T) {
	ctx := context.Background()
	q := newFakeQuerier()
	svc := newTestService(q, &MemoryTokens{})
	svc.Restore(ctx)

	id, err := svc.SignUp(ctx, "bob@chatapp.local", "abcdef")
	if err != nil {
		t.Fatalf("SignUp() error = %+v", err)
	}
	if cur := svc.CurrentUser(); cur == nil || cur.UID != id.UID {
		t.Fatalf("SignUp() should sign the new account in, current = %+v", cur)
	}

	if err := svc.SignOut(ctx); err != nil {
		t.Fatalf("SignOut() error = %+v", err)
	}
	if svc.CurrentUser() != nil {
		t.Fatal("SignOut() left a current user")
	}

	got, err := svc.SignIn(ctx, "bob@chatapp.local", "abcdef")
	if err != nil {
		t.Fatalf("SignIn() error = %+v", err)
	}
	if got.UID != id.UID || got.Token == "" {
		t.Errorf("SignIn() = %+v, want uid %v with a token", got, id.UID)
	}
}

func TestServiceErrorCodes(t *testing.T) {
	ctx := context.Background()
	q := newFakeQuerier()
	svc := newTestService(q, &MemoryTokens{})
	if _, err := svc.SignUp(ctx, "taken@chatapp.local", "abcdef"); err != nil {
		t.Fatalf("SignUp() error = %+v", err)
	}

	tests := []struct {
		name     string
		op       func() error
		wantCode string
	}{
		{"signin_bad_email", func() error { _, err := svc.SignIn(ctx, "alice", "abcdef"); return err }, CodeInvalidEmail},
		{"signin_unknown_user", func() error { _, err := svc.SignIn(ctx, "nobody@chatapp.local", "abcdef"); return err }, CodeUserNotFound},
		{"signin_wrong_password", func() error { _, err := svc.SignIn(ctx, "taken@chatapp.local", "zzzzzz"); return err }, CodeInvalidCredential},
		{"signup_weak_password", func() error { _, err := svc.SignUp(ctx, "new@chatapp.local", "abc"); return err }, CodeWeakPassword},
		{"signup_taken", func() error { _, err := svc.SignUp(ctx, "taken@chatapp.local", "abcdef"); return err }, CodeEmailInUse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			if got := CodeOf(err); got != tt.wantCode {
				t.Errorf("want code %q, got %q (err = %v)", tt.wantCode, got, err)
			}
		})
	}

	t.Run("backend_failure", func(t *testing.T) {
		q.err = errors.New("connection refused")
		defer func() { q.err = nil }()
		_, err := svc.SignIn(ctx, "taken@chatapp.local", "abcdef")
		if CodeOf(err) != CodeInternal {
			t.Errorf("want %q, got %v", CodeInternal, err)
		}
	})
}

func TestServiceAuthStateListeners(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFakeQuerier(), &MemoryTokens{})

	var mu sync.Mutex
	var events []*model.Identity
	unsubscribe := svc.OnAuthStateChanged(func(id *model.Identity) {
		mu.Lock()
		events = append(events, id)
		mu.Unlock()
	})

	mu.Lock()
	if len(events) != 0 {
		t.Fatal("no event expected before the state is resolved")
	}
	mu.Unlock()

	svc.Restore(ctx)
	if _, err := svc.SignUp(ctx, "carol@chatapp.local", "abcdef"); err != nil {
		t.Fatalf("SignUp() error = %+v", err)
	}
	_ = svc.SignOut(ctx)
	unsubscribe()
	_, _ = svc.SignIn(ctx, "carol@chatapp.local", "abcdef")

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 3 {
		t.Fatalf("want 3 events, got %d", len(events))
	}
	if events[0] != nil || events[1] == nil || events[2] != nil {
		t.Errorf("unexpected event sequence: %+v", events)
	}

	var late *model.Identity
	called := false
	svc.OnAuthStateChanged(func(id *model.Identity) { called, late = true, id })
	if !called || late == nil || late.Email != "carol@chatapp.local" {
		t.Errorf("late subscriber should get the current identity immediately, got %+v", late)
	}
}

func TestServiceListenersSeeLastWrite(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFakeQuerier(), &MemoryTokens{})
	svc.Restore(ctx)
	if _, err := svc.SignUp(ctx, "dave@chatapp.local", "abcdef"); err != nil {
		t.Fatalf("SignUp() error = %+v", err)
	}

	var mu sync.Mutex
	var last *model.Identity
	svc.OnAuthStateChanged(func(id *model.Identity) {
		mu.Lock()
		last = id
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_ = svc.SignOut(ctx)
				return
			}
			if _, err := svc.SignIn(ctx, "dave@chatapp.local", "abcdef"); err != nil {
				t.Errorf("SignIn() error = %+v", err)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	cur := svc.CurrentUser()
	switch {
	case cur == nil && last != nil, cur != nil && last == nil:
		t.Fatalf("last event %+v does not match current user %+v", last, cur)
	case cur != nil && cur.Token != last.Token:
		t.Errorf("last event token differs from current user token")
	}
}

func TestServiceRestore(t *testing.T) {
	ctx := context.Background()
	q := newFakeQuerier()
	tokens := &MemoryTokens{}

	first := newTestService(q, tokens)
	first.Restore(ctx)
	id, err := first.SignUp(ctx, "dave@chatapp.local", "abcdef")
	if err != nil {
		t.Fatalf("SignUp() error = %+v", err)
	}

	second := newTestService(q, tokens)
	second.Restore(ctx)
	cur := second.CurrentUser()
	if cur == nil || cur.UID != id.UID {
		t.Fatalf("Restore() should resume the persisted identity, got %+v", cur)
	}

	_ = tokens.SaveToken("garbage")
	third := newTestService(q, tokens)
	third.Restore(ctx)
	if third.CurrentUser() != nil {
		t.Fatal("Restore() accepted an invalid token")
	}
	if _, ok, _ := tokens.LoadToken(); ok {
		t.Error("invalid token should have been cleared")
	}
}

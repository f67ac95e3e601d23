package identity

import (
	"strings"

	"github.com/johndosdos/chatterfeed/internal/auth"
	"github.com/johndosdos/chatterfeed/internal/locale"
)

// Kind classifies an AuthError.
type Kind int

const (
	KindUnknown Kind = iota
	KindRequired
	KindUsernameTooShort
	KindSecretTooShort
	KindSecretMismatch
	KindInvalidCredentials
	KindInvalidFormat
	KindUsernameTaken
	KindWeakSecret
)

func (k Kind) String() string {
	switch k {
	case KindRequired:
		return "required"
	case KindUsernameTooShort:
		return "username-too-short"
	case KindSecretTooShort:
		return "secret-too-short"
	case KindSecretMismatch:
		return "secret-mismatch"
	case KindInvalidCredentials:
		return "invalid-credentials"
	case KindInvalidFormat:
		return "invalid-format"
	case KindUsernameTaken:
		return "username-taken"
	case KindWeakSecret:
		return "weak-secret"
	default:
		return "unknown"
	}
}

// AuthError is returned by SignIn and SignUp. Err is the identity service
// error it was classified from, nil for local validation failures.
type AuthError struct {
	Kind Kind
	Err  error

	register bool
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return "identity: " + e.Kind.String() + ": " + e.Err.Error()
	}
	return "identity: " + e.Kind.String()
}

func (e *AuthError) Unwrap() error { return e.Err }

// Message is the user-facing text in l. Unclassified failures show the
// underlying error text.
func (e *AuthError) Message(l locale.Locale) string {
	switch e.Kind {
	case KindRequired:
		if e.register {
			return l.T(locale.AuthRegisterRequired)
		}
		return l.T(locale.AuthRequired)
	case KindUsernameTooShort:
		return l.T(locale.AuthUsernameTooShort)
	case KindSecretTooShort:
		return l.T(locale.AuthSecretTooShort)
	case KindSecretMismatch:
		return l.T(locale.AuthSecretMismatch)
	case KindInvalidCredentials:
		return l.T(locale.AuthInvalidCredentials)
	case KindInvalidFormat:
		return l.T(locale.AuthInvalidFormat)
	case KindUsernameTaken:
		return l.T(locale.AuthUsernameTaken)
	case KindWeakSecret:
		return l.T(locale.AuthWeakSecret)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return l.T(locale.AuthUnknown)
}

// Service errors are matched on their rendered text so wrapped errors and
// errors from other identity backends classify the same way.
func classifySignIn(err error) *AuthError {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "auth/"+auth.CodeInvalidCredential),
		strings.Contains(msg, "auth/"+auth.CodeUserNotFound):
		return &AuthError{Kind: KindInvalidCredentials, Err: err}
	case strings.Contains(msg, "auth/"+auth.CodeInvalidEmail):
		return &AuthError{Kind: KindInvalidFormat, Err: err}
	}
	return &AuthError{Kind: KindUnknown, Err: err}
}

func classifySignUp(err error) *AuthError {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "auth/"+auth.CodeEmailInUse):
		return &AuthError{Kind: KindUsernameTaken, Err: err, register: true}
	case strings.Contains(msg, "auth/"+auth.CodeWeakPassword):
		return &AuthError{Kind: KindWeakSecret, Err: err, register: true}
	case strings.Contains(msg, "auth/"+auth.CodeInvalidEmail):
		return &AuthError{Kind: KindInvalidFormat, Err: err, register: true}
	}
	return &AuthError{Kind: KindUnknown, Err: err, register: true}
}

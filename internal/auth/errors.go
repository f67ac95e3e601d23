package auth

import (
	"errors"
	"fmt"
)

// Backend error codes. They are rendered as "auth/<code>" so callers can
// classify errors by substring.
const (
	CodeInvalidCredential = "invalid-credential"
	CodeUserNotFound      = "user-not-found"
	CodeInvalidEmail      = "invalid-email"
	CodeEmailInUse        = "email-already-in-use"
	CodeWeakPassword      = "weak-password"
	CodeInternal          = "internal-error"
)

// Error is returned by every Service operation that fails.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth/%s: %v", e.Code, e.Err)
	}
	return "auth/" + e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of an *Error in err's chain, or "".
func CodeOf(err error) string {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	return ""
}

func newError(code string, err error) *Error {
	return &Error{Code: code, Err: err}
}

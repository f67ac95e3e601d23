package feed

import (
	"github.com/johndosdos/chatterfeed/internal/locale"
)

// SendKind classifies a SendError.
type SendKind int

const (
	SendUnknown SendKind = iota
	SendEmpty
	SendBusy
	SendRateLimited
)

func (k SendKind) String() string {
	switch k {
	case SendEmpty:
		return "empty"
	case SendBusy:
		return "busy"
	case SendRateLimited:
		return "rate-limited"
	default:
		return "unknown"
	}
}

// SendError is returned by Send.
type SendError struct {
	Kind SendKind
	Err  error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return "feed: send " + e.Kind.String() + ": " + e.Err.Error()
	}
	return "feed: send " + e.Kind.String()
}

func (e *SendError) Unwrap() error { return e.Err }

// Message is the user-facing text in l.
func (e *SendError) Message(l locale.Locale) string {
	switch e.Kind {
	case SendEmpty:
		return l.T(locale.SendEmpty)
	case SendBusy:
		return l.T(locale.SendBusy)
	case SendRateLimited:
		return l.T(locale.SendRateLimited)
	}
	if e.Err != nil {
		return l.T(locale.SendFailed) + e.Err.Error()
	}
	return l.T(locale.SendFailed)
}

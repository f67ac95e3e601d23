// Package app routes the client between its screens. Routing stays Unknown
// until the splash has been shown for its minimum duration and the first
// auth state has arrived.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/johndosdos/chatterfeed/internal/model"
)

// DefaultSplashMin is the minimum splash duration.
const DefaultSplashMin = 3500 * time.Millisecond

// State is the routing state.
type State int

const (
	StateUnknown State = iota
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Router holds the two splash flags and the latest identity.
type Router struct {
	mu        sync.Mutex
	timerDone bool
	authDone  bool
	identity  *model.Identity
	state     State
	onChange  func(State, *model.Identity)
}

// NewRouter returns a router in StateUnknown. onChange is called, outside
// the router's lock, on every state transition and on identity changes
// while authenticated.
func NewRouter(onChange func(State, *model.Identity)) *Router {
	return &Router{onChange: onChange}
}

// SplashElapsed marks the minimum splash duration as done.
func (r *Router) SplashElapsed() {
	r.mu.Lock()
	r.timerDone = true
	r.update()
}

// AuthChanged records an auth state event. nil means signed out.
func (r *Router) AuthChanged(id *model.Identity) {
	r.mu.Lock()
	r.authDone = true
	r.identity = id
	r.update()
}

// State returns the current state and identity.
func (r *Router) State() (State, *model.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.identity
}

// update recomputes the state. It is entered with r.mu held and releases it.
func (r *Router) update() {
	next := StateUnknown
	if r.timerDone && r.authDone {
		next = StateAnonymous
		if r.identity != nil {
			next = StateAuthenticated
		}
	}

	changed := next != r.state || (next == StateAuthenticated && r.identity != nil)
	r.state = next
	id := r.identity
	fn := r.onChange
	r.mu.Unlock()

	if changed && next != StateUnknown && fn != nil {
		fn(next, id)
	}
}

// Run drives r from auth and a splash timer of splashMin until ctx is done
// or auth is closed.
func (r *Router) Run(ctx context.Context, auth <-chan *model.Identity, splashMin time.Duration) {
	if splashMin < 0 {
		splashMin = 0
	}
	timer := time.NewTimer(splashMin)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			r.SplashElapsed()
		case id, ok := <-auth:
			if !ok {
				return
			}
			r.AuthChanged(id)
		}
	}
}

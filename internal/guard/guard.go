// Package guard gates access to commands that require an authenticated
// session. It reads session state and decides; it never mutates the
// session and never performs the redirect itself.
package guard

import (
	"context"
	"errors"

	"github.com/linkboard/linkboard/internal/session"
)

// sessionReader is the slice of the session manager the guard consumes.
type sessionReader interface {
	State() session.State
}

// Decision is the guard's verdict for the current navigation.
type Decision int

const (
	// Allow renders the requested content unchanged.
	Allow Decision = iota

	// Wait shows a neutral indicator: hydration has not finished, so
	// neither content nor a redirect would be correct yet.
	Wait

	// RedirectToLogin sends the user to the login entry point. The
	// attempted navigation is discarded, not replayed after login.
	RedirectToLogin
)

// ErrLoginRequired is returned instead of running a protected handler
// when the session is anonymous.
var ErrLoginRequired = errors.New("you are not logged in; run `linkboard login` first")

// ErrSessionLoading is returned when a protected handler is invoked
// before hydration has completed.
var ErrSessionLoading = errors.New("session is still loading, try again")

// Guard gates protected views against one session manager instance.
type Guard struct {
	session sessionReader
}

// New returns a Guard reading from the given session.
func New(session sessionReader) *Guard {
	return &Guard{session: session}
}

// Check maps the current session state to a decision, synchronously.
func (g *Guard) Check() Decision {
	state := g.session.State()

	switch {
	case state.Loading:
		return Wait
	case !state.Authenticated():
		return RedirectToLogin
	default:
		return Allow
	}
}

// Protect wraps a command handler so it only runs with Allow; otherwise
// the corresponding sentinel error is returned and the handler never
// executes.
func (g *Guard) Protect(handler func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		switch g.Check() {
		case Wait:
			return ErrSessionLoading
		case RedirectToLogin:
			return ErrLoginRequired
		}

		return handler(ctx)
	}
}

package academia

import (
	"context"
	"sync"
)

// DefaultSignInPath is where unauthenticated visitors are sent.
const DefaultSignInPath = "/auth"

// GateState is the outcome of evaluating a guard.
type GateState int

const (
	GateLoading GateState = iota
	GateUnauthenticated
	GateAuthenticated
	GateWrongRole
	GateAuthorized
)

func (s GateState) String() string {
	switch s {
	case GateLoading:
		return "loading"
	case GateUnauthenticated:
		return "unauthenticated"
	case GateAuthenticated:
		return "authenticated"
	case GateWrongRole:
		return "wrong_role"
	case GateAuthorized:
		return "authorized"
	default:
		return "invalid"
	}
}

// Allows reports whether protected content may render.
func (s GateState) Allows() bool {
	return s == GateAuthenticated || s == GateAuthorized
}

// Decision tells the view layer what to render.
type Decision struct {
	State GateState
	// Redirect is set for GateUnauthenticated.
	Redirect string
	// ReplaceHistory asks the view to replace the current history entry
	// so back navigation does not loop through the sign in page.
	ReplaceHistory bool
	// Message is the advisory the view should show, if any.
	Message string
}

// Guard maps a session snapshot to a decision.
type Guard interface {
	Evaluate(s Session) Decision
}

// GuardFunc adapts a function to Guard.
type GuardFunc func(Session) Decision

// Evaluate implements Guard.
func (f GuardFunc) Evaluate(s Session) Decision {
	return f(s)
}

// AuthenticatedGuard lets any signed in identity through.
type AuthenticatedGuard struct {
	SignInPath string
}

// Evaluate implements Guard.
func (g AuthenticatedGuard) Evaluate(s Session) Decision {
	if d, settled := evaluateSignedIn(s, g.SignInPath); !settled {
		return d
	}
	return Decision{State: GateAuthenticated, Message: s.LastError}
}

// RoleGuard requires the session to carry a specific role.
type RoleGuard struct {
	Required   Role
	SignInPath string
}

// Evaluate implements Guard.
func (g RoleGuard) Evaluate(s Session) Decision {
	if d, settled := evaluateSignedIn(s, g.SignInPath); !settled {
		return d
	}
	if !g.Required.IsValid() || s.Role != g.Required {
		msg := "access denied"
		if s.LastError != "" {
			msg = s.LastError
		}
		return Decision{State: GateWrongRole, Message: msg}
	}
	return Decision{State: GateAuthorized}
}

// evaluateSignedIn handles the states both guards share. settled is true
// only when an identity is present on a ready session.
func evaluateSignedIn(s Session, signIn string) (Decision, bool) {
	if signIn == "" {
		signIn = DefaultSignInPath
	}
	switch {
	case s.Status == StatusLoading:
		return Decision{State: GateLoading}, false
	case s.Status != StatusReady, s.Identity == nil:
		return Decision{
			State:          GateUnauthenticated,
			Redirect:       signIn,
			ReplaceHistory: true,
			Message:        s.LastError,
		}, false
	}
	return Decision{}, true
}

// Gate evaluates a guard against a session store and re-evaluates on every
// session change.
type Gate struct {
	store *SessionStore
	guard Guard
}

// NewGate binds guard to store.
func NewGate(store *SessionStore, guard Guard) *Gate {
	return &Gate{store: store, guard: guard}
}

// Decision evaluates the current session.
func (g *Gate) Decision() Decision {
	return g.guard.Evaluate(g.store.Session())
}

// OnDecision calls fn with the current decision and again after every
// session change.
func (g *Gate) OnDecision(fn func(Decision)) (unsubscribe func()) {
	var mu sync.Mutex
	unsubscribe = g.store.OnChange(func(s Session) {
		mu.Lock()
		defer mu.Unlock()
		fn(g.guard.Evaluate(s))
	})
	mu.Lock()
	fn(g.Decision())
	mu.Unlock()
	return unsubscribe
}

// Wait blocks until the decision is no longer GateLoading. The gate has no
// deadline of its own; callers bound the wait with ctx and get a
// GateLoading decision back when it expires.
func (g *Gate) Wait(ctx context.Context) Decision {
	s, err := g.store.Wait(ctx)
	if err != nil {
		return Decision{State: GateLoading}
	}
	return g.guard.Evaluate(s)
}

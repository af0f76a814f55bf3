package academia_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/academia"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleGuardAdmin(t *testing.T) {
	guard := academia.RoleGuard{Required: academia.RoleAdmin}

	tests := []struct {
		name     string
		session  academia.Session
		expected academia.GateState
	}{
		{
			name:     "loading without identity",
			session:  academia.Session{Status: academia.StatusLoading},
			expected: academia.GateLoading,
		},
		{
			name:     "loading with identity",
			session:  academia.Session{Status: academia.StatusLoading, Identity: identity("ana")},
			expected: academia.GateLoading,
		},
		{
			name:     "ready anonymous",
			session:  academia.Session{Status: academia.StatusReady},
			expected: academia.GateUnauthenticated,
		},
		{
			name:     "ready admin",
			session:  academia.Session{Status: academia.StatusReady, Identity: identity("ana"), Role: academia.RoleAdmin},
			expected: academia.GateAuthorized,
		},
		{
			name:     "ready apprentice",
			session:  academia.Session{Status: academia.StatusReady, Identity: identity("ana"), Role: academia.RoleApprentice},
			expected: academia.GateWrongRole,
		},
		{
			name:     "ready unknown role",
			session:  academia.Session{Status: academia.StatusReady, Identity: identity("ana"), LastError: academia.AdvisorySignIn},
			expected: academia.GateWrongRole,
		},
		{
			name:     "errored session fails closed",
			session:  academia.Session{Status: academia.StatusError, Identity: identity("ana"), Role: academia.RoleAdmin, LastError: "boom"},
			expected: academia.GateUnauthenticated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := guard.Evaluate(tt.session)
			assert.Equal(t, tt.expected, d.State)
			assert.Equal(t, tt.expected == academia.GateAuthorized, d.State.Allows())
		})
	}
}

func TestRoleGuardUnauthenticatedRedirectsWithReplace(t *testing.T) {
	d := academia.RoleGuard{Required: academia.RoleAdmin}.Evaluate(academia.Session{Status: academia.StatusReady})
	assert.Equal(t, academia.DefaultSignInPath, d.Redirect)
	assert.True(t, d.ReplaceHistory)

	d = academia.RoleGuard{Required: academia.RoleAdmin, SignInPath: "/login"}.Evaluate(academia.Session{Status: academia.StatusReady})
	assert.Equal(t, "/login", d.Redirect)
}

func TestRoleGuardWrongRoleDoesNotRedirect(t *testing.T) {
	d := academia.RoleGuard{Required: academia.RoleAdmin}.Evaluate(academia.Session{
		Status:   academia.StatusReady,
		Identity: identity("ana"),
		Role:     academia.RoleApprentice,
	})
	assert.Equal(t, academia.GateWrongRole, d.State)
	assert.Empty(t, d.Redirect)
	assert.False(t, d.ReplaceHistory)
	assert.NotEmpty(t, d.Message)
}

func TestRoleGuardWithUnknownRequiredRoleNeverAuthorizes(t *testing.T) {
	d := academia.RoleGuard{Required: academia.RoleUnknown}.Evaluate(academia.Session{
		Status:   academia.StatusReady,
		Identity: identity("ana"),
	})
	assert.Equal(t, academia.GateWrongRole, d.State)
}

func TestAuthenticatedGuard(t *testing.T) {
	guard := academia.AuthenticatedGuard{}

	tests := []struct {
		name     string
		session  academia.Session
		expected academia.GateState
	}{
		{"loading", academia.Session{Status: academia.StatusLoading}, academia.GateLoading},
		{"anonymous", academia.Session{Status: academia.StatusReady}, academia.GateUnauthenticated},
		{"apprentice", academia.Session{Status: academia.StatusReady, Identity: identity("ana"), Role: academia.RoleApprentice}, academia.GateAuthenticated},
		{"no role", academia.Session{Status: academia.StatusReady, Identity: identity("ana")}, academia.GateAuthenticated},
		{"error", academia.Session{Status: academia.StatusError, Identity: identity("ana")}, academia.GateUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, guard.Evaluate(tt.session).State)
		})
	}
}

func TestGateFollowsSessionChanges(t *testing.T) {
	source := newFakeSource(nil)
	resolver := newScriptedResolver()
	store := academia.NewSessionStore(source, resolver)
	defer store.Close()

	_, err := store.Wait(waitCtx(t))
	require.NoError(t, err)

	gate := academia.NewGate(store, academia.RoleGuard{Required: academia.RoleAdmin})

	var mu sync.Mutex
	var states []academia.GateState
	unsubscribe := gate.OnDecision(func(d academia.Decision) {
		mu.Lock()
		states = append(states, d.State)
		mu.Unlock()
	})
	defer unsubscribe()

	source.Emit(identity("root"))
	<-resolver.started
	resolver.Reply("root", academia.RoleAdmin, nil)

	d := gate.Wait(waitCtx(t))
	require.Equal(t, academia.GateAuthorized, d.State)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) == 3
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []academia.GateState{
		academia.GateUnauthenticated,
		academia.GateLoading,
		academia.GateAuthorized,
	}, states)
	mu.Unlock()
}

func TestGateWaitReturnsLoadingWhenBounded(t *testing.T) {
	source := newFakeSource(identity("ana"))
	resolver := newScriptedResolver()
	store := academia.NewSessionStore(source, resolver)
	defer store.Close()
	<-resolver.started

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	d := academia.NewGate(store, academia.AuthenticatedGuard{}).Wait(ctx)
	assert.Equal(t, academia.GateLoading, d.State)
	assert.False(t, d.State.Allows())
}

package academia

import (
	"context"
	"time"
)

// IdentitySource publishes identity changes. Subscribe fires once with the
// current state before returning and again on every change.
type IdentitySource interface {
	Subscribe(onChange func(*Identity)) (unsubscribe func())
}

// RoleResolver maps a uid to the role stored in its profile document.
type RoleResolver interface {
	ResolveRole(ctx context.Context, uid string) (Role, error)
}

// Caller identifies who issues a document operation. The zero value is an
// anonymous caller.
type Caller struct {
	UID string
}

// Anonymous reports whether no identity backs the caller.
func (c Caller) Anonymous() bool {
	return c.UID == ""
}

// CallerSource returns the caller for the current client state.
type CallerSource interface {
	Caller() Caller
}

// ProfileDocument is the users/{uid} record.
type ProfileDocument struct {
	UID       string
	Name      string
	Email     string
	Phone     string
	Role      Role
	CreatedAt time.Time
}

// ProfileReader reads profile documents subject to access rules.
type ProfileReader interface {
	ReadProfile(ctx context.Context, caller Caller, uid string) (*ProfileDocument, error)
}

// ProfileStore can also create profile documents.
type ProfileStore interface {
	ProfileReader
	CreateProfile(ctx context.Context, caller Caller, doc ProfileDocument) error
}

// Credential is what the auth backend returns on a successful sign in.
type Credential struct {
	Identity   Identity
	Token      string
	ExpiresAt  time.Time
	NewAccount bool
}

// FederatedCallback carries the parameters returned by a federated provider.
type FederatedCallback struct {
	Code  string
	State string
	Error string
}

// FederatedFlow is one pending federated sign in.
type FederatedFlow interface {
	Provider() string
	// Await blocks until the provider reports back. It returns
	// ErrPopupClosedByUser when the user abandons the flow.
	Await(ctx context.Context) (FederatedCallback, error)
}

// AuthBackend is the remote auth provider.
type AuthBackend interface {
	SignIn(ctx context.Context, email, password string) (*Credential, error)
	SignUp(ctx context.Context, email, password, displayName string) (*Credential, error)
	SignInFederated(ctx context.Context, provider string, callback FederatedCallback) (*Credential, error)
	Verify(ctx context.Context, token string) (*Identity, error)
	SignOut(ctx context.Context, token string) error
}

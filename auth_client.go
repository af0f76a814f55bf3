package academia

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// AuthClient is the client side of the auth provider. It keeps the current
// identity and its token, and tells subscribers whenever either changes.
//
// Subscribers are called synchronously and in order. They must not call
// back into the client from inside the callback.
type AuthClient struct {
	backend  AuthBackend
	profiles ProfileStore
	logger   Logger
	now      func() time.Time

	mu        sync.Mutex
	current   *Identity
	token     string
	observers map[uint64]*observer
	nextID    uint64

	emitMu sync.Mutex
}

type observer struct {
	fn     func(*Identity)
	active atomic.Bool
}

// ClientOption configures an AuthClient.
type ClientOption func(*AuthClient)

// WithClientLogger sets the logger.
func WithClientLogger(l Logger) ClientOption {
	return func(c *AuthClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClientClock overrides time.Now, for tests.
func WithClientClock(now func() time.Time) ClientOption {
	return func(c *AuthClient) {
		if now != nil {
			c.now = now
		}
	}
}

// NewAuthClient creates a signed out client.
func NewAuthClient(backend AuthBackend, profiles ProfileStore, opts ...ClientOption) *AuthClient {
	_, logger := ResolveLogger("academia.auth_client", nil, nil)
	c := &AuthClient{
		backend:   backend,
		profiles:  profiles,
		logger:    logger,
		now:       time.Now,
		observers: make(map[uint64]*observer),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Restore signs the client in from a previously issued token. On failure
// the client stays signed out.
func (c *AuthClient) Restore(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrTokenMalformed
	}
	id, err := c.backend.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	c.setState(id.Clone(), token)
	return id.Clone(), nil
}

// Subscribe registers onChange. It is called once with the current identity
// before Subscribe returns, then on every sign in and sign out. After the
// returned function is called no further callbacks start.
func (c *AuthClient) Subscribe(onChange func(*Identity)) (unsubscribe func()) {
	o := &observer{fn: onChange}
	o.active.Store(true)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.observers[id] = o
	snapshot := c.current.Clone()
	c.emitMu.Lock()
	c.mu.Unlock()

	o.fn(snapshot)
	c.emitMu.Unlock()

	return func() {
		o.active.Store(false)
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// CurrentIdentity returns a copy of the signed in identity or nil.
func (c *AuthClient) CurrentIdentity() *Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Clone()
}

// Token returns the session token of the signed in identity.
func (c *AuthClient) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Caller implements CallerSource.
func (c *AuthClient) Caller() Caller {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Caller{}
	}
	return Caller{UID: c.current.UID}
}

// SignIn authenticates with email and password.
func (c *AuthClient) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	cred, err := c.backend.SignIn(ctx, normalizeEmail(email), password)
	if err != nil {
		return nil, err
	}
	c.setState(cred.Identity.Clone(), cred.Token)
	return cred.Identity.Clone(), nil
}

// SignUp creates an account and its profile document with the default role.
// The profile is written before subscribers hear about the new identity so
// the first role lookup finds it. When the account was created but the
// profile was not, the identity is returned along with the error.
func (c *AuthClient) SignUp(ctx context.Context, email, password, displayName string) (*Identity, error) {
	cred, err := c.backend.SignUp(ctx, normalizeEmail(email), password, strings.TrimSpace(displayName))
	if err != nil {
		return nil, err
	}

	bootstrapErr := c.ensureProfile(ctx, cred.Identity)
	c.setState(cred.Identity.Clone(), cred.Token)
	if bootstrapErr != nil {
		return cred.Identity.Clone(), fmt.Errorf("create profile: %w", bootstrapErr)
	}
	return cred.Identity.Clone(), nil
}

// SignInWithFederatedProvider waits for flow to complete and exchanges its
// result for an identity. A first time sign in gets a profile document
// just like SignUp.
func (c *AuthClient) SignInWithFederatedProvider(ctx context.Context, flow FederatedFlow) (*Identity, error) {
	cb, err := flow.Await(ctx)
	if err != nil {
		return nil, err
	}

	cred, err := c.backend.SignInFederated(ctx, flow.Provider(), cb)
	if err != nil {
		return nil, err
	}

	bootstrapErr := c.ensureProfile(ctx, cred.Identity)
	c.setState(cred.Identity.Clone(), cred.Token)
	if bootstrapErr != nil {
		return cred.Identity.Clone(), fmt.Errorf("create profile: %w", bootstrapErr)
	}
	return cred.Identity.Clone(), nil
}

// SignOut clears the session. Signing out twice is a no-op. The local
// session is cleared even if the backend could not be reached.
func (c *AuthClient) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	signedIn := c.current != nil
	c.mu.Unlock()

	if !signedIn && token == "" {
		return nil
	}

	var err error
	if token != "" {
		if err = c.backend.SignOut(ctx, token); err != nil {
			c.logger.Error("backend sign out failed", "error", err)
		}
	}
	c.setState(nil, "")
	return err
}

// ensureProfile creates users/{uid} only if it does not exist yet.
func (c *AuthClient) ensureProfile(ctx context.Context, id Identity) error {
	if c.profiles == nil {
		return nil
	}
	caller := Caller{UID: id.UID}

	_, err := c.profiles.ReadProfile(ctx, caller, id.UID)
	if err == nil {
		return nil
	}
	if !IsNotFound(err) {
		return err
	}

	doc := ProfileDocument{
		UID:       id.UID,
		Name:      id.Name(),
		Email:     id.Email,
		Role:      DefaultRole,
		CreatedAt: c.now(),
	}
	err = c.profiles.CreateProfile(ctx, caller, doc)
	if err != nil && !IsAlreadyExists(err) {
		return err
	}
	return nil
}

func (c *AuthClient) setState(id *Identity, token string) {
	c.mu.Lock()
	c.current = id
	c.token = token
	snapshot := id.Clone()

	ids := make([]uint64, 0, len(c.observers))
	for oid := range c.observers {
		ids = append(ids, oid)
	}
	slices.Sort(ids)
	targets := make([]*observer, 0, len(ids))
	for _, oid := range ids {
		targets = append(targets, c.observers[oid])
	}

	c.emitMu.Lock()
	c.mu.Unlock()
	defer c.emitMu.Unlock()

	for _, o := range targets {
		if o.active.Load() {
			o.fn(snapshot.Clone())
		}
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package social

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/academia"
)

// ErrorAccessDenied is the callback error a provider sends when the user
// dismisses the consent screen.
const ErrorAccessDenied = "access_denied"

// Authenticator runs the redirect based federated sign-in.
type Authenticator struct {
	providers       map[string]Provider
	verifiers       map[string]*IDTokenVerifier
	stateManager    StateManager
	defaultRedirect string
	requireVerified bool
	logger          academia.Logger
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithProvider registers a provider.
func WithProvider(provider Provider) Option {
	return func(a *Authenticator) {
		if provider == nil {
			return
		}
		a.providers[provider.Name()] = provider
	}
}

// WithIDTokenVerifier verifies the id token returned by provider instead of
// calling its userinfo endpoint.
func WithIDTokenVerifier(provider string, v *IDTokenVerifier) Option {
	return func(a *Authenticator) {
		if v != nil {
			a.verifiers[provider] = v
		}
	}
}

// WithDefaultRedirect sets where to go after sign-in when Begin got none.
func WithDefaultRedirect(path string) Option {
	return func(a *Authenticator) {
		a.defaultRedirect = path
	}
}

// WithVerifiedEmailRequired rejects accounts whose email the provider did
// not verify.
func WithVerifiedEmailRequired(required bool) Option {
	return func(a *Authenticator) {
		a.requireVerified = required
	}
}

// WithLogger sets the logger.
func WithLogger(l academia.Logger) Option {
	return func(a *Authenticator) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAuthenticator creates an Authenticator using state to carry the PKCE
// verifier across the redirect.
func NewAuthenticator(state StateManager, opts ...Option) *Authenticator {
	_, logger := academia.ResolveLogger("academia.social", nil, nil)
	a := &Authenticator{
		providers:       make(map[string]Provider),
		verifiers:       make(map[string]*IDTokenVerifier),
		stateManager:    state,
		defaultRedirect: "/",
		requireVerified: true,
		logger:          logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Providers lists the registered provider names, sorted.
func (a *Authenticator) Providers() []string {
	names := make([]string, 0, len(a.providers))
	for name := range a.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AuthRedirect is where to send the browser to start sign-in.
type AuthRedirect struct {
	URL      string
	State    string
	Provider string
}

// Result is a completed federated sign-in.
type Result struct {
	Profile     *Profile
	RedirectURL string
}

// Begin builds the consent URL for providerName. redirectURL is restored on
// completion.
func (a *Authenticator) Begin(ctx context.Context, providerName, redirectURL string) (*AuthRedirect, error) {
	provider, ok := a.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerName)
	}
	if a.stateManager == nil {
		return nil, ErrInvalidState
	}

	codeVerifier, err := generateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	if redirectURL == "" {
		redirectURL = a.defaultRedirect
	}

	stateToken, err := a.stateManager.Encode(&OAuthState{
		Provider:     providerName,
		CodeVerifier: codeVerifier,
		RedirectURL:  redirectURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}

	return &AuthRedirect{
		URL: provider.AuthCodeURL(AuthRequest{
			State:         stateToken,
			CodeChallenge: computeCodeChallenge(codeVerifier),
			Prompt:        "select_account",
		}),
		State:    stateToken,
		Provider: providerName,
	}, nil
}

// Complete validates the callback and returns the provider profile.
func (a *Authenticator) Complete(ctx context.Context, providerName string, cb academia.FederatedCallback) (*Result, error) {
	provider, ok := a.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerName)
	}

	if cb.Error != "" {
		if cb.Error == ErrorAccessDenied {
			return nil, academia.ErrPopupClosedByUser
		}
		return nil, &ProviderError{Provider: providerName, Op: "authorize", Code: cb.Error, Err: academia.ErrInvalidCredentials}
	}

	if a.stateManager == nil || cb.State == "" || cb.Code == "" {
		return nil, ErrInvalidState
	}

	state, err := a.stateManager.Decode(cb.State)
	if err != nil {
		return nil, err
	}
	if state.Provider != providerName {
		return nil, fmt.Errorf("%w: state issued for %s", ErrInvalidState, state.Provider)
	}

	token, err := provider.Exchange(ctx, strings.TrimSpace(cb.Code), state.CodeVerifier)
	if err != nil {
		return nil, classify(err)
	}

	profile, err := a.profile(ctx, provider, token)
	if err != nil {
		return nil, err
	}

	if profile.Email == "" {
		return nil, &ProviderError{Provider: providerName, Op: "user_info", Message: "account has no email", Err: academia.ErrInvalidCredentials}
	}
	if a.requireVerified && !profile.EmailVerified {
		return nil, fmt.Errorf("%w: %w", ErrEmailNotVerified, academia.ErrInvalidCredentials)
	}

	redirect := state.RedirectURL
	if redirect == "" {
		redirect = a.defaultRedirect
	}

	return &Result{Profile: profile, RedirectURL: redirect}, nil
}

func (a *Authenticator) profile(ctx context.Context, provider Provider, token *Token) (*Profile, error) {
	if v, ok := a.verifiers[provider.Name()]; ok && token.IDToken != "" {
		return v.Verify(ctx, token.IDToken)
	}
	profile, err := provider.UserInfo(ctx, token)
	if err != nil {
		return nil, classify(err)
	}
	if profile == nil {
		return nil, &ProviderError{Provider: provider.Name(), Op: "user_info", Message: "empty profile", Err: academia.ErrInvalidCredentials}
	}
	return profile, nil
}

// classify keeps provider rejections as they are and marks everything else
// as a transport failure.
func classify(err error) error {
	var perr *ProviderError
	if errors.As(err, &perr) {
		if perr.Err == nil {
			perr.Err = academia.ErrInvalidCredentials
		}
		return perr
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", academia.ErrNetwork, err)
}

// RedirectURL returns the post sign-in path stored in stateToken, or the
// default when the state cannot be read.
func (a *Authenticator) RedirectURL(stateToken string) string {
	if a.stateManager == nil || stateToken == "" {
		return a.defaultRedirect
	}
	state, err := a.stateManager.Decode(stateToken)
	if err != nil || state.RedirectURL == "" {
		return a.defaultRedirect
	}
	return state.RedirectURL
}

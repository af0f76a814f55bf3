package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/academia"
	"github.com/goliatone/academia/identity"
	"github.com/goliatone/academia/social"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	profile *social.Profile
}

func (p *stubProvider) Name() string { return "google" }

func (p *stubProvider) AuthCodeURL(req social.AuthRequest) string {
	return "https://accounts.example.com/auth?state=" + req.State
}

func (p *stubProvider) Exchange(context.Context, string, string) (*social.Token, error) {
	return &social.Token{AccessToken: "access"}, nil
}

func (p *stubProvider) UserInfo(context.Context, *social.Token) (*social.Profile, error) {
	return p.profile, nil
}

func setupFederated(t *testing.T, profile *social.Profile) (*identity.Service, *social.Authenticator, *eventLog) {
	t.Helper()
	sm, err := social.NewEncryptedStateManager(
		[]byte("0123456789abcdef0123456789abcdef"),
		[]byte("fedcba9876543210fedcba9876543210"),
		time.Minute,
	)
	require.NoError(t, err)
	auth := social.NewAuthenticator(sm, social.WithProvider(&stubProvider{profile: profile}))
	svc, events, _ := setupService(t, testConfig{}, identity.WithSocialAuthenticator(auth))
	return svc, auth, events
}

func callback(t *testing.T, auth *social.Authenticator) academia.FederatedCallback {
	t.Helper()
	redirect, err := auth.Begin(context.Background(), "google", "/")
	require.NoError(t, err)
	return academia.FederatedCallback{Code: "code", State: redirect.State}
}

func googleProfile() *social.Profile {
	return &social.Profile{
		ProviderUserID: "g-1",
		Provider:       "google",
		Email:          "eva@example.com",
		EmailVerified:  true,
		Name:           "Eva",
		AvatarURL:      "https://example.com/eva.png",
	}
}

func TestFederatedFirstSignInCreatesAccount(t *testing.T) {
	svc, auth, events := setupFederated(t, googleProfile())
	ctx := context.Background()

	cred, err := svc.SignInFederated(ctx, "google", callback(t, auth))
	require.NoError(t, err)
	assert.True(t, cred.NewAccount)
	assert.Equal(t, "Eva", cred.Identity.DisplayName)
	assert.Equal(t, "https://example.com/eva.png", cred.Identity.PhotoURL)

	again, err := svc.SignInFederated(ctx, "google", callback(t, auth))
	require.NoError(t, err)
	assert.False(t, again.NewAccount)
	assert.Equal(t, cred.Identity.UID, again.Identity.UID)

	_, err = svc.SignIn(ctx, "eva@example.com", "")
	assert.ErrorIs(t, err, academia.ErrInvalidCredentials, "federated accounts have no password")

	assert.Contains(t, events.types(), academia.ActivityEventFederatedSignIn)
}

func TestFederatedLinksExistingEmail(t *testing.T) {
	svc, auth, _ := setupFederated(t, googleProfile())
	ctx := context.Background()

	signedUp, err := svc.SignUp(ctx, "eva@example.com", "P4ssword", "Eva Password")
	require.NoError(t, err)

	cred, err := svc.SignInFederated(ctx, "google", callback(t, auth))
	require.NoError(t, err)
	assert.False(t, cred.NewAccount)
	assert.Equal(t, signedUp.Identity.UID, cred.Identity.UID)
	assert.Equal(t, "Eva Password", cred.Identity.DisplayName)

	account, err := svc.Accounts().GetByProvider(ctx, "google", "g-1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/eva.png", account.PhotoURL)

	_, err = svc.SignIn(ctx, "eva@example.com", "P4ssword")
	assert.NoError(t, err, "password still works after linking")
}

func TestFederatedErrors(t *testing.T) {
	svc, auth, _ := setupFederated(t, googleProfile())
	ctx := context.Background()

	_, err := svc.SignInFederated(ctx, "google", academia.FederatedCallback{Error: social.ErrorAccessDenied})
	assert.ErrorIs(t, err, academia.ErrPopupClosedByUser)

	_, err = svc.SignInFederated(ctx, "github", callback(t, auth))
	assert.ErrorIs(t, err, academia.ErrProviderNotFound)

	plain, _, _ := setupService(t, testConfig{})
	_, err = plain.SignInFederated(ctx, "google", academia.FederatedCallback{})
	assert.ErrorIs(t, err, academia.ErrProviderNotFound)
}

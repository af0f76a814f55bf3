package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/goliatone/academia/social"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthCodeURL(t *testing.T) {
	p := New(Config{
		ClientID:    "client-id",
		CallbackURL: "https://example.com/auth/github/callback",
	})

	raw := p.AuthCodeURL(social.AuthRequest{
		State:         "state-token",
		CodeChallenge: "challenge",
		Prompt:        "select_account",
		ExtraScopes:   []string{"user:email", "read:org"},
	})

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "github.com", parsed.Host)

	q := parsed.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "https://example.com/auth/github/callback", q.Get("redirect_uri"))
	assert.Equal(t, "state-token", q.Get("state"))
	assert.Equal(t, "read:user user:email read:org", q.Get("scope"))
	assert.Equal(t, "challenge", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.False(t, q.Has("prompt"))
}

type fakeGitHub struct {
	t      *testing.T
	emails []accountEmail
	user   map[string]any
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/token":
		assert.NoError(f.t, r.ParseForm())
		assert.Equal(f.t, "auth-code", r.PostForm.Get("code"))
		assert.Equal(f.t, "verifier", r.PostForm.Get("code_verifier"))
		assert.Equal(f.t, "client-secret", r.PostForm.Get("client_secret"))
		assert.Equal(f.t, "application/json", r.Header.Get("Accept"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token",
			"token_type":   "bearer",
			"scope":        "read:user,user:email",
		})
	case "/user":
		assert.Equal(f.t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(f.t, apiVersion, r.Header.Get("X-GitHub-Api-Version"))
		_ = json.NewEncoder(w).Encode(f.user)
	case "/emails":
		_ = json.NewEncoder(w).Encode(f.emails)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newFake(t *testing.T, emails ...accountEmail) (*Provider, *fakeGitHub) {
	t.Helper()
	fake := &fakeGitHub{
		t:      t,
		emails: emails,
		user: map[string]any{
			"id":         42,
			"login":      "ana",
			"email":      "public@example.com",
			"avatar_url": "https://example.com/ana.png",
		},
	}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	return New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     server.URL + "/token",
		UserURL:      server.URL + "/user",
		EmailsURL:    server.URL + "/emails",
	}), fake
}

func TestExchangeAndUserInfo(t *testing.T) {
	p, _ := newFake(t,
		accountEmail{Email: "other@example.com", Verified: true},
		accountEmail{Email: "Ana@Example.com", Primary: true, Verified: true},
	)

	token, err := p.Exchange(context.Background(), "auth-code", "verifier")
	require.NoError(t, err)
	assert.Equal(t, "token", token.AccessToken)
	assert.Equal(t, []string{"read:user", "user:email"}, token.Scopes)

	profile, err := p.UserInfo(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, &social.Profile{
		ProviderUserID: "42",
		Provider:       "github",
		Email:          "ana@example.com",
		EmailVerified:  true,
		Name:           "ana",
		AvatarURL:      "https://example.com/ana.png",
	}, profile)
}

func TestUserInfoFallsBackToPublicEmail(t *testing.T) {
	p, fake := newFake(t)
	fake.user["name"] = "Ana Ruiz"

	profile, err := p.UserInfo(context.Background(), &social.Token{AccessToken: "token"})
	require.NoError(t, err)
	assert.Equal(t, "public@example.com", profile.Email)
	assert.False(t, profile.EmailVerified)
	assert.Equal(t, "Ana Ruiz", profile.Name)
}

func TestPickEmail(t *testing.T) {
	cases := []struct {
		name     string
		emails   []accountEmail
		email    string
		verified bool
	}{
		{name: "none"},
		{
			name:   "primary unverified wins",
			emails: []accountEmail{{Email: "a@x.com", Verified: true}, {Email: "b@x.com", Primary: true}},
			email:  "b@x.com",
		},
		{
			name:     "first verified without primary",
			emails:   []accountEmail{{Email: "a@x.com"}, {Email: "b@x.com", Verified: true}, {Email: "c@x.com", Verified: true}},
			email:    "b@x.com",
			verified: true,
		},
		{
			name:   "nothing verified",
			emails: []accountEmail{{Email: "a@x.com"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			email, verified := pickEmail(tc.emails)
			assert.Equal(t, tc.email, email)
			assert.Equal(t, tc.verified, verified)
		})
	}
}

func TestExchangeErrorInOKResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"bad_verification_code","error_description":"The code passed is incorrect or expired."}`))
	}))
	defer server.Close()

	_, err := New(Config{TokenURL: server.URL}).Exchange(context.Background(), "stale", "")

	var perr *social.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "github", perr.Provider)
	assert.Equal(t, "exchange", perr.Op)
	assert.Equal(t, "bad_verification_code", perr.Code)
	assert.Equal(t, "github exchange failed: The code passed is incorrect or expired. (status 200)", perr.Error())
}

func TestUserInfoRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
	}))
	defer server.Close()

	_, err := New(Config{UserURL: server.URL}).UserInfo(context.Background(), &social.Token{AccessToken: "bad"})

	var perr *social.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "user_info", perr.Op)
	assert.Equal(t, http.StatusUnauthorized, perr.Status)
	assert.Equal(t, "github user_info failed: Bad credentials (status 401)", perr.Error())
}

func TestSplitScopes(t *testing.T) {
	assert.Nil(t, splitScopes(""))
	assert.Equal(t, []string{"repo", "user"}, splitScopes("repo, user"))
}

func TestUserInfoRequiresToken(t *testing.T) {
	_, err := New(Config{}).UserInfo(context.Background(), nil)
	require.Error(t, err)
}

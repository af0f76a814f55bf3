package social

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Provider is an OAuth2 identity provider used for federated sign-in.
type Provider interface {
	// Name returns the provider identifier used in routes, e.g. "google".
	Name() string

	// AuthCodeURL returns the consent page URL for req.
	AuthCodeURL(req AuthRequest) string

	// Exchange trades an authorization code for tokens. codeVerifier is the
	// PKCE verifier matching the challenge sent with the auth request.
	Exchange(ctx context.Context, code, codeVerifier string) (*Token, error)

	// UserInfo fetches the profile for an access token.
	UserInfo(ctx context.Context, token *Token) (*Profile, error)
}

// AuthRequest is one consent redirect. The challenge is always S256.
type AuthRequest struct {
	State         string
	CodeChallenge string
	Prompt        string
	// ExtraScopes are requested on top of the provider scopes.
	ExtraScopes []string
}

// Scopes merges base and extra without duplicates, keeping order.
func (r AuthRequest) Scopes(base []string) []string {
	seen := make(map[string]bool, len(base)+len(r.ExtraScopes))
	out := make([]string, 0, len(base)+len(r.ExtraScopes))
	for _, s := range append(append([]string(nil), base...), r.ExtraScopes...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Token is an OAuth2 token response.
type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	IDToken      string
	ExpiresAt    time.Time
	Scopes       []string
}

// Profile is the normalized account returned by a provider.
type Profile struct {
	ProviderUserID string
	Provider       string
	Email          string
	EmailVerified  bool
	Name           string
	AvatarURL      string
}

// DefaultHTTPClient is used by providers configured without a client.
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// Do sends req and reads the whole body. Transport failures are returned
// as they are; non 2xx statuses are left for the caller to interpret.
func Do(client *http.Client, req *http.Request) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// Package google signs users in with a Google account through the OAuth2
// authorization code flow with PKCE.
package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/academia/social"
)

const (
	defaultAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL    = "https://oauth2.googleapis.com/token"
	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	// DefaultJWKSURL is the key set for Google id tokens.
	DefaultJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
)

// Config holds Google OAuth configuration. Empty endpoints use Google's.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	AuthURL     string
	TokenURL    string
	UserInfoURL string

	HTTPClient *http.Client
}

// DefaultScopes returns the scopes needed to read name, email and photo.
func DefaultScopes() []string {
	return []string{"openid", "email", "profile"}
}

// Provider implements social.Provider for Google.
type Provider struct {
	cfg    Config
	client *http.Client
	now    func() time.Time
}

var _ social.Provider = (*Provider)(nil)

// New creates a Google provider.
func New(cfg Config) *Provider {
	p := &Provider{cfg: cfg, client: cfg.HTTPClient, now: time.Now}
	if p.client == nil {
		p.client = social.DefaultHTTPClient()
	}
	if len(p.cfg.Scopes) == 0 {
		p.cfg.Scopes = DefaultScopes()
	}
	p.cfg.AuthURL = orDefault(p.cfg.AuthURL, defaultAuthURL)
	p.cfg.TokenURL = orDefault(p.cfg.TokenURL, defaultTokenURL)
	p.cfg.UserInfoURL = orDefault(p.cfg.UserInfoURL, defaultUserInfoURL)
	return p
}

// Name implements social.Provider.
func (p *Provider) Name() string {
	return "google"
}

// AuthCodeURL implements social.Provider.
func (p *Provider) AuthCodeURL(req social.AuthRequest) string {
	q := make(url.Values)
	q.Set("response_type", "code")
	q.Set("client_id", p.cfg.ClientID)
	q.Set("redirect_uri", p.cfg.CallbackURL)
	q.Set("scope", strings.Join(req.Scopes(p.cfg.Scopes), " "))
	q.Set("state", req.State)
	if req.CodeChallenge != "" {
		q.Set("code_challenge", req.CodeChallenge)
		q.Set("code_challenge_method", "S256")
	}
	if req.Prompt != "" {
		q.Set("prompt", req.Prompt)
	}
	return p.cfg.AuthURL + "?" + q.Encode()
}

// Exchange implements social.Provider.
func (p *Provider) Exchange(ctx context.Context, code, codeVerifier string) (*social.Token, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {p.cfg.ClientID},
		"client_secret": {p.cfg.ClientSecret},
		"redirect_uri":  {p.cfg.CallbackURL},
	}
	if codeVerifier != "" {
		form.Set("code_verifier", codeVerifier)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
		RefreshToken string `json:"refresh_token"`
		Scope        string `json:"scope"`
		IDToken      string `json:"id_token"`
	}
	if err := p.call(req, "exchange", &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, &social.ProviderError{Provider: "google", Op: "exchange", Code: "missing_access_token"}
	}

	token := &social.Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		IDToken:      tok.IDToken,
		Scopes:       strings.Fields(tok.Scope),
	}
	if tok.ExpiresIn > 0 {
		token.ExpiresAt = p.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	return token, nil
}

// UserInfo implements social.Provider.
func (p *Provider) UserInfo(ctx context.Context, token *social.Token) (*social.Profile, error) {
	if token == nil || token.AccessToken == "" {
		return nil, &social.ProviderError{Provider: "google", Op: "user_info", Code: "missing_access_token"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	var info userInfo
	if err := p.call(req, "user_info", &info); err != nil {
		return nil, err
	}
	return info.profile(), nil
}

// call sends req and decodes a 200 body into out. Anything else becomes a
// ProviderError for op.
func (p *Provider) call(req *http.Request, op string, out any) error {
	req.Header.Set("Accept", "application/json")

	status, body, err := social.Do(p.client, req)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		perr := parseError(body)
		perr.Op, perr.Status = op, status
		return perr
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &social.ProviderError{Provider: "google", Op: op, Status: status, Code: "invalid_response", Err: err}
	}
	return nil
}

// parseError reads both error shapes Google returns: the OAuth one with a
// string error and the API one with a nested object.
func parseError(body []byte) *social.ProviderError {
	perr := &social.ProviderError{Provider: "google"}

	var shape struct {
		Error            json.RawMessage `json:"error"`
		ErrorDescription string          `json:"error_description"`
	}
	if json.Unmarshal(body, &shape) == nil && len(shape.Error) > 0 {
		var code string
		if json.Unmarshal(shape.Error, &code) == nil {
			perr.Code, perr.Message = code, shape.ErrorDescription
			return perr
		}
		var api struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		}
		if json.Unmarshal(shape.Error, &api) == nil {
			perr.Code, perr.Message = api.Status, api.Message
			return perr
		}
	}

	perr.Message = strings.TrimSpace(string(body))
	return perr
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

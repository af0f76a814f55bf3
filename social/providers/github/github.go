// Package github signs users in with a GitHub account. GitHub issues no id
// token, so the profile always comes from the REST API.
package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/academia/social"
)

const (
	defaultAuthURL   = "https://github.com/login/oauth/authorize"
	defaultTokenURL  = "https://github.com/login/oauth/access_token"
	defaultUserURL   = "https://api.github.com/user"
	defaultEmailsURL = "https://api.github.com/user/emails"

	apiAccept  = "application/vnd.github+json"
	apiVersion = "2022-11-28"
)

// Config holds GitHub OAuth app settings. Empty endpoints use GitHub's.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	AuthURL   string
	TokenURL  string
	UserURL   string
	EmailsURL string

	HTTPClient *http.Client
}

// DefaultScopes reads the profile and the account emails.
func DefaultScopes() []string {
	return []string{"read:user", "user:email"}
}

// Provider implements social.Provider for GitHub.
type Provider struct {
	cfg    Config
	client *http.Client
}

var _ social.Provider = (*Provider)(nil)

// New creates a GitHub provider.
func New(cfg Config) *Provider {
	p := &Provider{cfg: cfg, client: cfg.HTTPClient}
	if p.client == nil {
		p.client = social.DefaultHTTPClient()
	}
	if len(p.cfg.Scopes) == 0 {
		p.cfg.Scopes = DefaultScopes()
	}
	for _, ep := range []struct {
		v   *string
		def string
	}{
		{&p.cfg.AuthURL, defaultAuthURL},
		{&p.cfg.TokenURL, defaultTokenURL},
		{&p.cfg.UserURL, defaultUserURL},
		{&p.cfg.EmailsURL, defaultEmailsURL},
	} {
		if *ep.v == "" {
			*ep.v = ep.def
		}
	}
	return p
}

// Name implements social.Provider.
func (p *Provider) Name() string {
	return "github"
}

// AuthCodeURL implements social.Provider. GitHub has no prompt parameter.
func (p *Provider) AuthCodeURL(req social.AuthRequest) string {
	q := make(url.Values)
	q.Set("client_id", p.cfg.ClientID)
	q.Set("redirect_uri", p.cfg.CallbackURL)
	q.Set("scope", strings.Join(req.Scopes(p.cfg.Scopes), " "))
	q.Set("state", req.State)
	q.Set("allow_signup", "true")
	if req.CodeChallenge != "" {
		q.Set("code_challenge", req.CodeChallenge)
		q.Set("code_challenge_method", "S256")
	}
	return p.cfg.AuthURL + "?" + q.Encode()
}

// Exchange implements social.Provider. A rejected code still comes back
// as 200 with an error field.
func (p *Provider) Exchange(ctx context.Context, code, codeVerifier string) (*social.Token, error) {
	form := url.Values{
		"client_id":     {p.cfg.ClientID},
		"client_secret": {p.cfg.ClientSecret},
		"code":          {code},
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
	req.Header.Set("Accept", "application/json")

	var tok struct {
		AccessToken      string `json:"access_token"`
		TokenType        string `json:"token_type"`
		Scope            string `json:"scope"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	status, err := p.call(req, "exchange", &tok)
	if err != nil {
		return nil, err
	}
	if tok.Error != "" {
		return nil, &social.ProviderError{Provider: "github", Op: "exchange", Status: status, Code: tok.Error, Message: tok.ErrorDescription}
	}
	if tok.AccessToken == "" {
		return nil, &social.ProviderError{Provider: "github", Op: "exchange", Status: status, Code: "missing_access_token"}
	}

	return &social.Token{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		Scopes:      splitScopes(tok.Scope),
	}, nil
}

// UserInfo implements social.Provider. The email comes from the emails
// endpoint since the public profile email may be empty or unverified.
func (p *Provider) UserInfo(ctx context.Context, token *social.Token) (*social.Profile, error) {
	if token == nil || token.AccessToken == "" {
		return nil, &social.ProviderError{Provider: "github", Op: "user_info", Code: "missing_access_token"}
	}

	var u user
	if err := p.api(ctx, "user_info", p.cfg.UserURL, token.AccessToken, &u); err != nil {
		return nil, err
	}
	var emails []accountEmail
	if err := p.api(ctx, "emails", p.cfg.EmailsURL, token.AccessToken, &emails); err != nil {
		return nil, err
	}

	email, verified := pickEmail(emails)
	if email == "" {
		// a public profile email is never treated as verified
		email = u.Email
	}
	return u.profile(email, verified), nil
}

func (p *Provider) api(ctx context.Context, op, endpoint, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", apiAccept)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)

	_, err = p.call(req, op, out)
	return err
}

// call sends req and decodes a 200 body into out.
func (p *Provider) call(req *http.Request, op string, out any) (int, error) {
	status, body, err := social.Do(p.client, req)
	if err != nil {
		return status, err
	}
	if status != http.StatusOK {
		return status, &social.ProviderError{Provider: "github", Op: op, Status: status, Message: apiMessage(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return status, &social.ProviderError{Provider: "github", Op: op, Status: status, Code: "invalid_response", Err: err}
	}
	return status, nil
}

// apiMessage pulls the message field out of a REST error body.
func apiMessage(body []byte) string {
	var e struct {
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.ErrorDescription != "" {
			return e.ErrorDescription
		}
	}
	return strings.TrimSpace(string(body))
}

// splitScopes reads the comma separated scope list GitHub returns.
func splitScopes(scopes string) []string {
	fields := strings.FieldsFunc(scopes, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 {
		return nil
	}
	return fields
}

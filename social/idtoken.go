package social

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/academia"
)

// GoogleIssuers are the issuers Google puts in id tokens.
var GoogleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

// IDTokenVerifier checks OpenID Connect id tokens against a key set.
type IDTokenVerifier struct {
	provider string
	keyfunc  jwt.Keyfunc
	audience string
	issuers  []string
	jwks     *keyfunc.JWKS
	now      func() time.Time
}

// VerifierOption configures an IDTokenVerifier.
type VerifierOption func(*IDTokenVerifier)

// WithIssuers sets the accepted issuers. No issuers accepts any.
func WithIssuers(issuers ...string) VerifierOption {
	return func(v *IDTokenVerifier) {
		v.issuers = issuers
	}
}

// WithVerifierClock overrides time.Now for expiry checks.
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *IDTokenVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewJWKSVerifier fetches the key set at jwksURL and keeps it refreshed in
// the background until Close.
func NewJWKSVerifier(provider, jwksURL, audience string, logger academia.Logger, opts ...VerifierOption) (*IDTokenVerifier, error) {
	_, logger = academia.ResolveLogger("academia.social", nil, logger)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			logger.Error("failed to do a background refresh of JWK set", "provider", provider, "error", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get JWK set for %s: %w", academia.ErrNetwork, provider, err)
	}
	v := newVerifier(provider, jwks.Keyfunc, audience, opts...)
	v.jwks = jwks
	return v, nil
}

// NewStaticVerifier verifies against fixed keys indexed by kid.
func NewStaticVerifier(provider string, keys map[string]keyfunc.GivenKey, audience string, opts ...VerifierOption) *IDTokenVerifier {
	return newVerifier(provider, keyfunc.NewGiven(keys).Keyfunc, audience, opts...)
}

func newVerifier(provider string, kf jwt.Keyfunc, audience string, opts ...VerifierOption) *IDTokenVerifier {
	v := &IDTokenVerifier{
		provider: provider,
		keyfunc:  kf,
		audience: audience,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

type idTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Verify parses raw and returns the profile it asserts.
func (v *IDTokenVerifier) Verify(ctx context.Context, raw string) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.audience != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(v.audience))
	}

	claims := &idTokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, v.keyfunc, parserOptions...)
	if err != nil {
		return nil, &ProviderError{Provider: v.provider, Op: "id_token", Message: err.Error(), Err: academia.ErrInvalidCredentials}
	}
	if !token.Valid {
		return nil, &ProviderError{Provider: v.provider, Op: "id_token", Message: "invalid token", Err: academia.ErrInvalidCredentials}
	}
	if len(v.issuers) > 0 && !slices.Contains(v.issuers, claims.Issuer) {
		return nil, &ProviderError{Provider: v.provider, Op: "id_token", Message: "unexpected issuer " + claims.Issuer, Err: academia.ErrInvalidCredentials}
	}
	if claims.Subject == "" {
		return nil, &ProviderError{Provider: v.provider, Op: "id_token", Message: "missing subject", Err: academia.ErrInvalidCredentials}
	}

	return &Profile{
		ProviderUserID: claims.Subject,
		Provider:       v.provider,
		Email:          strings.ToLower(strings.TrimSpace(claims.Email)),
		EmailVerified:  claims.EmailVerified,
		Name:           claims.Name,
		AvatarURL:      claims.Picture,
	}, nil
}

// Close stops the background key refresh.
func (v *IDTokenVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/academia"
	"github.com/goliatone/academia/social"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/goliatone/academia/identity"

// Service is the auth backend: email/password accounts, federated sign-in
// and session tokens.
type Service struct {
	accounts         *Accounts
	tokens           *TokenService
	social           *social.Authenticator
	sink             academia.ActivitySink
	logger           academia.Logger
	tracer           trace.Tracer
	now              func() time.Time
	passwordCost     int
	maxAttempts      int
	cooldown         string
	deterministicIDs bool
}

var _ academia.AuthBackend = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l academia.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithActivitySink records sign-in, sign-up and sign-out events.
func WithActivitySink(sink academia.ActivitySink) Option {
	return func(s *Service) {
		s.sink = academia.NormalizeActivitySink(sink)
	}
}

// WithSocialAuthenticator enables federated sign-in.
func WithSocialAuthenticator(a *social.Authenticator) Option {
	return func(s *Service) {
		s.social = a
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
			s.tokens.now = now
		}
	}
}

// NewService creates the identity service over db.
func NewService(db *bun.DB, cfg Config, opts ...Option) (*Service, error) {
	if strings.TrimSpace(cfg.GetSigningKey()) == "" {
		return nil, errors.New("identity: signing key is required")
	}
	cooldown := cfg.GetLoginCooldown()
	if cooldown == "" {
		cooldown = CoolDownPeriod
	}
	if _, err := time.ParseDuration(cooldown); err != nil {
		return nil, fmt.Errorf("identity: login cooldown: %w", err)
	}
	maxAttempts := cfg.GetMaxLoginAttempts()
	if maxAttempts == 0 {
		maxAttempts = MaxLoginAttempts
	}

	_, logger := academia.ResolveLogger("academia.identity", nil, nil)
	s := &Service{
		accounts:         NewAccounts(db),
		sink:             academia.NormalizeActivitySink(nil),
		logger:           logger,
		tracer:           otel.Tracer(tracerName),
		now:              time.Now,
		passwordCost:     cfg.GetPasswordCost(),
		maxAttempts:      maxAttempts,
		cooldown:         cooldown,
		deterministicIDs: cfg.GetDeterministicIDs(),
	}
	s.tokens = NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetTokenExpiration(), cfg.GetIssuer(), cfg.GetAudience(), logger)

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.tokens.logger = s.logger
	return s, nil
}

// Accounts exposes the repository for operator tooling.
func (s *Service) Accounts() *Accounts {
	return s.accounts
}

// SignIn implements academia.AuthBackend.
func (s *Service) SignIn(ctx context.Context, email, password string) (*academia.Credential, error) {
	ctx, span := s.tracer.Start(ctx, "identity.SignIn")
	defer span.End()

	email = normalizeEmail(email)
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return nil, s.failSignIn(ctx, span, email, "", "invalid_email", academia.ErrInvalidCredentials)
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, academia.ErrNotFound) {
			return nil, s.failSignIn(ctx, span, email, "", "unknown_email", academia.ErrInvalidCredentials)
		}
		return nil, s.fail(span, fmt.Errorf("failed to retrieve account: %w", err))
	}
	span.SetAttributes(attribute.String("account.id", account.ID.String()))

	now := s.now()
	cooling, err := throttled(account, now, s.maxAttempts, s.cooldown)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if cooling {
		return nil, s.failSignIn(ctx, span, email, account.ID.String(), "throttled", academia.ErrTooManyLoginAttempts)
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		if !errors.Is(err, academia.ErrInvalidCredentials) {
			return nil, s.fail(span, err)
		}
		if err := s.accounts.TrackAttemptedLogin(ctx, account, now); err != nil {
			return nil, s.fail(span, fmt.Errorf("failed to track login attempt: %w", err))
		}
		return nil, s.failSignIn(ctx, span, email, account.ID.String(), "password_mismatch", academia.ErrInvalidCredentials)
	}

	if err := s.accounts.TrackSuccessfulLogin(ctx, account, now); err != nil {
		s.logger.Error("failed to track successful login", "error", err)
	}

	cred, err := s.credential(account, false)
	if err != nil {
		return nil, s.fail(span, err)
	}
	s.record(ctx, academia.ActivityEventSignInSuccess, account, nil)
	return cred, nil
}

type signUpInput struct {
	Email       string
	Password    string
	DisplayName string
}

func (i signUpInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.DisplayName, validation.Required, validation.Length(1, 200)),
		validation.Field(&i.Email, validation.Required, validation.Length(3, 254), is.Email),
	)
}

// SignUp implements academia.AuthBackend.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (*academia.Credential, error) {
	ctx, span := s.tracer.Start(ctx, "identity.SignUp")
	defer span.End()

	input := signUpInput{
		Email:       normalizeEmail(email),
		Password:    password,
		DisplayName: strings.TrimSpace(displayName),
	}
	if err := input.Validate(); err != nil {
		return nil, s.fail(span, fmt.Errorf("%w: %w", academia.ErrValidation, err))
	}
	if err := ValidatePassword(input.Password); err != nil {
		return nil, s.fail(span, err)
	}

	if _, err := s.accounts.GetByEmail(ctx, input.Email); err == nil {
		return nil, s.fail(span, academia.ErrEmailInUse)
	} else if !errors.Is(err, academia.ErrNotFound) {
		return nil, s.fail(span, err)
	}

	hash, err := HashPassword(input.Password, s.passwordCost)
	if err != nil {
		return nil, s.fail(span, err)
	}

	now := s.now().UTC()
	account, err := s.accounts.Register(ctx, &Account{
		ID:           s.newID(input.Email),
		Email:        input.Email,
		DisplayName:  input.DisplayName,
		PasswordHash: hash,
		Provider:     ProviderPassword,
		LoggedInAt:   &now,
		CreatedAt:    &now,
		UpdatedAt:    &now,
	})
	if err != nil {
		return nil, s.fail(span, err)
	}

	cred, err := s.credential(account, true)
	if err != nil {
		return nil, s.fail(span, err)
	}
	s.record(ctx, academia.ActivityEventSignUp, account, nil)
	return cred, nil
}

// SignInFederated implements academia.AuthBackend. First sign-in creates the
// account; an existing password account with the same email is linked.
func (s *Service) SignInFederated(ctx context.Context, provider string, cb academia.FederatedCallback) (*academia.Credential, error) {
	ctx, span := s.tracer.Start(ctx, "identity.SignInFederated", trace.WithAttributes(attribute.String("provider", provider)))
	defer span.End()

	if s.social == nil {
		return nil, s.fail(span, fmt.Errorf("%w: %s", academia.ErrProviderNotFound, provider))
	}

	res, err := s.social.Complete(ctx, provider, cb)
	if err != nil {
		if !errors.Is(err, academia.ErrPopupClosedByUser) {
			s.record(ctx, academia.ActivityEventSignInFailure, nil, map[string]any{"provider": provider, "error": err.Error()})
		}
		return nil, s.fail(span, err)
	}
	profile := res.Profile
	now := s.now().UTC()

	newAccount := false
	account, err := s.accounts.GetByProvider(ctx, provider, profile.ProviderUserID)
	switch {
	case err == nil:
	case errors.Is(err, academia.ErrNotFound):
		account, err = s.accounts.GetByEmail(ctx, profile.Email)
		switch {
		case err == nil:
			if err := s.accounts.LinkProvider(ctx, account, provider, profile.ProviderUserID, profile.AvatarURL, now); err != nil {
				return nil, s.fail(span, err)
			}
		case errors.Is(err, academia.ErrNotFound):
			name := strings.TrimSpace(profile.Name)
			if name == "" {
				name = profile.Email
			}
			account, err = s.accounts.Register(ctx, &Account{
				ID:             s.newID(profile.Email),
				Email:          profile.Email,
				DisplayName:    name,
				PhotoURL:       profile.AvatarURL,
				Provider:       provider,
				ProviderUserID: profile.ProviderUserID,
				CreatedAt:      &now,
				UpdatedAt:      &now,
			})
			if err != nil {
				return nil, s.fail(span, err)
			}
			newAccount = true
		default:
			return nil, s.fail(span, err)
		}
	default:
		return nil, s.fail(span, err)
	}

	if err := s.accounts.TrackSuccessfulLogin(ctx, account, now); err != nil {
		s.logger.Error("failed to track successful login", "error", err)
	}

	cred, err := s.credential(account, newAccount)
	if err != nil {
		return nil, s.fail(span, err)
	}
	s.record(ctx, academia.ActivityEventFederatedSignIn, account, map[string]any{
		"provider":    provider,
		"new_account": newAccount,
	})
	return cred, nil
}

// Verify implements academia.AuthBackend.
func (s *Service) Verify(ctx context.Context, token string) (*academia.Identity, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.accounts.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, academia.ErrTokenExpired
	}

	account, err := s.accounts.GetByUID(ctx, claims.UID)
	if err != nil {
		if errors.Is(err, academia.ErrNotFound) {
			return nil, academia.ErrTokenMalformed
		}
		return nil, err
	}

	identity := account.Identity()
	return &identity, nil
}

// SignOut implements academia.AuthBackend. Invalid or expired tokens are
// already signed out.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil
	}

	uid, _ := uuid.Parse(claims.UID)
	if err := s.accounts.Revoke(ctx, claims.ID, uid, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if n, err := s.accounts.PurgeRevoked(ctx, s.now()); err != nil {
		s.logger.Warn("failed to purge revoked tokens", "error", err)
	} else if n > 0 {
		s.logger.Debug("purged revoked tokens", "count", n)
	}

	s.record(ctx, academia.ActivityEventSignOut, &Account{ID: uid, Email: claims.Email}, nil)
	return nil
}

func (s *Service) credential(account *Account, newAccount bool) (*academia.Credential, error) {
	token, claims, err := s.tokens.Generate(account)
	if err != nil {
		return nil, err
	}
	return &academia.Credential{
		Identity:   account.Identity(),
		Token:      token,
		ExpiresAt:  claims.ExpiresAt.Time,
		NewAccount: newAccount,
	}, nil
}

// newID derives the uid from the email when deterministic ids are on, so
// the same email maps to the same uid across environments.
func (s *Service) newID(email string) uuid.UUID {
	if s.deterministicIDs {
		id, err := hashid.NewUUID(email)
		if err == nil {
			return id
		}
		s.logger.Warn("failed to derive uid from email", "error", err)
	}
	return uuid.New()
}

func (s *Service) failSignIn(ctx context.Context, span trace.Span, email, uid, reason string, err error) error {
	event := academia.ActivityEvent{
		EventType:  academia.ActivityEventSignInFailure,
		UserID:     uid,
		Email:      email,
		Metadata:   map[string]any{"reason": reason},
		OccurredAt: s.now(),
	}
	if rerr := s.sink.Record(ctx, event); rerr != nil {
		s.logger.Warn("failed to record activity", "error", rerr)
	}
	span.SetAttributes(attribute.String("signin.failure", reason))
	span.SetStatus(codes.Error, reason)
	return err
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (s *Service) record(ctx context.Context, eventType academia.ActivityEventType, account *Account, meta map[string]any) {
	event := academia.ActivityEvent{
		EventType:  eventType,
		Metadata:   meta,
		OccurredAt: s.now(),
	}
	if account != nil {
		event.UserID = account.ID.String()
		event.Email = account.Email
	}
	if err := s.sink.Record(ctx, event); err != nil {
		s.logger.Warn("failed to record activity", "error", err)
	}
}

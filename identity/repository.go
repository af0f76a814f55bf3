package identity

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/academia"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Accounts stores accounts and revoked session tokens.
type Accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

// NewAccounts creates the accounts repository.
func NewAccounts(db *bun.DB) *Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})
	return &Accounts{Repository: repo, db: db}
}

// GetByEmail returns the account for email, academia.ErrNotFound if none.
func (a *Accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	record := &Account{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", normalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return record, nil
}

// GetByUID returns the account with the given id.
func (a *Accounts) GetByUID(ctx context.Context, uid string) (*Account, error) {
	id, err := uuid.Parse(uid)
	if err != nil {
		return nil, academia.ErrNotFound
	}
	record, err := a.Repository.GetByID(ctx, id.String())
	if err != nil {
		return nil, notFound(err)
	}
	return record, nil
}

// GetByProvider returns the account linked to a federated subject.
func (a *Accounts) GetByProvider(ctx context.Context, provider, subject string) (*Account, error) {
	record := &Account{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider = ?", provider).
		Where("?TableAlias.provider_user_id = ?", subject).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return record, nil
}

// Register inserts a new account. A duplicate email returns
// academia.ErrEmailInUse.
func (a *Accounts) Register(ctx context.Context, record *Account) (*Account, error) {
	record.Email = normalizeEmail(record.Email)
	created, err := a.Repository.Create(ctx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, academia.ErrEmailInUse
		}
		return nil, err
	}
	return created, nil
}

// LinkProvider attaches a federated subject to an existing account and
// fills in missing profile fields.
func (a *Accounts) LinkProvider(ctx context.Context, record *Account, provider, subject, photoURL string, at time.Time) error {
	q := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("provider = ?", provider).
		Set("provider_user_id = ?", subject).
		Set("updated_at = ?", at).
		Where("id = ?", record.ID)
	if record.PhotoURL == "" && photoURL != "" {
		q = q.Set("photo_url = ?", photoURL)
		record.PhotoURL = photoURL
	}
	if _, err := q.Exec(ctx); err != nil {
		return err
	}
	record.Provider = provider
	record.ProviderUserID = subject
	return nil
}

// TrackAttemptedLogin increments the failed attempt counter.
func (a *Accounts) TrackAttemptedLogin(ctx context.Context, record *Account, at time.Time) error {
	record.LoginAttempts++
	record.LoginAttemptAt = &at
	_, err := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("login_attempts = ?", record.LoginAttempts).
		Set("login_attempt_at = ?", at).
		Where("id = ?", record.ID).
		Exec(ctx)
	return err
}

// TrackSuccessfulLogin resets the failed attempt counter.
func (a *Accounts) TrackSuccessfulLogin(ctx context.Context, record *Account, at time.Time) error {
	record.LoginAttempts = 0
	record.LoginAttemptAt = nil
	record.LoggedInAt = &at
	_, err := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("loggedin_at = ?", at).
		Set("login_attempt_at = NULL").
		Set("login_attempts = 0").
		Where("id = ?", record.ID).
		Exec(ctx)
	return err
}

// Revoke records a signed-out token id.
func (a *Accounts) Revoke(ctx context.Context, jti string, accountID uuid.UUID, expiresAt time.Time) error {
	_, err := a.db.NewInsert().
		Model(&RevokedToken{JTI: jti, AccountID: accountID, ExpiresAt: expiresAt.UTC()}).
		On("CONFLICT (jti) DO NOTHING").
		Exec(ctx)
	return err
}

// IsRevoked reports whether jti was signed out.
func (a *Accounts) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return a.db.NewSelect().Model((*RevokedToken)(nil)).Where("jti = ?", jti).Exists(ctx)
}

// PurgeRevoked drops revocations for tokens that expired before now.
func (a *Accounts) PurgeRevoked(ctx context.Context, now time.Time) (int64, error) {
	res, err := a.db.NewDelete().Model((*RevokedToken)(nil)).Where("expires_at < ?", now.UTC()).Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func notFound(err error) error {
	if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
		return academia.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

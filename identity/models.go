package identity

import (
	"time"

	"github.com/goliatone/academia"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProviderPassword marks accounts created with email and password.
const ProviderPassword = "password"

// Account is a sign-in identity. It carries no role: roles live on the
// profile document.
type Account struct {
	bun.BaseModel  `bun:"table:accounts,alias:acc"`
	ID             uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Email          string     `bun:"email,notnull,unique" json:"email"`
	DisplayName    string     `bun:"display_name" json:"display_name,omitempty"`
	PhotoURL       string     `bun:"photo_url" json:"photo_url,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	Provider       string     `bun:"provider,notnull" json:"provider"`
	ProviderUserID string     `bun:"provider_user_id" json:"provider_user_id,omitempty"`
	LoginAttempts  int        `bun:"login_attempts,notnull" json:"login_attempts"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Identity returns the public view of the account.
func (a *Account) Identity() academia.Identity {
	return academia.Identity{
		UID:         a.ID.String(),
		DisplayName: a.DisplayName,
		Email:       a.Email,
		PhotoURL:    a.PhotoURL,
	}
}

// RevokedToken is a signed-out session token, kept until it expires.
type RevokedToken struct {
	bun.BaseModel `bun:"table:revoked_tokens,alias:rvk"`
	JTI           string    `bun:"jti,pk" json:"jti"`
	AccountID     uuid.UUID `bun:"account_id,type:uuid" json:"account_id"`
	ExpiresAt     time.Time `bun:"expires_at,notnull" json:"expires_at"`
}

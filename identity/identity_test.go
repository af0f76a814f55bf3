package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/academia"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidatePassword(t *testing.T) {
	assert.ErrorIs(t, ValidatePassword(""), academia.ErrWeakPassword)
	assert.ErrorIs(t, ValidatePassword("12345"), academia.ErrWeakPassword)
	assert.NoError(t, ValidatePassword("123456"))
	assert.NoError(t, ValidatePassword("ñandú!"))
}

func TestHashAndCompare(t *testing.T) {
	hash, err := HashPassword("P4ssword", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NoError(t, ComparePasswordAndHash("P4ssword", hash))
	assert.ErrorIs(t, ComparePasswordAndHash("p4ssword", hash), academia.ErrInvalidCredentials)
	assert.ErrorIs(t, ComparePasswordAndHash("P4ssword", ""), academia.ErrInvalidCredentials)

	_, err = HashPassword("", bcrypt.MinCost)
	assert.ErrorIs(t, err, academia.ErrWeakPassword)
}

func TestThresholdPeriod(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		at        time.Time
		threshold string
		outside   bool
	}{
		{name: "recent", at: now.Add(-time.Hour), threshold: "24h", outside: false},
		{name: "old", at: now.Add(-25 * time.Hour), threshold: "24h", outside: true},
		{name: "short window", at: now.Add(-2 * time.Minute), threshold: "1m", outside: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outside, err := IsOutsideThresholdPeriod(now, tt.at, tt.threshold)
			require.NoError(t, err)
			assert.Equal(t, tt.outside, outside)

			within, err := IsWithinThresholdPeriod(now, tt.at, tt.threshold)
			require.NoError(t, err)
			assert.NotEqual(t, outside, within)
		})
	}

	_, err := IsOutsideThresholdPeriod(now, now, "a day")
	assert.Error(t, err)
}

func TestThrottledResetsExpiredWindow(t *testing.T) {
	now := time.Now()
	old := now.Add(-48 * time.Hour)
	account := &Account{LoginAttempts: 7, LoginAttemptAt: &old}

	cooling, err := throttled(account, now, 5, "24h")
	require.NoError(t, err)
	assert.False(t, cooling)
	assert.Zero(t, account.LoginAttempts)

	recent := now.Add(-time.Minute)
	account = &Account{LoginAttempts: 5, LoginAttemptAt: &recent}
	cooling, err = throttled(account, now, 5, "24h")
	require.NoError(t, err)
	assert.True(t, cooling)
}

func TestTokenService(t *testing.T) {
	ts := NewTokenService([]byte("secret"), 1, "academia", []string{"academia-web"}, academia.NopLogger{})
	account := &Account{ID: uuid.New(), Email: "a@x.com", DisplayName: "Ana"}

	token, claims, err := ts.Generate(account)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	got, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, account.ID.String(), got.UID)
	assert.Equal(t, "Ana", got.Name)

	other := NewTokenService([]byte("other-secret"), 1, "academia", []string{"academia-web"}, academia.NopLogger{})
	_, err = other.Validate(token)
	assert.ErrorIs(t, err, academia.ErrTokenMalformed)

	wrongAudience := NewTokenService([]byte("secret"), 1, "academia", []string{"mobile"}, academia.NopLogger{})
	_, err = wrongAudience.Validate(token)
	assert.ErrorIs(t, err, academia.ErrTokenMalformed)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ts.Validate(unsigned)
	assert.ErrorIs(t, err, academia.ErrTokenMalformed)

	ts.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = ts.Validate(token)
	assert.ErrorIs(t, err, academia.ErrTokenExpired)
}

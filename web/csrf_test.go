package web

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSRFTokenRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	g := newCSRFGuard("test-signing-key-0123456789", time.Hour)
	g.now = func() time.Time { return now }

	token, err := g.generate("s0011")
	require.NoError(t, err)

	assert.NoError(t, g.validate("s0011", token))
	assert.ErrorIs(t, g.validate("s0022", token), errCSRFMismatch)
	assert.ErrorIs(t, g.validate("s0011", ""), errCSRFMissing)
	assert.ErrorIs(t, g.validate("s0011", token+"x"), errCSRFMismatch)

	other := newCSRFGuard("another-signing-key-0123456", time.Hour)
	other.now = g.now
	assert.ErrorIs(t, other.validate("s0011", token), errCSRFMismatch)

	now = now.Add(2 * time.Hour)
	assert.ErrorIs(t, g.validate("s0011", token), errCSRFExpired)
}

func TestCSRFTokensAreUnique(t *testing.T) {
	g := newCSRFGuard("test-signing-key-0123456789", time.Hour)
	a, err := g.generate("ip127.0.0.1")
	require.NoError(t, err)
	b, err := g.generate("ip127.0.0.1")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

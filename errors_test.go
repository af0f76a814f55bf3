package academia_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/goliatone/academia"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTokenExpiredError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "Sentinel token expired error",
			err:      fmt.Errorf("verify: %w", academia.ErrTokenExpired),
			expected: true,
		},
		{
			name:     "Legacy token expired error (string match)",
			err:      errors.New("some wrapper: token is expired"),
			expected: true,
		},
		{
			name:     "Different error",
			err:      academia.ErrNotFound,
			expected: false,
		},
		{
			name:     "Nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, academia.IsTokenExpiredError(tt.err))
		})
	}
}

func TestIsMalformedError(t *testing.T) {
	assert.True(t, academia.IsMalformedError(academia.ErrTokenMalformed))
	assert.True(t, academia.IsMalformedError(errors.New("missing or malformed JWT")))
	assert.False(t, academia.IsMalformedError(errors.New("invalid")))
	assert.False(t, academia.IsMalformedError(nil))
}

func TestIsNetworkError(t *testing.T) {
	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

	assert.True(t, academia.IsNetworkError(fmt.Errorf("wrap: %w", academia.ErrNetwork)))
	assert.True(t, academia.IsNetworkError(fmt.Errorf("wrap: %w", opErr)))
	assert.False(t, academia.IsNetworkError(academia.ErrPermissionDenied))
	assert.False(t, academia.IsNetworkError(nil))
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"permission denied", fmt.Errorf("read: %w", academia.ErrPermissionDenied), academia.AdvisorySignIn},
		{"credentials", academia.ErrInvalidCredentials, "incorrect email or password"},
		{"email in use", academia.ErrEmailInUse, "an account with this email already exists"},
		{"weak password", academia.ErrWeakPassword, "the password must have at least 6 characters"},
		{"popup", academia.ErrPopupClosedByUser, "sign in was cancelled"},
		{"throttled", academia.ErrTooManyLoginAttempts, "too many attempts, try again later"},
		{"not found", academia.ErrNotFound, "the requested item does not exist"},
		{"deadline", context.DeadlineExceeded, "could not reach the server, check your connection"},
		{"network", academia.ErrNetwork, "could not reach the server, check your connection"},
		{"validation detail", fmt.Errorf("%w: cannot delete your own profile", academia.ErrValidation), "validation error: cannot delete your own profile"},
		{"other", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, academia.ErrorMessage(tt.err))
		})
	}
}

func TestFederatedErrorHelpers(t *testing.T) {
	assert.True(t, academia.IsProviderNotFound(fmt.Errorf("%w: github", academia.ErrProviderNotFound)))
	assert.False(t, academia.IsProviderNotFound(academia.ErrInvalidState))
	assert.True(t, academia.IsPopupClosed(academia.ErrPopupClosedByUser))
	assert.False(t, academia.IsPopupClosed(nil))
}

func TestStructuredErrorProperties(t *testing.T) {
	tests := []struct {
		err      error
		category goerrors.Category
		code     int
		textCode string
	}{
		{academia.ErrInvalidCredentials, goerrors.CategoryAuth, http.StatusUnauthorized, academia.TextCodeInvalidCredentials},
		{academia.ErrPermissionDenied, goerrors.CategoryAuthz, http.StatusForbidden, academia.TextCodePermissionDenied},
		{academia.ErrNotFound, goerrors.CategoryNotFound, http.StatusNotFound, academia.TextCodeNotFound},
		{academia.ErrWeakPassword, goerrors.CategoryValidation, http.StatusUnprocessableEntity, academia.TextCodeWeakPassword},
		{academia.ErrTooManyLoginAttempts, goerrors.CategoryRateLimit, http.StatusTooManyRequests, academia.TextCodeTooManyLoginAttempts},
		{academia.ErrNetwork, goerrors.CategoryOperation, http.StatusServiceUnavailable, academia.TextCodeNetwork},
		{academia.ErrAlreadyExists, goerrors.CategoryConflict, http.StatusConflict, academia.TextCodeAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.textCode, func(t *testing.T) {
			richErr, ok := academia.AsRich(fmt.Errorf("wrapped: %w", tt.err))
			require.True(t, ok)
			assert.Same(t, tt.err, richErr)
			assert.Equal(t, tt.category, richErr.Category)
			assert.Equal(t, tt.code, richErr.Code)
			assert.Equal(t, tt.textCode, richErr.TextCode)
		})
	}

	_, ok := academia.AsRich(errors.New("plain"))
	assert.False(t, ok)
}

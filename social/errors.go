package social

import (
	"fmt"
	"strings"

	"github.com/goliatone/academia"
	"github.com/goliatone/go-errors"
)

const (
	TextCodeStateExpired     = "social_state_expired"
	TextCodeEmailNotVerified = "social_email_not_verified"
)

var (
	// ErrProviderNotFound is returned for providers that were not registered.
	ErrProviderNotFound = academia.ErrProviderNotFound

	// ErrInvalidState is returned when the state parameter was tampered with,
	// belongs to another provider or is missing.
	ErrInvalidState = academia.ErrInvalidState

	// ErrStateExpired is returned for state older than its TTL. Decode wraps
	// it together with ErrInvalidState.
	ErrStateExpired = errors.New("the sign in link expired, try again", errors.CategoryAuth).
			WithTextCode(TextCodeStateExpired).
			WithCode(errors.CodeUnauthorized)

	// ErrEmailNotVerified is returned when the provider did not verify the
	// account email. The authenticator wraps it with
	// academia.ErrInvalidCredentials.
	ErrEmailNotVerified = errors.New("the provider has not verified this email", errors.CategoryAuth).
				WithTextCode(TextCodeEmailNotVerified).
				WithCode(errors.CodeUnauthorized)
)

// ProviderError is a rejection reported by a provider endpoint. Err is the
// sentinel it maps to, usually academia.ErrInvalidCredentials.
type ProviderError struct {
	Provider string
	Op       string
	Status   int
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(e.Provider + " " + e.Op))
	if b.Len() == 0 {
		b.WriteString("provider")
	}
	b.WriteString(" failed")

	switch {
	case e.Message != "":
		b.WriteString(": " + e.Message)
	case e.Code != "":
		b.WriteString(": " + e.Code)
	case e.Err != nil:
		b.WriteString(": " + academia.ErrorMessage(e.Err))
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

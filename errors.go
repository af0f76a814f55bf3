package academia

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials   = "invalid_credentials"
	TextCodeEmailInUse           = "email_in_use"
	TextCodeWeakPassword         = "weak_password"
	TextCodePopupClosed          = "popup_closed_by_user"
	TextCodePermissionDenied     = "permission_denied"
	TextCodeNetwork              = "network_error"
	TextCodeNotFound             = "not_found"
	TextCodeValidation           = "validation_error"
	TextCodeTooManyLoginAttempts = "too_many_login_attempts"
	TextCodeTokenExpired         = "token_expired"
	TextCodeTokenMalformed       = "token_malformed"
	TextCodeProviderNotFound     = "provider_not_found"
	TextCodeInvalidState         = "invalid_state"
	TextCodeAlreadyExists        = "already_exists"
	TextCodeClosed               = "closed"
)

// AdvisorySignIn is shown when a profile read was rejected by access rules
const AdvisorySignIn = "sign in to access this section"

// ErrInvalidCredentials is returned when email and password do not match an account
var ErrInvalidCredentials = errors.New("incorrect email or password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrEmailInUse is returned when signing up with an email that already has an account
var ErrEmailInUse = errors.New("an account with this email already exists", errors.CategoryConflict).
	WithTextCode(TextCodeEmailInUse).
	WithCode(http.StatusUnprocessableEntity)

// ErrWeakPassword is returned when a password does not meet the minimum length
var ErrWeakPassword = errors.New("the password must have at least 6 characters", errors.CategoryValidation).
	WithTextCode(TextCodeWeakPassword).
	WithCode(http.StatusUnprocessableEntity)

// ErrPopupClosedByUser is returned when the federated flow is abandoned by the user
var ErrPopupClosedByUser = errors.New("sign in was cancelled", errors.CategoryAuth).
	WithTextCode(TextCodePopupClosed).
	WithCode(errors.CodeUnauthorized)

// ErrPermissionDenied is returned when an access rule rejects a document operation
var ErrPermissionDenied = errors.New(AdvisorySignIn, errors.CategoryAuthz).
	WithTextCode(TextCodePermissionDenied).
	WithCode(errors.CodeForbidden)

// ErrNetwork wraps transport failures talking to a remote collaborator
var ErrNetwork = errors.New("could not reach the server, check your connection", errors.CategoryOperation).
	WithTextCode(TextCodeNetwork).
	WithCode(http.StatusServiceUnavailable)

// ErrNotFound is returned when a course, mentor, booking or profile does not exist
var ErrNotFound = errors.New("the requested item does not exist", errors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(errors.CodeNotFound)

// ErrValidation is returned for missing or malformed form fields
var ErrValidation = errors.New("validation error", errors.CategoryValidation).
	WithTextCode(TextCodeValidation).
	WithCode(http.StatusUnprocessableEntity)

// ErrTooManyLoginAttempts is returned while an account is cooling down
var ErrTooManyLoginAttempts = errors.New("too many attempts, try again later", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyLoginAttempts).
	WithCode(http.StatusTooManyRequests)

// ErrTokenExpired is returned for session tokens past their expiration
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for session tokens that fail to parse or verify
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrProviderNotFound is returned for unknown federated providers
var ErrProviderNotFound = errors.New("federated provider not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidState is returned when a federated callback carries a bad state
var ErrInvalidState = errors.New("invalid federated state", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidState).
	WithCode(errors.CodeUnauthorized)

// ErrAlreadyExists is returned when creating a document that already exists
var ErrAlreadyExists = errors.New("already exists", errors.CategoryConflict).
	WithTextCode(TextCodeAlreadyExists).
	WithCode(errors.CodeConflict)

// ErrClosed is returned by operations on a disposed component
var ErrClosed = errors.New("closed", errors.CategoryInternal).
	WithTextCode(TextCodeClosed).
	WithCode(errors.CodeInternal)

// IsPermissionDenied reports whether err is an access rule rejection
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsNotFound reports whether err is a lookup miss
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists reports whether err is a duplicate create
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsProviderNotFound reports whether err names an unknown federated provider
func IsProviderNotFound(err error) bool {
	return errors.Is(err, ErrProviderNotFound)
}

// IsPopupClosed reports whether the user abandoned a federated sign in
func IsPopupClosed(err error) bool {
	return errors.Is(err, ErrPopupClosedByUser)
}

// IsNetworkError reports whether err came from the transport rather than a rule
// or a credential check
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNetwork) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTokenExpired) || strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for malformed tokens
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTokenMalformed) ||
		strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// AsRich returns the first structured error in err's chain.
func AsRich(err error) (*errors.Error, bool) {
	var richErr *errors.Error
	if !errors.As(err, &richErr) || richErr == nil {
		return nil, false
	}
	return richErr, true
}

// ErrorMessage turns err into a message that can be shown to a user.
// Validation errors keep the detail they were wrapped with.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || IsNetworkError(err) {
		return ErrNetwork.Message
	}

	richErr, ok := AsRich(err)
	if !ok {
		return err.Error()
	}

	switch richErr.Category {
	case errors.CategoryValidation, errors.CategoryBadInput:
		if detail, found := strings.CutPrefix(err.Error(), richErr.Error()); found {
			return richErr.Message + detail
		}
	}
	return richErr.Message
}

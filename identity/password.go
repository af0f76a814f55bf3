package identity

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/goliatone/academia"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted on sign-up.
const MinPasswordLength = 6

// DefaultPasswordCost is the bcrypt cost for new hashes.
const DefaultPasswordCost = 12

// ValidatePassword rejects passwords shorter than MinPasswordLength.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return academia.ErrWeakPassword
	}
	return nil
}

// HashPassword generates a bcrypt hash. Costs outside the bcrypt range use
// DefaultPasswordCost.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", academia.ErrWeakPassword
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultPasswordCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// ComparePasswordAndHash checks password against hash.
func ComparePasswordAndHash(password, hash string) error {
	if hash == "" {
		return academia.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return academia.ErrInvalidCredentials
		}
		return err
	}
	return nil
}

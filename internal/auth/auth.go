// Package auth guards the account-management endpoints with a single shared
// admin secret. The configured secret may be a bcrypt hash or plain text; a
// supplied password is accepted when it matches either form.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNotConfigured is returned when no admin secret is set.
	ErrNotConfigured = errors.New("admin password not configured")

	// ErrInvalidPassword is returned when the supplied password matches
	// neither the hash nor the plain secret.
	ErrInvalidPassword = errors.New("invalid admin password")
)

// Admin verifies passwords against the configured secret.
type Admin struct {
	secret string
}

// NewAdmin returns an Admin for secret (surrounding whitespace ignored).
func NewAdmin(secret string) *Admin {
	return &Admin{secret: strings.TrimSpace(secret)}
}

// Configured reports whether a secret is set.
func (a *Admin) Configured() bool { return a != nil && a.secret != "" }

// Check returns nil when password is accepted.
func (a *Admin) Check(password string) error {
	if !a.Configured() {
		return ErrNotConfigured
	}
	if password == "" {
		return ErrInvalidPassword
	}
	if looksLikeBcrypt(a.secret) && CheckPassword(password, a.secret) {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(a.secret)) == 1 {
		return nil
	}
	return ErrInvalidPassword
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a password with a hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func looksLikeBcrypt(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") ||
		strings.HasPrefix(s, "$2b$") ||
		strings.HasPrefix(s, "$2y$"))
}

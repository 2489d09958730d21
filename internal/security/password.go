package security

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost defines the bcrypt work factor.
const bcryptCost = 12

// Password length limits. bcrypt ignores input beyond 72 bytes.
const (
	MinPasswordLength = 8
	maxPasswordBytes  = 72
)

// ErrWeakPassword is returned for passwords outside the accepted length range.
var ErrWeakPassword = errors.New("password must be between 8 and 72 bytes")

// ValidatePassword checks the length rules applied at registration.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength || len(password) > maxPasswordBytes {
		return ErrWeakPassword
	}
	return nil
}

// HashPassword hashes a plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password.
// An empty hash never matches, so externally-authenticated accounts cannot log in with a password.
func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

package app

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// CredentialMatcher compares a stored quiz password with the supplied one.
// It is the only place the gate looks at passwords.
type CredentialMatcher func(stored, supplied string) bool

// DefaultCredentialMatcher accepts bcrypt hashes and, for contestants imported
// without hashing, falls back to a constant-time exact comparison.
func DefaultCredentialMatcher(stored, supplied string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(supplied)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}

// HashPassword produces the bcrypt form understood by DefaultCredentialMatcher.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// NormalizeUSN trims and upper-cases a USN, the contestant lookup key.
func NormalizeUSN(usn string) string {
	return strings.ToUpper(strings.TrimSpace(usn))
}

// Package hasher derives and verifies salted password hashes. scrypt keeps
// brute-forcing expensive; comparisons are constant-time so verification
// never leaks how close a guess was.
package hasher

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const (
	saltLength = 16
	keyLength  = 64

	// scrypt cost parameters. Changing these invalidates stored hashes, so
	// treat them as part of the storage format.
	scryptN = 1 << 14
	scryptR = 8
	scryptP = 1
)

// GenerateSalt returns a fresh cryptographically random salt, hex-encoded.
// A new salt is generated per account and never reused.
func GenerateSalt() (string, error) {
	buf := make([]byte, saltLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashPassword derives a hex-encoded scrypt hash of the password under the
// given salt. Deterministic for identical inputs.
func HashPassword(password, salt string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	key, err := scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return "", fmt.Errorf("could not hash password: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// ComparePasswords recomputes the hash for the candidate password and
// compares it against the stored one in constant time. Any failure,
// malformed stored hash included, is reported as a plain mismatch so
// callers cannot be used as an oracle.
func ComparePasswords(password, salt, expectedHash string) bool {
	expected, err := hex.DecodeString(expectedHash)
	if err != nil || len(expected) != keyLength {
		return false
	}
	key, err := scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(key, expected) == 1
}

// Package cryptox holds the credential primitives: PBKDF2 password hashing
// for application logins and Fernet encryption for third-party secrets that
// must be recoverable.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	PBKDF2Iterations = 100_000
	SaltSize         = 32
	KeySize          = 32
)

// HashPassword derives a PBKDF2-SHA256 hash with a fresh random salt.
// Both values are URL-safe base64, the form stored in users.json.
func HashPassword(password string) (hash, salt string, err error) {
	raw := make([]byte, SaltSize)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("salt: %w", err)
	}
	return base64.URLEncoding.EncodeToString(derive(password, raw)), base64.URLEncoding.EncodeToString(raw), nil
}

// VerifyPassword checks password against a stored hash and salt in constant
// time. Malformed stored values never match.
func VerifyPassword(password, hash, salt string) bool {
	rawSalt, err := base64.URLEncoding.DecodeString(salt)
	if err != nil {
		return false
	}
	expected, err := base64.URLEncoding.DecodeString(hash)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(derive(password, rawSalt), expected) == 1
}

func derive(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, KeySize, sha256.New)
}

// RandomToken returns n random bytes as unpadded URL-safe base64.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

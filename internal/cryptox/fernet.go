package cryptox

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/fernet/fernet-go"
)

const fernetKeySize = 32

var (
	ErrInvalidKey   = errors.New("invalid fernet key")
	ErrInvalidToken = errors.New("invalid fernet token")
)

// Fernet seals secrets as Fernet tokens, so values written by earlier
// tooling stay readable.
type Fernet struct {
	key *fernet.Key
	now func() time.Time
}

// GenerateKey returns a new key in its URL-safe base64 text form.
func GenerateKey() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", err
	}
	return k.Encode(), nil
}

// ParseKey decodes a URL-safe base64 key. Any other length than 32 bytes is
// rejected.
func ParseKey(key string) (*Fernet, error) {
	raw, err := base64.URLEncoding.DecodeString(strings.TrimSpace(key))
	if err != nil || len(raw) != fernetKeySize {
		return nil, ErrInvalidKey
	}
	var k fernet.Key
	copy(k[:], raw)
	return &Fernet{key: &k, now: time.Now}, nil
}

// Encrypt returns a base64 Fernet token for plaintext.
func (f *Fernet) Encrypt(plaintext []byte) (string, error) {
	tok, err := fernet.EncryptAndSignAtTime(plaintext, f.key, f.now())
	if err != nil {
		return "", err
	}
	return string(tok), nil
}

// Decrypt verifies and opens a token. Token age is not enforced.
func (f *Fernet) Decrypt(token string) ([]byte, error) {
	pt := fernet.VerifyAndDecrypt([]byte(token), 0, []*fernet.Key{f.key})
	if pt == nil {
		return nil, ErrInvalidToken
	}
	return pt, nil
}

// EncryptString produces the stored form of a secret: the Fernet token
// base64-encoded once more, as users.json has always held it.
func (f *Fernet) EncryptString(plaintext string) (string, error) {
	tok, err := f.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString([]byte(tok)), nil
}

// DecryptString reverses EncryptString.
func (f *Fernet) DecryptString(stored string) (string, error) {
	tok, err := base64.URLEncoding.DecodeString(stored)
	if err != nil {
		return "", ErrInvalidToken
	}
	pt, err := f.Decrypt(string(tok))
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

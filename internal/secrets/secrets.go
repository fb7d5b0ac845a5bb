// Package secrets seals credential values kept in the profiles file. A sealed
// value is a fernet token prefixed with "fernet:"; anything else is taken as
// plaintext.
package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fernet/fernet-go"
)

// Prefix marks a sealed value.
const Prefix = "fernet:"

// ErrNoKey is returned by Open for a sealed value when no key is configured.
var ErrNoKey = errors.New("value is encrypted but no profiles key is configured")

// GenerateKey returns a new encoded fernet key.
func GenerateKey() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return k.Encode(), nil
}

// ParseKey decodes a key produced by GenerateKey.
func ParseKey(s string) (*fernet.Key, error) {
	key, err := fernet.DecodeKey(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode fernet key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext and returns it with Prefix.
func Seal(plaintext string, key *fernet.Key) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(plaintext), key)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	return Prefix + string(tok), nil
}

// Open returns the plaintext of value. Values without Prefix are returned
// unchanged.
func Open(value string, key *fernet.Key) (string, error) {
	tok, ok := strings.CutPrefix(value, Prefix)
	if !ok {
		return value, nil
	}
	if key == nil {
		return "", ErrNoKey
	}
	msg := fernet.VerifyAndDecrypt([]byte(tok), 0, []*fernet.Key{key})
	if msg == nil {
		return "", errors.New("decrypt: invalid token or wrong key")
	}
	return string(msg), nil
}

// Package encryption seals short secrets (extractor credentials) for storage next to
// otherwise plain JSON download options.
package encryption

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// SealedPrefix marks a string produced by Manager.Seal.
const SealedPrefix = "sealed:v1:"

// ErrNotSealed is returned by Open for values without SealedPrefix.
var ErrNotSealed = errors.New("encryption: value is not sealed")

// Manager handles encryption and decryption operations.
type Manager struct {
	cipher *Cipher
}

// NewManager creates a manager for the given cipher type and 32-byte key.
func NewManager(t CipherType, key []byte) (*Manager, error) {
	c, err := NewCipher(t, key)
	if err != nil {
		return nil, err
	}
	return &Manager{cipher: c}, nil
}

// CipherType returns the cipher type used by this manager.
func (m *Manager) CipherType() CipherType {
	return m.cipher.Type()
}

// Seal encrypts plaintext into a printable, prefixed string.
func (m *Manager) Seal(plaintext string) (string, error) {
	ct, err := m.cipher.Encrypt([]byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("seal: %w", err)
	}
	return SealedPrefix + base64.RawURLEncoding.EncodeToString(ct), nil
}

// Open decrypts a value produced by Seal.
func (m *Manager) Open(sealed string) (string, error) {
	if !IsSealed(sealed) {
		return "", ErrNotSealed
	}

	ct, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(sealed, SealedPrefix))
	if err != nil {
		return "", fmt.Errorf("open: decode: %w", err)
	}

	pt, err := m.cipher.Decrypt(ct)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	return string(pt), nil
}

// IsSealed reports whether s carries the sealed prefix.
func IsSealed(s string) bool {
	return strings.HasPrefix(s, SealedPrefix)
}

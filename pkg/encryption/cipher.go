package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// CipherType represents the encryption algorithm used.
type CipherType string

const (
	// CipherChaCha20Poly1305 uses ChaCha20-Poly1305 (IETF RFC 8439). Default.
	CipherChaCha20Poly1305 CipherType = "chacha20-poly1305"

	// CipherXChaCha20Poly1305 uses the extended nonce variant.
	CipherXChaCha20Poly1305 CipherType = "xchacha20-poly1305"

	// CipherAES256GCM uses AES-256-GCM.
	CipherAES256GCM CipherType = "aes-256-gcm"
)

// KeySize is the key length every supported cipher expects.
const KeySize = chacha20poly1305.KeySize

// Cipher wraps an AEAD with the type it was built from.
type Cipher struct {
	aead       cipher.AEAD
	cipherType CipherType
}

// NewCipher builds an AEAD of the given type. key must be KeySize bytes.
func NewCipher(t CipherType, key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(key), KeySize)
	}

	var (
		aead cipher.AEAD
		err  error
	)
	switch t {
	case CipherChaCha20Poly1305:
		aead, err = chacha20poly1305.New(key)
	case CipherXChaCha20Poly1305:
		aead, err = chacha20poly1305.NewX(key)
	case CipherAES256GCM:
		var block cipher.Block
		block, err = aes.NewCipher(key)
		if err == nil {
			aead, err = cipher.NewGCM(block)
		}
	default:
		return nil, fmt.Errorf("unsupported cipher %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s cipher: %w", t, err)
	}

	return &Cipher{aead: aead, cipherType: t}, nil
}

// Encrypt returns [nonce][ciphertext+tag].
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	n := c.aead.NonceSize()
	if len(ciphertext) < n {
		return nil, fmt.Errorf("ciphertext too short: got %d, need at least %d", len(ciphertext), n)
	}

	plaintext, err := c.aead.Open(nil, ciphertext[:n], ciphertext[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

// Type returns the cipher type.
func (c *Cipher) Type() CipherType {
	return c.cipherType
}

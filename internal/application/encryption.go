package application

import (
	"encoding/hex"
	"fmt"
	"strings"

	"thirdcoast.systems/fetchd/internal/config"
	"thirdcoast.systems/fetchd/pkg/encryption"
)

// InitEncryptionManager builds the manager that seals credentials stored in download options.
// The key is a 64-character hex string (32 bytes). The cipher is "chacha20-poly1305" (default),
// "xchacha20-poly1305", or "aes-256-gcm".
func InitEncryptionManager(conf config.Config) (*encryption.Manager, error) {
	keyHex := strings.TrimSpace(conf.EncryptionKey)
	if keyHex == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is not set")
	}

	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid ENCRYPTION_KEY format (must be 64-char hex string): %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes (64 hex chars), got %d bytes", len(key))
	}

	cipherType := encryption.CipherType(strings.ToLower(strings.TrimSpace(conf.EncryptionCipher)))
	if cipherType == "" {
		cipherType = encryption.CipherChaCha20Poly1305
	}

	manager, err := encryption.NewManager(cipherType, key)
	if err != nil {
		return nil, fmt.Errorf("create encryption manager: %w", err)
	}
	return manager, nil
}

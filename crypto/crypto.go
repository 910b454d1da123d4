// Package crypto seals OAuth tokens for at-rest storage. The db package
// seals the access and refresh tokens before writing the oauth_tokens row
// and opens them on read.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// TokenCipher is an AES-256-GCM cipher over token strings. Sealed output is
// base64 of nonce || ciphertext || tag, so it fits a text column.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher builds a cipher from a base64-encoded 32-byte key,
// e.g. `openssl rand -base64 32`.
func NewTokenCipher(base64Key string) (*TokenCipher, error) {
	if base64Key == "" {
		return nil, errors.New("encryption key is empty")
	}
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must decode to 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &TokenCipher{aead: aead}, nil
}

// Seal encrypts a token. An empty token stays empty, so absent refresh
// tokens round-trip without a ciphertext.
func (c *TokenCipher) Seal(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(token), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. GCM verifies integrity, so a
// value sealed under a different key or altered in storage fails here.
func (c *TokenCipher) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("sealed token is not valid base64: %w", err)
	}
	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("sealed token too short: %d bytes", len(raw))
	}
	token, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		// Deliberately generic: don't distinguish wrong key from tampering.
		return "", errors.New("token decryption failed")
	}
	return string(token), nil
}

// Package secure seals short secrets (phone numbers) for storage at rest.
package secure

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// sealedPrefix marks a value produced by Seal
const sealedPrefix = "x1:"

var (
	ErrKeySize   = errors.New("secure: key must be 32 bytes")
	ErrMalformed = errors.New("secure: malformed sealed value")
)

// Cipher seals and opens strings with XChaCha20-Poly1305
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a Cipher from a raw 32 byte key
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrKeySize
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("secure: init aead: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// NewCipherFromBase64 creates a Cipher from a base64 encoded key
func NewCipherFromBase64(encoded string) (*Cipher, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("secure: decode key: %w", err)
	}
	return NewCipher(key)
}

// Seal encrypts plain. Empty input stays empty.
func (c *Cipher) Seal(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plain)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secure: nonce: %w", err)
	}
	out := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal. Values without the sealed prefix are
// returned as they are, so rows written before encryption was enabled still read.
func (c *Cipher) Open(sealed string) (string, error) {
	if !strings.HasPrefix(sealed, sealedPrefix) {
		return sealed, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil {
		return "", ErrMalformed
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns+c.aead.Overhead() {
		return "", ErrMalformed
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("secure: open: %w", err)
	}
	return string(plain), nil
}

// Package crypto encrypts message text at rest with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// ErrDecrypt is returned when a ciphertext/iv pair cannot be decrypted:
// wrong key, corrupt record, or truncated input.
var ErrDecrypt = errors.New("decryption failed")

// Cipher performs symmetric encryption with a process-wide static key.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a Cipher from a 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != 32 {
		return nil, errors.New("cipher key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt encrypts plaintext with a fresh random IV. Both return values
// are base64; the IV must be stored alongside the ciphertext and is
// never reused.
func (c *Cipher) Encrypt(plaintext string) (ciphertext, iv string, err error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", "", err
	}
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed),
		base64.StdEncoding.EncodeToString(nonce), nil
}

// Decrypt is the exact inverse of Encrypt. Any failure, including
// undecodable input, reports ErrDecrypt.
func (c *Cipher) Decrypt(ciphertext, iv string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecrypt
	}
	nonce, err := base64.StdEncoding.DecodeString(iv)
	if err != nil || len(nonce) != c.aead.NonceSize() {
		return "", ErrDecrypt
	}
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

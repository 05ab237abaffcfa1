// Package crypto seals saved server passwords with AES-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Cipher encrypts with a fixed key. Each ciphertext carries its own random
// nonce as prefix.
type Cipher struct {
	gcm cipher.AEAD
}

// NewCipher builds a Cipher from a hex encoded 16, 24 or 32 byte key.
func NewCipher(keyHex string) (*Cipher, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("invalid key: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{gcm: gcm}, nil
}

func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := c.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrCiphertextTooShort
	}
	nonce, ct := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return c.gcm.Open(nil, nonce, ct, nil)
}

// SealString encrypts s for storage in a text column. The empty string stays
// empty so an unset password is not stored as ciphertext.
func (c *Cipher) SealString(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	ct, err := c.Encrypt([]byte(s))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}

// OpenString reverses SealString.
func (c *Cipher) OpenString(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	ct, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("invalid ciphertext encoding: %w", err)
	}
	pt, err := c.Decrypt(ct)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

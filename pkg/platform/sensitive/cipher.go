// Package sensitive encrypts personal fields (emails, free text, actor
// identities) at the persistence boundary. Domain types stay plaintext.
package sensitive

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const prefix = "enc:v1:"

var ErrMalformed = errors.New("malformed ciphertext")

// Cipher encrypts and decrypts string fields.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// XChaCha encrypts with XChaCha20-Poly1305 using a random 24 byte nonce.
// Ciphertexts are "enc:v1:" followed by base64(nonce || sealed).
type XChaCha struct {
	aead cipher.AEAD
}

// NewXChaCha derives a 32 byte key from secret with SHA-256.
func NewXChaCha(secret string) (*XChaCha, error) {
	if secret == "" {
		return nil, errors.New("encryption secret is required")
	}
	key := sha256.Sum256([]byte(secret))
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("init xchacha20-poly1305: %w", err)
	}
	return &XChaCha{aead: aead}, nil
}

// Encrypt leaves the empty string untouched so optional fields stay absent.
func (c *XChaCha) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

func (c *XChaCha) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	encoded, ok := strings.CutPrefix(ciphertext, prefix)
	if !ok {
		return "", ErrMalformed
	}
	raw, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil || len(raw) < c.aead.NonceSize() {
		return "", ErrMalformed
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt field: %w", err)
	}
	return string(plain), nil
}

// Plaintext is a pass-through Cipher for local development.
type Plaintext struct{}

func (Plaintext) Encrypt(s string) (string, error) { return s, nil }
func (Plaintext) Decrypt(s string) (string, error) { return s, nil }

// EncryptAll encrypts every element of values.
func EncryptAll(c Cipher, values []string) ([]string, error) {
	return mapAll(values, c.Encrypt)
}

// DecryptAll decrypts every element of values.
func DecryptAll(c Cipher, values []string) ([]string, error) {
	return mapAll(values, c.Decrypt)
}

func mapAll(values []string, fn func(string) (string, error)) ([]string, error) {
	if values == nil {
		return nil, nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		converted, err := fn(v)
		if err != nil {
			return nil, err
		}
		out[i] = converted
	}
	return out, nil
}

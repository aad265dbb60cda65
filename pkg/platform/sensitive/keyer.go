package sensitive

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Keyer derives a deterministic lookup key for an encrypted field so equality
// queries work without decrypting every document.
type Keyer interface {
	Key(value string) string
}

// HMACKeyer keys values with HMAC-SHA256. Values are lowercased first, so
// lookups by email are case-insensitive.
type HMACKeyer struct {
	secret []byte
}

func NewHMACKeyer(secret string) HMACKeyer {
	return HMACKeyer{secret: []byte(secret)}
}

func (k HMACKeyer) Key(value string) string {
	mac := hmac.New(sha256.New, k.secret)
	mac.Write([]byte(strings.ToLower(strings.TrimSpace(value))))
	return hex.EncodeToString(mac.Sum(nil))
}

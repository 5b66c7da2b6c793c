package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Signer issues and validates expiring signatures for file downloads so the
// file endpoint can be fetched without an API key.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl}
}

// Sign returns the signature and unix expiry for a file ID.
func (s *Signer) Sign(fileID string, now time.Time) (signature string, expires int64) {
	expires = now.Add(s.ttl).Unix()
	return s.compute(fileID, expires), expires
}

// Validate checks the signature in constant time and rejects expired links.
func (s *Signer) Validate(fileID, signature string, expires int64, now time.Time) bool {
	if now.Unix() > expires {
		return false
	}
	expected := s.compute(fileID, expires)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *Signer) compute(fileID string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%d", fileID, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

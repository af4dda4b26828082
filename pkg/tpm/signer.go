package tpm

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/systmms/tpmops/internal/secure"
)

// Header names used by HMAC authentication.
const (
	HeaderPublicKey        = "X-Public-Key"
	HeaderRequestHash      = "X-Request-Hash"
	HeaderRequestTimestamp = "X-Request-Timestamp"
)

// Signer builds the per-request authentication headers. The private key is
// sealed for the signer's lifetime and only opened while hashing.
type Signer struct {
	publicKey  string
	privateKey *secure.Secret
	now        func() time.Time
}

// NewSigner returns a signer for cfg. When cfg is not in HMAC mode the
// signer only emits the content type.
func NewSigner(cfg Config) *Signer {
	s := &Signer{now: time.Now}
	if cfg.AuthMode() == AuthHMAC {
		s.publicKey = cfg.HMAC.PublicKey
		s.privateKey = secure.NewSecret(cfg.HMAC.PrivateKey)
	}
	return s
}

// HMAC reports whether the signer adds HMAC headers.
func (s *Signer) HMAC() bool {
	return !s.privateKey.Empty()
}

// Headers returns the headers for a request on path with the given
// serialized body (nil for none).
func (s *Signer) Headers(path string, body []byte) (http.Header, error) {
	h := http.Header{}
	h.Set("Content-Type", ContentType)

	if !s.HMAC() {
		return h, nil
	}

	timestamp := strconv.FormatInt(s.now().Unix(), 10)
	var hash string
	err := s.privateKey.Use(func(key []byte) error {
		hash = Sign(key, path, timestamp, body)
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.Set(HeaderPublicKey, s.publicKey)
	h.Set(HeaderRequestHash, hash)
	h.Set(HeaderRequestTimestamp, timestamp)
	return h, nil
}

// Sign returns hex(HMAC-SHA256(key, path + timestamp + body)).
func Sign(key []byte, path, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(path))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

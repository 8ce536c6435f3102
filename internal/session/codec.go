package session

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrInvalidPayload covers every decode failure: absent, truncated,
// tampered or sealed under a different key. Callers treat all of these
// identically to "no session".
var ErrInvalidPayload = errors.New("session payload invalid")

// Codec seals JSON payloads into opaque, tamper-evident blobs with
// XChaCha20-Poly1305. The random 24-byte nonce is prepended to the
// ciphertext and the whole blob is URL-safe base64.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec derives the sealing key from the configured secret. The secret
// is stretched through SHA-256 so any >=32-character string works.
func NewCodec(secret string) (*Codec, error) {
	if len(secret) < 32 {
		return nil, errors.New("session secret must be at least 32 characters")
	}

	key := sha256.Sum256([]byte(secret))
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, err
	}
	return &Codec{aead: aead}, nil
}

// Seal encrypts v into a cookie-safe string.
func (c *Codec) Seal(v interface{}) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a sealed string into v. Any failure is ErrInvalidPayload.
func (c *Codec) Open(blob string, v interface{}) error {
	raw, err := base64.RawURLEncoding.DecodeString(blob)
	if err != nil {
		return ErrInvalidPayload
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+c.aead.Overhead() {
		return ErrInvalidPayload
	}

	plaintext, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return ErrInvalidPayload
	}

	if err := json.Unmarshal(plaintext, v); err != nil {
		return ErrInvalidPayload
	}
	return nil
}

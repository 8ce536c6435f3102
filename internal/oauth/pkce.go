package oauth

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/oauth2"
)

const (
	// 32 bytes of entropy before encoding, per RFC 7636 recommendations.
	verifierEntropyBytes = 32
	stateEntropyBytes    = 24
)

// GenerateCodeVerifier returns a cryptographically random, URL-safe PKCE
// code verifier.
func GenerateCodeVerifier() (string, error) {
	return randomURLSafe(verifierEntropyBytes)
}

// GenerateCodeChallenge applies the S256 transform to the verifier. The
// plain transform is not supported.
func GenerateCodeChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// GenerateState returns a random CSRF-binding token, cryptographically
// unrelated to the code verifier.
func GenerateState() (string, error) {
	return randomURLSafe(stateEntropyBytes)
}

func randomURLSafe(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

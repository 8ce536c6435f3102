package session

import (
	"time"

	"github.com/assignwork/assignwork/internal/user"
)

// Session is the client-held session artifact. There is no server-side
// session table: the sealed cookie IS the session, and a successful decode
// is authoritative until expiry or explicit clear.
type Session struct {
	User         user.User `json:"user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    int64     `json:"expires_at"`
	CreatedAt    int64     `json:"created_at,omitempty"`
}

// Valid reports whether the session exists and its tokens have not passed
// their absolute expiry.
func (s *Session) Valid() bool {
	return s != nil && s.ExpiresAt > 0 && time.Now().UnixMilli() < s.ExpiresAt
}

// PendingAuth holds the state and PKCE verifier between the login redirect
// and the provider callback. Short-lived by construction.
type PendingAuth struct {
	State        string `json:"state"`
	CodeVerifier string `json:"code_verifier"`
	CreatedAt    int64  `json:"created_at"`
}

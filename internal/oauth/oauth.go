package oauth

import (
	"net/http"

	"github.com/assignwork/assignwork/internal"
)

// Tokens is the usable subset of a provider token response. ExpiresAt is
// absolute epoch milliseconds, never the relative expires_in.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Identity is the externally authenticated identity as reported by the
// provider userinfo endpoint. Provider-only attributes (role, department,
// level and the like) are deliberately not represented here: whatever this
// struct cannot hold cannot leak into the local store.
type Identity struct {
	ExternalID string `json:"sub"`
	Email      string `json:"email"`
	Username   string `json:"username"`
}

// AuthRequest is the output of InitiateAuth. The caller must persist State
// and CodeVerifier until the callback arrives.
type AuthRequest struct {
	AuthorizationURL string
	State            string
	CodeVerifier     string
}

// CallbackParams carries everything needed to complete the code exchange.
type CallbackParams struct {
	Code          string
	State         string
	ExpectedState string
	CodeVerifier  string
}

// CallbackResult is returned on a fully successful callback.
type CallbackResult struct {
	Tokens   *Tokens
	Identity *Identity
}

var (
	// ErrInvalidState means the callback state did not match the one issued
	// at login. Treated as a potential CSRF attack: no network call is made.
	ErrInvalidState = &internal.AppError{
		Code:        internal.ErrCodeInvalidState,
		Description: "State parameter mismatch, possible CSRF attempt",
		StatusCode:  http.StatusForbidden,
	}

	ErrTokenExchangeFailed = &internal.AppError{
		Code:        internal.ErrCodeTokenExchangeFailed,
		Description: "Could not exchange authorization code, please try again later",
		StatusCode:  http.StatusBadGateway,
	}

	ErrUserInfoFetchFailed = &internal.AppError{
		Code:        internal.ErrCodeUserInfoFetchFailed,
		Description: "Could not fetch user information, please try again later",
		StatusCode:  http.StatusBadGateway,
	}
)

package auth

import "github.com/assignwork/assignwork/internal/user"

// LoginResponse is returned when the caller asks for the authorization
// URL instead of following the redirect (mode=json).
type LoginResponse struct {
	AuthorizationURL string `json:"authorization_url"`
}

// CallbackResponse is the successful login payload.
type CallbackResponse struct {
	User      *user.User `json:"user"`
	ExpiresAt int64      `json:"expires_at"`
}

// LogoutResponse reports whether the upstream provider acknowledged the
// logout. The local session is gone either way.
type LogoutResponse struct {
	Success        bool `json:"success"`
	ProviderLogout bool `json:"provider_logout"`
}

// RefreshResponse is returned after an explicit token refresh.
type RefreshResponse struct {
	ExpiresAt int64 `json:"expires_at"`
}

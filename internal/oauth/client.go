package oauth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/assignwork/assignwork/internal"
)

// DefaultExpiryBuffer is subtracted from the token expiry when deciding
// whether to refresh, so refresh happens before an in-flight request can
// race against actual expiry.
const DefaultExpiryBuffer = 60 * time.Second

const defaultHTTPTimeout = 10 * time.Second

// Client implements the authorization-code grant with PKCE (S256 only)
// against one fixed external authorization server.
type Client struct {
	cfg          internal.SSOConfig
	oauth2Config *oauth2.Config
	httpClient   *http.Client
	logger       *slog.Logger
}

func NewClient(cfg internal.SSOConfig, logger *slog.Logger) *Client {
	if cfg.LogoutTimeout <= 0 {
		cfg.LogoutTimeout = 5 * time.Second
	}

	return &Client{
		cfg: cfg,
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			RedirectURL: cfg.RedirectURL,
			Scopes:      cfg.Scopes,
		},
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     logger,
	}
}

// InitiateAuth builds the provider authorize URL with a fresh state and
// PKCE challenge. The caller owns persisting State and CodeVerifier.
func (c *Client) InitiateAuth() (*AuthRequest, error) {
	verifier, err := GenerateCodeVerifier()
	if err != nil {
		return nil, internal.NewInternalError("failed to generate code verifier", err)
	}

	state, err := GenerateState()
	if err != nil {
		return nil, internal.NewInternalError("failed to generate state", err)
	}

	authURL := c.oauth2Config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	return &AuthRequest{
		AuthorizationURL: authURL,
		State:            state,
		CodeVerifier:     verifier,
	}, nil
}

// HandleCallback completes the login: state comparison first (fails closed
// before any network call), then code exchange, then userinfo fetch. Each
// failure carries its own error code so operators can tell the steps apart.
func (c *Client) HandleCallback(ctx context.Context, params CallbackParams) (*CallbackResult, error) {
	if params.ExpectedState == "" ||
		subtle.ConstantTimeCompare([]byte(params.State), []byte(params.ExpectedState)) != 1 {
		c.logger.WarnContext(ctx, "oauth callback rejected: state mismatch")
		return nil, ErrInvalidState
	}

	tokens := c.ExchangeCodeForToken(ctx, params.Code, params.CodeVerifier)
	if tokens == nil {
		return nil, ErrTokenExchangeFailed
	}

	identity := c.FetchUserInfo(ctx, tokens.AccessToken)
	if identity == nil {
		return nil, ErrUserInfoFetchFailed
	}

	return &CallbackResult{Tokens: tokens, Identity: identity}, nil
}

// ExchangeCodeForToken swaps the authorization code plus PKCE verifier for
// a token pair. Returns nil on any failure so callers can uniformly treat
// nil as "not usable".
func (c *Client) ExchangeCodeForToken(ctx context.Context, code, verifier string) *Tokens {
	tok, err := c.oauth2Config.Exchange(c.providerContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		c.logger.ErrorContext(ctx, "token exchange failed", "error", err)
		return nil
	}
	return c.toTokens(tok)
}

// RefreshAccessToken obtains a fresh token pair from the refresh token.
// Returns nil on failure; the caller decides what to do with the old pair.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) *Tokens {
	if refreshToken == "" {
		return nil
	}

	src := c.oauth2Config.TokenSource(c.providerContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		c.logger.WarnContext(ctx, "token refresh failed", "error", err)
		return nil
	}

	tokens := c.toTokens(tok)
	if tokens.RefreshToken == "" {
		// Providers may omit the refresh token on rotation; keep the old one.
		tokens.RefreshToken = refreshToken
	}
	return tokens
}

// FetchUserInfo loads the identity behind the access token. Returns nil on
// any failure.
func (c *Client) FetchUserInfo(ctx context.Context, accessToken string) *Identity {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.UserInfoURL, nil)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to build userinfo request", "error", err)
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "userinfo request failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.ErrorContext(ctx, "userinfo request rejected", "status", resp.StatusCode)
		return nil
	}

	var identity Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		c.logger.ErrorContext(ctx, "failed to decode userinfo response", "error", err)
		return nil
	}

	if identity.Username == "" {
		identity.Username = identity.Email
	}
	if identity.Email == "" || identity.Username == "" {
		c.logger.ErrorContext(ctx, "userinfo response missing email/username")
		return nil
	}

	return &identity
}

// Logout notifies the provider that the session ended. Best effort with a
// bounded timeout: a non-2xx or network failure is tolerated and only
// reported through the return value.
func (c *Client) Logout(ctx context.Context, accessToken string) bool {
	if c.cfg.LogoutURL == "" || accessToken == "" {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.LogoutTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.LogoutURL, nil)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to build provider logout request", "error", err)
		return false
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "provider logout failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WarnContext(ctx, "provider logout rejected", "status", resp.StatusCode)
		return false
	}

	return true
}

// IsTokenExpired reports whether the token at expiresAt (epoch ms) is
// expired or within buffer of expiring.
func IsTokenExpired(expiresAtMillis int64, buffer time.Duration) bool {
	if expiresAtMillis <= 0 {
		return true
	}
	deadline := time.UnixMilli(expiresAtMillis).Add(-buffer)
	return !time.Now().Before(deadline)
}

// CalculateExpiresAt converts a relative expires_in into absolute epoch ms.
func CalculateExpiresAt(expiresInSeconds int64) int64 {
	return time.Now().Add(time.Duration(expiresInSeconds) * time.Second).UnixMilli()
}

// providerContext pins the HTTP client used by the oauth2 library so
// timeouts apply to token endpoint calls as well.
func (c *Client) providerContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *Client) toTokens(tok *oauth2.Token) *Tokens {
	tokens := &Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}

	if scope, ok := tok.Extra("scope").(string); ok {
		tokens.Scope = scope
	}

	switch {
	case !tok.Expiry.IsZero():
		tokens.ExpiresAt = tok.Expiry.UnixMilli()
	default:
		// Some providers omit expires_in; fall back to the exp claim when
		// the access token happens to be a JWT.
		if exp, ok := expiryFromJWT(tok.AccessToken); ok {
			tokens.ExpiresAt = exp.UnixMilli()
		}
	}

	return tokens
}

func expiryFromJWT(raw string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

package session

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/assignwork/assignwork/internal"
	"github.com/assignwork/assignwork/internal/oauth"
)

// Manager owns the lifecycle of the client-held session cookie: creation
// after a successful callback, transparent refresh before token expiry,
// and local-first termination.
type Manager struct {
	codec  *Codec
	oauth  *oauth.Client
	cfg    internal.SessionConfig
	logger *slog.Logger
}

func NewManager(cfg internal.SessionConfig, oauthClient *oauth.Client, logger *slog.Logger) (*Manager, error) {
	cfg.Defaults()

	codec, err := NewCodec(cfg.Secret)
	if err != nil {
		return nil, err
	}

	return &Manager{
		codec:  codec,
		oauth:  oauthClient,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Create seals the session into the cookie. CreatedAt is stamped here.
func (m *Manager) Create(w http.ResponseWriter, sess *Session) error {
	if sess.CreatedAt == 0 {
		sess.CreatedAt = time.Now().UnixMilli()
	}

	blob, err := m.codec.Seal(sess)
	if err != nil {
		return err
	}

	m.setCookie(w, m.cfg.CookieName, blob, int(m.cfg.MaxAge.Seconds()))
	return nil
}

// Current decodes the session cookie. Absent or malformed content is
// treated identically to "no session" and returns nil.
func (m *Manager) Current(r *http.Request) *Session {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	var sess Session
	if err := m.codec.Open(cookie.Value, &sess); err != nil {
		m.logger.Debug("discarding undecodable session cookie")
		return nil
	}
	return &sess
}

// Update re-seals the (partially) modified session.
func (m *Manager) Update(w http.ResponseWriter, sess *Session) error {
	return m.Create(w, sess)
}

// IsValid reports whether a decodable, unexpired session accompanies the
// request.
func (m *Manager) IsValid(r *http.Request) bool {
	return m.Current(r).Valid()
}

// RefreshIfNeeded returns the current session after at most one refresh
// attempt. Not near expiry is a no-op success. On refresh failure the
// prior cookie is left untouched and ok is false; retrying is the
// caller's policy, not this component's.
func (m *Manager) RefreshIfNeeded(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess := m.Current(r)
	if sess == nil {
		return nil, false
	}

	if !oauth.IsTokenExpired(sess.ExpiresAt, oauth.DefaultExpiryBuffer) {
		return sess, true
	}

	tokens := m.oauth.RefreshAccessToken(ctx, sess.RefreshToken)
	if tokens == nil {
		m.logger.WarnContext(ctx, "session refresh failed", "user_id", sess.User.ID)
		return sess, false
	}

	sess.AccessToken = tokens.AccessToken
	sess.RefreshToken = tokens.RefreshToken
	sess.ExpiresAt = tokens.ExpiresAt

	if err := m.Update(w, sess); err != nil {
		m.logger.ErrorContext(ctx, "failed to persist refreshed session", "error", err)
		return sess, false
	}

	return sess, true
}

// Terminate always clears the local session first, then best-effort
// notifies the provider logout endpoint. A provider failure does not undo
// the local clear.
func (m *Manager) Terminate(ctx context.Context, w http.ResponseWriter, r *http.Request) bool {
	sess := m.Current(r)

	m.Clear(w)
	m.ClearPending(w)

	if sess == nil {
		return true
	}
	return m.oauth.Logout(ctx, sess.AccessToken)
}

// AccessToken returns a usable access token, refreshing first when the
// current one is near expiry. Empty string means no usable token.
func (m *Manager) AccessToken(ctx context.Context, w http.ResponseWriter, r *http.Request) string {
	sess, ok := m.RefreshIfNeeded(ctx, w, r)
	if !ok || !sess.Valid() {
		return ""
	}
	return sess.AccessToken
}

// ValidateAndUserID returns the user id behind the request if the session
// is present and, after a refresh attempt if required, still valid.
func (m *Manager) ValidateAndUserID(ctx context.Context, w http.ResponseWriter, r *http.Request) (int64, error) {
	sess := m.Current(r)
	if sess == nil {
		return 0, internal.ErrUnauthorized
	}

	sess, ok := m.RefreshIfNeeded(ctx, w, r)
	if !ok || !sess.Valid() {
		return 0, internal.ErrTokenExpired
	}

	return sess.User.ID, nil
}

// Clear drops the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	m.setCookie(w, m.cfg.CookieName, "", -1)
}

// SetPending stores state and code verifier for the in-flight login.
func (m *Manager) SetPending(w http.ResponseWriter, state, codeVerifier string) error {
	blob, err := m.codec.Seal(&PendingAuth{
		State:        state,
		CodeVerifier: codeVerifier,
		CreatedAt:    time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}

	m.setCookie(w, m.cfg.PendingCookieName, blob, int(m.cfg.PendingTTL.Seconds()))
	return nil
}

// Pending returns the in-flight login state, or nil when absent, invalid
// or older than the pending TTL.
func (m *Manager) Pending(r *http.Request) *PendingAuth {
	cookie, err := r.Cookie(m.cfg.PendingCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	var pending PendingAuth
	if err := m.codec.Open(cookie.Value, &pending); err != nil {
		return nil
	}

	if time.Since(time.UnixMilli(pending.CreatedAt)) > m.cfg.PendingTTL {
		return nil
	}
	return &pending
}

func (m *Manager) ClearPending(w http.ResponseWriter) {
	m.setCookie(w, m.cfg.PendingCookieName, "", -1)
}

func (m *Manager) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   m.cfg.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

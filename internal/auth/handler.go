package auth

import (
	"net/http"

	"github.com/go-chi/chi"

	"github.com/assignwork/assignwork/internal"
	"github.com/assignwork/assignwork/internal/oauth"
	"github.com/assignwork/assignwork/internal/session"
	"github.com/assignwork/assignwork/internal/transport"
	"github.com/assignwork/assignwork/internal/user"
	"github.com/assignwork/assignwork/pkg/logger"
)

// Handler exposes the login, callback, logout and refresh endpoints that
// drive the delegated authentication flow.
type Handler struct {
	*transport.BaseHandler
	oauth    *oauth.Client
	sessions *session.Manager
	users    *user.Service
}

func NewHandler(oauthClient *oauth.Client, sessions *session.Manager, users *user.Service) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.L()),
		oauth:       oauthClient,
		sessions:    sessions,
		users:       users,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/auth/login", h.Login)
	r.Get("/auth/callback", h.Callback)
	r.Post("/auth/logout", h.Logout)
	r.Post("/auth/refresh", h.Refresh)
}

// Login starts the authorization-code flow. State and the PKCE verifier
// are sealed into a short-lived pending cookie so the callback can verify
// them; neither ever reaches the client in readable form.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := h.oauth.InitiateAuth()
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	if err := h.sessions.SetPending(w, req.State, req.CodeVerifier); err != nil {
		h.WriteError(w, r, err)
		return
	}

	if r.URL.Query().Get("mode") == "json" {
		h.WriteJSON(w, http.StatusOK, LoginResponse{AuthorizationURL: req.AuthorizationURL})
		return
	}

	http.Redirect(w, r, req.AuthorizationURL, http.StatusFound)
}

// Callback completes the flow: verify state, exchange the code, fetch the
// identity and map it onto a local user. An identity without a local
// record is rejected, never provisioned.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		h.WriteAppError(w, r, internal.NewMissingParametersError("code and state query parameters are required"))
		return
	}

	pending := h.sessions.Pending(r)
	if pending == nil {
		// No (or stale) pending login to compare the state against.
		h.WriteAppError(w, r, oauth.ErrInvalidState)
		return
	}

	result, err := h.oauth.HandleCallback(ctx, oauth.CallbackParams{
		Code:          code,
		State:         state,
		ExpectedState: pending.State,
		CodeVerifier:  pending.CodeVerifier,
	})
	if err != nil {
		h.sessions.ClearPending(w)
		h.WriteError(w, r, err)
		return
	}

	sync := h.users.SyncUserFromSSO(ctx, *result.Identity)
	if !sync.Success {
		h.sessions.ClearPending(w)
		if sync.Error == internal.ErrCodeUserNotFound {
			h.WriteAppError(w, r, internal.ErrUserNotProvisioned)
			return
		}
		h.WriteAppError(w, r, &internal.AppError{
			Code:        sync.Error,
			Description: sync.ErrorDescription,
			StatusCode:  http.StatusInternalServerError,
		})
		return
	}

	sess := &session.Session{
		User:         *sync.User,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		ExpiresAt:    result.Tokens.ExpiresAt,
	}
	if err := h.sessions.Create(w, sess); err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.sessions.ClearPending(w)

	h.Logger.InfoContext(ctx, "user signed in", "user_id", sync.User.ID)
	h.WriteJSON(w, http.StatusOK, CallbackResponse{User: sync.User, ExpiresAt: sess.ExpiresAt})
}

// Logout clears the local session, then tells the provider. The response
// is 200 even when the provider call fails: the caller is signed out
// locally regardless.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	providerOK := h.sessions.Terminate(r.Context(), w, r)
	h.WriteJSON(w, http.StatusOK, LogoutResponse{Success: true, ProviderLogout: providerOK})
}

// Refresh forces a token refresh on the current session. Without a
// session this is 401 unauthorized; a failed refresh is 401
// refresh_failed and the existing cookie survives untouched.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, ok := h.sessions.RefreshIfNeeded(ctx, w, r)
	if sess == nil {
		h.WriteAppError(w, r, internal.ErrUnauthorized)
		return
	}
	if !ok {
		h.WriteAppError(w, r, internal.NewUnauthorizedError(internal.ErrCodeRefreshFailed,
			"Could not refresh the session, please sign in again"))
		return
	}

	h.WriteJSON(w, http.StatusOK, RefreshResponse{ExpiresAt: sess.ExpiresAt})
}

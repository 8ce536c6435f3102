package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi"

	"github.com/assignwork/assignwork/internal"
	"github.com/assignwork/assignwork/internal/oauth"
	"github.com/assignwork/assignwork/internal/rbac"
	"github.com/assignwork/assignwork/internal/transport"
	"github.com/assignwork/assignwork/pkg/logger"
)

// ProfileResponse is the authenticated caller's own view: the local
// record plus the effective authorization derived from it.
type ProfileResponse struct {
	User        *User             `json:"user"`
	Roles       []rbac.Role       `json:"roles"`
	Permissions []rbac.Permission `json:"permissions"`
}

type Handler struct {
	*transport.BaseHandler
	users *Service
	rbac  *rbac.Service
}

func NewHandler(users *Service, rbacService *rbac.Service) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.L()),
		users:       users,
		rbac:        rbacService,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/users/me", h.Me)
}

// RegisterAdminRoutes holds the provisioning endpoints. Routing wires
// them behind the rbac:manage permission.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/admin/users", h.Provision)
	r.Delete("/admin/users/{userID}", h.Delete)
}

// ProvisionRequest creates the local record that later allows the same
// identity to sign in. Only email and username are ever stored.
type ProvisionRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=2,max=64"`
}

// Provision creates the local user record for an upstream identity.
// Idempotent: provisioning an existing identity returns the existing
// record.
func (h *Handler) Provision(w http.ResponseWriter, r *http.Request) {
	var req ProvisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteAppError(w, r, internal.NewValidationError("invalid request body"))
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || req.Username == "" {
		h.WriteAppError(w, r, internal.NewValidationError("email and username are required"))
		return
	}

	u, err := h.users.ProvisionUserFromSSO(r.Context(), oauth.Identity{
		Email:    req.Email,
		Username: req.Username,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			h.WriteAppError(w, r, internal.NewConflictError(
				"email or username is already taken by another user"))
			return
		}
		h.WriteError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, u)
}

// Delete removes a local user. Their role assignments cascade away.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		h.WriteAppError(w, r, internal.NewValidationError("userID must be a positive integer"))
		return
	}

	if err := h.users.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			h.WriteAppError(w, r, internal.NewNotFoundError("user not found"))
			return
		}
		h.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the caller's local record with their roles and deduplicated
// permissions.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	u := CurrentFromContext(ctx)
	if u == nil {
		h.WriteAppError(w, r, internal.ErrUnauthorized)
		return
	}

	roles, err := h.rbac.GetUserRoles(ctx, u.ID)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	perms, err := h.rbac.GetUserPermissions(ctx, u.ID)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ProfileResponse{User: u, Roles: roles, Permissions: perms})
}

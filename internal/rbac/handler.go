package rbac

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi"

	"github.com/assignwork/assignwork/internal"
	"github.com/assignwork/assignwork/internal/transport"
	"github.com/assignwork/assignwork/pkg/logger"
)

// Handler exposes the administrative role and permission management API.
// Routing wires every endpoint behind the rbac:manage permission.
type Handler struct {
	*transport.BaseHandler
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.L()),
		svc:         svc,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/roles", h.ListRoles)
		r.Post("/roles", h.CreateRole)
		r.Delete("/roles/{roleID}", h.DeleteRole)
		r.Get("/roles/{roleID}/permissions", h.ListRolePermissions)
		r.Post("/roles/{roleID}/permissions", h.GrantPermission)
		r.Delete("/roles/{roleID}/permissions/{permissionID}", h.RevokePermission)

		r.Get("/permissions", h.ListPermissions)
		r.Post("/permissions", h.CreatePermission)

		r.Get("/users/{userID}/roles", h.GetUserRoles)
		r.Post("/users/{userID}/roles", h.AssignRole)
		r.Delete("/users/{userID}/roles/{roleID}", h.RemoveRole)
		r.Get("/users/{userID}/permissions", h.GetUserPermissions)
	})
}

func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.svc.ListRoles(r.Context())
	if err != nil {
		h.writeRBACError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, RoleListResponse{Roles: roles})
}

func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req CreateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteAppError(w, r, internal.NewValidationError("invalid request body"))
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		h.WriteAppError(w, r, internal.NewValidationError("role name is required"))
		return
	}

	role, err := h.svc.CreateRole(r.Context(), req.Name, req.Description)
	if err != nil {
		h.writeRBACError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, role)
}

func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}

	if err := h.svc.DeleteRole(r.Context(), roleID); err != nil {
		h.writeRBACError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.svc.ListPermissions(r.Context())
	if err != nil {
		h.writeRBACError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, PermissionListResponse{Permissions: perms})
}

func (h *Handler) CreatePermission(w http.ResponseWriter, r *http.Request) {
	var req CreatePermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteAppError(w, r, internal.NewValidationError("invalid request body"))
		return
	}

	req.Resource = strings.TrimSpace(req.Resource)
	req.Action = strings.TrimSpace(req.Action)
	if req.Resource == "" || req.Action == "" {
		h.WriteAppError(w, r, internal.NewValidationError("resource and action are required"))
		return
	}

	perm, err := h.svc.CreatePermission(r.Context(), req.Resource, req.Action, req.Description)
	if err != nil {
		h.writeRBACError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, perm)
}

func (h *Handler) ListRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}

	perms, err := h.svc.GetRolePermissions(r.Context(), roleID)
	if err != nil {
		h.writeRBACError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, PermissionListResponse{Permissions: perms})
}

func (h *Handler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}

	var req GrantPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PermissionID == 0 {
		h.WriteAppError(w, r, internal.NewValidationError("permission_id is required"))
		return
	}

	if err := h.svc.GrantPermissionToRole(r.Context(), roleID, req.PermissionID); err != nil {
		h.writeRBACError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	permissionID, ok := h.pathID(w, r, "permissionID")
	if !ok {
		return
	}

	if err := h.svc.RevokePermissionFromRole(r.Context(), roleID, permissionID); err != nil {
		h.writeRBACError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}

	roles, err := h.svc.GetUserRoles(r.Context(), userID)
	if err != nil {
		h.writeRBACError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, UserAccessResponse{UserID: userID, Roles: roles})
}

func (h *Handler) GetUserPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}

	ctx := r.Context()
	roles, err := h.svc.GetUserRoles(ctx, userID)
	if err != nil {
		h.writeRBACError(w, r, err)
		return
	}
	perms, err := h.svc.GetUserPermissions(ctx, userID)
	if err != nil {
		h.writeRBACError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, UserAccessResponse{UserID: userID, Roles: roles, Permissions: perms})
}

func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}

	var req AssignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoleID == 0 {
		h.WriteAppError(w, r, internal.NewValidationError("role_id is required"))
		return
	}

	var assignedBy *int64
	if adminID := internal.UserIDFromContext(r.Context()); adminID != 0 {
		assignedBy = &adminID
	}

	if err := h.svc.AssignRole(r.Context(), userID, req.RoleID, assignedBy); err != nil {
		h.writeRBACError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}

	if err := h.svc.RemoveRole(r.Context(), userID, roleID); err != nil {
		h.writeRBACError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		h.WriteAppError(w, r, internal.NewValidationError(name+" must be a positive integer"))
		return 0, false
	}
	return id, true
}

// writeRBACError maps domain sentinels onto the error envelope.
func (h *Handler) writeRBACError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrRoleNotFound),
		errors.Is(err, ErrPermissionNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrAssignmentNotFound):
		h.WriteAppError(w, r, internal.NewNotFoundError(err.Error()))
	case errors.Is(err, ErrDuplicateRole), errors.Is(err, ErrDuplicatePermission):
		h.WriteAppError(w, r, internal.NewConflictError(err.Error()))
	default:
		h.WriteError(w, r, err)
	}
}

package task

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

type CreateTaskRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=2000"`
	AssigneeID  *int64 `json:"assignee_id"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	AssigneeID  *int64  `json:"assignee_id"`
}

type TaskListResponse struct {
	Tasks []Task `json:"tasks"`
}

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

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.List(r.Context())
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, TaskListResponse{Tasks: tasks})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	t, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		h.writeTaskError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteAppError(w, r, internal.NewValidationError("invalid request body"))
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		h.WriteAppError(w, r, internal.NewValidationError("title is required"))
		return
	}

	createdBy := internal.UserIDFromContext(r.Context())
	t, err := h.svc.Create(r.Context(), req.Title, req.Description, req.AssigneeID, createdBy)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteAppError(w, r, internal.NewValidationError("invalid request body"))
		return
	}

	if req.Status != nil && !ValidStatus(*req.Status) {
		h.WriteAppError(w, r, internal.NewValidationError("status must be open, in_progress or done"))
		return
	}

	t, err := h.svc.Update(r.Context(), id, req.Title, req.Description, req.Status, req.AssigneeID)
	if err != nil {
		h.writeTaskError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeTaskError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "taskID"), 10, 64)
	if err != nil || id <= 0 {
		h.WriteAppError(w, r, internal.NewValidationError("taskID must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (h *Handler) writeTaskError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrNotFound) {
		h.WriteAppError(w, r, internal.NewNotFoundError("task not found"))
		return
	}
	h.WriteError(w, r, err)
}

package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/assignwork/assignwork/internal"
	"github.com/assignwork/assignwork/pkg/logger"
)

// BaseHandler provides common functionality for HTTP handlers.
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger.
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.L()
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response.
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteAppError renders a structured error as the standard envelope
// {error, error_description, timestamp, request_id}.
func (h *BaseHandler) WriteAppError(w http.ResponseWriter, r *http.Request, appErr *internal.AppError) {
	requestID := internal.RequestIDFromContext(r.Context())

	if appErr.StatusCode >= 500 {
		h.Logger.ErrorContext(r.Context(), "request failed",
			"error", appErr.Code, "description", appErr.Description, "cause", appErr.Cause)
	} else {
		h.Logger.WarnContext(r.Context(), "request rejected",
			"error", appErr.Code, "description", appErr.Description)
	}

	h.WriteJSON(w, appErr.StatusCode, appErr.Envelope(requestID))
}

// WriteError maps any error onto the envelope, falling back to a generic
// internal error for untyped causes so internals never leak to callers.
func (h *BaseHandler) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	if appErr, ok := internal.IsAppError(err); ok {
		h.WriteAppError(w, r, appErr)
		return
	}
	h.WriteAppError(w, r, internal.NewInternalError("internal server error", err))
}

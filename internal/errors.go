package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode is the machine-readable code carried in the standard error
// envelope returned to API callers.
type ErrorCode string

const (
	ErrCodeValidationFailed  ErrorCode = "validation_failed"
	ErrCodeMissingParameters ErrorCode = "missing_parameters"

	ErrCodeUnauthorized ErrorCode = "unauthorized"
	ErrCodeTokenExpired ErrorCode = "token_expired"

	ErrCodeInsufficientPermissions ErrorCode = "insufficient_permissions"
	ErrCodePermissionCheckError    ErrorCode = "permission_check_error"
	ErrCodeUserNotFound            ErrorCode = "user_not_found"

	ErrCodeInvalidState        ErrorCode = "invalid_state"
	ErrCodeTokenExchangeFailed ErrorCode = "token_exchange_failed"
	ErrCodeUserInfoFetchFailed ErrorCode = "userinfo_fetch_failed"
	ErrCodeRefreshFailed       ErrorCode = "refresh_failed"

	ErrCodeNotFound  ErrorCode = "not_found"
	ErrCodeConflict  ErrorCode = "conflict"
	ErrCodeSyncError ErrorCode = "sync_error"
	ErrCodeInternal  ErrorCode = "internal_error"
)

// AppError is the structured error passed between components. Only the
// outermost HTTP boundary turns it into a status code and envelope.
type AppError struct {
	Code        ErrorCode `json:"error"`
	Description string    `json:"error_description"`
	StatusCode  int       `json:"-"`
	Cause       error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Description, e.Cause)
	}
	return e.Description
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

// ErrorEnvelope is the wire shape of every error response.
type ErrorEnvelope struct {
	Error       ErrorCode `json:"error"`
	Description string    `json:"error_description"`
	Timestamp   string    `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
}

// Envelope renders the error into the standard envelope. The timestamp is
// stamped at render time, not at error construction.
func (e *AppError) Envelope(requestID string) ErrorEnvelope {
	return ErrorEnvelope{
		Error:       e.Code,
		Description: e.Description,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		RequestID:   requestID,
	}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Envelope(""))
}

func NewValidationError(description string) *AppError {
	return &AppError{Code: ErrCodeValidationFailed, Description: description, StatusCode: http.StatusBadRequest}
}

func NewMissingParametersError(description string) *AppError {
	return &AppError{Code: ErrCodeMissingParameters, Description: description, StatusCode: http.StatusBadRequest}
}

func NewUnauthorizedError(code ErrorCode, description string) *AppError {
	return &AppError{Code: code, Description: description, StatusCode: http.StatusUnauthorized}
}

func NewForbiddenError(code ErrorCode, description string) *AppError {
	return &AppError{Code: code, Description: description, StatusCode: http.StatusForbidden}
}

func NewNotFoundError(description string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Description: description, StatusCode: http.StatusNotFound}
}

func NewConflictError(description string) *AppError {
	return &AppError{Code: ErrCodeConflict, Description: description, StatusCode: http.StatusConflict}
}

func NewInternalError(description string, cause error) *AppError {
	return &AppError{Code: ErrCodeInternal, Description: description, StatusCode: http.StatusInternalServerError, Cause: cause}
}

var (
	ErrUnauthorized = NewUnauthorizedError(ErrCodeUnauthorized, "Authentication required")
	ErrTokenExpired = NewUnauthorizedError(ErrCodeTokenExpired, "Session has expired, please sign in again")

	// The account exists upstream but has no local authorization record.
	// Distinct from invalid credentials: provisioning is an admin action.
	ErrUserNotProvisioned = NewForbiddenError(ErrCodeUserNotFound,
		"Your account has not been provisioned for this application, contact your administrator")

	ErrInsufficientPermissions = NewForbiddenError(ErrCodeInsufficientPermissions,
		"You do not have permission to perform this action, contact your administrator")

	ErrPermissionCheck = &AppError{
		Code:        ErrCodePermissionCheckError,
		Description: "Permission check failed, please try again later",
		StatusCode:  http.StatusInternalServerError,
	}
)

func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}

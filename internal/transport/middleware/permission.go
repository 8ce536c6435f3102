package middleware

import (
	"context"
	"net/http"

	"github.com/assignwork/assignwork/internal"
	"github.com/assignwork/assignwork/internal/rbac"
	"github.com/assignwork/assignwork/pkg/logger"
)

// PermissionChecker is the slice of the RBAC engine the guard needs.
type PermissionChecker interface {
	CheckPermission(ctx context.Context, userID int64, resource, action string) rbac.PermissionCheck
}

// RequirePermission guards a route behind an exact (resource, action)
// grant. Must run after Authenticate. Denials are 403
// insufficient_permissions; a failed check is 500 permission_check_error,
// never a silent allow.
func RequirePermission(checker PermissionChecker, resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			userID := internal.UserIDFromContext(ctx)
			if userID == 0 {
				writeEnvelope(w, r, internal.ErrUnauthorized)
				return
			}

			check := checker.CheckPermission(ctx, userID, resource, action)
			if !check.Allowed {
				if check.Reason == rbac.ReasonInternalError {
					writeEnvelope(w, r, internal.ErrPermissionCheck)
					return
				}
				logger.From(ctx).WarnContext(ctx, "permission denied",
					"user_id", userID, "resource", resource, "action", action)
				writeEnvelope(w, r, internal.ErrInsufficientPermissions)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"net/http"

	"github.com/assignwork/assignwork/internal"
	"github.com/assignwork/assignwork/internal/session"
	"github.com/assignwork/assignwork/internal/user"
	"github.com/assignwork/assignwork/pkg/logger"
)

// Authenticate gates a route on a valid session cookie. The session is
// refreshed transparently when the access token is near expiry; an
// absent cookie yields 401 unauthorized, an expired-and-unrefreshable
// one yields 401 token_expired. The local user record is loaded into the
// request context for downstream handlers.
func Authenticate(sessions *session.Manager, users *user.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			userID, err := sessions.ValidateAndUserID(ctx, w, r)
			if err != nil {
				writeEnvelope(w, r, err)
				return
			}

			u, err := users.GetByID(ctx, userID)
			if err != nil {
				// The session outlived the local record, e.g. the user
				// was deprovisioned while signed in.
				logger.From(ctx).WarnContext(ctx, "session references missing user", "user_id", userID)
				writeEnvelope(w, r, internal.ErrUnauthorized)
				return
			}

			ctx = internal.ContextWithUserID(ctx, u.ID)
			ctx = user.NewContext(ctx, u)
			ctx = logger.With(ctx, "user_id", u.ID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := internal.IsAppError(err)
	if !ok {
		appErr = internal.NewInternalError("internal server error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	writeJSONBestEffort(w, appErr.Envelope(internal.RequestIDFromContext(r.Context())))
}

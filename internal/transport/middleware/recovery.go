package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/assignwork/assignwork/internal"
)

// RecoveryMiddleware provides panic recovery with detailed logging.
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						"error", err,
						"method", r.Method,
						"url", r.URL.String(),
						"stack", string(debug.Stack()))

					envelope := internal.NewInternalError("internal server error", nil).
						Envelope(internal.RequestIDFromContext(r.Context()))

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					writeJSONBestEffort(w, envelope)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

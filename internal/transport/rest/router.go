package rest

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"

	"github.com/assignwork/assignwork/internal"
	"github.com/assignwork/assignwork/internal/auth"
	"github.com/assignwork/assignwork/internal/rbac"
	"github.com/assignwork/assignwork/internal/session"
	"github.com/assignwork/assignwork/internal/task"
	"github.com/assignwork/assignwork/internal/transport/middleware"
	"github.com/assignwork/assignwork/internal/transport/swagger"
	"github.com/assignwork/assignwork/internal/user"
	"github.com/assignwork/assignwork/pkg/logger"
)

// Dependencies carries everything the router needs, constructed by the
// caller. No ambient globals: every handle is explicit.
type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Sessions *session.Manager
	Users    *user.Service
	RBAC     *rbac.Service
	Tasks    *task.Service
	OAuth    *auth.Handler

	// OpenAPISpecPath enables the swagger UI when non-empty.
	OpenAPISpecPath string
}

// NewRouter wires the middleware chain and all route groups.
func NewRouter(deps Dependencies) http.Handler {
	lg := logger.L()
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RecoveryMiddleware(lg))
	r.Use(middleware.LoggingMiddleware(lg))
	r.Use(middleware.CORS(deps.Config.Server.AllowedOrigins))

	health := NewHealthHandler(deps.DB)
	r.Get("/health", health.Health)

	if deps.OpenAPISpecPath != "" {
		swagger.Register(r, deps.OpenAPISpecPath)
	}

	userHandler := user.NewHandler(deps.Users, deps.RBAC)
	rbacHandler := rbac.NewHandler(deps.RBAC)
	taskHandler := task.NewHandler(deps.Tasks)

	r.Route("/api/v1", func(r chi.Router) {
		// Authentication flow endpoints are public by nature.
		deps.OAuth.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(deps.Sessions, deps.Users))

			userHandler.RegisterRoutes(r)

			r.Route("/tasks", func(r chi.Router) {
				r.With(middleware.RequirePermission(deps.RBAC, "tasks", "read")).
					Get("/", taskHandler.List)
				r.With(middleware.RequirePermission(deps.RBAC, "tasks", "read")).
					Get("/{taskID}", taskHandler.Get)
				r.With(middleware.RequirePermission(deps.RBAC, "tasks", "write")).
					Post("/", taskHandler.Create)
				r.With(middleware.RequirePermission(deps.RBAC, "tasks", "write")).
					Patch("/{taskID}", taskHandler.Update)
				r.With(middleware.RequirePermission(deps.RBAC, "tasks", "delete")).
					Delete("/{taskID}", taskHandler.Delete)
			})

			// Administration: role, permission and provisioning management.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePermission(deps.RBAC, "rbac", "manage"))
				rbacHandler.RegisterRoutes(r)
				userHandler.RegisterAdminRoutes(r)
			})
		})
	})

	return r
}

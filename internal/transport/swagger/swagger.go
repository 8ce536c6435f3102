package swagger

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/go-chi/chi"
)

// Register mounts the swagger UI and the raw OpenAPI document it renders.
// specPath is the on-disk location of the OpenAPI file.
func Register(r chi.Router, specPath string) {
	r.Get("/api/openapi.yml", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		http.ServeFile(w, req, specPath)
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/api/openapi.yml"),
	))
}

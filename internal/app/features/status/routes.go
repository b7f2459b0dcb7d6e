// internal/app/features/status/routes.go
package status

import (
	"github.com/dalemusser/rulepost/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the status page. Admin only.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole("admin"))
		pr.Get("/", h.Serve)
	})
	return r
}

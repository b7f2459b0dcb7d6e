// internal/app/features/teams/routes.go
package teams

import "github.com/go-chi/chi/v5"

// Routes returns the router mounted under /api/teams.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/{team}/disable", h.Disable)
	return r
}

// internal/app/features/settings/routes.go
package settings

import "github.com/go-chi/chi/v5"

// Routes returns the router mounted under /api/settings.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/notifications", h.Notifications)
	r.Put("/notifications", h.SetNotifications)
	return r
}

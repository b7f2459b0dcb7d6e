// internal/app/features/unread/routes.go
package unread

import "github.com/go-chi/chi/v5"

// Routes returns the router mounted under /api/unread.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/{id}/read", h.MarkRead)
	return r
}

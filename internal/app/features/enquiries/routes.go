// internal/app/features/enquiries/routes.go
package enquiries

import "github.com/go-chi/chi/v5"

// Routes returns the router mounted under /api/enquiries.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/{id}/publish", h.Publish)
	r.Post("/{id}/close", h.Close)
	r.Put("/{id}/stage-length", h.StageLength)
	return r
}

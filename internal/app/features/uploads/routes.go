// internal/app/features/uploads/routes.go
package uploads

import "github.com/go-chi/chi/v5"

// Routes returns the router mounted under /api/uploads.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Upload)
	return r
}

// FileRoutes returns the router mounted under /files.
func FileRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/{token}", h.Download)
	return r
}

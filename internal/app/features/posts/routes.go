// internal/app/features/posts/routes.go
package posts

import "github.com/go-chi/chi/v5"

// Routes returns the router mounted under /api/posts.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Submit)
	r.Put("/{type}/{id}", h.EditDraft)
	r.Delete("/{type}/{id}", h.DeleteDraft)
	r.Get("/{type}/{id}/author", h.Author)
	return r
}

// DraftRoutes returns the router mounted under /api/drafts.
func DraftRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListDrafts)
	return r
}

// internal/app/features/posts/handler.go
package posts

import (
	"context"
	"net/http"

	errorsfeature "github.com/dalemusser/rulepost/internal/app/features/errors"
	"github.com/dalemusser/rulepost/internal/app/features/shared/apiutil"
	postsvc "github.com/dalemusser/rulepost/internal/app/posts"
	"github.com/dalemusser/rulepost/internal/app/system/apperr"
	"github.com/dalemusser/rulepost/internal/app/system/auditlog"
	"github.com/dalemusser/rulepost/internal/app/system/timeouts"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves post submission and draft management.
type Handler struct {
	Posts  *postsvc.Service
	ErrLog *errorsfeature.ErrorLogger
	Audit  *auditlog.Logger
	Log    *zap.Logger
}

// NewHandler creates a posts Handler.
func NewHandler(svc *postsvc.Service, errLog *errorsfeature.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Posts:  svc,
		ErrLog: errLog,
		Audit:  audit,
		Log:    logger,
	}
}

// Submit handles POST /api/posts.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	caller, ok := apiutil.Caller(w, r, h.ErrLog)
	if !ok {
		return
	}
	var req postsvc.SubmitRequest
	if !apiutil.DecodeJSON(w, r, h.ErrLog, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	res, err := h.Posts.Submit(ctx, caller, req)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	errorsfeature.JSON(w, http.StatusCreated, res)
}

// EditDraft handles PUT /api/posts/{type}/{id}.
func (h *Handler) EditDraft(w http.ResponseWriter, r *http.Request) {
	caller, ok := apiutil.Caller(w, r, h.ErrLog)
	if !ok {
		return
	}
	id, ok := apiutil.ObjectIDParam(w, r, h.ErrLog, "id")
	if !ok {
		return
	}
	var req postsvc.EditRequest
	if !apiutil.DecodeJSON(w, r, h.ErrLog, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	res, err := h.Posts.EditDraft(ctx, caller, chi.URLParam(r, "type"), id, req)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	errorsfeature.JSON(w, http.StatusOK, res)
}

// DeleteDraft handles DELETE /api/posts/{type}/{id}.
func (h *Handler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	caller, ok := apiutil.Caller(w, r, h.ErrLog)
	if !ok {
		return
	}
	id, ok := apiutil.ObjectIDParam(w, r, h.ErrLog, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Posts.DeleteDraft(ctx, caller, chi.URLParam(r, "type"), id); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Author handles GET /api/posts/{type}/{id}/author. Admin and RC only.
func (h *Handler) Author(w http.ResponseWriter, r *http.Request) {
	caller, ok := apiutil.Caller(w, r, h.ErrLog)
	if !ok {
		return
	}
	id, ok := apiutil.ObjectIDParam(w, r, h.ErrLog, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	meta, err := h.Posts.PostAuthor(ctx, caller, id)
	if err == nil && meta.PostType != chi.URLParam(r, "type") {
		err = apperr.New(apperr.NotFound, "No matching post found.")
	}
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.AuthorRevealed(ctx, r, caller, meta.PostType, id)
	errorsfeature.JSON(w, http.StatusOK, meta)
}

type draftsResponse struct {
	Drafts []models.Draft `json:"drafts"`
}

// ListDrafts handles GET /api/drafts.
func (h *Handler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	caller, ok := apiutil.Caller(w, r, h.ErrLog)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	drafts, err := h.Posts.ListDrafts(ctx, caller)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if drafts == nil {
		drafts = []models.Draft{}
	}
	errorsfeature.JSON(w, http.StatusOK, draftsResponse{Drafts: drafts})
}

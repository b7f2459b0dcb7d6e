// internal/app/features/unread/handler.go
package unread

import (
	"context"
	"net/http"

	errorsfeature "github.com/dalemusser/rulepost/internal/app/features/errors"
	"github.com/dalemusser/rulepost/internal/app/features/shared/apiutil"
	unreadstore "github.com/dalemusser/rulepost/internal/app/store/unread"
	"github.com/dalemusser/rulepost/internal/app/system/timeouts"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler lists and clears the caller's unread markers.
type Handler struct {
	Unread *unreadstore.Store
	ErrLog *errorsfeature.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Unread: unreadstore.New(db),
		ErrLog: errLog,
		Log:    logger,
	}
}

type listResponse struct {
	Posts []models.UnreadPost `json:"posts"`
}

// List handles GET /api/unread.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := apiutil.Caller(w, r, h.ErrLog)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	posts, err := h.Unread.ListForUser(ctx, caller.UserID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if posts == nil {
		posts = []models.UnreadPost{}
	}
	errorsfeature.JSON(w, http.StatusOK, listResponse{Posts: posts})
}

// MarkRead handles POST /api/unread/{id}/read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	caller, ok := apiutil.Caller(w, r, h.ErrLog)
	if !ok {
		return
	}
	postID, ok := apiutil.ObjectIDParam(w, r, h.ErrLog, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Unread.MarkRead(ctx, caller.UserID, postID); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// internal/app/features/teams/handler.go
package teams

import (
	"context"
	"net/http"

	errorsfeature "github.com/dalemusser/rulepost/internal/app/features/errors"
	"github.com/dalemusser/rulepost/internal/app/features/shared/apiutil"
	"github.com/dalemusser/rulepost/internal/app/lifecycle"
	"github.com/dalemusser/rulepost/internal/app/system/auditlog"
	"github.com/dalemusser/rulepost/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves team administration.
type Handler struct {
	Lifecycle *lifecycle.Controller
	ErrLog    *errorsfeature.ErrorLogger
	Audit     *auditlog.Logger
	Log       *zap.Logger
}

func NewHandler(lc *lifecycle.Controller, errLog *errorsfeature.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{Lifecycle: lc, ErrLog: errLog, Audit: audit, Log: logger}
}

type disableResponse struct {
	Team     string `json:"team"`
	Disabled int64  `json:"disabled"`
}

// Disable handles POST /api/teams/{team}/disable. Admin only.
func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	caller, ok := apiutil.Caller(w, r, h.ErrLog)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	team := chi.URLParam(r, "team")
	n, err := h.Lifecycle.DisableTeam(ctx, caller, team)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.TeamDisabled(ctx, r, caller, team, n)
	errorsfeature.JSON(w, http.StatusOK, disableResponse{Team: team, Disabled: n})
}

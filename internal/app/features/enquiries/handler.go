// internal/app/features/enquiries/handler.go
package enquiries

import (
	"context"
	"net/http"

	errorsfeature "github.com/dalemusser/rulepost/internal/app/features/errors"
	"github.com/dalemusser/rulepost/internal/app/features/shared/apiutil"
	"github.com/dalemusser/rulepost/internal/app/lifecycle"
	"github.com/dalemusser/rulepost/internal/app/publisher"
	"github.com/dalemusser/rulepost/internal/app/system/auditlog"
	"github.com/dalemusser/rulepost/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler serves the committee actions on a single enquiry.
type Handler struct {
	Publisher *publisher.Service
	Lifecycle *lifecycle.Controller
	ErrLog    *errorsfeature.ErrorLogger
	Audit     *auditlog.Logger
	Log       *zap.Logger
}

func NewHandler(pub *publisher.Service, lc *lifecycle.Controller, errLog *errorsfeature.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Publisher: pub,
		Lifecycle: lc,
		ErrLog:    errLog,
		Audit:     audit,
		Log:       logger,
	}
}

// Publish handles POST /api/enquiries/{id}/publish. A declined publish
// (no response, several RC responses) is a 200 with ok=false.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	caller, ok := apiutil.Caller(w, r, h.ErrLog)
	if !ok {
		return
	}
	id, ok := apiutil.ObjectIDParam(w, r, h.ErrLog, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	res, err := h.Publisher.InstantPublish(ctx, caller, id)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.EnquiryPublished(ctx, r, caller, id, res.Published)
	errorsfeature.JSON(w, http.StatusOK, res)
}

type closeRequest struct {
	Conclusion string `json:"conclusion"`
}

// Close handles POST /api/enquiries/{id}/close.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	caller, ok := apiutil.Caller(w, r, h.ErrLog)
	if !ok {
		return
	}
	id, ok := apiutil.ObjectIDParam(w, r, h.ErrLog, "id")
	if !ok {
		return
	}
	var req closeRequest
	if !apiutil.DecodeJSON(w, r, h.ErrLog, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	e, err := h.Lifecycle.Close(ctx, caller, id, req.Conclusion)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.EnquiryClosed(ctx, r, caller, id, e.RoundNumber)
	errorsfeature.JSON(w, http.StatusOK, e)
}

type stageLengthRequest struct {
	StageLength int `json:"stage_length"`
}

// StageLength handles PUT /api/enquiries/{id}/stage-length.
func (h *Handler) StageLength(w http.ResponseWriter, r *http.Request) {
	caller, ok := apiutil.Caller(w, r, h.ErrLog)
	if !ok {
		return
	}
	id, ok := apiutil.ObjectIDParam(w, r, h.ErrLog, "id")
	if !ok {
		return
	}
	var req stageLengthRequest
	if !apiutil.DecodeJSON(w, r, h.ErrLog, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	e, err := h.Lifecycle.ChangeStageLength(ctx, caller, id, req.StageLength)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Audit.StageLengthChanged(ctx, r, caller, id, e.StageLength)
	errorsfeature.JSON(w, http.StatusOK, e)
}

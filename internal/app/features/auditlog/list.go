// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	errorsfeature "github.com/dalemusser/rulepost/internal/app/features/errors"
	"github.com/dalemusser/rulepost/internal/app/features/shared/apiutil"
	"github.com/dalemusser/rulepost/internal/app/store/audit"
	"github.com/dalemusser/rulepost/internal/app/system/apperr"
	"github.com/dalemusser/rulepost/internal/app/system/authz"
	"github.com/dalemusser/rulepost/internal/app/system/calendar"
	"github.com/dalemusser/rulepost/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const pageSize = 50

type listResponse struct {
	Events     []audit.Event `json:"events"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
	Total      int64         `json:"total"`
}

// ServeList handles GET /api/audit.
//
// Query parameters: category, event_type, enquiry (id), start_date and
// end_date (YYYY-MM-DD calendar days, end inclusive) and page.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	if _, ok := apiutil.Caller(w, r, h.ErrLog); !ok {
		return
	}
	if !authz.IsPrivileged(r) {
		h.ErrLog.Write(w, r, apperr.New(apperr.PermissionDenied, "RC or admin function only."))
		return
	}

	q := r.URL.Query()
	page := 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}

	filter := audit.QueryFilter{
		Category:  strings.TrimSpace(q.Get("category")),
		EventType: strings.TrimSpace(q.Get("event_type")),
		Limit:     pageSize,
		Offset:    int64((page - 1) * pageSize),
	}
	if s := strings.TrimSpace(q.Get("enquiry")); s != "" {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			h.ErrLog.BadRequest(w, "Invalid enquiry id.")
			return
		}
		filter.EnquiryID = &id
	}
	if s := strings.TrimSpace(q.Get("start_date")); s != "" {
		t, err := time.ParseInLocation(calendar.DateLayout, s, h.Cal.Location())
		if err != nil {
			h.ErrLog.BadRequest(w, "Invalid start_date.")
			return
		}
		filter.StartTime = &t
	}
	if s := strings.TrimSpace(q.Get("end_date")); s != "" {
		t, err := time.ParseInLocation(calendar.DateLayout, s, h.Cal.Location())
		if err != nil {
			h.ErrLog.BadRequest(w, "Invalid end_date.")
			return
		}
		endOfDay := t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		filter.EndTime = &endOfDay
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit log list")
	defer cancel()

	events, err := h.Store.Query(ctx, filter)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	total, err := h.Store.CountByFilter(ctx, filter)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	totalPages := int((total + pageSize - 1) / pageSize)
	if totalPages == 0 {
		totalPages = 1
	}
	if events == nil {
		events = []audit.Event{}
	}
	errorsfeature.JSON(w, http.StatusOK, listResponse{
		Events:     events,
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
	})
}

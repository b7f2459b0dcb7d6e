package auditlog_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/rulepost/internal/app/features/auditlog"
	errorsfeature "github.com/dalemusser/rulepost/internal/app/features/errors"
	"github.com/dalemusser/rulepost/internal/app/store/audit"
	"github.com/dalemusser/rulepost/internal/app/system/calendar"
	"github.com/dalemusser/rulepost/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type listBody struct {
	Events     []audit.Event `json:"events"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
	Total      int64         `json:"total"`
}

func TestServeList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := audit.New(db)
	enquiry := primitive.NewObjectID()
	base := time.Date(2026, 10, 5, 9, 0, 0, 0, time.UTC)
	for i, e := range []audit.Event{
		{Category: audit.CategoryModeration, EventType: audit.EventEnquiryPublished, EnquiryID: &enquiry, Timestamp: base},
		{Category: audit.CategoryModeration, EventType: audit.EventEnquiryClosed, EnquiryID: &enquiry, Timestamp: base.AddDate(0, 0, 2)},
		{Category: audit.CategoryAdmin, EventType: audit.EventTeamDisabled, Team: "NZ", Timestamp: base.AddDate(0, 0, 4)},
	} {
		e.Success = true
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	router := auditlog.Routes(auditlog.NewHandler(db, calendar.Default(), errorsfeature.NewErrorLogger(zap.NewNop()), zap.NewNop()))

	tests := []struct {
		name   string
		user   *testutil.TestUser
		query  string
		status int
		count  int
	}{
		{"anonymous", nil, "", http.StatusUnauthorized, 0},
		{"team member", ptr(testutil.TeamUser("NZ")), "", http.StatusForbidden, 0},
		{"rc sees all", ptr(testutil.RCUser()), "", http.StatusOK, 3},
		{"by enquiry", ptr(testutil.AdminUser()), "?enquiry=" + enquiry.Hex(), http.StatusOK, 2},
		{"by category", ptr(testutil.AdminUser()), "?category=admin", http.StatusOK, 1},
		{"date range", ptr(testutil.AdminUser()), "?start_date=2026-10-06&end_date=2026-10-07", http.StatusOK, 1},
		{"end date inclusive", ptr(testutil.AdminUser()), "?end_date=2026-10-05", http.StatusOK, 1},
		{"bad enquiry", ptr(testutil.AdminUser()), "?enquiry=nope", http.StatusBadRequest, 0},
		{"bad date", ptr(testutil.AdminUser()), "?start_date=5/10/2026", http.StatusBadRequest, 0},
		{"bad end date", ptr(testutil.AdminUser()), "?end_date=2026-13-01", http.StatusBadRequest, 0},
		{"blank enquiry ignored", ptr(testutil.AdminUser()), "?enquiry=%20", http.StatusOK, 3},
		{"past last page", ptr(testutil.AdminUser()), "?page=2", http.StatusOK, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.NewRequest(http.MethodGet, "/"+tt.query)
			if tt.user != nil {
				req = testutil.WithUser(req, *tt.user)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			var body listBody
			testutil.DecodeJSON(t, rec, &body)
			if len(body.Events) != tt.count {
				t.Errorf("events = %d, want %d", len(body.Events), tt.count)
			}
			if body.TotalPages != 1 {
				t.Errorf("total pages = %d, want 1", body.TotalPages)
			}
		})
	}
}

func ptr(u testutil.TestUser) *testutil.TestUser { return &u }

func TestServeList_DatesAreCalendarDays(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// 22:30 UTC on 5 October is already 6 October in Rome
	late := time.Date(2026, 10, 5, 22, 30, 0, 0, time.UTC)
	if err := audit.New(db).Log(ctx, audit.Event{
		Category: audit.CategoryModeration, EventType: audit.EventEnquiryPublished, Timestamp: late, Success: true,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	router := auditlog.Routes(auditlog.NewHandler(db, calendar.Default(), errorsfeature.NewErrorLogger(zap.NewNop()), zap.NewNop()))

	tests := []struct {
		query string
		count int
	}{
		{"?start_date=2026-10-06&end_date=2026-10-06", 1},
		{"?end_date=2026-10-05", 0},
		{"?start_date=2026-10-05&end_date=2026-10-05", 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := testutil.WithUser(testutil.NewRequest(http.MethodGet, "/"+tt.query), testutil.AdminUser())
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			var body listBody
			testutil.DecodeJSON(t, rec, &body)
			if len(body.Events) != tt.count {
				t.Errorf("events = %d, want %d", len(body.Events), tt.count)
			}
		})
	}
}

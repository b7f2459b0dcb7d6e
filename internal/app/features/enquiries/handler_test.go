package enquiries_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/rulepost/internal/app/features/enquiries"
	errorsfeature "github.com/dalemusser/rulepost/internal/app/features/errors"
	"github.com/dalemusser/rulepost/internal/app/lifecycle"
	"github.com/dalemusser/rulepost/internal/app/publisher"
	"github.com/dalemusser/rulepost/internal/app/store/audit"
	"github.com/dalemusser/rulepost/internal/app/system/attachments"
	"github.com/dalemusser/rulepost/internal/app/system/auditlog"
	"github.com/dalemusser/rulepost/internal/app/system/calendar"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"github.com/dalemusser/rulepost/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newRouter(db *mongo.Database) chi.Router {
	cal := calendar.Default()
	h := enquiries.NewHandler(
		publisher.New(db, cal, attachments.NewMemStore(), zap.NewNop()),
		lifecycle.New(db, cal, zap.NewNop()),
		errorsfeature.NewErrorLogger(zap.NewNop()),
		auditlog.New(audit.New(db), zap.NewNop(), auditlog.Config{Moderation: auditlog.ToDB}),
		zap.NewNop(),
	)
	return enquiries.Routes(h)
}

func TestPublish(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	e := fx.CreateEnquiry(ctx, "Daggerboard", testutil.EnquiryOpts{})
	fx.CreateResponse(ctx, e, "NZ", 1, false)
	fx.CreateResponse(ctx, e, "GB", 1, false)
	router := newRouter(db)
	target := "/" + e.ID.Hex() + "/publish"

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(testutil.NewRequest(http.MethodPost, target), testutil.TeamUser("NZ")))
	if rec.Code != http.StatusForbidden {
		t.Errorf("team publish status = %d, want 403", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(testutil.NewRequest(http.MethodPost, target), testutil.AdminUser()))
	if rec.Code != http.StatusOK {
		t.Fatalf("admin publish status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res publisher.Result
	testutil.DecodeJSON(t, rec, &res)
	if !res.OK || res.Published != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestPublish_MissingEnquiry(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newRouter(db)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(testutil.NewRequest(http.MethodPost, "/64b7f0c2a1b2c3d4e5f60718/publish"), testutil.RCUser()))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestClose(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	e := fx.CreateEnquiry(ctx, "Ballast", testutil.EnquiryOpts{})
	router := newRouter(db)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/"+e.ID.Hex()+"/close", map[string]string{"conclusion": "<p>Permitted.</p>"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(req, testutil.RCUser()))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got models.Enquiry
	testutil.DecodeJSON(t, rec, &got)
	if got.IsOpen || got.Conclusion != "<p>Permitted.</p>" {
		t.Errorf("closed enquiry = %+v", got)
	}

	events, err := audit.New(db).ForEnquiry(ctx, e.ID, 10)
	if err != nil {
		t.Fatalf("ForEnquiry failed: %v", err)
	}
	if len(events) != 1 || events[0].EventType != audit.EventEnquiryClosed || events[0].ActorTeam != models.TeamRC {
		t.Errorf("audit trail = %+v", events)
	}
}

func TestStageLength(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	e := fx.CreateEnquiry(ctx, "Rig tension", testutil.EnquiryOpts{})
	router := newRouter(db)
	target := "/" + e.ID.Hex() + "/stage-length"

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"zero", map[string]int{"stage_length": 0}, http.StatusBadRequest},
		{"malformed", map[string]string{"stage_length": "six"}, http.StatusBadRequest},
		{"changed", map[string]int{"stage_length": 6}, http.StatusOK},
		{"unchanged", map[string]int{"stage_length": 6}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, testutil.WithUser(testutil.NewJSONRequest(t, http.MethodPut, target, tt.body), testutil.AdminUser()))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

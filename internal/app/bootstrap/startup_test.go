package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	userstore "github.com/dalemusser/rulepost/internal/app/store/users"
	"github.com/dalemusser/rulepost/internal/app/system/auth"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"github.com/dalemusser/rulepost/internal/testutil"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func testAppConfig() AppConfig {
	return AppConfig{
		MongoURI:           "mongodb://localhost:27017",
		SessionKey:         "test-session-key-0123456789abcdefghijklmnop",
		SessionName:        "rulepost-test",
		SessionMaxAge:      time.Hour,
		SlotTimeout:        time.Minute,
		SubmissionCooldown: time.Second,
		MailFrom:           "send@rulepost.test",
		BaseURL:            "http://localhost:3000",
	}
}

func TestEnsureAdmin_CreatesNew(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	deps := DBDeps{RulePostMongoDatabase: db}
	if err := ensureAdmin(ctx, deps, "Chair@Test.com", testLogger()); err != nil {
		t.Fatalf("ensureAdmin failed: %v", err)
	}

	var user models.User
	if err := db.Collection("users").FindOne(ctx, bson.M{"email": "chair@test.com"}).Decode(&user); err != nil {
		t.Fatalf("failed to find created user: %v", err)
	}
	if user.Role != models.RoleAdmin {
		t.Errorf("expected role admin, got %q", user.Role)
	}
	if user.Status != userstore.StatusActive {
		t.Errorf("expected status active, got %q", user.Status)
	}
	if user.Team != "" {
		t.Errorf("admin should have no team, got %q", user.Team)
	}
}

func TestEnsureAdmin_PromotesExisting(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	existing := fx.CreateUser(ctx, "Race Officer", "officer@test.com", models.RoleUser, models.TeamRC, false)

	if err := ensureAdmin(ctx, DBDeps{RulePostMongoDatabase: db}, "officer@test.com", testLogger()); err != nil {
		t.Fatalf("ensureAdmin failed: %v", err)
	}

	var user models.User
	if err := db.Collection("users").FindOne(ctx, bson.M{"_id": existing.ID}).Decode(&user); err != nil {
		t.Fatalf("failed to find user: %v", err)
	}
	if user.Role != models.RoleAdmin {
		t.Errorf("expected role admin, got %q", user.Role)
	}
	if user.Team != models.TeamRC {
		t.Errorf("promotion must keep the team, got %q", user.Team)
	}
}

func TestEnsureAdmin_AlreadyAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateUser(ctx, "Chair", "chair@test.com", models.RoleAdmin, "", false)

	if err := ensureAdmin(ctx, DBDeps{RulePostMongoDatabase: db}, "chair@test.com", testLogger()); err != nil {
		t.Fatalf("ensureAdmin failed: %v", err)
	}
	n, err := db.Collection("users").CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 user, got %d", n)
	}
}

func TestValidateConfig(t *testing.T) {
	dir := t.TempDir()
	badCal := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(badCal, []byte("timezone: Mars/Olympus\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	goodCal := filepath.Join(dir, "good.yaml")
	if err := os.WriteFile(goodCal, []byte("timezone: Europe/London\nrace_date: \"2027-07-01\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{"defaults", func(*AppConfig) {}, false},
		{"calendar file", func(c *AppConfig) { c.CalendarFile = goodCal }, false},
		{"bad uri", func(c *AppConfig) { c.MongoURI = "postgres://nope" }, true},
		{"zero slot timeout", func(c *AppConfig) { c.SlotTimeout = 0 }, true},
		{"negative cooldown", func(c *AppConfig) { c.SubmissionCooldown = -time.Second }, true},
		{"bad smtp port", func(c *AppConfig) { c.MailSMTPHost = "smtp.test"; c.MailSMTPPort = 70000 }, true},
		{"bad audit destination", func(c *AppConfig) { c.AuditAdmin = "syslog" }, true},
		{"unknown timezone", func(c *AppConfig) { c.CalendarFile = badCal }, true},
		{"missing calendar", func(c *AppConfig) { c.CalendarFile = filepath.Join(dir, "none.yaml") }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testAppConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(&config.CoreConfig{}, cfg, testLogger())
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildHandler_Routes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	appCfg := testAppConfig()
	deps := DBDeps{RulePostMongoClient: db.Client(), RulePostMongoDatabase: db}
	svc, err := NewServices(appCfg, deps, testLogger())
	if err != nil {
		t.Fatalf("NewServices failed: %v", err)
	}
	defer svc.Close()
	deps.Services = svc

	h, err := BuildHandler(&config.CoreConfig{Env: "dev"}, appCfg, deps, testLogger())
	if err != nil {
		t.Fatalf("BuildHandler failed: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drafts", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous drafts status = %d, want 401", rec.Code)
	}

	// sign in with a cookie from a manager sharing the key
	member := fx.CreateTeamMember(ctx, "NZ")
	sm, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, "", time.Hour, false, testLogger())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	login := httptest.NewRecorder()
	if err := sm.SignIn(login, httptest.NewRequest(http.MethodPost, "/", nil), auth.SessionUser{
		ID: member.ID.Hex(), Name: member.FullName, Role: member.Role, Team: member.Team,
	}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/drafts", nil)
	for _, c := range login.Result().Cookies() {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("signed-in drafts status = %d, body %s", rec.Code, rec.Body.String())
	}

	// a disabled team loses access on the next request
	if _, err := userstore.New(db).DisableTeam(ctx, "NZ"); err != nil {
		t.Fatalf("DisableTeam: %v", err)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("disabled member status = %d, want 401", rec.Code)
	}
}

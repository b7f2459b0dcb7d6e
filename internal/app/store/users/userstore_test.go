package userstore_test

import (
	"errors"
	"testing"

	userstore "github.com/dalemusser/rulepost/internal/app/store/users"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"github.com/dalemusser/rulepost/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create_Defaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		FullName: "  Ana Pérez ",
		Email:    "Ana@Example.COM",
		Team:     " luna ",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.FullName != "Ana Pérez" {
		t.Errorf("FullName: got %q, want %q", created.FullName, "Ana Pérez")
	}
	if created.FullNameCI == "" {
		t.Error("expected FullNameCI to be set")
	}
	if created.Email != "ana@example.com" {
		t.Errorf("Email: got %q, want %q", created.Email, "ana@example.com")
	}
	if created.Team != "LUNA" {
		t.Errorf("Team: got %q, want %q", created.Team, "LUNA")
	}
	if created.Role != models.RoleUser {
		t.Errorf("Role: got %q, want %q", created.Role, models.RoleUser)
	}
	if created.Status != userstore.StatusActive {
		t.Errorf("Status: got %q, want %q", created.Status, userstore.StatusActive)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestStore_Create_InvalidRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Create(ctx, models.User{FullName: "X", Email: "x@example.com", Role: "leader"})
	if err == nil {
		t.Fatal("expected error for invalid role")
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.GetByID(ctx, primitive.NewObjectID())
	if !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestStore_GetByEmail_CaseInsensitive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{FullName: "Bo", Email: "bo@example.com", Team: "SOL"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.GetByEmail(ctx, "BO@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("got id %v, want %v", got.ID, created.ID)
	}
}

func TestStore_ListNotificationRecipients(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	mustCreate := func(u models.User) models.User {
		t.Helper()
		out, err := store.Create(ctx, u)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		return out
	}

	on := mustCreate(models.User{FullName: "On", Email: "on@example.com", EmailNotificationsOn: true})
	mustCreate(models.User{FullName: "Off", Email: "off@example.com"})
	mustCreate(models.User{FullName: "Gone", Email: "gone@example.com", EmailNotificationsOn: true, Status: userstore.StatusDisabled})

	got, err := store.ListNotificationRecipients(ctx)
	if err != nil {
		t.Fatalf("ListNotificationRecipients failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != on.ID {
		t.Fatalf("got %v, want only %v", got, on.ID)
	}

	ids, err := store.ListActiveIDs(ctx)
	if err != nil {
		t.Fatalf("ListActiveIDs failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("active ids: got %d, want 2", len(ids))
	}
}

func TestStore_SetEmailNotifications(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{FullName: "Cy", Email: "cy@example.com"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.SetEmailNotifications(ctx, u.ID, true); err != nil {
		t.Fatalf("SetEmailNotifications failed: %v", err)
	}
	got, err := store.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !got.EmailNotificationsOn {
		t.Error("expected notifications on")
	}

	if err := store.SetEmailNotifications(ctx, primitive.NewObjectID(), true); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestStore_DisableTeam(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, email := range []string{"a@nz.example", "b@nz.example"} {
		if _, err := store.Create(ctx, models.User{FullName: email, Email: email, Team: "nz"}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if _, err := store.Create(ctx, models.User{FullName: "Other", Email: "o@gb.example", Team: "GB"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	n, err := store.DisableTeam(ctx, "NZ")
	if err != nil {
		t.Fatalf("DisableTeam failed: %v", err)
	}
	if n != 2 {
		t.Errorf("disabled %d, want 2", n)
	}
	ids, err := store.ListActiveIDs(ctx)
	if err != nil {
		t.Fatalf("ListActiveIDs failed: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("active ids: got %d, want 1", len(ids))
	}
}

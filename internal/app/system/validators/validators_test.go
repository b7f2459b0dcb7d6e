package validators_test

import (
	"testing"
	"time"

	"github.com/dalemusser/rulepost/internal/app/system/validators"
	"github.com/dalemusser/rulepost/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("first EnsureAll failed: %v", err)
	}
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesCollections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames failed: %v", err)
	}
	have := map[string]bool{}
	for _, n := range names {
		have[n] = true
	}
	for _, want := range []string{
		"users", "enquiries", "responses", "comments", "drafts",
		"post_meta", "publish_events", "unread_posts", "audit_events",
	} {
		if !have[want] {
			t.Errorf("collection %q not created", want)
		}
	}
}

func TestEnsureAll_UserValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	users := db.Collection("users")
	now := time.Now().UTC()

	tests := []struct {
		name    string
		doc     bson.M
		wantErr bool
	}{
		{
			name: "valid member",
			doc: bson.M{"_id": primitive.NewObjectID(), "full_name": "Kate", "email": "kate@example.com",
				"role": "user", "team": "NZ", "status": "active", "created_at": now},
		},
		{
			name: "status optional",
			doc: bson.M{"_id": primitive.NewObjectID(), "full_name": "Luca", "email": "luca@example.com",
				"role": "admin"},
		},
		{
			name:    "missing email",
			doc:     bson.M{"_id": primitive.NewObjectID(), "full_name": "Nobody", "role": "user"},
			wantErr: true,
		},
		{
			name: "unknown role",
			doc: bson.M{"_id": primitive.NewObjectID(), "full_name": "Root", "email": "root@example.com",
				"role": "superuser"},
			wantErr: true,
		},
		{
			name: "unknown status",
			doc: bson.M{"_id": primitive.NewObjectID(), "full_name": "Sam", "email": "sam@example.com",
				"role": "user", "status": "suspended"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := users.InsertOne(ctx, tt.doc)
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestEnsureAll_EnquiryValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	enquiries := db.Collection("enquiries")

	ok := bson.M{"enquiry_number": 1, "title": "Mast rake", "round_number": 1,
		"is_open": true, "is_published": false, "stage_length": 0}
	if _, err := enquiries.InsertOne(ctx, ok); err != nil {
		t.Errorf("valid enquiry rejected: %v", err)
	}

	untitled := bson.M{"enquiry_number": 2, "title": "", "round_number": 1,
		"is_open": true, "is_published": false}
	if _, err := enquiries.InsertOne(ctx, untitled); err != nil {
		t.Errorf("untitled enquiry rejected: %v", err)
	}

	numberless := bson.M{"title": "Boom", "round_number": 1, "is_open": true, "is_published": false}
	if _, err := enquiries.InsertOne(ctx, numberless); err == nil {
		t.Error("enquiry without number accepted")
	}

	zeroRound := bson.M{"enquiry_number": 3, "title": "Hull", "round_number": 0,
		"is_open": true, "is_published": false}
	if _, err := enquiries.InsertOne(ctx, zeroRound); err == nil {
		t.Error("round 0 accepted")
	}
}

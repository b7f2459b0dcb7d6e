package posts_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/rulepost/internal/app/posts"
	counterstore "github.com/dalemusser/rulepost/internal/app/store/counters"
	draftstore "github.com/dalemusser/rulepost/internal/app/store/drafts"
	enquirystore "github.com/dalemusser/rulepost/internal/app/store/enquiries"
	"github.com/dalemusser/rulepost/internal/app/system/apperr"
	"github.com/dalemusser/rulepost/internal/app/system/attachments"
	"github.com/dalemusser/rulepost/internal/app/system/ratelimit"
	"github.com/dalemusser/rulepost/internal/app/system/validators"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"github.com/dalemusser/rulepost/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newService(db *mongo.Database, files attachments.Store) *posts.Service {
	return posts.New(db, files, nil, zap.NewNop())
}

func countDocs(t *testing.T, ctx context.Context, db *mongo.Database, coll string, filter bson.M) int64 {
	t.Helper()
	n, err := db.Collection(coll).CountDocuments(ctx, filter)
	if err != nil {
		t.Fatalf("count %s failed: %v", coll, err)
	}
	return n
}

func TestSubmit_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	svc := newService(db, attachments.NewMemStore())
	team := testutil.TeamUser("NZ").Caller()
	parent := primitive.NewObjectID().Hex()

	tests := []struct {
		name string
		req  posts.SubmitRequest
	}{
		{"unknown type", posts.SubmitRequest{PostType: "reply", PostText: "x"}},
		{"empty enquiry", posts.SubmitRequest{PostType: models.PostTypeEnquiry, Title: "t", PostText: "<p> </p>"}},
		{"response without parent", posts.SubmitRequest{PostType: models.PostTypeResponse, PostText: "x"}},
		{"comment with one parent", posts.SubmitRequest{PostType: models.PostTypeComment, PostText: "x", ParentIDs: []string{parent}}},
		{"comment with attachment", posts.SubmitRequest{
			PostType: models.PostTypeComment, PostText: "x", ParentIDs: []string{parent, parent},
			Attachments: []attachments.Incoming{{Name: "a.pdf", Path: "responses_temp/x/a.pdf"}},
		}},
		{"bad parent id", posts.SubmitRequest{PostType: models.PostTypeResponse, PostText: "x", ParentIDs: []string{"nope"}}},
		{"long title", posts.SubmitRequest{PostType: models.PostTypeEnquiry, Title: strings.Repeat("a", 201), PostText: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Submit(ctx, team, tt.req); !apperr.Is(err, apperr.InvalidArgument) {
				t.Errorf("got %v, want invalid-argument", err)
			}
		})
	}

	noTeam := testutil.AdminUser().Caller()
	if _, err := svc.Submit(ctx, noTeam, posts.SubmitRequest{PostType: models.PostTypeEnquiry, PostText: "x"}); !apperr.Is(err, apperr.FailedPrecondition) {
		t.Errorf("caller without team: got %v, want failed-precondition", err)
	}

	// the title is optional, including under the collection validators
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	for _, title := range []string{"", "   "} {
		res, err := svc.Submit(ctx, team, posts.SubmitRequest{PostType: models.PostTypeEnquiry, Title: title, PostText: "<p>May the boom be carbon?</p>"})
		if err != nil {
			t.Fatalf("untitled enquiry %q: %v", title, err)
		}
		id, _ := primitive.ObjectIDFromHex(res.ID)
		e, err := enquirystore.New(db).GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if e.Title != "" {
			t.Errorf("title = %q, want empty", e.Title)
		}
	}
}

func TestSubmit_EnquiryNumbering(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// a stored enquiry ahead of the counter
	fx.CreateEnquiry(ctx, "Imported", testutil.EnquiryOpts{Number: 41})
	if err := counterstore.New(db).Set(ctx, models.CounterEnquiryNumber, 7); err != nil {
		t.Fatalf("counter set failed: %v", err)
	}

	svc := newService(db, nil)
	caller := testutil.TeamUser("NZ").Caller()
	res, err := svc.Submit(ctx, caller, posts.SubmitRequest{PostType: models.PostTypeEnquiry, Title: "Mast rake", PostText: "<p>Is a rake of 3° legal?</p>"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.EnquiryNumber != 42 {
		t.Errorf("enquiry number = %d, want 42", res.EnquiryNumber)
	}

	id, _ := primitive.ObjectIDFromHex(res.ID)
	e, err := enquirystore.New(db).GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if e.IsPublished || !e.IsOpen || e.TeamsCanRespond || e.TeamsCanComment {
		t.Errorf("new enquiry flags = %+v, want awaiting publication", e.Flags())
	}
	if e.RoundNumber != 1 || e.StageLength != models.DefaultStageLength {
		t.Errorf("round %d stage length %d", e.RoundNumber, e.StageLength)
	}

	d, err := draftstore.New(db).Get(ctx, id)
	if err != nil {
		t.Fatalf("draft missing: %v", err)
	}
	if d.AuthorTeam != "NZ" || d.PostType != models.PostTypeEnquiry {
		t.Errorf("draft = %+v", d)
	}

	res2, err := svc.Submit(ctx, caller, posts.SubmitRequest{PostType: models.PostTypeEnquiry, Title: "Boom", PostText: "x"})
	if err != nil {
		t.Fatalf("second Submit failed: %v", err)
	}
	if res2.EnquiryNumber != 43 {
		t.Errorf("second number = %d, want 43", res2.EnquiryNumber)
	}
}

func TestSubmit_ResponseRules(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	svc := newService(db, nil)
	nz := testutil.TeamUser("NZ").Caller()

	closed := fx.CreateEnquiry(ctx, "Closed", testutil.EnquiryOpts{Closed: true})
	unpublished := fx.CreateEnquiry(ctx, "Pending", testutil.EnquiryOpts{Unpublished: true})
	commenting := fx.CreateEnquiry(ctx, "Commenting", testutil.EnquiryOpts{
		Stage: models.StageFlags{IsOpen: true, IsPublished: true, TeamsCanComment: true},
	})

	for name, e := range map[string]models.Enquiry{"closed": closed, "unpublished": unpublished, "comment window": commenting} {
		_, err := svc.Submit(ctx, nz, posts.SubmitRequest{PostType: models.PostTypeResponse, PostText: "x", ParentIDs: []string{e.ID.Hex()}})
		if !apperr.Is(err, apperr.FailedPrecondition) {
			t.Errorf("%s: got %v, want failed-precondition", name, err)
		}
	}

	// the committee may respond outside the respond window, into the next round
	res, err := svc.Submit(ctx, testutil.RCUser().Caller(), posts.SubmitRequest{
		PostType: models.PostTypeResponse, PostText: "Ruling", ParentIDs: []string{commenting.ID.Hex()},
	})
	if err != nil {
		t.Fatalf("RC Submit failed: %v", err)
	}
	if res.RoundNumber != 2 {
		t.Errorf("RC response round = %d, want 2", res.RoundNumber)
	}
}

func TestSubmit_SecondResponseInRoundConflicts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	svc := newService(db, nil)
	e := fx.CreateEnquiry(ctx, "Foil arms", testutil.EnquiryOpts{})
	req := posts.SubmitRequest{PostType: models.PostTypeResponse, PostText: "First", ParentIDs: []string{e.ID.Hex()}}

	if _, err := svc.Submit(ctx, testutil.TeamUser("NZ").Caller(), req); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	// another member of the same team
	req.PostText = "Second"
	_, err := svc.Submit(ctx, testutil.TeamUser("NZ").Caller(), req)
	if !apperr.Is(err, apperr.AlreadyExists) {
		t.Fatalf("second Submit: got %v, want already-exists", err)
	}

	if n := countDocs(t, ctx, db, "responses", bson.M{"enquiry_id": e.ID, "round_number": 1}); n != 1 {
		t.Errorf("responses = %d, want 1", n)
	}
	got := getEnquiry(t, ctx, db, e.ID)
	if got.RoundNumber != e.RoundNumber || got.Flags() != e.Flags() {
		t.Errorf("enquiry changed: %+v", got.Flags())
	}

	// a different team is unaffected
	if _, err := svc.Submit(ctx, testutil.TeamUser("GB").Caller(), req); err != nil {
		t.Errorf("other team Submit failed: %v", err)
	}
}

func TestSubmit_WritesEnquiry(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	svc := newService(db, nil)
	responding := fx.CreateEnquiry(ctx, "Rudder", testutil.EnquiryOpts{})
	commenting := fx.CreateEnquiry(ctx, "Daggerboard", testutil.EnquiryOpts{
		Stage: models.StageFlags{IsOpen: true, IsPublished: true, TeamsCanComment: true},
	})
	resp := fx.CreateResponse(ctx, commenting, "GB", 1, true)

	if _, err := svc.Submit(ctx, testutil.TeamUser("NZ").Caller(), posts.SubmitRequest{
		PostType: models.PostTypeResponse, PostText: "Yes", ParentIDs: []string{responding.ID.Hex()},
	}); err != nil {
		t.Fatalf("response Submit failed: %v", err)
	}
	if _, err := svc.Submit(ctx, testutil.TeamUser("NZ").Caller(), posts.SubmitRequest{
		PostType: models.PostTypeComment, PostText: "Agree", ParentIDs: []string{commenting.ID.Hex(), resp.ID.Hex()},
	}); err != nil {
		t.Fatalf("comment Submit failed: %v", err)
	}

	// a publish racing either submission conflicts on this write
	for _, e := range []models.Enquiry{responding, commenting} {
		got := getEnquiry(t, ctx, db, e.ID)
		if got.SubmissionSeq != 1 {
			t.Errorf("%s: submission_seq = %d, want 1", e.Title, got.SubmissionSeq)
		}
		if got.RoundNumber != e.RoundNumber || got.Flags() != e.Flags() {
			t.Errorf("%s: stage changed: %+v", e.Title, got.Flags())
		}
	}
}

func getEnquiry(t *testing.T, ctx context.Context, db *mongo.Database, id primitive.ObjectID) models.Enquiry {
	t.Helper()
	e, err := enquirystore.New(db).GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	return e
}

func TestSubmit_CommentRules(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	svc := newService(db, nil)
	e := fx.CreateEnquiry(ctx, "Jib", testutil.EnquiryOpts{
		Round: 2,
		Stage: models.StageFlags{IsOpen: true, IsPublished: true, TeamsCanComment: true},
	})
	current := fx.CreateResponse(ctx, e, "NZ", 2, true)
	old := fx.CreateResponse(ctx, e, "NZ", 1, true)
	rc := fx.CreateResponse(ctx, e, models.TeamRC, 2, true)
	draft := fx.CreateResponse(ctx, e, "FR", 2, false)

	gb := testutil.TeamUser("GB").Caller()
	comment := func(r models.Response) error {
		_, err := svc.Submit(ctx, gb, posts.SubmitRequest{
			PostType: models.PostTypeComment, PostText: "Agree", ParentIDs: []string{e.ID.Hex(), r.ID.Hex()},
		})
		return err
	}

	if err := comment(current); err != nil {
		t.Fatalf("comment on current response failed: %v", err)
	}
	for name, r := range map[string]models.Response{"old round": old, "committee": rc, "unpublished": draft} {
		if err := comment(r); !apperr.Is(err, apperr.FailedPrecondition) {
			t.Errorf("%s: got %v, want failed-precondition", name, err)
		}
	}
	if n := countDocs(t, ctx, db, "comments", bson.M{"response_id": current.ID}); n != 1 {
		t.Errorf("comments = %d, want 1", n)
	}
}

func TestSubmit_Attachments(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	files := attachments.NewMemStore()
	svc := newService(db, files)
	user := testutil.TeamUser("NZ")
	caller := user.Caller()
	e := fx.CreateEnquiry(ctx, "Sails", testutil.EnquiryOpts{})

	prefix, _ := attachments.TempPrefix(models.PostTypeResponse, caller.UserID)
	files.PutSized(prefix+"plan.pdf", "application/pdf", 1024)

	res, err := svc.Submit(ctx, caller, posts.SubmitRequest{
		PostType:    models.PostTypeResponse,
		ParentIDs:   []string{e.ID.Hex()},
		Attachments: []attachments.Incoming{{Name: "sail plan.pdf", Path: prefix + "plan.pdf"}},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	id, _ := primitive.ObjectIDFromHex(res.ID)
	want := attachments.ResponseFolder(e.ID, id) + "/sail_plan.pdf"
	if _, err := files.Stat(ctx, want); err != nil {
		t.Errorf("attachment not moved to %s: %v", want, err)
	}
	if _, err := files.Stat(ctx, prefix+"plan.pdf"); !errors.Is(err, attachments.ErrNotFound) {
		t.Errorf("temp file still present: %v", err)
	}

	// another user's temp path is refused
	other, _ := attachments.TempPrefix(models.PostTypeResponse, primitive.NewObjectID())
	files.PutSized(other+"x.pdf", "application/pdf", 10)
	_, err = svc.Submit(ctx, testutil.TeamUser("GB").Caller(), posts.SubmitRequest{
		PostType:    models.PostTypeResponse,
		ParentIDs:   []string{e.ID.Hex()},
		Attachments: []attachments.Incoming{{Name: "x.pdf", Path: other + "x.pdf"}},
	})
	if !apperr.Is(err, apperr.PermissionDenied) {
		t.Errorf("foreign temp path: got %v, want permission-denied", err)
	}
}

func TestSubmit_Cooldown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cd := ratelimit.NewMemoryCooldown(time.Minute)
	defer cd.Stop()
	svc := posts.New(db, nil, cd, zap.NewNop())
	caller := testutil.TeamUser("NZ").Caller()
	req := posts.SubmitRequest{PostType: models.PostTypeEnquiry, Title: "A", PostText: "x"}

	if _, err := svc.Submit(ctx, caller, req); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	if _, err := svc.Submit(ctx, caller, req); !apperr.Is(err, apperr.ResourceExhausted) {
		t.Errorf("second Submit: got %v, want resource-exhausted", err)
	}
	if _, err := svc.Submit(ctx, testutil.TeamUser("NZ").Caller(), req); err != nil {
		t.Errorf("other user Submit failed: %v", err)
	}
}

func TestDeleteDraft_ResponseFreesGuard(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	files := attachments.NewMemStore()
	svc := newService(db, files)
	e := fx.CreateEnquiry(ctx, "Rig", testutil.EnquiryOpts{})
	nz := testutil.TeamUser("NZ").Caller()
	req := posts.SubmitRequest{PostType: models.PostTypeResponse, PostText: "x", ParentIDs: []string{e.ID.Hex()}}

	res, err := svc.Submit(ctx, nz, req)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	id, _ := primitive.ObjectIDFromHex(res.ID)
	files.PutSized(attachments.ResponseFolder(e.ID, id)+"/a.pdf", "application/pdf", 1)

	if err := svc.DeleteDraft(ctx, testutil.TeamUser("GB").Caller(), models.PostTypeResponse, id); !apperr.Is(err, apperr.PermissionDenied) {
		t.Errorf("other team delete: got %v, want permission-denied", err)
	}
	if err := svc.DeleteDraft(ctx, nz, models.PostTypeComment, id); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("wrong type: got %v, want not-found", err)
	}
	if err := svc.DeleteDraft(ctx, nz, models.PostTypeResponse, id); err != nil {
		t.Fatalf("DeleteDraft failed: %v", err)
	}

	for _, coll := range []string{"responses", "post_meta", "drafts"} {
		if n := countDocs(t, ctx, db, coll, bson.M{"_id": id}); n != 0 {
			t.Errorf("%s still has the post", coll)
		}
	}
	if n := countDocs(t, ctx, db, "response_guards", bson.M{"response_id": id}); n != 0 {
		t.Error("guard not freed")
	}
	if len(files.Paths()) != 0 {
		t.Errorf("attachments left: %v", files.Paths())
	}

	if _, err := svc.Submit(ctx, nz, req); err != nil {
		t.Errorf("resubmit after delete failed: %v", err)
	}
}

func TestDeleteDraft_PublishedRefused(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	svc := newService(db, nil)
	e := fx.CreateEnquiry(ctx, "Hull", testutil.EnquiryOpts{})
	r := fx.CreateResponse(ctx, e, "NZ", 1, true)

	if err := svc.DeleteDraft(ctx, testutil.AdminUser().Caller(), models.PostTypeResponse, r.ID); !apperr.Is(err, apperr.FailedPrecondition) {
		t.Errorf("published response: got %v, want failed-precondition", err)
	}
	if n := countDocs(t, ctx, db, "responses", bson.M{"_id": r.ID}); n != 1 {
		t.Error("published response was deleted")
	}
}

func TestDeleteDraft_EnquiryRecomputesCounter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	svc := newService(db, nil)
	nz := testutil.TeamUser("NZ").Caller()
	first, err := svc.Submit(ctx, nz, posts.SubmitRequest{PostType: models.PostTypeEnquiry, Title: "One", PostText: "x"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	second, err := svc.Submit(ctx, nz, posts.SubmitRequest{PostType: models.PostTypeEnquiry, Title: "Two", PostText: "x"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	id, _ := primitive.ObjectIDFromHex(second.ID)
	if err := svc.DeleteDraft(ctx, nz, models.PostTypeEnquiry, id); err != nil {
		t.Fatalf("DeleteDraft failed: %v", err)
	}
	n, err := counterstore.New(db).Get(ctx, models.CounterEnquiryNumber)
	if err != nil {
		t.Fatalf("counter get failed: %v", err)
	}
	if n != first.EnquiryNumber {
		t.Errorf("counter = %d, want %d", n, first.EnquiryNumber)
	}

	drafts, err := svc.ListDrafts(ctx, nz)
	if err != nil {
		t.Fatalf("ListDrafts failed: %v", err)
	}
	if len(drafts) != 1 || drafts[0].ID.Hex() != first.ID {
		t.Errorf("drafts = %+v, want only the first enquiry", drafts)
	}
}

func TestPostAuthor(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	svc := newService(db, nil)
	author := testutil.TeamUser("IT").Caller()
	res, err := svc.Submit(ctx, author, posts.SubmitRequest{PostType: models.PostTypeEnquiry, Title: "T", PostText: "x"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	id, _ := primitive.ObjectIDFromHex(res.ID)

	if _, err := svc.PostAuthor(ctx, testutil.TeamUser("GB").Caller(), id); !apperr.Is(err, apperr.PermissionDenied) {
		t.Errorf("team caller: got %v, want permission-denied", err)
	}
	m, err := svc.PostAuthor(ctx, testutil.RCUser().Caller(), id)
	if err != nil {
		t.Fatalf("PostAuthor failed: %v", err)
	}
	if m.AuthorTeam != "IT" || m.AuthorUID != author.UserID {
		t.Errorf("meta = %+v", m)
	}
}

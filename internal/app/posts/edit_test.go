package posts_test

import (
	"errors"
	"testing"

	"github.com/dalemusser/rulepost/internal/app/posts"
	commentstore "github.com/dalemusser/rulepost/internal/app/store/comments"
	responsestore "github.com/dalemusser/rulepost/internal/app/store/responses"
	"github.com/dalemusser/rulepost/internal/app/system/apperr"
	"github.com/dalemusser/rulepost/internal/app/system/attachments"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"github.com/dalemusser/rulepost/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEditDraft_Enquiry(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	svc := newService(db, nil)
	res, err := svc.Submit(ctx, testutil.TeamUser("NZ").Caller(), posts.SubmitRequest{
		PostType: models.PostTypeEnquiry, Title: "Mast", PostText: "<p>First wording</p>",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	id, _ := primitive.ObjectIDFromHex(res.ID)
	edit := posts.EditRequest{Title: "  Mast Rake ", PostText: "<p>Second wording</p>"}

	// another team may not touch it
	_, err = svc.EditDraft(ctx, testutil.TeamUser("GB").Caller(), models.PostTypeEnquiry, id, edit)
	if !apperr.Is(err, apperr.PermissionDenied) {
		t.Fatalf("other team: got %v, want permission-denied", err)
	}
	_, err = svc.EditDraft(ctx, testutil.TeamUser("NZ").Caller(), models.PostTypeResponse, id, edit)
	if !apperr.Is(err, apperr.NotFound) {
		t.Errorf("wrong type: got %v, want not-found", err)
	}

	// any member of the author's team may
	if _, err := svc.EditDraft(ctx, testutil.TeamUser("NZ").Caller(), models.PostTypeEnquiry, id, edit); err != nil {
		t.Fatalf("EditDraft failed: %v", err)
	}
	got := getEnquiry(t, ctx, db, id)
	if got.Title != "Mast Rake" || got.TitleCI != "mast rake" {
		t.Errorf("title = %q / %q", got.Title, got.TitleCI)
	}
	if got.BodyText != "<p>Second wording</p>" {
		t.Errorf("body = %q", got.BodyText)
	}
	if got.EnquiryNumber != res.EnquiryNumber || got.IsPublished {
		t.Errorf("number or stage changed: %+v", got)
	}

	_, err = svc.EditDraft(ctx, testutil.TeamUser("NZ").Caller(), models.PostTypeEnquiry, id, posts.EditRequest{PostText: "<p> </p>"})
	if !apperr.Is(err, apperr.InvalidArgument) {
		t.Errorf("blank edit: got %v, want invalid-argument", err)
	}
}

func TestEditDraft_ResponseAttachments(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	files := attachments.NewMemStore()
	svc := newService(db, files)
	caller := testutil.TeamUser("NZ").Caller()
	e := fx.CreateEnquiry(ctx, "Sails", testutil.EnquiryOpts{})

	prefix, _ := attachments.TempPrefix(models.PostTypeResponse, caller.UserID)
	files.PutSized(prefix+"plan.pdf", "application/pdf", 1024)
	res, err := svc.Submit(ctx, caller, posts.SubmitRequest{
		PostType:    models.PostTypeResponse,
		ParentIDs:   []string{e.ID.Hex()},
		Attachments: []attachments.Incoming{{Name: "plan.pdf", Path: prefix + "plan.pdf"}},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	id, _ := primitive.ObjectIDFromHex(res.ID)
	folder := attachments.ResponseFolder(e.ID, id)

	// dropping the only attachment from a post without text empties it
	_, err = svc.EditDraft(ctx, caller, models.PostTypeResponse, id, posts.EditRequest{RemoveAttachments: []string{"plan.pdf"}})
	if !apperr.Is(err, apperr.InvalidArgument) {
		t.Fatalf("empty edit: got %v, want invalid-argument", err)
	}
	if _, err := files.Stat(ctx, folder+"/plan.pdf"); err != nil {
		t.Fatalf("refused edit removed the attachment: %v", err)
	}

	files.PutSized(prefix+"rig.pdf", "application/pdf", 2048)
	_, err = svc.EditDraft(ctx, caller, models.PostTypeResponse, id, posts.EditRequest{
		PostText:          "<p>See the rig drawing.</p>",
		Attachments:       []attachments.Incoming{{Name: "rig.pdf", Path: prefix + "rig.pdf"}},
		RemoveAttachments: []string{"plan.pdf"},
	})
	if err != nil {
		t.Fatalf("EditDraft failed: %v", err)
	}

	r, err := responsestore.New(db).GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if r.PostText != "<p>See the rig drawing.</p>" {
		t.Errorf("post text = %q", r.PostText)
	}
	if len(r.Attachments) != 1 || r.Attachments[0].Path != folder+"/rig.pdf" {
		t.Errorf("attachments = %+v", r.Attachments)
	}
	if _, err := files.Stat(ctx, folder+"/plan.pdf"); !errors.Is(err, attachments.ErrNotFound) {
		t.Errorf("removed attachment still stored: %v", err)
	}
}

func TestEditDraft_PublishedRefused(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	svc := newService(db, nil)
	e := fx.CreateEnquiry(ctx, "Hull", testutil.EnquiryOpts{})
	r := fx.CreateResponse(ctx, e, "NZ", 1, true)

	_, err := svc.EditDraft(ctx, testutil.TeamUser("NZ").Caller(), models.PostTypeResponse, r.ID, posts.EditRequest{PostText: "Changed"})
	if !apperr.Is(err, apperr.FailedPrecondition) {
		t.Errorf("published response: got %v, want failed-precondition", err)
	}
	got, err := responsestore.New(db).GetByID(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.PostText != r.PostText {
		t.Errorf("published text changed to %q", got.PostText)
	}

	// the fixture enquiry has no author record
	_, err = svc.EditDraft(ctx, testutil.AdminUser().Caller(), models.PostTypeEnquiry, e.ID, posts.EditRequest{Title: "Keel", PostText: "x"})
	if !apperr.Is(err, apperr.NotFound) {
		t.Errorf("enquiry without author: got %v, want not-found", err)
	}
}

func TestEditDraft_Comment(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	svc := newService(db, attachments.NewMemStore())
	e := fx.CreateEnquiry(ctx, "Jib", testutil.EnquiryOpts{
		Stage: models.StageFlags{IsOpen: true, IsPublished: true, TeamsCanComment: true},
	})
	c := fx.CreateComment(ctx, fx.CreateResponse(ctx, e, "NZ", 1, true), "GB")
	gb := testutil.TeamUser("GB").Caller()

	if _, err := svc.EditDraft(ctx, gb, models.PostTypeComment, c.ID, posts.EditRequest{PostText: "<p>Disagree</p>"}); err != nil {
		t.Fatalf("EditDraft failed: %v", err)
	}
	got, err := commentstore.New(db).GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.PostText != "<p>Disagree</p>" || got.ResponseID != c.ResponseID {
		t.Errorf("comment = %+v", got)
	}

	_, err = svc.EditDraft(ctx, gb, models.PostTypeComment, c.ID, posts.EditRequest{PostText: " "})
	if !apperr.Is(err, apperr.InvalidArgument) {
		t.Errorf("blank comment: got %v, want invalid-argument", err)
	}
	_, err = svc.EditDraft(ctx, gb, models.PostTypeComment, c.ID, posts.EditRequest{
		PostText:    "x",
		Attachments: []attachments.Incoming{{Name: "a.pdf", Path: "tmp/a.pdf"}},
	})
	if !apperr.Is(err, apperr.InvalidArgument) {
		t.Errorf("comment attachment: got %v, want invalid-argument", err)
	}
}

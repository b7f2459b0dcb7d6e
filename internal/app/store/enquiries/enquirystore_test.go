package enquirystore_test

import (
	"errors"
	"testing"

	enquirystore "github.com/dalemusser/rulepost/internal/app/store/enquiries"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"github.com/dalemusser/rulepost/internal/testutil"
)

func TestStore_NoteSubmission(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := enquirystore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	commentWindow := models.StageFlags{IsOpen: true, IsPublished: true, TeamsCanComment: true}
	committeeTurn := models.StageFlags{IsOpen: true, IsPublished: true}

	tests := []struct {
		name    string
		opts    testutil.EnquiryOpts
		round   int
		window  enquirystore.Window
		wantErr error
	}{
		{"respond window open", testutil.EnquiryOpts{}, 1, enquirystore.RespondWindow, nil},
		{"comment window open", testutil.EnquiryOpts{Stage: commentWindow}, 1, enquirystore.CommentWindow, nil},
		{"committee between windows", testutil.EnquiryOpts{Stage: committeeTurn}, 1, enquirystore.AnyWindow, nil},
		{"round moved on", testutil.EnquiryOpts{Round: 2}, 1, enquirystore.RespondWindow, enquirystore.ErrStageChanged},
		{"respond window closed", testutil.EnquiryOpts{Stage: commentWindow}, 1, enquirystore.RespondWindow, enquirystore.ErrStageChanged},
		{"comment window closed", testutil.EnquiryOpts{}, 1, enquirystore.CommentWindow, enquirystore.ErrStageChanged},
		{"unpublished", testutil.EnquiryOpts{Unpublished: true}, 1, enquirystore.AnyWindow, enquirystore.ErrStageChanged},
		{"closed", testutil.EnquiryOpts{Closed: true}, 1, enquirystore.AnyWindow, enquirystore.ErrStageChanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := fx.CreateEnquiry(ctx, tt.name, tt.opts)

			err := store.NoteSubmission(ctx, e.ID, tt.round, tt.window)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NoteSubmission: got %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("NoteSubmission failed: %v", err)
			}

			got, err := store.GetByID(ctx, e.ID)
			if err != nil {
				t.Fatalf("GetByID failed: %v", err)
			}
			want := int64(1)
			if tt.wantErr != nil {
				want = 0
			}
			if got.SubmissionSeq != want {
				t.Errorf("SubmissionSeq: got %d, want %d", got.SubmissionSeq, want)
			}
			if got.Flags() != e.Flags() {
				t.Errorf("stage flags changed: got %+v, want %+v", got.Flags(), e.Flags())
			}
		})
	}
}

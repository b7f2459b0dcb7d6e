package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/rulepost/internal/app/lifecycle"
	enquirystore "github.com/dalemusser/rulepost/internal/app/store/enquiries"
	guardstore "github.com/dalemusser/rulepost/internal/app/store/guards"
	responsestore "github.com/dalemusser/rulepost/internal/app/store/responses"
	"github.com/dalemusser/rulepost/internal/app/system/apperr"
	"github.com/dalemusser/rulepost/internal/app/system/attachments"
	"github.com/dalemusser/rulepost/internal/app/system/htmlsanitize"
	"github.com/dalemusser/rulepost/internal/app/system/txn"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	maxTitleLen = 200
	// enquiry numbers are retried when a concurrent submission took the
	// same number on a deployment without transactions
	maxNumberAttempts = 3
)

// SubmitRequest is a new post as sent by a client.
type SubmitRequest struct {
	PostType    string                 `json:"post_type"`
	Title       string                 `json:"title"`
	PostText    string                 `json:"post_text"`
	ParentIDs   []string               `json:"parent_ids"`
	Attachments []attachments.Incoming `json:"attachments"`
}

// SubmitResult identifies the stored draft.
type SubmitResult struct {
	ID            string `json:"id"`
	PostType      string `json:"post_type"`
	EnquiryNumber int    `json:"enquiry_number,omitempty"`
	RoundNumber   int    `json:"round_number,omitempty"`
}

type submission struct {
	postType string
	title    string
	text     string
	parents  []primitive.ObjectID
	files    []attachments.Incoming
}

func countFiles(in []attachments.Incoming) int {
	n := 0
	for _, a := range in {
		if strings.TrimSpace(a.Name) != "" && strings.TrimSpace(a.Path) != "" {
			n++
		}
	}
	return n
}

// validate checks the request shape. kept counts attachments a draft
// already carries. It does not touch the database.
func validate(req SubmitRequest, kept int) (submission, error) {
	sub := submission{
		postType: strings.TrimSpace(req.PostType),
		title:    strings.TrimSpace(req.Title),
		text:     htmlsanitize.Sanitize(req.PostText),
		files:    req.Attachments,
	}
	if !models.ValidPostType(sub.postType) {
		return sub, apperr.New(apperr.InvalidArgument, "Invalid or missing post type.")
	}
	if len(sub.title) > maxTitleLen {
		return sub, apperr.Newf(apperr.InvalidArgument, "Title must be at most %d characters.", maxTitleLen)
	}

	nFiles := countFiles(sub.files) + kept
	blank := htmlsanitize.IsBlank(sub.text)
	switch sub.postType {
	case models.PostTypeEnquiry:
		if len(req.ParentIDs) != 0 {
			return sub, apperr.New(apperr.InvalidArgument, "Enquiry must not have a parent.")
		}
	case models.PostTypeResponse:
		if len(req.ParentIDs) != 1 {
			return sub, apperr.New(apperr.InvalidArgument, "Response must contain one parent id.")
		}
	case models.PostTypeComment:
		if len(req.ParentIDs) != 2 {
			return sub, apperr.New(apperr.InvalidArgument, "Comment must contain two parent ids.")
		}
		if nFiles > 0 {
			return sub, apperr.New(apperr.InvalidArgument, "Comments must not have attachments.")
		}
		if blank {
			return sub, apperr.New(apperr.InvalidArgument, "Comment must contain text.")
		}
	}
	if sub.postType != models.PostTypeComment && blank && nFiles == 0 {
		return sub, apperr.New(apperr.InvalidArgument, "Post must contain either text or an attachment.")
	}

	for _, p := range req.ParentIDs {
		oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(p))
		if err != nil {
			return sub, apperr.Newf(apperr.InvalidArgument, "Invalid parent id %q.", p)
		}
		sub.parents = append(sub.parents, oid)
	}
	return sub, nil
}

// attachmentError maps attachment validation failures to caller errors.
func attachmentError(err error) error {
	switch {
	case errors.Is(err, attachments.ErrBadPath):
		return apperr.Wrap(apperr.PermissionDenied, err, "Invalid attachment path.")
	case errors.Is(err, attachments.ErrNotFound):
		return apperr.Wrap(apperr.NotFound, err, "Uploaded attachment not found.")
	case errors.Is(err, attachments.ErrTooLarge):
		return apperr.Wrap(apperr.FailedPrecondition, err, "Attachment too large.")
	case errors.Is(err, attachments.ErrBadType):
		return apperr.Wrap(apperr.FailedPrecondition, err, "Unsupported attachment type.")
	case errors.Is(err, attachments.ErrTotalSize):
		return apperr.Wrap(apperr.FailedPrecondition, err, "Total attachment size too large.")
	}
	return err
}

// Submit stores a new draft post. The post, its author record, its
// draft marker and (for responses) the round guard are written in one
// transaction; attachments are moved into place afterwards.
func (s *Service) Submit(ctx context.Context, caller models.Caller, req SubmitRequest) (SubmitResult, error) {
	team, err := callerTeam(caller)
	if err != nil {
		return SubmitResult{}, err
	}
	sub, err := validate(req, 0)
	if err != nil {
		return SubmitResult{}, err
	}

	if s.cooldown != nil {
		ok, err := s.cooldown.Acquire(ctx, "submit:"+caller.UserID.Hex())
		switch {
		case err != nil:
			s.log.Warn("submission cooldown unavailable", zap.Error(err))
		case !ok:
			return SubmitResult{}, apperr.New(apperr.ResourceExhausted, "Please wait a few seconds before submitting again.")
		}
	}

	validated, err := s.validateFiles(ctx, caller, sub)
	if err != nil {
		return SubmitResult{}, err
	}

	postID := primitive.NewObjectID()
	var res SubmitResult
	switch sub.postType {
	case models.PostTypeEnquiry:
		res, err = s.submitEnquiry(ctx, caller, team, postID, sub)
	case models.PostTypeResponse:
		res, err = s.submitResponse(ctx, caller, team, postID, sub)
	default:
		res, err = s.submitComment(ctx, caller, team, postID, sub)
	}
	if err != nil {
		return SubmitResult{}, err
	}

	if len(validated) > 0 {
		if err := s.storeAttachments(ctx, sub, postID, validated); err != nil {
			s.log.Error("post stored without its attachments",
				zap.String("post_id", postID.Hex()),
				zap.String("post_type", sub.postType),
				zap.Error(err))
			return res, apperr.Wrap(apperr.Internal, err, "The post was saved as a draft but its attachments could not be stored.")
		}
	}

	s.log.Info("post submitted",
		zap.String("post_id", res.ID),
		zap.String("post_type", res.PostType),
		zap.String("team", team),
		zap.Int("attachments", len(validated)))
	return res, nil
}

// validateFiles checks the caller's uploads named by sub. It writes nothing.
func (s *Service) validateFiles(ctx context.Context, caller models.Caller, sub submission) ([]attachments.Validated, error) {
	if countFiles(sub.files) == 0 {
		return nil, nil
	}
	if s.files == nil {
		return nil, apperr.New(apperr.FailedPrecondition, "Attachments are not available.")
	}
	prefix, err := attachments.TempPrefix(sub.postType, caller.UserID)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidArgument, err, "Attachments are not allowed on this post.")
	}
	validated, err := attachments.Validate(ctx, s.files, prefix, sub.files)
	if err != nil {
		return nil, attachmentError(err)
	}
	return validated, nil
}

// postFolder is where a post's attachments live.
func postFolder(sub submission, postID primitive.ObjectID) string {
	if sub.postType == models.PostTypeResponse {
		return attachments.ResponseFolder(sub.parents[0], postID)
	}
	return attachments.EnquiryFolder(postID)
}

func (s *Service) storeAttachments(ctx context.Context, sub submission, postID primitive.ObjectID, files []attachments.Validated) error {
	atts, err := attachments.MoveAll(ctx, s.files, postFolder(sub, postID), files)
	if err != nil {
		return err
	}
	if sub.postType == models.PostTypeResponse {
		return s.responses.SetAttachments(ctx, postID, atts)
	}
	return s.enquiries.SetAttachments(ctx, postID, atts)
}

// writeOwnership records the author and the team's draft marker.
func (s *Service) writeOwnership(ctx context.Context, caller models.Caller, team, postType string, postID primitive.ObjectID, parents []primitive.ObjectID, now time.Time) error {
	if err := s.meta.Insert(ctx, models.PostMeta{
		ID: postID, PostType: postType, AuthorUID: caller.UserID, AuthorTeam: team, CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("insert post meta: %w", err)
	}
	if err := s.drafts.Insert(ctx, models.Draft{
		ID: postID, PostType: postType, ParentIDs: parents, AuthorUID: caller.UserID, AuthorTeam: team, CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("insert draft: %w", err)
	}
	return nil
}

// nextEnquiryNumber reconciles the counter against the highest stored
// number and advances it.
func (s *Service) nextEnquiryNumber(ctx context.Context) (int, error) {
	current, err := s.counters.Get(ctx, models.CounterEnquiryNumber)
	if err != nil {
		return 0, err
	}
	stored, err := s.enquiries.MaxEnquiryNumber(ctx)
	if err != nil {
		return 0, err
	}
	next := max(current, stored) + 1
	if err := s.counters.Set(ctx, models.CounterEnquiryNumber, next); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Service) submitEnquiry(ctx context.Context, caller models.Caller, team string, postID primitive.ObjectID, sub submission) (SubmitResult, error) {
	flags := lifecycle.Flags(lifecycle.AwaitingPublish, false)
	var number int

	var err error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		err = txn.Run(ctx, s.db, s.log, func(tx context.Context) error {
			n, err := s.nextEnquiryNumber(tx)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			if _, err := s.enquiries.Insert(tx, models.Enquiry{
				ID:              postID,
				EnquiryNumber:   n,
				Title:           sub.title,
				BodyText:        sub.text,
				IsOpen:          flags.IsOpen,
				IsPublished:     flags.IsPublished,
				TeamsCanRespond: flags.TeamsCanRespond,
				TeamsCanComment: flags.TeamsCanComment,
				RoundNumber:     1,
				StageLength:     models.DefaultStageLength,
				CreatedAt:       now,
			}); err != nil {
				return err
			}
			number = n
			return s.writeOwnership(tx, caller, team, models.PostTypeEnquiry, postID, nil, now)
		})
		if !errors.Is(err, enquirystore.ErrDuplicateNumber) {
			break
		}
		s.log.Warn("enquiry number taken; retrying", zap.Int("attempt", attempt+1))
	}
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{ID: postID.Hex(), PostType: models.PostTypeEnquiry, EnquiryNumber: number, RoundNumber: 1}, nil
}

// loadOpenEnquiry reads the parent enquiry inside the transaction and
// checks it can take new posts.
func (s *Service) loadOpenEnquiry(ctx context.Context, id primitive.ObjectID) (models.Enquiry, error) {
	e, err := s.enquiries.GetByID(ctx, id)
	if errors.Is(err, enquirystore.ErrNotFound) {
		return e, apperr.New(apperr.FailedPrecondition, "No matching enquiry found.")
	}
	if err != nil {
		return e, err
	}
	if !e.IsOpen {
		return e, apperr.New(apperr.FailedPrecondition, "Enquiry is closed.")
	}
	if !e.IsPublished {
		return e, apperr.New(apperr.FailedPrecondition, "Enquiry has not been published yet.")
	}
	return e, nil
}

// noteSubmission writes the enquiry inside the submission transaction so
// that a publish moving the enquiry on at the same time conflicts with it.
func (s *Service) noteSubmission(ctx context.Context, e models.Enquiry, w enquirystore.Window) error {
	err := s.enquiries.NoteSubmission(ctx, e.ID, e.RoundNumber, w)
	if errors.Is(err, enquirystore.ErrStageChanged) {
		return apperr.Wrap(apperr.FailedPrecondition, err, "Enquiry changed while submitting; try again.")
	}
	return err
}

func (s *Service) submitResponse(ctx context.Context, caller models.Caller, team string, postID primitive.ObjectID, sub submission) (SubmitResult, error) {
	fromRC := team == models.TeamRC
	var round int

	err := txn.Run(ctx, s.db, s.log, func(tx context.Context) error {
		e, err := s.loadOpenEnquiry(tx, sub.parents[0])
		if err != nil {
			return err
		}
		if !fromRC && !e.TeamsCanRespond {
			return apperr.New(apperr.FailedPrecondition, "Competitors not permitted to respond at this time.")
		}

		window := enquirystore.RespondWindow
		if fromRC {
			window = enquirystore.AnyWindow
		}
		if err := s.noteSubmission(tx, e, window); err != nil {
			return err
		}

		round = e.RoundNumber
		if fromRC {
			round++ // the committee answers into the round it will open
		}
		if err := s.guards.Create(tx, e.ID, team, round, postID); err != nil {
			if errors.Is(err, guardstore.ErrDuplicate) {
				return apperr.Newf(apperr.AlreadyExists, "Your team has already submitted a response for round %d.", round)
			}
			return err
		}

		now := time.Now().UTC()
		if _, err := s.responses.Insert(tx, models.Response{
			ID:          postID,
			EnquiryID:   e.ID,
			PostText:    sub.text,
			FromRC:      fromRC,
			RoundNumber: round,
			CreatedAt:   now,
		}); err != nil {
			return err
		}
		return s.writeOwnership(tx, caller, team, models.PostTypeResponse, postID, sub.parents, now)
	})
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{ID: postID.Hex(), PostType: models.PostTypeResponse, RoundNumber: round}, nil
}

func (s *Service) submitComment(ctx context.Context, caller models.Caller, team string, postID primitive.ObjectID, sub submission) (SubmitResult, error) {
	var round int

	err := txn.Run(ctx, s.db, s.log, func(tx context.Context) error {
		e, err := s.loadOpenEnquiry(tx, sub.parents[0])
		if err != nil {
			return err
		}
		if team != models.TeamRC && !e.TeamsCanComment {
			return apperr.New(apperr.FailedPrecondition, "Competitors not permitted to comment at this time.")
		}

		r, err := s.responses.GetByID(tx, sub.parents[1])
		if errors.Is(err, responsestore.ErrNotFound) || (err == nil && (r.EnquiryID != e.ID || !r.IsPublished)) {
			return apperr.New(apperr.FailedPrecondition, "Response not found.")
		}
		if err != nil {
			return err
		}
		if r.FromRC {
			return apperr.New(apperr.FailedPrecondition, "Comments can only be made on competitor responses.")
		}
		if r.RoundNumber != e.RoundNumber {
			return apperr.New(apperr.FailedPrecondition, "Comments must target the latest round.")
		}

		window := enquirystore.CommentWindow
		if team == models.TeamRC {
			window = enquirystore.AnyWindow
		}
		if err := s.noteSubmission(tx, e, window); err != nil {
			return err
		}

		round = e.RoundNumber
		now := time.Now().UTC()
		if _, err := s.comments.Insert(tx, models.Comment{
			ID:          postID,
			EnquiryID:   e.ID,
			ResponseID:  r.ID,
			PostText:    sub.text,
			RoundNumber: round,
			CreatedAt:   now,
		}); err != nil {
			return err
		}
		return s.writeOwnership(tx, caller, team, models.PostTypeComment, postID, sub.parents, now)
	})
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{ID: postID.Hex(), PostType: models.PostTypeComment, RoundNumber: round}, nil
}

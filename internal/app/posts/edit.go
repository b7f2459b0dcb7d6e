package posts

import (
	"context"
	"errors"

	commentstore "github.com/dalemusser/rulepost/internal/app/store/comments"
	enquirystore "github.com/dalemusser/rulepost/internal/app/store/enquiries"
	responsestore "github.com/dalemusser/rulepost/internal/app/store/responses"
	"github.com/dalemusser/rulepost/internal/app/system/apperr"
	"github.com/dalemusser/rulepost/internal/app/system/attachments"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var errEditPublished = apperr.New(apperr.FailedPrecondition, "Only unpublished drafts may be edited.")

// EditRequest replaces the content of a draft. Attachments are new
// uploads added to the draft; RemoveAttachments names stored ones to drop.
type EditRequest struct {
	Title             string                 `json:"title"`
	PostText          string                 `json:"post_text"`
	Attachments       []attachments.Incoming `json:"attachments"`
	RemoveAttachments []string               `json:"remove_attachments"`
}

// draftState is what an edit needs to know about the stored post.
type draftState struct {
	parents     []primitive.ObjectID
	attachments []models.Attachment
}

// EditDraft rewrites an unpublished post in place. The same rules as
// Submit apply to the new content, and only the author's team or an
// admin may edit. Parents, number and round are never changed.
func (s *Service) EditDraft(ctx context.Context, caller models.Caller, postType string, id primitive.ObjectID, req EditRequest) (SubmitResult, error) {
	if err := s.checkDraftAuthor(ctx, caller, postType, id, "edit"); err != nil {
		return SubmitResult{}, err
	}
	cur, err := s.loadDraft(ctx, postType, id)
	if err != nil {
		return SubmitResult{}, err
	}

	drop := make(map[string]bool, len(req.RemoveAttachments))
	for _, name := range req.RemoveAttachments {
		drop[name] = true
	}
	var kept, removed []models.Attachment
	for _, a := range cur.attachments {
		if drop[a.Name] {
			removed = append(removed, a)
		} else {
			kept = append(kept, a)
		}
	}

	parentHex := make([]string, len(cur.parents))
	for i, p := range cur.parents {
		parentHex[i] = p.Hex()
	}
	sub, err := validate(SubmitRequest{
		PostType:    postType,
		Title:       req.Title,
		PostText:    req.PostText,
		ParentIDs:   parentHex,
		Attachments: req.Attachments,
	}, len(kept))
	if err != nil {
		return SubmitResult{}, err
	}
	validated, err := s.validateFiles(ctx, caller, sub)
	if err != nil {
		return SubmitResult{}, err
	}

	var added []models.Attachment
	if len(validated) > 0 {
		if added, err = attachments.MoveAll(ctx, s.files, postFolder(sub, id), validated); err != nil {
			return SubmitResult{}, apperr.Wrap(apperr.Internal, err, "Attachments could not be stored.")
		}
	}
	atts := append(kept, added...)

	var ok bool
	switch postType {
	case models.PostTypeEnquiry:
		ok, err = s.enquiries.UpdateDraft(ctx, id, sub.title, sub.text, atts)
	case models.PostTypeResponse:
		ok, err = s.responses.UpdateDraft(ctx, id, sub.text, atts)
	default:
		ok, err = s.comments.UpdateDraft(ctx, id, sub.text)
	}
	if err == nil && !ok {
		err = errEditPublished
	}
	if err != nil {
		// the draft was not rewritten, so the new files belong to nothing
		s.deleteFiles(ctx, added)
		return SubmitResult{}, err
	}
	s.deleteFiles(ctx, removed)

	s.log.Info("draft edited",
		zap.String("post_id", id.Hex()),
		zap.String("post_type", postType),
		zap.String("by", caller.UserID.Hex()),
		zap.Int("attachments_added", len(added)),
		zap.Int("attachments_removed", len(removed)))
	return SubmitResult{ID: id.Hex(), PostType: postType}, nil
}

// loadDraft reads the stored post and refuses published ones.
func (s *Service) loadDraft(ctx context.Context, postType string, id primitive.ObjectID) (draftState, error) {
	notFound := apperr.New(apperr.NotFound, "Post does not exist.")
	switch postType {
	case models.PostTypeEnquiry:
		e, err := s.enquiries.GetByID(ctx, id)
		if errors.Is(err, enquirystore.ErrNotFound) {
			return draftState{}, notFound
		}
		if err != nil {
			return draftState{}, err
		}
		if e.IsPublished {
			return draftState{}, errEditPublished
		}
		return draftState{attachments: e.Attachments}, nil
	case models.PostTypeResponse:
		r, err := s.responses.GetByID(ctx, id)
		if errors.Is(err, responsestore.ErrNotFound) {
			return draftState{}, notFound
		}
		if err != nil {
			return draftState{}, err
		}
		if r.IsPublished {
			return draftState{}, errEditPublished
		}
		return draftState{parents: []primitive.ObjectID{r.EnquiryID}, attachments: r.Attachments}, nil
	default:
		c, err := s.comments.GetByID(ctx, id)
		if errors.Is(err, commentstore.ErrNotFound) {
			return draftState{}, notFound
		}
		if err != nil {
			return draftState{}, err
		}
		if c.IsPublished {
			return draftState{}, errEditPublished
		}
		return draftState{parents: []primitive.ObjectID{c.EnquiryID, c.ResponseID}}, nil
	}
}

func (s *Service) deleteFiles(ctx context.Context, atts []models.Attachment) {
	if s.files == nil {
		return
	}
	for _, a := range atts {
		if err := s.files.Delete(ctx, a.Path); err != nil {
			s.log.Warn("attachment not deleted", zap.String("path", a.Path), zap.Error(err))
		}
	}
}

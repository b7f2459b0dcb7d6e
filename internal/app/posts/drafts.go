package posts

import (
	"context"
	"errors"

	enquirystore "github.com/dalemusser/rulepost/internal/app/store/enquiries"
	metastore "github.com/dalemusser/rulepost/internal/app/store/meta"
	responsestore "github.com/dalemusser/rulepost/internal/app/store/responses"
	"github.com/dalemusser/rulepost/internal/app/system/apperr"
	"github.com/dalemusser/rulepost/internal/app/system/attachments"
	"github.com/dalemusser/rulepost/internal/app/system/normalize"
	"github.com/dalemusser/rulepost/internal/app/system/txn"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var errPublished = apperr.New(apperr.FailedPrecondition, "Only unpublished drafts may be deleted.")

// DeleteDraft removes an unpublished post and everything hanging off it.
// Only the author's team or an admin may delete a draft.
func (s *Service) DeleteDraft(ctx context.Context, caller models.Caller, postType string, id primitive.ObjectID) error {
	if err := s.checkDraftAuthor(ctx, caller, postType, id, "delete"); err != nil {
		return err
	}

	var err error
	var removed []primitive.ObjectID
	var folder string
	switch postType {
	case models.PostTypeEnquiry:
		removed, err = s.deleteEnquiry(ctx, id)
		folder = attachments.EnquiryFolder(id)
	case models.PostTypeResponse:
		var enquiryID primitive.ObjectID
		removed, enquiryID, err = s.deleteResponse(ctx, id)
		folder = attachments.ResponseFolder(enquiryID, id)
	default:
		removed, err = s.deleteComment(ctx, id)
	}
	if err != nil {
		return err
	}

	s.cleanup(ctx, removed, folder, postType)
	s.log.Info("draft deleted",
		zap.String("post_id", id.Hex()),
		zap.String("post_type", postType),
		zap.String("by", caller.UserID.Hex()),
		zap.Int("removed", len(removed)))
	return nil
}

// checkDraftAuthor allows the author's team or an admin to act on a post.
func (s *Service) checkDraftAuthor(ctx context.Context, caller models.Caller, postType string, id primitive.ObjectID, verb string) error {
	if !models.ValidPostType(postType) {
		return apperr.New(apperr.InvalidArgument, "Invalid post type.")
	}
	m, err := s.meta.Get(ctx, id)
	if errors.Is(err, metastore.ErrNotFound) || (err == nil && m.PostType != postType) {
		return apperr.New(apperr.NotFound, "Post does not exist.")
	}
	if err != nil {
		return err
	}
	if !caller.IsAdmin() && normalize.Team(caller.Team) != m.AuthorTeam {
		return apperr.Newf(apperr.PermissionDenied, "Only the author's team may %s this draft.", verb)
	}
	return nil
}

func (s *Service) deleteEnquiry(ctx context.Context, id primitive.ObjectID) ([]primitive.ObjectID, error) {
	removed := []primitive.ObjectID{id}
	err := txn.Run(ctx, s.db, s.log, func(tx context.Context) error {
		removed = removed[:1]
		if err := s.enquiries.DeleteUnpublished(tx, id); err != nil {
			if errors.Is(err, enquirystore.ErrPublishedNotDeleted) {
				return errPublished
			}
			if errors.Is(err, enquirystore.ErrNotFound) {
				return apperr.New(apperr.NotFound, "Post does not exist.")
			}
			return err
		}

		responses, err := s.responses.ListByEnquiry(tx, id)
		if err != nil {
			return err
		}
		for _, r := range responses {
			removed = append(removed, r.ID)
		}
		commentIDs, err := s.comments.IDsByEnquiry(tx, id)
		if err != nil {
			return err
		}
		removed = append(removed, commentIDs...)

		if _, err := s.responses.DeleteByEnquiry(tx, id); err != nil {
			return err
		}
		if _, err := s.comments.DeleteByEnquiry(tx, id); err != nil {
			return err
		}
		if err := s.guards.DeleteByEnquiry(tx, id); err != nil {
			return err
		}

		// the freed number may be reused by the next submission
		top, err := s.enquiries.MaxEnquiryNumber(tx)
		if err != nil {
			return err
		}
		return s.counters.Set(tx, models.CounterEnquiryNumber, top)
	})
	return removed, err
}

func (s *Service) deleteResponse(ctx context.Context, id primitive.ObjectID) ([]primitive.ObjectID, primitive.ObjectID, error) {
	r, err := s.responses.GetByID(ctx, id)
	if errors.Is(err, responsestore.ErrNotFound) {
		return nil, primitive.NilObjectID, apperr.New(apperr.NotFound, "Post does not exist.")
	}
	if err != nil {
		return nil, primitive.NilObjectID, err
	}
	if r.IsPublished {
		return nil, r.EnquiryID, errPublished
	}

	removed := []primitive.ObjectID{id}
	err = txn.Run(ctx, s.db, s.log, func(tx context.Context) error {
		removed = removed[:1]
		ok, err := s.responses.DeleteUnpublished(tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return errPublished
		}
		commentIDs, err := s.comments.IDsByResponse(tx, id)
		if err != nil {
			return err
		}
		removed = append(removed, commentIDs...)
		if _, err := s.comments.DeleteByResponse(tx, id); err != nil {
			return err
		}
		return s.guards.DeleteByResponse(tx, id)
	})
	return removed, r.EnquiryID, err
}

func (s *Service) deleteComment(ctx context.Context, id primitive.ObjectID) ([]primitive.ObjectID, error) {
	ok, err := s.comments.DeleteUnpublished(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errPublished
	}
	return []primitive.ObjectID{id}, nil
}

// cleanup removes the private and derived records of deleted posts.
// Failures leave orphans that nothing reads, so they are only logged.
func (s *Service) cleanup(ctx context.Context, ids []primitive.ObjectID, folder, postType string) {
	warn := func(what string, err error) {
		if err != nil {
			s.log.Warn("draft cleanup incomplete",
				zap.String("step", what),
				zap.String("post_type", postType),
				zap.Error(err))
		}
	}
	_, err := s.drafts.DeleteMany(ctx, ids)
	warn("drafts", err)
	_, err = s.meta.DeleteMany(ctx, ids)
	warn("meta", err)
	_, err = s.events.DeletePendingFor(ctx, ids)
	warn("publish_events", err)
	_, err = s.unread.DeleteByPosts(ctx, ids)
	warn("unread", err)
	if folder != "" && s.files != nil {
		_, err = s.files.DeletePrefix(ctx, folder+"/")
		warn("attachments", err)
	}
}

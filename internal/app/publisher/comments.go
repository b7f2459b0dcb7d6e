package publisher

import (
	"context"
	"time"

	"github.com/dalemusser/rulepost/internal/app/lifecycle"
	"github.com/dalemusser/rulepost/internal/app/notify"
	draftstore "github.com/dalemusser/rulepost/internal/app/store/drafts"
	unreadstore "github.com/dalemusser/rulepost/internal/app/store/unread"
	"github.com/dalemusser/rulepost/internal/app/system/bulkwrite"
	"github.com/dalemusser/rulepost/internal/app/system/stageclock"
	"github.com/dalemusser/rulepost/internal/app/system/txn"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"go.uber.org/zap"
)

// PublishComments publishes the pending comments of every enquiry in its
// comment window, then closes the windows whose deadline has passed.
// Nothing runs on a non-working day.
func (s *Service) PublishComments(ctx context.Context, now time.Time) (Summary, error) {
	if !s.cal.IsWorkingDay(now) {
		s.log.Info("comment publisher: not a working day", zap.Time("now", now))
		return Summary{}, nil
	}
	open, err := s.enquiries.ListInCommentWindow(ctx)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{Enquiries: len(open)}
	for i := range open {
		e := &open[i]
		n, err := s.publishEnquiryComments(ctx, e, now)
		sum.Published += n
		if err == nil {
			err = s.closeCommentWindow(ctx, e, now)
		}
		if err != nil {
			sum.Failed++
			s.log.Error("comment publisher: enquiry skipped",
				zap.String("enquiry_id", e.ID.Hex()),
				zap.Int("enquiry_number", e.EnquiryNumber),
				zap.Error(err))
		}
	}
	s.log.Info("comment publisher finished",
		zap.Int("considered", sum.Enquiries),
		zap.Int("published", sum.Published),
		zap.Int("failed", sum.Failed))
	return sum, nil
}

// publishEnquiryComments numbers each response's comments after those
// already published, in submission order.
func (s *Service) publishEnquiryComments(ctx context.Context, e *models.Enquiry, now time.Time) (int, error) {
	responses, err := s.responses.ListPublishedTeam(ctx, e.ID, e.RoundNumber)
	if err != nil {
		return 0, err
	}

	w := bulkwrite.New(s.log)
	var published []notify.Published
	total := 0
	for _, r := range responses {
		pending, err := s.comments.ListUnpublished(ctx, r.ID)
		if err != nil {
			return total, err
		}
		if len(pending) == 0 {
			continue
		}

		var first int
		err = txn.Run(ctx, s.db, s.log, func(tx context.Context) error {
			n, err := s.comments.CountPublished(tx, r.ID)
			if err != nil {
				return err
			}
			first = n + 1
			for i, c := range pending {
				if err := s.comments.Publish(tx, c.ID, first+i); err != nil {
					return err
				}
			}
			return s.responses.IncCommentCount(tx, r.ID, len(pending))
		})
		if err != nil {
			return total, err
		}
		total += len(pending)

		respNumber := 0
		if r.ResponseNumber != nil {
			respNumber = *r.ResponseNumber
		}
		respRef := unreadstore.Ref{
			PostID:   r.ID,
			PostType: models.PostTypeResponse,
			Alias:    models.ResponseAlias(e.EnquiryNumber, r.RoundNumber, respNumber),
		}
		rid := r.ID
		for i, c := range pending {
			n := first + i
			cid := c.ID
			w.Add(s.drafts.Collection(), draftstore.DeleteModel(c.ID))
			published = append(published, notify.Published{
				Post: unreadstore.Ref{
					PostID:   c.ID,
					PostType: models.PostTypeComment,
					Alias:    models.CommentAlias(e.EnquiryNumber, r.RoundNumber, respNumber, n),
				},
				Ancestors: []unreadstore.Ref{respRef, enquiryRef(e)},
				Event: models.PublishEvent{
					Kind:           models.EventComment,
					EnquiryID:      e.ID,
					ResponseID:     &rid,
					CommentID:      &cid,
					EnquiryTitle:   e.Title,
					EnquiryNumber:  e.EnquiryNumber,
					RoundNumber:    r.RoundNumber,
					ResponseNumber: &respNumber,
					CommentNumber:  &n,
					PublishedAt:    now,
				},
			})
		}
	}

	if err := s.fanout.Queue(ctx, w, published, now); err != nil {
		s.log.Warn("unread fan-out skipped", zap.Error(err))
	}
	s.flush(ctx, w, "comment publish")
	if total > 0 {
		s.log.Info("comments published",
			zap.String("enquiry_id", e.ID.Hex()),
			zap.Int("enquiry_number", e.EnquiryNumber),
			zap.Int("count", total))
	}
	return total, nil
}

func (s *Service) closeCommentWindow(ctx context.Context, e *models.Enquiry, now time.Time) error {
	if e.StageEnds == nil || !e.StageEnds.Before(now) {
		return nil
	}
	t, err := s.policy.Plan(e, lifecycle.CloseCommentWindow, now, false)
	if err != nil {
		return err
	}
	deferred := false
	err = txn.Run(ctx, s.db, s.log, func(tx context.Context) error {
		deferred = false
		// a comment that arrived after the publishing pass keeps the
		// window open until the next run publishes it
		pending, err := s.comments.CountUnpublishedInRound(tx, e.ID, e.RoundNumber)
		if err != nil {
			return err
		}
		if pending > 0 {
			deferred = true
			return nil
		}
		return s.enquiries.Apply(tx, e.ID, t)
	})
	if err != nil {
		return err
	}
	if deferred {
		s.log.Info("comment window kept open for pending comments",
			zap.String("enquiry_id", e.ID.Hex()),
			zap.Int("enquiry_number", e.EnquiryNumber))
		return nil
	}
	s.log.Info("comment window closed",
		zap.String("enquiry_id", e.ID.Hex()),
		zap.Int("enquiry_number", e.EnquiryNumber),
		zap.Timep("stage_ends", t.StageEnds))
	return nil
}

// RefreshNextCommentPublication stores when the comment publisher will
// next run so clients can show it.
func (s *Service) RefreshNextCommentPublication(ctx context.Context, now time.Time) (time.Time, error) {
	next := stageclock.NextPublicationSlot(s.cal, now)
	if err := s.appdata.SetNextCommentPublication(ctx, next); err != nil {
		return time.Time{}, err
	}
	return next, nil
}

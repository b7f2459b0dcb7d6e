package publisher

import (
	"context"
	"time"

	"github.com/dalemusser/rulepost/internal/app/lifecycle"
	"github.com/dalemusser/rulepost/internal/app/notify"
	draftstore "github.com/dalemusser/rulepost/internal/app/store/drafts"
	unreadstore "github.com/dalemusser/rulepost/internal/app/store/unread"
	"github.com/dalemusser/rulepost/internal/app/system/bulkwrite"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"go.uber.org/zap"
)

func enquiryRef(e *models.Enquiry) unreadstore.Ref {
	return unreadstore.Ref{PostID: e.ID, PostType: models.PostTypeEnquiry, Alias: e.Alias()}
}

// PublishEnquiries publishes every enquiry still awaiting publication and
// opens its respond window.
func (s *Service) PublishEnquiries(ctx context.Context, now time.Time) (Summary, error) {
	pending, err := s.enquiries.ListUnpublished(ctx)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Enquiries: len(pending)}
	if len(pending) == 0 {
		s.log.Info("enquiry publisher: no unpublished enquiries")
		return sum, nil
	}

	w := bulkwrite.New(s.log)
	var published []notify.Published
	for i := range pending {
		e := &pending[i]
		if !e.IsOpen {
			continue
		}
		t, err := s.policy.Plan(e, lifecycle.PublishEnquiry, now, false)
		if err == nil {
			err = s.enquiries.Apply(ctx, e.ID, t)
		}
		if err != nil {
			sum.Failed++
			s.log.Error("enquiry publish failed",
				zap.String("enquiry_id", e.ID.Hex()),
				zap.Int("enquiry_number", e.EnquiryNumber),
				zap.Error(err))
			continue
		}
		sum.Published++

		s.tokenize(ctx, models.PostTypeEnquiry, *e, nil)
		w.Add(s.drafts.Collection(), draftstore.DeleteModel(e.ID))
		published = append(published, notify.Published{
			Post: enquiryRef(e),
			Event: models.PublishEvent{
				Kind:          models.EventEnquiry,
				EnquiryID:     e.ID,
				EnquiryTitle:  e.Title,
				EnquiryNumber: e.EnquiryNumber,
				RoundNumber:   e.RoundNumber,
				PublishedAt:   now,
			},
		})
		s.log.Info("enquiry published",
			zap.String("enquiry_id", e.ID.Hex()),
			zap.Int("enquiry_number", e.EnquiryNumber),
			zap.Timep("stage_ends", t.StageEnds))
	}

	if err := s.fanout.Queue(ctx, w, published, now); err != nil {
		s.log.Warn("unread fan-out skipped", zap.Error(err))
	}
	s.flush(ctx, w, "enquiry publish")

	s.log.Info("enquiry publisher finished",
		zap.Int("considered", sum.Enquiries),
		zap.Int("published", sum.Published),
		zap.Int("failed", sum.Failed))
	return sum, nil
}

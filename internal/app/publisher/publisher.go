// Package publisher flips unpublished posts to published, numbers them,
// and advances the enquiry stage. The scheduled batch jobs and the
// instant-publish action share the same per-enquiry functions.
package publisher

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/dalemusser/rulepost/internal/app/lifecycle"
	"github.com/dalemusser/rulepost/internal/app/notify"
	appdatastore "github.com/dalemusser/rulepost/internal/app/store/appdata"
	commentstore "github.com/dalemusser/rulepost/internal/app/store/comments"
	draftstore "github.com/dalemusser/rulepost/internal/app/store/drafts"
	enquirystore "github.com/dalemusser/rulepost/internal/app/store/enquiries"
	responsestore "github.com/dalemusser/rulepost/internal/app/store/responses"
	"github.com/dalemusser/rulepost/internal/app/system/attachments"
	"github.com/dalemusser/rulepost/internal/app/system/bulkwrite"
	"github.com/dalemusser/rulepost/internal/app/system/calendar"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Reasons a response publish declines without modifying anything.
const (
	ReasonNoResponse = "no-response"
	ReasonMultipleRC = "multiple-rc-responses"
)

// Result reports a response publish for one enquiry.
type Result struct {
	OK        bool   `json:"ok"`
	Published int    `json:"num_published"`
	Reason    string `json:"reason,omitempty"`
}

// Summary reports a batch job.
type Summary struct {
	Enquiries int // enquiries considered
	Published int // posts published
	Skipped   int // enquiries declined with a reason
	Failed    int // enquiries that errored and were skipped
}

// Service runs the publishers.
type Service struct {
	db        *mongo.Database
	enquiries *enquirystore.Store
	responses *responsestore.Store
	comments  *commentstore.Store
	drafts    *draftstore.Store
	appdata   *appdatastore.Store
	files     attachments.Store
	fanout    *notify.Fanout
	cal       *calendar.Calendar
	policy    lifecycle.Policy
	log       *zap.Logger

	now     func() time.Time
	shuffle func(n int, swap func(i, j int))
}

func New(db *mongo.Database, cal *calendar.Calendar, files attachments.Store, logger *zap.Logger) *Service {
	return &Service{
		db:        db,
		enquiries: enquirystore.New(db),
		responses: responsestore.New(db),
		comments:  commentstore.New(db),
		drafts:    draftstore.New(db),
		appdata:   appdatastore.New(db),
		files:     files,
		fanout:    notify.NewFanout(db, logger),
		cal:       cal,
		policy:    lifecycle.Policy{Cal: cal},
		log:       logger,
		now:       time.Now,
		shuffle:   rand.Shuffle,
	}
}

// tokenize issues download tokens for freshly published attachments.
// Failures are logged; the post stays published.
func (s *Service) tokenize(ctx context.Context, postType string, post models.Enquiry, resp *models.Response) {
	var atts []models.Attachment
	switch {
	case resp != nil:
		atts = resp.Attachments
	default:
		atts = post.Attachments
	}
	if len(atts) == 0 || s.files == nil {
		return
	}

	out, err := attachments.Tokenize(ctx, s.files, atts)
	if err != nil {
		s.log.Warn("attachment tokenization incomplete",
			zap.String("post_type", postType),
			zap.String("enquiry_id", post.ID.Hex()),
			zap.Error(err))
	}
	if resp != nil {
		err = s.responses.SetAttachments(ctx, resp.ID, out)
	} else {
		err = s.enquiries.SetAttachments(ctx, post.ID, out)
	}
	if err != nil {
		s.log.Warn("failed to store attachment tokens",
			zap.String("post_type", postType),
			zap.String("enquiry_id", post.ID.Hex()),
			zap.Error(err))
	}
}

// flush commits best-effort writes; failures are already logged by the writer.
func (s *Service) flush(ctx context.Context, w *bulkwrite.Writer, what string) {
	stats, err := w.Flush(ctx)
	if err != nil {
		s.log.Warn("best-effort writes interrupted", zap.String("after", what), zap.Error(err))
		return
	}
	if stats.Failed > 0 {
		s.log.Warn("best-effort writes failed",
			zap.String("after", what),
			zap.Int("failed", stats.Failed),
			zap.Int("attempted", stats.Attempted))
	}
}

package publisher

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/rulepost/internal/app/lifecycle"
	"github.com/dalemusser/rulepost/internal/app/notify"
	draftstore "github.com/dalemusser/rulepost/internal/app/store/drafts"
	enquirystore "github.com/dalemusser/rulepost/internal/app/store/enquiries"
	responsestore "github.com/dalemusser/rulepost/internal/app/store/responses"
	unreadstore "github.com/dalemusser/rulepost/internal/app/store/unread"
	"github.com/dalemusser/rulepost/internal/app/system/apperr"
	"github.com/dalemusser/rulepost/internal/app/system/bulkwrite"
	"github.com/dalemusser/rulepost/internal/app/system/txn"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Selector picks which responses of an enquiry to publish.
type Selector struct {
	FromRC  bool // the committee response of the next round instead of the team responses
	Instant bool // skip the deadline gate; an empty team round is declined instead of advanced
}

func (sel Selector) event() lifecycle.Event {
	if sel.FromRC {
		return lifecycle.PublishCommitteeResponse
	}
	return lifecycle.PublishTeamResponses
}

// PublishResponses publishes the selected responses of e and advances
// its stage in one transaction. A declined publish returns a Result with
// a Reason and leaves everything untouched.
func (s *Service) PublishResponses(ctx context.Context, e models.Enquiry, sel Selector, now time.Time) (Result, error) {
	t, err := s.policy.Plan(&e, sel.event(), now, sel.Instant)
	if err != nil {
		return Result{}, err
	}

	round := e.RoundNumber
	if sel.FromRC {
		round++ // committee responses are filed against the round they open
	}
	// Candidates are read inside the transaction: a response submission
	// writes the enquiry too, so one committed after this read conflicts
	// with Apply and the attempt is retried with it included.
	var (
		candidates []models.Response
		numbers    []int
		reason     string
	)
	err = txn.Run(ctx, s.db, s.log, func(tx context.Context) error {
		candidates, numbers, reason = nil, nil, ""
		found, err := s.responses.ListUnpublished(tx, e.ID, round, sel.FromRC)
		if err != nil {
			return err
		}

		switch {
		case sel.FromRC && len(found) == 0:
			reason = ReasonNoResponse
			return nil
		case sel.FromRC && len(found) > 1:
			s.log.Warn("more than one committee response pending",
				zap.String("enquiry_id", e.ID.Hex()),
				zap.Int("round", round),
				zap.Int("count", len(found)))
			reason = ReasonMultipleRC
			return nil
		case !sel.FromRC && len(found) == 0 && sel.Instant:
			reason = ReasonNoResponse
			return nil
		}

		var nums []int
		if sel.FromRC {
			nums = []int{0}
		} else {
			s.shuffle(len(found), func(i, j int) {
				found[i], found[j] = found[j], found[i]
			})
			nums = teamNumbers(len(found))
		}
		for i, r := range found {
			if err := s.responses.Publish(tx, r.ID, nums[i]); err != nil {
				return err
			}
		}
		if err := s.enquiries.Apply(tx, e.ID, t); err != nil {
			return err
		}
		candidates, numbers = found, nums
		return nil
	})
	if err != nil {
		if errors.Is(err, enquirystore.ErrStageChanged) || errors.Is(err, responsestore.ErrAlreadyPublished) {
			return Result{}, apperr.Wrap(apperr.FailedPrecondition, err, "Enquiry changed while publishing; try again.")
		}
		return Result{}, err
	}
	if reason != "" {
		return Result{Reason: reason}, nil
	}

	kind := models.EventTeamResponse
	if sel.FromRC {
		kind = models.EventCommitteeResponse
	}
	w := bulkwrite.New(s.log)
	published := make([]notify.Published, 0, len(candidates))
	for i := range candidates {
		r := &candidates[i]
		n := numbers[i]
		r.ResponseNumber = &n
		s.tokenize(ctx, models.PostTypeResponse, e, r)
		w.Add(s.drafts.Collection(), draftstore.DeleteModel(r.ID))

		rid := r.ID
		published = append(published, notify.Published{
			Post: unreadstore.Ref{
				PostID:   r.ID,
				PostType: models.PostTypeResponse,
				Alias:    models.ResponseAlias(e.EnquiryNumber, round, n),
			},
			Ancestors: []unreadstore.Ref{enquiryRef(&e)},
			Event: models.PublishEvent{
				Kind:           kind,
				EnquiryID:      e.ID,
				ResponseID:     &rid,
				EnquiryTitle:   e.Title,
				EnquiryNumber:  e.EnquiryNumber,
				RoundNumber:    round,
				ResponseNumber: &n,
				PublishedAt:    now,
			},
		})
	}
	if err := s.fanout.Queue(ctx, w, published, now); err != nil {
		s.log.Warn("unread fan-out skipped", zap.Error(err))
	}
	s.flush(ctx, w, "response publish")

	s.log.Info("responses published",
		zap.String("enquiry_id", e.ID.Hex()),
		zap.Int("enquiry_number", e.EnquiryNumber),
		zap.Bool("from_rc", sel.FromRC),
		zap.Int("round", round),
		zap.Int("count", len(candidates)),
		zap.Timep("stage_ends", t.StageEnds))
	return Result{OK: true, Published: len(candidates)}, nil
}

// teamNumbers returns 1..n. Callers shuffle the responses first so the
// numbers say nothing about submission order.
func teamNumbers(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// PublishTeamResponses closes every respond window whose deadline has
// passed. Rounds without responses still move on to the comment window.
func (s *Service) PublishTeamResponses(ctx context.Context, now time.Time) (Summary, error) {
	due, err := s.enquiries.ListRespondWindowEnded(ctx, now)
	if err != nil {
		return Summary{}, err
	}
	return s.publishEach(ctx, due, Selector{}, now, "team response publisher"), nil
}

// PublishCommitteeResponses publishes the committee response of every
// enquiry whose awaiting-committee deadline has passed. Nothing runs on
// a non-working day.
func (s *Service) PublishCommitteeResponses(ctx context.Context, now time.Time) (Summary, error) {
	if !s.cal.IsWorkingDay(now) {
		s.log.Info("committee response publisher: not a working day", zap.Time("now", now))
		return Summary{}, nil
	}
	due, err := s.enquiries.ListAwaitingCommitteeEnded(ctx, now)
	if err != nil {
		return Summary{}, err
	}
	return s.publishEach(ctx, due, Selector{FromRC: true}, now, "committee response publisher"), nil
}

func (s *Service) publishEach(ctx context.Context, due []models.Enquiry, sel Selector, now time.Time, job string) Summary {
	sum := Summary{Enquiries: len(due)}
	for _, e := range due {
		res, err := s.PublishResponses(ctx, e, sel, now)
		switch {
		case err != nil:
			sum.Failed++
			s.log.Error(job+": enquiry skipped",
				zap.String("enquiry_id", e.ID.Hex()),
				zap.Int("enquiry_number", e.EnquiryNumber),
				zap.Error(err))
		case !res.OK:
			sum.Skipped++
			s.log.Info(job+": nothing published",
				zap.String("enquiry_id", e.ID.Hex()),
				zap.Int("enquiry_number", e.EnquiryNumber),
				zap.String("reason", res.Reason))
		default:
			sum.Published += res.Published
		}
	}
	s.log.Info(job+" finished",
		zap.Int("considered", sum.Enquiries),
		zap.Int("published", sum.Published),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed))
	return sum
}

// InstantPublish publishes responses of one enquiry now, ignoring the
// deadline. Team responses are published from the respond window; the
// committee response from the comment window or while awaiting the
// committee.
func (s *Service) InstantPublish(ctx context.Context, caller models.Caller, enquiryID primitive.ObjectID) (Result, error) {
	if !caller.Privileged() {
		return Result{}, apperr.New(apperr.PermissionDenied, "Admin/RC function only.")
	}
	e, err := s.enquiries.GetByID(ctx, enquiryID)
	if errors.Is(err, enquirystore.ErrNotFound) {
		return Result{}, apperr.Newf(apperr.NotFound, "Enquiry %s does not exist.", enquiryID.Hex())
	}
	if err != nil {
		return Result{}, err
	}

	stage, err := lifecycle.Of(&e)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.FailedPrecondition, err, "Enquiry is in an inconsistent state.")
	}
	sel := Selector{Instant: true}
	switch stage {
	case lifecycle.RespondWindow:
	case lifecycle.CommentWindow, lifecycle.AwaitingCommittee:
		sel.FromRC = true
	default:
		return Result{}, apperr.Newf(apperr.FailedPrecondition,
			"Enquiry is %s; nothing can be published now.", stage)
	}

	res, err := s.PublishResponses(ctx, e, sel, s.now())
	if err != nil {
		return Result{}, err
	}
	s.log.Info("instant publish",
		zap.String("enquiry_id", e.ID.Hex()),
		zap.String("by", caller.UserID.Hex()),
		zap.Bool("ok", res.OK),
		zap.String("reason", res.Reason))
	return res, nil
}

package lifecycle

import (
	"errors"
	"fmt"
	"time"

	enquirystore "github.com/dalemusser/rulepost/internal/app/store/enquiries"
	"github.com/dalemusser/rulepost/internal/app/system/apperr"
	"github.com/dalemusser/rulepost/internal/app/system/calendar"
	"github.com/dalemusser/rulepost/internal/app/system/stageclock"
	"github.com/dalemusser/rulepost/internal/domain/models"
)

// Event drives a transition.
type Event int

const (
	PublishEnquiry Event = iota + 1
	PublishTeamResponses
	CloseCommentWindow
	PublishCommitteeResponse
	CloseEnquiry
)

func (e Event) String() string {
	switch e {
	case PublishEnquiry:
		return "publish_enquiry"
	case PublishTeamResponses:
		return "publish_team_responses"
	case CloseCommentWindow:
		return "close_comment_window"
	case PublishCommitteeResponse:
		return "publish_committee_response"
	case CloseEnquiry:
		return "close_enquiry"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

var (
	ErrWrongStage = errors.New("lifecycle: enquiry is not in the required stage")
	ErrNotDue     = errors.New("lifecycle: stage deadline has not passed")
)

// Deadline is the rule for the stage_ends a transition sets: ExtraDays
// working days beyond stage_length (or Days when Fixed), at At.
type Deadline struct {
	Fixed     bool
	Days      int
	ExtraDays int
	At        stageclock.TimeOfDay
}

// WorkingDays resolves the rule for an enquiry's stage length.
func (d Deadline) WorkingDays(stageLength int) int {
	if d.Fixed {
		return d.Days
	}
	return stageLength + d.ExtraDays
}

type rule struct {
	from     []Stage
	instant  []Stage // extra sources allowed when the deadline gate is bypassed
	to       Stage
	gated    bool
	nextRnd  bool
	deadline *Deadline
}

var rules = map[Event]rule{
	PublishEnquiry: {
		from:     []Stage{AwaitingPublish},
		to:       RespondWindow,
		deadline: &Deadline{At: stageclock.At(19, 59)},
	},
	PublishTeamResponses: {
		from:     []Stage{RespondWindow},
		to:       CommentWindow,
		gated:    true,
		deadline: &Deadline{ExtraDays: 1, At: stageclock.At(11, 55)},
	},
	CloseCommentWindow: {
		from:     []Stage{CommentWindow},
		to:       AwaitingCommittee,
		gated:    true,
		deadline: &Deadline{Fixed: true, Days: 1, At: stageclock.At(23, 59)},
	},
	PublishCommitteeResponse: {
		from:     []Stage{AwaitingCommittee},
		instant:  []Stage{CommentWindow},
		to:       RespondWindow,
		gated:    true,
		nextRnd:  true,
		deadline: &Deadline{At: stageclock.At(19, 55)},
	},
	CloseEnquiry: {
		from: []Stage{AwaitingPublish, RespondWindow, CommentWindow, AwaitingCommittee},
		to:   Closed,
	},
}

// DeadlineFor returns the deadline rule of ev, if it sets one.
func DeadlineFor(ev Event) (Deadline, bool) {
	r, ok := rules[ev]
	if !ok || r.deadline == nil {
		return Deadline{}, false
	}
	return *r.deadline, true
}

// Policy plans transitions against a working-day calendar.
type Policy struct {
	Cal *calendar.Calendar
}

// Plan checks that ev is legal for e at now and returns the conditional
// store update that performs it. bypass skips the deadline gate (instant
// publish); the new deadline is always computed fresh from now.
func (p Policy) Plan(e *models.Enquiry, ev Event, now time.Time, bypass bool) (enquirystore.Transition, error) {
	r, ok := rules[ev]
	if !ok {
		return enquirystore.Transition{}, fmt.Errorf("lifecycle: unknown event %d", int(ev))
	}
	from, err := Of(e)
	if err != nil {
		return enquirystore.Transition{}, apperr.Wrap(apperr.FailedPrecondition, err, "Enquiry is in an inconsistent state.")
	}

	allowed := contains(r.from, from) || (bypass && contains(r.instant, from))
	if !allowed {
		return enquirystore.Transition{}, apperr.Wrap(apperr.FailedPrecondition,
			fmt.Errorf("%w: %s from %s", ErrWrongStage, ev, from),
			"Enquiry is not at the correct stage for this action.")
	}
	if r.gated && !bypass && e.StageEnds != nil && now.Before(*e.StageEnds) {
		return enquirystore.Transition{}, apperr.Wrap(apperr.FailedPrecondition,
			fmt.Errorf("%w: ends %s", ErrNotDue, e.StageEnds.UTC().Format(time.RFC3339)),
			"The current stage has not ended yet.")
	}

	t := enquirystore.Transition{
		FromRound: e.RoundNumber,
		From:      e.Flags(),
		ToRound:   e.RoundNumber,
		To:        Flags(r.to, e.IsPublished),
	}
	if r.nextRnd {
		t.ToRound++
	}
	if ev == PublishEnquiry {
		t.MarkPublished = true
	}
	if r.deadline != nil {
		days := r.deadline.WorkingDays(e.EffectiveStageLength())
		ends, err := stageclock.ComputeStageEnds(p.Cal, now, days, r.deadline.At)
		if err != nil {
			return enquirystore.Transition{}, fmt.Errorf("lifecycle: deadline for %s: %w", ev, err)
		}
		t.StageEnds = &ends
		t.StartStage = true
	}
	return t, nil
}

func contains(list []Stage, s Stage) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

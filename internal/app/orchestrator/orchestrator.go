// Package orchestrator runs the daily publication triggers. Each trigger
// is a fixed sequence of phases; the first failing phase aborts the rest
// and the run is released so the next attempt starts from the beginning.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	slotrunstore "github.com/dalemusser/rulepost/internal/app/store/slotruns"
	"github.com/dalemusser/rulepost/internal/app/system/calendar"
	"github.com/dalemusser/rulepost/internal/app/system/stageclock"
	"github.com/dalemusser/rulepost/internal/app/system/tasks"
	"github.com/dalemusser/rulepost/internal/app/system/timeouts"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	Slot0000 = "0000"
	Slot1200 = "1200"
	Slot2000 = "2000"
)

var (
	ErrUnknownSlot = errors.New("orchestrator: unknown slot")
	ErrClaimed     = errors.New("orchestrator: slot already ran or is running")
)

// Slot is a trigger: a time of day and its ordered phases.
type Slot struct {
	Name   string
	At     stageclock.TimeOfDay
	Phases []tasks.Job
}

// Phases is the set of jobs a slot table is built from.
type Phases struct {
	EnquiryPublish           tasks.Job
	CommentPublish           tasks.Job
	CommitteeResponsePublish tasks.Job
	TeamResponsePublish      tasks.Job
	NextCommentSlot          tasks.Job
	Digest                   tasks.Job
}

// DefaultSlots orders the phases of each daily trigger.
func DefaultSlots(p Phases) []Slot {
	return []Slot{
		{Name: Slot0000, At: stageclock.At(0, 0), Phases: []tasks.Job{
			p.EnquiryPublish, p.CommentPublish, p.CommitteeResponsePublish, p.NextCommentSlot, p.Digest,
		}},
		{Name: Slot1200, At: stageclock.At(12, 0), Phases: []tasks.Job{
			p.EnquiryPublish, p.CommentPublish, p.NextCommentSlot, p.Digest,
		}},
		{Name: Slot2000, At: stageclock.At(20, 0), Phases: []tasks.Job{
			p.TeamResponsePublish, p.Digest,
		}},
	}
}

// Report describes one trigger run.
type Report struct {
	Slot     string
	RunID    string
	Date     string
	Phases   []string // phases that completed
	Duration time.Duration
}

type Orchestrator struct {
	runs    *slotrunstore.Store
	cal     *calendar.Calendar
	slots   map[string]Slot
	log     *zap.Logger
	timeout func() time.Duration
}

func New(db *mongo.Database, cal *calendar.Calendar, slots []Slot, logger *zap.Logger) *Orchestrator {
	m := make(map[string]Slot, len(slots))
	for _, s := range slots {
		m[s.Name] = s
	}
	return &Orchestrator{
		runs:    slotrunstore.New(db),
		cal:     cal,
		slots:   m,
		log:     logger,
		timeout: timeouts.Slot,
	}
}

// Slots returns the configured slots in time-of-day order.
func (o *Orchestrator) Slots() []Slot {
	out := make([]Slot, 0, len(o.slots))
	for _, s := range o.slots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].At, out[j].At
		return a.Hour*60+a.Minute < b.Hour*60+b.Minute
	})
	return out
}

// NextTrigger returns the first slot strictly after now. Triggers fire
// every calendar day; phases that only act on working days check that
// themselves.
func (o *Orchestrator) NextTrigger(now time.Time) (Slot, time.Time) {
	slots := o.Slots()
	day := o.cal.DateOf(now)
	for i := 0; i < 2; i++ {
		for _, s := range slots {
			at := time.Date(day.Year(), day.Month(), day.Day(), s.At.Hour, s.At.Minute, 0, 0, o.cal.Location())
			if at.After(now) {
				return s, at
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	// unreachable with at least one slot
	return Slot{}, time.Time{}
}

// RunSlot runs the named slot for the trigger time now. Unless force is
// set the run is claimed first, so a slot runs at most once per local
// date across replicas.
func (o *Orchestrator) RunSlot(ctx context.Context, name string, now time.Time, force bool) (Report, error) {
	slot, ok := o.slots[name]
	if !ok {
		return Report{}, fmt.Errorf("%w: %q", ErrUnknownSlot, name)
	}
	rep := Report{
		Slot:  name,
		RunID: uuid.NewString(),
		Date:  o.cal.DateOf(now).Format(calendar.DateLayout),
	}
	log := o.log.With(
		zap.String("slot", name),
		zap.String("run_id", rep.RunID),
		zap.String("date", rep.Date))

	if !force {
		claimed, err := o.runs.Claim(ctx, name, rep.Date, rep.RunID, time.Now())
		if err != nil {
			return rep, fmt.Errorf("claim slot %s: %w", name, err)
		}
		if !claimed {
			log.Info("slot already claimed; skipping")
			return rep, ErrClaimed
		}
	}

	start := time.Now()
	runCtx, cancel := timeouts.WithTimeout(ctx, o.timeout(), o.log, "slot "+name)
	err := o.runPhases(runCtx, slot, now, log, &rep)
	cancel()
	rep.Duration = time.Since(start)

	if !force {
		o.record(ctx, log, name, rep.Date, err)
	}
	if err != nil {
		log.Error("slot aborted",
			zap.Strings("completed", rep.Phases),
			zap.Duration("took", rep.Duration),
			zap.Error(err))
		return rep, err
	}
	log.Info("slot complete", zap.Duration("took", rep.Duration))
	return rep, nil
}

func (o *Orchestrator) runPhases(ctx context.Context, slot Slot, now time.Time, log *zap.Logger, rep *Report) error {
	for _, job := range slot.Phases {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("before %s: %w", job.Name, err)
		}
		t := time.Now()
		if err := job.Run(ctx, now); err != nil {
			return fmt.Errorf("%s: %w", job.Name, err)
		}
		rep.Phases = append(rep.Phases, job.Name)
		log.Info("phase complete", zap.String("phase", job.Name), zap.Duration("took", time.Since(t)))
	}
	return nil
}

// record finishes a successful claim and releases a failed one so the
// next attempt can run the slot again.
func (o *Orchestrator) record(ctx context.Context, log *zap.Logger, name, date string, runErr error) {
	// the run context may be spent; bookkeeping gets its own deadline
	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Short())
	defer cancel()

	if runErr == nil {
		if err := o.runs.Finish(bctx, name, date, nil, time.Now()); err != nil {
			log.Warn("failed to record slot completion", zap.Error(err))
		}
		return
	}
	if err := o.runs.Release(bctx, name, date); err != nil {
		log.Warn("failed to release slot claim", zap.Error(err))
	}
}

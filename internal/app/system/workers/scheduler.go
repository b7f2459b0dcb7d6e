// internal/app/system/workers/scheduler.go
package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dalemusser/rulepost/internal/app/orchestrator"
	"go.uber.org/zap"
)

// SlotRunner is the part of the orchestrator the scheduler drives.
type SlotRunner interface {
	NextTrigger(now time.Time) (orchestrator.Slot, time.Time)
	RunSlot(ctx context.Context, name string, now time.Time, force bool) (orchestrator.Report, error)
}

// Scheduler is a background worker that fires each orchestrator slot at
// its time of day.
type Scheduler struct {
	runner SlotRunner
	log    *zap.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler for runner.
func NewScheduler(runner SlotRunner, logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner: runner,
		log:    logger,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins the scheduling loop.
func (w *Scheduler) Start() {
	w.wg.Add(1)
	go w.run()
	slot, at := w.runner.NextTrigger(w.now())
	w.log.Info("scheduler started",
		zap.String("next_slot", slot.Name),
		zap.Time("next_at", at))
}

// Stop cancels a running slot and waits for the loop to exit.
func (w *Scheduler) Stop() {
	w.cancel()
	w.wg.Wait()
	w.log.Info("scheduler stopped")
}

func (w *Scheduler) run() {
	defer w.wg.Done()

	for {
		now := w.now()
		slot, at := w.runner.NextTrigger(now)
		if at.IsZero() {
			w.log.Error("no slots configured; scheduler idle")
			<-w.ctx.Done()
			return
		}

		timer := time.NewTimer(at.Sub(now))
		select {
		case <-w.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			w.fire(slot.Name, at)
		}
	}
}

func (w *Scheduler) fire(name string, at time.Time) {
	_, err := w.runner.RunSlot(w.ctx, name, at, false)
	switch {
	case err == nil:
	case errors.Is(err, orchestrator.ErrClaimed):
		w.log.Debug("slot handled by another instance", zap.String("slot", name))
	default:
		// the orchestrator has logged the failure; the next slot starts afresh
		w.log.Warn("scheduled slot failed", zap.String("slot", name), zap.Error(err))
	}
}

package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/rulepost/internal/app/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRunner struct {
	mu    sync.Mutex
	delay time.Duration
	ran   []string
	fired chan struct{}
}

func (f *fakeRunner) NextTrigger(now time.Time) (orchestrator.Slot, time.Time) {
	return orchestrator.Slot{Name: orchestrator.Slot2000}, now.Add(f.delay)
}

func (f *fakeRunner) RunSlot(_ context.Context, name string, _ time.Time, force bool) (orchestrator.Report, error) {
	f.mu.Lock()
	f.ran = append(f.ran, name)
	first := len(f.ran) == 1
	f.mu.Unlock()
	if first {
		close(f.fired)
	}
	if force {
		return orchestrator.Report{}, assert.AnError
	}
	return orchestrator.Report{Slot: name}, orchestrator.ErrClaimed
}

func TestScheduler_FiresDueSlot(t *testing.T) {
	r := &fakeRunner{delay: 10 * time.Millisecond, fired: make(chan struct{})}
	s := NewScheduler(r, zap.NewNop())
	s.Start()
	defer s.Stop()

	select {
	case <-r.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("slot was not fired")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.ran)
	assert.Equal(t, orchestrator.Slot2000, r.ran[0])
}

func TestScheduler_StopBeforeTrigger(t *testing.T) {
	r := &fakeRunner{delay: time.Hour, fired: make(chan struct{})}
	s := NewScheduler(r, zap.NewNop())
	s.Start()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Empty(t, r.ran)
}

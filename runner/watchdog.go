package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStalled is the cancellation cause of a run that reported no progress
// within its stall timeout.
var ErrStalled = errors.New("run stalled")

// watchdog cancels a run's context when no progress is recorded within the
// timeout. Committed import batches and finished steps count as progress.
type watchdog struct {
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	timer  *time.Timer
	cancel context.CancelCauseFunc
	fired  bool
}

// newWatchdog creates a watchdog. If timeout is <= 0, the watchdog is inert
// and never fires.
func newWatchdog(timeout time.Duration, logger *slog.Logger) *watchdog {
	if logger == nil {
		logger = slog.Default()
	}
	return &watchdog{timeout: timeout, logger: logger}
}

// Start derives the context the run executes under.
func (w *watchdog) Start(ctx context.Context) context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()

	ctx, w.cancel = context.WithCancelCause(ctx)
	if w.timeout > 0 {
		w.timer = time.AfterFunc(w.timeout, w.fire)
	}
	return ctx
}

// Kick resets the timeout.
func (w *watchdog) Kick() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer == nil || w.fired {
		return
	}
	w.timer.Reset(w.timeout)
}

// Stop disarms the timer and releases the derived context.
func (w *watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	if w.cancel != nil {
		w.cancel(nil)
	}
}

func (w *watchdog) fire() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fired {
		return
	}
	w.fired = true
	w.logger.Warn("no progress, cancelling run", "timeout", w.timeout)
	w.cancel(ErrStalled)
}

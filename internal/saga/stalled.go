package saga

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StalledReporter periodically surfaces saga instances parked in a
// non-final state. The workflow has no per-state deadline, so a lost event
// leaves an instance stuck forever; this worker makes that visible without
// forcing a transition; whether to time sagas out is a product decision.
type StalledReporter struct {
	store    Store
	logger   *zap.Logger
	after    time.Duration
	interval time.Duration
	limit    int

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewStalledReporter creates a reporter that flags instances not updated
// for `after`, checking every `interval`.
func NewStalledReporter(store Store, logger *zap.Logger, after, interval time.Duration) *StalledReporter {
	if after == 0 {
		after = 30 * time.Minute
	}
	if interval == 0 {
		interval = 5 * time.Minute
	}
	return &StalledReporter{
		store:    store,
		logger:   logger,
		after:    after,
		interval: interval,
		limit:    100,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the reporting loop
func (r *StalledReporter) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go r.loop(ctx)
}

// Stop stops the reporting loop
func (r *StalledReporter) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopCh)
	r.wg.Wait()
}

func (r *StalledReporter) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.report(ctx)
		}
	}
}

// report logs every stalled instance found in this sweep
func (r *StalledReporter) report(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.after)

	stalled, err := r.store.ListStalled(ctx, cutoff, r.limit)
	if err != nil {
		r.logger.Error("failed to list stalled sagas", zap.Error(err))
		return
	}

	for _, inst := range stalled {
		r.logger.Warn("saga instance stalled",
			zap.String("order_id", inst.OrderID),
			zap.String("state", inst.State.String()),
			zap.Duration("age", time.Since(inst.UpdatedAt)))
	}

	if len(stalled) > 0 {
		r.logger.Warn("stalled saga sweep finished", zap.Int("count", len(stalled)))
	}
}

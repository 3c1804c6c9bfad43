package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// LeaderElector continuously tries to acquire and maintain leadership over a
// distributed lock. The trigger scheduler only fires while this instance is
// the leader, so open/close events are applied once per tick across replicas.
type LeaderElector struct {
	lock   DistributedLock
	logger zerolog.Logger

	isLeader    atomic.Bool
	renewalRate time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewLeaderElector creates a leader elector. The renewal rate should be well
// below the lock TTL (TTL/3 is a reasonable choice).
func NewLeaderElector(l DistributedLock, renewalRate time.Duration, logger zerolog.Logger) *LeaderElector {
	return &LeaderElector{
		lock:        l,
		logger:      logger.With().Str("component", "leader_elector").Logger(),
		renewalRate: renewalRate,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the leader election loop.
func (e *LeaderElector) Start(ctx context.Context) {
	e.wg.Add(1)
	go e.run(ctx)
}

// Stop stops the loop and releases leadership if held.
func (e *LeaderElector) Stop(ctx context.Context) {
	close(e.stopCh)
	e.wg.Wait()

	if e.isLeader.Load() {
		if err := e.lock.Release(ctx); err != nil {
			e.logger.Error().Err(err).Msg("failed to release lock on shutdown")
		}
		e.isLeader.Store(false)
	}
}

// IsLeader reports whether this instance is currently the leader.
func (e *LeaderElector) IsLeader() bool {
	return e.isLeader.Load()
}

func (e *LeaderElector) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.renewalRate)
	defer ticker.Stop()

	e.tryAcquireOrRenew(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.tryAcquireOrRenew(ctx)
		}
	}
}

func (e *LeaderElector) tryAcquireOrRenew(ctx context.Context) {
	if e.isLeader.Load() {
		if err := e.lock.Extend(ctx); err != nil {
			e.logger.Warn().Err(err).Msg("lost leadership")
			e.isLeader.Store(false)
			e.tryAcquire(ctx)
		}
		return
	}
	e.tryAcquire(ctx)
}

func (e *LeaderElector) tryAcquire(ctx context.Context) {
	acquired, err := e.lock.Acquire(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to acquire leadership")
		return
	}

	if acquired {
		e.logger.Info().Msg("acquired leadership")
		e.isLeader.Store(true)
	} else {
		e.logger.Debug().Msg("another instance is leader")
	}
}

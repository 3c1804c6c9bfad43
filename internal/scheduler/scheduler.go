// Package scheduler fires business hour open/close triggers at their UTC
// ticks and runs periodic reconciliation as a correctness backstop.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kneutral-org/livechat-hours/internal/businesshour"
	"github.com/kneutral-org/livechat-hours/internal/engine"
)

// Scheduler holds the trigger table derived from the configured business
// hours and drives the engine from it. It owns no business hour logic: a tick
// is translated 1:1 into the engine's open/close operations, and the periodic
// backstop calls the reconciliation entry point, which is idempotent and
// converges even when ticks were lost or duplicated.
type Scheduler struct {
	engine            engine.Engine
	logger            zerolog.Logger
	reconcileInterval time.Duration
	isLeader          func() bool

	mu       sync.RWMutex
	triggers []businesshour.ScheduleTrigger

	stopCh chan struct{}
	doneCh chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLeaderGate makes the scheduler fire only while this instance holds
// leadership. Without a gate every instance fires (fine for a single replica).
func WithLeaderGate(isLeader func() bool) Option {
	return func(s *Scheduler) {
		s.isLeader = isLeader
	}
}

// NewScheduler creates a scheduler that reconciles every reconcileInterval.
func NewScheduler(eng engine.Engine, reconcileInterval time.Duration, logger zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		engine:            eng,
		logger:            logger.With().Str("component", "business_hours_scheduler").Logger(),
		reconcileInterval: reconcileInterval,
		isLeader:          func() bool { return true },
		stopCh:            make(chan struct{}),
		doneCh:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh rebuilds the trigger table from the current configuration. It must
// be called once after every business hour change.
func (s *Scheduler) Refresh(ctx context.Context) error {
	triggers, err := s.engine.FindHoursToCreateJobs(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.triggers = triggers
	s.mu.Unlock()

	s.logger.Info().Int("triggers", len(triggers)).Msg("trigger table refreshed")
	return nil
}

// Triggers returns a copy of the current trigger table.
func (s *Scheduler) Triggers() []businesshour.ScheduleTrigger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]businesshour.ScheduleTrigger(nil), s.triggers...)
}

// Start begins the scheduler loop in a background goroutine.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop signals the scheduler to stop and waits for it to finish.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *Scheduler) run() {
	defer close(s.doneCh)

	// Reconcile once at startup so a restart converges immediately.
	s.reconcile()

	minuteTicker := time.NewTicker(time.Minute)
	defer minuteTicker.Stop()

	backstop := time.NewTicker(s.reconcileInterval)
	defer backstop.Stop()

	for {
		select {
		case <-s.stopCh:
			s.logger.Info().Msg("scheduler stopped")
			return
		case now := <-minuteTicker.C:
			s.fireDue(now.UTC())
		case <-backstop.C:
			s.reconcile()
		}
	}
}

// fireDue applies every trigger matching the given minute. A single tick may
// start one window and finish another, so open is attempted before close.
func (s *Scheduler) fireDue(now time.Time) {
	if !s.isLeader() {
		return
	}

	day := businesshour.WeekdayOf(now)
	tick := businesshour.TimeOfDayFromMinutes(now.Hour()*60 + now.Minute())

	for _, trigger := range s.Triggers() {
		if trigger.Day != day || trigger.Time != tick {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := s.engine.OpenBusinessHoursByDayAndHour(ctx, trigger.Day, trigger.Time, trigger.UTCOffset); err != nil {
			s.logger.Error().Err(err).
				Str("day", string(trigger.Day)).
				Str("time", trigger.Time.String()).
				Msg("open trigger failed")
		}
		if err := s.engine.CloseBusinessHoursByDayAndHour(ctx, trigger.Day, trigger.Time, trigger.UTCOffset); err != nil {
			s.logger.Error().Err(err).
				Str("day", string(trigger.Day)).
				Str("time", trigger.Time.String()).
				Msg("close trigger failed")
		}
		cancel()
	}
}

func (s *Scheduler) reconcile() {
	if !s.isLeader() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.engine.OpenBusinessHoursIfNeeded(ctx); err != nil {
		s.logger.Error().Err(err).Msg("reconciliation failed")
	}
}

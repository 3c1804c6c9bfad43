// Package engine owns the business hour reconciliation algorithm: deciding
// which configured windows must be open at a given instant and driving agent
// availability state to match.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kneutral-org/livechat-hours/internal/agent"
	"github.com/kneutral-org/livechat-hours/internal/businesshour"
	"github.com/kneutral-org/livechat-hours/internal/metrics"
)

var (
	// ErrRepositoryUnavailable is returned when an underlying data-access
	// operation fails. It is never retried here; retry policy belongs to the
	// caller.
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)

// Engine is the single source of truth for "is window W open at instant T"
// and for keeping agent availability consistent with that determination.
type Engine interface {
	// SaveBusinessHour validates and persists a definition (create or update
	// by id).
	SaveBusinessHour(ctx context.Context, bh *businesshour.BusinessHour) error

	// GetBusinessHour retrieves a business hour or fails with
	// businesshour.ErrNotFound.
	GetBusinessHour(ctx context.Context, id string) (*businesshour.BusinessHour, error)

	// AllowAgentChangeServiceStatus reports whether the agent has no business
	// hour constraint or is currently inside at least one assigned window.
	AllowAgentChangeServiceStatus(ctx context.Context, agentID string) (bool, error)

	// FindHoursToCreateJobs returns the distinct UTC-adjusted trigger tuples
	// the external scheduler must register.
	FindHoursToCreateJobs(ctx context.Context) ([]businesshour.ScheduleTrigger, error)

	// OpenBusinessHoursByDayAndHour marks windows starting at the given UTC
	// tick open and propagates to agent status. Idempotent.
	OpenBusinessHoursByDayAndHour(ctx context.Context, day businesshour.Weekday, t businesshour.TimeOfDay, utcOffset float64) error

	// CloseBusinessHoursByDayAndHour marks windows finishing at the given UTC
	// tick closed and propagates to agent status. Idempotent.
	CloseBusinessHoursByDayAndHour(ctx context.Context, day businesshour.Weekday, t businesshour.TimeOfDay, utcOffset float64) error

	// RemoveBusinessHoursFromAgents clears stale open associations from all
	// agents and recomputes their status. A no-op when no agents are affected.
	RemoveBusinessHoursFromAgents(ctx context.Context) error

	// RemoveBusinessHourByID deletes the business hour and detaches it from
	// every referencing agent.
	RemoveBusinessHourByID(ctx context.Context, id string) error

	// OpenBusinessHoursIfNeeded recomputes the open set from scratch and
	// reconciles agent status. Safe to call at arbitrary cadence.
	OpenBusinessHoursIfNeeded(ctx context.Context) error
}

// reconciler holds the behavior shared by the engine variants. The current
// instant is injected so tests control the clock.
type reconciler struct {
	hours  businesshour.Store
	agents agent.Store
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures an engine variant.
type Option func(*reconciler)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(r *reconciler) {
		r.now = now
	}
}

func newReconciler(hours businesshour.Store, agents agent.Store, logger zerolog.Logger, opts ...Option) reconciler {
	r := reconciler{
		hours:  hours,
		agents: agents,
		now:    time.Now,
		logger: logger.With().Str("component", "business_hours_engine").Logger(),
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func (r *reconciler) SaveBusinessHour(ctx context.Context, bh *businesshour.BusinessHour) error {
	if err := bh.Validate(); err != nil {
		return err
	}
	if _, err := r.hours.Save(ctx, bh); err != nil {
		return r.wrap("save business hour", err)
	}
	return nil
}

func (r *reconciler) GetBusinessHour(ctx context.Context, id string) (*businesshour.BusinessHour, error) {
	bh, err := r.hours.Get(ctx, id)
	if err != nil {
		return nil, r.wrap("get business hour", err)
	}
	return bh, nil
}

func (r *reconciler) AllowAgentChangeServiceStatus(ctx context.Context, agentID string) (bool, error) {
	allowed, err := r.agents.IsWithinBusinessHours(ctx, agentID)
	if err != nil {
		return false, r.wrap("check agent business hours", err)
	}
	return allowed, nil
}

func (r *reconciler) FindHoursToCreateJobs(ctx context.Context) ([]businesshour.ScheduleTrigger, error) {
	triggers, err := r.hours.FindHoursToScheduleJobs(ctx)
	if err != nil {
		return nil, r.wrap("find schedule triggers", err)
	}
	return triggers, nil
}

func (r *reconciler) OpenBusinessHoursByDayAndHour(ctx context.Context, day businesshour.Weekday, t businesshour.TimeOfDay, utcOffset float64) error {
	ids, err := r.hours.OpenByDayAndTime(ctx, day, t, utcOffset)
	if err != nil {
		metrics.RecordTriggerEvent("open", "error")
		return r.wrap("open business hours", err)
	}
	if err := r.agents.OpenBusinessHours(ctx, ids); err != nil {
		metrics.RecordTriggerEvent("open", "error")
		return r.wrap("open agents business hours", err)
	}
	if err := r.updateAgentStatus(ctx); err != nil {
		metrics.RecordTriggerEvent("open", "error")
		return err
	}

	metrics.RecordTriggerEvent("open", "ok")
	r.logger.Debug().
		Str("day", string(day)).
		Str("time", t.String()).
		Float64("utcOffset", utcOffset).
		Int("opened", len(ids)).
		Msg("open trigger applied")
	return nil
}

func (r *reconciler) CloseBusinessHoursByDayAndHour(ctx context.Context, day businesshour.Weekday, t businesshour.TimeOfDay, utcOffset float64) error {
	ids, err := r.hours.CloseByDayAndTime(ctx, day, t, utcOffset)
	if err != nil {
		metrics.RecordTriggerEvent("close", "error")
		return r.wrap("close business hours", err)
	}
	if err := r.agents.CloseBusinessHours(ctx, ids); err != nil {
		metrics.RecordTriggerEvent("close", "error")
		return r.wrap("close agents business hours", err)
	}
	if err := r.updateAgentStatus(ctx); err != nil {
		metrics.RecordTriggerEvent("close", "error")
		return err
	}

	metrics.RecordTriggerEvent("close", "ok")
	r.logger.Debug().
		Str("day", string(day)).
		Str("time", t.String()).
		Float64("utcOffset", utcOffset).
		Int("closed", len(ids)).
		Msg("close trigger applied")
	return nil
}

func (r *reconciler) RemoveBusinessHoursFromAgents(ctx context.Context) error {
	if err := r.agents.RemoveBusinessHoursFromAgents(ctx); err != nil {
		return r.wrap("remove business hours from agents", err)
	}
	return r.updateAgentStatus(ctx)
}

func (r *reconciler) RemoveBusinessHourByID(ctx context.Context, id string) error {
	if err := r.hours.Delete(ctx, id); err != nil {
		return r.wrap("delete business hour", err)
	}
	if err := r.agents.DetachBusinessHour(ctx, id); err != nil {
		return r.wrap("detach business hour", err)
	}
	return r.updateAgentStatus(ctx)
}

// OpenBusinessHoursIfNeeded recomputes the "must be open" set from scratch,
// independent of any stored open flag, and reconciles agent status. The open
// set is computed entirely from this invocation's reads before any agent is
// mutated, so a failing pass leaves agents closed rather than half-updated.
func (r *reconciler) OpenBusinessHoursIfNeeded(ctx context.Context) error {
	start := time.Now()
	err := r.reconcile(ctx)
	metrics.RecordReconcileDuration(time.Since(start).Seconds())
	if err != nil {
		metrics.RecordReconcileRun("error")
		return err
	}
	metrics.RecordReconcileRun("ok")
	return nil
}

func (r *reconciler) reconcile(ctx context.Context) error {
	if err := r.RemoveBusinessHoursFromAgents(ctx); err != nil {
		return err
	}

	now := r.now().UTC()
	day := businesshour.WeekdayOf(now)

	candidates, err := r.hours.FindActiveByDay(ctx, day, businesshour.Projection{WorkHoursOnly: true})
	if err != nil {
		return r.wrap("find active business hours", err)
	}

	mustOpen := businesshour.OpenIDsAt(candidates, now)
	metrics.SetOpenBusinessHours(float64(len(mustOpen)))

	if err := r.agents.OpenBusinessHours(ctx, mustOpen); err != nil {
		return r.wrap("open agents business hours", err)
	}
	if err := r.updateAgentStatus(ctx); err != nil {
		return err
	}

	r.logger.Info().
		Str("day", string(day)).
		Str("time", fmt.Sprintf("%02d:%02d", now.Hour(), now.Minute())).
		Int("candidates", len(candidates)).
		Int("open", len(mustOpen)).
		Msg("business hours reconciled")
	return nil
}

func (r *reconciler) updateAgentStatus(ctx context.Context) error {
	if err := r.agents.UpdateLivechatStatus(ctx); err != nil {
		return r.wrap("update livechat status", err)
	}
	metrics.RecordAgentStatusRefresh()
	return nil
}

// wrap maps data-access failures to ErrRepositoryUnavailable while letting
// domain errors (not found, validation) pass through untouched.
func (r *reconciler) wrap(op string, err error) error {
	if errors.Is(err, businesshour.ErrNotFound) ||
		errors.Is(err, businesshour.ErrInvalidBusinessHour) ||
		errors.Is(err, agent.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", op, ErrRepositoryUnavailable, err)
}

package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kneutral-org/livechat-hours/internal/agent"
	"github.com/kneutral-org/livechat-hours/internal/businesshour"
)

var (
	// ErrOnlyDefaultAllowed is returned when a single-mode engine is asked to
	// manage a non-default business hour.
	ErrOnlyDefaultAllowed = errors.New("only the default business hour is allowed in single mode")
	// ErrDefaultNotRemovable is returned when removing the default business hour.
	ErrDefaultNotRemovable = errors.New("the default business hour cannot be removed")
)

// SingleEngine manages exactly one default business hour that governs every
// agent, regardless of individual assignments.
type SingleEngine struct {
	reconciler
}

// NewSingleEngine creates an engine restricted to the default business hour.
func NewSingleEngine(hours businesshour.Store, agents agent.Store, logger zerolog.Logger, opts ...Option) *SingleEngine {
	return &SingleEngine{reconciler: newReconciler(hours, agents, logger, opts...)}
}

// SaveBusinessHour persists the default business hour; anything else is rejected.
func (e *SingleEngine) SaveBusinessHour(ctx context.Context, bh *businesshour.BusinessHour) error {
	if bh == nil || !bh.Default {
		return ErrOnlyDefaultAllowed
	}
	return e.reconciler.SaveBusinessHour(ctx, bh)
}

// RemoveBusinessHourByID refuses to remove the default business hour.
func (e *SingleEngine) RemoveBusinessHourByID(ctx context.Context, id string) error {
	bh, err := e.reconciler.GetBusinessHour(ctx, id)
	if err != nil {
		return err
	}
	if bh.Default {
		return ErrDefaultNotRemovable
	}
	return e.reconciler.RemoveBusinessHourByID(ctx, id)
}

// AllowAgentChangeServiceStatus evaluates the default window directly: every
// agent is governed by it, whether or not it is in their assigned set.
func (e *SingleEngine) AllowAgentChangeServiceStatus(ctx context.Context, agentID string) (bool, error) {
	if _, err := e.agents.Get(ctx, agentID); err != nil {
		return false, e.wrap("get agent", err)
	}

	def, err := e.defaultBusinessHour(ctx)
	if err != nil {
		return false, err
	}
	if def == nil || !def.Active {
		return true, nil
	}
	return businesshour.IsOpenAt(def, e.now()), nil
}

func (e *SingleEngine) defaultBusinessHour(ctx context.Context) (*businesshour.BusinessHour, error) {
	hours, err := e.hours.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list business hours: %w: %v", ErrRepositoryUnavailable, err)
	}
	for _, bh := range hours {
		if bh.Default {
			return bh, nil
		}
	}
	return nil, nil
}

// Ensure SingleEngine implements Engine
var _ Engine = (*SingleEngine)(nil)

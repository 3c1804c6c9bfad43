package engine

import (
	"github.com/rs/zerolog"

	"github.com/kneutral-org/livechat-hours/internal/agent"
	"github.com/kneutral-org/livechat-hours/internal/businesshour"
)

// MultiEngine manages any number of concurrent business hours. Agents are
// gated by the windows explicitly assigned to them; agents with no
// assignments are unconstrained.
type MultiEngine struct {
	reconciler
}

// NewMultiEngine creates an engine that supports multiple business hours.
func NewMultiEngine(hours businesshour.Store, agents agent.Store, logger zerolog.Logger, opts ...Option) *MultiEngine {
	return &MultiEngine{reconciler: newReconciler(hours, agents, logger, opts...)}
}

// Ensure MultiEngine implements Engine
var _ Engine = (*MultiEngine)(nil)

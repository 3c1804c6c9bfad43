// Package api provides the HTTP management surface for business hours.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kneutral-org/livechat-hours/internal/agent"
	"github.com/kneutral-org/livechat-hours/internal/businesshour"
	"github.com/kneutral-org/livechat-hours/internal/engine"
)

// Refresher is notified after every configuration change so the trigger
// table can be rebuilt.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Handler handles business hour management requests.
type Handler struct {
	engine    engine.Engine
	agents    agent.Store
	refresher Refresher
	logger    zerolog.Logger
}

// NewHandler creates a new management handler. The refresher may be nil when
// no in-process scheduler is running.
func NewHandler(eng engine.Engine, agents agent.Store, refresher Refresher, logger zerolog.Logger) *Handler {
	return &Handler{
		engine:    eng,
		agents:    agents,
		refresher: refresher,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// RegisterRoutes registers all management routes on the provided router group.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	hours := router.Group("/business-hours")
	hours.POST("", h.SaveBusinessHour)
	hours.GET("/triggers", h.ScheduleTriggers)
	hours.POST("/open", h.OpenTick)
	hours.POST("/close", h.CloseTick)
	hours.GET("/:id", h.GetBusinessHour)
	hours.DELETE("/:id", h.RemoveBusinessHour)
	hours.POST("/:id/agents", h.AssignAgents)

	router.POST("/reconcile", h.Reconcile)
	router.GET("/agents/:id/allowed", h.AllowAgentStatusChange)
}

// SaveBusinessHour creates or updates a business hour definition.
func (h *Handler) SaveBusinessHour(c *gin.Context) {
	var bh businesshour.BusinessHour
	if err := c.ShouldBindJSON(&bh); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalidPayload", Message: err.Error()})
		return
	}

	if err := h.engine.SaveBusinessHour(c.Request.Context(), &bh); err != nil {
		h.respondError(c, err)
		return
	}

	h.refreshTriggers(c.Request.Context())
	c.JSON(http.StatusOK, bh)
}

// GetBusinessHour returns a business hour by id.
func (h *Handler) GetBusinessHour(c *gin.Context) {
	bh, err := h.engine.GetBusinessHour(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bh)
}

// RemoveBusinessHour deletes a business hour and detaches it from all agents.
func (h *Handler) RemoveBusinessHour(c *gin.Context) {
	if err := h.engine.RemoveBusinessHourByID(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}

	h.refreshTriggers(c.Request.Context())
	c.Status(http.StatusNoContent)
}

// ScheduleTriggers returns the distinct UTC trigger tuples an external
// scheduler must register.
func (h *Handler) ScheduleTriggers(c *gin.Context) {
	triggers, err := h.engine.FindHoursToCreateJobs(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"triggers": triggers})
}

// tickRequest is the payload for externally fired open/close ticks.
type tickRequest struct {
	Day       string  `json:"day" binding:"required"`
	Time      string  `json:"time" binding:"required"`
	UTCOffset float64 `json:"utcOffset"`
}

func (h *Handler) parseTick(c *gin.Context) (businesshour.Weekday, businesshour.TimeOfDay, float64, bool) {
	var req tickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalidPayload", Message: err.Error()})
		return "", businesshour.TimeOfDay{}, 0, false
	}

	day, err := businesshour.ParseWeekday(req.Day)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalidPayload", Message: err.Error()})
		return "", businesshour.TimeOfDay{}, 0, false
	}

	t, err := businesshour.ParseTimeOfDay(req.Time)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalidPayload", Message: err.Error()})
		return "", businesshour.TimeOfDay{}, 0, false
	}

	return day, t, req.UTCOffset, true
}

// OpenTick applies an externally fired open trigger.
func (h *Handler) OpenTick(c *gin.Context) {
	day, t, offset, ok := h.parseTick(c)
	if !ok {
		return
	}

	if err := h.engine.OpenBusinessHoursByDayAndHour(c.Request.Context(), day, t, offset); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "applied"})
}

// CloseTick applies an externally fired close trigger.
func (h *Handler) CloseTick(c *gin.Context) {
	day, t, offset, ok := h.parseTick(c)
	if !ok {
		return
	}

	if err := h.engine.CloseBusinessHoursByDayAndHour(c.Request.Context(), day, t, offset); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "applied"})
}

// Reconcile runs a full reconciliation pass.
func (h *Handler) Reconcile(c *gin.Context) {
	if err := h.engine.OpenBusinessHoursIfNeeded(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reconciled"})
}

// AllowAgentStatusChange reports whether the agent may change its livechat
// service status right now.
func (h *Handler) AllowAgentStatusChange(c *gin.Context) {
	allowed, err := h.engine.AllowAgentChangeServiceStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allowed": allowed})
}

// assignRequest is the payload for assigning agents to a business hour.
type assignRequest struct {
	AgentIDs []string `json:"agentIds" binding:"required"`
}

// AssignAgents adds a business hour to the given agents' assigned sets and
// recomputes their status on the next reconciliation.
func (h *Handler) AssignAgents(c *gin.Context) {
	id := c.Param("id")

	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalidPayload", Message: err.Error()})
		return
	}

	// Reject assignments to unknown business hours up front.
	if _, err := h.engine.GetBusinessHour(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.agents.AssignBusinessHour(c.Request.Context(), req.AgentIDs, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assigned": len(req.AgentIDs)})
}

func (h *Handler) refreshTriggers(ctx context.Context) {
	if h.refresher == nil {
		return
	}
	if err := h.refresher.Refresh(ctx); err != nil {
		h.logger.Error().Err(err).Msg("failed to refresh trigger table")
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, businesshour.ErrNotFound) || errors.Is(err, agent.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "notFound", Message: err.Error()})
	case errors.Is(err, businesshour.ErrInvalidBusinessHour),
		errors.Is(err, engine.ErrOnlyDefaultAllowed),
		errors.Is(err, engine.ErrDefaultNotRemovable):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validationFailed", Message: err.Error()})
	case errors.Is(err, engine.ErrRepositoryUnavailable):
		h.logger.Error().Err(err).Msg("repository unavailable")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "repositoryUnavailable", Message: "data access failed"})
	default:
		h.logger.Error().Err(err).Msg("unexpected error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal", Message: "unexpected error"})
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kneutral-org/livechat-hours/internal/agent"
	"github.com/kneutral-org/livechat-hours/internal/businesshour"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestHour(t *testing.T, hours businesshour.Store, name string, day businesshour.Weekday, offset float64) *businesshour.BusinessHour {
	t.Helper()

	start, err := businesshour.ParseTimeOfDay("09:00")
	require.NoError(t, err)
	finish, err := businesshour.ParseTimeOfDay("17:00")
	require.NoError(t, err)

	bh := &businesshour.BusinessHour{
		Name:   name,
		Active: true,
		WorkHours: []businesshour.WorkHour{
			{Day: day, Start: start, Finish: finish},
		},
		Timezone: businesshour.Timezone{Name: "Custom", UTCOffset: offset},
	}
	saved, err := hours.Save(context.Background(), bh)
	require.NoError(t, err)
	return saved
}

func TestMultiEngine_Reconcile(t *testing.T) {
	hours := businesshour.NewInMemoryStore()
	agents := agent.NewInMemoryStore()

	mondayHour := newTestHour(t, hours, "Weekdays", businesshour.Monday, 0)
	fridayHour := newTestHour(t, hours, "Fridays", businesshour.Friday, 0)

	agents.Add(&agent.Agent{ID: "a1", Username: "alice", BusinessHourIDs: []string{mondayHour.ID}})
	agents.Add(&agent.Agent{ID: "a2", Username: "bob", BusinessHourIDs: []string{fridayHour.ID}})
	agents.Add(&agent.Agent{ID: "a3", Username: "carol"})

	// Monday 10:00 UTC: only the Monday window is open.
	monday := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	eng := NewMultiEngine(hours, agents, zerolog.Nop(), WithClock(fixedClock(monday)))

	ctx := context.Background()
	require.NoError(t, eng.OpenBusinessHoursIfNeeded(ctx))

	a1, err := agents.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, agent.StatusAvailable, a1.Status)
	assert.Equal(t, []string{mondayHour.ID}, a1.OpenBusinessHourIDs)

	a2, err := agents.Get(ctx, "a2")
	require.NoError(t, err)
	assert.Equal(t, agent.StatusNotAvailable, a2.Status)
	assert.Empty(t, a2.OpenBusinessHourIDs)

	// Unconstrained agents stay available.
	a3, err := agents.Get(ctx, "a3")
	require.NoError(t, err)
	assert.Equal(t, agent.StatusAvailable, a3.Status)
}

func TestMultiEngine_ReconcileIsIdempotent(t *testing.T) {
	hours := businesshour.NewInMemoryStore()
	agents := agent.NewInMemoryStore()

	bh := newTestHour(t, hours, "Weekdays", businesshour.Monday, 0)
	agents.Add(&agent.Agent{ID: "a1", Username: "alice", BusinessHourIDs: []string{bh.ID}})

	monday := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	eng := NewMultiEngine(hours, agents, zerolog.Nop(), WithClock(fixedClock(monday)))

	ctx := context.Background()
	require.NoError(t, eng.OpenBusinessHoursIfNeeded(ctx))
	first, err := agents.Get(ctx, "a1")
	require.NoError(t, err)

	require.NoError(t, eng.OpenBusinessHoursIfNeeded(ctx))
	second, err := agents.Get(ctx, "a1")
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.OpenBusinessHourIDs, second.OpenBusinessHourIDs)
}

func TestMultiEngine_ReconcileClearsStaleOpenState(t *testing.T) {
	hours := businesshour.NewInMemoryStore()
	agents := agent.NewInMemoryStore()

	bh := newTestHour(t, hours, "Weekdays", businesshour.Monday, 0)
	agents.Add(&agent.Agent{
		ID:                  "a1",
		Username:            "alice",
		BusinessHourIDs:     []string{bh.ID},
		OpenBusinessHourIDs: []string{bh.ID, "deleted-hour"},
		Status:              agent.StatusAvailable,
	})

	// Monday 18:00 UTC: the window closed an hour ago, whatever the stored
	// open associations claim.
	evening := time.Date(2024, 1, 15, 18, 0, 0, 0, time.UTC)
	eng := NewMultiEngine(hours, agents, zerolog.Nop(), WithClock(fixedClock(evening)))

	ctx := context.Background()
	require.NoError(t, eng.OpenBusinessHoursIfNeeded(ctx))

	a1, err := agents.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, a1.OpenBusinessHourIDs)
	assert.Equal(t, agent.StatusNotAvailable, a1.Status)
}

func TestMultiEngine_OpenAndCloseByDayAndHour(t *testing.T) {
	hours := businesshour.NewInMemoryStore()
	agents := agent.NewInMemoryStore()

	bh := newTestHour(t, hours, "Shifted", businesshour.Monday, -5)
	agents.Add(&agent.Agent{ID: "a1", Username: "alice", BusinessHourIDs: []string{bh.ID}})

	eng := NewMultiEngine(hours, agents, zerolog.Nop())
	ctx := context.Background()

	// The open trigger fires at the UTC-adjusted start (09:00 local, UTC-5).
	utcStart, err := businesshour.ParseTimeOfDay("14:00")
	require.NoError(t, err)
	require.NoError(t, eng.OpenBusinessHoursByDayAndHour(ctx, businesshour.Monday, utcStart, -5))

	a1, err := agents.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, agent.StatusAvailable, a1.Status)
	assert.Equal(t, []string{bh.ID}, a1.OpenBusinessHourIDs)

	// An unrelated tick changes nothing.
	otherTick, err := businesshour.ParseTimeOfDay("15:00")
	require.NoError(t, err)
	require.NoError(t, eng.OpenBusinessHoursByDayAndHour(ctx, businesshour.Monday, otherTick, -5))
	a1, err = agents.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, []string{bh.ID}, a1.OpenBusinessHourIDs)

	utcFinish, err := businesshour.ParseTimeOfDay("22:00")
	require.NoError(t, err)
	require.NoError(t, eng.CloseBusinessHoursByDayAndHour(ctx, businesshour.Monday, utcFinish, -5))

	a1, err = agents.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, agent.StatusNotAvailable, a1.Status)
	assert.Empty(t, a1.OpenBusinessHourIDs)
}

func TestMultiEngine_RemoveBusinessHourByID(t *testing.T) {
	hours := businesshour.NewInMemoryStore()
	agents := agent.NewInMemoryStore()

	bh := newTestHour(t, hours, "Weekdays", businesshour.Monday, 0)
	agents.Add(&agent.Agent{
		ID:                  "a1",
		Username:            "alice",
		BusinessHourIDs:     []string{bh.ID},
		OpenBusinessHourIDs: []string{bh.ID},
	})

	eng := NewMultiEngine(hours, agents, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, eng.RemoveBusinessHourByID(ctx, bh.ID))

	_, err := hours.Get(ctx, bh.ID)
	assert.ErrorIs(t, err, businesshour.ErrNotFound)

	a1, err := agents.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, a1.BusinessHourIDs)
	assert.Empty(t, a1.OpenBusinessHourIDs)
	// No constraint left means the agent is available again.
	assert.Equal(t, agent.StatusAvailable, a1.Status)

	assert.ErrorIs(t, eng.RemoveBusinessHourByID(ctx, "missing"), businesshour.ErrNotFound)
}

func TestMultiEngine_SaveBusinessHourValidates(t *testing.T) {
	eng := NewMultiEngine(businesshour.NewInMemoryStore(), agent.NewInMemoryStore(), zerolog.Nop())

	err := eng.SaveBusinessHour(context.Background(), &businesshour.BusinessHour{
		Name:     "Broken",
		Timezone: businesshour.Timezone{UTCOffset: 99},
	})
	assert.ErrorIs(t, err, businesshour.ErrInvalidBusinessHour)
	assert.NotErrorIs(t, err, ErrRepositoryUnavailable)
}

// failingHourStore simulates a storage outage on the reconcile read path.
type failingHourStore struct {
	*businesshour.InMemoryStore
}

func (s *failingHourStore) FindActiveByDay(ctx context.Context, day businesshour.Weekday, p businesshour.Projection) ([]*businesshour.BusinessHour, error) {
	return nil, errors.New("connection refused")
}

func TestMultiEngine_ReconcileFailsClosed(t *testing.T) {
	hours := &failingHourStore{InMemoryStore: businesshour.NewInMemoryStore()}
	agents := agent.NewInMemoryStore()

	agents.Add(&agent.Agent{
		ID:                  "a1",
		Username:            "alice",
		BusinessHourIDs:     []string{"bh-1"},
		OpenBusinessHourIDs: []string{"bh-1"},
		Status:              agent.StatusAvailable,
	})

	eng := NewMultiEngine(hours, agents, zerolog.Nop())
	ctx := context.Background()

	err := eng.OpenBusinessHoursIfNeeded(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRepositoryUnavailable)

	// The cleanup step ran before the failing read, so the agent is left
	// closed rather than half-open.
	a1, getErr := agents.Get(ctx, "a1")
	require.NoError(t, getErr)
	assert.Empty(t, a1.OpenBusinessHourIDs)
	assert.Equal(t, agent.StatusNotAvailable, a1.Status)
}

func TestMultiEngine_FindHoursToCreateJobs(t *testing.T) {
	hours := businesshour.NewInMemoryStore()
	newTestHour(t, hours, "Weekdays", businesshour.Monday, 0)

	eng := NewMultiEngine(hours, agent.NewInMemoryStore(), zerolog.Nop())

	triggers, err := eng.FindHoursToCreateJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, triggers, 2)
	assert.Equal(t, businesshour.Monday, triggers[0].Day)
}

func TestMultiEngine_AllowAgentChangeServiceStatus(t *testing.T) {
	agents := agent.NewInMemoryStore()
	agents.Add(&agent.Agent{ID: "free", Username: "free"})
	agents.Add(&agent.Agent{ID: "bound", Username: "bound", BusinessHourIDs: []string{"bh-1"}})

	eng := NewMultiEngine(businesshour.NewInMemoryStore(), agents, zerolog.Nop())
	ctx := context.Background()

	allowed, err := eng.AllowAgentChangeServiceStatus(ctx, "free")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = eng.AllowAgentChangeServiceStatus(ctx, "bound")
	require.NoError(t, err)
	assert.False(t, allowed)

	_, err = eng.AllowAgentChangeServiceStatus(ctx, "missing")
	assert.ErrorIs(t, err, agent.ErrNotFound)
}

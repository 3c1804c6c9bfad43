package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStore() *InMemoryStore {
	store := NewInMemoryStore()
	store.Add(&Agent{ID: "a1", Username: "alice", BusinessHourIDs: []string{"bh-1", "bh-2"}})
	store.Add(&Agent{ID: "a2", Username: "bob", BusinessHourIDs: []string{"bh-2"}})
	store.Add(&Agent{ID: "a3", Username: "carol"})
	return store
}

func TestInMemoryStore_Get(t *testing.T) {
	store := seedStore()
	ctx := context.Background()

	a, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "alice", a.Username)
	assert.Equal(t, StatusAvailable, a.Status)

	// Returned copies are detached from the stored value.
	a.BusinessHourIDs[0] = "mutated"
	again, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "bh-1", again.BusinessHourIDs[0])

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStore_OpenBusinessHours(t *testing.T) {
	store := seedStore()
	ctx := context.Background()

	require.NoError(t, store.OpenBusinessHours(ctx, []string{"bh-1", "bh-9"}))

	a1, _ := store.Get(ctx, "a1")
	assert.Equal(t, []string{"bh-1"}, a1.OpenBusinessHourIDs)

	// bh-1 is not assigned to a2, nothing opens there.
	a2, _ := store.Get(ctx, "a2")
	assert.Empty(t, a2.OpenBusinessHourIDs)

	// Opening is additive and does not duplicate ids already open.
	require.NoError(t, store.OpenBusinessHours(ctx, []string{"bh-1", "bh-2"}))
	a1, _ = store.Get(ctx, "a1")
	assert.Equal(t, []string{"bh-1", "bh-2"}, a1.OpenBusinessHourIDs)
	a2, _ = store.Get(ctx, "a2")
	assert.Equal(t, []string{"bh-2"}, a2.OpenBusinessHourIDs)
}

func TestInMemoryStore_CloseBusinessHours(t *testing.T) {
	store := seedStore()
	ctx := context.Background()

	require.NoError(t, store.OpenBusinessHours(ctx, []string{"bh-1", "bh-2"}))
	require.NoError(t, store.CloseBusinessHours(ctx, []string{"bh-2"}))

	a1, _ := store.Get(ctx, "a1")
	assert.Equal(t, []string{"bh-1"}, a1.OpenBusinessHourIDs)
	a2, _ := store.Get(ctx, "a2")
	assert.Empty(t, a2.OpenBusinessHourIDs)
}

func TestInMemoryStore_RemoveBusinessHoursFromAgents(t *testing.T) {
	store := seedStore()
	ctx := context.Background()

	require.NoError(t, store.OpenBusinessHours(ctx, []string{"bh-1", "bh-2"}))
	require.NoError(t, store.RemoveBusinessHoursFromAgents(ctx))

	for _, id := range []string{"a1", "a2", "a3"} {
		a, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, a.OpenBusinessHourIDs)
		// Assignments survive; only the open state is cleared.
		if id == "a1" {
			assert.Len(t, a.BusinessHourIDs, 2)
		}
	}
}

func TestInMemoryStore_DetachBusinessHour(t *testing.T) {
	store := seedStore()
	ctx := context.Background()

	require.NoError(t, store.OpenBusinessHours(ctx, []string{"bh-2"}))
	require.NoError(t, store.DetachBusinessHour(ctx, "bh-2"))

	a1, _ := store.Get(ctx, "a1")
	assert.Equal(t, []string{"bh-1"}, a1.BusinessHourIDs)
	assert.Empty(t, a1.OpenBusinessHourIDs)

	a2, _ := store.Get(ctx, "a2")
	assert.Empty(t, a2.BusinessHourIDs)
	assert.Empty(t, a2.OpenBusinessHourIDs)
}

func TestInMemoryStore_AssignBusinessHour(t *testing.T) {
	store := seedStore()
	ctx := context.Background()

	require.NoError(t, store.AssignBusinessHour(ctx, []string{"a2", "a3"}, "bh-3"))

	a2, _ := store.Get(ctx, "a2")
	assert.Equal(t, []string{"bh-2", "bh-3"}, a2.BusinessHourIDs)
	a3, _ := store.Get(ctx, "a3")
	assert.Equal(t, []string{"bh-3"}, a3.BusinessHourIDs)

	// Assigning twice keeps a single entry.
	require.NoError(t, store.AssignBusinessHour(ctx, []string{"a3"}, "bh-3"))
	a3, _ = store.Get(ctx, "a3")
	assert.Equal(t, []string{"bh-3"}, a3.BusinessHourIDs)

	assert.ErrorIs(t, store.AssignBusinessHour(ctx, []string{"missing"}, "bh-3"), ErrNotFound)
}

func TestInMemoryStore_UpdateLivechatStatus(t *testing.T) {
	store := seedStore()
	ctx := context.Background()

	// Nothing open: assigned agents go unavailable, unassigned stay available.
	require.NoError(t, store.UpdateLivechatStatus(ctx))

	a1, _ := store.Get(ctx, "a1")
	assert.Equal(t, StatusNotAvailable, a1.Status)
	a3, _ := store.Get(ctx, "a3")
	assert.Equal(t, StatusAvailable, a3.Status)

	require.NoError(t, store.OpenBusinessHours(ctx, []string{"bh-1"}))
	require.NoError(t, store.UpdateLivechatStatus(ctx))

	a1, _ = store.Get(ctx, "a1")
	assert.Equal(t, StatusAvailable, a1.Status)
	a2, _ := store.Get(ctx, "a2")
	assert.Equal(t, StatusNotAvailable, a2.Status)
}

func TestInMemoryStore_IsWithinBusinessHours(t *testing.T) {
	store := seedStore()
	ctx := context.Background()

	// No assignments means always within hours.
	within, err := store.IsWithinBusinessHours(ctx, "a3")
	require.NoError(t, err)
	assert.True(t, within)

	within, err = store.IsWithinBusinessHours(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, within)

	require.NoError(t, store.OpenBusinessHours(ctx, []string{"bh-1"}))
	within, err = store.IsWithinBusinessHours(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, within)

	_, err = store.IsWithinBusinessHours(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

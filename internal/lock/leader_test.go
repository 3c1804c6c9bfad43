package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLock is an in-process DistributedLock for elector tests.
type fakeLock struct {
	mu         sync.Mutex
	held       bool
	acquirable bool
	extendErr  error
	releases   int
}

func (l *fakeLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.acquirable {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *fakeLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	l.releases++
	return nil
}

func (l *fakeLock) Extend(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.extendErr != nil {
		l.held = false
		return l.extendErr
	}
	return nil
}

func (l *fakeLock) IsHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

func (l *fakeLock) setExtendErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.extendErr = err
}

func (l *fakeLock) releaseCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.releases
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestLeaderElector_AcquiresLeadership(t *testing.T) {
	l := &fakeLock{acquirable: true}
	elector := NewLeaderElector(l, 10*time.Millisecond, zerolog.Nop())

	elector.Start(context.Background())
	defer elector.Stop(context.Background())

	waitFor(t, elector.IsLeader, "leadership never acquired")
	assert.True(t, l.IsHeld())
}

func TestLeaderElector_DoesNotLeadWhenLockTaken(t *testing.T) {
	l := &fakeLock{acquirable: false}
	elector := NewLeaderElector(l, 10*time.Millisecond, zerolog.Nop())

	elector.Start(context.Background())
	defer elector.Stop(context.Background())

	time.Sleep(50 * time.Millisecond)
	assert.False(t, elector.IsLeader())
}

func TestLeaderElector_LosesLeadershipOnFailedRenewal(t *testing.T) {
	l := &fakeLock{acquirable: true}
	elector := NewLeaderElector(l, 10*time.Millisecond, zerolog.Nop())

	elector.Start(context.Background())
	defer elector.Stop(context.Background())

	waitFor(t, elector.IsLeader, "leadership never acquired")

	// Renewal fails and reacquisition is blocked: leadership must drop.
	l.mu.Lock()
	l.acquirable = false
	l.mu.Unlock()
	l.setExtendErr(ErrLockNotHeld)

	waitFor(t, func() bool { return !elector.IsLeader() }, "leadership never lost")
}

func TestLeaderElector_ReleasesOnStop(t *testing.T) {
	l := &fakeLock{acquirable: true}
	elector := NewLeaderElector(l, 10*time.Millisecond, zerolog.Nop())

	elector.Start(context.Background())
	waitFor(t, elector.IsLeader, "leadership never acquired")

	elector.Stop(context.Background())

	require.Equal(t, 1, l.releaseCount())
	assert.False(t, elector.IsLeader())
	assert.False(t, l.IsHeld())
}

// Package lock provides the distributed locking used to make sure only one
// service instance drives business hour triggers and reconciliation when
// several replicas share a database.
package lock

import (
	"context"
	"errors"
)

// ErrLockNotHeld is returned when trying to release or extend a lock that is
// not held by this instance.
var ErrLockNotHeld = errors.New("lock not held by this instance")

// DistributedLock is a TTL-based lock shared across service instances.
// Implementations must be safe for concurrent use.
type DistributedLock interface {
	// Acquire attempts to acquire the lock. Returns true when acquired, false
	// when another instance holds it. The lock expires after its TTL.
	Acquire(ctx context.Context) (bool, error)

	// Release releases the lock if held by this instance. Releasing a lock
	// that is not held is a no-op.
	Release(ctx context.Context) error

	// Extend refreshes the lock's TTL, or fails with ErrLockNotHeld.
	Extend(ctx context.Context) error

	// IsHeld reports whether this instance currently holds the lock.
	IsHeld() bool
}

// Package lock provides the per-document single-flight guard for generation
// cycles. The in-memory implementation serves a single server process; the
// Redis implementation extends the guarantee across replicas.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotHeld is returned by Extend when the lock is not held by this instance.
var ErrNotHeld = errors.New("lock not held")

// Locker guards named resources.
type Locker interface {
	// Acquire returns false, without error, when the lock is held elsewhere.
	// The lock expires after ttl unless extended.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)

	// Release is safe to call on a lock that expired or was never acquired.
	Release(ctx context.Context, name string) error

	// Extend pushes the expiry of a held lock to ttl from now.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks the backend.
	Ping(ctx context.Context) error
}

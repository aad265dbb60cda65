// Package lock serializes work on a single aggregate across requests and
// replicas. Application sagas take the lock for their application id so that
// two concurrent edits cannot interleave their read-modify-write cycles.
package lock

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotAcquired is returned when the lock could not be taken before the
	// context expired.
	ErrNotAcquired = errors.New("lock not acquired")
	// ErrLost is returned by Extend once the lock expired and another holder
	// took it.
	ErrLost = errors.New("lock lost")
)

// Lease is a held lock.
type Lease interface {
	// Extend moves the expiry to ttl from now.
	Extend(ctx context.Context, ttl time.Duration) error
	// Release frees the lock. Releasing an expired lock is a no-op.
	Release(ctx context.Context) error
}

// Locker acquires exclusive, expiring locks on string keys.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Noop never blocks. It keeps the last-writer-wins behaviour when no lock
// backend is configured.
type Noop struct{}

func (Noop) Acquire(context.Context, string, time.Duration) (Lease, error) {
	return noopLease{}, nil
}

type noopLease struct{}

func (noopLease) Extend(context.Context, time.Duration) error { return nil }
func (noopLease) Release(context.Context) error                 { return nil }

// KeepAlive extends lease every ttl/3 until stop is called, so work that
// outlives a single ttl keeps the lock. The returned context is cancelled when
// an extension reports the lease lost; transient extension errors are retried
// on the next tick.
func KeepAlive(ctx context.Context, lease Lease, ttl time.Duration) (context.Context, func()) {
	runCtx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(max(ttl/3, time.Millisecond))
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := lease.Extend(context.WithoutCancel(ctx), ttl); errors.Is(err, ErrLost) {
					cancel(ErrLost)
					return
				}
			}
		}
	}()
	return runCtx, func() {
		close(done)
		<-stopped
		cancel(nil)
	}
}

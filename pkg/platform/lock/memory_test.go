package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySerializesSameKey(t *testing.T) {
	m := NewMemory()
	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := m.Acquire(context.Background(), "app-1", time.Second)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			_ = lease.Release(context.Background())
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestMemoryIndependentKeys(t *testing.T) {
	m := NewMemory()
	r1, err := m.Acquire(context.Background(), "app-1", time.Second)
	require.NoError(t, err)
	r2, err := m.Acquire(context.Background(), "app-2", time.Second)
	require.NoError(t, err)
	require.NoError(t, r1.Release(context.Background()))
	require.NoError(t, r2.Release(context.Background()))
}

func TestMemoryTimesOut(t *testing.T) {
	m := NewMemory()
	_, err := m.Acquire(context.Background(), "app-1", time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, "app-1", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)
}

func TestMemoryExpiredHolderIsDisplaced(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	stale, err := m.Acquire(context.Background(), "app-1", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	fresh, err := m.Acquire(context.Background(), "app-1", time.Second)
	require.NoError(t, err)

	// The stale holder's release must not free the new holder's lock.
	require.NoError(t, stale.Release(context.Background()))
	assert.ErrorIs(t, stale.Extend(context.Background(), time.Second), ErrLost)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, "app-1", time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, fresh.Release(context.Background()))
}

func TestNoop(t *testing.T) {
	lease, err := Noop{}.Acquire(context.Background(), "x", time.Second)
	require.NoError(t, err)
	assert.NoError(t, lease.Extend(context.Background(), time.Second))
	assert.NoError(t, lease.Release(context.Background()))
}

func TestKeepAliveOutlivesTTL(t *testing.T) {
	m := NewMemory()
	lease, err := m.Acquire(context.Background(), "app-1", 60*time.Millisecond)
	require.NoError(t, err)

	runCtx, stop := KeepAlive(context.Background(), lease, 60*time.Millisecond)
	time.Sleep(200 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, "app-1", time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired, "an extended lease must still hold the key")
	assert.NoError(t, runCtx.Err())

	stop()
	require.NoError(t, lease.Release(context.Background()))
	assert.Error(t, runCtx.Err(), "stop cancels the work context")
}

func TestKeepAliveCancelsWorkWhenLeaseIsLost(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	m := NewMemory()
	m.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	lease, err := m.Acquire(context.Background(), "app-1", 30*time.Millisecond)
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(time.Minute)
	mu.Unlock()
	_, err = m.Acquire(context.Background(), "app-1", time.Minute)
	require.NoError(t, err)

	runCtx, stop := KeepAlive(context.Background(), lease, 30*time.Millisecond)
	defer stop()
	select {
	case <-runCtx.Done():
		assert.ErrorIs(t, context.Cause(runCtx), ErrLost)
	case <-time.After(time.Second):
		t.Fatal("work context was not cancelled after the lease was lost")
	}
}

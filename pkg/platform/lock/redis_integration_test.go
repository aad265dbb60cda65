//go:build integration

package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apihub/pkg/platform/lock"
	"apihub/pkg/testutil/containers"
)

func TestRedisLock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	client := containers.GetManager().GetRedis(t).NewClient(t)
	locker := lock.NewRedis(client, "apihub:lock:")
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, "application:1", time.Minute)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	_, err = locker.Acquire(waitCtx, "application:1", time.Minute)
	cancel()
	assert.ErrorIs(t, err, lock.ErrNotAcquired)

	other, err := locker.Acquire(ctx, "application:2", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))
	again, err := locker.Acquire(ctx, "application:1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestRedisLockExpires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	client := containers.GetManager().GetRedis(t).NewClient(t)
	locker := lock.NewRedis(client, "apihub:lock:")
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, "access-request:1", 50*time.Millisecond)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	fresh, err := locker.Acquire(waitCtx, "access-request:1", time.Minute)
	require.NoError(t, err)

	// The expired holder must not release the new holder's lock.
	require.NoError(t, stale.Release(ctx))
	assert.ErrorIs(t, stale.Extend(ctx, time.Minute), lock.ErrLost)
	n, err := client.Exists(ctx, "apihub:lock:access-request:1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, fresh.Extend(ctx, time.Minute))
	require.NoError(t, fresh.Release(ctx))
}

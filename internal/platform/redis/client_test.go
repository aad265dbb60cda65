package redis

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apihub/internal/platform/config"
)

func TestNewWithoutURL(t *testing.T) {
	client, err := New(context.Background(), config.Redis{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), config.Redis{URL: "http://not-redis"})
	assert.ErrorContains(t, err, "parse redis URL")
}

func TestPoolMetricsAreReadOnScrape(t *testing.T) {
	stats := &redis.PoolStats{Hits: 7, Misses: 2, Timeouts: 1, StaleConns: 3, TotalConns: 4, IdleConns: 2}
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(newPoolCollector(func() *redis.PoolStats { return stats })))

	expected := `
# HELP apihub_redis_pool_hits_total Connections found idle in the pool
# TYPE apihub_redis_pool_hits_total counter
apihub_redis_pool_hits_total 7
# HELP apihub_redis_pool_idle_conns Idle connections currently in the pool
# TYPE apihub_redis_pool_idle_conns gauge
apihub_redis_pool_idle_conns 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"apihub_redis_pool_hits_total", "apihub_redis_pool_idle_conns"))

	stats.Hits = 9
	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 6, count)
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(strings.ReplaceAll(expected, "total 7", "total 9")),
		"apihub_redis_pool_hits_total", "apihub_redis_pool_idle_conns"))
}

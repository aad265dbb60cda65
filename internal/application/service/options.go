package service

import (
	"log/slog"
	"time"

	appmetrics "apihub/internal/application/metrics"
	"apihub/pkg/platform/lock"
)

// serviceConfig holds optional dependencies for the service.
type serviceConfig struct {
	logger   *slog.Logger
	metrics  *appmetrics.Metrics
	locker   lock.Locker
	lockTTL  time.Duration
	notifier Notifier
}

// Option configures a service.
type Option func(c *serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) {
		c.logger = logger
	}
}

func WithMetrics(m *appmetrics.Metrics) Option {
	return func(c *serviceConfig) {
		c.metrics = m
	}
}

// WithLocker serializes edits of one application. Without it concurrent edits
// are last writer wins.
func WithLocker(l lock.Locker, ttl time.Duration) Option {
	return func(c *serviceConfig) {
		c.locker = l
		if ttl > 0 {
			c.lockTTL = ttl
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(c *serviceConfig) {
		c.notifier = n
	}
}

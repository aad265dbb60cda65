package identity

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	id "apihub/pkg/domain"
	"apihub/pkg/platform/circuit"
)

type GuardedSuite struct {
	suite.Suite
	inner   *InMemory
	metrics *Metrics
	guarded *Guarded
}

func TestGuardedSuite(t *testing.T) {
	suite.Run(t, new(GuardedSuite))
}

func (s *GuardedSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.inner = NewInMemory()
	s.inner.Seed("production", "prod-client", "read:a")
	s.inner.Seed("test", "test-client", "read:a")
	s.metrics = NewMetricsWith(prometheus.NewRegistry())
	breakers := circuit.NewRegistry(BreakerService, []string{"production", "test"},
		BreakerOptions(logger, s.metrics,
			circuit.WithFailureThreshold(2),
			circuit.WithCooldown(time.Hour),
		)...,
	)
	s.guarded = NewGuarded(s.inner, breakers, WithLogger(logger), WithMetrics(s.metrics))
}

func (s *GuardedSuite) tripProduction() {
	s.inner.Fail("production", OpAddScope, KindCallError)
	for i := 0; i < 2; i++ {
		err := s.guarded.AddClientScope(context.Background(), "production", "prod-client", "write:b")
		s.Require().Error(err)
		s.False(isBreakerOpen(err))
	}
}

func (s *GuardedSuite) TestOpenBreakerSkipsTheNetwork() {
	s.tripProduction()
	before := len(s.inner.Calls())

	_, err := s.guarded.FetchClientScopes(context.Background(), "production", "prod-client")
	s.Require().Error(err)
	s.True(isBreakerOpen(err))
	s.Equal(KindCallError, KindOf(err))
	s.Len(s.inner.Calls(), before, "no call may reach the connector while open")

	s.Equal(float64(circuit.StateOpen), testutil.ToFloat64(s.metrics.BreakerState.WithLabelValues("production")))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Calls.WithLabelValues("production", string(OpFetchScopes), "breaker_open")))
}

func (s *GuardedSuite) TestBreakersAreIndependentPerEnvironment() {
	s.tripProduction()

	scopes, err := s.guarded.FetchClientScopes(context.Background(), "test", "test-client")
	s.Require().NoError(err)
	s.Equal([]string{"read:a"}, scopes)
	s.NoError(s.guarded.AddClientScope(context.Background(), "test", "test-client", "write:b"))
}

func (s *GuardedSuite) TestClientErrorsDoNotTrip() {
	for i := 0; i < 5; i++ {
		_, err := s.guarded.FetchClientScopes(context.Background(), "production", "unknown")
		s.Equal(KindClientNotFound, KindOf(err))
	}
	s.inner.Fail("production", OpAddScope, KindUnauthorized)
	for i := 0; i < 5; i++ {
		err := s.guarded.AddClientScope(context.Background(), "production", "prod-client", "write:b")
		s.Equal(KindUnauthorized, KindOf(err))
	}

	_, err := s.guarded.FetchClientScopes(context.Background(), "production", "prod-client")
	s.NoError(err)
}

func (s *GuardedSuite) TestCanceledCallsDoNotTrip() {
	s.inner.Fail("production", OpAddScope, KindCanceled)
	for i := 0; i < 5; i++ {
		err := s.guarded.AddClientScope(context.Background(), "production", "prod-client", "write:b")
		s.Equal(KindCanceled, KindOf(err))
		s.False(isBreakerOpen(err))
	}

	_, err := s.guarded.FetchClientScopes(context.Background(), "production", "prod-client")
	s.NoError(err)
}

func (s *GuardedSuite) TestUnknownEnvironment() {
	err := s.guarded.DeleteClient(context.Background(), id.EnvironmentID("staging"), "c")
	s.Require().Error(err)
	s.Equal(KindCallError, KindOf(err))
	s.Empty(s.inner.Calls())
}

func (s *GuardedSuite) TestCreateClientPassesThrough() {
	client, err := s.guarded.CreateClient(context.Background(), "test", "billing")
	s.Require().NoError(err)
	s.NotEmpty(client.ClientID)
	s.NotEmpty(client.ClientSecret)
	s.Empty(s.inner.Scopes("test", client.ClientID))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Calls.WithLabelValues("test", string(OpCreateClient), "ok")))
}

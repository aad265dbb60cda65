package scopes

//go:generate mockgen -source=../identity/connector.go -destination=mocks/connector.go -package=mocks Connector

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	armodels "apihub/internal/accessrequest/models"
	appmodels "apihub/internal/application/models"
	"apihub/internal/identity"
	"apihub/internal/scopes/mocks"
	id "apihub/pkg/domain"
	dErrors "apihub/pkg/domain-errors"
	"apihub/pkg/platform/httputil"
	fixtures "apihub/pkg/testutil"
)

type FixerSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	connector *mocks.MockConnector
	metrics   *Metrics
	fixer     *Fixer
	app       appmodels.Application
	prodID    string
	testID    string
}

func TestFixerSuite(t *testing.T) {
	suite.Run(t, new(FixerSuite))
}

func (s *FixerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.connector = mocks.NewMockConnector(s.ctrl)
	s.metrics = NewMetricsWith(prometheus.NewRegistry())
	s.fixer = NewFixer(s.connector, fixtures.Environments(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
	)
	s.app = fixtures.NewApplicationBuilder().
		WithApi(fixtures.TestIDs.Api1, fixtures.Endpoint("GET", "/foo", "read:foo")).
		Build()
	s.prodID = fixtures.ClientID(s.app.ID, fixtures.TestIDs.Prod)
	s.testID = fixtures.ClientID(s.app.ID, fixtures.TestIDs.Test)
}

func (s *FixerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *FixerSuite) env(r Result, envID id.EnvironmentID) EnvResult {
	for _, e := range r.Environments {
		if e.Environment == envID {
			return e
		}
	}
	s.FailNow("environment missing from result", envID)
	return EnvResult{}
}

func (s *FixerSuite) expectTestInSync() {
	s.connector.EXPECT().FetchClientScopes(gomock.Any(), fixtures.TestIDs.Test, s.testID).Return([]string{"read:foo"}, nil)
}

// Gated production without approval revokes, and the approval grants back.
func (s *FixerSuite) TestProductionApprovalScenario() {
	ctx := context.Background()

	s.Run("no approval revokes the scope", func() {
		s.expectTestInSync()
		s.connector.EXPECT().FetchClientScopes(gomock.Any(), fixtures.TestIDs.Prod, s.prodID).Return([]string{"read:foo"}, nil)
		s.connector.EXPECT().RemoveClientScope(gomock.Any(), fixtures.TestIDs.Prod, s.prodID, "read:foo").Return(nil)

		result := s.fixer.Fix(ctx, s.app, nil)
		s.NoError(result.Err())
		s.Equal([]string{"read:foo"}, s.env(result, fixtures.TestIDs.Prod).Removed)
		s.True(result.Changed())
	})

	s.Run("approval grants the scope", func() {
		approved := fixtures.NewAccessRequestBuilder().
			WithEndpoints(fixtures.Endpoint("GET", "/foo", "read:foo")).
			Approved().Build()
		s.expectTestInSync()
		s.connector.EXPECT().FetchClientScopes(gomock.Any(), fixtures.TestIDs.Prod, s.prodID).Return([]string{}, nil)
		s.connector.EXPECT().AddClientScope(gomock.Any(), fixtures.TestIDs.Prod, s.prodID, "read:foo").Return(nil)

		result := s.fixer.Fix(ctx, s.app, []armodels.AccessRequest{approved})
		s.NoError(result.Err())
		s.Equal([]string{"read:foo"}, s.env(result, fixtures.TestIDs.Prod).Added)
	})
}

func (s *FixerSuite) TestAdditionsPrecedeRemovals() {
	app := fixtures.NewApplicationBuilder().
		WithApi(fixtures.TestIDs.Api1, fixtures.Endpoint("GET", "/foo", "read:foo", "read:all")).
		Build()
	s.connector.EXPECT().FetchClientScopes(gomock.Any(), fixtures.TestIDs.Prod, s.prodID).Return(nil, nil)

	gomock.InOrder(
		s.connector.EXPECT().FetchClientScopes(gomock.Any(), fixtures.TestIDs.Test, s.testID).Return([]string{"old:a", "old:b"}, nil),
		s.connector.EXPECT().AddClientScope(gomock.Any(), fixtures.TestIDs.Test, s.testID, "read:all").Return(nil),
		s.connector.EXPECT().AddClientScope(gomock.Any(), fixtures.TestIDs.Test, s.testID, "read:foo").Return(nil),
		s.connector.EXPECT().RemoveClientScope(gomock.Any(), fixtures.TestIDs.Test, s.testID, "old:a").Return(nil),
		s.connector.EXPECT().RemoveClientScope(gomock.Any(), fixtures.TestIDs.Test, s.testID, "old:b").Return(nil),
	)

	result := s.fixer.Fix(context.Background(), app, nil)
	s.NoError(result.Err())
	testEnv := s.env(result, fixtures.TestIDs.Test)
	s.Equal([]string{"read:all", "read:foo"}, testEnv.Added)
	s.Equal([]string{"old:a", "old:b"}, testEnv.Removed)
}

func (s *FixerSuite) TestFailureAbortsOnlyItsEnvironment() {
	upstream := &identity.Error{Kind: identity.KindCallError, Environment: fixtures.TestIDs.Prod, Operation: identity.OpAddScope, StatusCode: 503}
	approved := fixtures.NewAccessRequestBuilder().
		WithEndpoints(fixtures.Endpoint("GET", "/foo", "read:foo")).
		Approved().Build()

	s.connector.EXPECT().FetchClientScopes(gomock.Any(), fixtures.TestIDs.Prod, s.prodID).Return([]string{"stale"}, nil)
	s.connector.EXPECT().AddClientScope(gomock.Any(), fixtures.TestIDs.Prod, s.prodID, "read:foo").Return(upstream)
	// No removal may follow the failed addition in production.

	s.connector.EXPECT().FetchClientScopes(gomock.Any(), fixtures.TestIDs.Test, s.testID).Return([]string{"stale"}, nil)
	s.connector.EXPECT().AddClientScope(gomock.Any(), fixtures.TestIDs.Test, s.testID, "read:foo").Return(nil)
	s.connector.EXPECT().RemoveClientScope(gomock.Any(), fixtures.TestIDs.Test, s.testID, "stale").Return(nil)

	result := s.fixer.Fix(context.Background(), s.app, []armodels.AccessRequest{approved})

	prod := s.env(result, fixtures.TestIDs.Prod)
	s.Require().NotNil(prod.Failure)
	s.Equal(identity.OpAddScope, prod.Failure.Operation)
	s.Equal("read:foo", prod.Failure.Scope)
	s.Empty(prod.Added)

	test := s.env(result, fixtures.TestIDs.Test)
	s.Nil(test.Failure)
	s.Equal([]string{"stale"}, test.Removed)

	err := result.Err()
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUpstreamUnavailable))
	var detailed httputil.Detailed
	s.Require().ErrorAs(err, &detailed)
	s.Equal([]FailureDetail{{
		Environment: "production",
		Operation:   "add_scope",
		Kind:        "call_error",
		Scope:       "read:foo",
	}}, detailed.Details())

	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Runs.WithLabelValues("production", "failed")))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Runs.WithLabelValues("test", "changed")))
}

func (s *FixerSuite) TestFetchFailureStopsEnvironment() {
	s.expectTestInSync()
	s.connector.EXPECT().FetchClientScopes(gomock.Any(), fixtures.TestIDs.Prod, s.prodID).
		Return(nil, &identity.Error{Kind: identity.KindTimeout, Environment: fixtures.TestIDs.Prod, Operation: identity.OpFetchScopes})

	result := s.fixer.Fix(context.Background(), s.app, nil)
	prod := s.env(result, fixtures.TestIDs.Prod)
	s.Require().NotNil(prod.Failure)
	s.Equal(identity.OpFetchScopes, prod.Failure.Operation)
	s.False(result.Changed())
	s.True(dErrors.HasCode(result.Err(), dErrors.CodeTimeout))
}

func (s *FixerSuite) TestErrorCodePrecedence() {
	timeout := &identity.Error{Kind: identity.KindTimeout}
	unexpected := &identity.Error{Kind: identity.KindUnexpectedResponse}
	open := &identity.Error{Kind: identity.KindCallError, BreakerOpen: true}

	s.Run("timeout wins", func() {
		r := Result{Environments: []EnvResult{
			{Environment: "a", Failure: &Failure{Operation: identity.OpFetchScopes, Err: unexpected}},
			{Environment: "b", Failure: &Failure{Operation: identity.OpFetchScopes, Err: timeout}},
		}}
		s.True(dErrors.HasCode(r.Err(), dErrors.CodeTimeout))
	})
	s.Run("unexpected response beats unavailable", func() {
		r := Result{Environments: []EnvResult{
			{Environment: "a", Failure: &Failure{Operation: identity.OpFetchScopes, Err: open}},
			{Environment: "b", Failure: &Failure{Operation: identity.OpFetchScopes, Err: unexpected}},
		}}
		s.True(dErrors.HasCode(r.Err(), dErrors.CodeUpstreamUnexpectedResponse))
	})
	s.Run("breaker open is reported", func() {
		r := Result{Environments: []EnvResult{
			{Environment: "a", Failure: &Failure{Operation: identity.OpFetchScopes, Err: open}},
		}}
		var rerr *ReconcileError
		s.Require().ErrorAs(r.Err(), &rerr)
		s.True(rerr.Failures()[0].BreakerOpen)
		s.Contains(rerr.Error(), "retry fix-scopes")
	})
}

func (s *FixerSuite) TestMissingCredentialPanicsBeforeAnyCall() {
	app := fixtures.NewApplicationBuilder().WithCredentials(fixtures.TestIDs.Test).Build()
	s.PanicsWithValue(
		dErrors.Inconsistency("application %s has no credential for environment %s", app.ID, fixtures.TestIDs.Prod),
		func() { s.fixer.Fix(context.Background(), app, nil) },
	)
}

func (s *FixerSuite) TestUnknownEnvironmentCredentialPanicsBeforeAnyCall() {
	staging := id.EnvironmentID("staging")
	app := fixtures.NewApplicationBuilder().
		WithCredentials(fixtures.TestIDs.Test, fixtures.TestIDs.Prod, staging).
		Build()
	s.PanicsWithValue(
		dErrors.Inconsistency("application %s has a credential for unknown environment %s", app.ID, staging),
		func() { s.fixer.Fix(context.Background(), app, nil) },
	)
}

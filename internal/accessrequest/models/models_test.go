package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	appmodels "apihub/internal/application/models"
	id "apihub/pkg/domain"
	dErrors "apihub/pkg/domain-errors"
)

type LifecycleSuite struct {
	suite.Suite
	now     time.Time
	pending AccessRequest
}

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(LifecycleSuite))
}

func (s *LifecycleSuite) SetupTest() {
	s.now = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	ar, err := NewAccessRequest(id.NewAccessRequestID(), id.NewApplicationID(), "api-1", "Payments",
		[]appmodels.Endpoint{{HTTPMethod: "GET", Path: "/foo", Scopes: []string{"read:foo"}}},
		"needed for reconciliation", "dev@example.com", s.now)
	s.Require().NoError(err)
	s.pending = ar
}

func (s *LifecycleSuite) TestApprove() {
	approved, err := s.pending.Approve("approver@example.com", s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal(StatusApproved, approved.Status)
	s.Require().NotNil(approved.Decision)
	s.Equal("approver@example.com", approved.Decision.DecidedBy)
	s.Empty(approved.Decision.RejectedReason)
	s.Nil(approved.Cancelled)
	s.Equal(StatusPending, s.pending.Status, "receiver is not mutated")
}

func (s *LifecycleSuite) TestRejectRequiresReason() {
	_, err := s.pending.Reject("approver@example.com", "  ", s.now)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	rejected, err := s.pending.Reject("approver@example.com", "not a production use case", s.now)
	s.Require().NoError(err)
	s.Equal(StatusRejected, rejected.Status)
	s.Equal("not a production use case", rejected.Decision.RejectedReason)
}

func (s *LifecycleSuite) TestCancel() {
	cancelled, err := s.pending.Cancel("dev@example.com", s.now)
	s.Require().NoError(err)
	s.Equal(StatusCancelled, cancelled.Status)
	s.Require().NotNil(cancelled.Cancelled)
	s.Nil(cancelled.Decision)
}

func (s *LifecycleSuite) TestTerminalStatesAreImmutable() {
	approved, err := s.pending.Approve("a@example.com", s.now)
	s.Require().NoError(err)
	rejected, err := s.pending.Reject("a@example.com", "no", s.now)
	s.Require().NoError(err)
	cancelled, err := s.pending.Cancel("a@example.com", s.now)
	s.Require().NoError(err)

	for _, terminal := range []AccessRequest{approved, rejected, cancelled} {
		transitions := map[string]func() (AccessRequest, error){
			"approve": func() (AccessRequest, error) { return terminal.Approve("b@example.com", s.now.Add(time.Hour)) },
			"reject":  func() (AccessRequest, error) { return terminal.Reject("b@example.com", "late", s.now.Add(time.Hour)) },
			"cancel":  func() (AccessRequest, error) { return terminal.Cancel("b@example.com", s.now.Add(time.Hour)) },
		}
		for name, transition := range transitions {
			got, err := transition()
			s.True(dErrors.HasCode(err, dErrors.CodeNotPending), "%s on %s", name, terminal.Status)
			s.Equal(terminal, got, "%s on %s must not mutate", name, terminal.Status)
		}
	}
}

func (s *LifecycleSuite) TestEndpointLookup() {
	ep, ok := s.pending.Endpoint(appmodels.Endpoint{HTTPMethod: "get", Path: "/foo"})
	s.True(ok)
	s.Equal([]string{"read:foo"}, ep.Scopes)

	_, ok = s.pending.Endpoint(appmodels.Endpoint{HTTPMethod: "GET", Path: "/bar"})
	s.False(ok)
}

func TestStatusExhaustive(t *testing.T) {
	terminal := map[Status]bool{
		StatusPending:   false,
		StatusApproved:  true,
		StatusRejected:  true,
		StatusCancelled: true,
	}
	require.Len(t, AllStatuses, len(terminal))
	for _, s := range AllStatuses {
		want, ok := terminal[s]
		require.True(t, ok, "status %s has no expectation", s)
		assert.Equal(t, want, s.IsTerminal(), string(s))

		parsed, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	parsed, err := ParseStatus("approved")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, parsed)

	_, err = ParseStatus("REOPENED")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestNewAccessRequestRequiresEndpoints(t *testing.T) {
	_, err := NewAccessRequest(id.NewAccessRequestID(), id.NewApplicationID(), "api-1", "Payments", nil, "", "dev@example.com", time.Now())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestFilter(t *testing.T) {
	appID := id.NewApplicationID()
	ar := AccessRequest{ApplicationID: appID, ApiID: "api-1", Status: StatusPending}

	assert.True(t, Filter{}.Matches(ar))
	assert.True(t, Filter{ApplicationID: appID, Status: StatusPending}.Matches(ar))
	assert.False(t, Filter{ApiID: "api-2"}.Matches(ar))
	assert.False(t, Filter{Status: StatusApproved}.Matches(ar))
}

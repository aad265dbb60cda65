package service

import (
	"context"

	"apihub/internal/accessrequest/models"
	"apihub/internal/accessrequest/store"
	appmodels "apihub/internal/application/models"
	evmodels "apihub/internal/event/models"
	"apihub/internal/event/publisher"
	id "apihub/pkg/domain"
	dErrors "apihub/pkg/domain-errors"
	"apihub/pkg/platform/lock"
	fixtures "apihub/pkg/testutil"
)

// staleRequests serves a snapshot taken before a concurrent decision.
type staleRequests struct {
	*store.InMemoryStore
	snapshot models.AccessRequest
}

func (r *staleRequests) FindByID(_ context.Context, reqID id.AccessRequestID) (models.AccessRequest, error) {
	if reqID == r.snapshot.ID {
		return r.snapshot, nil
	}
	return models.AccessRequest{}, dErrors.New(dErrors.CodeNotFound, "access request not found")
}

func (s *ServiceSuite) createConcurrently(svc *Service, callers int) *fixtures.ConcurrentResult {
	return fixtures.RunConcurrent(callers, func(int) error {
		_, err := svc.Create(s.ctx, CreateCommand{
			ApplicationID: s.apps.app.ID,
			ApiID:         fixtures.TestIDs.Api1,
			Endpoints:     []appmodels.Endpoint{{HTTPMethod: "GET", Path: "/orders"}},
		}, fixtures.TestIDs.Member)
		return err
	})
}

func (s *ServiceSuite) pendingCount() int {
	pending, err := s.requests.List(s.ctx, models.Filter{
		ApplicationID: s.apps.app.ID,
		ApiID:         fixtures.TestIDs.Api1,
		Status:        models.StatusPending,
	})
	s.Require().NoError(err)
	return len(pending)
}

func (s *ServiceSuite) TestConcurrentCreatesKeepOnePendingRequest() {
	svc := New(s.requests, s.apps, publisher.NewPublisher(s.events), WithLocker(lock.NewMemory()))

	result := s.createConcurrently(svc, 10)

	s.Equal(int32(1), result.Successes)
	s.Equal(int32(9), result.Conflicts)
	s.Equal(1, s.pendingCount())
}

func (s *ServiceSuite) TestConcurrentCreatesWithoutLockerAreRejectedByTheStore() {
	result := s.createConcurrently(s.service, 10)

	s.Equal(int32(1), result.Successes)
	s.Equal(int32(9), result.Conflicts)
	s.Equal(1, s.pendingCount())
}

func (s *ServiceSuite) TestDecisionOnStaleCopyIsRefused() {
	req := s.create()
	_, err := s.service.Cancel(s.ctx, req.ID, fixtures.TestIDs.Member)
	s.Require().NoError(err)
	svc := New(&staleRequests{InMemoryStore: s.requests, snapshot: req}, s.apps, publisher.NewPublisher(s.events))

	_, err = svc.Approve(s.ctx, req.ID, approver)

	s.True(dErrors.HasCode(err, dErrors.CodeNotPending))
	stored, findErr := s.requests.FindByID(s.ctx, req.ID)
	s.Require().NoError(findErr)
	s.Equal(models.StatusCancelled, stored.Status)
	s.Nil(stored.Decision)
	s.Empty(s.apps.fixed)
	s.Equal([]evmodels.EventType{evmodels.Created, evmodels.Canceled}, s.eventTypes(req.ID))
}

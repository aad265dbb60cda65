package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apihub/internal/accessrequest/models"
	id "apihub/pkg/domain"
	"apihub/pkg/platform/sentinel"
	fixtures "apihub/pkg/testutil"
)

func TestOnePendingRequestPerApi(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	first := fixtures.NewAccessRequestBuilder().WithID(id.NewAccessRequestID()).Build()
	require.NoError(t, s.Create(ctx, first))

	second := fixtures.NewAccessRequestBuilder().WithID(id.NewAccessRequestID()).Build()
	assert.ErrorIs(t, s.Create(ctx, second), sentinel.ErrAlreadyUsed)

	otherApi := fixtures.NewAccessRequestBuilder().WithID(id.NewAccessRequestID()).ForApi(fixtures.TestIDs.Api2).Build()
	require.NoError(t, s.Create(ctx, otherApi))

	decided := fixtures.NewAccessRequestBuilder().WithID(id.NewAccessRequestID()).Approved().Build()
	require.NoError(t, s.Create(ctx, decided), "decided requests do not count")

	cancelled, err := first.Cancel(fixtures.TestIDs.Member, fixtures.Epoch)
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, cancelled))
	require.NoError(t, s.Create(ctx, second), "a new request is allowed once the pending one is gone")
}

func TestUpdateOnlyReplacesPendingRequests(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	req := fixtures.NewAccessRequestBuilder().Build()
	require.NoError(t, s.Create(ctx, req))

	approved, err := req.Approve("approver@example.com", fixtures.Epoch)
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, approved))

	cancelled, err := req.Cancel(fixtures.TestIDs.Member, fixtures.Epoch)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Update(ctx, cancelled), sentinel.ErrNotUpdated)

	stored, err := s.FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, stored.Status)

	missing := fixtures.NewAccessRequestBuilder().WithID(id.NewAccessRequestID()).Build()
	assert.ErrorIs(t, s.Update(ctx, missing), sentinel.ErrNotUpdated)
}

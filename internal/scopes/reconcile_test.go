package scopes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	armodels "apihub/internal/accessrequest/models"
	"apihub/internal/identity"
	fixtures "apihub/pkg/testutil"
)

func TestFixIsIdempotent(t *testing.T) {
	app := fixtures.NewApplicationBuilder().
		WithApi(fixtures.TestIDs.Api1,
			fixtures.Endpoint("GET", "/foo", "read:foo"),
			fixtures.Endpoint("PUT", "/foo", "write:foo"),
		).
		WithApi(fixtures.TestIDs.Api2, fixtures.Endpoint("GET", "/bar", "read:bar")).
		Build()
	requests := []armodels.AccessRequest{
		fixtures.NewAccessRequestBuilder().WithEndpoints(fixtures.Endpoint("PUT", "/foo", "write:foo")).Approved().Build(),
	}

	connector := identity.NewInMemory()
	connector.Seed(fixtures.TestIDs.Prod, fixtures.ClientID(app.ID, fixtures.TestIDs.Prod), "read:bar", "legacy")
	connector.Seed(fixtures.TestIDs.Test, fixtures.ClientID(app.ID, fixtures.TestIDs.Test))
	fixer := NewFixer(connector, fixtures.Environments())

	first := fixer.Fix(context.Background(), app, requests)
	require.NoError(t, first.Err())
	assert.True(t, first.Changed())
	prodAfterFirst := connector.Scopes(fixtures.TestIDs.Prod, fixtures.ClientID(app.ID, fixtures.TestIDs.Prod))
	testAfterFirst := connector.Scopes(fixtures.TestIDs.Test, fixtures.ClientID(app.ID, fixtures.TestIDs.Test))
	assert.Equal(t, []string{"write:foo"}, prodAfterFirst)
	assert.Equal(t, []string{"read:bar", "read:foo", "write:foo"}, testAfterFirst)

	callsBefore := len(connector.Calls())
	second := fixer.Fix(context.Background(), app, requests)
	require.NoError(t, second.Err())
	assert.False(t, second.Changed())

	calls := connector.Calls()[callsBefore:]
	for _, c := range calls {
		assert.Equal(t, identity.OpFetchScopes, c.Operation, "second run may only read")
	}
	assert.Len(t, calls, 2)
	assert.Equal(t, prodAfterFirst, connector.Scopes(fixtures.TestIDs.Prod, fixtures.ClientID(app.ID, fixtures.TestIDs.Prod)))
	assert.Equal(t, testAfterFirst, connector.Scopes(fixtures.TestIDs.Test, fixtures.ClientID(app.ID, fixtures.TestIDs.Test)))
}

func TestFixReportsEveryEnvironmentWhenOneFails(t *testing.T) {
	app := fixtures.NewApplicationBuilder().
		WithApi(fixtures.TestIDs.Api1, fixtures.Endpoint("GET", "/foo", "read:foo")).
		Build()
	connector := identity.NewInMemory()
	connector.Seed(fixtures.TestIDs.Prod, fixtures.ClientID(app.ID, fixtures.TestIDs.Prod))
	connector.Seed(fixtures.TestIDs.Test, fixtures.ClientID(app.ID, fixtures.TestIDs.Test))
	connector.Fail(fixtures.TestIDs.Prod, identity.OpFetchScopes, identity.KindUnexpectedResponse)

	result := NewFixer(connector, fixtures.Environments()).Fix(context.Background(), app, nil)

	require.Len(t, result.Environments, 2)
	assert.Equal(t, fixtures.TestIDs.Test, result.Environments[0].Environment, "catalogue order")
	assert.Nil(t, result.Environments[0].Failure)
	assert.Equal(t, []string{"read:foo"}, result.Environments[0].Added)
	require.NotNil(t, result.Environments[1].Failure)
	assert.Len(t, result.Failed(), 1)
}

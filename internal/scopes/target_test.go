package scopes

import (
	"testing"

	"github.com/stretchr/testify/assert"

	armodels "apihub/internal/accessrequest/models"
	appmodels "apihub/internal/application/models"
	"apihub/pkg/testutil"
)

var (
	ungated = appmodels.Environment{ID: testutil.TestIDs.Test, Rank: 1}
	gated   = appmodels.Environment{ID: testutil.TestIDs.Prod, Rank: 2, Gated: true}
)

func TestTargetScopes(t *testing.T) {
	app := testutil.NewApplicationBuilder().
		WithApi(testutil.TestIDs.Api1,
			testutil.Endpoint("GET", "/foo", "read:foo"),
			testutil.Endpoint("POST", "/foo", "write:foo", "read:foo"),
		).
		WithApi(testutil.TestIDs.Api2, testutil.Endpoint("GET", "/bar", "read:bar")).
		Build()

	approvedGet := testutil.NewAccessRequestBuilder().
		WithEndpoints(testutil.Endpoint("get", "/foo", "read:foo")).
		Approved().Build()

	t.Run("ungated environment takes every linked scope", func(t *testing.T) {
		assert.Equal(t, []string{"read:bar", "read:foo", "write:foo"}, TargetScopes(app, ungated, nil))
	})

	t.Run("gated environment without approvals is empty", func(t *testing.T) {
		assert.Empty(t, TargetScopes(app, gated, nil))
	})

	t.Run("gated environment takes approved endpoints only", func(t *testing.T) {
		assert.Equal(t, []string{"read:foo"}, TargetScopes(app, gated, []armodels.AccessRequest{approvedGet}))
	})

	t.Run("non-approved requests are ignored", func(t *testing.T) {
		requests := []armodels.AccessRequest{
			testutil.NewAccessRequestBuilder().WithEndpoints(testutil.Endpoint("POST", "/foo", "write:foo")).Build(),
			testutil.NewAccessRequestBuilder().WithEndpoints(testutil.Endpoint("POST", "/foo", "write:foo")).Rejected("no").Build(),
			testutil.NewAccessRequestBuilder().WithEndpoints(testutil.Endpoint("POST", "/foo", "write:foo")).Cancelled().Build(),
		}
		assert.Empty(t, TargetScopes(app, gated, requests))
	})

	t.Run("approval for an unlinked endpoint grants nothing", func(t *testing.T) {
		stale := testutil.NewAccessRequestBuilder().
			WithEndpoints(testutil.Endpoint("DELETE", "/foo", "admin:foo")).
			Approved().Build()
		assert.Empty(t, TargetScopes(app, gated, []armodels.AccessRequest{stale}))
	})

	t.Run("approval for another application grants nothing", func(t *testing.T) {
		other := testutil.NewAccessRequestBuilder().
			ForApplication(testutil.TestIDs.App2).
			WithEndpoints(testutil.Endpoint("GET", "/foo", "read:foo")).
			Approved().Build()
		assert.Empty(t, TargetScopes(app, gated, []armodels.AccessRequest{other}))
	})

	t.Run("approval for an unlinked api grants nothing", func(t *testing.T) {
		removed := testutil.NewApplicationBuilder().
			WithApi(testutil.TestIDs.Api2, testutil.Endpoint("GET", "/bar", "read:bar")).
			Build()
		assert.Empty(t, TargetScopes(removed, gated, []armodels.AccessRequest{approvedGet}))
	})

	t.Run("order of requests does not matter", func(t *testing.T) {
		approvedBar := testutil.NewAccessRequestBuilder().
			WithID(testutil.TestIDs.Req2).
			ForApi(testutil.TestIDs.Api2).
			WithEndpoints(testutil.Endpoint("GET", "/bar", "read:bar")).
			Approved().Build()
		a := TargetScopes(app, gated, []armodels.AccessRequest{approvedGet, approvedBar})
		b := TargetScopes(app, gated, []armodels.AccessRequest{approvedBar, approvedGet})
		assert.Equal(t, a, b)
		assert.Equal(t, []string{"read:bar", "read:foo"}, a)
	})
}

func TestDiff(t *testing.T) {
	add, remove := Diff([]string{"b", "a", "c"}, []string{"c", "d", "d"})
	assert.Equal(t, []string{"a", "b"}, add)
	assert.Equal(t, []string{"d"}, remove)

	add, remove = Diff(nil, nil)
	assert.Empty(t, add)
	assert.Empty(t, remove)
}

// Approving a pending request only ever grows the gated target, so the
// scopes it grants are never scheduled for removal.
func TestApprovalIsMonotonic(t *testing.T) {
	app := testutil.NewApplicationBuilder().
		WithApi(testutil.TestIDs.Api1,
			testutil.Endpoint("GET", "/foo", "read:foo"),
			testutil.Endpoint("POST", "/foo", "write:foo"),
		).Build()
	existing := testutil.NewAccessRequestBuilder().
		WithID(testutil.TestIDs.Req2).
		WithEndpoints(testutil.Endpoint("POST", "/foo", "write:foo")).
		Approved().Build()
	pending := testutil.NewAccessRequestBuilder().
		WithEndpoints(testutil.Endpoint("GET", "/foo", "read:foo")).
		Build()

	current := []string{"read:foo", "write:foo", "stale:scope"}
	before := TargetScopes(app, gated, []armodels.AccessRequest{existing, pending})

	approved, err := pending.Approve("approver@example.com", testutil.Epoch)
	assert.NoError(t, err)
	after := TargetScopes(app, gated, []armodels.AccessRequest{existing, approved})

	assert.Subset(t, after, before)
	_, toRemove := Diff(after, current)
	for _, s := range approved.Scopes() {
		assert.NotContains(t, toRemove, s)
	}
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "apihub/pkg/domain-errors"
)

// TestParseObjectID_Invariants validates the parsing invariant:
// "document IDs must be non-empty 24 character hex strings"
func TestParseObjectID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseApplicationID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseApplicationID("app-1")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects uuid", func(t *testing.T) {
		_, err := ParseTeamID("11111111-1111-1111-1111-111111111111")
		require.Error(t, err)
	})

	t.Run("accepts generated ids", func(t *testing.T) {
		generated := NewAccessRequestID()
		parsed, err := ParseAccessRequestID(generated.String())
		require.NoError(t, err)
		assert.Equal(t, generated, parsed)
		assert.Len(t, parsed.String(), 24)
	})
}

func TestObjectIDRoundTrip(t *testing.T) {
	appID := NewApplicationID()
	oid, err := ObjectID(appID)
	require.NoError(t, err)
	assert.Equal(t, appID.String(), oid.Hex())
}

func TestFreeFormIDs(t *testing.T) {
	_, err := ParseApiID("")
	require.Error(t, err)

	env, err := ParseEnvironmentID("production")
	require.NoError(t, err)
	assert.Equal(t, EnvironmentID("production"), env)
}

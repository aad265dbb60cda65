package sensitive

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXChachaRoundTrip(t *testing.T) {
	c, err := NewXChaCha("local-secret")
	require.NoError(t, err)

	enc, err := c.Encrypt("jane.doe@example.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(enc, prefix))
	assert.NotContains(t, enc, "jane")

	again, err := c.Encrypt("jane.doe@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, enc, again, "nonces must differ between writes")

	dec, err := c.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@example.com", dec)
}

func TestXChachaEmptyPassesThrough(t *testing.T) {
	c, err := NewXChaCha("local-secret")
	require.NoError(t, err)

	enc, err := c.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, enc)

	dec, err := c.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, dec)
}

func TestXChachaRejectsTampering(t *testing.T) {
	c, err := NewXChaCha("local-secret")
	require.NoError(t, err)
	other, err := NewXChaCha("other-secret")
	require.NoError(t, err)

	enc, err := c.Encrypt("secret text")
	require.NoError(t, err)

	_, err = other.Decrypt(enc)
	assert.Error(t, err)

	_, err = c.Decrypt("plain value")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = c.Decrypt(prefix + "%%%")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEncryptAll(t *testing.T) {
	c, err := NewXChaCha("local-secret")
	require.NoError(t, err)

	enc, err := EncryptAll(c, []string{"a@example.com", "b@example.com"})
	require.NoError(t, err)
	require.Len(t, enc, 2)

	dec, err := DecryptAll(c, enc)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, dec)

	none, err := EncryptAll(Plaintext{}, nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestNewXChachaRequiresSecret(t *testing.T) {
	_, err := NewXChaCha("")
	assert.Error(t, err)
}

func TestHMACKeyerIsCaseInsensitive(t *testing.T) {
	k := NewHMACKeyer("secret")
	assert.Equal(t, k.Key("Dev@Example.com"), k.Key(" dev@example.com"))
	assert.NotEqual(t, k.Key("dev@example.com"), NewHMACKeyer("other").Key("dev@example.com"))
}

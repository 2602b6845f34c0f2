package secure

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{7}, 32)
}

func TestSealOpen(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	sealed, err := c.Seal("+8618610559223")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "18610559223")

	again, err := c.Seal("+8618610559223")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")

	plain, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "+8618610559223", plain)
}

func TestOpenPassThrough(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	plain, err := c.Open("+8618610559223")
	require.NoError(t, err)
	assert.Equal(t, "+8618610559223", plain)

	empty, err := c.Seal("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestOpenTampered(t *testing.T) {
	c, err := NewCipher(testKey())
	require.NoError(t, err)

	_, err = c.Open(sealedPrefix + "abc")
	assert.ErrorIs(t, err, ErrMalformed)

	other, err := NewCipher(bytes.Repeat([]byte{9}, 32))
	require.NoError(t, err)
	sealed, err := other.Seal("secret")
	require.NoError(t, err)
	_, err = c.Open(sealed)
	assert.Error(t, err)
}

func TestNewCipherFromBase64(t *testing.T) {
	_, err := NewCipherFromBase64(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrKeySize)

	c, err := NewCipherFromBase64(base64.StdEncoding.EncodeToString(testKey()))
	require.NoError(t, err)
	assert.NotNil(t, c)
}

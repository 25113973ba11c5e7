package token

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	raw, digest, err := Generate()
	require.NoError(t, err)

	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	require.NoError(t, err)
	assert.Len(t, decoded, rawBytes)
	assert.Len(t, digest, 64)
	assert.Equal(t, Digest(raw), digest)
	assert.NotEqual(t, raw, digest)

	other, _, err := Generate()
	require.NoError(t, err)
	assert.NotEqual(t, raw, other)
}

func TestDigest_Stable(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Digest(""))
	assert.Equal(t, Digest("abc"), Digest("abc"))
	assert.NotEqual(t, Digest("abc"), Digest("abd"))
}

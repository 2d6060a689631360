package netaddr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHostPort(t *testing.T) {
	hp, err := ParseHostPort("1.1.1.1:51820")
	require.NoError(t, err)
	assert.Equal(t, "1.1.1.1", hp.Host)
	assert.EqualValues(t, 51820, hp.Port)
}

func TestParseHostPortIPv6Bracketed(t *testing.T) {
	hp, err := ParseHostPort("[::1]:51820")
	require.NoError(t, err)
	assert.Equal(t, "::1", hp.Host)
}

func TestParseHostPortRejectsEmptyHost(t *testing.T) {
	_, err := ParseHostPort(":51820")
	assert.ErrorIs(t, err, ErrInvalidEndpoint)
}

func TestParseHostPortRejectsBadPort(t *testing.T) {
	_, err := ParseHostPort("1.1.1.1:0")
	assert.ErrorIs(t, err, ErrInvalidEndpoint)

	_, err = ParseHostPort("1.1.1.1:99999")
	assert.ErrorIs(t, err, ErrInvalidEndpoint)
}

func TestIsHostPort(t *testing.T) {
	assert.True(t, IsHostPort("1.1.1.1:51820"))
	assert.False(t, IsHostPort("office"))
}

package keystore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateKeyPairIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "keys.json"))
	require.NoError(t, err)

	priv1, pub1, err := s.GetOrCreateKeyPair("A")
	require.NoError(t, err)
	priv2, pub2, err := s.GetOrCreateKeyPair("A")
	require.NoError(t, err)

	assert.Equal(t, priv1, priv2)
	assert.Equal(t, pub1, pub2)
	assert.Equal(t, pub1, priv1.PublicKey())
}

func TestGetOrCreatePSKOrderIndependent(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "keys.json"))
	require.NoError(t, err)

	ab, err := s.GetOrCreatePSK("A", "B")
	require.NoError(t, err)
	ba, err := s.GetOrCreatePSK("B", "A")
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
}

func TestReopenPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.json")

	s1, err := Open(path)
	require.NoError(t, err)
	priv1, _, err := s1.GetOrCreateKeyPair("A")
	require.NoError(t, err)

	s2, err := Open(path)
	require.NoError(t, err)
	priv2, _, err := s2.GetOrCreateKeyPair("A")
	require.NoError(t, err)

	assert.Equal(t, priv1, priv2)
}

func TestEncryptedStoreRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "keys.json"), WithEncryption("correct horse battery staple"))
	require.NoError(t, err)

	priv1, _, err := s.GetOrCreateKeyPair("A")
	require.NoError(t, err)

	s2, err := Open(filepath.Join(dir, "keys.json"), WithEncryption("correct horse battery staple"))
	require.NoError(t, err)
	priv2, _, err := s2.GetOrCreateKeyPair("A")
	require.NoError(t, err)

	assert.Equal(t, priv1, priv2)
}

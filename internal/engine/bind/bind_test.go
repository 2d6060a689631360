package bind

import (
	"net/netip"
	"testing"

	"github.com/netly/wgtopo/internal/engine/allowedips"
	"github.com/netly/wgtopo/internal/engine/peermap"
	"github.com/netly/wgtopo/internal/model"
	"github.com/netly/wgtopo/internal/netaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

type fakeKeyStore struct {
	keys map[string]wgtypes.Key
	psks map[string]wgtypes.Key
}

func newFakeKeyStore() *fakeKeyStore {
	return &fakeKeyStore{keys: map[string]wgtypes.Key{}, psks: map[string]wgtypes.Key{}}
}

func (f *fakeKeyStore) GetOrCreateKeyPair(node string) (wgtypes.Key, wgtypes.Key, error) {
	if k, ok := f.keys[node]; ok {
		return k, k.PublicKey(), nil
	}
	k, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return wgtypes.Key{}, wgtypes.Key{}, err
	}
	f.keys[node] = k
	return k, k.PublicKey(), nil
}

func (f *fakeKeyStore) GetOrCreatePSK(a, b string) (wgtypes.Key, error) {
	pair := a + ":" + b
	rev := b + ":" + a
	if k, ok := f.psks[pair]; ok {
		return k, nil
	}
	if k, ok := f.psks[rev]; ok {
		return k, nil
	}
	k, err := wgtypes.GenerateKey()
	if err != nil {
		return wgtypes.Key{}, err
	}
	f.psks[pair] = k
	return k, nil
}

func mkNode(t *testing.T, name, ip string) *model.Node {
	t.Helper()
	p, err := netaddr.ParsePrefix(ip)
	require.NoError(t, err)
	return &model.Node{Name: name, Role: model.RoleClient, WireGuardIP: p, Endpoints: map[string]string{}}
}

func TestBindAttachesKeysAndPSK(t *testing.T) {
	a := mkNode(t, "A", "10.0.0.1/24")
	b := mkNode(t, "B", "10.0.0.2/24")
	doc, err := model.NewDocument([]*model.Node{a, b}, nil, nil, nil, nil)
	require.NoError(t, err)

	resolved := map[string][]*allowedips.Resolved{
		"A": {{Entry: &peermap.Entry{PeerName: "B"}, AllowedIPs: []netip.Prefix(nil)}},
	}
	ks := newFakeKeyStore()
	records, err := Bind(doc, resolved, ks)
	require.NoError(t, err)

	recA := records["A"]
	require.NotEmpty(t, recA.Interface.PrivateKey)
	require.Len(t, recA.Peers, 1)
	assert.Equal(t, "B", recA.Peers[0].PeerName)
	assert.NotEmpty(t, recA.Peers[0].PublicKey)
	assert.NotEmpty(t, recA.Peers[0].PresharedKey)

	bPriv, bPub, err := ks.GetOrCreateKeyPair("B")
	require.NoError(t, err)
	_ = bPriv
	assert.Equal(t, bPub.String(), recA.Peers[0].PublicKey)
}

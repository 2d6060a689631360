package peermap

import (
	"testing"

	"github.com/netly/wgtopo/internal/model"
	"github.com/netly/wgtopo/internal/netaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkNode(t *testing.T, name, ip string, endpoints map[string]string) *model.Node {
	t.Helper()
	p, err := netaddr.ParsePrefix(ip)
	require.NoError(t, err)
	if endpoints == nil {
		endpoints = map[string]string{}
	}
	return &model.Node{Name: name, Role: model.RoleClient, WireGuardIP: p, Endpoints: endpoints}
}

func TestBuildSynthesizesPassiveReverse(t *testing.T) {
	a := mkNode(t, "A", "10.0.0.1/24", map[string]string{"e0": "1.2.3.4:51820"})
	b := mkNode(t, "B", "10.0.0.2/24", nil) // no endpoints, behind NAT
	doc, err := model.NewDocument([]*model.Node{a, b}, nil, nil, nil, nil)
	require.NoError(t, err)

	intents := []*model.PeerIntent{
		{From: "B", To: "A", Origin: model.OriginExplicit},
	}
	perNode, _, err := Build(doc, intents)
	require.NoError(t, err)

	require.Len(t, perNode["B"], 1)
	assert.Equal(t, "A", perNode["B"][0].PeerName)
	require.NotNil(t, perNode["B"][0].Endpoint)

	require.Len(t, perNode["A"], 1)
	assert.Equal(t, "B", perNode["A"][0].PeerName)
	assert.Nil(t, perNode["A"][0].Endpoint)
	assert.True(t, perNode["A"][0].SynthesizedPassive)
}

func TestBuildNoPassiveWhenBothDirectionsExplicit(t *testing.T) {
	a := mkNode(t, "A", "10.0.0.1/24", map[string]string{"e0": "1.2.3.4:51820"})
	b := mkNode(t, "B", "10.0.0.2/24", map[string]string{"e0": "5.6.7.8:51820"})
	doc, err := model.NewDocument([]*model.Node{a, b}, nil, nil, nil, nil)
	require.NoError(t, err)

	intents := []*model.PeerIntent{
		{From: "A", To: "B", Origin: model.OriginExplicit},
		{From: "B", To: "A", Origin: model.OriginExplicit},
	}
	perNode, _, err := Build(doc, intents)
	require.NoError(t, err)
	assert.Len(t, perNode["A"], 1)
	assert.Len(t, perNode["B"], 1)
	assert.False(t, perNode["A"][0].SynthesizedPassive)
	assert.False(t, perNode["B"][0].SynthesizedPassive)
}

func TestBuildMergesDuplicatePairAndFlagsDiagnostic(t *testing.T) {
	a := mkNode(t, "A", "10.0.0.1/24", map[string]string{"e0": "1.2.3.4:51820"})
	b := mkNode(t, "B", "10.0.0.2/24", map[string]string{"e0": "5.6.7.8:51820"})
	doc, err := model.NewDocument([]*model.Node{a, b}, nil, nil, nil, nil)
	require.NoError(t, err)

	keepalive := 25
	intents := []*model.PeerIntent{
		{From: "A", To: "B", Origin: model.OriginGroupMesh, AllowedIPs: []string{"10.0.1.0/24"}},
		{From: "A", To: "B", Origin: model.OriginGroupBidirectional, AllowedIPs: []string{"10.0.2.0/24"}, PersistentKeepalive: &keepalive},
	}
	perNode, diags, err := Build(doc, intents)
	require.NoError(t, err)
	require.Len(t, perNode["A"], 1)
	entry := perNode["A"][0]
	assert.ElementsMatch(t, []string{"10.0.1.0/24", "10.0.2.0/24"}, entry.AllowedIPTokens)
	assert.Equal(t, &keepalive, entry.PersistentKeepalive)
	require.Len(t, diags, 1)
	assert.Equal(t, "MeshConnectionAugmented", diags[0].Kind)
}

func TestBuildResolvesUnsetEndpointToFirstByName(t *testing.T) {
	a := mkNode(t, "A", "10.0.0.1/24", nil)
	b := mkNode(t, "B", "10.0.0.2/24", map[string]string{"zzz": "9.9.9.9:1", "aaa": "1.1.1.1:1"})
	doc, err := model.NewDocument([]*model.Node{a, b}, nil, nil, nil, nil)
	require.NoError(t, err)

	intents := []*model.PeerIntent{{From: "A", To: "B", Origin: model.OriginExplicit}}
	perNode, _, err := Build(doc, intents)
	require.NoError(t, err)
	require.NotNil(t, perNode["A"][0].Endpoint)
	assert.Equal(t, "1.1.1.1", perNode["A"][0].Endpoint.Host)
}

func TestBuildEndpointNotFoundError(t *testing.T) {
	a := mkNode(t, "A", "10.0.0.1/24", nil)
	b := mkNode(t, "B", "10.0.0.2/24", map[string]string{"e0": "1.1.1.1:1"})
	doc, err := model.NewDocument([]*model.Node{a, b}, nil, nil, nil, nil)
	require.NoError(t, err)

	intents := []*model.PeerIntent{{From: "A", To: "B", Origin: model.OriginExplicit, EndpointRef: model.NamedRef("ghost")}}
	_, _, err = Build(doc, intents)
	require.Error(t, err)
}

func TestBuildAccumulatesErrorsAcrossIndependentPairs(t *testing.T) {
	a := mkNode(t, "A", "10.0.0.1/24", nil)
	b := mkNode(t, "B", "10.0.0.2/24", map[string]string{"e0": "1.1.1.1:1"})
	c := mkNode(t, "C", "10.0.0.3/24", map[string]string{"e0": "2.2.2.2:1"})
	doc, err := model.NewDocument([]*model.Node{a, b, c}, nil, nil, nil, nil)
	require.NoError(t, err)

	intents := []*model.PeerIntent{
		{From: "A", To: "B", Origin: model.OriginExplicit, EndpointRef: model.NamedRef("ghost-b")},
		{From: "A", To: "C", Origin: model.OriginExplicit, EndpointRef: model.NamedRef("ghost-c")},
	}
	_, _, err = Build(doc, intents)
	require.Error(t, err)
	assert.ErrorContains(t, err, "ghost-b")
	assert.ErrorContains(t, err, "ghost-c")

	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok, "Build must accumulate errors from independent peer pairs, not stop at the first")
	assert.Len(t, joined.Unwrap(), 2)
}

func TestBuildOrdersBridgeLast(t *testing.T) {
	a := mkNode(t, "A", "10.0.0.1/24", map[string]string{"e0": "1.1.1.1:1"})
	b := mkNode(t, "B", "10.0.0.2/24", map[string]string{"e0": "2.2.2.2:1"})
	c := mkNode(t, "C", "10.0.0.3/24", map[string]string{"e0": "3.3.3.3:1"})
	doc, err := model.NewDocument([]*model.Node{a, b, c}, nil, nil, nil, nil)
	require.NoError(t, err)

	intents := []*model.PeerIntent{
		{From: "A", To: "C", Origin: model.OriginGroupBridge, EndpointRef: model.LiteralRef("3.3.3.3:1"), IsBridge: true},
		{From: "A", To: "B", Origin: model.OriginGroupMesh},
	}
	perNode, _, err := Build(doc, intents)
	require.NoError(t, err)
	require.Len(t, perNode["A"], 2)
	assert.Equal(t, "B", perNode["A"][0].PeerName)
	assert.Equal(t, "C", perNode["A"][1].PeerName)
}

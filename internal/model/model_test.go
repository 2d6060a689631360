package model

import (
	"testing"

	"github.com/netly/wgtopo/internal/apperr"
	"github.com/netly/wgtopo/internal/netaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(t *testing.T, name, ip string, role NodeRole) *Node {
	t.Helper()
	p, err := netaddr.ParsePrefix(ip)
	require.NoError(t, err)
	return &Node{Name: name, Role: role, WireGuardIP: p, Endpoints: map[string]string{}}
}

func TestNewDocumentRejectsDuplicateName(t *testing.T) {
	a := node(t, "A", "10.96.0.2/16", RoleClient)
	b := node(t, "A", "10.96.0.3/16", RoleClient)
	_, err := NewDocument([]*Node{a, b}, nil, nil, nil, nil)
	require.Error(t, err)
	var dup *apperr.DuplicateNodeName
	assert.ErrorAs(t, err, &dup)
}

func TestNewDocumentRejectsDuplicateIP(t *testing.T) {
	a := node(t, "A", "10.96.0.2/16", RoleClient)
	b := node(t, "B", "10.96.0.2/16", RoleClient)
	_, err := NewDocument([]*Node{a, b}, nil, nil, nil, nil)
	require.Error(t, err)
	var dup *apperr.DuplicateNodeIP
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "10.96.0.2", dup.IP)
	assert.Equal(t, []string{"A", "B"}, dup.Names)
}

func TestNewDocumentRejectsUnknownPeerReference(t *testing.T) {
	a := node(t, "A", "10.96.0.2/16", RoleClient)
	peer := &PeerIntent{From: "A", To: "ghost", Origin: OriginExplicit}
	_, err := NewDocument([]*Node{a}, nil, nil, []*PeerIntent{peer}, nil)
	require.Error(t, err)
	var unk *apperr.UnknownReference
	assert.ErrorAs(t, err, &unk)
}

func TestGroupValidateArity(t *testing.T) {
	g := &Group{Name: "solo-mesh", Topology: TopologyMesh, Members: []string{"A"}}
	err := g.Validate()
	require.Error(t, err)
	var arity *apperr.TopologyArity
	require.ErrorAs(t, err, &arity)
	assert.Equal(t, "solo-mesh", arity.Group)
	assert.Equal(t, "mesh", arity.Topology)
	assert.Equal(t, 1, arity.Got)
}

func TestNewDocumentAccumulatesErrorsAcrossIndependentGroups(t *testing.T) {
	a := node(t, "A", "10.96.0.2/16", RoleClient)
	b := node(t, "B", "10.96.0.3/16", RoleClient)
	solo := &Group{Name: "solo-mesh", Topology: TopologyMesh, Members: []string{"A"}}
	badStar := &Group{Name: "star1", Topology: TopologyStar, Members: []string{"A", "B"}, Hub: "ghost"}

	_, err := NewDocument([]*Node{a, b}, []*Group{solo, badStar}, nil, nil, nil)
	require.Error(t, err)

	var arity *apperr.TopologyArity
	assert.ErrorAs(t, err, &arity)
	assert.ErrorContains(t, err, "star1")

	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok, "NewDocument must join independent errors so both are observable, not just the first")
	assert.Len(t, joined.Unwrap(), 2)
}

func TestGroupStarRequiresHubMembership(t *testing.T) {
	g := &Group{Name: "star1", Topology: TopologyStar, Members: []string{"A", "B"}, Hub: "C"}
	err := g.Validate()
	require.Error(t, err)
}

func TestConnectionBridgeRequiresMapping(t *testing.T) {
	c := &Connection{Name: "bridge1", From: "G", To: "H", Type: ConnBridge}
	err := c.Validate()
	require.Error(t, err)
	var missing *apperr.BridgeMappingMissing
	assert.ErrorAs(t, err, &missing)
}

func TestResolveMembersGroupAndNode(t *testing.T) {
	a := node(t, "A", "10.0.0.1/24", RoleClient)
	b := node(t, "B", "10.0.0.2/24", RoleClient)
	g := &Group{Name: "pair", Topology: TopologyMesh, Members: []string{"B", "A"}}
	doc, err := NewDocument([]*Node{a, b}, []*Group{g}, nil, nil, nil)
	require.NoError(t, err)

	members, err := doc.ResolveMembers("pair", "test")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, members)

	members, err = doc.ResolveMembers("A", "test")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, members)

	_, err = doc.ResolveMembers("ghost", "test")
	require.Error(t, err)
}

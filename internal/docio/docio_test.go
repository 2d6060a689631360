package docio

import (
	"testing"

	"github.com/netly/wgtopo/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocumentTraditionalForm(t *testing.T) {
	doc, err := ParseDocument([]byte(`
nodes:
  - name: A
    role: client
    wireguard_ip: 10.96.0.2/16
    endpoints:
      - 1.1.1.1:51820
  - name: B
    role: client
    wireguard_ip: 10.96.0.3/16
peers:
  - from: A
    to: B
    allowed_ips: ["10.96.0.3/32"]
`))
	require.NoError(t, err)

	a, ok := doc.Node("A")
	require.True(t, ok)
	assert.Equal(t, []string{"e0"}, a.EndpointOrder)
	assert.Equal(t, "1.1.1.1:51820", a.Endpoints["e0"])

	require.Len(t, doc.Peers, 1)
	assert.Equal(t, model.OriginExplicit, doc.Peers[0].Origin)
}

func TestParseDocumentGroupForm(t *testing.T) {
	doc, err := ParseDocument([]byte(`
nodes:
  - name: A
    role: client
    wireguard_ip: 10.96.0.2/16
    endpoints:
      primary: 1.1.1.1:51820
  - name: B
    role: client
    wireguard_ip: 10.96.0.3/16
groups:
  - name: core
    topology: mesh
    members: [A, B]
overseas_allowed_ips: ["10.50.0.0/16"]
`))
	require.NoError(t, err)

	g, ok := doc.Group("core")
	require.True(t, ok)
	assert.Equal(t, model.TopologyMesh, g.Topology)
	assert.Equal(t, []string{"A", "B"}, g.Members)

	require.Len(t, doc.RoutingRules, 1)
	assert.Equal(t, "overseas_allowed_ips", doc.RoutingRules[0].Key)
	assert.Equal(t, []string{"10.50.0.0/16"}, doc.RoutingRules[0].Tokens)
}

func TestParseDocumentRejectsSchemaViolation(t *testing.T) {
	_, err := ParseDocument([]byte(`
nodes:
  - name: A
    role: not-a-real-role
    wireguard_ip: 10.96.0.2/16
`))
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestParseDocumentPeerEndpointLiteralVsNamed(t *testing.T) {
	doc, err := ParseDocument([]byte(`
nodes:
  - name: A
    role: client
    wireguard_ip: 10.96.0.2/16
  - name: B
    role: client
    wireguard_ip: 10.96.0.3/16
    endpoints:
      special: 172.16.1.1:33333
peers:
  - from: A
    to: B
    endpoint_ref: special
  - from: B
    to: A
    endpoint: 9.9.9.9:51820
`))
	require.NoError(t, err)
	require.Len(t, doc.Peers, 2)

	assert.Equal(t, model.EndpointRefName, doc.Peers[0].EndpointRef.Kind)
	assert.Equal(t, "special", doc.Peers[0].EndpointRef.Name)

	assert.Equal(t, model.EndpointRefLiteral, doc.Peers[1].EndpointRef.Kind)
	assert.Equal(t, "9.9.9.9:51820", doc.Peers[1].EndpointRef.Literal)
}

func TestParseDocumentBridgeConnectionSpecialFlags(t *testing.T) {
	doc, err := ParseDocument([]byte(`
nodes:
  - name: G
    role: relay
    wireguard_ip: 10.10.10.10/24
  - name: H
    role: relay
    wireguard_ip: 10.10.20.20/24
connections:
  - from: G
    to: H
    type: bridge
    endpoint_mapping:
      G_to_H: 172.16.1.1:33333
      H_to_G: 10.10.10.10:22222
    special_flags:
      is_bridge: true
      persistent_keepalive: 25
`))
	require.NoError(t, err)
	require.Len(t, doc.Connections, 1)
	c := doc.Connections[0]
	assert.True(t, c.IsBridge)
	require.NotNil(t, c.PersistentKeepalive)
	assert.Equal(t, 25, *c.PersistentKeepalive)
	assert.Equal(t, "172.16.1.1:33333", c.EndpointMapping["G_to_H"])
}

func TestParseDocumentRejectsDuplicateNodeName(t *testing.T) {
	_, err := ParseDocument([]byte(`
nodes:
  - name: A
    role: client
    wireguard_ip: 10.96.0.2/16
  - name: A
    role: client
    wireguard_ip: 10.96.0.3/16
`))
	require.Error(t, err)
}

package model

import (
	"fmt"

	"github.com/netly/wgtopo/internal/apperr"
)

// ConnectionType is the relation a Connection establishes between two
// groups (or a group and a node).
type ConnectionType string

const (
	ConnOutboundOnly  ConnectionType = "outbound_only"
	ConnBidirectional ConnectionType = "bidirectional"
	ConnGateway       ConnectionType = "gateway"
	ConnSelective     ConnectionType = "selective"
	ConnFullMesh      ConnectionType = "full_mesh"
	ConnBridge        ConnectionType = "bridge"
)

// Connection is a relation between two groups (or a group and a node).
type Connection struct {
	Name string // free-form label for diagnostics, defaults to "<from>-<to>"
	From string
	To   string
	Type ConnectionType

	// EndpointSelector names the endpoint the "to" side's target should
	// be dialed on, for non-bridge connection types. Empty means "use the
	// target's default endpoint resolution" (spec.md §4.4 step 2).
	EndpointSelector string

	// EndpointMapping is required for ConnBridge: exactly two keys,
	// "<from>_to_<to>" and "<to>_to_<from>", each a literal host:port or
	// an endpoint name on the respective target.
	EndpointMapping map[string]string

	// Nodes restricts participating members for ConnSelective; for other
	// types it is empty (full membership participates).
	Nodes []string

	// Gateway-only: client members connect only to listed gateway
	// members. FromGateways is optional and restricts which "from"-side
	// members dial the gateways (empty: all of them); ToGateways is
	// required and lists the "to"-side gateway members.
	FromGateways []string
	ToGateways   []string

	// Routing carries the connection's own allowed-ip expressions:
	// "allowed_ips" (applies to both directions) and "<name>_allowed_ips"
	// (applies to edges touching that side).
	Routing map[string][]string

	IsBridge            bool
	PersistentKeepalive *int
	Description         string
}

func (c *Connection) Validate() error {
	if c.From == "" || c.To == "" {
		return fmt.Errorf("%w: connection %q must name both from and to", ErrInvalidConnection, c.Name)
	}
	switch c.Type {
	case ConnOutboundOnly, ConnBidirectional, ConnGateway, ConnSelective, ConnFullMesh, ConnBridge:
	default:
		return fmt.Errorf("%w: connection %q has unknown type %q", ErrInvalidConnection, c.Name, c.Type)
	}
	if c.Type == ConnBridge {
		wantA := c.From + "_to_" + c.To
		wantB := c.To + "_to_" + c.From
		if c.EndpointMapping == nil {
			return &apperr.BridgeMappingMissing{Connection: c.Name, Missing: []string{wantA, wantB}}
		}
		var missing []string
		if _, ok := c.EndpointMapping[wantA]; !ok {
			missing = append(missing, wantA)
		}
		if _, ok := c.EndpointMapping[wantB]; !ok {
			missing = append(missing, wantB)
		}
		if len(missing) > 0 {
			return &apperr.BridgeMappingMissing{Connection: c.Name, Missing: missing}
		}
	}
	if c.Type == ConnGateway && len(c.ToGateways) == 0 {
		return fmt.Errorf("%w: gateway connection %q requires to_gw", ErrInvalidConnection, c.Name)
	}
	return nil
}

// RoutingRule is a free-standing "<node-or-group>_allowed_ips" entry that
// augments or overrides the allowed_ips of Peer-Intents targeting that
// side (spec.md §3).
type RoutingRule struct {
	Key    string // e.g. "overseas_allowed_ips"
	Tokens []string
}

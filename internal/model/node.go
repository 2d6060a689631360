// Package model holds the Engine's frozen entity types: Node, Group,
// Connection, Peer-Intent, Routing-Rule, and the Document that aggregates
// them. Construction validates shape; nothing is mutated afterward — any
// derived structure is a new value built by a downstream component.
package model

import (
	"fmt"
	"net/netip"
	"regexp"
	"sort"

	"github.com/netly/wgtopo/internal/netaddr"
)

// NodeRole is the role a Node plays in the overlay.
type NodeRole string

const (
	RoleClient NodeRole = "client"
	RoleRelay  NodeRole = "relay"
	RoleServer NodeRole = "server"
)

var nodeNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Node is the Engine's identity in the overlay network.
type Node struct {
	Name        string
	Role        NodeRole
	WireGuardIP netip.Prefix
	ListenPort  *uint16

	// Endpoints is the name -> "host:port" mapping. By the time a Node
	// reaches the Engine, unnamed endpoints have already been assigned
	// synthetic names (e0, e1, ...) by the document parser; EndpointOrder
	// records the original declaration order, independent of the map's
	// iteration order. The Engine picks default endpoints by
	// SortedEndpointNames and does not read EndpointOrder.
	Endpoints    map[string]string
	EndpointOrder []string

	DNS []string
	MTU *int

	// Tags and EnableIPForward are supplemental fields outside spec.md's
	// minimal §3 data model: Tags are opaque labels for the (out-of-scope)
	// visualizer, and EnableIPForward lets a document override the
	// role==relay IP-forwarding inference in Emission.
	Tags            []string
	EnableIPForward *bool

	// PostUp and PostDown, when set, override Emission's relay
	// IP-forwarding defaults entirely (spec.md §4.7: "if the document
	// already specifies post_up/post_down, those are preserved and the
	// defaults are skipped").
	PostUp   []string
	PostDown []string
}

// Validate checks the single-Node invariants from spec.md §3 that do not
// require comparison against other nodes (name pattern, endpoint
// parseability). Cross-node invariants (name/IP uniqueness) are checked at
// Document construction time, where the full node set is available.
func (n *Node) Validate() error {
	if !nodeNamePattern.MatchString(n.Name) {
		return fmt.Errorf("%w: node name %q must match [A-Za-z0-9_-]+", ErrInvalidNode, n.Name)
	}
	switch n.Role {
	case RoleClient, RoleRelay, RoleServer:
	default:
		return fmt.Errorf("%w: node %q has unknown role %q", ErrInvalidNode, n.Name, n.Role)
	}
	if !n.WireGuardIP.IsValid() {
		return fmt.Errorf("%w: node %q has no wireguard_ip", ErrInvalidNode, n.Name)
	}
	for name, hp := range n.Endpoints {
		if _, err := netaddr.ParseHostPort(hp); err != nil {
			return fmt.Errorf("%w: node %q endpoint %q: %v", ErrInvalidNode, n.Name, name, err)
		}
	}
	return nil
}

// SortedEndpointNames returns the Node's endpoint names in lexicographic
// order, as required to pick "the lexicographically first" endpoint when
// a Peer-Intent leaves its endpoint_ref unset (spec.md §4.4 step 2).
func (n *Node) SortedEndpointNames() []string {
	names := make([]string, 0, len(n.Endpoints))
	for name := range n.Endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HostPrefix returns the Node's overlay address as a full-width host
// route (e.g. /32 for IPv4), used as the implicit route to reach this node
// directly (spec.md §4.5 step 5).
func (n *Node) HostPrefix() netip.Prefix {
	a := n.WireGuardIP.Addr()
	return netip.PrefixFrom(a, a.BitLen())
}

// IsRelay reports whether emission should treat this node as requiring
// IP-forwarding post_up/post_down commands: role==relay unless explicitly
// overridden by EnableIPForward.
func (n *Node) IsRelay() bool {
	if n.EnableIPForward != nil {
		return *n.EnableIPForward
	}
	return n.Role == RoleRelay
}

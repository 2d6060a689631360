package model

import (
	"fmt"
	"slices"
	"sort"

	"github.com/netly/wgtopo/internal/apperr"
)

// Document is the validated, frozen input to the Engine: either a
// traditional node+peer document or a group+connection document (both
// forms carry identical semantics after Group Expansion, spec.md §6).
// Nothing in Document is mutated after construction; downstream components
// build new derived structures.
type Document struct {
	nodes       map[string]*Node
	nodeOrder   []string
	groups      map[string]*Group
	groupOrder  []string
	Connections []*Connection
	Peers       []*PeerIntent
	// RoutingRules holds free-standing "<name>_allowed_ips" entries
	// declared at the document's top level (spec.md §3's "Routing-Rule"),
	// as opposed to ones scoped to a single Connection.
	RoutingRules []*RoutingRule
}

// NewDocument validates and freezes a document's entities. It checks the
// single-entity invariants (node shape, group arity, connection shape) and
// the cross-node invariants from spec.md §3 that only need the node table
// (name and wireguard_ip uniqueness), and it checks that every explicit
// peer's from and to name an existing node (UnknownReference). It does
// not resolve group membership or endpoint names against the node table;
// the Group Expander and Peer Map Builder raise those failures
// (UnknownReference, EndpointNotFound).
func NewDocument(nodes []*Node, groups []*Group, connections []*Connection, peers []*PeerIntent, routingRules []*RoutingRule) (*Document, error) {
	d := &Document{
		nodes:        make(map[string]*Node, len(nodes)),
		groups:       make(map[string]*Group, len(groups)),
		Connections:  connections,
		Peers:        peers,
		RoutingRules: routingRules,
	}

	var br apperr.BuildResult

	for _, n := range nodes {
		if err := n.Validate(); err != nil {
			br.Add(err)
			continue
		}
		if _, dup := d.nodes[n.Name]; dup {
			br.Add(&apperr.DuplicateNodeName{Name: n.Name})
			continue
		}
		d.nodes[n.Name] = n
		d.nodeOrder = append(d.nodeOrder, n.Name)
	}

	br.Add(checkDuplicateIPs(nodes))

	for _, g := range groups {
		if err := g.Validate(); err != nil {
			br.Add(err)
			continue
		}
		if _, dup := d.groups[g.Name]; dup {
			br.Add(fmt.Errorf("%w: duplicate group name %q", ErrInvalidGroup, g.Name))
			continue
		}
		d.groups[g.Name] = g
		d.groupOrder = append(d.groupOrder, g.Name)
	}

	for _, c := range connections {
		br.Add(c.Validate())
	}

	for _, p := range peers {
		if err := p.Validate(); err != nil {
			br.Add(err)
			continue
		}
		if _, ok := d.nodes[p.From]; !ok {
			br.Add(&apperr.UnknownReference{Kind: "node", Name: p.From, In: fmt.Sprintf("peer %s->%s", p.From, p.To)})
		}
		if _, ok := d.nodes[p.To]; !ok {
			br.Add(&apperr.UnknownReference{Kind: "node", Name: p.To, In: fmt.Sprintf("peer %s->%s", p.From, p.To)})
		}
	}

	if err := br.Err(); err != nil {
		return nil, err
	}

	return d, nil
}

func checkDuplicateIPs(nodes []*Node) error {
	byIP := make(map[string][]string)
	for _, n := range nodes {
		if !n.WireGuardIP.IsValid() {
			continue
		}
		ip := n.WireGuardIP.Addr().String()
		byIP[ip] = append(byIP[ip], n.Name)
	}
	var ips []string
	for ip := range byIP {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	for _, ip := range ips {
		names := byIP[ip]
		if len(names) > 1 {
			sort.Strings(names)
			return &apperr.DuplicateNodeIP{Names: names, IP: ip}
		}
	}
	return nil
}

// Node looks up a node by name in O(1).
func (d *Document) Node(name string) (*Node, bool) {
	n, ok := d.nodes[name]
	return n, ok
}

// Group looks up a group by name in O(1).
func (d *Document) Group(name string) (*Group, bool) {
	g, ok := d.groups[name]
	return g, ok
}

// Nodes returns all nodes in declaration order.
func (d *Document) Nodes() []*Node {
	out := make([]*Node, len(d.nodeOrder))
	for i, name := range d.nodeOrder {
		out[i] = d.nodes[name]
	}
	return out
}

// NodeNames returns all node names, sorted, for deterministic iteration.
func (d *Document) NodeNames() []string {
	names := make([]string, 0, len(d.nodes))
	for name := range d.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Groups returns all groups in declaration order.
func (d *Document) Groups() []*Group {
	out := make([]*Group, len(d.groupOrder))
	for i, name := range d.groupOrder {
		out[i] = d.groups[name]
	}
	return out
}

// ResolveMembers expands a name into a node-name set: if name is a group,
// its members (sorted, deduplicated); if it is a bare node name, a
// one-element list. Returns an UnknownReference error if name is neither.
func (d *Document) ResolveMembers(name, context string) ([]string, error) {
	if g, ok := d.groups[name]; ok {
		members := append([]string(nil), g.Members...)
		sort.Strings(members)
		return slices.Compact(members), nil
	}
	if _, ok := d.nodes[name]; ok {
		return []string{name}, nil
	}
	return nil, &apperr.UnknownReference{Kind: "group-or-node", Name: name, In: context}
}

// Package docio is the parsing and validation boundary between a
// topology document on disk (YAML or JSON) and the Engine's frozen
// internal/model types. It accepts both the traditional node+peer form
// and the group+connection form, synthesizes endpoint names where the
// document leaves them unnamed, and rejects malformed documents against
// a JSON Schema before any semantic conversion runs.
package docio

import (
	"fmt"
	"sort"
	"strings"

	"github.com/netly/wgtopo/internal/model"
	"github.com/netly/wgtopo/internal/netaddr"
	"gopkg.in/yaml.v3"
)

// ParseDocument parses and validates data (YAML, or JSON — a legal YAML
// subset) into a frozen model.Document. Schema validation runs first so a
// malformed document is rejected with field-level detail before semantic
// conversion has a chance to panic on missing data.
func ParseDocument(data []byte) (*model.Document, error) {
	var generic map[string]any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("docio: %w", err)
	}

	if err := ValidateSchema(generic); err != nil {
		return nil, err
	}

	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("docio: %w", err)
	}

	nodes := make([]*model.Node, 0, len(raw.Nodes))
	for _, rn := range raw.Nodes {
		n, err := convertNode(rn)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}

	groups := make([]*model.Group, 0, len(raw.Groups))
	for _, rg := range raw.Groups {
		groups = append(groups, convertGroup(rg))
	}

	connections := make([]*model.Connection, 0, len(raw.Connections))
	for _, rc := range raw.Connections {
		connections = append(connections, convertConnection(rc))
	}

	peers := make([]*model.PeerIntent, 0, len(raw.Peers))
	for _, rp := range raw.Peers {
		peers = append(peers, convertPeer(rp))
	}

	routingRules := extractTopLevelRoutingRules(generic)

	return model.NewDocument(nodes, groups, connections, peers, routingRules)
}

func convertNode(rn rawNode) (*model.Node, error) {
	ip, err := netaddr.ParsePrefix(rn.WireguardIP)
	if err != nil {
		return nil, fmt.Errorf("docio: node %q: %w", rn.Name, err)
	}

	endpoints := make(map[string]string, len(rn.Endpoints))
	order := make([]string, 0, len(rn.Endpoints))
	for _, e := range rn.Endpoints {
		endpoints[e.Name] = e.HostPort
		order = append(order, e.Name)
	}

	return &model.Node{
		Name:            rn.Name,
		Role:            model.NodeRole(rn.Role),
		WireGuardIP:     ip,
		ListenPort:      rn.ListenPort,
		Endpoints:       endpoints,
		EndpointOrder:   order,
		DNS:             rn.DNS,
		MTU:             rn.MTU,
		Tags:            rn.Tags,
		EnableIPForward: rn.EnableIPForward,
		PostUp:          rn.PostUp,
		PostDown:        rn.PostDown,
	}, nil
}

func convertGroup(rg rawGroup) *model.Group {
	return &model.Group{
		Name:         rg.Name,
		Members:      rg.Members,
		Topology:     model.Topology(rg.Topology),
		MeshEndpoint: rg.MeshEndpoint,
		Hub:          rg.Hub,
	}
}

func convertConnection(rc rawConnection) *model.Connection {
	c := &model.Connection{
		Name:             rc.Name,
		From:             rc.From,
		To:               rc.To,
		Type:             model.ConnectionType(rc.Type),
		EndpointSelector: rc.EndpointSelector,
		EndpointMapping:  rc.EndpointMapping,
		Nodes:            rc.Nodes,
		FromGateways:     rc.FromGateways,
		ToGateways:       rc.ToGateways,
		Routing:          rc.Routing,
		Description:      rc.Description,
	}
	if c.Name == "" {
		c.Name = c.From + "-" + c.To
	}
	if rc.SpecialFlags != nil {
		c.IsBridge = rc.SpecialFlags.IsBridge
		c.PersistentKeepalive = rc.SpecialFlags.PersistentKeepalive
	}
	return c
}

func convertPeer(rp rawPeer) *model.PeerIntent {
	var ref *model.EndpointRef
	switch {
	case rp.Endpoint != "":
		ref = model.LiteralRef(rp.Endpoint)
	case rp.EndpointRef != "":
		ref = model.NamedRef(rp.EndpointRef)
	}
	return &model.PeerIntent{
		From:                rp.From,
		To:                  rp.To,
		EndpointRef:         ref,
		AllowedIPs:          rp.AllowedIPs,
		PersistentKeepalive: rp.PersistentKeepalive,
		Origin:              model.OriginExplicit,
	}
}

// extractTopLevelRoutingRules scans the document's generic top-level keys
// for the free-standing "<name>_allowed_ips" shape (spec.md §3's
// Routing-Rule), skipping the reserved structural keys.
func extractTopLevelRoutingRules(generic map[string]any) []*model.RoutingRule {
	const suffix = "_allowed_ips"
	keys := make([]string, 0, len(generic))
	for key := range generic {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var rules []*model.RoutingRule
	for _, key := range keys {
		switch key {
		case "nodes", "groups", "connections", "peers":
			continue
		}
		if !strings.HasSuffix(key, suffix) {
			continue
		}
		items, ok := generic[key].([]any)
		if !ok {
			continue
		}
		tokens := make([]string, 0, len(items))
		for _, it := range items {
			if s, ok := it.(string); ok {
				tokens = append(tokens, s)
			}
		}
		rules = append(rules, &model.RoutingRule{Key: key, Tokens: tokens})
	}
	return rules
}

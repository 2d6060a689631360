// Package expand implements the Group Expander (spec.md §4.3): it turns a
// validated group document into an ordered list of Peer-Intents plus
// Routing-Rules, deterministically and without introducing overlap or
// loops. A document's explicit Peers list passes through untouched at the
// head of the Peer-Intent list.
package expand

import (
	"fmt"
	"sort"

	"github.com/netly/wgtopo/internal/apperr"
	"github.com/netly/wgtopo/internal/model"
	"github.com/netly/wgtopo/internal/netaddr"
)

// Diagnostic is a non-fatal observation surfaced alongside a successful
// expansion (spec.md §7, §9's "augment" open-question resolution lives in
// peermap, not here — this package's diagnostics are expansion-local).
type Diagnostic struct {
	Kind    string
	Message string
}

// Result is the Group Expander's output: the flat, ordered Peer-Intent
// list and the Routing-Rules gathered from connection-scoped routing
// expressions, plus any non-fatal diagnostics.
type Result struct {
	Intents     []*model.PeerIntent
	RoutingRules []*model.RoutingRule
	Diagnostics []Diagnostic
}

// Expand runs the Group Expander over doc. The intent list starts with
// doc.Peers verbatim, followed by the intents of each group and then of
// each connection; a document with neither groups nor connections yields
// doc.Peers alone.
func Expand(doc *model.Document) (*Result, error) {
	res := &Result{}
	res.Intents = append(res.Intents, doc.Peers...)

	var br apperr.BuildResult

	for _, g := range doc.Groups() {
		intents, err := expandGroup(doc, g)
		if err != nil {
			br.Add(err)
			continue
		}
		res.Intents = append(res.Intents, intents...)
	}

	for _, c := range doc.Connections {
		intents, rules, diags, err := expandConnection(doc, c)
		if err != nil {
			br.Add(err)
			continue
		}
		res.Intents = append(res.Intents, intents...)
		res.RoutingRules = append(res.RoutingRules, rules...)
		res.Diagnostics = append(res.Diagnostics, diags...)
	}

	if err := br.Err(); err != nil {
		return nil, err
	}

	return res, nil
}

func sortedMembers(g *model.Group) []string {
	out := append([]string(nil), g.Members...)
	sort.Strings(out)
	return out
}

func meshEndpointRef(g *model.Group) *model.EndpointRef {
	if g.MeshEndpoint == "" {
		return nil
	}
	return model.NamedRef(g.MeshEndpoint)
}

func expandGroup(doc *model.Document, g *model.Group) ([]*model.PeerIntent, error) {
	if err := verifyMembersExist(doc, g.Name, g.Members); err != nil {
		return nil, err
	}

	switch g.Topology {
	case model.TopologyMesh:
		return expandMesh(g), nil
	case model.TopologyStar:
		return expandStar(g), nil
	case model.TopologyChain:
		return expandChain(g), nil
	case model.TopologySingle:
		return nil, nil
	default:
		return nil, fmt.Errorf("expand: group %q has unknown topology %q", g.Name, g.Topology)
	}
}

func expandMesh(g *model.Group) []*model.PeerIntent {
	members := sortedMembers(g)
	ref := meshEndpointRef(g)
	var out []*model.PeerIntent
	for _, a := range members {
		for _, b := range members {
			if a == b {
				continue
			}
			out = append(out, &model.PeerIntent{
				From:        a,
				To:          b,
				EndpointRef: ref,
				Origin:      model.OriginGroupMesh,
			})
		}
	}
	return out
}

func expandStar(g *model.Group) []*model.PeerIntent {
	members := sortedMembers(g)
	ref := meshEndpointRef(g)
	var out []*model.PeerIntent
	for _, m := range members {
		if m == g.Hub {
			continue
		}
		out = append(out,
			&model.PeerIntent{From: m, To: g.Hub, EndpointRef: ref, Origin: model.OriginGroupStar},
			&model.PeerIntent{From: g.Hub, To: m, EndpointRef: ref, Origin: model.OriginGroupStar},
		)
	}
	return out
}

func expandChain(g *model.Group) []*model.PeerIntent {
	// Chain order is declaration order, not alphabetical: a chain is a
	// sequence, not a set.
	members := g.Members
	ref := meshEndpointRef(g)
	var out []*model.PeerIntent
	for i := 0; i < len(members)-1; i++ {
		a, b := members[i], members[i+1]
		out = append(out,
			&model.PeerIntent{From: a, To: b, EndpointRef: ref, Origin: model.OriginGroupChain},
			&model.PeerIntent{From: b, To: a, EndpointRef: ref, Origin: model.OriginGroupChain},
		)
	}
	return out
}

func verifyMembersExist(doc *model.Document, groupName string, members []string) error {
	for _, m := range members {
		if _, ok := doc.Node(m); !ok {
			return &apperr.UnknownReference{Kind: "node", Name: m, In: fmt.Sprintf("group %q", groupName)}
		}
	}
	return nil
}

func expandConnection(doc *model.Document, c *model.Connection) ([]*model.PeerIntent, []*model.RoutingRule, []Diagnostic, error) {
	fromMembers, err := doc.ResolveMembers(c.From, fmt.Sprintf("connection %q (from)", c.Name))
	if err != nil {
		return nil, nil, nil, err
	}
	toMembers, err := doc.ResolveMembers(c.To, fmt.Sprintf("connection %q (to)", c.Name))
	if err != nil {
		return nil, nil, nil, err
	}

	if c.Type == model.ConnSelective {
		fromMembers = restrictToNodes(fromMembers, c.Nodes)
		toMembers = restrictToNodes(toMembers, c.Nodes)
	}

	var rules []*model.RoutingRule
	for key, tokens := range c.Routing {
		if key == "allowed_ips" {
			continue // applied directly to produced intents below
		}
		rules = append(rules, &model.RoutingRule{Key: key, Tokens: tokens})
	}
	// Deterministic rule order regardless of map iteration.
	sort.Slice(rules, func(i, j int) bool { return rules[i].Key < rules[j].Key })

	globalTokens := c.Routing["allowed_ips"]

	var intents []*model.PeerIntent
	var diags []Diagnostic

	switch c.Type {
	case model.ConnOutboundOnly:
		for _, s := range fromMembers {
			for _, t := range toMembers {
				if s == t {
					continue
				}
				intents = append(intents, connIntent(c, s, t, model.OriginGroupOutbound, globalTokens))
			}
		}
	case model.ConnBidirectional, model.ConnFullMesh:
		origin := model.OriginGroupBidirectional
		if c.Type == model.ConnFullMesh {
			origin = model.OriginGroupFullMesh
		}
		for _, s := range fromMembers {
			for _, t := range toMembers {
				if s == t {
					continue
				}
				intents = append(intents, connIntent(c, s, t, origin, globalTokens))
				intents = append(intents, connIntent(c, t, s, origin, globalTokens))
			}
		}
	case model.ConnSelective:
		for _, s := range fromMembers {
			for _, t := range toMembers {
				if s == t {
					continue
				}
				intents = append(intents, connIntent(c, s, t, model.OriginGroupSelective, globalTokens))
				intents = append(intents, connIntent(c, t, s, model.OriginGroupSelective, globalTokens))
			}
		}
	case model.ConnGateway:
		clients := fromMembers
		if len(c.FromGateways) > 0 {
			clients = restrictToNodes(fromMembers, c.FromGateways)
		}
		gateways := restrictToNodes(toMembers, c.ToGateways)
		for _, s := range clients {
			for _, t := range gateways {
				if s == t {
					continue
				}
				intents = append(intents, connIntent(c, s, t, model.OriginGroupGateway, globalTokens))
			}
		}
	case model.ConnBridge:
		if len(fromMembers) != 1 || len(toMembers) != 1 {
			return nil, nil, nil, fmt.Errorf("expand: bridge connection %q requires exactly one node per side, got %d and %d",
				c.Name, len(fromMembers), len(toMembers))
		}
		from, to := fromMembers[0], toMembers[0]
		fwdKey := c.From + "_to_" + c.To
		revKey := c.To + "_to_" + c.From
		fwdEP := c.EndpointMapping[fwdKey]
		revEP := c.EndpointMapping[revKey]

		// A mapping value is either a literal host:port or the name of an
		// endpoint on that direction's target.
		fwd := connIntent(c, from, to, model.OriginGroupBridge, globalTokens)
		fwd.EndpointRef = model.LiteralRef(fwdEP)
		if !netaddr.IsHostPort(fwdEP) {
			fwd.EndpointRef = model.NamedRef(fwdEP)
		}
		fwd.IsBridge = true
		rev := connIntent(c, to, from, model.OriginGroupBridge, globalTokens)
		rev.EndpointRef = model.LiteralRef(revEP)
		if !netaddr.IsHostPort(revEP) {
			rev.EndpointRef = model.NamedRef(revEP)
		}
		rev.IsBridge = true

		intents = append(intents, fwd, rev)
	default:
		return nil, nil, nil, fmt.Errorf("expand: connection %q has unhandled type %q", c.Name, c.Type)
	}

	return intents, rules, diags, nil
}

func connIntent(c *model.Connection, from, to string, origin model.Origin, globalTokens []string) *model.PeerIntent {
	var ref *model.EndpointRef
	if c.EndpointSelector != "" {
		ref = model.NamedRef(c.EndpointSelector)
	}
	return &model.PeerIntent{
		From:                from,
		To:                  to,
		EndpointRef:         ref,
		AllowedIPs:          append([]string(nil), globalTokens...),
		PersistentKeepalive: c.PersistentKeepalive,
		Origin:              origin,
		IsBridge:            c.IsBridge,
	}
}

// restrictToNodes filters members to those present in allowed, preserving
// members' order. If allowed is empty, members is returned unchanged.
func restrictToNodes(members, allowed []string) []string {
	if len(allowed) == 0 {
		return members
	}
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}
	var out []string
	for _, m := range members {
		if set[m] {
			out = append(out, m)
		}
	}
	return out
}

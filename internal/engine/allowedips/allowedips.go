// Package allowedips implements the AllowedIPs Resolver (spec.md §4.5): it
// expands symbolic routing tokens into concrete CIDRs, merges in
// Routing-Rules, canonicalises each Peer-Entry's allowed_ips, and enforces
// the per-node non-overlap invariant.
package allowedips

import (
	"net/netip"
	"strings"

	"github.com/netly/wgtopo/internal/apperr"
	"github.com/netly/wgtopo/internal/engine/peermap"
	"github.com/netly/wgtopo/internal/model"
	"github.com/netly/wgtopo/internal/netaddr"
)

// Diagnostic is a non-fatal observation surfaced alongside a successful
// resolution (spec.md §4.5's diagnostics list).
type Diagnostic struct {
	Kind    string
	Node    string
	Peer    string
	Message string
}

// Resolved is a Peer-Entry with its allowed_ips fully expanded and
// canonicalised, still missing key material.
type Resolved struct {
	*peermap.Entry
	AllowedIPs []netip.Prefix
}

// Resolve expands every node's preliminary peer list into final,
// non-overlapping allowed_ips sets. rules is the combined set of
// document-level and connection-scoped Routing-Rules.
func Resolve(doc *model.Document, perNode map[string][]*peermap.Entry, rules []*model.RoutingRule) (map[string][]*Resolved, []Diagnostic, error) {
	rulesByName := make(map[string][]*model.RoutingRule, len(rules))
	for _, r := range rules {
		name, ok := ruleTargetName(r.Key)
		if !ok {
			continue
		}
		// A group-keyed rule applies to each of the group's members.
		targets, err := doc.ResolveMembers(name, "routing rule "+r.Key)
		if err != nil {
			targets = []string{name}
		}
		for _, t := range targets {
			rulesByName[t] = append(rulesByName[t], r)
		}
	}

	out := make(map[string][]*Resolved, len(perNode))
	var diags []Diagnostic

	for node, entries := range perNode {
		var resolvedEntries []*Resolved
		for _, e := range entries {
			tokens := append([]string(nil), e.AllowedIPTokens...)

			fromName, toName := node, e.PeerName
			if e.SynthesizedPassive {
				fromName, toName = e.PeerName, node
			}
			tokens = append(tokens, ruleTokens(rulesByName, toName)...)
			tokens = append(tokens, ruleTokens(rulesByName, fromName)...)

			prefixes, err := expandTokens(doc, tokens)
			if err != nil {
				return nil, nil, err
			}

			peerNode, ok := doc.Node(e.PeerName)
			if !ok {
				return nil, nil, &apperr.UnknownReference{Kind: "node", Name: e.PeerName, In: "allowed_ips resolution"}
			}
			ownHost := peerNode.HostPrefix()
			hadExplicitRoutes := len(prefixes) > 0
			prefixes = append(prefixes, ownHost)

			canon := netaddr.Canonicalise(prefixes)
			diags = append(diags, checkDiagnostics(node, e.PeerName, canon, hadExplicitRoutes)...)

			resolvedEntries = append(resolvedEntries, &Resolved{Entry: e, AllowedIPs: canon})
		}
		out[node] = resolvedEntries
	}

	if err := reconcileAllNodes(doc, out); err != nil {
		return nil, nil, err
	}

	return out, diags, nil
}

// ruleTargetName trims the "_allowed_ips" suffix a Routing-Rule key carries,
// reporting whether key is shaped like one.
func ruleTargetName(key string) (string, bool) {
	const suffix = "_allowed_ips"
	if !strings.HasSuffix(key, suffix) {
		return "", false
	}
	return strings.TrimSuffix(key, suffix), true
}

func ruleTokens(rulesByName map[string][]*model.RoutingRule, name string) []string {
	var out []string
	for _, r := range rulesByName[name] {
		out = append(out, r.Tokens...)
	}
	return out
}

// expandTokens resolves every token to a concrete prefix: a literal CIDR
// verbatim, "<group>.subnet" to the smallest covering prefix, "<group>.nodes"
// to each member's host route, or a BadRouteToken error otherwise.
func expandTokens(doc *model.Document, tokens []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, tok := range tokens {
		if p, err := netaddr.ParsePrefix(tok); err == nil {
			out = append(out, p)
			continue
		}

		idx := strings.LastIndex(tok, ".")
		if idx < 0 {
			return nil, &apperr.BadRouteToken{Token: tok, Reason: "not a CIDR and not a recognized symbolic token"}
		}
		name, suffix := tok[:idx], tok[idx+1:]

		switch suffix {
		case "subnet":
			members, err := doc.ResolveMembers(name, "allowed_ips token "+tok)
			if err != nil {
				return nil, &apperr.BadRouteToken{Token: tok, Reason: err.Error()}
			}
			addrs := make([]netip.Addr, 0, len(members))
			for _, m := range members {
				n, _ := doc.Node(m)
				addrs = append(addrs, n.WireGuardIP.Addr())
			}
			p, err := netaddr.SmallestCoveringPrefix(addrs)
			if err != nil {
				return nil, &apperr.BadRouteToken{Token: tok, Reason: err.Error()}
			}
			out = append(out, p)
		case "nodes":
			members, err := doc.ResolveMembers(name, "allowed_ips token "+tok)
			if err != nil {
				return nil, &apperr.BadRouteToken{Token: tok, Reason: err.Error()}
			}
			for _, m := range members {
				n, _ := doc.Node(m)
				out = append(out, n.HostPrefix())
			}
		default:
			return nil, &apperr.BadRouteToken{Token: tok, Reason: "endpoints are not routes"}
		}
	}
	return out, nil
}

func checkDiagnostics(node, peer string, cidrs []netip.Prefix, hadExplicitRoutes bool) []Diagnostic {
	var diags []Diagnostic
	hasDefault := false
	for _, c := range cidrs {
		if c.Bits() == 0 {
			hasDefault = true
		}
	}
	if hasDefault && len(cidrs) > 1 {
		diags = append(diags, Diagnostic{Kind: "DefaultRouteCombined", Node: node, Peer: peer,
			Message: "allowed_ips combines 0.0.0.0/0 (or ::/0) with other routes"})
	}
	for _, c := range cidrs {
		if c.Bits() > 0 && c.Bits() < 16 {
			diags = append(diags, Diagnostic{Kind: "WideCIDR", Node: node, Peer: peer,
				Message: "allowed_ips contains " + c.String() + ", wider than /16"})
		}
	}
	if !hadExplicitRoutes {
		diags = append(diags, Diagnostic{Kind: "OnlyOwnHostRoute", Node: node, Peer: peer,
			Message: "allowed_ips consists solely of the peer's own overlay host route"})
	}
	return diags
}

// reconcileAllNodes enforces the per-node non-overlap invariant: any two
// peers' allowed_ips sets on the same node must be disjoint, except when
// one peer's wider CIDR contains another peer's own host route — that
// overlap is excused and both sets are left as they are, since the
// narrower, more specific peer wins for that address (longest-prefix
// discipline). Any other overlap is reported as a fatal AllowedIpsOverlap.
func reconcileAllNodes(doc *model.Document, out map[string][]*Resolved) error {
	var result apperr.BuildResult
	for node, entries := range out {
		for i := 0; i < len(entries); i++ {
			for j := i + 1; j < len(entries); j++ {
				result.Add(reconcilePair(doc, node, entries[i], entries[j]))
			}
		}
	}
	return result.Err()
}

func reconcilePair(doc *model.Document, node string, a, b *Resolved) error {
	aHost, _ := ownHostRoute(doc, a)
	bHost, _ := ownHostRoute(doc, b)

	var conflicts []string
	for _, pa := range a.AllowedIPs {
		for _, pb := range b.AllowedIPs {
			if !netaddr.Overlap(pa, pb) {
				continue
			}
			if excusedByHostRouteException(pa, pb, aHost, bHost) {
				continue
			}
			conflicts = append(conflicts, pa.String()+" vs "+pb.String())
		}
	}
	if len(conflicts) > 0 {
		return &apperr.AllowedIPsOverlap{OnNode: node, PeerA: a.PeerName, PeerB: b.PeerName, CIDRs: conflicts}
	}
	return nil
}

// ownHostRoute returns the resolved entry's peer's own host route if it is
// listed in the entry's allowed_ips. Resolve always appends it, but
// canonicalisation drops it again when a wider CIDR on the same entry
// covers it; then ok is false.
func ownHostRoute(doc *model.Document, r *Resolved) (netip.Prefix, bool) {
	n, ok := doc.Node(r.PeerName)
	if !ok {
		return netip.Prefix{}, false
	}
	host := n.HostPrefix()
	for _, p := range r.AllowedIPs {
		if p == host {
			return host, true
		}
	}
	return netip.Prefix{}, false
}

// excusedByHostRouteException implements the one non-fatal overlap shape
// spec.md §4.5 allows: one peer's CIDR is a strict superset that happens to
// contain the other peer's own host route. The wider CIDR is left intact
// (splitting it would require fragmenting it into a disjoint cover, which
// WireGuard's own longest-prefix peer selection makes unnecessary — the
// more specific host route still wins for that one address); only a
// genuine overlap between two CIDRs that isn't explained by this shape is
// fatal.
func excusedByHostRouteException(pa, pb, aHost, bHost netip.Prefix) bool {
	if bHost.IsValid() && pb == bHost && pa.Bits() < pb.Bits() && pa.Contains(pb.Addr()) {
		return true
	}
	if aHost.IsValid() && pa == aHost && pb.Bits() < pa.Bits() && pb.Contains(pa.Addr()) {
		return true
	}
	return false
}

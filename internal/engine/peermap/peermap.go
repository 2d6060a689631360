// Package peermap implements the Peer Map Builder (spec.md §4.4): it
// consumes the Group Expander's flat Peer-Intent list and yields, for each
// Node, an ordered list of preliminary Peer-Entries with no key material
// yet. Grouping intents by "from" — not the global list — is the source
// of truth for "what peers does node X have?", per spec.
package peermap

import (
	"sort"

	"github.com/netly/wgtopo/internal/apperr"
	"github.com/netly/wgtopo/internal/model"
	"github.com/netly/wgtopo/internal/netaddr"
)

// Diagnostic is a non-fatal observation, e.g. the Open Question resolution
// (spec.md §9): a mesh-topology edge augmented by an inter-group
// connection's allowed_ips on the same pair.
type Diagnostic struct {
	Kind    string
	Message string
}

// Entry is a preliminary Peer-Entry: resolved endpoint and origin, but
// allowed_ips are still raw tokens (literal CIDRs or symbolic routing
// tokens) and there is no key material.
type Entry struct {
	PeerName            string // the node at the other end of this edge
	Endpoint            *netaddr.HostPort
	AllowedIPTokens     []string
	PersistentKeepalive *int
	Origin              model.Origin
	IsBridge            bool
	SynthesizedPassive  bool // true if this entry was auto-added for asymmetric reachability (spec.md §4.4 step 3)
}

type pairKey struct{ from, to string }

type merged struct {
	from, to            string
	endpointRef         *model.EndpointRef
	tokens              []string
	persistentKeepalive *int
	origin              model.Origin
	isBridge            bool
	sawIntraGroup       bool // origin group-mesh/star/chain seen for this pair
	sawInterGroupOrExpl bool // any other origin seen for this pair
}

// Build groups intents by "from", resolves endpoints, applies the
// asymmetry and merge rules, and returns each node's ordered preliminary
// peer list.
func Build(doc *model.Document, intents []*model.PeerIntent) (map[string][]*Entry, []Diagnostic, error) {
	var order []pairKey
	mergedByPair := make(map[pairKey]*merged)
	var br apperr.BuildResult

	for _, in := range intents {
		if in.From != "" && in.From == in.To {
			br.Add(&apperr.SelfPeer{Node: in.From, Origin: string(in.Origin)})
			continue
		}
		if err := in.Validate(); err != nil {
			br.Add(err)
			continue
		}
		key := pairKey{in.From, in.To}
		m, ok := mergedByPair[key]
		if !ok {
			m = &merged{from: in.From, to: in.To}
			mergedByPair[key] = m
			order = append(order, key)
		} else {
			wasIntra := isIntraGroupOrigin(m.origin)
			isIntra := isIntraGroupOrigin(in.Origin)
			if wasIntra != isIntra {
				m.sawIntraGroup = m.sawIntraGroup || wasIntra || isIntra
				m.sawInterGroupOrExpl = true
			}
		}
		m.endpointRef = in.EndpointRef
		m.persistentKeepalive = in.PersistentKeepalive
		m.origin = in.Origin
		m.isBridge = in.IsBridge
		m.tokens = append(m.tokens, in.AllowedIPs...)
	}

	var diags []Diagnostic
	pairSet := make(map[pairKey]bool, len(order))
	for _, k := range order {
		pairSet[k] = true
	}

	perNode := make(map[string][]*Entry)

	for _, k := range order {
		m := mergedByPair[k]
		if m.sawIntraGroup && m.sawInterGroupOrExpl {
			diags = append(diags, Diagnostic{
				Kind:    "MeshConnectionAugmented",
				Message: "allowed_ips for " + m.from + "->" + m.to + " augmented by an overlapping intra-group and inter-group edge; merged per augment-then-canonicalise rule",
			})
		}

		target, ok := doc.Node(m.to)
		if !ok {
			br.Add(&apperr.UnknownReference{Kind: "node", Name: m.to, In: "peer map"})
			continue
		}
		ep, err := resolveEndpoint(m.from, target, m.endpointRef)
		if err != nil {
			br.Add(err)
			continue
		}

		perNode[m.from] = append(perNode[m.from], &Entry{
			PeerName:            m.to,
			Endpoint:            ep,
			AllowedIPTokens:     m.tokens,
			PersistentKeepalive: m.persistentKeepalive,
			Origin:              m.origin,
			IsBridge:            m.isBridge,
		})

		// Asymmetry rule: if the reverse edge is absent, t gets a
		// passive entry for f (no endpoint, no keepalive, allowed_ips
		// defaulting to f's host route — the Resolver injects that
		// default; here we just leave tokens empty).
		rev := pairKey{m.to, m.from}
		if !pairSet[rev] {
			perNode[m.to] = append(perNode[m.to], &Entry{
				PeerName:           m.from,
				Endpoint:           nil,
				AllowedIPTokens:    nil,
				Origin:             m.origin,
				SynthesizedPassive: true,
			})
		}
	}

	for node, entries := range perNode {
		sortEntries(entries)
		perNode[node] = entries
	}

	if err := br.Err(); err != nil {
		return nil, nil, err
	}

	return perNode, diags, nil
}

func isIntraGroupOrigin(o model.Origin) bool {
	switch o {
	case model.OriginGroupMesh, model.OriginGroupChain, model.OriginGroupStar:
		return true
	default:
		return false
	}
}

func resolveEndpoint(from string, target *model.Node, ref *model.EndpointRef) (*netaddr.HostPort, error) {
	if ref == nil || ref.Kind == model.EndpointRefUnset {
		names := target.SortedEndpointNames()
		if len(names) == 0 {
			return nil, nil
		}
		hp, err := netaddr.ParseHostPort(target.Endpoints[names[0]])
		if err != nil {
			return nil, err
		}
		return &hp, nil
	}
	switch ref.Kind {
	case model.EndpointRefLiteral:
		hp, err := netaddr.ParseHostPort(ref.Literal)
		if err != nil {
			return nil, err
		}
		return &hp, nil
	case model.EndpointRefName:
		raw, ok := target.Endpoints[ref.Name]
		if !ok {
			return nil, &apperr.EndpointNotFound{From: from, To: target.Name, Endpoint: ref.Name}
		}
		hp, err := netaddr.ParseHostPort(raw)
		if err != nil {
			return nil, err
		}
		return &hp, nil
	default:
		return nil, nil
	}
}

func bucket(o model.Origin) int {
	switch o {
	case model.OriginGroupMesh, model.OriginGroupChain:
		return 0
	case model.OriginGroupStar, model.OriginGroupGateway:
		return 1
	case model.OriginGroupBridge:
		return 3
	default:
		return 2
	}
}

func sortEntries(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		bi, bj := bucket(entries[i].Origin), bucket(entries[j].Origin)
		if bi != bj {
			return bi < bj
		}
		return entries[i].PeerName < entries[j].PeerName
	})
}

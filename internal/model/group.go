package model

import (
	"fmt"

	"github.com/netly/wgtopo/internal/apperr"
)

// Topology is a Group's internal connectivity pattern.
type Topology string

const (
	TopologyMesh   Topology = "mesh"
	TopologyStar   Topology = "star"
	TopologyChain  Topology = "chain"
	TopologySingle Topology = "single"
)

// Group is a labelled set of node names plus an internal topology.
type Group struct {
	Name string
	// Members is ordered as declared; chain topology's edge order depends
	// on it, mesh/star iterate it alphabetically regardless.
	Members      []string
	Topology     Topology
	MeshEndpoint string // optional endpoint name used for intra-group edges
	Hub          string // required for star; must be a member
}

// Validate checks the per-topology arity invariants of spec.md §3. It does
// not check that members resolve to real nodes; that is a Document-level
// / Expander-level concern since it requires the node table.
func (g *Group) Validate() error {
	if g.Name == "" {
		return fmt.Errorf("%w: group has no name", ErrInvalidGroup)
	}
	switch g.Topology {
	case TopologyMesh:
		if len(g.Members) < 2 {
			return &apperr.TopologyArity{Group: g.Name, Topology: string(g.Topology), Got: len(g.Members), Want: "at least 2 members"}
		}
	case TopologyStar:
		if len(g.Members) < 2 {
			return &apperr.TopologyArity{Group: g.Name, Topology: string(g.Topology), Got: len(g.Members), Want: "at least 2 members"}
		}
		if g.Hub == "" {
			return fmt.Errorf("%w: star group %q requires a hub", ErrInvalidGroup, g.Name)
		}
		if !contains(g.Members, g.Hub) {
			return fmt.Errorf("%w: star group %q hub %q is not a member", ErrInvalidGroup, g.Name, g.Hub)
		}
	case TopologyChain:
		if len(g.Members) < 2 {
			return &apperr.TopologyArity{Group: g.Name, Topology: string(g.Topology), Got: len(g.Members), Want: "at least 2 ordered members"}
		}
	case TopologySingle:
		if len(g.Members) != 1 {
			return &apperr.TopologyArity{Group: g.Name, Topology: string(g.Topology), Got: len(g.Members), Want: "exactly 1 member"}
		}
	default:
		return fmt.Errorf("%w: group %q has unknown topology %q", ErrInvalidGroup, g.Name, g.Topology)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Package visualizer builds a graph view of an already-built Engine
// Result, for callers that want to traverse or render the topology (a
// CLI "show" command, a GUI). It is a pure read of the Engine's output
// and never participates in expansion or resolution.
package visualizer

import (
	"github.com/dominikbraun/graph"

	"github.com/netly/wgtopo/internal/engine"
)

// Build constructs a directed graph from result: one vertex per node,
// one edge per Peer-Entry (source node -> peer), labelled with the
// peer's provenance comment.
func Build(result *engine.Result) (graph.Graph[string, string], error) {
	g := graph.New(graph.StringHash, graph.Directed())

	for name := range result.Nodes {
		if err := g.AddVertex(name); err != nil {
			return nil, err
		}
	}

	for name, cfg := range result.Nodes {
		for _, p := range cfg.Peers {
			if err := g.AddEdge(name, p.PeerName, graph.EdgeAttribute("label", p.Comment)); err != nil {
				return nil, err
			}
		}
	}

	return g, nil
}

// Package engine wires the pipeline together: Group Expansion -> Peer Map
// Building -> AllowedIPs Resolution -> Key Binding -> Emission (spec.md §4).
// Build is the Engine's single synchronous entry point (spec.md §5).
package engine

import (
	"github.com/netly/wgtopo/internal/engine/allowedips"
	"github.com/netly/wgtopo/internal/engine/bind"
	"github.com/netly/wgtopo/internal/engine/emit"
	"github.com/netly/wgtopo/internal/engine/expand"
	"github.com/netly/wgtopo/internal/engine/peermap"
	"github.com/netly/wgtopo/internal/model"
)

// KeyStore is re-exported from bind so callers only need to import engine.
type KeyStore = bind.KeyStore

// Diagnostic is a non-fatal observation surfaced alongside a successful
// build, tagged with the pipeline stage that raised it.
type Diagnostic struct {
	Stage   string
	Kind    string
	Message string
}

// Result is the Engine's output: one Config per node plus any diagnostics
// collected across every stage.
type Result struct {
	Nodes       map[string]*emit.Config
	Diagnostics []Diagnostic
}

// Options configures a Build invocation.
type Options struct {
	// InterfaceName is used in generated relay PostUp/PostDown commands.
	// Defaults to "wg0" if empty.
	InterfaceName string
}

// Build runs the full pipeline over doc, using ks for key material.
func Build(doc *model.Document, ks KeyStore, opts Options) (*Result, error) {
	if opts.InterfaceName == "" {
		opts.InterfaceName = "wg0"
	}

	var diags []Diagnostic

	expandRes, err := expand.Expand(doc)
	if err != nil {
		return nil, err
	}
	for _, d := range expandRes.Diagnostics {
		diags = append(diags, Diagnostic{Stage: "expand", Kind: d.Kind, Message: d.Message})
	}

	perNode, peermapDiags, err := peermap.Build(doc, expandRes.Intents)
	if err != nil {
		return nil, err
	}
	for _, d := range peermapDiags {
		diags = append(diags, Diagnostic{Stage: "peermap", Kind: d.Kind, Message: d.Message})
	}

	allRules := append([]*model.RoutingRule(nil), doc.RoutingRules...)
	allRules = append(allRules, expandRes.RoutingRules...)

	resolved, resolveDiags, err := allowedips.Resolve(doc, perNode, allRules)
	if err != nil {
		return nil, err
	}
	for _, d := range resolveDiags {
		diags = append(diags, Diagnostic{Stage: "allowedips", Kind: d.Kind, Message: d.Message})
	}

	records, err := bind.Bind(doc, resolved, ks)
	if err != nil {
		return nil, err
	}

	configs, err := emit.Emit(doc, records, opts.InterfaceName)
	if err != nil {
		return nil, err
	}

	return &Result{Nodes: configs, Diagnostics: diags}, nil
}

// Package apperr defines the error taxonomy shared across the topology
// engine. Errors are values, never exceptions: the failure kinds below are
// returned as structured types so callers can type-switch on their
// payloads instead of parsing messages. Shape errors from individual
// packages (model, netaddr, keystore) wrap those packages' own sentinels.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for primitive validation failures that carry no useful
// structured payload beyond their message.
var (
	ErrInvalidDocument = errors.New("wgtopo: invalid document")
)

// UnknownReference is returned when a group or connection references a node
// or group name that does not exist in the document.
type UnknownReference struct {
	Kind string // "node", "group", or "group-or-node"
	Name string
	In   string // where the reference appeared, e.g. "group mesh-eu"
}

func (e *UnknownReference) Error() string {
	return fmt.Sprintf("wgtopo: unknown %s %q referenced in %s", e.Kind, e.Name, e.In)
}

// TopologyArity is returned when a group's member count violates the
// arity rule for its topology.
type TopologyArity struct {
	Group    string
	Topology string
	Got      int
	Want     string // human-readable constraint, e.g. "at least 2 members"
}

func (e *TopologyArity) Error() string {
	return fmt.Sprintf("wgtopo: group %q (%s) has %d members, want %s", e.Group, e.Topology, e.Got, e.Want)
}

// EndpointNotFound is returned when a Peer-Intent's endpoint_ref names an
// endpoint that does not exist on the target node.
type EndpointNotFound struct {
	From     string
	To       string
	Endpoint string
}

func (e *EndpointNotFound) Error() string {
	return fmt.Sprintf("wgtopo: endpoint %q not found on node %q (peer from %q)", e.Endpoint, e.To, e.From)
}

// BadRouteToken is returned when an allowed_ips entry is a symbolic token
// the Resolver does not recognize, or one it explicitly rejects (an
// endpoint reference used as a route).
type BadRouteToken struct {
	Token  string
	Reason string
}

func (e *BadRouteToken) Error() string {
	return fmt.Sprintf("wgtopo: bad route token %q: %s", e.Token, e.Reason)
}

// AllowedIPsOverlap is returned when two peers on the same node have
// allowed_ips sets that overlap in a way the longest-prefix host-route
// exception does not excuse.
type AllowedIPsOverlap struct {
	OnNode string
	PeerA  string
	PeerB  string
	CIDRs  []string
}

func (e *AllowedIPsOverlap) Error() string {
	return fmt.Sprintf("wgtopo: allowed_ips overlap on node %q between peers %q and %q: %s",
		e.OnNode, e.PeerA, e.PeerB, strings.Join(e.CIDRs, ", "))
}

// BridgeMappingMissing is returned when a bridge connection lacks the
// per-side endpoint_mapping entries it requires.
type BridgeMappingMissing struct {
	Connection string
	Missing    []string
}

func (e *BridgeMappingMissing) Error() string {
	return fmt.Sprintf("wgtopo: bridge connection %q missing endpoint_mapping keys: %s",
		e.Connection, strings.Join(e.Missing, ", "))
}

// SelfPeer is returned when a Peer-Intent's from and to resolve to the same
// node.
type SelfPeer struct {
	Node   string
	Origin string
}

func (e *SelfPeer) Error() string {
	return fmt.Sprintf("wgtopo: self-peer on node %q (origin %s)", e.Node, e.Origin)
}

// DuplicateNodeName is returned when two nodes declare the same name.
type DuplicateNodeName struct {
	Name string
}

func (e *DuplicateNodeName) Error() string {
	return fmt.Sprintf("wgtopo: duplicate node name %q", e.Name)
}

// DuplicateNodeIP is returned when two nodes share a wireguard_ip host
// address.
type DuplicateNodeIP struct {
	Names []string
	IP    string
}

func (e *DuplicateNodeIP) Error() string {
	return fmt.Sprintf("wgtopo: duplicate node ip %s shared by %s", e.IP, strings.Join(e.Names, ", "))
}

// BuildResult aggregates the errors raised by independent subtrees within
// one stage (nodes, groups, connections, peer pairs) so callers see every
// problem of that stage in one report. The top-level Build stops at the
// first stage that returns an error.
type BuildResult struct {
	errs []error
}

func (r *BuildResult) Add(err error) {
	if err == nil {
		return
	}
	r.errs = append(r.errs, err)
}

func (r *BuildResult) AddAll(errs ...error) {
	for _, e := range errs {
		r.Add(e)
	}
}

// Err returns nil if no errors were accumulated, otherwise a joined error
// (errors.Is/As work across the joined set).
func (r *BuildResult) Err() error {
	if len(r.errs) == 0 {
		return nil
	}
	return errors.Join(r.errs...)
}

func (r *BuildResult) Empty() bool {
	return len(r.errs) == 0
}

// Package bind implements the Key Binder (spec.md §4.6): the only stage of
// the pipeline with observable side effects. It asks the Key Store
// collaborator for each node's keypair and each unordered pair's PSK, and
// attaches them to the resolved Peer-Entries.
package bind

import (
	"fmt"
	"net/netip"

	"github.com/netly/wgtopo/internal/engine/allowedips"
	"github.com/netly/wgtopo/internal/model"
	"github.com/netly/wgtopo/internal/netaddr"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// KeyStore is the Binder's collaborator contract (spec.md §4.6): both
// operations must be idempotent and safe under concurrent callers. The
// Engine treats the Key Store as opaque; internal/keystore.Store satisfies
// this interface.
type KeyStore interface {
	GetOrCreateKeyPair(node string) (priv, pub wgtypes.Key, err error)
	GetOrCreatePSK(a, b string) (wgtypes.Key, error)
}

// Interface is a Per-Node Config Record's Interface block, minus the
// post_up/post_down commands Emission attaches (spec.md §4.7).
type Interface struct {
	PrivateKey string
	Address    netip.Prefix
	ListenPort *uint16
	DNS        []string
	MTU        *int
}

// PeerEntry is a bound Peer-Entry: resolved allowed_ips plus key material,
// still missing the provenance comment and final ordering Emission adds.
type PeerEntry struct {
	PeerName            string
	PublicKey           string
	PresharedKey        string
	Endpoint            *netaddr.HostPort
	AllowedIPs          []netip.Prefix
	PersistentKeepalive *int
	Origin              model.Origin
	IsBridge            bool
}

// ConfigRecord is one node's bound, not-yet-emitted configuration.
type ConfigRecord struct {
	NodeName  string
	Interface Interface
	Peers     []*PeerEntry
}

// Bind asks ks for every node's keypair and every (from,to) pair's PSK and
// produces one ConfigRecord per node.
func Bind(doc *model.Document, resolved map[string][]*allowedips.Resolved, ks KeyStore) (map[string]*ConfigRecord, error) {
	pubKeys := make(map[string]string, len(doc.NodeNames()))
	privKeys := make(map[string]string, len(doc.NodeNames()))
	for _, name := range doc.NodeNames() {
		priv, pub, err := ks.GetOrCreateKeyPair(name)
		if err != nil {
			return nil, fmt.Errorf("bind: key pair for %q: %w", name, err)
		}
		privKeys[name] = priv.String()
		pubKeys[name] = pub.String()
	}

	records := make(map[string]*ConfigRecord, len(doc.NodeNames()))
	for _, name := range doc.NodeNames() {
		n, ok := doc.Node(name)
		if !ok {
			return nil, fmt.Errorf("bind: node %q vanished from document", name)
		}

		var peers []*PeerEntry
		for _, r := range resolved[name] {
			psk, err := ks.GetOrCreatePSK(name, r.PeerName)
			if err != nil {
				return nil, fmt.Errorf("bind: psk for (%s,%s): %w", name, r.PeerName, err)
			}
			peers = append(peers, &PeerEntry{
				PeerName:            r.PeerName,
				PublicKey:           pubKeys[r.PeerName],
				PresharedKey:        psk.String(),
				Endpoint:            r.Endpoint,
				AllowedIPs:          r.AllowedIPs,
				PersistentKeepalive: r.PersistentKeepalive,
				Origin:              r.Origin,
				IsBridge:            r.IsBridge,
			})
		}

		records[name] = &ConfigRecord{
			NodeName: name,
			Interface: Interface{
				PrivateKey: privKeys[name],
				Address:    n.WireGuardIP,
				ListenPort: n.ListenPort,
				DNS:        n.DNS,
				MTU:        n.MTU,
			},
			Peers: peers,
		}
	}

	return records, nil
}

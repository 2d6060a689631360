// Package emit implements Emission (spec.md §4.7): the last pure stage,
// turning bound Per-Node Config Records into the structure the template
// renderer consumes. It fills in relay IP-forwarding defaults, the bridge
// persistent_keepalive default, final peer ordering, and provenance
// comments.
package emit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/netly/wgtopo/internal/engine/bind"
	"github.com/netly/wgtopo/internal/model"
	"github.com/netly/wgtopo/internal/netaddr"
)

const defaultBridgeKeepalive = 25

// relayPostUp/relayPostDown mirror the IP-forwarding enable/teardown
// commands a relay node needs, issued against its own primary interface.
var (
	relayPostUp = []string{
		"sysctl -w net.ipv4.ip_forward=1",
		"sysctl -w net.ipv6.conf.all.forwarding=1",
		"iptables -A FORWARD -i %IFACE% -j ACCEPT",
	}
	relayPostDown = []string{
		"iptables -D FORWARD -i %IFACE% -j ACCEPT",
	}
)

// Peer is a final, ordered Peer-Entry ready for rendering.
type Peer struct {
	PeerName            string
	PublicKey           string
	PresharedKey        string
	Endpoint            *netaddr.HostPort
	AllowedIPs          []string
	PersistentKeepalive *int
	Comment             string
}

// Config is one node's fully emitted configuration.
type Config struct {
	NodeName   string
	PrivateKey string
	Address    string
	ListenPort *uint16
	DNS        []string
	MTU        *int
	PostUp     []string
	PostDown   []string
	Peers      []Peer
}

// Emit transforms records (keyed by node name) into final Configs, applying
// relay defaults, the bridge keepalive default, and provenance comments.
// ifaceName is the WireGuard interface name used in generated PostUp/
// PostDown commands (e.g. "wg0").
func Emit(doc *model.Document, records map[string]*bind.ConfigRecord, ifaceName string) (map[string]*Config, error) {
	out := make(map[string]*Config, len(records))

	for name, rec := range records {
		n, ok := doc.Node(name)
		if !ok {
			return nil, fmt.Errorf("emit: node %q vanished from document", name)
		}

		cfg := &Config{
			NodeName:   name,
			PrivateKey: rec.Interface.PrivateKey,
			Address:    rec.Interface.Address.String(),
			ListenPort: rec.Interface.ListenPort,
			DNS:        rec.Interface.DNS,
			MTU:        rec.Interface.MTU,
		}

		switch {
		case len(n.PostUp) > 0 || len(n.PostDown) > 0:
			cfg.PostUp, cfg.PostDown = n.PostUp, n.PostDown
		case n.IsRelay():
			cfg.PostUp, cfg.PostDown = relayCommands(ifaceName)
		}

		peers := append([]*bind.PeerEntry(nil), rec.Peers...)
		sortPeersForEmission(peers)

		for _, p := range peers {
			keepalive := p.PersistentKeepalive
			if p.IsBridge && keepalive == nil {
				k := defaultBridgeKeepalive
				keepalive = &k
			}
			cfg.Peers = append(cfg.Peers, Peer{
				PeerName:            p.PeerName,
				PublicKey:           p.PublicKey,
				PresharedKey:        p.PresharedKey,
				Endpoint:            p.Endpoint,
				AllowedIPs:          netaddr.FormatPrefixes(p.AllowedIPs),
				PersistentKeepalive: keepalive,
				Comment:             fmt.Sprintf("%s: %s", p.Origin, p.PeerName),
			})
		}

		out[name] = cfg
	}

	return out, nil
}

func relayCommands(iface string) (postUp, postDown []string) {
	postUp = make([]string, len(relayPostUp))
	for i, c := range relayPostUp {
		postUp[i] = strings.ReplaceAll(c, "%IFACE%", iface)
	}
	postDown = make([]string, len(relayPostDown))
	for i, c := range relayPostDown {
		postDown[i] = strings.ReplaceAll(c, "%IFACE%", iface)
	}
	return postUp, postDown
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

// sortPeersForEmission re-applies the stable ordering rule (spec.md §4.4
// step 5) in case upstream merges shuffled it.
func sortPeersForEmission(peers []*bind.PeerEntry) {
	sort.SliceStable(peers, func(i, j int) bool {
		bi, bj := bucket(peers[i].Origin), bucket(peers[j].Origin)
		if bi != bj {
			return bi < bj
		}
		return peers[i].PeerName < peers[j].PeerName
	})
}

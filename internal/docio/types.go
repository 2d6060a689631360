package docio

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// rawDocument mirrors the on-disk shape of a topology document (spec.md
// §3): either traditional form (nodes + peers) or group form (nodes +
// groups + connections), plus any free-standing "<name>_allowed_ips"
// Routing-Rules at the top level. Both forms may be present at once.
type rawDocument struct {
	Nodes       []rawNode       `yaml:"nodes"`
	Groups      []rawGroup      `yaml:"groups"`
	Connections []rawConnection `yaml:"connections"`
	Peers       []rawPeer       `yaml:"peers"`
}

type rawNode struct {
	Name            string       `yaml:"name"`
	Role            string       `yaml:"role"`
	WireguardIP     string       `yaml:"wireguard_ip"`
	ListenPort      *uint16      `yaml:"listen_port"`
	Endpoints       rawEndpoints `yaml:"endpoints"`
	DNS             []string     `yaml:"dns"`
	MTU             *int         `yaml:"mtu"`
	Tags            []string     `yaml:"tags"`
	EnableIPForward *bool        `yaml:"enable_ip_forward"`
	PostUp          []string     `yaml:"post_up"`
	PostDown        []string     `yaml:"post_down"`
}

// rawEndpoint is one name -> host:port pair, in declaration order.
type rawEndpoint struct {
	Name     string
	HostPort string
}

// rawEndpoints decodes a node's "endpoints" field in either shape spec.md
// §3 allows: a name -> host:port mapping, or a bare list of host:port
// values that get synthetic names (e0, e1, ...) in declaration order.
// yaml.v3's mapping nodes preserve declaration order in Content, which a
// plain map[string]string target would lose.
type rawEndpoints []rawEndpoint

func (e *rawEndpoints) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(value.Content); i += 2 {
			var name, hp string
			if err := value.Content[i].Decode(&name); err != nil {
				return fmt.Errorf("endpoints: %w", err)
			}
			if err := value.Content[i+1].Decode(&hp); err != nil {
				return fmt.Errorf("endpoints: %w", err)
			}
			*e = append(*e, rawEndpoint{Name: name, HostPort: hp})
		}
		return nil
	case yaml.SequenceNode:
		for i, item := range value.Content {
			var hp string
			if err := item.Decode(&hp); err != nil {
				return fmt.Errorf("endpoints[%d]: %w", i, err)
			}
			*e = append(*e, rawEndpoint{Name: fmt.Sprintf("e%d", i), HostPort: hp})
		}
		return nil
	default:
		return fmt.Errorf("endpoints: expected a mapping or a sequence, got %v", value.Kind)
	}
}

type rawGroup struct {
	Name         string   `yaml:"name"`
	Members      []string `yaml:"members"`
	Topology     string   `yaml:"topology"`
	MeshEndpoint string   `yaml:"mesh_endpoint"`
	Hub          string   `yaml:"hub"`
}

type rawSpecialFlags struct {
	IsBridge            bool `yaml:"is_bridge"`
	PersistentKeepalive *int `yaml:"persistent_keepalive"`
}

type rawConnection struct {
	Name             string              `yaml:"name"`
	From             string              `yaml:"from"`
	To               string              `yaml:"to"`
	Type             string              `yaml:"type"`
	EndpointSelector string              `yaml:"endpoint_selector"`
	EndpointMapping  map[string]string   `yaml:"endpoint_mapping"`
	Nodes            []string            `yaml:"nodes"`
	FromGateways     []string            `yaml:"from_gw"`
	ToGateways       []string            `yaml:"to_gw"`
	Routing          map[string][]string `yaml:"routing"`
	SpecialFlags     *rawSpecialFlags    `yaml:"special_flags"`
	Description      string              `yaml:"description"`
}

type rawPeer struct {
	From                string   `yaml:"from"`
	To                  string   `yaml:"to"`
	Endpoint            string   `yaml:"endpoint"`     // literal host:port, verbatim
	EndpointRef         string   `yaml:"endpoint_ref"` // name resolved on the target
	AllowedIPs          []string `yaml:"allowed_ips"`
	PersistentKeepalive *int     `yaml:"persistent_keepalive"`
}

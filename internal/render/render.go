// Package render is the final, pure formatting boundary: it turns an
// Emission-stage Config into the bespoke INI-like text a WireGuard
// "wg-quick" .conf file uses. It performs no validation and no lookups —
// everything it needs is already resolved on the Config it's given.
package render

import (
	"sort"
	"strings"
	"text/template"

	"github.com/netly/wgtopo/internal/engine/emit"
)

const confTemplateSrc = `[Interface]
PrivateKey = {{.PrivateKey}}
Address = {{.Address}}
{{- if .ListenPort}}
ListenPort = {{.ListenPort}}
{{- end}}
{{- if .DNS}}
DNS = {{join .DNS}}
{{- end}}
{{- if .MTU}}
MTU = {{.MTU}}
{{- end}}
{{- range .PostUp}}
PostUp = {{.}}
{{- end}}
{{- range .PostDown}}
PostDown = {{.}}
{{- end}}
{{range .Peers}}
# {{.Comment}}
[Peer]
PublicKey = {{.PublicKey}}
{{- if .PresharedKey}}
PresharedKey = {{.PresharedKey}}
{{- end}}
{{- if .Endpoint}}
Endpoint = {{.Endpoint}}
{{- end}}
AllowedIPs = {{join .AllowedIPs}}
{{- if .PersistentKeepalive}}
PersistentKeepalive = {{.PersistentKeepalive}}
{{- end}}
{{end -}}
`

var confTemplate = template.Must(template.New("wg-quick.conf").Funcs(template.FuncMap{
	"join": func(ss []string) string { return strings.Join(ss, ", ") },
}).Parse(confTemplateSrc))

// peerView flattens emit.Peer's optional fields into template-friendly
// values: nil pointers render as zero, which the template's "if" guards
// treat as absent.
type peerView struct {
	Comment             string
	PublicKey           string
	PresharedKey        string
	Endpoint            string
	AllowedIPs          []string
	PersistentKeepalive int
}

type configView struct {
	PrivateKey string
	Address    string
	ListenPort uint16
	DNS        []string
	MTU        int
	PostUp     []string
	PostDown   []string
	Peers      []peerView
}

func toView(cfg *emit.Config) configView {
	v := configView{
		PrivateKey: cfg.PrivateKey,
		Address:    cfg.Address,
		DNS:        cfg.DNS,
		PostUp:     cfg.PostUp,
		PostDown:   cfg.PostDown,
	}
	if cfg.ListenPort != nil {
		v.ListenPort = *cfg.ListenPort
	}
	if cfg.MTU != nil {
		v.MTU = *cfg.MTU
	}
	for _, p := range cfg.Peers {
		pv := peerView{
			Comment:      p.Comment,
			PublicKey:    p.PublicKey,
			PresharedKey: p.PresharedKey,
			AllowedIPs:   p.AllowedIPs,
		}
		if p.Endpoint != nil {
			pv.Endpoint = p.Endpoint.String()
		}
		if p.PersistentKeepalive != nil {
			pv.PersistentKeepalive = *p.PersistentKeepalive
		}
		v.Peers = append(v.Peers, pv)
	}
	return v
}

// Render formats one node's Config as wg-quick .conf text.
func Render(cfg *emit.Config) (string, error) {
	var sb strings.Builder
	if err := confTemplate.Execute(&sb, toView(cfg)); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// RenderAll formats every node's Config, keyed by node name.
func RenderAll(configs map[string]*emit.Config) (map[string]string, error) {
	out := make(map[string]string, len(configs))
	for name, cfg := range configs {
		text, err := Render(cfg)
		if err != nil {
			return nil, err
		}
		out[name] = text
	}
	return out, nil
}

// SortedNodeNames returns configs' keys sorted, for callers that render
// (or write) files in a deterministic order.
func SortedNodeNames(configs map[string]*emit.Config) []string {
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

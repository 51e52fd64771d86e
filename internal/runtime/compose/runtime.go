package compose

import (
	"fmt"

	"gopkg.in/yaml.v3"

	runtimeerrors "github.com/stelliberty/enginectl/internal/runtime/errors"
)

// RuntimeParams are the locally-decided engine settings injected over
// whatever the subscription document says. They become a global-override
// mapping merged with last-write-wins semantics, so the subscription can
// never pin ports or routing mode behind the user's back.
type RuntimeParams struct {
	MixedPort     int
	AllowLAN      bool
	Mode          string
	IPv6          bool
	TCPConcurrent bool
	UnifiedDelay  bool
	LogLevel      string

	TunEnabled bool
	TunStack   string
	TunDevice  string
	TunMTU     int

	// DNSOverride replaces the dns block wholesale when enabled. With no
	// override, TUN mode gets a working fake-ip default; without TUN the
	// subscription's dns block is left alone.
	DNSOverrideEnabled bool
	DNSOverride        string
}

// DefaultRuntimeParams mirror the engine's sensible local defaults.
func DefaultRuntimeParams() RuntimeParams {
	return RuntimeParams{
		MixedPort: 7890,
		Mode:      "rule",
		LogLevel:  "info",
		TunStack:  "gvisor",
		TunDevice: "utun1500",
		TunMTU:    1500,
	}
}

// Document renders the parameters as a global-override mapping for
// MergeGlobal. Key order is fixed, so the rendered bytes are stable for
// equal parameters.
func (p RuntimeParams) Document() (string, error) {
	bind := "127.0.0.1"
	if p.AllowLAN {
		bind = "0.0.0.0"
	}

	root := mappingNode(
		"mixed-port", intNode(p.MixedPort),
		"bind-address", strNode(bind),
		"mode", strNode(p.Mode),
		"ipv6", boolNode(p.IPv6),
		"tcp-concurrent", boolNode(p.TCPConcurrent),
		"unified-delay", boolNode(p.UnifiedDelay),
		"log-level", strNode(p.LogLevel),
		"tun", p.tunNode(),
	)

	if dns, err := p.dnsNode(); err != nil {
		return "", err
	} else if dns != nil {
		root.Content = append(root.Content, keyNode("dns"), dns)
	}

	return encodeMapping(root)
}

func (p RuntimeParams) tunNode() *yaml.Node {
	return mappingNode(
		"enable", boolNode(p.TunEnabled),
		"stack", strNode(p.TunStack),
		"device", strNode(p.TunDevice),
		"auto-route", boolNode(p.TunEnabled),
		"auto-detect-interface", boolNode(p.TunEnabled),
		"dns-hijack", seqNode("any:53"),
		"mtu", intNode(p.TunMTU),
	)
}

func (p RuntimeParams) dnsNode() (*yaml.Node, error) {
	if p.DNSOverrideEnabled {
		if p.DNSOverride == "" {
			return nil, nil
		}
		user, err := mappingRoot(p.DNSOverride)
		if err != nil {
			return nil, fmt.Errorf("%w: dns override: %v", runtimeerrors.ErrMergeFailed, err)
		}
		for i := 0; i+1 < len(user.Content); i += 2 {
			if user.Content[i].Value == "dns" {
				return user.Content[i+1], nil
			}
		}
		return nil, nil
	}

	if !p.TunEnabled {
		return nil, nil
	}
	// TUN without DNS hijacked onto fake-ip leaks resolution around the
	// tunnel, so supply a working default.
	return mappingNode(
		"enable", boolNode(true),
		"ipv6", boolNode(p.IPv6),
		"enhanced-mode", strNode("fake-ip"),
		"fake-ip-range", strNode("198.18.0.1/16"),
		"nameserver", seqNode("8.8.8.8", "https://doh.pub/dns-query"),
		"default-nameserver", seqNode("system", "223.6.6.6", "8.8.8.8"),
	), nil
}

func keyNode(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
}

func strNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func boolNode(v bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: fmt.Sprintf("%t", v)}
}

func intNode(v int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprintf("%d", v)}
}

func seqNode(items ...string) *yaml.Node {
	node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, item := range items {
		node.Content = append(node.Content, strNode(item))
	}
	return node
}

func mappingNode(pairs ...any) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i := 0; i+1 < len(pairs); i += 2 {
		node.Content = append(node.Content, keyNode(pairs[i].(string)), pairs[i+1].(*yaml.Node))
	}
	return node
}

// Package compose builds the runtime configuration document handed to the
// engine: base subscription content, an optional global override, and an
// ordered list of named overrides merged in a single engine-side batch.
package compose

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	runtimeerrors "github.com/stelliberty/enginectl/internal/runtime/errors"
)

// MergeGlobal applies the global override mapping onto the base document.
// The merge is structural and key-level: each top-level override key
// replaces the base's value for that key, or is appended if absent.
// Base key order is preserved and appended keys follow in override order,
// so identical inputs always yield identical bytes.
func MergeGlobal(base, override string) (string, error) {
	baseMap, err := mappingRoot(base)
	if err != nil {
		return "", fmt.Errorf("%w: base document: %v", runtimeerrors.ErrMergeFailed, err)
	}
	overrideMap, err := mappingRoot(override)
	if err != nil {
		return "", fmt.Errorf("%w: global override: %v", runtimeerrors.ErrMergeFailed, err)
	}

	for i := 0; i+1 < len(overrideMap.Content); i += 2 {
		key, value := overrideMap.Content[i], overrideMap.Content[i+1]
		replaced := false
		for j := 0; j+1 < len(baseMap.Content); j += 2 {
			if baseMap.Content[j].Value == key.Value {
				baseMap.Content[j+1] = value
				replaced = true
				break
			}
		}
		if !replaced {
			baseMap.Content = append(baseMap.Content, key, value)
		}
	}

	return encodeMapping(baseMap)
}

// mappingRoot parses a document and returns its top-level mapping node.
// An empty document decodes to an empty mapping so merges compose with
// blank bases.
func mappingRoot(doc string) (*yaml.Node, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(doc), &root); err != nil {
		return nil, err
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
	}
	node := root.Content[0]
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("top level is %s, want a mapping", kindName(node.Kind))
	}
	return node, nil
}

func encodeMapping(node *yaml.Node) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}

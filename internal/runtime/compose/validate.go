package compose

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	runtimeerrors "github.com/stelliberty/enginectl/internal/runtime/errors"
)

// requiredKeys is the minimal shape a base document must have before it
// may be persisted. A document with neither proxies nor proxy groups
// cannot configure the engine and is rejected outright.
var requiredKeys = []string{"proxies", "proxy-groups"}

// ValidateBase checks a base document for minimal structural sanity.
// Failure is hard: the document must not be stored or activated. This is
// distinct from an override-merge failure, which degrades gracefully.
func ValidateBase(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: document is empty", runtimeerrors.ErrValidationFailed)
	}

	for i, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "\t") {
			return fmt.Errorf("%w: line %d starts with a tab", runtimeerrors.ErrValidationFailed, i+1)
		}
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(content), &root); err != nil {
		return fmt.Errorf("%w: %v", runtimeerrors.ErrValidationFailed, err)
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("%w: top level must be a mapping", runtimeerrors.ErrValidationFailed)
	}

	mapping := root.Content[0]
	for _, key := range requiredKeys {
		if hasKey(mapping, key) {
			return nil
		}
	}
	return fmt.Errorf("%w: none of %v present", runtimeerrors.ErrValidationFailed, requiredKeys)
}

func hasKey(mapping *yaml.Node, key string) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return true
		}
	}
	return false
}

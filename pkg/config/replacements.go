package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/polisai/polis-pii/pkg/domain"
)

// LoadReplacements reads a YAML document mapping PII kinds to replacement
// values, for example:
//
//	PERSON: [Pat Doe, Robin Roe]
//	EMAIL: [someone@example.com]
//
// Kind names are case-insensitive. Unknown kinds and empty values are errors.
func LoadReplacements(path string) (map[domain.Kind][]string, error) {
	//nolint:gosec // Replacements path is controlled by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read replacements file %s: %w", path, err)
	}
	return ParseReplacements(data)
}

// ParseReplacements decodes a replacements document.
func ParseReplacements(data []byte) (map[domain.Kind][]string, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse replacements: %w", err)
	}

	pools := make(map[domain.Kind][]string, len(raw))
	for name, values := range raw {
		kind := domain.Kind(strings.ToUpper(strings.TrimSpace(name)))
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown PII kind %q", name)
		}
		for i, v := range values {
			if strings.TrimSpace(v) == "" {
				return nil, fmt.Errorf("kind %s: value %d is empty", kind, i)
			}
		}
		pools[kind] = values
	}
	return pools, nil
}

// Package detect finds structured PII with a fixed pattern table and merges
// pattern findings with entity annotations.
package detect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/polisai/polis-pii/pkg/domain"
)

// DefaultRules returns the builtin pattern table. Order matters: it is the
// order findings are emitted in, and therefore the order the merger sees.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "pii.email",
			Kind:    domain.KindEmail,
			Pattern: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`,
		},
		{
			Name:    "pii.phone",
			Kind:    domain.KindPhone,
			Pattern: `\b(?:\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}\b`,
		},
		{
			Name:    "pii.ssn",
			Kind:    domain.KindSSN,
			Pattern: `\b\d{3}-\d{2}-\d{4}\b`,
		},
		{
			Name:    "pci.credit-card",
			Kind:    domain.KindCreditCard,
			Pattern: `\b(?:\d{4}[-\s]?){3}\d{4}\b`,
		},
		{
			Name:    "net.ip-address",
			Kind:    domain.KindIPAddress,
			Pattern: `\b(?:[0-9]{1,3}\.){3}[0-9]{1,3}\b`,
		},
		{
			Name:    "net.url",
			Kind:    domain.KindURL,
			Pattern: `https?://(?:[-\w.])+(?:[:\d]+)?(?:/(?:[\w/_.])*(?:\?(?:[\w&=%.])*)?(?:#(?:\w*))?)?`,
		},
		{
			Name:    "pii.date",
			Kind:    domain.KindDate,
			Pattern: `\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}/\d{1,2}/\d{4}\b|\b\d{1,2}-\d{1,2}-\d{4}\b`,
		},
	}
}

// DefaultConfig returns the builtin scanner configuration.
func DefaultConfig() Config {
	return Config{Rules: DefaultRules(), Confidence: domain.PatternConfidence}
}

// NewScanner constructs a Scanner for the provided configuration.
func NewScanner(cfg Config) (*Scanner, error) {
	confidence := cfg.Confidence
	if confidence == 0 {
		confidence = domain.PatternConfidence
	}
	if confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("detect: confidence %v out of range [0,1]", confidence)
	}

	compiled := make([]compiledRule, 0, len(cfg.Rules))
	for _, rule := range cfg.Rules {
		name := strings.TrimSpace(rule.Name)
		if name == "" {
			return nil, fmt.Errorf("detect: rule name is required")
		}
		pattern := strings.TrimSpace(rule.Pattern)
		if pattern == "" {
			return nil, fmt.Errorf("detect: pattern is required for rule %s", name)
		}
		if !rule.Kind.Valid() {
			return nil, fmt.Errorf("detect: unsupported kind %q for rule %s", rule.Kind, name)
		}
		if !cfg.CaseSensitive {
			pattern = "(?i)" + pattern
		}
		expr, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("detect: invalid pattern for rule %s: %w", name, err)
		}

		compiled = append(compiled, compiledRule{
			name: name,
			kind: rule.Kind,
			expr: expr,
		})
	}

	return &Scanner{rules: compiled, confidence: confidence}, nil
}

// MustDefaultScanner returns a Scanner over the builtin table and panics if
// the table does not compile.
func MustDefaultScanner() *Scanner {
	s, err := NewScanner(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return s
}

// Kinds lists the kinds the scanner can emit, in rule order.
func (s *Scanner) Kinds() []domain.Kind {
	kinds := make([]domain.Kind, 0, len(s.rules))
	for _, r := range s.rules {
		kinds = append(kinds, r.kind)
	}
	return kinds
}

// RuleNames lists the rule names in evaluation order.
func (s *Scanner) RuleNames() []string {
	names := make([]string, 0, len(s.rules))
	for _, r := range s.rules {
		names = append(names, r.name)
	}
	return names
}

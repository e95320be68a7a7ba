package detect

import (
	"regexp"

	"github.com/polisai/polis-pii/pkg/domain"
)

// Rule declares a pattern detection rule.
type Rule struct {
	Name    string      `yaml:"name"`
	Kind    domain.Kind `yaml:"kind"`
	Pattern string      `yaml:"pattern"`
}

// Config bundles all rule definitions for a Scanner.
type Config struct {
	Rules []Rule
	// Confidence assigned to every pattern match. Zero means domain.PatternConfidence.
	Confidence float64
	// CaseSensitive disables the case-insensitive flag applied to every rule.
	CaseSensitive bool
}

// Scanner applies pattern rules to text.
type Scanner struct {
	rules      []compiledRule
	confidence float64
}

// compiledRule is an internal representation of a Rule with a compiled regex.
type compiledRule struct {
	name string
	kind domain.Kind
	expr *regexp.Regexp
}

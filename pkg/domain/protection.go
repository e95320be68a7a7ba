package domain

// RiskLevel is a coarse sensitivity classification of detected PII.
type RiskLevel string

// Risk levels.
const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Rank orders risk levels so LOW < MEDIUM < HIGH.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	default:
		return 0
	}
}

// Context is the topical category inferred from a prompt.
type Context string

// Known contexts, in classification priority order, followed by the fallback.
const (
	ContextEmailWriting    Context = "email_writing"
	ContextDataAnalysis    Context = "data_analysis"
	ContextCustomerService Context = "customer_service"
	ContextFinancial       Context = "financial"
	ContextMedical         Context = "medical"
	ContextLegal           Context = "legal"
	ContextGeneral         Context = "general"
)

// Replacement records one substitution applied by the protection engine.
type Replacement struct {
	Original    string  `json:"original" yaml:"original"`
	Replacement string  `json:"replacement" yaml:"replacement"`
	Kind        Kind    `json:"type" yaml:"type"`
	Confidence  float64 `json:"confidence" yaml:"confidence"`
}

// ProtectionResult is the derived, non-persisted outcome of protecting a prompt.
type ProtectionResult struct {
	OriginalText      string        `json:"original_prompt" yaml:"original_prompt"`
	ProtectedText     string        `json:"protected_prompt" yaml:"protected_prompt"`
	ProtectionApplied bool          `json:"protection_applied" yaml:"protection_applied"`
	Entities          []Entity      `json:"detected_pii" yaml:"detected_pii"`
	Replacements      []Replacement `json:"replacements_made" yaml:"replacements_made"`
	Suggestions       []string      `json:"suggestions" yaml:"suggestions"`
	Context           Context       `json:"context" yaml:"context"`
	RiskLevel         RiskLevel     `json:"risk_level" yaml:"risk_level"`
	EntityCount       int           `json:"pii_count" yaml:"pii_count"`
	Kinds             []Kind        `json:"pii_types" yaml:"pii_types"`
	Alternatives      []string      `json:"alternatives,omitempty" yaml:"alternatives,omitempty"`
}

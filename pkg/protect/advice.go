package protect

import "github.com/polisai/polis-pii/pkg/domain"

// NoPIISuggestion is the only suggestion for prompts without PII.
const NoPIISuggestion = "No PII detected. Your prompt appears to be privacy-safe!"

var closingTips = []string{
	"Review the protected prompt to ensure it still conveys your intended meaning",
	"Consider if any remaining context could indirectly identify individuals",
}

var sensitiveNumberKinds = []domain.Kind{domain.KindSSN, domain.KindCreditCard, domain.KindBankAccount}

var mediumRiskKinds = []domain.Kind{domain.KindEmail, domain.KindPhone, domain.KindAddress}

// mediumRiskEntityCount is the entity count above which any mix of kinds is MEDIUM.
const mediumRiskEntityCount = 3

// Suggestions assembles privacy tips: one for the context, one per relevant
// kind present, then the closing tips.
func Suggestions(entities []domain.Entity, ctx domain.Context) []string {
	var out []string

	if tip, ok := contextTips[ctx]; ok {
		out = append(out, tip)
	}
	if domain.HasKind(entities, domain.KindPerson) {
		out = append(out, "Use generic names like 'John Doe' or role-based identifiers like 'the manager'")
	}
	if domain.HasKind(entities, domain.KindEmail) {
		out = append(out, "Replace with example emails like 'user@example.com' or describe the email type")
	}
	if domain.HasKind(entities, domain.KindPhone) {
		out = append(out, "Use placeholder numbers like '555-0123' or describe as 'phone number'")
	}
	if domain.HasKind(entities, sensitiveNumberKinds...) {
		out = append(out, "Replace sensitive numbers with 'XXXX-XXXX-XXXX-1234' format")
	}
	if domain.HasKind(entities, domain.KindAddress) {
		out = append(out, "Use generic addresses like '123 Main Street, Anytown, ST 12345'")
	}
	if domain.HasKind(entities, domain.KindOrganization) {
		out = append(out, "Replace with generic company names like 'Company A' or 'TechCorp Inc'")
	}

	return append(out, closingTips...)
}

// AssessRisk classifies how sensitive the detected PII is.
func AssessRisk(entities []domain.Entity) domain.RiskLevel {
	switch {
	case domain.HasKind(entities, sensitiveNumberKinds...):
		return domain.RiskHigh
	case domain.HasKind(entities, mediumRiskKinds...):
		return domain.RiskMedium
	case len(entities) > mediumRiskEntityCount:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

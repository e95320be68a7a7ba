package protect

import (
	"strings"

	"github.com/polisai/polis-pii/pkg/domain"
)

type contextRule struct {
	context  domain.Context
	keywords []string
}

// contextRules are evaluated in priority order; the first category with any
// keyword present in the lower-cased text wins.
var contextRules = []contextRule{
	{domain.ContextEmailWriting, []string{"email", "message", "send", "reply", "subject"}},
	{domain.ContextDataAnalysis, []string{"data", "analysis", "chart", "graph", "statistics"}},
	{domain.ContextCustomerService, []string{"customer", "client", "service", "support", "complaint"}},
	{domain.ContextFinancial, []string{"payment", "account", "transaction", "financial", "money"}},
	{domain.ContextMedical, []string{"patient", "medical", "health", "diagnosis", "treatment"}},
	{domain.ContextLegal, []string{"contract", "legal", "court", "lawsuit", "agreement"}},
}

var contextTips = map[domain.Context]string{
	domain.ContextEmailWriting:    "Consider using placeholder emails like 'recipient@company.com' instead of real addresses",
	domain.ContextDataAnalysis:    "Use sample data or anonymized datasets for analysis examples",
	domain.ContextCustomerService: "Replace customer names with generic identifiers like 'Customer A' or 'User123'",
	domain.ContextFinancial:       "Use placeholder account numbers and amounts for financial scenarios",
	domain.ContextMedical:         "Replace patient information with generic medical case examples",
	domain.ContextLegal:           "Use hypothetical parties like 'Party A' and 'Party B' in legal scenarios",
}

// ClassifyContext infers the topical category of text from keyword presence.
// Keywords match as substrings.
func ClassifyContext(text string) domain.Context {
	lower := strings.ToLower(text)
	for _, rule := range contextRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.context
			}
		}
	}
	return domain.ContextGeneral
}

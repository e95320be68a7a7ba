package protect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/polisai/polis-pii/pkg/domain"
)

func TestClassifyContext(t *testing.T) {
	tests := []struct {
		text string
		want domain.Context
	}{
		{"Please reply to this thread", domain.ContextEmailWriting},
		{"Plot a chart of sales", domain.ContextDataAnalysis},
		{"A CUSTOMER left a complaint", domain.ContextCustomerService},
		{"Process the payment today", domain.ContextFinancial},
		{"Summarize the diagnosis", domain.ContextMedical},
		{"Draft a lawsuit summary", domain.ContextLegal},
		{"Write a haiku about autumn", domain.ContextGeneral},
		// email_writing outranks financial when both match.
		{"send the transaction receipt", domain.ContextEmailWriting},
		// substring matching: "database" contains "data".
		{"tune the database", domain.ContextDataAnalysis},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyContext(tt.text))
		})
	}
}

func ents(kinds ...domain.Kind) []domain.Entity {
	out := make([]domain.Entity, len(kinds))
	for i, k := range kinds {
		out[i] = domain.Entity{Text: string(k), Kind: k}
	}
	return out
}

func TestAssessRisk(t *testing.T) {
	tests := []struct {
		name     string
		entities []domain.Entity
		want     domain.RiskLevel
	}{
		{"none", nil, domain.RiskLow},
		{"ssn", ents(domain.KindSSN), domain.RiskHigh},
		{"card", ents(domain.KindDate, domain.KindCreditCard), domain.RiskHigh},
		{"bank account", ents(domain.KindBankAccount), domain.RiskHigh},
		{"email", ents(domain.KindEmail), domain.RiskMedium},
		{"address", ents(domain.KindAddress), domain.RiskMedium},
		{"three low", ents(domain.KindPerson, domain.KindDate, domain.KindURL), domain.RiskLow},
		{"four low", ents(domain.KindPerson, domain.KindDate, domain.KindURL, domain.KindLocation), domain.RiskMedium},
		{"person", ents(domain.KindPerson), domain.RiskLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AssessRisk(tt.entities))
		})
	}
}

func TestAssessRiskMonotonicProperty(t *testing.T) {
	kindGen := rapid.SampledFrom(domain.AllKinds())

	rapid.Check(t, func(t *rapid.T) {
		base := ents(rapid.SliceOf(kindGen).Draw(t, "base")...)
		extra := ents(rapid.SliceOf(kindGen).Draw(t, "extra")...)

		before := AssessRisk(base)
		after := AssessRisk(append(append([]domain.Entity(nil), base...), extra...))
		if after.Rank() < before.Rank() {
			t.Fatalf("risk dropped from %s to %s after adding %d entities", before, after, len(extra))
		}
	})
}

func TestSuggestions(t *testing.T) {
	got := Suggestions(ents(domain.KindSSN, domain.KindBankAccount, domain.KindOrganization), domain.ContextGeneral)
	assert.Equal(t, []string{
		"Replace sensitive numbers with 'XXXX-XXXX-XXXX-1234' format",
		"Replace with generic company names like 'Company A' or 'TechCorp Inc'",
		closingTips[0],
		closingTips[1],
	}, got)

	got = Suggestions(ents(domain.KindAddress), domain.ContextLegal)
	assert.Equal(t, []string{
		"Use hypothetical parties like 'Party A' and 'Party B' in legal scenarios",
		"Use generic addresses like '123 Main Street, Anytown, ST 12345'",
		closingTips[0],
		closingTips[1],
	}, got)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "[Bank Account]", Label(domain.KindBankAccount))
	assert.Equal(t, "[Ip Address]", Label(domain.KindIPAddress))
	assert.Equal(t, "[Person]", Label(domain.KindPerson))
}

func TestPoolsOverlay(t *testing.T) {
	base := DefaultPools()
	out := base.Overlay(Pools{
		domain.KindPerson: {"Kim"},
		domain.KindEmail:  {},
	})

	assert.Equal(t, []string{"Kim"}, out[domain.KindPerson])
	assert.Equal(t, base[domain.KindEmail], out[domain.KindEmail])
	assert.Len(t, base[domain.KindPerson], 5)
}

package protect

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/polisai/polis-pii/pkg/domain"
)

// Pools maps a kind to the generic values a protected prompt may use in its
// place. Kinds without a pool are replaced by a bracketed label.
type Pools map[domain.Kind][]string

var defaultPools = Pools{
	domain.KindPerson:       {"Alex Johnson", "Sam Wilson", "Jordan Smith", "Taylor Brown", "Casey Davis"},
	domain.KindEmail:        {"user@example.com", "contact@company.com", "info@business.org", "hello@service.net"},
	domain.KindPhone:        {"555-0123", "555-0456", "555-0789", "555-0321"},
	domain.KindOrganization: {"TechCorp Inc", "Global Solutions LLC", "Innovation Partners", "Digital Services Co"},
	domain.KindLocation:     {"Springfield", "Riverside", "Madison", "Franklin", "Georgetown"},
	domain.KindAddress:      {"123 Main Street, Anytown, ST 12345", "456 Oak Avenue, Somewhere, ST 67890"},
	domain.KindSSN:          {"XXX-XX-1234", "XXX-XX-5678"},
	domain.KindCreditCard:   {"XXXX-XXXX-XXXX-1234", "XXXX-XXXX-XXXX-5678"},
	domain.KindBankAccount:  {"XXXX-XXXX-XXXX-1234", "XXXX-XXXX-XXXX-5678"},
	domain.KindIPAddress:    {"192.168.1.100", "10.0.0.50"},
	domain.KindURL:          {"https://example.com", "https://sample-website.org"},
	domain.KindDate:         {"2024-01-15", "2024-06-30", "2024-12-01"},
}

// DefaultPools returns a copy of the built-in replacement pools.
func DefaultPools() Pools {
	return defaultPools.Clone()
}

// Clone deep-copies p.
func (p Pools) Clone() Pools {
	out := make(Pools, len(p))
	for k, v := range p {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Overlay returns a copy of p with every non-empty pool in other replacing
// the pool of the same kind.
func (p Pools) Overlay(other Pools) Pools {
	out := p.Clone()
	for k, v := range other {
		if len(v) == 0 {
			continue
		}
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Label renders the placeholder used for kinds without a pool, e.g.
// BANK_ACCOUNT becomes "[Bank Account]".
func Label(kind domain.Kind) string {
	words := strings.ToLower(strings.ReplaceAll(string(kind), "_", " "))
	return "[" + cases.Title(language.English).String(words) + "]"
}

package detect

import (
	"context"

	"github.com/polisai/polis-pii/pkg/domain"
)

// Scan applies every rule to text and returns one entity per non-overlapping
// match of each rule, grouped by rule in table order.
func (s *Scanner) Scan(ctx context.Context, text string) ([]domain.Entity, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	if text == "" || len(s.rules) == 0 {
		return nil, nil
	}

	var findings []domain.Entity
	for _, rule := range s.rules {
		for _, match := range rule.expr.FindAllStringIndex(text, -1) {
			if match[0] == match[1] {
				continue
			}
			findings = append(findings, domain.Entity{
				Text:       text[match[0]:match[1]],
				Kind:       rule.kind,
				Start:      match[0],
				End:        match[1],
				Confidence: s.confidence,
			})
		}
	}

	return findings, nil
}

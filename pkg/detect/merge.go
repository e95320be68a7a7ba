package detect

import "github.com/polisai/polis-pii/pkg/domain"

// Merge concatenates the groups in order and drops every entity whose exact
// text was already seen. Matching is case-sensitive with no normalization, so
// the first group (patterns) wins whenever a source disagrees on the kind.
func Merge(groups ...[]domain.Entity) []domain.Entity {
	total := 0
	for _, g := range groups {
		total += len(g)
	}

	seen := make(map[string]struct{}, total)
	merged := make([]domain.Entity, 0, total)
	for _, g := range groups {
		for _, e := range g {
			if _, dup := seen[e.Text]; dup {
				continue
			}
			seen[e.Text] = struct{}{}
			merged = append(merged, e)
		}
	}
	return merged
}

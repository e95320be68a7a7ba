package mask

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/polisai/polis-pii/pkg/domain"
)

// drawMaskInput draws a text and a list of entities whose texts are
// substrings of it. The alphabet has no brackets, so the text never contains
// a token-shaped substring.
func drawMaskInput(t *rapid.T) (string, []domain.Entity) {
	text := rapid.StringMatching(`[a-zA-Z0-9 @.\-é]{0,80}`).Draw(t, "text")
	kinds := domain.AllKinds()

	n := rapid.IntRange(0, 6).Draw(t, "entities")
	entities := make([]domain.Entity, 0, n)
	for i := 0; i < n && len(text) > 0; i++ {
		start := rapid.IntRange(0, len(text)-1).Draw(t, "start")
		end := rapid.IntRange(start+1, len(text)).Draw(t, "end")
		entities = append(entities, domain.Entity{
			Text:       text[start:end],
			Kind:       rapid.SampledFrom(kinds).Draw(t, "kind"),
			Confidence: 0.9,
		})
	}
	return text, entities
}

func TestMaskRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text, entities := drawMaskInput(t)
		store := NewStore()

		masked, mapping := store.Mask(text, entities)

		if got := store.Unmask(masked, mapping); got != text {
			t.Fatalf("round trip with mapping: got %q, want %q (masked %q)", got, text, masked)
		}
		if got := store.Unmask(masked, nil); got != text {
			t.Fatalf("round trip with store: got %q, want %q", got, text)
		}
	})
}

func TestMaskTokenUniquenessProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text, entities := drawMaskInput(t)

		masked, mapping := NewStore().Mask(text, entities)

		tokens := FindTokens(masked)
		if len(tokens) != len(mapping) {
			t.Fatalf("masked text has %d tokens, mapping has %d", len(tokens), len(mapping))
		}
		seen := make(map[string]bool, len(tokens))
		for _, token := range tokens {
			if seen[token] {
				t.Fatalf("duplicate token %s in %q", token, masked)
			}
			seen[token] = true
			if _, ok := mapping[token]; !ok {
				t.Fatalf("token %s missing from mapping", token)
			}
		}
	})
}

func TestDescribeMatchesMappingProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text, entities := drawMaskInput(t)
		store := NewStore()

		masked, mapping := store.Mask(text, entities)
		infos := store.Describe(masked)

		if len(infos) != len(mapping) {
			t.Fatalf("describe reported %d tokens, mapping has %d", len(infos), len(mapping))
		}
		for _, info := range infos {
			e := mapping[info.Token]
			if e.Kind != info.Kind || e.Text != info.OriginalText || e.Confidence != info.Confidence {
				t.Fatalf("describe mismatch for %s: %+v vs %+v", info.Token, info, e)
			}
			if masked[info.Start:info.End] != info.Token {
				t.Fatalf("span %d:%d does not address %s", info.Start, info.End, info.Token)
			}
		}
	})
}

package mask

import (
	"crypto/md5" // #nosec G501 -- MD5 derives short token ids, not a security boundary
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/polisai/polis-pii/pkg/domain"
)

// tokenPattern matches the [LABEL_xxxxxxxx] token format.
var tokenPattern = regexp.MustCompile(`\[(\w+)_([a-f0-9]{8})\]`)

// TokenInfo describes a token found in masked text.
type TokenInfo struct {
	Token        string      `json:"mask_token" yaml:"mask_token"`
	Kind         domain.Kind `json:"pii_type" yaml:"pii_type"`
	OriginalText string      `json:"original_text" yaml:"original_text"`
	Confidence   float64     `json:"confidence" yaml:"confidence"`
	Start        int         `json:"start" yaml:"start"`
	End          int         `json:"end" yaml:"end"`
}

type occurrence struct {
	start  int
	end    int
	entity domain.Entity
}

// Mask replaces every literal occurrence of each entity's text with a fresh
// token and returns the masked text together with the tokens introduced by
// this call. The tokens are also recorded in the store.
//
// Occurrences are processed from the highest start offset to the lowest, ties
// going to the longer text. An occurrence overlapping one that was already
// replaced is left alone, so unmasking always restores the input exactly.
func (s *Store) Mask(text string, entities []domain.Entity) (string, Mapping) {
	occs := locate(text, entities)
	if len(occs) == 0 {
		return text, Mapping{}
	}

	sort.SliceStable(occs, func(i, j int) bool {
		if occs[i].start != occs[j].start {
			return occs[i].start > occs[j].start
		}
		return occs[i].end-occs[i].start > occs[j].end-occs[j].start
	})

	// claimed is in descending start order, so only its last element can
	// overlap the next candidate.
	claimed := make([]occurrence, 0, len(occs))
	for _, o := range occs {
		if n := len(claimed); n > 0 && claimed[n-1].start < o.end {
			continue
		}
		claimed = append(claimed, o)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mapping := make(Mapping, len(claimed))
	tokens := make([]string, len(claimed))
	for i, o := range claimed {
		entity := domain.Entity{
			Text:       o.entity.Text,
			Kind:       o.entity.Kind,
			Start:      o.start,
			End:        o.end,
			Confidence: o.entity.Confidence,
		}
		token := s.newToken(entity.Text, entity.Kind)
		s.put(token, entity)
		mapping[token] = entity
		tokens[i] = token
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for i := len(claimed) - 1; i >= 0; i-- {
		b.WriteString(text[last:claimed[i].start])
		b.WriteString(tokens[i])
		last = claimed[i].end
	}
	b.WriteString(text[last:])

	return b.String(), mapping
}

// Unmask restores every token of m found in text. A nil mapping means the
// whole store. Tokens that are not in the mapping are left untouched.
func (s *Store) Unmask(text string, m Mapping) string {
	if m == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return Restore(text, s.entries)
	}
	return Restore(text, m)
}

// Describe reports every token of maskedText that the store knows about,
// with its span in maskedText.
func (s *Store) Describe(maskedText string) []TokenInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var infos []TokenInfo
	for _, loc := range tokenPattern.FindAllStringIndex(maskedText, -1) {
		token := maskedText[loc[0]:loc[1]]
		entity, ok := s.entries[token]
		if !ok {
			continue
		}
		infos = append(infos, TokenInfo{
			Token:        token,
			Kind:         entity.Kind,
			OriginalText: entity.Text,
			Confidence:   entity.Confidence,
			Start:        loc[0],
			End:          loc[1],
		})
	}
	return infos
}

// Restore replaces the tokens of m found in text with their original text in
// a single left-to-right pass.
func Restore(text string, m map[string]domain.Entity) string {
	if len(m) == 0 || text == "" {
		return text
	}
	return tokenPattern.ReplaceAllStringFunc(text, func(token string) string {
		if entity, ok := m[token]; ok {
			return entity.Text
		}
		return token
	})
}

// FindTokens returns the token-shaped substrings of text in order.
func FindTokens(text string) []string {
	return tokenPattern.FindAllString(text, -1)
}

// IsToken reports whether s is exactly one token.
func IsToken(s string) bool {
	loc := tokenPattern.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}

// newToken derives an id from the entity text, its kind and the store
// sequence. The sequence advances on every call, and again on the unlikely
// event that the derived token is already taken. Callers hold s.mu.
func (s *Store) newToken(text string, kind domain.Kind) string {
	for {
		sum := md5.Sum([]byte(fmt.Sprintf("%s_%s_%d", text, kind, s.seq))) // #nosec G401
		s.seq++
		token := fmt.Sprintf("[%s_%s]", kind.TokenLabel(), hex.EncodeToString(sum[:])[:8])
		if _, taken := s.entries[token]; !taken {
			return token
		}
	}
}

// locate finds every occurrence of every entity text, including overlapping
// occurrences of the same text.
func locate(text string, entities []domain.Entity) []occurrence {
	var occs []occurrence
	for _, e := range entities {
		if e.Text == "" {
			continue
		}
		from := 0
		for from < len(text) {
			idx := strings.Index(text[from:], e.Text)
			if idx < 0 {
				break
			}
			start := from + idx
			occs = append(occs, occurrence{start: start, end: start + len(e.Text), entity: e})
			from = start + 1
		}
	}
	return occs
}

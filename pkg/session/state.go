// Package session packages a mask mapping into a transportable record and
// restores text from it on the return path.
package session

import (
	"fmt"

	"github.com/polisai/polis-pii/pkg/domain"
	"github.com/polisai/polis-pii/pkg/mask"
)

// Record keys.
const (
	KeySessionID        = "session_id"
	KeyOriginalText     = "original_text"
	KeyMaskedText       = "masked_text"
	KeyMaskMapping      = "mask_mapping"
	KeyDetectedEntities = "detected_entities"
)

// MappingEntry is the transportable form of one token's entity.
type MappingEntry struct {
	Text       string      `json:"text" yaml:"text"`
	Kind       domain.Kind `json:"pii_type" yaml:"pii_type"`
	Confidence float64     `json:"confidence" yaml:"confidence"`
}

// State is everything the return path needs to unmask a response.
type State struct {
	ID               string                  `json:"session_id" yaml:"session_id"`
	OriginalText     string                  `json:"original_text" yaml:"original_text"`
	MaskedText       string                  `json:"masked_text" yaml:"masked_text"`
	MaskMapping      map[string]MappingEntry `json:"mask_mapping" yaml:"mask_mapping"`
	DetectedEntities []domain.Entity         `json:"detected_entities" yaml:"detected_entities"`
}

// Mapping converts the transportable mapping back into a mask mapping.
// Entries without original text are ignored.
func (s State) Mapping() mask.Mapping {
	out := make(mask.Mapping, len(s.MaskMapping))
	for token, e := range s.MaskMapping {
		if e.Text == "" {
			continue
		}
		out[token] = domain.Entity{Text: e.Text, Kind: e.Kind, Confidence: e.Confidence}
	}
	return out
}

// Record flattens the state into string-keyed primitives, slices and maps so
// any transport can serialize it.
func (s State) Record() map[string]any {
	mapping := make(map[string]any, len(s.MaskMapping))
	for token, e := range s.MaskMapping {
		mapping[token] = map[string]any{
			"text":       e.Text,
			"pii_type":   string(e.Kind),
			"confidence": e.Confidence,
		}
	}

	entities := make([]any, 0, len(s.DetectedEntities))
	for _, e := range s.DetectedEntities {
		entities = append(entities, map[string]any{
			"text":       e.Text,
			"type":       string(e.Kind),
			"start":      e.Start,
			"end":        e.End,
			"confidence": e.Confidence,
		})
	}

	return map[string]any{
		KeySessionID:        s.ID,
		KeyOriginalText:     s.OriginalText,
		KeyMaskedText:       s.MaskedText,
		KeyMaskMapping:      mapping,
		KeyDetectedEntities: entities,
	}
}

// ParseRecord rebuilds a state from a record produced by Record, possibly
// after a JSON or YAML round trip. Malformed mapping entries and entities are
// dropped rather than reported; only a nil record is an error.
func ParseRecord(rec map[string]any) (State, error) {
	if rec == nil {
		return State{}, &domain.DomainError{
			Err:     domain.ErrInvalidSessionState,
			Code:    domain.CodeInvalidSessionState,
			Message: fmt.Sprintf("%s: record is nil", domain.ErrInvalidSessionState),
		}
	}

	st := State{
		ID:           stringField(rec, KeySessionID),
		OriginalText: stringField(rec, KeyOriginalText),
		MaskedText:   stringField(rec, KeyMaskedText),
		MaskMapping:  map[string]MappingEntry{},
	}

	if raw, ok := asMap(rec[KeyMaskMapping]); ok {
		for token, v := range raw {
			fields, ok := asMap(v)
			if !ok {
				continue
			}
			text, ok := fields["text"].(string)
			if !ok || text == "" {
				continue
			}
			kind, _ := fields["pii_type"].(string)
			conf, _ := asFloat(fields["confidence"])
			st.MaskMapping[token] = MappingEntry{Text: text, Kind: domain.Kind(kind), Confidence: conf}
		}
	}

	if raw, ok := rec[KeyDetectedEntities].([]any); ok {
		for _, v := range raw {
			fields, ok := asMap(v)
			if !ok {
				continue
			}
			text, ok := fields["text"].(string)
			if !ok {
				continue
			}
			kind, _ := fields["type"].(string)
			start, _ := asFloat(fields["start"])
			end, _ := asFloat(fields["end"])
			conf, _ := asFloat(fields["confidence"])
			st.DetectedEntities = append(st.DetectedEntities, domain.Entity{
				Text:       text,
				Kind:       domain.Kind(kind),
				Start:      int(start),
				End:        int(end),
				Confidence: conf,
			})
		}
	}

	return st, nil
}

func stringField(rec map[string]any, key string) string {
	s, _ := rec[key].(string)
	return s
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

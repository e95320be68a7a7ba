package session

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/polisai/polis-pii/pkg/detect"
	"github.com/polisai/polis-pii/pkg/domain"
	"github.com/polisai/polis-pii/pkg/mask"
)

const prompt = "Contact John Smith at john@email.com or call 555-123-4567"

func newAdapter() *Adapter {
	return NewAdapter(detect.NewDetector(nil, nil), nil)
}

func TestMaskForSession(t *testing.T) {
	a := newAdapter()

	masked, st, err := a.MaskForSession(context.Background(), prompt)
	require.NoError(t, err)

	_, err = uuid.Parse(st.ID)
	assert.NoError(t, err)
	assert.Equal(t, prompt, st.OriginalText)
	assert.Equal(t, masked, st.MaskedText)
	assert.Len(t, st.DetectedEntities, 2)
	assert.Len(t, st.MaskMapping, 2)
	assert.NotContains(t, masked, "john@email.com")
	assert.NotContains(t, masked, "555-123-4567")

	for token, e := range st.MaskMapping {
		assert.True(t, mask.IsToken(token))
		assert.Contains(t, masked, token)
		assert.Equal(t, domain.PatternConfidence, e.Confidence)
	}

	assert.Equal(t, prompt, a.UnmaskWithSession(masked, st))
}

func TestSessionsDoNotShareTokens(t *testing.T) {
	a := newAdapter()

	_, first, err := a.MaskForSession(context.Background(), "mail a@b.io")
	require.NoError(t, err)
	maskedB, second, err := a.MaskForSession(context.Background(), "mail c@d.io")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	// A reply carrying session B's token is not unmasked with session A.
	assert.Equal(t, maskedB, a.UnmaskWithSession(maskedB, first))
}

func TestMaskForSessionWithoutPII(t *testing.T) {
	masked, st, err := newAdapter().MaskForSession(context.Background(), "nothing here")
	require.NoError(t, err)

	assert.Equal(t, "nothing here", masked)
	assert.Empty(t, st.MaskMapping)
	assert.NotNil(t, st.DetectedEntities)
}

func TestMaskForSessionRejectsInvalidText(t *testing.T) {
	_, _, err := newAdapter().MaskForSession(context.Background(), "\xfe")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUnmaskReplyTokens(t *testing.T) {
	a := newAdapter()
	masked, st, err := a.MaskForSession(context.Background(), "email jane@corp.com please")
	require.NoError(t, err)

	token := strings.TrimSuffix(strings.TrimPrefix(masked, "email "), " please")
	reply := "I wrote to " + token + " twice: " + token + ". Also [EMAIL_00000000]."

	assert.Equal(t,
		"I wrote to jane@corp.com twice: jane@corp.com. Also [EMAIL_00000000].",
		a.UnmaskWithSession(reply, st))
}

func TestRecordJSONRoundTrip(t *testing.T) {
	a := newAdapter()
	masked, st, err := a.MaskForSession(context.Background(), prompt)
	require.NoError(t, err)

	raw, err := json.Marshal(st.Record())
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(raw, &rec))

	parsed, err := ParseRecord(rec)
	require.NoError(t, err)

	assert.Equal(t, st, parsed)
	assert.Equal(t, prompt, a.UnmaskWithRecord(masked, rec))
}

func TestRecordYAMLRoundTrip(t *testing.T) {
	a := newAdapter()
	masked, st, err := a.MaskForSession(context.Background(), prompt)
	require.NoError(t, err)

	raw, err := yaml.Marshal(st.Record())
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &rec))

	assert.Equal(t, prompt, a.UnmaskWithRecord(masked, rec))
}

func TestParseRecordDropsMalformedEntries(t *testing.T) {
	rec := map[string]any{
		KeySessionID: "abc",
		KeyMaskMapping: map[string]any{
			"[EMAIL_0123abcd]":  map[string]any{"text": "x@y.io", "pii_type": "EMAIL", "confidence": 0.9},
			"[PHONE_0123abcd]":  map[string]any{"pii_type": "PHONE"},
			"[SSN_0123abcd]":    "not a map",
			"[PERSON_0123abcd]": map[string]any{"text": 42},
		},
		KeyDetectedEntities: []any{
			map[string]any{"text": "x@y.io", "type": "EMAIL", "start": 0, "end": 6, "confidence": 0.9},
			"junk",
			map[string]any{"type": "PHONE"},
		},
	}

	st, err := ParseRecord(rec)
	require.NoError(t, err)

	assert.Equal(t, "abc", st.ID)
	assert.Equal(t, map[string]MappingEntry{
		"[EMAIL_0123abcd]": {Text: "x@y.io", Kind: domain.KindEmail, Confidence: 0.9},
	}, st.MaskMapping)
	assert.Equal(t, []domain.Entity{
		{Text: "x@y.io", Kind: domain.KindEmail, Start: 0, End: 6, Confidence: 0.9},
	}, st.DetectedEntities)

	a := newAdapter()
	assert.Equal(t, "x@y.io [PHONE_0123abcd]",
		a.UnmaskWithRecord("[EMAIL_0123abcd] [PHONE_0123abcd]", rec))
}

func TestParseRecordNil(t *testing.T) {
	_, err := ParseRecord(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidSessionState)

	assert.Equal(t, "[EMAIL_0123abcd]", newAdapter().UnmaskWithRecord("[EMAIL_0123abcd]", nil))
}

func TestParseRecordMissingMapping(t *testing.T) {
	st, err := ParseRecord(map[string]any{KeyMaskedText: "m"})
	require.NoError(t, err)
	assert.Empty(t, st.MaskMapping)
	assert.Empty(t, st.Mapping())
}

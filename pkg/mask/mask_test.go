package mask

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polisai/polis-pii/pkg/domain"
)

func entity(text string, kind domain.Kind) domain.Entity {
	return domain.Entity{Text: text, Kind: kind, Confidence: 0.9}
}

func TestMask_Scenario(t *testing.T) {
	text := "Contact John Smith at john@email.com or call 555-123-4567"
	store := NewStore()

	masked, mapping := store.Mask(text, []domain.Entity{
		entity("john@email.com", domain.KindEmail),
		entity("555-123-4567", domain.KindPhone),
		{Text: "John Smith", Kind: domain.KindPerson, Confidence: 0.85},
	})

	assert.Regexp(t, `^Contact \[PERSON_[a-f0-9]{8}\] at \[EMAIL_[a-f0-9]{8}\] or call \[PHONE_[a-f0-9]{8}\]$`, masked)
	require.Len(t, mapping, 3)
	assert.Equal(t, 3, store.Len())
	assert.Equal(t, text, store.Unmask(masked, mapping))

	for token, e := range mapping {
		assert.Equal(t, e.Text, text[e.Start:e.End], "entity offsets address the source text for %s", token)
	}
}

func TestMask_TokenLabels(t *testing.T) {
	tests := []struct {
		kind  domain.Kind
		label string
	}{
		{domain.KindCreditCard, "CARD"},
		{domain.KindOrganization, "ORG"},
		{domain.KindIPAddress, "IP"},
		{domain.KindBankAccount, "ACCOUNT"},
		{domain.KindLocation, "LOCATION"},
		{domain.Kind("PASSPORT"), "PII"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			masked, mapping := NewStore().Mask("value: X1", []domain.Entity{entity("X1", tt.kind)})
			require.Len(t, mapping, 1)
			assert.Regexp(t, regexp.MustCompile(`^value: \[`+tt.label+`_[a-f0-9]{8}\]$`), masked)
		})
	}
}

func TestMask_RepeatedTextGetsDistinctTokens(t *testing.T) {
	text := "John met John at the park"
	store := NewStore()

	masked, mapping := store.Mask(text, []domain.Entity{entity("John", domain.KindPerson)})

	tokens := FindTokens(masked)
	require.Len(t, tokens, 2)
	assert.NotEqual(t, tokens[0], tokens[1])
	assert.Len(t, mapping, 2)
	assert.Equal(t, text, store.Unmask(masked, mapping))

	// positions are recorded per occurrence
	assert.Equal(t, 0, mapping[tokens[0]].Start)
	assert.Equal(t, 9, mapping[tokens[1]].Start)
}

func TestMask_LongerEntityConsumesContainedOne(t *testing.T) {
	text := "John Smith called John"
	store := NewStore()

	masked, mapping := store.Mask(text, []domain.Entity{
		entity("John", domain.KindPerson),
		entity("John Smith", domain.KindPerson),
	})

	tokens := FindTokens(masked)
	require.Len(t, tokens, 2)
	assert.Equal(t, "John Smith", mapping[tokens[0]].Text)
	assert.Equal(t, "John", mapping[tokens[1]].Text)
	assert.NotContains(t, masked, "Smith")
	assert.Equal(t, text, store.Unmask(masked, mapping))
}

func TestMask_PartialOverlapFirstProcessedWins(t *testing.T) {
	text := "ref 5551234567890"
	store := NewStore()

	masked, mapping := store.Mask(text, []domain.Entity{
		entity("5551234567", domain.KindPhone),
		entity("4567890", domain.KindBankAccount),
	})

	// "4567890" starts later so it is processed first and keeps its characters
	require.Len(t, mapping, 1)
	assert.Regexp(t, `^ref 555123\[ACCOUNT_[a-f0-9]{8}\]$`, masked)
	assert.Equal(t, text, store.Unmask(masked, mapping))
}

func TestMask_NoEntities(t *testing.T) {
	store := NewStore()
	masked, mapping := store.Mask("nothing here", nil)

	assert.Equal(t, "nothing here", masked)
	assert.Empty(t, mapping)
	assert.Zero(t, store.Len())

	masked, mapping = store.Mask("", []domain.Entity{entity("x", domain.KindPerson), entity("", domain.KindPerson)})
	assert.Equal(t, "", masked)
	assert.Empty(t, mapping)
}

func TestMask_Deterministic(t *testing.T) {
	entities := []domain.Entity{entity("jane@example.com", domain.KindEmail)}
	a, _ := NewStore().Mask("mail jane@example.com", entities)
	b, _ := NewStore().Mask("mail jane@example.com", entities)
	assert.Equal(t, a, b)
}

func TestMask_TokensAcrossCallsStayUnique(t *testing.T) {
	store := NewStore()
	entities := []domain.Entity{entity("Jane", domain.KindPerson)}

	first, m1 := store.Mask("Jane", entities)
	second, m2 := store.Mask("Jane", entities)

	assert.NotEqual(t, first, second)
	assert.Len(t, m1, 1)
	assert.Len(t, m2, 1)
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, "Jane Jane", store.Unmask(first+" "+second, nil))
}

func TestUnmask_UnknownTokensUntouched(t *testing.T) {
	store := NewStore()
	masked, mapping := store.Mask("call 555-123-4567", []domain.Entity{entity("555-123-4567", domain.KindPhone)})

	reply := "I will call " + FindTokens(masked)[0] + " and [PERSON_deadbeef] later"
	assert.Equal(t, "I will call 555-123-4567 and [PERSON_deadbeef] later", store.Unmask(reply, mapping))
}

func TestUnmask_EmptyMappingIsNotTheStore(t *testing.T) {
	store := NewStore()
	masked, _ := store.Mask("Jane", []domain.Entity{entity("Jane", domain.KindPerson)})

	assert.Equal(t, masked, store.Unmask(masked, Mapping{}))
	assert.Equal(t, "Jane", store.Unmask(masked, nil))
}

func TestDescribe(t *testing.T) {
	text := "Email jane@example.com from 10.0.0.1"
	store := NewStore()
	masked, mapping := store.Mask(text, []domain.Entity{
		entity("jane@example.com", domain.KindEmail),
		entity("10.0.0.1", domain.KindIPAddress),
	})

	infos := store.Describe(masked + " [EMAIL_00000000]")

	require.Len(t, infos, 2)
	for _, info := range infos {
		e, ok := mapping[info.Token]
		require.True(t, ok)
		assert.Equal(t, e.Kind, info.Kind)
		assert.Equal(t, e.Text, info.OriginalText)
		assert.Equal(t, e.Confidence, info.Confidence)
		assert.Equal(t, info.Token, masked[info.Start:info.End])
	}
	assert.Equal(t, domain.KindEmail, infos[0].Kind)
	assert.Equal(t, domain.KindIPAddress, infos[1].Kind)
}

func TestStore_EntriesAndLookup(t *testing.T) {
	store := NewStore()
	_, mapping := store.Mask("a b", []domain.Entity{entity("a", domain.KindPerson), entity("b", domain.KindPerson)})

	entries := store.Entries()
	require.Len(t, entries, 2)
	// tokens are issued from the highest offset down
	assert.Equal(t, "b", entries[0].Entity.Text)
	assert.Equal(t, "a", entries[1].Entity.Text)
	assert.Equal(t, mapping, store.Mapping())

	e, ok := store.Lookup(entries[0].Token)
	require.True(t, ok)
	assert.Equal(t, "b", e.Text)

	_, ok = store.Lookup("[PERSON_ffffffff]")
	assert.False(t, ok)
}

func TestIsToken(t *testing.T) {
	assert.True(t, IsToken("[PERSON_0123abcd]"))
	assert.True(t, IsToken("[CARD_0123abcd]"))
	assert.False(t, IsToken("[PERSON_0123ABCD]"))
	assert.False(t, IsToken("x[PERSON_0123abcd]"))
	assert.False(t, IsToken("[PERSON_0123abc]"))
}

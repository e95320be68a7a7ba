package ner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polisai/polis-pii/pkg/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRecognizer struct {
	spans []Span
	err   error
	calls int
}

func (f *fakeRecognizer) Annotate(_ context.Context, _ string) ([]Span, error) {
	f.calls++
	return f.spans, f.err
}

func TestAdapter_MapsLabelsWithFixedConfidence(t *testing.T) {
	text := "Jane Wilson, CEO of TechCorp Inc, located in San Francisco."
	rec := &fakeRecognizer{spans: []Span{
		{Text: "Jane Wilson", Label: "PERSON", Start: 0, End: 11},
		{Text: "TechCorp Inc", Label: "ORG", Start: 20, End: 32},
		{Text: "San Francisco", Label: "GPE"},
		{Text: "CEO", Label: "TITLE"},
	}}

	adapter := NewStaticAdapter("fake", rec, discardLogger())
	entities := adapter.Annotate(context.Background(), text)

	require.Len(t, entities, 3)
	assert.Equal(t, domain.Entity{Text: "Jane Wilson", Kind: domain.KindPerson, Start: 0, End: 11, Confidence: 0.85}, entities[0])
	assert.Equal(t, domain.Entity{Text: "TechCorp Inc", Kind: domain.KindOrganization, Start: 20, End: 32, Confidence: 0.85}, entities[1])
	assert.Equal(t, domain.KindLocation, entities[2].Kind)
	assert.Equal(t, 0.8, entities[2].Confidence)
	assert.Equal(t, "San Francisco", text[entities[2].Start:entities[2].End])
	assert.Equal(t, StatusAvailable, adapter.Status())
}

func TestAdapter_ResolvesOffsetsWhenHintsAreWrong(t *testing.T) {
	text := "Grüße an José"
	rec := &fakeRecognizer{spans: []Span{
		// rune offsets from a recognizer that does not count bytes
		{Text: "José", Label: "PERSON", Start: 9, End: 13},
		{Text: "Nobody", Label: "PERSON"},
	}}

	entities := NewStaticAdapter("fake", rec, discardLogger()).Annotate(context.Background(), text)

	require.Len(t, entities, 1)
	assert.Equal(t, "José", text[entities[0].Start:entities[0].End])
}

func TestAdapter_LoadFailureIsPermanent(t *testing.T) {
	loads := 0
	adapter := NewAdapter("broken", func(context.Context) (Recognizer, error) {
		loads++
		return nil, errors.New("model not installed")
	}, discardLogger())

	assert.Equal(t, StatusUninitialized, adapter.Status())

	for i := 0; i < 3; i++ {
		assert.Empty(t, adapter.Annotate(context.Background(), "John Smith"))
	}

	assert.Equal(t, 1, loads)
	assert.False(t, adapter.Available(context.Background()))
	assert.Equal(t, StatusUnavailable, adapter.Status())
}

func TestAdapter_NilLoader(t *testing.T) {
	adapter := NewAdapter("none", nil, discardLogger())
	assert.Empty(t, adapter.Annotate(context.Background(), "John Smith"))
	assert.Equal(t, StatusUnavailable, adapter.Status())
}

func TestAdapter_CallErrorIsSoft(t *testing.T) {
	rec := &fakeRecognizer{err: errors.New("timeout")}
	adapter := NewStaticAdapter("flaky", rec, discardLogger())

	assert.Empty(t, adapter.Annotate(context.Background(), "John Smith"))
	assert.Equal(t, StatusAvailable, adapter.Status(), "a failed call does not disable the adapter")
	assert.Equal(t, 1, rec.calls)
}

func TestAdapter_EmptyTextSkipsRecognizer(t *testing.T) {
	rec := &fakeRecognizer{}
	adapter := NewStaticAdapter("fake", rec, discardLogger())

	assert.Empty(t, adapter.Annotate(context.Background(), ""))
	assert.Zero(t, rec.calls)
}

func TestAdapter_CancelledLoadIsRetried(t *testing.T) {
	srv := newNERServer(t, true)
	adapter := NewAdapter("ner-http", HTTPLoader(HTTPConfig{Endpoint: srv.URL, Timeout: time.Second}), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, adapter.Annotate(ctx, "Contact John Smith at john@email.com"))
	assert.Equal(t, StatusUninitialized, adapter.Status(), "a cancelled caller must not disable the adapter")

	entities := adapter.Annotate(context.Background(), "Contact John Smith at john@email.com")
	require.Len(t, entities, 1)
	assert.Equal(t, domain.KindPerson, entities[0].Kind)
	assert.Equal(t, StatusAvailable, adapter.Status())
}

func TestAdapter_LoadFailureWithLiveContextIsPermanent(t *testing.T) {
	srv := newNERServer(t, false)
	adapter := NewAdapter("ner-http", HTTPLoader(HTTPConfig{Endpoint: srv.URL, Timeout: time.Second}), discardLogger())

	assert.False(t, adapter.Available(context.Background()))
	assert.Equal(t, StatusUnavailable, adapter.Status())
}

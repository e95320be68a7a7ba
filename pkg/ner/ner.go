// Package ner adapts an external named-entity recognizer into PII entities.
//
// The recognizer is loaded lazily on first use. If loading fails the adapter
// stays unavailable for the rest of the process lifetime and every call
// returns no entities, so callers only ever see reduced recall, never an error.
// A load cut short by the caller's own context does not count as a failure;
// the next call tries again.
package ner

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/polisai/polis-pii/pkg/domain"
)

// Coarse labels produced by recognizers.
const (
	LabelPerson = "PERSON"
	LabelOrg    = "ORG"
	LabelGPE    = "GPE"
)

// Span is one raw annotation. Start and End are optional hints; the adapter
// re-derives byte offsets when they do not address Text.
type Span struct {
	Text  string `json:"text"`
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Recognizer is the external entity-annotation capability.
type Recognizer interface {
	Annotate(ctx context.Context, text string) ([]Span, error)
}

// Loader initializes a Recognizer. It is called at most once per Adapter.
type Loader func(ctx context.Context) (Recognizer, error)

// Status describes the adapter's initialization state.
type Status string

// Adapter states.
const (
	StatusUninitialized Status = "uninitialized"
	StatusAvailable     Status = "available"
	StatusUnavailable   Status = "unavailable"
)

// Adapter wraps a Recognizer with fail-soft initialization and fixed confidences.
type Adapter struct {
	name   string
	load   Loader
	logger *slog.Logger

	loadMu sync.Mutex
	mu     sync.RWMutex
	rec    Recognizer
	st     Status
}

// NewAdapter creates an adapter that will call load on first use. A nil
// loader yields a permanently unavailable adapter.
func NewAdapter(name string, load Loader, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		name:   name,
		load:   load,
		logger: logger,
		st:     StatusUninitialized,
	}
}

// NewStaticAdapter wraps an already initialized recognizer.
func NewStaticAdapter(name string, rec Recognizer, logger *slog.Logger) *Adapter {
	return NewAdapter(name, func(context.Context) (Recognizer, error) {
		return rec, nil
	}, logger)
}

// Name returns the configured recognizer name.
func (a *Adapter) Name() string {
	return a.name
}

// Status reports the current state without triggering initialization.
func (a *Adapter) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.st
}

// Available initializes the recognizer if needed and reports whether it loaded.
func (a *Adapter) Available(ctx context.Context) bool {
	return a.recognizer(ctx) != nil
}

func (a *Adapter) recognizer(ctx context.Context) Recognizer {
	a.mu.RLock()
	rec, st := a.rec, a.st
	a.mu.RUnlock()
	if st != StatusUninitialized {
		return rec
	}

	a.loadMu.Lock()
	defer a.loadMu.Unlock()

	a.mu.RLock()
	rec, st = a.rec, a.st
	a.mu.RUnlock()
	if st != StatusUninitialized {
		return rec
	}

	var err error
	if a.load == nil {
		err = domain.ErrAnnotatorUnavailable
	} else {
		rec, err = a.load(ctx)
		if err == nil && rec == nil {
			err = domain.ErrAnnotatorUnavailable
		}
	}

	if err != nil && ctx.Err() != nil {
		a.logger.Debug("Entity annotator load interrupted, will retry",
			"recognizer", a.name, "error", err)
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.st = StatusUnavailable
		a.logger.Warn("Entity annotator unavailable, using pattern-only detection",
			"recognizer", a.name, "error", err)
		return nil
	}
	a.rec = rec
	a.st = StatusAvailable
	a.logger.Info("Entity annotator loaded", "recognizer", a.name)
	return rec
}

// Annotate returns person, organization and location entities found in text.
func (a *Adapter) Annotate(ctx context.Context, text string) []domain.Entity {
	rec := a.recognizer(ctx)
	if rec == nil || text == "" {
		return nil
	}

	spans, err := rec.Annotate(ctx, text)
	if err != nil {
		a.logger.Warn("Entity annotation failed", "recognizer", a.name, "error", err)
		return nil
	}

	entities := make([]domain.Entity, 0, len(spans))
	for _, span := range spans {
		entity, ok := toEntity(text, span)
		if !ok {
			continue
		}
		entities = append(entities, entity)
	}
	return entities
}

// toEntity maps a coarse label to a kind with its fixed confidence and
// resolves the span's byte offsets in text.
func toEntity(text string, span Span) (domain.Entity, bool) {
	var (
		kind       domain.Kind
		confidence float64
	)
	switch strings.ToUpper(span.Label) {
	case LabelPerson:
		kind, confidence = domain.KindPerson, domain.NERPersonConfidence
	case LabelOrg:
		kind, confidence = domain.KindOrganization, domain.NEROrgConfidence
	case LabelGPE:
		kind, confidence = domain.KindLocation, domain.NERLocationConfidence
	default:
		return domain.Entity{}, false
	}

	if span.Text == "" {
		return domain.Entity{}, false
	}

	start, end := span.Start, span.End
	if start < 0 || end > len(text) || start >= end || text[start:end] != span.Text {
		start = strings.Index(text, span.Text)
		if start < 0 {
			return domain.Entity{}, false
		}
		end = start + len(span.Text)
	}

	return domain.Entity{
		Text:       span.Text,
		Kind:       kind,
		Start:      start,
		End:        end,
		Confidence: confidence,
	}, true
}

package detect

import (
	"context"

	"github.com/polisai/polis-pii/pkg/domain"
)

// Annotator supplies entity spans from a named-entity recognizer. It must be
// fail-soft: an unavailable recognizer yields no entities, never an error.
type Annotator interface {
	Annotate(ctx context.Context, text string) []domain.Entity
}

// Detector runs the pattern scanner and the annotator and merges their output.
type Detector struct {
	scanner   *Scanner
	annotator Annotator
}

// NewDetector composes a detector. A nil annotator means pattern-only detection.
func NewDetector(scanner *Scanner, annotator Annotator) *Detector {
	if scanner == nil {
		scanner = MustDefaultScanner()
	}
	return &Detector{scanner: scanner, annotator: annotator}
}

// Detect returns the deduplicated entity list in first-seen order.
func (d *Detector) Detect(ctx context.Context, text string) ([]domain.Entity, error) {
	patterns, err := d.scanner.Scan(ctx, text)
	if err != nil {
		return nil, err
	}

	var annotated []domain.Entity
	if d.annotator != nil && text != "" {
		annotated = d.annotator.Annotate(ctx, text)
	}

	return Merge(patterns, annotated), nil
}

// Scanner exposes the pattern scanner.
func (d *Detector) Scanner() *Scanner {
	return d.scanner
}

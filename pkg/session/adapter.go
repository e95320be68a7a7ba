package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/polisai/polis-pii/pkg/domain"
	"github.com/polisai/polis-pii/pkg/mask"
)

// Detector finds PII entities in text.
type Detector interface {
	Detect(ctx context.Context, text string) ([]domain.Entity, error)
}

// Adapter masks text on the way out and unmasks it on the way back. Every
// MaskForSession call owns a fresh mask store, so sessions never share tokens.
type Adapter struct {
	detector Detector
	logger   *slog.Logger
}

// NewAdapter creates a session adapter.
func NewAdapter(detector Detector, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{detector: detector, logger: logger}
}

// MaskForSession detects and masks PII in text and returns the masked text
// with the state required to unmask the reply.
func (a *Adapter) MaskForSession(ctx context.Context, text string) (string, State, error) {
	if err := domain.ValidateText(text); err != nil {
		return "", State{}, err
	}

	entities, err := a.detector.Detect(ctx, text)
	if err != nil {
		return "", State{}, fmt.Errorf("detect: %w", err)
	}

	store := mask.NewStore()
	masked, mapping := store.Mask(text, entities)

	st := State{
		ID:               uuid.NewString(),
		OriginalText:     text,
		MaskedText:       masked,
		MaskMapping:      make(map[string]MappingEntry, len(mapping)),
		DetectedEntities: entities,
	}
	if st.DetectedEntities == nil {
		st.DetectedEntities = []domain.Entity{}
	}
	for token, e := range mapping {
		st.MaskMapping[token] = MappingEntry{Text: e.Text, Kind: e.Kind, Confidence: e.Confidence}
	}

	a.logger.Debug("session masked",
		"session_id", st.ID,
		"entities", len(entities),
		"tokens", len(mapping))

	return masked, st, nil
}

// UnmaskWithSession restores the tokens of st found in text. Unknown or
// malformed tokens are left as they are.
func (a *Adapter) UnmaskWithSession(text string, st State) string {
	return mask.Restore(text, st.Mapping())
}

// UnmaskWithRecord is UnmaskWithSession for a flat record.
func (a *Adapter) UnmaskWithRecord(text string, rec map[string]any) string {
	st, err := ParseRecord(rec)
	if err != nil {
		a.logger.Debug("session record rejected", "error", err)
		return text
	}
	return a.UnmaskWithSession(text, st)
}

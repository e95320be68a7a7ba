// Package protect rewrites prompts so that detected PII is replaced by
// plausible generic values, and explains the privacy risk of what was found.
package protect

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/polisai/polis-pii/pkg/domain"
)

// Detector finds PII entities in text.
type Detector interface {
	Detect(ctx context.Context, text string) ([]domain.Entity, error)
}

// Engine produces protected prompts. It is safe for concurrent use.
type Engine struct {
	detector Detector
	logger   *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	poolsMu sync.RWMutex
	pools   Pools
}

// Option configures an Engine.
type Option func(*Engine)

// WithSeed makes replacement choices deterministic.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		// #nosec G404 -- replacement selection is not security sensitive
		e.rng = rand.New(rand.NewSource(seed))
	}
}

// WithRand injects the randomness source.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// WithPools overlays custom replacement pools on the defaults.
func WithPools(p Pools) Option {
	return func(e *Engine) {
		e.pools = defaultPools.Overlay(p)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine builds a protection engine on top of detector.
func NewEngine(detector Detector, opts ...Option) *Engine {
	e := &Engine{
		detector: detector,
		logger:   slog.Default(),
		// #nosec G404 -- replacement selection is not security sensitive
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		pools: DefaultPools(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetPools swaps the replacement pools, overlaying p on the defaults.
func (e *Engine) SetPools(p Pools) {
	merged := defaultPools.Overlay(p)
	e.poolsMu.Lock()
	e.pools = merged
	e.poolsMu.Unlock()
	e.logger.Debug("replacement pools updated", "kinds", len(merged))
}

// Pools returns a copy of the active replacement pools.
func (e *Engine) Pools() Pools {
	e.poolsMu.RLock()
	defer e.poolsMu.RUnlock()
	return e.pools.Clone()
}

// Protect detects PII in prompt and returns a rewritten prompt along with
// suggestions, context and risk level.
func (e *Engine) Protect(ctx context.Context, prompt string) (domain.ProtectionResult, error) {
	if err := domain.ValidateText(prompt); err != nil {
		return domain.ProtectionResult{}, err
	}

	entities, err := e.detector.Detect(ctx, prompt)
	if err != nil {
		return domain.ProtectionResult{}, fmt.Errorf("detect: %w", err)
	}

	pctx := ClassifyContext(prompt)
	if len(entities) == 0 {
		return domain.ProtectionResult{
			OriginalText:  prompt,
			ProtectedText: prompt,
			Entities:      []domain.Entity{},
			Replacements:  []domain.Replacement{},
			Suggestions:   []string{NoPIISuggestion},
			Context:       pctx,
			RiskLevel:     domain.RiskLow,
			Kinds:         []domain.Kind{},
		}, nil
	}

	protected, replacements := e.substitute(prompt, entities)
	risk := AssessRisk(entities)

	e.logger.Debug("prompt protected",
		"entities", len(entities),
		"replacements", len(replacements),
		"context", pctx,
		"risk", risk)

	return domain.ProtectionResult{
		OriginalText:      prompt,
		ProtectedText:     protected,
		ProtectionApplied: true,
		Entities:          entities,
		Replacements:      replacements,
		Suggestions:       Suggestions(entities, pctx),
		Context:           pctx,
		RiskLevel:         risk,
		EntityCount:       len(entities),
		Kinds:             domain.Kinds(entities),
	}, nil
}

// GenerateAlternatives returns n independently randomized protected versions
// of prompt. A prompt without PII yields n copies of itself.
func (e *Engine) GenerateAlternatives(ctx context.Context, prompt string, n int) ([]string, error) {
	if n < 0 {
		return nil, domain.InvalidInput("alternative count must not be negative, got %d", n)
	}
	if err := domain.ValidateText(prompt); err != nil {
		return nil, err
	}

	out := make([]string, 0, n)
	for range n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entities, err := e.detector.Detect(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("detect: %w", err)
		}
		if len(entities) == 0 {
			out = append(out, prompt)
			continue
		}
		protected, _ := e.substitute(prompt, entities)
		out = append(out, protected)
	}
	return out, nil
}

// substitute replaces entity texts longest first so that a shorter entity
// contained in a longer one cannot split it. An entity whose text no longer
// appears in the working prompt is not recorded.
func (e *Engine) substitute(prompt string, entities []domain.Entity) (string, []domain.Replacement) {
	ordered := append([]domain.Entity(nil), entities...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Text) > len(ordered[j].Text)
	})

	e.poolsMu.RLock()
	pools := e.pools
	e.poolsMu.RUnlock()

	working := prompt
	replacements := make([]domain.Replacement, 0, len(ordered))
	for _, ent := range ordered {
		if ent.Text == "" {
			continue
		}
		value := e.pick(pools, ent.Kind)
		if !strings.Contains(working, ent.Text) {
			continue
		}
		working = strings.ReplaceAll(working, ent.Text, value)
		replacements = append(replacements, domain.Replacement{
			Original:    ent.Text,
			Replacement: value,
			Kind:        ent.Kind,
			Confidence:  ent.Confidence,
		})
	}
	return working, replacements
}

func (e *Engine) pick(pools Pools, kind domain.Kind) string {
	pool := pools[kind]
	if len(pool) == 0 {
		return Label(kind)
	}
	e.rngMu.Lock()
	i := e.rng.Intn(len(pool))
	e.rngMu.Unlock()
	return pool[i]
}

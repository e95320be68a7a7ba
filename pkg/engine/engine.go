package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/polisai/polis-pii/pkg/detect"
	"github.com/polisai/polis-pii/pkg/domain"
	"github.com/polisai/polis-pii/pkg/mask"
	"github.com/polisai/polis-pii/pkg/ner"
	"github.com/polisai/polis-pii/pkg/protect"
	"github.com/polisai/polis-pii/pkg/session"
	"github.com/polisai/polis-pii/pkg/telemetry"
)

const tracerName = "polis.pii"

// Operation names used in spans and metrics.
const (
	OpAnalyze           = "analyze"
	OpUnmask            = "unmask"
	OpMaskForSession    = "mask_for_session"
	OpUnmaskWithSession = "unmask_with_session"
	OpProtect           = "protect"
	OpAlternatives      = "generate_alternatives"
	OpAnalyzeRisk       = "analyze_risk"
)

// Config assembles an Engine.
type Config struct {
	// Scanner defaults to the built-in pattern rules.
	Scanner *detect.Scanner
	// Annotator is optional; without it detection is pattern-only.
	Annotator *ner.Adapter
	// Protect options, e.g. protect.WithSeed.
	Protect []protect.Option
	// Metrics may be nil.
	Metrics *telemetry.PromMetrics
	Logger  *slog.Logger
}

// Engine is safe for concurrent use. Analyze and Unmask share one mask store
// owned by the engine; MaskForSession gives every call its own store.
type Engine struct {
	detector  *detect.Detector
	annotator *ner.Adapter
	store     *mask.Store
	sessions  *session.Adapter
	protector *protect.Engine
	metrics   *telemetry.PromMetrics
	logger    *slog.Logger

	analyses       atomic.Int64
	sessionsMasked atomic.Int64
	tokensIssued   atomic.Int64
	protections    atomic.Int64
}

// New builds an engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var annotator detect.Annotator
	if cfg.Annotator != nil {
		annotator = cfg.Annotator
	}
	detector := detect.NewDetector(cfg.Scanner, annotator)

	protectOpts := append([]protect.Option{protect.WithLogger(logger)}, cfg.Protect...)

	return &Engine{
		detector:  detector,
		annotator: cfg.Annotator,
		store:     mask.NewStore(),
		sessions:  session.NewAdapter(detector, logger),
		protector: protect.NewEngine(detector, protectOpts...),
		metrics:   cfg.Metrics,
		logger:    logger,
	}
}

// AnalysisResult is the outcome of Analyze.
type AnalysisResult struct {
	OriginalText string           `json:"original_text" yaml:"original_text"`
	MaskedText   string           `json:"masked_text" yaml:"masked_text"`
	Entities     []domain.Entity  `json:"entities" yaml:"entities"`
	MaskInfo     []mask.TokenInfo `json:"mask_info" yaml:"mask_info"`
	PIICount     int              `json:"pii_count" yaml:"pii_count"`
	PIITypes     []domain.Kind    `json:"pii_types" yaml:"pii_types"`
}

// Analyze detects PII in text, masks it in the engine's store and describes
// the tokens found in the masked text.
func (e *Engine) Analyze(ctx context.Context, text string) (res AnalysisResult, err error) {
	ctx, span, done := e.begin(ctx, OpAnalyze)
	var tokens int
	defer func() { done(err, res.Entities, tokens) }()

	if err = domain.ValidateText(text); err != nil {
		return AnalysisResult{}, err
	}

	entities, err := e.detector.Detect(ctx, text)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("detect: %w", err)
	}
	if entities == nil {
		entities = []domain.Entity{}
	}

	masked, mapping := e.store.Mask(text, entities)
	tokens = len(mapping)
	info := e.store.Describe(masked)
	if info == nil {
		info = []mask.TokenInfo{}
	}

	e.analyses.Add(1)
	telemetry.RecordDetection(span, entities)

	return AnalysisResult{
		OriginalText: text,
		MaskedText:   masked,
		Entities:     entities,
		MaskInfo:     info,
		PIICount:     len(entities),
		PIITypes:     domain.Kinds(entities),
	}, nil
}

// Unmask restores tokens issued by Analyze. A nil mapping means every token
// in the engine's store.
func (e *Engine) Unmask(ctx context.Context, text string, m mask.Mapping) string {
	_, _, done := e.begin(ctx, OpUnmask)
	defer done(nil, nil, 0)
	return e.store.Unmask(text, m)
}

// Store exposes the engine's mask store.
func (e *Engine) Store() *mask.Store {
	return e.store
}

// MaskForSession masks text with a fresh per-session store.
func (e *Engine) MaskForSession(ctx context.Context, text string) (masked string, st session.State, err error) {
	ctx, span, done := e.begin(ctx, OpMaskForSession)
	defer func() { done(err, st.DetectedEntities, len(st.MaskMapping)) }()

	masked, st, err = e.sessions.MaskForSession(ctx, text)
	if err != nil {
		return "", session.State{}, err
	}

	e.sessionsMasked.Add(1)
	telemetry.RecordDetection(span, st.DetectedEntities)
	telemetry.SetAttributes(span, attribute.String("session.id", st.ID))
	return masked, st, nil
}

// UnmaskWithSession restores a reply with the tokens of st.
func (e *Engine) UnmaskWithSession(ctx context.Context, text string, st session.State) string {
	_, span, done := e.begin(ctx, OpUnmaskWithSession)
	defer done(nil, nil, 0)

	telemetry.SetAttributes(span,
		attribute.String("session.id", st.ID),
		attribute.Int("session.tokens", len(st.MaskMapping)))
	return e.sessions.UnmaskWithSession(text, st)
}

// UnmaskWithRecord restores a reply with a flat session record.
func (e *Engine) UnmaskWithRecord(ctx context.Context, text string, rec map[string]any) string {
	_, _, done := e.begin(ctx, OpUnmaskWithSession)
	defer done(nil, nil, 0)
	return e.sessions.UnmaskWithRecord(text, rec)
}

// Protect rewrites prompt with generic replacements.
func (e *Engine) Protect(ctx context.Context, prompt string) (res domain.ProtectionResult, err error) {
	ctx, span, done := e.begin(ctx, OpProtect)
	defer func() { done(err, res.Entities, 0) }()

	res, err = e.protector.Protect(ctx, prompt)
	if err != nil {
		return domain.ProtectionResult{}, err
	}

	e.protections.Add(1)
	e.metrics.RecordRisk(res.RiskLevel)
	telemetry.RecordProtection(ctx, res)
	telemetry.RecordDetection(span, res.Entities)
	telemetry.RecordProtectionOutcome(span, res)
	return res, nil
}

// ProtectWithAlternatives is Protect with n alternatives attached.
func (e *Engine) ProtectWithAlternatives(ctx context.Context, prompt string, n int) (domain.ProtectionResult, error) {
	if n < 0 {
		return domain.ProtectionResult{}, domain.InvalidInput("alternative count must not be negative, got %d", n)
	}
	res, err := e.Protect(ctx, prompt)
	if err != nil {
		return domain.ProtectionResult{}, err
	}
	if n == 0 {
		return res, nil
	}
	alts, err := e.GenerateAlternatives(ctx, prompt, n)
	if err != nil {
		return domain.ProtectionResult{}, err
	}
	res.Alternatives = alts
	return res, nil
}

// GenerateAlternatives returns n independently randomized rewrites of prompt.
func (e *Engine) GenerateAlternatives(ctx context.Context, prompt string, n int) (alts []string, err error) {
	ctx, span, done := e.begin(ctx, OpAlternatives)
	defer func() { done(err, nil, 0) }()

	alts, err = e.protector.GenerateAlternatives(ctx, prompt, n)
	telemetry.SetAttributes(span, attribute.Int("pii.alternatives.count", len(alts)))
	return alts, err
}

// SetPools replaces the protection engine's replacement pools.
func (e *Engine) SetPools(p protect.Pools) {
	e.protector.SetPools(p)
}

// begin opens a span for op and returns a completion func recording the
// span status and metrics.
func (e *Engine) begin(ctx context.Context, op string) (context.Context, trace.Span, func(error, []domain.Entity, int)) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pii."+op,
		trace.WithAttributes(attribute.String("pii.operation", op)))
	start := time.Now()

	return ctx, span, func(err error, entities []domain.Entity, tokens int) {
		duration := time.Since(start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			e.logger.Warn("PII operation failed", "operation", op, "error", err)
		}
		e.tokensIssued.Add(int64(tokens))

		telemetry.RecordOperation(ctx, telemetry.OperationMetrics{
			Operation: op,
			Entities:  entities,
			Tokens:    tokens,
			Duration:  duration,
			Err:       err,
		})
		e.metrics.RecordOperation(op, err, duration)
		e.metrics.RecordEntities(entities)
		e.metrics.RecordTokens(tokens)
		span.End()
	}
}

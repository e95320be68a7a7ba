package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/polisai/polis-pii/pkg/domain"
)

const (
	defaultHTTPTimeout = 5 * time.Second
	maxResponseBytes   = 4 << 20
)

// HTTPConfig configures a recognizer served over HTTP.
type HTTPConfig struct {
	Endpoint  string
	Timeout   time.Duration
	RateLimit float64 // requests per second; zero disables limiting
	Burst     int

	// BreakerFailures consecutive failures open the breaker for BreakerCooldown.
	BreakerFailures int
	BreakerCooldown time.Duration
}

// HTTPRecognizer calls an external NER service.
//
//	POST {endpoint}/annotate  {"text": "..."}  -> {"entities": [{"text","label","start","end"}]}
//	GET  {endpoint}/health                     -> 200
type HTTPRecognizer struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *Breaker
}

type annotateRequest struct {
	Text string `json:"text"`
}

type annotateResponse struct {
	Entities []Span `json:"entities"`
}

// NewHTTPRecognizer creates a recognizer client for cfg.Endpoint.
func NewHTTPRecognizer(cfg HTTPConfig) *HTTPRecognizer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		if burst <= 0 {
			burst = 1
		}
	}

	return &HTTPRecognizer{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(limit, burst),
		breaker: NewBreaker(cfg.BreakerFailures, cfg.BreakerCooldown),
	}
}

// Ping checks the service health endpoint.
func (r *HTTPRecognizer) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ner: health check returned status %d", resp.StatusCode)
	}
	return nil
}

// Breaker exposes the recognizer's circuit breaker.
func (r *HTTPRecognizer) Breaker() *Breaker {
	return r.breaker
}

// Annotate sends text to the service and returns its spans. Calls are
// rejected with ErrCircuitOpen while the service is considered down.
func (r *HTTPRecognizer) Annotate(ctx context.Context, text string) ([]Span, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ner: rate limiter: %w", err)
	}
	if err := r.breaker.Allow(); err != nil {
		return nil, err
	}

	spans, err := r.annotate(ctx, text)
	// A cancelled caller says nothing about the service.
	if ctx.Err() != nil {
		r.breaker.Release()
	} else {
		r.breaker.Record(err)
	}
	return spans, err
}

func (r *HTTPRecognizer) annotate(ctx context.Context, text string) ([]Span, error) {
	body, err := json.Marshal(annotateRequest{Text: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/annotate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ner: annotate request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ner: annotate returned status %d", resp.StatusCode)
	}

	var decoded annotateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("ner: decode response: %w", err)
	}
	return decoded.Entities, nil
}

// HTTPLoader returns a Loader that health-checks the service before handing
// out the recognizer. An empty endpoint means no recognizer is configured.
func HTTPLoader(cfg HTTPConfig) Loader {
	return func(ctx context.Context) (Recognizer, error) {
		if strings.TrimSpace(cfg.Endpoint) == "" {
			return nil, fmt.Errorf("ner: no endpoint configured: %w", domain.ErrAnnotatorUnavailable)
		}
		rec := NewHTTPRecognizer(cfg)
		if err := rec.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ner: %w: %v", domain.ErrAnnotatorUnavailable, err)
		}
		return rec, nil
	}
}

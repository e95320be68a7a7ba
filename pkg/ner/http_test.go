package ner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polisai/polis-pii/pkg/domain"
)

func newNERServer(t *testing.T, healthy bool) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/annotate", func(w http.ResponseWriter, r *http.Request) {
		var req annotateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		resp := annotateResponse{}
		if req.Text == "Contact John Smith at john@email.com" {
			resp.Entities = []Span{{Text: "John Smith", Label: "PERSON", Start: 8, End: 18}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPRecognizer_Annotate(t *testing.T) {
	srv := newNERServer(t, true)

	rec := NewHTTPRecognizer(HTTPConfig{Endpoint: srv.URL + "/", Timeout: time.Second})
	spans, err := rec.Annotate(context.Background(), "Contact John Smith at john@email.com")

	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, Span{Text: "John Smith", Label: "PERSON", Start: 8, End: 18}, spans[0])
}

func TestHTTPLoader_HealthyService(t *testing.T) {
	srv := newNERServer(t, true)

	adapter := NewAdapter("http", HTTPLoader(HTTPConfig{Endpoint: srv.URL}), discardLogger())
	entities := adapter.Annotate(context.Background(), "Contact John Smith at john@email.com")

	require.Len(t, entities, 1)
	assert.Equal(t, domain.KindPerson, entities[0].Kind)
	assert.Equal(t, StatusAvailable, adapter.Status())
}

func TestHTTPLoader_UnhealthyService(t *testing.T) {
	srv := newNERServer(t, false)

	_, err := HTTPLoader(HTTPConfig{Endpoint: srv.URL})(context.Background())
	assert.ErrorIs(t, err, domain.ErrAnnotatorUnavailable)
}

func TestHTTPLoader_NoEndpoint(t *testing.T) {
	_, err := HTTPLoader(HTTPConfig{})(context.Background())
	assert.ErrorIs(t, err, domain.ErrAnnotatorUnavailable)
}

func TestHTTPRecognizer_RateLimiterHonoursContext(t *testing.T) {
	srv := newNERServer(t, true)
	rec := NewHTTPRecognizer(HTTPConfig{Endpoint: srv.URL, RateLimit: 0.001, Burst: 1})

	_, err := rec.Annotate(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = rec.Annotate(ctx, "second")
	assert.Error(t, err)
}

func TestHTTPRecognizer_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPRecognizer(HTTPConfig{Endpoint: srv.URL}).Annotate(context.Background(), "x")
	assert.Error(t, err)
}

func TestHTTPRecognizer_BreakerStopsCallingFailingService(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	rec := NewHTTPRecognizer(HTTPConfig{Endpoint: srv.URL, BreakerFailures: 2, BreakerCooldown: time.Hour})
	for i := 0; i < 2; i++ {
		_, err := rec.Annotate(context.Background(), "x")
		require.Error(t, err)
	}

	_, err := rec.Annotate(context.Background(), "x")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, BreakerOpen, rec.Breaker().State())
}

func TestHTTPRecognizer_CancelledCallDoesNotCloseBreaker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		cancel()
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	rec := NewHTTPRecognizer(HTTPConfig{Endpoint: srv.URL, BreakerFailures: 1, BreakerCooldown: time.Minute})
	now := time.Now()
	rec.breaker.now = func() time.Time { return now }
	require.NoError(t, rec.breaker.Allow())
	rec.breaker.Record(errors.New("down"))
	require.Equal(t, BreakerOpen, rec.Breaker().State())
	now = now.Add(time.Minute)

	_, err := rec.Annotate(ctx, "x")
	require.Error(t, err)
	assert.Equal(t, BreakerHalfOpen, rec.Breaker().State(), "a cancelled probe must not close the breaker")
}

package ner

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker rejects annotation calls.
var ErrCircuitOpen = errors.New("ner: circuit breaker is open")

// BreakerState is the state of a Breaker.
type BreakerState string

// Breaker states.
const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// Breaker defaults.
const (
	DefaultBreakerFailures = 5
	DefaultBreakerCooldown = 30 * time.Second
)

// Breaker stops calling a failing recognizer for a cooldown period. After
// MaxFailures consecutive failures it opens; once the cooldown elapses a
// single probe is let through and its outcome closes or reopens it.
type Breaker struct {
	mu          sync.Mutex
	state       BreakerState
	maxFailures int
	cooldown    time.Duration
	failures    int
	openUntil   time.Time
	probing     bool
	now         func() time.Time
}

// NewBreaker creates a closed breaker. Non-positive values take the defaults.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	if maxFailures <= 0 {
		maxFailures = DefaultBreakerFailures
	}
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}
	return &Breaker{
		state:       BreakerClosed,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Allow reports whether a call may proceed. Every allowed call must be
// followed by Record or Release.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.now().Before(b.openUntil) {
			return ErrCircuitOpen
		}
		b.state = BreakerHalfOpen
		b.probing = true
		return nil
	case BreakerHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

// Record feeds the outcome of an allowed call back into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.probing = false
		if err != nil {
			b.openLocked()
			return
		}
		b.state = BreakerClosed
		b.failures = 0
		return
	}

	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.maxFailures {
		b.openLocked()
	}
}

// Release ends an allowed call that produced no verdict about the service,
// such as one cancelled by its caller. State and failure count are kept; a
// half-open breaker lets the next call probe instead.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

func (b *Breaker) openLocked() {
	b.state = BreakerOpen
	b.failures = 0
	b.openUntil = b.now().Add(b.cooldown)
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

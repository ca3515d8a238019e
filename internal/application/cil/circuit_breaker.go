package cil

import (
	"sync"
	"time"
)

// CircuitState is the state of a CircuitBreaker.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
		case StateClosed:
			return "closed"
		case StateOpen:
			return "open"
		case StateHalfOpen:
			return "half-open"
		default:
			return "unknown"
	}
}

// CircuitBreakerConfig tunes trip/reset behavior.
type CircuitBreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout time.Duration
}

// DefaultCircuitBreakerConfig returns a conservative LLM-call breaker.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{FailureThreshold: 5, SuccessThreshold: 2, Timeout: 60 * time.Second}
}

// CircuitBreaker guards the LLM port.
type CircuitBreaker struct {
	mu sync.Mutex

	cfg CircuitBreakerConfig

	state CircuitState
	consecutiveFail int
	consecutiveOK int
	openedAt time.Time
}

// NewCircuitBreaker builds a closed CircuitBreaker with cfg.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// Allow reports whether a call may proceed, transitioning Open->HalfOpen
// once cfg.Timeout has elapsed.
func (b *CircuitBreaker) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
		case StateOpen:
			if now.Sub(b.openedAt) >= b.cfg.Timeout {
			b.state = StateHalfOpen
			b.consecutiveOK = 0
			return true
		}
		return false
		default:
			return true
	}
}

// RecordSuccess transitions HalfOpen->Closed after enough consecutive
// successes, and resets the failure counter in Closed.
func (b *CircuitBreaker) RecordSuccess(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFail = 0
	switch b.state {
		case StateHalfOpen:
			b.consecutiveOK++
			if b.consecutiveOK >= b.cfg.SuccessThreshold {
			b.state = StateClosed
		}
		case StateClosed:
	}
}

// RecordFailure trips the breaker after cfg.FailureThreshold consecutive
// failures (from Closed) or immediately on a HalfOpen probe failure.
func (b *CircuitBreaker) RecordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
		case StateHalfOpen:
			b.state = StateOpen
			b.openedAt = now
		case StateClosed:
			b.consecutiveFail++
			if b.consecutiveFail >= b.cfg.FailureThreshold {
			b.state = StateOpen
			b.openedAt = now
		}
	}
}

func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

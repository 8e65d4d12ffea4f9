package gateway

import (
	"log/slog"
	"sync"
	"time"
)

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type CircuitBreakerConfig struct {
	FailureThreshold int           // consecutive transport failures before opening
	SuccessThreshold int           // successes in half-open before closing
	Cooldown         time.Duration // time open before a probe is allowed
}

// CircuitBreaker trips on consecutive transport failures only. Coded
// rejections prove the gateway is reachable and count as successes.
type CircuitBreaker struct {
	mu              sync.RWMutex
	state           CircuitState
	failureCount    int
	successCount    int
	probing         bool
	config          CircuitBreakerConfig
	lastStateChange time.Time
	now             func() time.Time
}

func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 1
	}
	if config.Cooldown == 0 {
		config.Cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		state:  CircuitClosed,
		config: config,
		now:    time.Now,
	}
}

func (cb *CircuitBreaker) setState(to CircuitState) {
	from := cb.state
	cb.state = to
	cb.failureCount = 0
	cb.successCount = 0
	cb.probing = false
	cb.lastStateChange = cb.now()
	slog.Info("Gateway circuit breaker state change",
		slog.String("from_state", from.String()),
		slog.String("to_state", to.String()),
	)
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// AllowRequest reports whether a call may proceed. In half-open state only
// one probe is in flight at a time.
func (cb *CircuitBreaker) AllowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.lastStateChange) < cb.config.Cooldown {
			return false
		}
		cb.setState(CircuitHalfOpen)
		cb.probing = true
		return true
	case CircuitHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	}
	return true
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitHalfOpen:
		cb.probing = false
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.setState(CircuitClosed)
		}
	case CircuitClosed:
		cb.failureCount = 0
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitHalfOpen:
		cb.setState(CircuitOpen)
	case CircuitClosed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.setState(CircuitOpen)
		}
	}
}

// RecordAbandoned frees a half-open probe whose caller gave up before the
// gateway answered. It counts as neither success nor failure.
func (cb *CircuitBreaker) RecordAbandoned() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitHalfOpen {
		cb.probing = false
	}
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(CircuitClosed)
}

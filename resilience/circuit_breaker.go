package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/vietpos/terminal/core"
)

// CircuitState is the circuit breaker state
type CircuitState int

const (
	// StateClosed allows all requests through
	StateClosed CircuitState = iota
	// StateOpen rejects all requests
	StateOpen
	// StateHalfOpen allows probe requests to test recovery
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

// CircuitBreakerConfig configures a CircuitBreaker
type CircuitBreakerConfig struct {
	// Name identifies the breaker in logs
	Name string
	// Threshold is the number of consecutive failures that opens the
	// circuit
	Threshold int
	// Timeout is how long the circuit stays open before probing
	Timeout time.Duration
	// HalfOpenRequests is the number of consecutive probe successes
	// required to close the circuit again
	HalfOpenRequests int
}

// DefaultCircuitBreakerConfig returns sensible defaults
func DefaultCircuitBreakerConfig(name string) *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:             name,
		Threshold:        5,
		Timeout:          30 * time.Second,
		HalfOpenRequests: 2,
	}
}

// CircuitBreaker blocks calls to a backend that keeps failing, giving
// it time to recover before traffic resumes.
type CircuitBreaker struct {
	config *CircuitBreakerConfig
	logger core.Logger

	mu            sync.Mutex
	state         CircuitState
	failures      int
	probeSuccesses int
	openedAt      time.Time
}

// NewCircuitBreaker creates a circuit breaker in the closed state
func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig("backend")
	}
	return &CircuitBreaker{
		config: config,
		logger: &core.NoOpLogger{},
		state:  StateClosed,
	}
}

// SetLogger configures the logger for state transitions
func (cb *CircuitBreaker) SetLogger(logger core.Logger) {
	if logger != nil {
		cb.logger = logger
	}
}

// Execute runs fn under circuit breaker protection. An open circuit
// returns ErrCircuitBreakerOpen without calling fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if !cb.allow() {
		return core.ErrCircuitBreakerOpen
	}

	err := fn()
	cb.record(err)
	return err
}

// State returns the current state, accounting for open timeouts
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeProbe()
	return cb.state
}

// CanExecute reports whether a call would be allowed right now
func (cb *CircuitBreaker) CanExecute() bool {
	return cb.State() != StateOpen
}

// Reset returns the breaker to the closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeProbe()
	return cb.state != StateOpen
}

// maybeProbe moves an expired open circuit to half-open. Caller holds
// the mutex.
func (cb *CircuitBreaker) maybeProbe() {
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.config.Timeout {
		cb.transition(StateHalfOpen)
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.probeSuccesses++
			if cb.probeSuccesses >= cb.config.HalfOpenRequests {
				cb.transition(StateClosed)
			}
		}
		return
	}

	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.config.Threshold {
		cb.transition(StateOpen)
	}
}

// transition changes state and resets counters. Caller holds the mutex.
func (cb *CircuitBreaker) transition(to CircuitState) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.probeSuccesses = 0
	if to == StateOpen {
		cb.openedAt = time.Now()
	} else {
		cb.failures = 0
	}

	cb.logger.Warn("Circuit breaker state change", map[string]interface{}{
		"name": cb.config.Name,
		"from": from.String(),
		"to":   to.String(),
	})
}

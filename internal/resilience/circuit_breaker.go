package resilience

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// State of a circuit breaker.
type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// ErrOpen is returned by Call while the breaker rejects work.
var ErrOpen = errors.New("circuit breaker is open")

// Config tunes a breaker. Zero values take defaults.
type Config struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`
	SuccessThreshold int           `yaml:"success_threshold"`
	// OnOpen runs each time the breaker trips.
	OnOpen func() `yaml:"-"`
}

// CircuitBreaker stops calling a failing stage for a while so requests take
// the cheap path instead of repeating an expensive failure.
type CircuitBreaker struct {
	config    Config
	state     int32
	failures  int32
	successes int32

	mu          sync.Mutex
	nextAttempt time.Time
	now         func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(config Config) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	return &CircuitBreaker{config: config, state: int32(StateClosed), now: time.Now}
}

// Call runs fn unless the breaker is open. fn's error is returned as is.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if State(atomic.LoadInt32(&cb.state)) == StateOpen {
		cb.mu.Lock()
		wait := cb.now().Before(cb.nextAttempt)
		cb.mu.Unlock()
		if wait {
			return ErrOpen
		}
		if atomic.CompareAndSwapInt32(&cb.state, int32(StateOpen), int32(StateHalfOpen)) {
			atomic.StoreInt32(&cb.successes, 0)
		}
	}

	if err := fn(); err != nil {
		cb.onFailure()
		return err
	}
	cb.onSuccess()
	return nil
}

func (cb *CircuitBreaker) onFailure() {
	atomic.StoreInt32(&cb.successes, 0)
	failures := atomic.AddInt32(&cb.failures, 1)
	halfOpen := State(atomic.LoadInt32(&cb.state)) == StateHalfOpen
	if !halfOpen && failures < int32(cb.config.FailureThreshold) {
		return
	}

	cb.mu.Lock()
	cb.nextAttempt = cb.now().Add(cb.config.RecoveryTimeout)
	cb.mu.Unlock()
	if State(atomic.SwapInt32(&cb.state, int32(StateOpen))) != StateOpen && cb.config.OnOpen != nil {
		cb.config.OnOpen()
	}
}

func (cb *CircuitBreaker) onSuccess() {
	atomic.StoreInt32(&cb.failures, 0)
	if State(atomic.LoadInt32(&cb.state)) != StateHalfOpen {
		return
	}
	if atomic.AddInt32(&cb.successes, 1) >= int32(cb.config.SuccessThreshold) {
		atomic.StoreInt32(&cb.state, int32(StateClosed))
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	return State(atomic.LoadInt32(&cb.state))
}

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	return int(atomic.LoadInt32(&cb.failures))
}

// Reset closes the breaker. Used after a retrain replaces the failing model.
func (cb *CircuitBreaker) Reset() {
	atomic.StoreInt32(&cb.state, int32(StateClosed))
	atomic.StoreInt32(&cb.failures, 0)
	atomic.StoreInt32(&cb.successes, 0)
}

// Package resilience provides a circuit breaker for calls to flaky
// upstream services.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// State is the state of a circuit breaker.
type State string

const (
	StateClosed   State = "closed"    // calls pass through
	StateOpen     State = "open"      // calls are rejected
	StateHalfOpen State = "half_open" // trial calls decide whether to close
)

// ErrOpen is returned while the circuit is open.
var ErrOpen = errors.New("circuit breaker is open")

// Config holds circuit breaker settings.
type Config struct {
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int
	// SuccessThreshold successes while half-open close it again.
	SuccessThreshold int
	// Cooldown is how long the circuit stays open before a trial call.
	Cooldown time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         30 * time.Second,
	}
}

// Breaker trips after a run of failures and rejects calls until the
// cooldown has passed.
type Breaker struct {
	name string
	cfg  Config
	now  func() time.Time

	// OnStateChange, when set, is called with the new state. It runs with
	// the breaker locked and must not call back into it.
	OnStateChange func(name string, state State)

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time

	rejected int64
}

// New creates a closed breaker.
func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold < 1 {
		cfg.SuccessThreshold = 1
	}
	return &Breaker{
		name:  name,
		cfg:   cfg,
		now:   time.Now,
		state: StateClosed,
	}
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// Allow reports whether a call may proceed, moving an open circuit to
// half-open once the cooldown has elapsed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			b.rejected++
			return ErrOpen
		}
		b.transition(StateHalfOpen)
	}
	return nil
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
		}
	case StateClosed:
		b.failures = 0
	}
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(state State) {
	b.state = state
	b.failures = 0
	b.successes = 0
	if state == StateOpen {
		b.openedAt = b.now()
	}
	if b.OnStateChange != nil {
		b.OnStateChange(b.name, state)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Rejected returns how many calls were refused while open.
func (b *Breaker) Rejected() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rejected
}

// Reset closes the circuit.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
}

// Call runs fn under b. Errors for which counts returns false pass through
// without affecting the circuit; a nil counts treats every error as a
// failure.
func Call[T any](b *Breaker, fn func() (T, error), counts func(error) bool) (T, error) {
	var zero T
	if err := b.Allow(); err != nil {
		return zero, err
	}
	v, err := fn()
	switch {
	case err == nil:
		b.Success()
	case counts == nil || counts(err):
		b.Failure()
	}
	return v, err
}

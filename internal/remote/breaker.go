package remote

import (
	"fmt"
	"sync"
	"time"
)

// State is the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
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

// BreakerConfig configures the breaker. MaxFailures of zero disables it.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before opening.
	MaxFailures int

	// Cooldown is how long the circuit stays open before one probe request
	// is let through.
	Cooldown time.Duration

	OnStateChange func(from, to State)
}

// Breaker fails requests fast after repeated service failures. Only
// failures the client would retry are recorded; a 404 is a valid answer.
type Breaker struct {
	mu sync.Mutex

	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	state    State
	failures int
	openedAt time.Time
	probing  bool

	onStateChange func(from, to State)
}

// NewBreaker creates a closed breaker.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 3
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	return &Breaker{
		maxFailures:   config.MaxFailures,
		cooldown:      config.Cooldown,
		now:           time.Now,
		onStateChange: config.OnStateChange,
	}
}

// Allow reports whether a request may go out. In half-open state only one
// probe is in flight at a time.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return &CircuitOpenError{Failures: b.failures, OpenedAt: b.openedAt}
		}
		b.setState(StateHalfOpen)
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return &CircuitOpenError{Failures: b.failures, OpenedAt: b.openedAt}
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

// Record reports the outcome of an allowed request.
func (b *Breaker) Record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if !failed {
		b.failures = 0
		b.setState(StateClosed)
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.maxFailures {
		b.openedAt = b.now()
		b.setState(StateOpen)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onStateChange != nil {
		go b.onStateChange(from, to)
	}
}

// CircuitOpenError is returned while the circuit rejects requests.
type CircuitOpenError struct {
	Failures int
	OpenedAt time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker is open (failures: %d, opened: %s)",
		e.Failures, e.OpenedAt.Format(time.RFC3339))
}

// IsCircuitOpen reports whether err is a CircuitOpenError.
func IsCircuitOpen(err error) bool {
	_, ok := err.(*CircuitOpenError)
	return ok
}

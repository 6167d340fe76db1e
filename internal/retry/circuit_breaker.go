package retry

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is wrapped by every rejection from an open circuit.
var ErrOpen = errors.New("circuit open")

// State is the position of a [CircuitBreaker].
type State int

const (
	StateClosed   State = iota // requests go out
	StateOpen                  // requests are held until the cool-down ends
	StateHalfOpen              // requests go out; one more failure reopens
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// CircuitBreakerConfig configures a [CircuitBreaker].  Zero fields take
// the defaults of [DefaultCircuitBreakerConfig].
type CircuitBreakerConfig struct {
	// MaxFailures is the failure streak that opens the circuit.  For
	// server discovery a failure is one "No server of" reply.
	MaxFailures int
	// ResetTimeout is the cool-down before an open circuit lets a
	// request through again.
	ResetTimeout time.Duration
	// HalfOpenMax is the success streak that closes a half-open circuit.
	HalfOpenMax int
	// OnStateChange runs under the breaker's lock on every transition.
	OnStateChange func(from, to State)
}

// DefaultCircuitBreakerConfig returns the defaults.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:  5,
		ResetTimeout: 30 * time.Second,
		HalfOpenMax:  2,
	}
}

// CircuitBreaker holds back a request whose earlier attempts keep
// failing.  The outcome of a discovery request only arrives later as a
// reply frame, so callers ask [CircuitBreaker.Allow] before sending and
// report the reply through [CircuitBreaker.Record].
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu       sync.Mutex
	state    State
	failed   int // current failure streak
	ok       int // current success streak while half-open
	openedAt time.Time
}

// NewCircuitBreaker returns a closed breaker.  cfg may be nil.
func NewCircuitBreaker(cfg *CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	c := *def
	if cfg != nil {
		c = *cfg
		if c.MaxFailures <= 0 {
			c.MaxFailures = def.MaxFailures
		}
		if c.ResetTimeout <= 0 {
			c.ResetTimeout = def.ResetTimeout
		}
		if c.HalfOpenMax <= 0 {
			c.HalfOpenMax = def.HalfOpenMax
		}
	}
	return &CircuitBreaker{cfg: c}
}

// Allow returns nil when a request may go out now, or an error
// wrapping [ErrOpen] while the circuit cools down.  An open circuit
// whose cool-down has passed turns half-open.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return nil
	}
	left := cb.cfg.ResetTimeout - time.Since(cb.openedAt)
	if left <= 0 {
		cb.moveTo(StateHalfOpen)
		return nil
	}
	return fmt.Errorf("%w after %d failures, next try in %v",
		ErrOpen, cb.failed, left.Truncate(time.Millisecond))
}

// Record reports how a request let through by Allow turned out.
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failed++
		cb.ok = 0
		if cb.state == StateHalfOpen || cb.failed >= cb.cfg.MaxFailures {
			cb.openedAt = time.Now()
			cb.moveTo(StateOpen)
		}
		return
	}

	switch cb.state {
	case StateHalfOpen:
		cb.ok++
		if cb.ok < cb.cfg.HalfOpenMax {
			return
		}
		cb.moveTo(StateClosed)
		fallthrough
	case StateClosed:
		cb.failed, cb.ok = 0, 0
	}
}

// CurrentState returns the breaker's state.  An open circuit reports
// open until the next Allow, even after its cool-down.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the circuit and forgets every streak.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failed, cb.ok = 0, 0
	cb.moveTo(StateClosed)
}

// moveTo changes state.  Caller holds mu.
func (cb *CircuitBreaker) moveTo(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}

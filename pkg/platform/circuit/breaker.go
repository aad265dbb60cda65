// Package circuit provides a circuit breaker implementation for resilience.
package circuit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is healthy and requests flow normally.
	StateClosed State = iota
	// StateOpen means the circuit has tripped and calls fail fast.
	StateOpen
	// StateHalfOpen lets a limited number of probe calls through after the cooldown.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// ErrOpen is returned by Execute when the call was rejected without running.
var ErrOpen = errors.New("circuit breaker is open")

// StateChange represents a circuit breaker state transition.
type StateChange struct {
	From State
	To   State
}

// Changed reports whether a transition happened.
func (c StateChange) Changed() bool { return c.From != c.To }

// Classifier decides whether an error counts towards tripping the breaker.
// Errors it rejects are passed through and treated as successes for state purposes.
type Classifier func(err error) bool

// CountAll trips on every non-nil error.
func CountAll(err error) bool { return err != nil }

// Breaker tracks consecutive failures for a single remote dependency.
//
// Closed: calls flow. After FailureThreshold counted failures, each within
// Window of the previous one, the breaker opens.
// Open: calls fail fast with ErrOpen until Cooldown elapses.
// HalfOpen: at most MaxProbes calls run concurrently; SuccessThreshold
// consecutive successes close the breaker, any counted failure reopens it.
type Breaker struct {
	mu               sync.Mutex
	state            State
	name             string
	failureCount     int
	successCount     int
	inFlightProbes   int
	lastFailure      time.Time
	openedAt         time.Time
	failureThreshold int
	successThreshold int
	maxProbes        int
	window           time.Duration
	cooldown         time.Duration
	classify         Classifier
	now              func() time.Time
	onChange         func(name string, change StateChange)
}

// Option configures a Breaker instance.
type Option func(*Breaker)

// WithFailureThreshold sets the number of consecutive failures to open the circuit.
// Default is 5.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets the number of consecutive half-open successes to close the circuit.
// Default is 3.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithMaxProbes limits concurrent calls while half-open. Default is 1.
func WithMaxProbes(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.maxProbes = n
		}
	}
}

// WithWindow sets the rolling window in which consecutive failures must occur.
// Default is one minute.
func WithWindow(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.window = d
		}
	}
}

// WithCooldown sets how long the circuit stays open before probing. Default is 30s.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithClassifier restricts which errors count as breaker failures.
func WithClassifier(c Classifier) Option {
	return func(b *Breaker) {
		if c != nil {
			b.classify = c
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithStateListener registers a callback invoked on every transition.
// It runs while the breaker lock is not held.
func WithStateListener(fn func(name string, change StateChange)) Option {
	return func(b *Breaker) {
		b.onChange = fn
	}
}

// New creates a circuit breaker with the given name and options.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: 5,
		successThreshold: 3,
		maxProbes:        1,
		window:           time.Minute,
		cooldown:         30 * time.Second,
		classify:         CountAll,
		now:              time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Name returns the circuit breaker's name for logging/metrics.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current circuit state, accounting for an elapsed cooldown.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Execute runs fn under breaker protection. When the call is rejected, fn is
// not invoked and ErrOpen is returned.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	probe, change, err := b.acquire()
	b.notify(change)
	if err != nil {
		return err
	}
	callErr := fn(ctx)
	b.notify(b.release(probe, callErr))
	return callErr
}

func (b *Breaker) acquire() (probe bool, change StateChange, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false, StateChange{}, ErrOpen
		}
		change = b.transition(StateHalfOpen)
	}
	if b.state == StateHalfOpen {
		if b.inFlightProbes >= b.maxProbes {
			return false, change, ErrOpen
		}
		b.inFlightProbes++
		return true, change, nil
	}
	return false, change, nil
}

func (b *Breaker) release(probe bool, err error) StateChange {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.inFlightProbes--
	}
	if err != nil && b.classify(err) {
		return b.recordFailure()
	}
	return b.recordSuccess()
}

func (b *Breaker) recordFailure() StateChange {
	now := b.now()
	b.successCount = 0

	switch b.state {
	case StateHalfOpen:
		b.openedAt = now
		b.failureCount = b.failureThreshold
		b.lastFailure = now
		return b.transition(StateOpen)
	case StateOpen:
		return StateChange{From: StateOpen, To: StateOpen}
	}

	if !b.lastFailure.IsZero() && now.Sub(b.lastFailure) > b.window {
		b.failureCount = 0
	}
	b.failureCount++
	b.lastFailure = now
	if b.failureCount >= b.failureThreshold {
		b.openedAt = now
		return b.transition(StateOpen)
	}
	return StateChange{From: b.state, To: b.state}
}

func (b *Breaker) recordSuccess() StateChange {
	if b.state == StateHalfOpen {
		b.successCount++
		if b.successCount >= b.successThreshold {
			b.failureCount = 0
			b.successCount = 0
			return b.transition(StateClosed)
		}
		return StateChange{From: StateHalfOpen, To: StateHalfOpen}
	}
	b.failureCount = 0
	return StateChange{From: b.state, To: b.state}
}

func (b *Breaker) transition(to State) StateChange {
	change := StateChange{From: b.state, To: to}
	b.state = to
	return change
}

func (b *Breaker) notify(change StateChange) {
	if b.onChange != nil && change.Changed() {
		b.onChange(b.name, change)
	}
}

// Package resilience guards the remote backends RealTalk depends on.
//
// A [Breaker] stops hammering a recognizer or translation backend that keeps
// failing, and a [Chain] walks an ordered list of backends, each behind its own
// breaker, until one answers. Both are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Do] while the breaker is rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls until the cool-down has elapsed.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through.
	StateHalfOpen
)

// String returns "closed", "open" or "half-open".
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

// BreakerConfig tunes a [Breaker]. Zero fields take defaults.
type BreakerConfig struct {
	// Name labels log lines, usually the backend name.
	Name string

	// Threshold is the number of consecutive failures that opens the breaker.
	// Default: 5.
	Threshold int

	// CoolDown is how long the breaker stays open. Default: 30s.
	CoolDown time.Duration

	// Probes is the number of successful half-open calls needed to close
	// again. Default: 1.
	Probes int
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.Threshold <= 0 {
		c.Threshold = 5
	}
	if c.CoolDown <= 0 {
		c.CoolDown = 30 * time.Second
	}
	if c.Probes <= 0 {
		c.Probes = 1
	}
	return c
}

// Breaker is a consecutive-failure circuit breaker.
type Breaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	inFlight  int
	successes int
}

// NewBreaker returns a closed [Breaker].
func NewBreaker(cfg BreakerConfig) *Breaker {
	return &Breaker{cfg: cfg.withDefaults(), now: time.Now}
}

// Do runs fn unless the breaker is open. The error returned by fn is passed
// through unchanged and counted as a failure when non-nil.
func (b *Breaker) Do(fn func() error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	err = fn()
	b.record(probe, err)
	return err
}

func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cfg.CoolDown {
			return false, ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.inFlight = 0
		b.successes = 0
		slog.Info("circuit breaker half-open", "name", b.cfg.Name)
	}
	if b.state == StateHalfOpen {
		if b.inFlight+b.successes >= b.cfg.Probes {
			return false, ErrCircuitOpen
		}
		b.inFlight++
		return true, nil
	}
	return false, nil
}

func (b *Breaker) record(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.inFlight--
		if b.state != StateHalfOpen {
			return
		}
		if err != nil {
			b.trip()
			return
		}
		b.successes++
		if b.successes >= b.cfg.Probes {
			b.state = StateClosed
			b.failures = 0
			slog.Info("circuit breaker closed", "name", b.cfg.Name)
		}
		return
	}

	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.state == StateClosed && b.failures >= b.cfg.Threshold {
		b.trip()
	}
}

// trip opens the breaker. Must be called with b.mu held.
func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	slog.Warn("circuit breaker opened", "name", b.cfg.Name, "consecutive_failures", b.failures)
}

// State returns the current state. An open breaker whose cool-down has passed
// reports [StateHalfOpen]; the transition itself happens on the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.CoolDown {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.inFlight = 0
	b.successes = 0
}

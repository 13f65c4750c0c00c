// Package breaker implements the circuit breaker that gates calls to
// unhealthy downstream dependencies.  The breaker owns a three-state
// machine (closed, open, half-open); state lives only in memory and resets
// on process restart.
package breaker

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrCircuitOpen is returned by Execute when the breaker is open.  The
// wrapped function is not invoked.  Handlers should translate it into a
// service-unavailable response; the breaker itself never retries.
var ErrCircuitOpen = errors.New("circuit breaker open")

// State represents the state of a circuit breaker.
type State int

const (
	// StateClosed - normal operation, calls pass through
	StateClosed State = iota
	// StateOpen - failing, calls rejected without touching the dependency
	StateOpen
	// StateHalfOpen - one trial call probing for recovery
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

// Config configures breaker behavior.
type Config struct {
	FailMax      int           // consecutive failures that open the circuit
	ResetTimeout time.Duration // how long the circuit stays open
	// ShouldTrip classifies errors.  Only errors for which it returns
	// true count toward FailMax; caller input mistakes must not open the
	// circuit.  Nil means every non-nil error counts.
	ShouldTrip func(error) bool
}

// DefaultConfig returns the thresholds the service ships with.
func DefaultConfig() Config {
	return Config{FailMax: 3, ResetTimeout: 30 * time.Second}
}

// Breaker is safe for concurrent use from multiple request-handling
// goroutines; all transitions happen under one mutex.
type Breaker struct {
	name   string
	cfg    Config
	logger *zap.Logger

	mu            sync.Mutex
	state         State
	failures      int
	reopenAt      time.Time
	trialInFlight bool

	now func() time.Time // injectable clock for tests
}

// New creates a breaker.  A nil logger is replaced with a no-op logger.
func New(name string, cfg Config, logger *zap.Logger) *Breaker {
	if cfg.FailMax <= 0 {
		cfg.FailMax = 3
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{
		name:   name,
		cfg:    cfg,
		logger: logger.With(zap.String("breaker", name)),
		state:  StateClosed,
		now:    time.Now,
	}
}

// Execute wraps a call to a dependency.  When the circuit is open it fails
// fast with ErrCircuitOpen without invoking fn; otherwise it runs fn to
// completion and records the outcome.  The half-open state admits exactly
// one trial call; concurrent callers are rejected until the trial settles.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}
	err := fn()
	b.afterCall(err)
	return err
}

// State returns the current state, promoting open to half-open when the
// reopen deadline has passed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && !b.now().Before(b.reopenAt) {
		return StateHalfOpen
	}
	return b.state
}

func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Before(b.reopenAt) {
			return ErrCircuitOpen
		}
		// Reset timeout elapsed; admit a single trial call.
		b.state = StateHalfOpen
		b.trialInFlight = true
		b.logger.Info("circuit half-open, probing dependency")
		return nil
	case StateHalfOpen:
		if b.trialInFlight {
			return ErrCircuitOpen
		}
		b.trialInFlight = true
		return nil
	}
	return ErrCircuitOpen
}

func (b *Breaker) afterCall(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := err != nil
	if failed && b.cfg.ShouldTrip != nil {
		failed = b.cfg.ShouldTrip(err)
	}

	switch b.state {
	case StateClosed:
		if !failed {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.cfg.FailMax {
			b.open()
		}
	case StateHalfOpen:
		b.trialInFlight = false
		if failed {
			// Trial failed: re-arm the open state.
			b.open()
			return
		}
		b.state = StateClosed
		b.failures = 0
		b.logger.Info("circuit closed, dependency recovered")
	case StateOpen:
		// A call admitted before the circuit opened finished late; its
		// outcome no longer changes the state.
	}
}

func (b *Breaker) open() {
	b.state = StateOpen
	b.reopenAt = b.now().Add(b.cfg.ResetTimeout)
	b.logger.Warn("circuit opened",
		zap.Int("failures", b.failures),
		zap.Time("reopen_at", b.reopenAt))
}

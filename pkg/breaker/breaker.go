package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State of a breaker.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned without invoking the operation while the breaker is open.
var ErrOpen = errors.New("circuit breaker is open")

// Config tunes a breaker. MaxFailures <= 0 disables tripping.
type Config struct {
	MaxFailures  int
	ResetTimeout time.Duration
	Logger       *zap.Logger
}

// Breaker fails fast after MaxFailures consecutive errors and lets one trial
// call through once ResetTimeout has elapsed.
type Breaker struct {
	name string
	cfg  Config
	now  func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
}

// New constructs a closed breaker.
func New(name string, cfg Config) *Breaker {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Breaker{name: name, cfg: cfg, now: time.Now}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs op unless the breaker is open. Errors that arrive after the
// caller's ctx is done are not held against the dependency.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if !b.allow() {
		return ErrOpen
	}
	err := op(ctx)
	if err != nil {
		if ctx.Err() != nil {
			b.onAbandon()
			return err
		}
		b.onFailure(err)
		return err
	}
	b.onSuccess()
	return nil
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return false
		}
		b.state = HalfOpen
		b.cfg.Logger.Info("breaker half-open", zap.String("breaker", b.name))
		return true
	case HalfOpen:
		// a trial call is already in flight
		return false
	default:
		return true
	}
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Closed {
		b.cfg.Logger.Info("breaker closed", zap.String("breaker", b.name), zap.String("from", b.state.String()))
	}
	b.state = Closed
	b.failures = 0
}

// onAbandon releases a half-open trial without judging it; the next call
// becomes the trial.
func (b *Breaker) onAbandon() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == HalfOpen {
		b.state = Open
	}
}

func (b *Breaker) onFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.cfg.MaxFailures <= 0 {
		return
	}
	if b.state == HalfOpen || b.failures >= b.cfg.MaxFailures {
		b.state = Open
		b.openedAt = b.now()
		b.cfg.Logger.Warn("breaker opened",
			zap.String("breaker", b.name),
			zap.Int("failures", b.failures),
			zap.Error(err),
		)
	}
}

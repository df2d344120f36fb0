// Package breaker guards calls to remote collaborators (LLM providers,
// speech-to-text, the Telegram Bot API) with a circuit breaker.
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen is returned without calling the remote service while the circuit
// is open, or while half-open and the probe budget is used up.
var ErrOpen = errors.New("circuit breaker is open")

// Config tunes a Breaker. Zero fields take the defaults of DefaultConfig.
type Config struct {
	// Consecutive failures that open the circuit.
	MaxFailures uint32
	// How long the circuit stays open before letting probes through.
	OpenTimeout time.Duration
	// Successful probes needed to close a half-open circuit.
	HalfOpenSuccesses uint32
}

// DefaultConfig is 3 failures, 30s open, 2 probes.
func DefaultConfig() Config {
	return Config{MaxFailures: 3, OpenTimeout: 30 * time.Second, HalfOpenSuccesses: 2}
}

// Stats are cumulative call counters.
type Stats struct {
	Calls               uint64
	Failures            uint64
	Rejected            uint64
	ConsecutiveFailures uint32
}

// Breaker is a named circuit breaker.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker

	calls    atomic.Uint64
	failures atomic.Uint64
	rejected atomic.Uint64
}

// New creates a breaker. State changes are logged with logger (slog.Default
// when nil).
func New(name string, cfg Config, logger *slog.Logger) *Breaker {
	def := DefaultConfig()
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.HalfOpenSuccesses == 0 {
		cfg.HalfOpenSuccesses = def.HalfOpenSuccesses
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Breaker{name: name}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenSuccesses,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up is not a failure of the remote side.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return b
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.name }

// State returns "closed", "half-open" or "open".
func (b *Breaker) State() string { return b.cb.State().String() }

// Stats returns a snapshot of the counters.
func (b *Breaker) Stats() Stats {
	return Stats{
		Calls:               b.calls.Load(),
		Failures:            b.failures.Load(),
		Rejected:            b.rejected.Load(),
		ConsecutiveFailures: b.cb.Counts().ConsecutiveFailures,
	}
}

// Do runs fn through the breaker. A context that is already done is
// returned as is without touching the circuit.
func Do[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	b.calls.Add(1)

	out, err := b.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			b.rejected.Add(1)
			return zero, ErrOpen
		}
		b.failures.Add(1)
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}

// Run is Do for calls with no result.
func Run(ctx context.Context, b *Breaker, fn func(context.Context) error) error {
	_, err := Do(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

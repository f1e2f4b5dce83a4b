package sinks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"github.com/thipowin/ThipoSelf/internal/commenter"
	"github.com/thipowin/ThipoSelf/pkg/logging"
)

// BreakerConfig tunes the circuit breaker in front of a sink.
type BreakerConfig struct {
	// Name identifies the sink in logs
	Name string

	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold uint

	// Delay is how long the circuit stays open before a trial delivery.
	Delay time.Duration

	Logger logging.Logger
}

// DefaultBreakerConfig opens after 3 straight failures for 30 seconds.
func DefaultBreakerConfig(name string, logger logging.Logger) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		FailureThreshold: 3,
		Delay:            30 * time.Second,
		Logger:           logger,
	}
}

// Breaker skips a sink that keeps failing so every report does not pay its timeout.
type Breaker struct {
	next commenter.Sink
	cb   circuitbreaker.CircuitBreaker[any]
	name string
}

// WithBreaker wraps next in a circuit breaker.
func WithBreaker(next commenter.Sink, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 30 * time.Second
	}

	builder := circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(cfg.FailureThreshold).
		WithDelay(cfg.Delay).
		WithSuccessThreshold(1)

	if cfg.Logger != nil {
		builder = builder.OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			cfg.Logger.WithFields(logging.Fields{
				"sink":       cfg.Name,
				"from_state": stateName(event.OldState),
				"to_state":   stateName(event.NewState),
			}).Warn("Report sink circuit breaker state change")
		})
	}

	return &Breaker{next: next, cb: builder.Build(), name: cfg.Name}
}

func (b *Breaker) Deliver(ctx context.Context, r commenter.Report) error {
	err := failsafe.With[any](b.cb).WithContext(ctx).Run(func() error {
		return b.next.Deliver(ctx, r)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%s sink paused after repeated failures: %w", b.name, err)
	}
	return err
}

// Open reports whether deliveries are currently being skipped.
func (b *Breaker) Open() bool {
	return b.cb.IsOpen()
}

func stateName(s circuitbreaker.State) string {
	switch s {
	case circuitbreaker.ClosedState:
		return "closed"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	case circuitbreaker.OpenState:
		return "open"
	default:
		return "unknown"
	}
}

package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Retryable reports whether a failed call is worth another attempt.
// Every error counts against the breaker regardless of retryability.
type Retryable func(err error) bool

// Executor wraps outbound calls with bounded exponential backoff and a
// per-operation circuit breaker so a dead dependency fails fast instead
// of stalling every pipeline job behind it.
type Executor struct {
	policy Policy

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(policy Policy) *Executor {
	return &Executor{
		policy:   policy.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

func (e *Executor) Do(ctx context.Context, operation string, call func(context.Context) error, retryable Retryable) error {
	if call == nil {
		return fmt.Errorf("resilience: call is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if retryable == nil {
		retryable = func(error) bool { return false }
	}

	if !e.policy.BreakerEnabled {
		return e.withRetry(ctx, op, call, retryable)
	}

	breaker := e.breaker(op)
	_, err := breaker.Execute(func() (any, error) {
		return nil, e.withRetry(ctx, op, call, retryable)
	})
	return err
}

func (e *Executor) withRetry(ctx context.Context, operation string, call func(context.Context) error, retryable Retryable) error {
	delay := e.policy.BaseDelay

	var err error
	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = call(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) || attempt == e.policy.MaxAttempts {
			return err
		}

		slog.Warn("retry_attempt",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", e.policy.MaxAttempts,
			"delay_ms", delay.Milliseconds(),
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * e.policy.Multiplier)
		if delay > e.policy.MaxDelay {
			delay = e.policy.MaxDelay
		}
	}
	return err
}

func (e *Executor) breaker(operation string) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.policy.BreakerProbeCalls,
		Timeout:     e.policy.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.policy.BreakerMinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= e.policy.BreakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	}

	breaker := gobreaker.NewCircuitBreaker[any](settings)
	e.breakers[operation] = breaker
	return breaker
}

// IsCircuitOpen distinguishes a fast-failed call from a real backend
// error, so callers can skip logging the underlying cause again.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

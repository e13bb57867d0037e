// Package retry wraps fallible operations with exponential backoff. The
// wait before attempt n is min(factor^n, max_wait) seconds; exhaustion
// either surfaces the last error (hard mode) or falls back to a caller
// supplied value (soft mode).
package retry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Exhaustion handling modes.
const (
	ModeSoft = "soft"
	ModeHard = "hard"
)

// ErrExhausted marks a hard-mode failure after every retry was consumed.
var ErrExhausted = errors.New("retries exhausted")

// Policy defaults.
const (
	DefaultMaxRetries    = 3
	DefaultBackoffFactor = 2.0
	DefaultMaxWait       = 30 * time.Second
)

// Policy configures one wrapped operation. The zero value selects the
// defaults with hard-mode exhaustion.
type Policy struct {
	// MaxRetries counts retries after the first attempt; an operation
	// runs at most MaxRetries+1 times.
	MaxRetries int

	// BackoffFactor sets the wait curve: factor^attempt seconds.
	BackoffFactor float64

	// MaxWait caps a single wait.
	MaxWait time.Duration

	// Mode picks what exhaustion returns: ModeHard surfaces the last
	// error wrapped in ErrExhausted, ModeSoft returns the fallback.
	Mode string

	// Classify reports whether an error is worth retrying. Nil retries
	// everything.
	Classify func(error) bool
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.BackoffFactor <= 1 {
		p.BackoffFactor = DefaultBackoffFactor
	}
	if p.MaxWait <= 0 {
		p.MaxWait = DefaultMaxWait
	}
	if p.Mode == "" {
		p.Mode = ModeHard
	}
	return p
}

// newExponential builds the deterministic wait schedule for a policy.
func newExponential(p Policy) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(p.BackoffFactor * float64(time.Second))
	b.Multiplier = p.BackoffFactor
	b.MaxInterval = p.MaxWait
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	if b.InitialInterval > b.MaxInterval {
		b.InitialInterval = b.MaxInterval
	}
	b.Reset()
	return b
}

// Do runs op under the policy. Every failure is logged with the attempt
// count and the wait before the next try. Context cancellation always
// propagates as an error, even in soft mode.
func Do[T any](ctx context.Context, p Policy, logger *log.Logger, name string, op func(context.Context) (T, error), fallback T) (T, error) {
	p = p.withDefaults()
	if logger == nil {
		logger = log.Default()
	}

	attempt := 0
	refused := false
	operation := func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if p.Classify != nil && !p.Classify(err) {
			refused = true
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	notify := func(err error, wait time.Duration) {
		logger.Printf("retry: %s attempt %d failed: %v (next attempt in %s)", name, attempt, err, wait)
	}

	schedule := backoff.WithContext(backoff.WithMaxRetries(newExponential(p), uint64(p.MaxRetries)), ctx)
	v, err := backoff.RetryNotifyWithData(operation, schedule, notify)
	if err == nil {
		return v, nil
	}

	var zero T
	switch {
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return zero, fmt.Errorf("%s: %w", name, err)
	case refused:
		logger.Printf("retry: %s not retryable: %v", name, err)
		if p.Mode == ModeSoft {
			return fallback, nil
		}
		return zero, fmt.Errorf("%s: %w", name, err)
	default:
		logger.Printf("retry: %s exhausted after %d attempts: %v", name, attempt, err)
		if p.Mode == ModeSoft {
			return fallback, nil
		}
		return zero, fmt.Errorf("%s: %w after %d attempts: %w", name, ErrExhausted, attempt, err)
	}
}

// Run wraps an operation with no result value.
func Run(ctx context.Context, p Policy, logger *log.Logger, name string, op func(context.Context) error) error {
	_, err := Do(ctx, p, logger, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, struct{}{})
	return err
}

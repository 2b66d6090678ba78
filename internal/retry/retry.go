// Package retry runs an operation again while it fails with a transient error, waiting
// with exponential backoff between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned when every allowed attempt failed transiently.
var ErrExhausted = errors.New("retry attempts exhausted")

const (
	DefaultMaxAttempts = 100
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 30 * time.Second
	DefaultMultiplier  = 2.0
)

type Policy struct {
	// MaxAttempts counts the first call, 0 means DefaultMaxAttempts.
	MaxAttempts int
	// Forever ignores MaxAttempts, it has to be asked for explicitly.
	Forever    bool
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Multiplier:  DefaultMultiplier,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return p
}

// Delay is the wait before the attempt following the given one (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	delay := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= p.Multiplier
		if delay >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

type transientError struct {
	err error
}

func (e transientError) Error() string {
	return e.err.Error()
}

func (e transientError) Unwrap() error {
	return e.err
}

// Transient marks an error as worth retrying.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{err: err}
}

func IsTransient(err error) bool {
	var t transientError
	return errors.As(err, &t)
}

// Do calls fn until it succeeds, returns a non-transient error, the policy runs out of
// attempts or ctx is done. fn receives the 1-based attempt number.
func Do[T any](ctx context.Context, policy Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	policy = policy.withDefaults()

	var zero T
	var lastErr error
	for attempt := 1; policy.Forever || attempt <= policy.MaxAttempts; attempt++ {
		err := ctx.Err()
		if err != nil {
			return zero, err
		}

		value, err := fn(ctx, attempt)
		if err == nil {
			return value, nil
		}
		if !IsTransient(err) {
			return zero, err
		}
		lastErr = err

		if !policy.Forever && attempt == policy.MaxAttempts {
			break
		}

		timer := time.NewTimer(policy.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, policy.MaxAttempts, lastErr)
}

// Package retry runs an operation again when it fails with an error the caller classifies
// as transient. Attempts follow each other immediately.
package retry

import (
	"context"
	"errors"
)

// DefaultMaxAttempts is used when a Policy does not set MaxAttempts
const DefaultMaxAttempts = 3

// Policy bounds a retry loop
type Policy struct {
	// MaxAttempts counts the first call; values below 1 fall back to DefaultMaxAttempts
	MaxAttempts int
	// IsTransient decides whether an error is worth another attempt. Nil retries nothing.
	IsTransient func(error) bool
	// OnRetry is called before each repeated attempt with the failed attempt number
	OnRetry func(attempt int, err error)
	// OnExhausted is called once when the last attempt fails with a transient error
	OnExhausted func(attempts int, err error)
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

// Do calls fn until it succeeds, fails permanently or runs out of attempts. The error of
// the final attempt is returned unchanged. ctx is checked between attempts only; an
// attempt already running is never interrupted.
func Do(ctx context.Context, p Policy, fn func(attempt int) error) error {
	_, err := DoValue(ctx, p, func(attempt int) (struct{}, error) {
		return struct{}{}, fn(attempt)
	})
	return err
}

// DoValue is Do for operations that produce a result
func DoValue[T any](ctx context.Context, p Policy, fn func(attempt int) (T, error)) (T, error) {
	limit := p.attempts()
	for attempt := 1; ; attempt++ {
		v, err := fn(attempt)
		if err == nil {
			return v, nil
		}
		if p.IsTransient == nil || !p.IsTransient(err) {
			return v, err
		}
		if attempt >= limit {
			if p.OnExhausted != nil {
				p.OnExhausted(attempt, err)
			}
			return v, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return v, errors.Join(ctxErr, err)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
	}
}

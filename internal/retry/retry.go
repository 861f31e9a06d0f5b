// Package retry runs an operation a bounded number of times with a linearly
// growing pause between attempts.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds a retry loop
type Policy struct {
	// MaxAttempts counts the first call. Values below 1 mean a single attempt.
	MaxAttempts int
	// Delay is the base pause; the wait before attempt k (zero-based) is k*Delay
	Delay time.Duration
	// OnFailure is called after every failed attempt, including the last one
	OnFailure func(attempt int, err error)
}

// Default is three attempts with waits of 1s and 2s
var Default = Policy{MaxAttempts: 3, Delay: time.Second}

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls fn until it returns nil, the attempts run out, fn returns a
// Permanent error or ctx is cancelled. fn receives the zero-based attempt.
// The error of the last attempt, or the context error, is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	op := func() error {
		err := fn(ctx, attempt)
		if err != nil && p.OnFailure != nil {
			p.OnFailure(attempt, unwrapPermanent(err))
		}
		attempt++
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(&linear{base: p.Delay}, uint64(attempts-1)), ctx)
	return backoff.Retry(op, b)
}

// linear yields base, 2*base, 3*base, ...
type linear struct {
	base time.Duration
	n    int
}

func (l *linear) NextBackOff() time.Duration {
	l.n++
	return time.Duration(l.n) * l.base
}

func (l *linear) Reset() { l.n = 0 }

func unwrapPermanent(err error) error {
	var p *backoff.PermanentError
	if errors.As(err, &p) {
		return p.Err
	}
	return err
}

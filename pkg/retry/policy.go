// Package retry polls an operation until it leaves the pending state, bounded by an attempt
// cap and a hard timeout.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-faster/errors"
)

type Mode string

const (
	ModeExponential Mode = "exponential"
	ModeFixed       Mode = "fixed"
)

var (
	ErrExhausted     = errors.New("retry: attempts exhausted while pending")
	ErrTimeout       = errors.New("retry: timeout while pending")
	ErrInvalidPolicy = errors.New("retry: invalid policy")
)

type Policy struct {
	Mode Mode
	// BaseDelay is the first delay in exponential mode and every delay in fixed mode.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// MaxAttempts counts calls of the polled function, the first one included.
	MaxAttempts int
	// Timeout bounds the whole poll, sleeps included. Zero disables it.
	Timeout   time.Duration
	JitterMax time.Duration

	Rand *rand.Rand
	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (p *Policy) setDefaults() {
	if p.Mode == "" {
		p.Mode = ModeExponential
	}
	if p.BaseDelay == 0 {
		p.BaseDelay = 1 * time.Second
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = 60 * time.Second
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 10
	}
	if p.Rand == nil && p.JitterMax > 0 {
		p.Rand = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec
	}
	if p.Sleep == nil {
		p.Sleep = sleep
	}
}

func (p Policy) Validate() error {
	if p.Mode != "" && p.Mode != ModeExponential && p.Mode != ModeFixed {
		return invalidPolicy("unknown mode %q", p.Mode)
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 || p.Timeout < 0 || p.JitterMax < 0 {
		return invalidPolicy("durations must not be negative")
	}
	if p.MaxAttempts < 0 {
		return invalidPolicy("max attempts must not be negative")
	}
	if p.MaxDelay > 0 && p.BaseDelay > p.MaxDelay {
		return invalidPolicy("base delay %s exceeds max delay %s", p.BaseDelay, p.MaxDelay)
	}
	return nil
}

// Delay returns the wait before attempt number attempts+1.
func (p Policy) Delay(attempts int) time.Duration {
	var d time.Duration
	switch p.Mode {
	case ModeFixed:
		d = p.BaseDelay
	default:
		d = exponential(attempts, p.BaseDelay, p.MaxDelay)
	}
	return d + jitter(p.Rand, p.JitterMax)
}

// Poll calls fn until it returns a final result, an error, or the policy gives up.
// It returns the final value and the number of calls made. When the policy gives up the
// error is ErrExhausted or ErrTimeout.
func Poll[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (Result[T], error)) (T, int, error) {
	var zero T
	if err := p.Validate(); err != nil {
		return zero, 0, err
	}
	p.setDefaults()

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	attempts := 0
	for {
		attempts++
		res, err := fn(ctx, attempts)
		if err != nil {
			if p.Timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return zero, attempts, ErrTimeout
			}
			return zero, attempts, err
		}
		if !res.IsPending() {
			return res.Value(), attempts, nil
		}
		if attempts >= p.MaxAttempts {
			return zero, attempts, ErrExhausted
		}
		if err := p.Sleep(ctx, p.Delay(attempts)); err != nil {
			if p.Timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
				return zero, attempts, ErrTimeout
			}
			return zero, attempts, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func invalidPolicy(msg string, args ...any) error {
	return fmt.Errorf("%w: "+msg, append([]any{ErrInvalidPolicy}, args...)...)
}

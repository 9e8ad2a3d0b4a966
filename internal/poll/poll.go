// Package poll runs a check repeatedly until it reports done, with bounded
// backoff, an overall timeout, an attempt cap and context cancellation.
package poll

import (
	"context"
	"errors"
	"math"
	"time"
)

var (
	// ErrTimeout is returned when Config.Timeout elapses first.
	ErrTimeout = errors.New("poll: timed out")
	// ErrExhausted is returned when Config.MaxAttempts checks all reported not-done.
	ErrExhausted = errors.New("poll: attempts exhausted")
)

type Config struct {
	Interval    time.Duration // 第一次重试前的等待时间
	MaxInterval time.Duration // 退避上限, 0 表示不设上限
	Multiplier  float64       // < 1 视为 1 (固定间隔)
	Timeout     time.Duration // 0 表示只受 ctx 控制
	MaxAttempts int           // 0 表示不限次数
	WaitFirst   bool          // 第一次检查前也等待 Interval
}

// Delay returns the wait before retry n (1-based).
func (c Config) Delay(n int) time.Duration {
	if c.Interval <= 0 {
		return 0
	}
	mult := c.Multiplier
	if mult < 1.0 {
		mult = 1.0
	}
	if n < 1 {
		n = 1
	}
	delay := float64(c.Interval) * math.Pow(mult, float64(n-1))
	if c.MaxInterval > 0 && delay > float64(c.MaxInterval) {
		delay = float64(c.MaxInterval)
	}
	return time.Duration(delay)
}

// Func performs one check. done=true stops polling and returns v.
// A non-nil error aborts polling immediately.
type Func[T any] func(ctx context.Context, attempt int) (v T, done bool, err error)

// Until calls fn until it reports done, fails, or cfg's bounds are hit.
func Until[T any](ctx context.Context, cfg Config, fn Func[T]) (T, error) {
	var zero T

	parent := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	for attempt := 1; ; attempt++ {
		if attempt > 1 || cfg.WaitFirst {
			wait := cfg.Interval
			if attempt > 1 {
				wait = cfg.Delay(attempt - 1)
			}
			if err := sleep(ctx, wait); err != nil {
				return zero, stopReason(parent, err)
			}
		}

		v, done, err := fn(ctx, attempt)
		if err != nil {
			if ctx.Err() != nil {
				return zero, stopReason(parent, ctx.Err())
			}
			return zero, err
		}
		if done {
			return v, nil
		}
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return zero, ErrExhausted
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// stopReason separates our own timeout from the caller cancelling.
func stopReason(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

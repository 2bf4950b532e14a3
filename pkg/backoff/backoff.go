// Package backoff paces polling loops. It yields checkpoints to the
// consumer and sleeps between them, doubling the sleep up to a ceiling
// while never overshooting the caller's wall-clock budget.
package backoff

import (
	"context"
	"iter"
	"time"
)

// Defaults applied by Wait.
const (
	DefaultInitialDelay = 100 * time.Millisecond
	DefaultMaxDelay     = 1 * time.Second
)

// Wait is WaitWith using the package default delays.
func Wait(ctx context.Context, timeout time.Duration) iter.Seq2[int, time.Duration] {
	return WaitWith(ctx, timeout, DefaultInitialDelay, DefaultMaxDelay)
}

// WaitWith returns an iterator of (attempt, elapsed) pairs for pacing a
// polling loop. Each pair is yielded before any sleep, so the consumer
// acts first and the pause happens once control returns. Sleeps start at
// initialDelay, double each round, and are capped at maxDelay and at the
// time remaining in the budget.
//
// A timeout <= 0 means no deadline: the iterator only stops when the
// consumer breaks or ctx is cancelled. With a positive timeout the
// iterator yields one final pair whose elapsed exceeds the timeout, then
// stops on its own; the consumer is expected to treat falling out of the
// loop without success as a timeout.
func WaitWith(ctx context.Context, timeout, initialDelay, maxDelay time.Duration) iter.Seq2[int, time.Duration] {
	return func(yield func(int, time.Duration) bool) {
		start := time.Now()
		// Doubled before the first sleep, so the first pause is initialDelay.
		delay := initialDelay / 2

		for attempt := 0; ; attempt++ {
			elapsed := time.Since(start)
			if !yield(attempt, elapsed) {
				return
			}
			if timeout > 0 && elapsed > timeout {
				return
			}

			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
			sleep := delay
			if timeout > 0 {
				if remaining := timeout - time.Since(start); remaining < sleep {
					sleep = remaining
				}
			}
			if sleep > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(sleep):
				}
			}
		}
	}
}

package index

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy is a bounded retry with exponential backoff. Between failed
// attempts a recovery action runs (in practice: reconnecting the backend).
// Only the final attempt's error is surfaced.
type RetryPolicy struct {
	Attempts       int
	InitialBackoff time.Duration

	// Sleep is swappable in tests; nil means a real context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy mirrors the store's historical tuning: three attempts,
// one second initial backoff, doubling each attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, InitialBackoff: time.Second}
}

// Do runs op until it succeeds or attempts are exhausted. After each failed
// attempt but the last it sleeps the current backoff, doubles it, and runs
// the recovery action.
func (p RetryPolicy) Do(ctx context.Context, op func() error, recover func()) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := p.InitialBackoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		slog.Warn("batch flush failed", "attempt", attempt, "max_attempts", attempts, "error", err)

		if attempt == attempts {
			break
		}
		if serr := p.sleep(ctx, backoff); serr != nil {
			return serr
		}
		backoff *= 2
		if recover != nil {
			recover()
		}
	}
	return err
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
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

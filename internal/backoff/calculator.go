package backoff

import (
	"context"
	"time"
)

// Config describes the pause inserted between repeat attempts.
// The zero value disables pausing.
type Config struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
	Strategy   Strategy
}

// Enabled reports whether the config produces any delay at all.
func (c Config) Enabled() bool {
	return c.Initial > 0
}

// Delay returns the pause before repeat attempt n (zero-based).
func (c Config) Delay(attempt int) time.Duration {
	if !c.Enabled() {
		return 0
	}
	cfg := c
	if cfg.Max < cfg.Initial {
		cfg.Max = cfg.Initial
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2
	}
	strategy := cfg.Strategy
	if strategy == nil {
		strategy = Exponential{}
	}
	return strategy.Delay(attempt, cfg)
}

// Sleep waits for Delay(attempt) or until ctx is done, whichever comes
// first. It reports false when ctx ended the wait.
func (c Config) Sleep(ctx context.Context, attempt int) bool {
	delay := c.Delay(attempt)
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

package backoff

import (
	"math/rand"
	"time"
)

// Strategy turns a zero-based repeat attempt into a delay.
type Strategy interface {
	Delay(attempt int, cfg Config) time.Duration
}

// Exponential grows the delay by Config.Multiplier per attempt and adds up to
// Config.Jitter of uniform noise, capped at Config.Max.
type Exponential struct{}

// Delay implements Strategy.
func (Exponential) Delay(attempt int, cfg Config) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}

	delay := time.Duration(float64(cfg.Initial) * pow(cfg.Multiplier, attempt))
	if delay < 0 || delay > cfg.Max {
		delay = cfg.Max
	}

	jitter := clampJitter(cfg.Jitter)
	if jitter > 0 {
		extra := time.Duration(float64(delay) * jitter * rand.Float64())
		if delay+extra > cfg.Max {
			return cfg.Max
		}
		delay += extra
	}
	return delay
}

// Decorrelated picks a random delay between Config.Initial and
// min(Config.Max, Initial*3^attempt).
type Decorrelated struct{}

// Delay implements Strategy.
func (Decorrelated) Delay(attempt int, cfg Config) time.Duration {
	if attempt <= 0 {
		return cfg.Initial
	}
	if attempt > 10 {
		attempt = 10
	}

	base := float64(cfg.Initial)
	upper := base * pow(3.0, attempt)
	if limit := float64(cfg.Max); upper > limit || upper < 0 {
		upper = limit
	}
	if upper < base {
		upper = base
	}

	delay := time.Duration(base + rand.Float64()*(upper-base))
	if delay < 0 || delay > cfg.Max {
		delay = cfg.Max
	}
	return delay
}

func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}

package backoff

import (
	"testing"
	"time"
)

func TestExponential(t *testing.T) {
	tests := []struct {
		name     string
		attempt  int
		cfg      Config
		expected time.Duration
	}{
		{
			name:     "attempt 0",
			attempt:  0,
			cfg:      Config{Initial: 100 * time.Millisecond, Max: 5 * time.Second, Multiplier: 2},
			expected: 100 * time.Millisecond,
		},
		{
			name:     "attempt 2",
			attempt:  2,
			cfg:      Config{Initial: 100 * time.Millisecond, Max: 5 * time.Second, Multiplier: 2},
			expected: 400 * time.Millisecond,
		},
		{
			name:     "capped at max",
			attempt:  10,
			cfg:      Config{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2},
			expected: time.Second,
		},
		{
			name:     "negative attempt",
			attempt:  -3,
			cfg:      Config{Initial: 50 * time.Millisecond, Max: time.Second, Multiplier: 2},
			expected: 50 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Exponential{}.Delay(tt.attempt, tt.cfg)
			if got != tt.expected {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestExponentialJitterStaysInRange(t *testing.T) {
	cfg := Config{Initial: 100 * time.Millisecond, Max: 10 * time.Second, Multiplier: 2, Jitter: 0.5}
	for i := 0; i < 100; i++ {
		got := Exponential{}.Delay(1, cfg)
		if got < 200*time.Millisecond || got > 300*time.Millisecond {
			t.Fatalf("Delay(1) = %v, want within [200ms, 300ms]", got)
		}
	}
}

func TestDecorrelated(t *testing.T) {
	cfg := Config{Initial: 100 * time.Millisecond, Max: 2 * time.Second, Multiplier: 2}

	if got := (Decorrelated{}).Delay(0, cfg); got != cfg.Initial {
		t.Errorf("Delay(0) = %v, want %v", got, cfg.Initial)
	}

	for attempt := 1; attempt < 15; attempt++ {
		got := Decorrelated{}.Delay(attempt, cfg)
		if got < cfg.Initial || got > cfg.Max {
			t.Errorf("Delay(%d) = %v, want within [%v, %v]", attempt, got, cfg.Initial, cfg.Max)
		}
	}
}

func TestClampJitter(t *testing.T) {
	cases := map[float64]float64{-1: 0, 0: 0, 0.3: 0.3, 1: 1, 4: 1}
	for in, want := range cases {
		if got := clampJitter(in); got != want {
			t.Errorf("clampJitter(%v) = %v, want %v", in, got, want)
		}
	}
}

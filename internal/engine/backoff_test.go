package engine

import (
	"testing"
	"time"
)

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 10 * time.Second, Multiplier: 2}

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second, // capped
		10 * time.Second,
	}
	for attempt, w := range want {
		if got := b.Delay(attempt); got != w {
			t.Fatalf("Delay(%d) = %s, want %s", attempt, got, w)
		}
	}
}

func TestBackoffStrictlyIncreasingUntilCap(t *testing.T) {
	b := Backoff{Initial: 250 * time.Millisecond, Max: 30 * time.Second, Multiplier: 1.5}

	prev := time.Duration(0)
	for attempt := 0; attempt < 8; attempt++ {
		d := b.Delay(attempt)
		if d <= prev {
			t.Fatalf("Delay(%d) = %s, not increasing (prev %s)", attempt, d, prev)
		}
		if d > b.Max {
			t.Fatalf("Delay(%d) = %s exceeds cap %s", attempt, d, b.Max)
		}
		prev = d
	}
}

func TestBackoffFlatMultiplier(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 5 * time.Second, Multiplier: 1}
	for attempt := 0; attempt < 4; attempt++ {
		if got := b.Delay(attempt); got != time.Second {
			t.Fatalf("Delay(%d) = %s, want 1s", attempt, got)
		}
	}
}

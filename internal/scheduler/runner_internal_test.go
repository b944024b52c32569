package scheduler

import (
	"context"
	"testing"
	"time"

	"gigalert/discovery-service/internal/logger"
)

func TestNextSleep_StaysWithinBounds(t *testing.T) {
	cases := []struct {
		name           string
		minSleep       time.Duration
		maxSleep       time.Duration
		wantLo, wantHi time.Duration
	}{
		{"range", 2 * time.Minute, 5 * time.Minute, 2 * time.Minute, 5 * time.Minute},
		{"narrow", time.Second, time.Second + time.Nanosecond, time.Second, time.Second + time.Nanosecond},
		{"fixed", time.Minute, time.Minute, time.Minute, time.Minute},
		{"max below min is clamped", 5 * time.Minute, time.Minute, 5 * time.Minute, 5 * time.Minute},
		{"zero", 0, 0, 0, 0},
	}
	for _, c := range cases {
		r := NewRunner(context.Background(), nil, c.minSleep, c.maxSleep, logger.NewNop())
		for range 500 {
			got := r.nextSleep()
			if got < c.wantLo || got > c.wantHi {
				t.Fatalf("%s: nextSleep() = %s, want within [%s, %s]", c.name, got, c.wantLo, c.wantHi)
			}
		}
	}
}

func TestNextSleep_UsesTheRange(t *testing.T) {
	r := NewRunner(context.Background(), nil, time.Minute, 2*time.Minute, logger.NewNop())

	seen := make(map[time.Duration]bool)
	for range 50 {
		seen[r.nextSleep()] = true
	}
	if len(seen) < 2 {
		t.Errorf("nextSleep() returned %d distinct values over 50 draws, want a random spread", len(seen))
	}
}

package scheduler_test

import (
	"testing"

	"gigalert/discovery-service/internal/scheduler"
)

// ── ParseState ─────────────────────────────────────────────────────────────

func TestParseState_ValidValues(t *testing.T) {
	for _, s := range []string{"IDLE", "RUNNING"} {
		got, err := scheduler.ParseState(s)
		if err != nil {
			t.Errorf("ParseState(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseState(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseState_InvalidValue(t *testing.T) {
	for _, s := range []string{"", "idle", "STOPPED"} {
		if _, err := scheduler.ParseState(s); err == nil {
			t.Errorf("ParseState(%q) expected error, got nil", s)
		}
	}
}

// ── IsTransitionAllowed ────────────────────────────────────────────────────

func TestIsTransitionAllowed(t *testing.T) {
	cases := []struct {
		from, to scheduler.State
		want     bool
	}{
		{scheduler.StateIdle, scheduler.StateRunning, true},
		{scheduler.StateRunning, scheduler.StateIdle, true},
		{scheduler.StateIdle, scheduler.StateIdle, false},
		{scheduler.StateRunning, scheduler.StateRunning, false},
		{scheduler.State("BOGUS"), scheduler.StateIdle, false},
	}
	for _, c := range cases {
		if got := scheduler.IsTransitionAllowed(c.from, c.to); got != c.want {
			t.Errorf("IsTransitionAllowed(%s → %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

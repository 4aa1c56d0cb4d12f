package session

import (
	"testing"
	"time"

	tu "github.com/desertthunder/shelfx/internal/testing"
)

func TestRefreshDelay(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	tc := []struct {
		name      string
		expiresAt time.Time
		want      time.Duration
	}{
		{"ten minutes out", now.Add(10 * time.Minute), 9 * time.Minute},
		{"just over threshold", now.Add(66 * time.Second), 6 * time.Second},
		{"exactly at floor", now.Add(65 * time.Second), MinDelay},
		{"inside lead window", now.Add(30 * time.Second), MinDelay},
		{"already expired", now.Add(-time.Hour), MinDelay},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := RefreshDelay(now, tt.expiresAt); got != tt.want {
				t.Errorf("RefreshDelay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScheduler(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Fires Once At Deadline", func(t *testing.T) {
		clock := tu.NewFakeClock(start)
		s := NewScheduler(clock)
		fired := 0

		s.Arm(start.Add(10*time.Minute), func() { fired++ })
		if at, ok := s.Deadline(); !ok || !at.Equal(start.Add(9*time.Minute)) {
			t.Errorf("unexpected deadline %v (armed=%v)", at, ok)
		}

		clock.Advance(9*time.Minute - time.Second)
		if fired != 0 {
			t.Fatal("fired early")
		}
		clock.Advance(time.Second)
		clock.Advance(time.Hour)
		if fired != 1 {
			t.Errorf("expected one firing, got %d", fired)
		}
		if _, ok := s.Deadline(); ok {
			t.Error("deadline should clear after firing")
		}
	})

	t.Run("Arm Replaces Previous Timer", func(t *testing.T) {
		clock := tu.NewFakeClock(start)
		s := NewScheduler(clock)
		var got []string

		s.Arm(start.Add(2*time.Minute), func() { got = append(got, "first") })
		s.Arm(start.Add(10*time.Minute), func() { got = append(got, "second") })

		clock.Advance(time.Hour)
		if len(got) != 1 || got[0] != "second" {
			t.Errorf("expected only second callback, got %v", got)
		}
	})

	t.Run("Disarm", func(t *testing.T) {
		clock := tu.NewFakeClock(start)
		s := NewScheduler(clock)
		fired := false

		s.Arm(start.Add(2*time.Minute), func() { fired = true })
		s.Disarm()
		s.Disarm()
		clock.Advance(time.Hour)

		if fired {
			t.Error("disarmed timer fired")
		}
		if len(clock.Pending()) != 0 {
			t.Errorf("expected no pending timers, got %v", clock.Pending())
		}
	})

	t.Run("Past Expiry Uses Floor", func(t *testing.T) {
		clock := tu.NewFakeClock(start)
		s := NewScheduler(clock)
		fired := false

		if d := s.Arm(start.Add(-time.Minute), func() { fired = true }); d != MinDelay {
			t.Errorf("expected %v, got %v", MinDelay, d)
		}
		clock.Advance(MinDelay)
		if !fired {
			t.Error("expected callback after floor delay")
		}
	})
}

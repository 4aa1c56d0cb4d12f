package session

import (
	"sync"
	"time"
)

const (
	// RefreshLead is how long before expiry the silent refresh fires.
	RefreshLead = 60 * time.Second
	// MinDelay is the shortest refresh delay, applied to past or imminent expiries.
	MinDelay = 5 * time.Second
)

// Clock abstracts time for the scheduler. AfterFunc returns a stop function
// with [time.Timer.Stop] semantics.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// RefreshDelay is max(MinDelay, expiresAt - RefreshLead - now).
func RefreshDelay(now, expiresAt time.Time) time.Duration {
	d := expiresAt.Sub(now) - RefreshLead
	if d < MinDelay {
		return MinDelay
	}
	return d
}

// Scheduler holds at most one pending refresh callback.
type Scheduler struct {
	clock Clock

	mu       sync.Mutex
	gen      uint64
	stop     func() bool
	deadline time.Time
}

// NewScheduler creates a scheduler on clock, defaulting to [SystemClock].
func NewScheduler(clock Clock) *Scheduler {
	if clock == nil {
		clock = SystemClock
	}
	return &Scheduler{clock: clock}
}

// Arm replaces any pending callback with onDue, due at [RefreshDelay] from now.
func (s *Scheduler) Arm(expiresAt time.Time, onDue func()) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disarmLocked()
	gen := s.gen
	now := s.clock.Now()
	delay := RefreshDelay(now, expiresAt)
	s.deadline = now.Add(delay)
	s.stop = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		s.stop = nil
		s.deadline = time.Time{}
		s.mu.Unlock()
		onDue()
	})
	return delay
}

// Disarm cancels the pending callback, if any.
func (s *Scheduler) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked()
}

func (s *Scheduler) disarmLocked() {
	s.gen++
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	s.deadline = time.Time{}
}

// Deadline reports when the pending callback fires.
func (s *Scheduler) Deadline() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadline, !s.deadline.IsZero()
}

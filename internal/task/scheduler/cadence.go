package scheduler

import (
	"sync"
	"time"
)

// cadenceSchedule is a fixed-rate cron.Schedule anchored on the first tick.
//
// The first call to Next returns first, even when it already lies in the
// past, so a job whose offset elapsed before the cron loop started still
// fires immediately. Later calls return the next point of the grid
// first + k*period strictly after t; ticks missed while the process was
// stalled are not replayed.
type cadenceSchedule struct {
	mu      sync.Mutex
	first   time.Time
	period  time.Duration
	resume  time.Time
	started bool
	issued  bool // a cron loop has asked for a tick at least once
}

func newCadence(registered time.Time, offset, period time.Duration) *cadenceSchedule {
	return &cadenceSchedule{first: registered.Add(offset), period: period}
}

func (s *cadenceSchedule) Next(t time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued = true
	if !s.started {
		s.started = true
		if !s.resume.IsZero() {
			return s.resume
		}
		return s.first
	}
	return s.after(t)
}

// after returns the first grid point strictly after t.
func (s *cadenceSchedule) after(t time.Time) time.Time {
	if t.Before(s.first) {
		return s.first
	}
	k := t.Sub(s.first)/s.period + 1
	return s.first.Add(k * s.period)
}

// rewind makes the next Next call return the next pending grid point at or
// after now. Used when a stopped scheduler is started again. A schedule no
// cron loop has used yet keeps its first tick, however late.
func (s *cadenceSchedule) rewind(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.issued {
		return
	}
	s.started = false
	s.resume = time.Time{}
	if now.After(s.first) {
		s.resume = s.after(now.Add(-time.Nanosecond))
	}
}

// First returns the first tick time.
func (s *cadenceSchedule) First() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.first
}

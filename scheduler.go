package authsession

import (
	"sync"
	"time"

	"github.com/MrEthical07/authsession/clock"
)

// refreshScheduler owns the single proactive-refresh timer of a Manager.
//
// Arm always cancels the previous timer before installing a new one, so at most
// one refresh is ever scheduled. A callback that was superseded by a later Arm or
// Cancel observes a stale generation and does nothing.
type refreshScheduler struct {
	clock clock.Clock
	fire  func()

	mu     sync.Mutex
	timer  clock.Timer
	gen    uint64
	fireAt time.Time
}

func newRefreshScheduler(c clock.Clock, fire func()) *refreshScheduler {
	return &refreshScheduler{
		clock: c,
		fire:  fire,
	}
}

// Arm schedules the refresh callback at fireAt. If fireAt is not in the future
// the callback is started immediately on its own goroutine.
func (s *refreshScheduler) Arm(fireAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
	gen := s.gen
	s.fireAt = fireAt

	d := fireAt.Sub(s.clock.Now())
	if d <= 0 {
		go s.run(gen)
		return
	}
	s.timer = s.clock.AfterFunc(d, func() { s.run(gen) })
}

// Cancel drops the pending refresh, if any.
func (s *refreshScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
	s.fireAt = time.Time{}
}

// Pending returns the scheduled fire time.
func (s *refreshScheduler) Pending() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fireAt.IsZero() {
		return time.Time{}, false
	}
	return s.fireAt, true
}

func (s *refreshScheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *refreshScheduler) run(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.fireAt = time.Time{}
	s.mu.Unlock()

	s.fire()
}

package voice

import (
	"sync"
	"time"
)

// RestartDelay is the cooldown between a capture cycle ending and the next
// one starting. Restarting immediately causes restart storms when the engine
// ends right away under repeated errors.
const RestartDelay = 2 * time.Second

// restartScheduler owns the single pending restart timer for a session.
// Scheduling while a timer is pending replaces it, so at most one restart
// can ever be outstanding.
type restartScheduler struct {
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
	seq   uint64
}

func newRestartScheduler(delay time.Duration) *restartScheduler {
	if delay <= 0 {
		delay = RestartDelay
	}
	return &restartScheduler{delay: delay}
}

// Schedule arms the restart timer, cancelling any prior pending restart.
// fire runs on the timer goroutine once the cooldown elapses.
func (s *restartScheduler) Schedule(fire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.seq++
	seq := s.seq

	s.timer = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		live := s.seq == seq
		if live {
			s.timer = nil
		}
		s.mu.Unlock()
		if live {
			fire()
		}
	})
}

// Cancel drops any pending restart.
func (s *restartScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.seq++
}

// Pending reports whether a restart is currently armed.
func (s *restartScheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

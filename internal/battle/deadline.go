package battle

import (
	"sync"
	"time"
)

// setupDeadlines fires a callback when a raid's precomputation misses its window.
// One deadline is armed per battle id. It is safe for concurrent use.
type setupDeadlines struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newSetupDeadlines() *setupDeadlines {
	return &setupDeadlines{timers: make(map[string]*time.Timer)}
}

// Arm starts a deadline that calls onFire after d unless Disarm is called first.
// onFire runs in its own goroutine. Re-arming a battle replaces its previous deadline.
//
// Precondition: d > 0; onFire must not be nil.
func (s *setupDeadlines) Arm(battleID string, d time.Duration, onFire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.timers[battleID]; ok {
		prev.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		current := s.timers[battleID] == t
		if current {
			delete(s.timers, battleID)
		}
		s.mu.Unlock()
		if current {
			onFire()
		}
	})
	s.timers[battleID] = t
}

// Disarm cancels the battle's deadline. Safe to call multiple times.
//
// Postcondition: Returns true when a pending deadline was cancelled; onFire will not run after that.
func (s *setupDeadlines) Disarm(battleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[battleID]
	if !ok {
		return false
	}
	delete(s.timers, battleID)
	t.Stop()
	return true
}

// Pending returns the number of armed deadlines.
func (s *setupDeadlines) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// StopAll cancels every armed deadline.
func (s *setupDeadlines) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

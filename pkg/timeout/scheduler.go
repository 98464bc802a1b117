package timeout

import (
	"sync"
	"time"
)

// Dispatch delivers a fired callback to its execution context.
type Dispatch func(fn func())

// Scheduler manages named cancellable timers.
type Scheduler struct {
	mu       sync.Mutex
	dispatch Dispatch
	timers   map[string]*time.Timer
	gen      map[string]uint64
}

// NewScheduler creates a scheduler. A nil dispatch runs callbacks
// directly on the timer goroutine.
func NewScheduler(dispatch Dispatch) *Scheduler {
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	return &Scheduler{
		dispatch: dispatch,
		timers:   make(map[string]*time.Timer),
		gen:      make(map[string]uint64),
	}
}

// Arm schedules fn to run after d under the given name, replacing any
// timer already armed under that name.
func (s *Scheduler) Arm(name string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[name]; ok {
		t.Stop()
	}
	s.gen[name]++
	gen := s.gen[name]
	s.timers[name] = time.AfterFunc(d, func() {
		s.dispatch(func() {
			if s.take(name, gen) {
				fn()
			}
		})
	})
}

// take consumes a fire if it is still current. A fire loses currency
// when its name was disarmed or re-armed after expiry.
func (s *Scheduler) take(name string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen[name] != gen {
		return false
	}
	if _, ok := s.timers[name]; !ok {
		return false
	}
	delete(s.timers, name)
	return true
}

// Disarm cancels the timer under name. Safe to call on absent names.
func (s *Scheduler) Disarm(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[name]; ok {
		t.Stop()
		delete(s.timers, name)
	}
	s.gen[name]++
}

// DisarmAll cancels every armed timer.
func (s *Scheduler) DisarmAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, t := range s.timers {
		t.Stop()
		delete(s.timers, name)
		s.gen[name]++
	}
}

// Armed reports whether a timer is currently armed under name.
func (s *Scheduler) Armed(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[name]
	return ok
}

// ArmedCount returns the number of armed timers.
func (s *Scheduler) ArmedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

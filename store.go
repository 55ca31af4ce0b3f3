package gotcc

import (
	"sync"
	"time"
)

// Reading is a point-in-time view of one parameter slot.
type Reading struct {
	Param Parameter
	Value Value
	Stale bool
	// Age is the time since the last reception, zero when never received.
	Age time.Duration
}

type slot struct {
	val  Value
	last time.Time
}

// store holds the last decoded value per parameter together with the
// staleness thresholds. The receive loop is the only writer of slots;
// queries and timeout changes come from any goroutine.
type store struct {
	mu       sync.Mutex
	now      func() time.Time
	slots    map[Parameter]slot
	timeouts map[TimeoutClass]time.Duration
}

func newStore() *store {
	s := &store{
		now:      time.Now,
		slots:    make(map[Parameter]slot),
		timeouts: make(map[TimeoutClass]time.Duration, len(timeoutNames)),
	}
	for _, tc := range TimeoutClasses() {
		s.timeouts[tc] = DefaultTimeout
	}
	return s
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = make(map[Parameter]slot)
}

func (s *store) update(p Parameter, v Value) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.now()
	s.slots[p] = slot{val: v, last: t}
	return t
}

// reading returns the slot content and its staleness under the class
// threshold, evaluated atomically. A parameter that never arrived reads as
// the zero Value and stale.
func (s *store) reading(p Parameter, tc TimeoutClass) Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := Reading{Param: p, Stale: true}
	sl, ok := s.slots[p]
	if !ok {
		return r
	}
	r.Value = sl.val
	r.Age = s.now().Sub(sl.last)
	r.Stale = r.Age > s.timeouts[tc]
	return r
}

func (s *store) setTimeout(tc TimeoutClass, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeouts[tc] = d
}

func (s *store) timeout(tc TimeoutClass) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeouts[tc]
}

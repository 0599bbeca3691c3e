package reconcile

import (
	"sync"
	"time"
)

// IDSequence hands out record ids derived from the wall clock in
// milliseconds. Ids strictly increase even when several are issued within
// the same millisecond or the clock moves backwards.
type IDSequence struct {
	mu   sync.Mutex
	now  func() time.Time
	last int
}

// NewIDSequence returns a sequence driven by now, or time.Now when nil.
func NewIDSequence(now func() time.Time) *IDSequence {
	if now == nil {
		now = time.Now
	}
	return &IDSequence{now: now}
}

// Observe records an id that already exists so Next never reissues it.
func (s *IDSequence) Observe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id > s.last {
		s.last = id
	}
}

// Next returns max(now in milliseconds, last issued + 1).
func (s *IDSequence) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := int(s.now().UnixMilli())
	if next <= s.last {
		next = s.last + 1
	}
	s.last = next
	return next
}

package queue

import (
	"sync"
	"time"
)

// Scheduler arranges for fn to run on a later frame.
// The returned function cancels the call if it has not started.
type Scheduler interface {
	Schedule(fn func()) (cancel func())
}

// FrameScheduler runs callbacks on the next frame tick of a fixed rate clock.
type FrameScheduler struct {
	interval time.Duration
}

// NewFrameScheduler creates a scheduler for the given frames per second.
// Non-positive rates default to 60.
func NewFrameScheduler(fps int) *FrameScheduler {
	if fps <= 0 {
		fps = 60
	}
	return &FrameScheduler{interval: time.Second / time.Duration(fps)}
}

// Interval returns the frame interval.
func (s *FrameScheduler) Interval() time.Duration {
	return s.interval
}

func (s *FrameScheduler) Schedule(fn func()) func() {
	t := time.AfterFunc(s.interval, fn)
	return func() { t.Stop() }
}

// ManualScheduler holds callbacks until Run is called. It is used by tests
// and by offline rendering.
type ManualScheduler struct {
	mu      sync.Mutex
	nextID  int
	pending map[int]func()
	order   []int
}

// NewManualScheduler creates an empty manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{pending: make(map[int]func())}
}

func (s *ManualScheduler) Schedule(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.pending[id] = fn
	s.order = append(s.order, id)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.pending, id)
	}
}

// Pending returns the number of callbacks waiting to run.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Run executes the callbacks scheduled so far, in scheduling order.
// Callbacks scheduled while running wait for the next Run.
// It returns the number of callbacks executed.
func (s *ManualScheduler) Run() int {
	s.mu.Lock()
	order := s.order
	s.order = nil
	fns := make([]func(), 0, len(order))
	for _, id := range order {
		if fn, ok := s.pending[id]; ok {
			fns = append(fns, fn)
			delete(s.pending, id)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

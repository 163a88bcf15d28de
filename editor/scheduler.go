package editor

import "sync"

// Scheduler defers work to a later tick so that it does not run on the caller's stack.
type Scheduler interface {
	Schedule(fn func())
}

// AsyncScheduler runs each task on its own goroutine.
type AsyncScheduler struct{}

// Schedule implements Scheduler.
func (AsyncScheduler) Schedule(fn func()) {
	go fn()
}

// TickScheduler queues tasks until Tick is called. It suits hosts with their own event loop.
type TickScheduler struct {
	mu    sync.Mutex
	queue []func()
}

// Schedule implements Scheduler.
func (s *TickScheduler) Schedule(fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	s.mu.Unlock()
}

// Pending returns the number of queued tasks.
func (s *TickScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Tick runs the tasks queued before the call and returns how many ran. Tasks scheduled while
// ticking wait for the next tick.
func (s *TickScheduler) Tick() int {
	s.mu.Lock()
	queue := s.queue
	s.queue = nil
	s.mu.Unlock()
	for _, fn := range queue {
		fn()
	}

	return len(queue)
}

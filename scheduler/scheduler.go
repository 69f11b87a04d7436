// Package scheduler runs one-shot tasks keyed by an arbitrary comparable key.
// Scheduling a key that already has a pending task cancels and replaces it,
// so a key never owns more than one live timer.
package scheduler

import (
	"sync"
	"time"
)

type task struct {
	timer *time.Timer
	gen   uint64
}

type Scheduler[K comparable] struct {
	mu    sync.Mutex
	tasks map[K]task
	gen   uint64
}

func New[K comparable]() *Scheduler[K] {
	return &Scheduler[K]{tasks: make(map[K]task)}
}

// Schedule arms fn to run after d, replacing any pending task for key.
// fn runs on its own goroutine and only if it was not cancelled or replaced first.
func (s *Scheduler[K]) Schedule(key K, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tasks[key]; ok {
		t.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.tasks[key] = task{
		gen: gen,
		timer: time.AfterFunc(d, func() {
			if s.claim(key, gen) {
				fn()
			}
		}),
	}
}

// claim removes the task if it is still the current one for key.
// A timer that fired while being replaced loses the race here.
func (s *Scheduler[K]) claim(key K, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[key]
	if !ok || t.gen != gen {
		return false
	}
	delete(s.tasks, key)
	return true
}

// Cancel drops the pending task for key and reports whether there was one.
func (s *Scheduler[K]) Cancel(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[key]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(s.tasks, key)
	return true
}

func (s *Scheduler[K]) Pending(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

func (s *Scheduler[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels every pending task.
func (s *Scheduler[K]) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, key)
	}
}

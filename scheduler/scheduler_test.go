package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduler_Fires(t *testing.T) {
	req := require.New(t)
	s := New[string]()
	done := make(chan struct{})

	// When a task is scheduled
	s.Schedule("k", 10*time.Millisecond, func() { close(done) })
	req.True(s.Pending("k"))

	// Then it runs once its delay elapsed
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("task did not fire")
	}
	req.False(s.Pending("k"))
	req.Zero(s.Len())
}

func TestScheduler_ReplaceNeverStacks(t *testing.T) {
	req := require.New(t)
	s := New[string]()
	var first, second atomic.Int32

	// Given a pending task
	s.Schedule("k", 30*time.Millisecond, func() { first.Add(1) })
	// When the same key is scheduled again before expiry
	s.Schedule("k", 30*time.Millisecond, func() { second.Add(1) })

	// Then only one timer is live for the key
	req.Equal(1, s.Len())

	time.Sleep(100 * time.Millisecond)
	req.Zero(first.Load())
	req.Equal(int32(1), second.Load())
}

func TestScheduler_ReplaceResetsDeadline(t *testing.T) {
	req := require.New(t)
	s := New[string]()
	fired := make(chan time.Time, 1)
	start := time.Now()

	s.Schedule("k", 50*time.Millisecond, func() { fired <- time.Now() })
	time.Sleep(30 * time.Millisecond)
	s.Schedule("k", 50*time.Millisecond, func() { fired <- time.Now() })

	select {
	case at := <-fired:
		req.GreaterOrEqual(at.Sub(start), 80*time.Millisecond)
	case <-time.After(time.Second):
		req.Fail("task did not fire")
	}
}

func TestScheduler_Cancel(t *testing.T) {
	req := require.New(t)
	s := New[int]()
	var calls atomic.Int32

	s.Schedule(1, 20*time.Millisecond, func() { calls.Add(1) })

	req.True(s.Cancel(1))
	req.False(s.Cancel(1))

	time.Sleep(50 * time.Millisecond)
	req.Zero(calls.Load())
}

func TestScheduler_IndependentKeys(t *testing.T) {
	req := require.New(t)
	s := New[string]()
	var calls atomic.Int32

	s.Schedule("a", 10*time.Millisecond, func() { calls.Add(1) })
	s.Schedule("b", 10*time.Millisecond, func() { calls.Add(1) })
	req.Equal(2, s.Len())

	req.Eventually(func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_Stop(t *testing.T) {
	req := require.New(t)
	s := New[string]()
	var calls atomic.Int32

	s.Schedule("a", 20*time.Millisecond, func() { calls.Add(1) })
	s.Schedule("b", 20*time.Millisecond, func() { calls.Add(1) })
	s.Stop()

	time.Sleep(50 * time.Millisecond)
	req.Zero(calls.Load())
	req.Zero(s.Len())
}

package gateway

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"fmt"
	"sync"
)

// ConnectionSink buffers encoded frames for one socket until its write loop sends them.
// It satisfies contract.EventSink.
type ConnectionSink struct {
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewConnectionSink(capacity int) *ConnectionSink {
	return &ConnectionSink{
		out:  make(chan []byte, capacity),
		done: make(chan struct{}),
	}
}

// Consume encodes e and queues it. A full queue blocks until ctx ends.
func (s *ConnectionSink) Consume(ctx context.Context, e event.Event) error {
	frame, err := event.Encode(e)
	if err != nil {
		return err
	}
	return s.Send(ctx, frame)
}

// Send queues an already encoded frame.
func (s *ConnectionSink) Send(ctx context.Context, frame []byte) error {
	select {
	case <-s.done:
		return errors.ErrSinkClosed
	default:
	}
	select {
	case s.out <- frame:
		return nil
	case <-s.done:
		return errors.ErrSinkClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", errors.ErrDeliveryTimeout, ctx.Err())
	}
}

func (s *ConnectionSink) Outbound() <-chan []byte { return s.out }
func (s *ConnectionSink) Done() <-chan struct{}   { return s.done }

// Close is idempotent. The queue is left open so concurrent senders never panic.
func (s *ConnectionSink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *ConnectionSink) Len() int { return len(s.out) }
func (s *ConnectionSink) Cap() int { return cap(s.out) }

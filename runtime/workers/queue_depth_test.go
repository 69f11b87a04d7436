package workers

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	length, capacity int
}

func (f fakeQueue) Consume(context.Context, event.Event) error { return nil }
func (f fakeQueue) Len() int                                   { return f.length }
func (f fakeQueue) Cap() int                                   { return f.capacity }

type plainSink struct{}

func (plainSink) Consume(context.Context, event.Event) error { return nil }

func TestQueueDepthWorker_Reports_Fullest_Queue(t *testing.T) {
	req := require.New(t)
	metrics := testMetrics()
	sinks := []contract.EventSink{
		fakeQueue{length: 10, capacity: 100},
		fakeQueue{length: 192, capacity: 256},
		fakeQueue{length: 0, capacity: 0},
		plainSink{},
	}
	worker := NewQueueDepthWorker(slog.Default(), func() []contract.EventSink { return sinks },
		metrics, 5*time.Millisecond, 70)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	req.Eventually(func() bool {
		return testutil.ToFloat64(metrics.OutboundQueueDepth) == 75
	}, time.Second, 5*time.Millisecond)

	cancel()
	req.NoError(<-done)
}

func TestProcessHealthWorker_Samples_Self(t *testing.T) {
	req := require.New(t)
	metrics := testMetrics()
	worker := NewProcessHealthWorker(slog.Default(), metrics, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	req.Eventually(func() bool {
		return testutil.ToFloat64(metrics.ProcessRSS) > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	req.NoError(<-done)
}

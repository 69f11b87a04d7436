package workers

import (
	"chat-relay/contract"
	"chat-relay/observability"
	"context"
	"log/slog"
	"time"
)

// Queue is an outbound buffer whose fill level can be sampled.
type Queue interface {
	Len() int
	Cap() int
}

// QueueDepthWorker periodically reports the fullest outbound connection queue, in percent.
// Reading len and cap is non-blocking so sampling never interferes with delivery.
type QueueDepthWorker struct {
	log      *slog.Logger
	sinks    func() []contract.EventSink
	metrics  *observability.Metrics
	interval time.Duration
	warnAt   int
}

// NewQueueDepthWorker samples the sinks returned by source every interval and
// logs a warning when a queue is at least warnAt percent full.
func NewQueueDepthWorker(log *slog.Logger, source func() []contract.EventSink,
	metrics *observability.Metrics, interval time.Duration, warnAt int) *QueueDepthWorker {
	return &QueueDepthWorker{log: log, sinks: source, metrics: metrics, interval: interval, warnAt: warnAt}
}

func (w *QueueDepthWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping queue sampling")
			return nil
		case <-ticker.C:
			w.sample()
		}
	}
}

func (w *QueueDepthWorker) sample() {
	fullest, saturated := 0, 0
	for _, sink := range w.sinks() {
		queue, ok := sink.(Queue)
		if !ok || queue.Cap() == 0 {
			continue
		}
		percent := queue.Len() * 100 / queue.Cap()
		fullest = max(fullest, percent)
		if w.warnAt > 0 && percent >= w.warnAt {
			saturated++
		}
	}
	w.metrics.OutboundQueueDepth.Set(float64(fullest))
	if saturated > 0 {
		w.log.Warn("Outbound queues under pressure", "count", saturated, "fullest_percent", fullest)
	}
}

package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// ProcessHealthWorker samples CPU and resident memory of the server process.
type ProcessHealthWorker struct {
	log      *slog.Logger
	metrics  *observability.Metrics
	interval time.Duration
	pid      int32
}

func NewProcessHealthWorker(log *slog.Logger, metrics *observability.Metrics, interval time.Duration) *ProcessHealthWorker {
	return &ProcessHealthWorker{log: log, metrics: metrics, interval: interval, pid: int32(os.Getpid())}
}

func (w *ProcessHealthWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(w.pid)
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping process sampling")
			return nil
		case <-ticker.C:
			cpu, err := p.CPUPercent()
			if err != nil {
				w.log.Error("Error while finding process cpu usage", "err", err)
				continue
			}
			memory, err := p.MemoryInfo()
			if err != nil {
				w.log.Error("Error while finding process memory usage", "err", err)
				continue
			}
			w.metrics.ProcessCPU.Set(cpu)
			w.metrics.ProcessRSS.Set(float64(memory.RSS))
		}
	}
}

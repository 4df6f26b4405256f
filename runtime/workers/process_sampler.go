package workers

import (
	"campus-chat/domain"
	"campus-chat/observability"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// ProcessSampler records the resources of the current process every interval.
type ProcessSampler struct {
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	clock      domain.Clock
	interval   time.Duration
}

func NewProcessSampler(log *slog.Logger, monitoring *observability.MonitoringManager, clock domain.Clock, interval time.Duration) *ProcessSampler {
	return &ProcessSampler{log: log, monitoring: monitoring, clock: clock, interval: interval}
}

func (w *ProcessSampler) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.sample(p); err != nil {
			w.log.Debug("Failed to collect self stats", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *ProcessSampler) sample(p *process.Process) error {
	mem, err := p.MemoryInfo()
	if err != nil {
		return err
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return err
	}
	w.monitoring.Record(observability.ProcessSample{
		Pid:        p.Pid,
		RssBytes:   mem.RSS,
		CPUPercent: cpu,
		At:         w.clock(),
	})
	return nil
}

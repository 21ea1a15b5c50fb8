// Package procstat reads the exporter's own process metrics, replacing the
// default process collector with a direct read of the three process values
// exposed on the scrape endpoint.
package procstat

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/procfs"
)

// Sample holds the self-process values exposed on every scrape.
type Sample struct {
	CPUSecondsTotal      float64
	ResidentMemoryBytes  float64
	StartTimeSeconds     float64
}

// Read opens /proc/self and returns its current CPU time, resident memory
// and start time. It fails on platforms without a /proc filesystem.
func Read() (Sample, error) {
	proc, err := procfs.Self()
	if err != nil {
		return Sample{}, fmt.Errorf("procstat: opening self process: %w", err)
	}

	stat, err := proc.Stat()
	if err != nil {
		return Sample{}, fmt.Errorf("procstat: reading process stat: %w", err)
	}

	startTime, err := stat.StartTime()
	if err != nil {
		return Sample{}, fmt.Errorf("procstat: reading process start time: %w", err)
	}

	return Sample{
		CPUSecondsTotal:     stat.CPUTime(),
		ResidentMemoryBytes: float64(stat.ResidentMemory()),
		StartTimeSeconds:    startTime,
	}, nil
}

// ReadOrZero is Read with /proc-unavailable platforms (non-Linux test
// runners, sandboxes without procfs mounted) degraded to a zero Sample
// instead of a scrape failure.
func ReadOrZero(logger *slog.Logger) Sample {
	sample, err := Read()
	if err != nil {
		logger.Debug("process stats unavailable", slog.Any("error", err))

		return Sample{}
	}

	return sample
}

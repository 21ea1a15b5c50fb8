// Package exposer serves the scrape endpoint: every configured metric
// family, the exporter's own process metrics, build information, and a
// trailing exposed_metrics gauge counting the lines just written.
package exposer

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jkroepke/sshlog-exporter/internal/metricstore"
	"github.com/jkroepke/sshlog-exporter/internal/procstat"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/common/expfmt"
)

// ContentType is the exact Prometheus text exposition content type, version
// 0.0.4, that the scrape handler always returns.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

// Exposer renders the registry and ambient process/build metrics as a
// single Prometheus text-format response.
type Exposer struct {
	registry  *metricstore.Registry
	buildInfo *prometheus.Registry
	logger    *slog.Logger
}

// New builds an Exposer. programName is passed through to the version
// collector, which uses it as the namespace of its
// <programName>_build_info series.
func New(registry *metricstore.Registry, programName string, logger *slog.Logger) *Exposer {
	buildReg := prometheus.NewRegistry()
	buildReg.MustRegister(
		collectors.NewBuildInfoCollector(),
		versioncollector.NewCollector(programName),
	)

	return &Exposer{
		registry:  registry,
		buildInfo: buildReg,
		logger:    logger.With(slog.String("component", "exposer")),
	}
}

// ServeHTTP implements GET /metrics.
func (e *Exposer) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", ContentType)

	total := 0

	for _, family := range e.registry.Families() {
		n, err := family.ExposeTo(w)
		if err != nil {
			e.logger.Error("failed writing metric family", slog.String("family", family.Name()), slog.Any("error", err))

			return
		}

		total += n
	}

	n, err := e.writeProcessMetrics(w)
	if err != nil {
		e.logger.Error("failed writing process metrics", slog.Any("error", err))

		return
	}

	total += n

	n, err = e.writeBuildInfo(w)
	if err != nil {
		e.logger.Warn("failed writing build info", slog.Any("error", err))
	} else {
		total += n
	}

	if _, err := fmt.Fprintf(w,
		"# HELP exposed_metrics Number of metric lines written in this scrape.\n"+
			"# TYPE exposed_metrics gauge\nexposed_metrics %d\n", total); err != nil {
		e.logger.Error("failed writing exposed_metrics", slog.Any("error", err))
	}
}

// writeProcessMetrics emits the three self-process series, falling back
// to zero values when /proc is unavailable.
func (e *Exposer) writeProcessMetrics(w io.Writer) (int, error) {
	sample := procstat.ReadOrZero(e.logger)

	lines := "" +
		"# HELP process_cpu_seconds_total Total user and system CPU time spent in seconds.\n" +
		"# TYPE process_cpu_seconds_total counter\n" +
		"process_cpu_seconds_total " + formatFloat(sample.CPUSecondsTotal) + "\n" +
		"# HELP process_resident_memory_bytes Resident memory size in bytes.\n" +
		"# TYPE process_resident_memory_bytes gauge\n" +
		"process_resident_memory_bytes " + formatFloat(sample.ResidentMemoryBytes) + "\n" +
		"# HELP process_start_time_seconds Start time of the process since unix epoch in seconds.\n" +
		"# TYPE process_start_time_seconds gauge\n" +
		"process_start_time_seconds " + formatFloat(sample.StartTimeSeconds) + "\n"

	if _, err := io.WriteString(w, lines); err != nil {
		return 0, fmt.Errorf("exposer: writing process metrics: %w", err)
	}

	return 3, nil
}

// writeBuildInfo gathers the local build-info/version registry and
// re-encodes it through client_golang's own text encoder, so its framing
// matches every other exporter on the fleet byte for byte.
func (e *Exposer) writeBuildInfo(w io.Writer) (int, error) {
	families, err := e.buildInfo.Gather()
	if err != nil {
		return 0, fmt.Errorf("exposer: gathering build info: %w", err)
	}

	encoder := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))

	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			return 0, fmt.Errorf("exposer: encoding build info: %w", err)
		}
	}

	return len(families), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

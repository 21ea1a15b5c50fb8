// Package logparser pulls CSV lines from a per-target byte stream, turns
// each into a ParsedLine via the configured ColumnReader vector, and
// applies the result to the shared MetricRegistry.
package logparser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jkroepke/sshlog-exporter/internal/columnreader"
	"github.com/jkroepke/sshlog-exporter/internal/errkind"
	"github.com/jkroepke/sshlog-exporter/internal/labelset"
	"github.com/jkroepke/sshlog-exporter/internal/metricstore"
	"github.com/jkroepke/sshlog-exporter/internal/parsedline"
)

const bytesFlushInterval = time.Second

// Config carries everything LogParser needs beyond the byte stream
// itself.
type Config struct {
	Environment string
	Target      string
	Readers     []columnreader.Reader
	Separator   byte
	Quote       byte
	ReadTimeout time.Duration
	Registry    *metricstore.Registry
	// Families maps every metric name a Reader can produce to the
	// MetricFamily it updates. A name missing here is a programming
	// error: configuration loading guarantees every reader-produced
	// metric name has a matching family.
	Families map[string]*metricstore.Family
}

// LogParser is a per-target CSV tailer.
type LogParser struct {
	cfg    Config
	logger *slog.Logger
}

// New builds a LogParser for one target.
func New(cfg Config, logger *slog.Logger) *LogParser {
	if cfg.Separator == 0 {
		cfg.Separator = ' '
	}

	if cfg.Quote == 0 {
		cfg.Quote = '"'
	}

	return &LogParser{
		cfg: cfg,
		logger: logger.With(
			slog.String("component", "logparser"),
			slog.String("target", cfg.Target),
		),
	}
}

type lineResult struct {
	text string
	err  error
}

// countingReader wraps a byte stream to count bytes consumed, flushed
// periodically to ssh_bytes_in.
type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))

	return n, err //nolint:wrapcheck
}

func (c *countingReader) swap() int64 {
	return c.n.Swap(0)
}

// Run reads from r until EOF, cancellation, or stream_starvation. It
// returns nil on a clean EOF or cancellation, and a *errkind.Error
// otherwise.
func (p *LogParser) Run(ctx context.Context, r io.Reader) error {
	counting := &countingReader{r: r}
	scanner := bufio.NewScanner(counting)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lines := make(chan lineResult, 1)

	go func() {
		defer close(lines)

		for scanner.Scan() {
			select {
			case lines <- lineResult{text: scanner.Text()}:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			select {
			case lines <- lineResult{err: err}:
			case <-ctx.Done():
			}
		}
	}()

	flushTicker := time.NewTicker(bytesFlushInterval)
	defer flushTicker.Stop()

	timer := time.NewTimer(p.cfg.ReadTimeout)
	defer timer.Stop()

	envLabels := labelset.New(p.cfg.Environment)

	for {
		select {
		case <-ctx.Done():
			p.flushBytes(counting, envLabels)

			return nil
		case <-flushTicker.C:
			p.flushBytes(counting, envLabels)
		case <-timer.C:
			p.flushBytes(counting, envLabels)

			return errkind.New(errkind.StreamStarvation, fmt.Errorf("no record read within %s", p.cfg.ReadTimeout))
		case res, ok := <-lines:
			if !ok {
				p.flushBytes(counting, envLabels)

				return nil
			}

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}

			timer.Reset(p.cfg.ReadTimeout)

			if res.err != nil {
				return errkind.New(errkind.Unexpected, res.err)
			}

			if strings.TrimSpace(res.text) == "" {
				continue
			}

			p.processRecord(res.text)
		}
	}
}

func (p *LogParser) flushBytes(counting *countingReader, envLabels labelset.LabelSet) {
	if n := counting.swap(); n > 0 {
		_ = p.cfg.Registry.SSHBytesIn.Add(envLabels, float64(n))
	}
}

// processRecord decodes one record and, on success, commits it to the
// registry. Any panic raised by a ColumnReader other than the parse_error
// it may legitimately return is recovered, logged at error severity, and
// treated as a parse_error, per the error-handling design.
func (p *LogParser) processRecord(text string) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("recovered panic while applying column readers",
				slog.Any("panic", rec),
				slog.String("line", text),
			)
			p.incrementParseError()
		}
	}()

	fields := columnreader.SplitRecord(text, p.cfg.Separator, p.cfg.Quote)

	line := parsedline.New(p.cfg.Environment)
	if err := columnreader.ApplyLine(p.cfg.Readers, fields, line); err != nil {
		p.logger.Debug("dropping unparsable record", slog.Any("error", err), slog.String("line", text))
		p.incrementParseError()

		return
	}

	p.commit(line)
}

func (p *LogParser) incrementParseError() {
	envLabels := labelset.New(p.cfg.Environment)

	_ = p.cfg.Registry.ParserErrors.Add(envLabels, 1)
	_ = p.cfg.Registry.ParserErrorsPerTarget.Add(envLabels.WithTarget(p.cfg.Target), 1)
}

func (p *LogParser) commit(line *parsedline.ParsedLine) {
	_ = p.cfg.Registry.LinesParsed.Add(line.Labels, 1)
	_ = p.cfg.Registry.LinesParsedPerTarget.Add(line.Labels.WithTarget(p.cfg.Target), 1)

	for name, value := range line.Metrics {
		family, ok := p.cfg.Families[name]
		if !ok {
			// Unknown metric names cannot arise from a validated
			// configuration; this is a programming error.
			panic(fmt.Sprintf("logparser: no family configured for metric %q", name))
		}

		if err := family.Add(line.Labels, value); err != nil {
			p.logger.Error("failed to update metric", slog.String("metric", name), slog.Any("error", err))
		}
	}
}

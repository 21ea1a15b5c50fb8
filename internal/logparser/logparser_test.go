package logparser_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jkroepke/sshlog-exporter/internal/columnreader"
	"github.com/jkroepke/sshlog-exporter/internal/logparser"
	"github.com/jkroepke/sshlog-exporter/internal/metricstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func apacheReaders() []columnreader.Reader {
	return []columnreader.Reader{
		columnreader.NewLabel("remote_host"),
		columnreader.NewIgnore(),
		columnreader.NewLabel("remote_user"),
		columnreader.NewIgnore(),
		columnreader.NewRequestHeader(),
		columnreader.NewLabel("status"),
		columnreader.NewCLFNumber("body_bytes_sent"),
	}
}

func TestRunParsesLinesAndUpdatesFamilies(t *testing.T) {
	t.Parallel()

	reg := metricstore.NewRegistry(metricstore.Options{TTL: time.Hour})
	t.Cleanup(reg.Close)

	bytesSent, err := reg.NewFamily("body_bytes_sent", "help", metricstore.Counter, nil, metricstore.Weak)
	require.NoError(t, err)

	cfg := logparser.Config{
		Environment: "prod",
		Target:      "ssh://host/file",
		Readers:     apacheReaders(),
		ReadTimeout: time.Second,
		Registry:    reg,
		Families:    map[string]*metricstore.Family{"body_bytes_sent": bytesSent},
	}

	input := strings.NewReader(
		"1.2.3.4 - alice - \"GET /a?b=1 HTTP/1.1\" 200 123\n" +
			"\n" + // blank line skipped
			"bad line of five tokens\n" + // wrong column count -> parse_error
			"1.2.3.4 - - - \"GET / HTTP/1.0\" 200 -\n",
	)

	p := logparser.New(cfg, discardLogger())
	require.NoError(t, p.Run(t.Context(), input))

	var sb strings.Builder

	_, err = bytesSent.ExposeTo(&sb)
	require.NoError(t, err)
	assert.Contains(t, sb.String(), `body_bytes_sent_total{environment="prod",remote_host="1.2.3.4",remote_user="alice",request_method="GET",request_uri="/a",request_http_version="HTTP/1.1",status="200"} 123`)

	sb.Reset()
	_, err = reg.LinesParsed.ExposeTo(&sb)
	require.NoError(t, err)
	assert.Contains(t, sb.String(), `lines_parsed_total{environment="prod"`)

	sb.Reset()
	_, err = reg.ParserErrors.ExposeTo(&sb)
	require.NoError(t, err)
	assert.Contains(t, sb.String(), `parser_errors_total{environment="prod"} 1`)
}

func TestRunStopsOnCancellation(t *testing.T) {
	t.Parallel()

	reg := metricstore.NewRegistry(metricstore.Options{TTL: time.Hour})
	t.Cleanup(reg.Close)

	cfg := logparser.Config{
		Environment: "prod",
		Target:      "ssh://host/file",
		Readers:     apacheReaders(),
		ReadTimeout: time.Second,
		Registry:    reg,
		Families:    map[string]*metricstore.Family{},
	}

	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan error, 1)

	p := logparser.New(cfg, discardLogger())

	go func() {
		done <- p.Run(ctx, pr)
	}()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return promptly after cancellation")
	}
}

func TestRunDetectsStarvation(t *testing.T) {
	t.Parallel()

	reg := metricstore.NewRegistry(metricstore.Options{TTL: time.Hour})
	t.Cleanup(reg.Close)

	cfg := logparser.Config{
		Environment: "prod",
		Target:      "ssh://host/file",
		Readers:     apacheReaders(),
		ReadTimeout: 20 * time.Millisecond,
		Registry:    reg,
		Families:    map[string]*metricstore.Family{},
	}

	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	p := logparser.New(cfg, discardLogger())

	start := time.Now()
	err := p.Run(t.Context(), pr)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, time.Second)
}

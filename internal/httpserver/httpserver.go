// Package httpserver wires the scrape endpoint mux into an
// exporter-toolkit listener, carrying over the teacher's TLS/web-config
// support even though spec.md's Non-goals exclude endpoint authentication.
package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/exporter-toolkit/web"
)

// New builds the mux served on the scrape port: GET /metrics delegates to
// handler, GET /ping is a bare liveness check.
func New(listenAddress, webConfigFile string, handler http.Handler, logger *slog.Logger) (*http.Server, *web.FlagConfig) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", handler)
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	server := &http.Server{
		ReadHeaderTimeout: 3 * time.Second,
		ReadTimeout:       3 * time.Second,
		WriteTimeout:      10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
		Handler:           mux,
	}

	listenAddresses := []string{listenAddress}

	flagConfig := &web.FlagConfig{
		WebListenAddresses: &listenAddresses,
		WebConfigFile:      &webConfigFile,
	}

	return server, flagConfig
}

// Serve blocks serving server via exporter-toolkit, returning
// http.ErrServerClosed on graceful shutdown like the stdlib server would.
func Serve(server *http.Server, flagConfig *web.FlagConfig, logger *slog.Logger) error {
	return web.ListenAndServe(server, flagConfig, logger) //nolint:wrapcheck
}

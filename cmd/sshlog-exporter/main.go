// SPDX-License-Identifier: Apache-2.0
//
// Copyright Jan-Otto Kröpke
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jkroepke/sshlog-exporter/internal/config"
	"github.com/jkroepke/sshlog-exporter/internal/exposer"
	"github.com/jkroepke/sshlog-exporter/internal/httpserver"
	"github.com/jkroepke/sshlog-exporter/internal/metricstore"
	"github.com/jkroepke/sshlog-exporter/internal/supervisor"
	"github.com/prometheus/common/version"
	"golang.org/x/sync/errgroup"
)

type ReturnCode = int

const (
	// ReturnCodeNoError indicates that the program should continue running.
	ReturnCodeNoError ReturnCode = -2
	// ReturnCodeReload indicates that the configuration should be reloaded.
	ReturnCodeReload ReturnCode = -1
	// ReturnCodeOK indicates a successful execution of the program.
	ReturnCodeOK ReturnCode = 0
	// ReturnCodeError indicates an error during execution.
	ReturnCodeError ReturnCode = 1
)

var ErrReload = errors.New("reload")

const serverShutdownTimeout = 10 * time.Second

func main() {
	termCh := make(chan os.Signal, 1)
	signal.Notify(termCh, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGUSR1)

	os.Exit(execute(os.Args, os.Stdout, termCh)) //nolint:forbidigo // entry point
}

// execute is the main entry point for the daemon.
func execute(args []string, stdout io.Writer, termCh <-chan os.Signal) int {
	ctx := context.Background()

	for {
		if returnCode := run(ctx, args, stdout, termCh); returnCode != ReturnCodeReload {
			return returnCode
		}
	}
}

// run runs the main program logic of the daemon.
//
//nolint:cyclop,gocognit
func run(ctx context.Context, args []string, stdout io.Writer, termCh <-chan os.Signal) ReturnCode {
	conf, logger, rc := initializeConfigAndLogger(args, stdout)
	if rc != ReturnCodeNoError {
		return rc
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	logger.LogAttrs(ctx, slog.LevelDebug, "config", slog.String("config", conf.String()))

	if conf.VerifyConfig {
		return ReturnCodeOK
	}

	registry := metricstore.NewRegistry(metricstore.Options{
		TTL:                  conf.Global.TTL(),
		Prefix:               conf.Global.Prefix,
		BackgroundResilience: conf.Global.BackgroundResilience,
		LongTermResilience:   conf.Global.LongTermResilience,
	})
	defer registry.Close()

	sup, err := supervisor.New(conf, registry, logger)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error building supervisor", slog.Any("error", err))

		return ReturnCodeError
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return sup.Run(groupCtx) //nolint:wrapcheck
	})

	expose := exposer.New(registry, "sshlog_exporter", logger)
	server, flagConfig := httpserver.New(conf.Web.ListenAddress, conf.Web.ConfigFile, expose, logger)

	group.Go(func() error {
		if err := httpserver.Serve(server, flagConfig, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving metrics endpoint: %w", err)
		}

		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return shutdown(ctx, server, group, logger)
		case sig := <-termCh:
			logger.LogAttrs(ctx, slog.LevelInfo, "receiving signal: "+sig.String())

			switch sig {
			case syscall.SIGHUP:
				logger.LogAttrs(ctx, slog.LevelInfo, "reloading configuration")
				cancel(ErrReload)
			default:
				cancel(nil)
			}
		}
	}
}

func shutdown(ctx context.Context, server *http.Server, group *errgroup.Group, logger *slog.Logger) ReturnCode {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("error shutting down metrics server", slog.Any("error", err))
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scraper supervisor exited with error", slog.Any("error", err))
	}

	cause := context.Cause(ctx)
	if cause == nil || errors.Is(cause, context.Canceled) {
		return ReturnCodeOK
	}

	if errors.Is(cause, ErrReload) {
		return ReturnCodeReload
	}

	return ReturnCodeError
}

// initializeConfigAndLogger handles configuration parsing and logger setup.
func initializeConfigAndLogger(args []string, stdout io.Writer) (config.Config, *slog.Logger, ReturnCode) {
	conf, err := setupConfiguration(args, stdout)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return config.Config{}, nil, ReturnCodeOK
		}

		if errors.Is(err, config.ErrVersion) {
			printVersion(stdout)

			return config.Config{}, nil, ReturnCodeOK
		}

		_, _ = fmt.Fprintln(stdout, err.Error())

		return config.Config{}, nil, ReturnCodeError
	}

	logger, err := setupLogger(conf, stdout)
	if err != nil {
		_, _ = fmt.Fprintln(stdout, fmt.Errorf("error setupConfiguration logging: %w", err).Error())

		return config.Config{}, nil, ReturnCodeError
	}

	return conf, logger, ReturnCodeNoError
}

// setupConfiguration parses the command line arguments and loads the configuration.
func setupConfiguration(args []string, logWriter io.Writer) (config.Config, error) {
	conf, err := config.New(args, logWriter)
	if err != nil {
		return config.Config{}, fmt.Errorf("configuration error: %w", err)
	}

	if err = config.Validate(conf); err != nil {
		return config.Config{}, fmt.Errorf("configuration validation error: %w", err)
	}

	return conf, nil
}

func printVersion(writer io.Writer) {
	//goland:noinspection GoBoolExpressions
	if version.Version == "" {
		if buildInfo, ok := debug.ReadBuildInfo(); ok {
			_, _ = fmt.Fprintf(writer, "version: %s\ncommit: %v\ngo: %s\n", buildInfo.Main.Version, version.GetRevision(), buildInfo.GoVersion)

			return
		}
	}

	_, _ = fmt.Fprintf(writer, "version: %s\ncommit: %s\ndate: %s\ngo: %s\n", version.Version, version.GetRevision(), version.BuildDate, runtime.Version())
}

// setupLogger initializes the logger based on the configuration.
func setupLogger(conf config.Config, writer io.Writer) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{
		AddSource: false,
		Level:     conf.Log.Level,
	}

	switch conf.Log.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(writer, opts)), nil
	case "console":
		return slog.New(slog.NewTextHandler(writer, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format: %s", conf.Log.Format)
	}
}

// Package supervisor reconciles the live set of SSHScraper goroutines
// against a static target inventory and, if configured, a periodically
// re-run discovery script.
package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jkroepke/sshlog-exporter/internal/columnreader"
	"github.com/jkroepke/sshlog-exporter/internal/config"
	"github.com/jkroepke/sshlog-exporter/internal/errkind"
	"github.com/jkroepke/sshlog-exporter/internal/metricstore"
	"github.com/jkroepke/sshlog-exporter/internal/sshscraper"
	"golang.org/x/sync/errgroup"
)

// Supervisor owns the reconciliation loop: starting scrapers for new
// targets, cancelling and dropping scrapers for removed ones.
type Supervisor struct {
	conf     config.Config
	registry *metricstore.Registry
	readers  []columnreader.Reader
	families map[string]*metricstore.Family
	logger   *slog.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// New builds the shared ColumnReader vector and MetricFamily set from
// conf.Global.Format, registering every family on registry.
func New(conf config.Config, registry *metricstore.Registry, logger *slog.Logger) (*Supervisor, error) {
	readers, families, err := BuildFormat(conf.Global, registry)
	if err != nil {
		return nil, err
	}

	return &Supervisor{
		conf:     conf,
		registry: registry,
		readers:  readers,
		families: families,
		logger:   logger.With(slog.String("component", "supervisor")),
		running:  make(map[string]context.CancelFunc),
	}, nil
}

// Run starts the static targets, then (if a discovery script is
// configured) the reload loop, and blocks until ctx is cancelled, waiting
// for every scraper goroutine to return.
func (s *Supervisor) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	s.reconcile(groupCtx, group, targetsFromSSH(s.conf.SSH))

	if s.conf.Script != "" {
		group.Go(func() error {
			s.inventoryLoop(groupCtx, group)

			return nil
		})
	}

	<-ctx.Done()

	return group.Wait()
}

// inventoryLoop invokes the discovery script, reconciles its output, and
// (if a reload interval is configured) repeats on that cadence; otherwise
// it runs once.
func (s *Supervisor) inventoryLoop(ctx context.Context, group *errgroup.Group) {
	interval := s.conf.ReloadIntervalDuration()

	for {
		ssh, err := runInventoryScript(ctx, s.conf.Script)
		if err != nil {
			var kindErr *errkind.Error

			if errors.As(err, &kindErr) {
				s.logger.Error("inventory reload failed, keeping current targets", slog.Any("error", kindErr))
			}
		} else {
			s.reconcile(ctx, group, targetsFromSSH(ssh))
		}

		if interval <= 0 {
			return
		}

		timer := time.NewTimer(interval)

		select {
		case <-ctx.Done():
			timer.Stop()

			return
		case <-timer.C:
		}
	}
}

// reconcile starts a scraper for every target in desired not already
// running, and cancels+drops every running target not in desired.
func (s *Supervisor) reconcile(ctx context.Context, group *errgroup.Group, desired map[string]targetSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, target := range desired {
		if _, ok := s.running[id]; ok {
			continue
		}

		targetCtx, cancel := context.WithCancel(ctx)
		s.running[id] = cancel

		scraper := sshscraper.New(s.toScraperConfig(target), s.logger)

		group.Go(func() error {
			scraper.Run(targetCtx)

			return nil
		})

		s.logger.Info("started scraper", slog.String("target", id))
	}

	for id, cancel := range s.running {
		if _, ok := desired[id]; ok {
			continue
		}

		cancel()
		delete(s.running, id)

		s.logger.Info("stopped scraper", slog.String("target", id))
	}
}

func (s *Supervisor) toScraperConfig(t targetSpec) sshscraper.Config {
	return sshscraper.Config{
		Filename:    t.conn.File,
		Environment: t.environment,
		Host:        t.host,
		Credentials: sshscraper.Credentials{
			User:                 t.conn.User,
			Password:             t.conn.Password,
			PrivateKeyPath:       t.conn.PrivateKeyPath,
			PrivateKeyPassphrase: t.conn.PrivateKeyPassphrase,
		},
		ConnectTimeout: t.conn.ConnectTimeout(),
		ReadTimeout:    t.conn.ReadTimeout(),
		Readers:        s.readers,
		Separator:      s.conf.Global.SeparatorByte(),
		Quote:          s.conf.Global.QuoteByte(),
		Registry:       s.registry,
		Families:       s.families,
	}
}

// TargetCount reports the number of scrapers currently running, used by
// tests and diagnostics.
func (s *Supervisor) TargetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.running)
}

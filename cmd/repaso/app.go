package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/conorfennell/repaso/internal/config"
	"github.com/conorfennell/repaso/internal/gitsource"
	"github.com/conorfennell/repaso/internal/importer"
	"github.com/conorfennell/repaso/internal/metrics"
	"github.com/conorfennell/repaso/internal/review"
	"github.com/conorfennell/repaso/internal/sm2"
	"github.com/conorfennell/repaso/internal/storage"
)

// app holds everything a command needs once configuration is loaded.
type app struct {
	configPath string

	cfg      *config.Config
	logger   *slog.Logger
	db       *storage.DB
	registry *prometheus.Registry
	reviews  *review.Service
	importer *importer.Importer
	out      io.Writer
	in       io.Reader
	now      func() time.Time
}

func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// setup loads the configuration and opens the database.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.out = cmd.OutOrStdout()
	a.in = cmd.InOrStdin()
	if a.now == nil {
		a.now = time.Now
	}

	a.logger, err = newLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(a.logger)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	m, err := metrics.New(a.registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	a.db, err = storage.Open(cfg.DB)
	if err != nil {
		return err
	}
	a.logger.Debug("database opened", "path", cfg.DB)

	a.reviews = review.NewService(a.db,
		review.WithScheduler(sm2.New(sm2.WithPenalty(cfg.Penalty()))),
		review.WithMetrics(m),
		review.WithLogger(a.logger),
		review.WithLocation(loc),
		review.WithMaxNewPerDay(cfg.Quota.MaxNewPerDay),
		review.WithClock(a.now),
	)
	a.importer = importer.New(a.db, importer.Options{
		ReposDir:     cfg.ReposDir,
		Concurrency:  cfg.Sync.Concurrency,
		MaxNewPerDay: cfg.Quota.MaxNewPerDay,
		Location:     loc,
		Fetcher:      &gitsource.Syncer{Logger: a.logger},
		Metrics:      m,
		Logger:       a.logger,
		Clock:        a.now,
	})
	return nil
}

// close writes the metrics textfile, if configured, and closes the database.
// It is safe to call when setup never ran.
func (a *app) close() error {
	var errs []error
	if a.cfg != nil && a.cfg.Metrics.Textfile != "" && a.registry != nil {
		if err := prometheus.WriteToTextfile(a.cfg.Metrics.Textfile, a.registry); err != nil {
			errs = append(errs, fmt.Errorf("writing metrics: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, err)
		}
		a.db = nil
	}
	return errors.Join(errs...)
}

func (a *app) user() string {
	return a.cfg.User
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

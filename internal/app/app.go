package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"volunteermatch/internal/config"
	"volunteermatch/internal/db"
	"volunteermatch/internal/engine"
	"volunteermatch/internal/logger"
	"volunteermatch/internal/metrics"
	"volunteermatch/internal/migrate"
	"volunteermatch/internal/notify"
	"volunteermatch/internal/repo"
)

// Options selects the workspace and overrides for Open.
type Options struct {
	Workspace string
	// Config is loaded from the workspace when nil.
	Config *config.Config
	Log    *zap.Logger
	Now    func() time.Time
}

// App holds an opened workspace: store, engine and instruments.
type App struct {
	DB       *sql.DB
	Config   *config.Config
	Engine   engine.Engine
	Log      *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	closers []func() error
}

// Open opens and migrates the workspace store and wires the engine with
// the notifier chain described by the config.
func Open(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.LoadOrDefault(opts.Workspace)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.OrNop(opts.Log)

	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	a := &App{DB: conn, Config: cfg, Log: log, Registry: reg, Metrics: m}
	a.closers = append(a.closers, conn.Close)

	e := engine.New(conn, cfg)
	if opts.Now != nil {
		e = e.WithClock(opts.Now)
	}
	e = e.Instrument(log, m)
	n, closers := BuildNotifier(ctx, cfg, e.Repo, e.Now, log)
	e.Notifier = n
	a.closers = append(closers, a.closers...)
	a.Engine = e
	return a, nil
}

// BuildNotifier assembles the configured sinks. A Redis sink that cannot be
// reached at startup is skipped with a warning; delivery is best-effort.
func BuildNotifier(ctx context.Context, cfg *config.Config, r repo.Repo, now func() time.Time, log *zap.Logger) (notify.Notifier, []func() error) {
	log = logger.OrNop(log)
	var (
		sinks   notify.Multi
		closers []func() error
	)
	if cfg.Notifications.Store {
		sinks = append(sinks, notify.Store{Repo: r, Now: now})
	}
	if url := cfg.Notifications.Redis.URL; url != "" {
		rn, err := notify.NewRedis(ctx, url, cfg.Notifications.Redis.Channel)
		if err != nil {
			log.Warn("redis notifications disabled", zap.Error(err))
		} else {
			rn.Now = now
			sinks = append(sinks, rn)
			closers = append(closers, rn.Close)
		}
	}
	for _, h := range cfg.Notifications.Webhooks {
		sinks = append(sinks, notify.Webhook{
			URL:     h.URL,
			Secret:  h.Secret,
			Timeout: time.Duration(h.TimeoutSeconds) * time.Second,
			Types:   h.Types,
		})
	}
	switch len(sinks) {
	case 0:
		return notify.Nop{}, closers
	case 1:
		return sinks[0], closers
	}
	return sinks, closers
}

// Close releases notifier connections and the store.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

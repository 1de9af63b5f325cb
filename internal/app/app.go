// Package app assembles the long-running runtime with fx: configuration,
// logging, the SQLite store, metrics, the dispatch pool and the
// collaborator client.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"

	"github.com/gvarikaa/new-DapDip-sub001/internal/analytics"
	"github.com/gvarikaa/new-DapDip-sub001/internal/collab"
	"github.com/gvarikaa/new-DapDip-sub001/internal/config"
	"github.com/gvarikaa/new-DapDip-sub001/internal/dispatch"
	"github.com/gvarikaa/new-DapDip-sub001/internal/logger"
	"github.com/gvarikaa/new-DapDip-sub001/internal/store"
)

const drainTimeout = 5 * time.Second

// Module provides the shared runtime for cfg. Every resource is closed by
// the fx lifecycle.
func Module(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(
			newLogger,
			newStore,
			newRegistry,
			fx.Annotate(
				newMetrics,
				fx.As(fx.Self()),
				fx.As(new(analytics.Collector)),
			),
			newPool,
		),
	)
}

func newLogger(lc fx.Lifecycle, cfg *config.Config) (*slog.Logger, error) {
	log, flush, err := logger.New(logger.Options{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		SentryDSN: cfg.Log.SentryDSN,
		Env:       cfg.Log.Env,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(flush))
	return log, nil
}

func newStore(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) (*store.Store, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	log.Debug("store opened", "path", cfg.Store.Path)
	lc.Append(fx.StopHook(st.Close))
	return st, nil
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newMetrics(reg *prometheus.Registry) *analytics.Metrics {
	return analytics.NewMetrics(reg)
}

func newPool(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) (*dispatch.Pool, error) {
	pool, err := dispatch.NewPool(cfg.Dispatch.Workers, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(func() error {
		return pool.ReleaseTimeout(drainTimeout)
	}))
	return pool, nil
}

// Client provides the HTTP collaborator client and the outbox flusher that
// redelivers parked view records through it.
func Client() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				newHTTPClient,
				fx.As(new(collab.Client)),
			),
			newFlusher,
		),
	)
}

func newHTTPClient(cfg *config.Config, log *slog.Logger) (*collab.HTTPClient, error) {
	return collab.NewHTTPClient(collab.HTTPConfig{
		BaseURL:  cfg.Collab.BaseURL,
		Timeout:  cfg.Collab.Timeout,
		ViewRate: cfg.Collab.ViewRate,
	}, log)
}

func newFlusher(lc fx.Lifecycle, cfg *config.Config, st *store.Store, client collab.Client,
	metrics analytics.Collector, log *slog.Logger) *analytics.Flusher {
	f := analytics.NewFlusher(st, client, analytics.FlusherConfig{
		Interval: cfg.Dispatch.FlushInterval,
		Logger:   log,
		Metrics:  metrics,
	})

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return f.Start(ctx)
		},
		OnStop: func(context.Context) error {
			cancel()
			return f.Stop()
		},
	})
	return f
}

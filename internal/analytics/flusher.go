package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/gvarikaa/new-DapDip-sub001/internal/collab"
	"github.com/gvarikaa/new-DapDip-sub001/internal/dispatch"
)

// FlusherConfig configures outbox redelivery.
type FlusherConfig struct {
	Interval time.Duration
	Batch    int
	Retry    dispatch.RetryConfig
	Clock    clockwork.Clock
	Logger   *slog.Logger
	Metrics  Collector
}

// Flusher periodically delivers pending outbox records.
type Flusher struct {
	outbox    Outbox
	client    collab.Client
	cfg       FlusherConfig
	logger    *slog.Logger
	metrics   Collector
	scheduler gocron.Scheduler
}

func NewFlusher(outbox Outbox, client collab.Client, cfg FlusherConfig) *Flusher {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 50
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialInterval == 0 {
		cfg.Retry = dispatch.DefaultRetryConfig()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	f := &Flusher{
		outbox:  outbox,
		client:  client,
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	f.logger = f.logger.With("component", "flusher")
	if f.metrics == nil {
		f.metrics = Nop{}
	}
	return f
}

// Flush delivers one batch of pending records. Records that still fail are
// marked and left for the next run.
func (f *Flusher) Flush(ctx context.Context) (int, error) {
	entries, err := f.outbox.PendingViews(ctx, f.cfg.Batch)
	if err != nil {
		return 0, fmt.Errorf("flush: %w", err)
	}

	delivered := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		rec := entry.Record
		err := dispatch.Retry(ctx, f.logger, "record_view", func() error {
			err := f.client.RecordView(ctx, rec)
			if errors.Is(err, collab.ErrNotFound) {
				return dispatch.Permanent(err)
			}
			return err
		}, f.cfg.Retry)
		if err != nil {
			f.metrics.DeliveryFailed("record_view")
			if merr := f.outbox.MarkFailed(ctx, entry.ID, err); merr != nil {
				return delivered, fmt.Errorf("flush: %w", merr)
			}
			continue
		}
		if err := f.outbox.MarkDelivered(ctx, entry.ID, f.cfg.Clock.Now()); err != nil {
			return delivered, fmt.Errorf("flush: %w", err)
		}
		delivered++
	}

	if len(entries) > 0 {
		f.logger.Info("outbox flushed", "pending", len(entries), "delivered", delivered)
	}
	return delivered, nil
}

// Start schedules Flush every Interval until Stop or ctx is done.
func (f *Flusher) Start(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler(gocron.WithClock(f.cfg.Clock))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(f.cfg.Interval),
		gocron.NewTask(func() {
			if _, err := f.Flush(ctx); err != nil && ctx.Err() == nil {
				f.logger.Error("outbox flush failed", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("outbox-flush"),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("schedule flush: %w", err)
	}

	f.scheduler = scheduler
	scheduler.Start()
	f.logger.Info("outbox flusher started", "interval", f.cfg.Interval.String())
	return nil
}

// Stop shuts the scheduler down and waits for a running flush.
func (f *Flusher) Stop() error {
	if f.scheduler == nil {
		return nil
	}
	err := f.scheduler.Shutdown()
	f.scheduler = nil
	return err
}

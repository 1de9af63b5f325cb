package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gvarikaa/new-DapDip-sub001/internal/collab"
	"github.com/gvarikaa/new-DapDip-sub001/internal/dispatch"
	"github.com/gvarikaa/new-DapDip-sub001/internal/store"
)

// Outbox is the durable queue of view records. *store.Store implements it.
type Outbox interface {
	EnqueueView(ctx context.Context, v collab.ViewRecord, at time.Time) error
	PendingViews(ctx context.Context, limit int) ([]store.OutboxEntry, error)
	MarkDelivered(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, cause error) error
}

var _ Outbox = (*store.Store)(nil)

// DirectSink sends each record to the collaborator on the dispatcher.
// Records that fail after retries go to the outbox when one is set.
type DirectSink struct {
	client     collab.Client
	dispatcher dispatch.Dispatcher
	outbox     Outbox
	metrics    Collector
	logger     *slog.Logger
	timeout    time.Duration
}

// DirectSinkConfig configures a DirectSink. Outbox and Metrics are optional.
type DirectSinkConfig struct {
	Client     collab.Client
	Dispatcher dispatch.Dispatcher
	Outbox     Outbox
	Metrics    Collector
	Logger     *slog.Logger
	Timeout    time.Duration
}

func NewDirectSink(cfg DirectSinkConfig) *DirectSink {
	s := &DirectSink{
		client:     cfg.Client,
		dispatcher: cfg.Dispatcher,
		outbox:     cfg.Outbox,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		timeout:    cfg.Timeout,
	}
	if s.metrics == nil {
		s.metrics = Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.timeout <= 0 {
		s.timeout = 10 * time.Second
	}
	return s
}

func (s *DirectSink) Deliver(rec collab.ViewRecord, at time.Time) {
	err := s.dispatcher.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.client.RecordView(ctx, rec); err != nil {
			s.metrics.DeliveryFailed("record_view")
			s.logger.Warn("view delivery failed", "activation", rec.ActivationID, "final", rec.Final(), "error", err)
			s.park(rec, at)
		}
	})
	if err != nil {
		s.logger.Warn("view delivery not dispatched", "activation", rec.ActivationID, "error", err)
		s.park(rec, at)
	}
}

func (s *DirectSink) park(rec collab.ViewRecord, at time.Time) {
	if s.outbox == nil {
		return
	}
	if err := s.outbox.EnqueueView(context.Background(), rec, at); err != nil {
		s.logger.Error("view record lost", "activation", rec.ActivationID, "error", err)
	}
}

// OutboxSink writes every record to the outbox for a Flusher to deliver.
type OutboxSink struct {
	outbox Outbox
	logger *slog.Logger
}

func NewOutboxSink(outbox Outbox, logger *slog.Logger) *OutboxSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxSink{outbox: outbox, logger: logger}
}

func (s *OutboxSink) Deliver(rec collab.ViewRecord, at time.Time) {
	if err := s.outbox.EnqueueView(context.Background(), rec, at); err != nil {
		s.logger.Error("enqueue view record", "activation", rec.ActivationID, "error", err)
	}
}

// MemorySink keeps records in memory.
type MemorySink struct {
	mu      sync.Mutex
	records []collab.ViewRecord
}

func (s *MemorySink) Deliver(rec collab.ViewRecord, _ time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

// Records returns a copy of everything delivered so far.
func (s *MemorySink) Records() []collab.ViewRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]collab.ViewRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Finals returns only the closing records.
func (s *MemorySink) Finals() []collab.ViewRecord {
	var out []collab.ViewRecord
	for _, r := range s.Records() {
		if r.Final() {
			out = append(out, r)
		}
	}
	return out
}

// Multi fans a record out to several sinks in order.
type Multi []Sink

func (m Multi) Deliver(rec collab.ViewRecord, at time.Time) {
	for _, s := range m {
		s.Deliver(rec, at)
	}
}

var (
	_ Sink = (*DirectSink)(nil)
	_ Sink = (*OutboxSink)(nil)
	_ Sink = (*MemorySink)(nil)
	_ Sink = Multi(nil)
)

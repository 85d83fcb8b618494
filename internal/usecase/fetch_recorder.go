package usecase

import (
	"context"
	"fmt"
	"time"

	"MacroPull/internal/domain/models"
	drepo "MacroPull/internal/domain/repository"
	pkgmetrics "MacroPull/pkg/metrics"
)

// Event backends.
const (
	BackendNone       = "none"
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
)

// FetchRecorder routes fetch events to the configured backend.
type FetchRecorder struct {
	pub     drepo.EventPublisher
	store   drepo.EventStorage
	metrics drepo.Metrics
	backend string
}

func NewFetchRecorder(
	pub drepo.EventPublisher,
	store drepo.EventStorage,
	metrics drepo.Metrics,
	backend string,
) *FetchRecorder {
	if backend == "" {
		backend = BackendNone
	}
	if metrics == nil {
		metrics = pkgmetrics.Nop{}
	}
	return &FetchRecorder{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
	}
}

func (p *FetchRecorder) Backend() string { return p.backend }

// Process records a single event.
func (p *FetchRecorder) Process(ctx context.Context, e *models.FetchEvent) error {
	if e == nil {
		return fmt.Errorf("event is nil")
	}
	return p.ProcessBatch(ctx, []*models.FetchEvent{e})
}

// ProcessBatch records events in one backend call.
func (p *FetchRecorder) ProcessBatch(ctx context.Context, events []*models.FetchEvent) error {
	if len(events) == 0 {
		return nil
	}

	start := time.Now()
	var err error

	switch p.backend {
	case BackendNone:
		return nil
	case BackendKafka:
		if p.pub == nil {
			err = fmt.Errorf("kafka backend selected without publisher")
			break
		}
		err = p.pub.PublishBatch(ctx, events)
	case BackendClickHouse:
		if p.store == nil {
			err = fmt.Errorf("clickhouse backend selected without storage")
			break
		}
		err = p.store.StoreBatch(ctx, events)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("record_events")
		return fmt.Errorf("record %d events: %w", len(events), err)
	}

	p.metrics.RecordLatency("record_events."+p.backend, time.Since(start).Seconds())
	return nil
}

// Close closes underlying resources if available.
func (p *FetchRecorder) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}

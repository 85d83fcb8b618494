package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MacroPull/internal/domain/models"
	domrepo "MacroPull/internal/domain/repository"
	applogger "MacroPull/pkg/logger"
	"MacroPull/pkg/metrics"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	ProcessBatch(ctx context.Context, events []*models.FetchEvent) error
}

// EventPipeline sits between the request path and the event backend. Submit
// never blocks: events are queued, flushed in batches and retried with
// backoff while the backend is unavailable.
type EventPipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	log     *applogger.Logger

	bufSize    int
	batchSize  int
	flushEvery time.Duration
	maxRetries int

	bufCh   chan *models.FetchEvent
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	started bool
}

type PipelineOption func(*EventPipeline)

// WithBufferSize sets how many events may wait for the backend.
func WithBufferSize(n int) PipelineOption {
	return func(p *EventPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func WithBatch(size int, every time.Duration) PipelineOption {
	return func(p *EventPipeline) {
		if size > 0 {
			p.batchSize = size
		}
		if every > 0 {
			p.flushEvery = every
		}
	}
}

// WithMaxRetries bounds redelivery of a failed batch before it is dropped.
func WithMaxRetries(n int) PipelineOption {
	return func(p *EventPipeline) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

func WithLogger(l *applogger.Logger) PipelineOption {
	return func(p *EventPipeline) {
		if l != nil {
			p.log = l
		}
	}
}

func NewEventPipeline(proc Proc, m domrepo.Metrics, opts ...PipelineOption) *EventPipeline {
	if m == nil {
		m = metrics.Nop{}
	}
	p := &EventPipeline{
		proc:       proc,
		metrics:    m,
		log:        applogger.NewNop(),
		bufSize:    1000,
		batchSize:  100,
		flushEvery: time.Second,
		maxRetries: 3,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.FetchEvent, p.bufSize)
	return p
}

// Submit queues an event, dropping it when the buffer is full.
func (p *EventPipeline) Submit(e *models.FetchEvent) {
	if err := validateEvent(e); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return
	}
	select {
	case p.bufCh <- e:
	default:
		p.metrics.RecordError("pipeline_buffer_full")
	}
}

// Start launches background flushing of queued events.
func (p *EventPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.run(ctx)
}

// Stop flushes what is queued and waits for the flusher to exit.
func (p *EventPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.doneCh
}

func (p *EventPipeline) run(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.flushEvery)
	defer ticker.Stop()

	batch := make([]*models.FetchEvent, 0, p.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		p.deliver(ctx, batch)
		batch = make([]*models.FetchEvent, 0, p.batchSize)
	}

	for {
		select {
		case <-p.stopCh:
			for {
				select {
				case e := <-p.bufCh:
					batch = append(batch, e)
				default:
					p.deliver(context.WithoutCancel(ctx), batch)
					return
				}
			}
		case e := <-p.bufCh:
			batch = append(batch, e)
			if len(batch) >= p.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (p *EventPipeline) deliver(ctx context.Context, batch []*models.FetchEvent) {
	if len(batch) == 0 {
		return
	}
	start := time.Now()
	backoff := 50 * time.Millisecond
	for attempt := 0; ; attempt++ {
		err := p.proc.ProcessBatch(ctx, batch)
		if err == nil {
			p.metrics.RecordLatency("pipeline_flush", time.Since(start).Seconds())
			return
		}
		p.metrics.RecordError("pipeline_flush")
		if attempt >= p.maxRetries {
			p.metrics.RecordError("pipeline_drop")
			p.log.Error("dropping fetch events",
				applogger.Int("count", len(batch)),
				applogger.Int("attempts", attempt+1),
				applogger.Error(err))
			return
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
}

func validateEvent(e *models.FetchEvent) error {
	if e == nil {
		return fmt.Errorf("event nil")
	}
	if e.ID == "" {
		return fmt.Errorf("event id empty")
	}
	if e.Provider == "" {
		return fmt.Errorf("provider empty")
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("timestamp missing")
	}
	return nil
}

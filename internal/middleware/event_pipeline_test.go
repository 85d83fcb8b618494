package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MacroPull/internal/domain/models"
	"MacroPull/pkg/metrics"
)

type flakyProc struct {
	mu       sync.Mutex
	failures int
	batches  [][]*models.FetchEvent
}

func (p *flakyProc) ProcessBatch(_ context.Context, events []*models.FetchEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("backend unavailable")
	}
	p.batches = append(p.batches, events)
	return nil
}

func (p *flakyProc) delivered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func event(id string) *models.FetchEvent {
	return &models.FetchEvent{ID: id, Provider: "bls", Timestamp: time.Now(), Outcome: models.OutcomeSuccess}
}

func TestPipelineFlushesOnBatchSize(t *testing.T) {
	proc := &flakyProc{}
	p := NewEventPipeline(proc, metrics.Nop{}, WithBatch(2, time.Hour))
	p.Start(context.Background())
	defer p.Stop()

	p.Submit(event("a"))
	p.Submit(event("b"))

	require.Eventually(t, func() bool { return proc.delivered() == 2 }, time.Second, 10*time.Millisecond)
}

func TestPipelineRetriesFailedBatch(t *testing.T) {
	proc := &flakyProc{failures: 2}
	p := NewEventPipeline(proc, metrics.Nop{}, WithBatch(1, time.Hour), WithMaxRetries(3))
	p.Start(context.Background())
	defer p.Stop()

	p.Submit(event("a"))

	require.Eventually(t, func() bool { return proc.delivered() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestPipelineStopDrainsQueue(t *testing.T) {
	proc := &flakyProc{}
	p := NewEventPipeline(proc, metrics.Nop{}, WithBatch(100, time.Hour))
	p.Start(context.Background())

	for _, id := range []string{"a", "b", "c"} {
		p.Submit(event(id))
	}
	p.Stop()

	assert.Equal(t, 3, proc.delivered())
}

func TestPipelineDropsInvalidEvents(t *testing.T) {
	proc := &flakyProc{}
	p := NewEventPipeline(proc, metrics.Nop{}, WithBatch(1, time.Hour))
	p.Start(context.Background())

	p.Submit(nil)
	p.Submit(&models.FetchEvent{Provider: "bls"})
	p.Stop()

	assert.Equal(t, 0, proc.delivered())
}

package usecase

import (
	"context"
	"sync"

	"MacroPull/internal/domain/models"
)

type fakeSource struct {
	name   string
	series *models.Series
	err    error

	mu    sync.Mutex
	calls []string
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchSeries(_ context.Context, dataset, country string) (*models.Series, error) {
	f.mu.Lock()
	f.calls = append(f.calls, dataset+"|"+country)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.series, nil
}

func (f *fakeSource) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type recordingMetrics struct {
	mu        sync.Mutex
	attempts  []string
	fallbacks []string
	errors    []string
}

func (m *recordingMetrics) RecordAttempt(provider, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, provider+":"+outcome)
}

func (m *recordingMetrics) RecordFallback(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks = append(m.fallbacks, from+"->"+to)
}

func (m *recordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, kind)
}

func (m *recordingMetrics) RecordLatency(string, float64) {}

func seriesWith(id string, values ...float64) *models.Series {
	s := &models.Series{ID: id, Frequency: models.FrequencyAnnual}
	for i, v := range values {
		s.Points = append(s.Points, models.SeriesPoint{
			Time:  []string{"2019", "2020", "2021", "2022", "2023"}[i],
			Value: models.Value(v),
		})
	}
	return s
}

type captureSink struct {
	mu     sync.Mutex
	events []*models.FetchEvent
}

func (c *captureSink) Submit(e *models.FetchEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

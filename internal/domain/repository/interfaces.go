package repository

import (
	"context"

	"MacroPull/internal/domain/models"
)

// SeriesSource is a provider adapter producing canonical series.
type SeriesSource interface {
	Name() string
	FetchSeries(ctx context.Context, dataset, country string) (*models.Series, error)
}

type CountryLister interface {
	ListCountries(ctx context.Context) ([]models.Country, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, e *models.FetchEvent) error
	PublishBatch(ctx context.Context, events []*models.FetchEvent) error
	Close() error
}

type EventStorage interface {
	Init(ctx context.Context) error // ensure tables
	Store(ctx context.Context, e *models.FetchEvent) error
	StoreBatch(ctx context.Context, events []*models.FetchEvent) error
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordAttempt(provider, outcome string)
	RecordFallback(from, to string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

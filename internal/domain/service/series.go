package service

import (
	"context"

	"MacroPull/internal/domain/models"
)

// SeriesQuery is a single series request as the façade accepts it.
type SeriesQuery struct {
	Provider  string
	Dataset   string
	Country   string
	Transform string
}

// SeriesProvider resolves a SeriesQuery to a canonical series.
type SeriesProvider interface {
	GetSeries(ctx context.Context, q SeriesQuery) (*models.Series, error)
}

// IndustryQuery selects sectors for a multi-line panel.
type IndustryQuery struct {
	Provider string
	Country  string
	Codes    []string
	Price    string
	SAdj     string
	TopN     int
}

type IndustryProvider interface {
	Options(ctx context.Context, provider, level string) ([]models.IndustryOption, error)
	Panel(ctx context.Context, q IndustryQuery) (*models.IndustryPanel, error)
}

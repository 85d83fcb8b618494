//go:build wireinject
// +build wireinject

package di

import (
	"MacroPull/pkg/config"
	"MacroPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideHTTPClient,
		ProvideRateLimiter,
		ProvideCache,
		ProvideRevalidator,

		// Repositories
		ProvideEventStorage,
		ProvideEventPublisher,

		// Provider adapters
		ProvideWorldBank,
		ProvideBLS,
		ProvideFRED,
		ProvideEurostat,

		// Use cases
		ProvideFetchRecorder,
		ProvideEventPipeline,
		ProvideFallbackOrchestrator,
		ProvideSeriesQuery,
		ProvideCountries,
		ProvideIndustries,

		// Transport
		ProvideSeriesHandler,
		ProvideChartHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}

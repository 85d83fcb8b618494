package di

import (
	"context"
	"fmt"
	"time"

	"MacroPull/internal/domain/repository"
	"MacroPull/internal/handler/api"
	"MacroPull/internal/handler/ws"
	mid "MacroPull/internal/middleware"
	internalrepo "MacroPull/internal/repository"
	"MacroPull/internal/service/bls"
	"MacroPull/internal/service/eurostat"
	"MacroPull/internal/service/fred"
	"MacroPull/internal/service/ratelimit"
	"MacroPull/internal/service/upstream"
	"MacroPull/internal/service/worldbank"
	"MacroPull/internal/usecase"
	"MacroPull/pkg/cache"
	pkgch "MacroPull/pkg/clickhouse"
	"MacroPull/pkg/config"
	xhttp "MacroPull/pkg/http"
	pkgkafka "MacroPull/pkg/kafka"
	applogger "MacroPull/pkg/logger"
	"MacroPull/pkg/metrics"
	"MacroPull/pkg/server"
)

const initTimeout = 10 * time.Second

// ProvideKafkaProducer creates the shared producer when fetch events or the
// log digest go to Kafka; otherwise it returns nil.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if cfg.Events.Backend != config.EventsKafka && !cfg.Log.Digest.Enabled {
		return nil, func() {}, nil
	}
	k := cfg.Events.Kafka
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithClientID(k.ClientID),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithMaxAttempts(k.MaxAttempts),
		pkgkafka.WithWriteTimeout(k.WriteTimeout),
		pkgkafka.WithBatching(cfg.Events.BatchSize, cfg.Events.FlushInterval),
		pkgkafka.WithAsync(k.Async),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the application logger and attaches the error digest
// when it is enabled.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.Digest.Enabled && producer != nil {
		l.AttachDigest(&applogger.DigestConfig{
			Interval:    cfg.Log.Digest.Interval,
			MaxDistinct: cfg.Log.Digest.MaxDistinct,
			Topic:       cfg.Log.Digest.Topic,
			Publisher:   producer,
		})
	}
	child := l.With(applogger.String("env", cfg.Environment))
	// the digest publishes through the producer, so it stops before the producer closes
	return child, child.DetachDigest, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvideClickHouseClient connects only for the clickhouse event backend.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if cfg.Events.Backend != config.EventsClickHouse {
		return nil, func() {}, nil
	}
	ch := cfg.Events.ClickHouse
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddr(ch.Addr),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithAsyncInsert(ch.AsyncInsert),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, []string{"CREATE DATABASE IF NOT EXISTS " + ch.Database}); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideEventStorage creates the ClickHouse journal and its table.
func ProvideEventStorage(cfg *config.Config, client *pkgch.Client, l *applogger.Logger) (repository.EventStorage, error) {
	if client == nil {
		return nil, nil
	}
	ch := cfg.Events.ClickHouse
	store := internalrepo.NewClickHouseEventStorage(client.DB(), ch.Database+"."+ch.Table, l)

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("fetch event table: %w", err)
	}
	return store, nil
}

// ProvideEventPublisher publishes to Kafka only for the kafka event backend.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.EventPublisher {
	if cfg.Events.Backend != config.EventsKafka || producer == nil {
		return nil
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Events.Kafka.Topic)
}

func ProvideFetchRecorder(
	pub repository.EventPublisher,
	store repository.EventStorage,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.FetchRecorder {
	return usecase.NewFetchRecorder(pub, store, m, cfg.Events.Backend)
}

// ProvideEventPipeline returns nil when events are disabled.
func ProvideEventPipeline(
	recorder *usecase.FetchRecorder,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *mid.EventPipeline {
	if cfg.Events.Backend == config.EventsNone {
		return nil
	}
	return mid.NewEventPipeline(recorder, m,
		mid.WithBufferSize(cfg.Events.BufferSize),
		mid.WithBatch(cfg.Events.BatchSize, cfg.Events.FlushInterval),
		mid.WithMaxRetries(cfg.Events.MaxRetries),
		mid.WithLogger(l.With(applogger.String("component", "event_pipeline"))),
	)
}

// ProvideHTTPClient is the outbound client shared by every adapter.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(
		xhttp.WithTimeout(cfg.Providers.HTTPTimeout),
		xhttp.WithUserAgent(cfg.Providers.UserAgent),
	)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	rules := make(map[string]ratelimit.Rule, len(cfg.Providers.RateLimit))
	for name, r := range cfg.Providers.RateLimit {
		rules[name] = ratelimit.Rule{Capacity: r.Capacity, RefillPerSec: r.RefillPerSec}
	}
	return ratelimit.New(rules)
}

func newBase(provider string, client *xhttp.Client, lim *ratelimit.Limiter, m repository.Metrics, l *applogger.Logger) *upstream.Base {
	return upstream.NewBase(provider, client,
		upstream.WithLimiter(lim),
		upstream.WithMetrics(m),
		upstream.WithLogger(l),
	)
}

func ProvideWorldBank(cfg *config.Config, client *xhttp.Client, lim *ratelimit.Limiter, m repository.Metrics, l *applogger.Logger) *worldbank.Client {
	c := cfg.Providers.WorldBank
	return worldbank.New(worldbank.Config{
		BaseURL:  c.BaseURL,
		PerPage:  c.PerPage,
		MaxPages: c.MaxPages,
		Retries:  c.Retries,
	}, newBase(worldbank.ProviderName, client, lim, m, l))
}

func ProvideBLS(cfg *config.Config, client *xhttp.Client, lim *ratelimit.Limiter, m repository.Metrics, l *applogger.Logger) *bls.Client {
	c := cfg.Providers.BLS
	return bls.New(bls.Config{
		BaseURL:  c.BaseURL,
		APIKey:   c.APIKey,
		YearSpan: c.YearSpan,
	}, newBase(bls.ProviderName, client, lim, m, l))
}

func ProvideFRED(cfg *config.Config, client *xhttp.Client, lim *ratelimit.Limiter, m repository.Metrics, l *applogger.Logger) *fred.Client {
	c := cfg.Providers.FRED
	return fred.New(fred.Config{
		BaseURL:          c.BaseURL,
		CSVURL:           c.CSVURL,
		APIKey:           c.APIKey,
		ObservationStart: c.ObservationStart,
	}, newBase(fred.ProviderName, client, lim, m, l))
}

func ProvideEurostat(cfg *config.Config, client *xhttp.Client, lim *ratelimit.Limiter, m repository.Metrics, l *applogger.Logger) *eurostat.Client {
	return eurostat.New(eurostat.Config{
		BaseURL: cfg.Providers.Eurostat.BaseURL,
	}, newBase(eurostat.ProviderName, client, lim, m, l))
}

func ProvideFallbackOrchestrator(m repository.Metrics, l *applogger.Logger) *usecase.FallbackOrchestrator {
	return usecase.NewFallbackOrchestrator(m, l)
}

// ProvideSeriesQuery registers every adapter with the façade. Fetch events
// flow into the pipeline when one is configured.
func ProvideSeriesQuery(
	orch *usecase.FallbackOrchestrator,
	wb *worldbank.Client,
	b *bls.Client,
	f *fred.Client,
	euro *eurostat.Client,
	pipeline *mid.EventPipeline,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.SeriesQueryUseCase {
	var sink usecase.EventSink
	if pipeline != nil {
		sink = pipeline
	}
	uc := usecase.NewSeriesQueryUseCase(orch,
		[]repository.SeriesSource{wb, b, f, euro},
		cfg.Providers.Mirrors,
		sink,
		l,
	)
	uc.SetTimeout(cfg.Providers.FetchTimeout)
	return uc
}

func ProvideCountries(wb *worldbank.Client) *usecase.CountriesUseCase {
	return usecase.NewCountriesUseCase(map[string]repository.CountryLister{
		usecase.ProviderWorldBank: wb,
	})
}

func ProvideIndustries(wb *worldbank.Client, euro *eurostat.Client) *usecase.IndustriesUseCase {
	return usecase.NewIndustriesUseCase(wb, euro)
}

// ProvideCache builds the response cache store; nil disables caching.
func ProvideCache(cfg *config.Config) (cache.Service, func(), error) {
	c := cfg.Cache
	switch c.Backend {
	case config.CacheNone:
		return nil, func() {}, nil
	case config.CacheMemory:
		mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(c.MemoryMaxSize))
		return mc, func() { _ = mc.Close() }, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	rc, err := cache.NewRedisCache(ctx,
		cache.WithRedisAddr(c.Redis.Addr),
		cache.WithRedisPassword(c.Redis.Password),
		cache.WithRedisDB(c.Redis.DB),
		cache.WithRedisPool(c.Redis.PoolSize, c.Redis.PoolSize/2),
		cache.WithRedisPrefix(c.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	var store cache.Service = rc
	if c.Backend == config.CacheLayered {
		store = cache.NewLayeredCache(rc,
			cache.WithLayeredMemorySize(c.MemoryMaxSize),
			cache.WithLayeredL1TTL(c.Fresh),
		)
	}
	return store, func() { _ = store.Close() }, nil
}

func ProvideRevalidator(store cache.Service, cfg *config.Config, l *applogger.Logger) *cache.Revalidator {
	if store == nil {
		return nil
	}
	return cache.NewRevalidator(store, cfg.Cache.Fresh, cfg.Cache.Stale,
		cache.WithRefreshTimeout(cfg.Cache.RefreshTimeout),
		cache.WithRevalidatorLogger(l),
	)
}

func ProvideSeriesHandler(
	l *applogger.Logger,
	series *usecase.SeriesQueryUseCase,
	countries *usecase.CountriesUseCase,
	industries *usecase.IndustriesUseCase,
	rv *cache.Revalidator,
) *api.SeriesEchoHandler {
	return api.NewSeriesEchoHandler(l, series, countries, industries, rv)
}

func ProvideChartHandler(series *usecase.SeriesQueryUseCase, cfg *config.Config, l *applogger.Logger) *ws.ChartHandler {
	return ws.NewChartHandler(series,
		ws.WithLogger(l.With(applogger.String("component", "chart_ws"))),
		ws.WithAllowedOrigins(cfg.Server.CORSOrigins),
	)
}

func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	series *api.SeriesEchoHandler,
	chart *ws.ChartHandler,
) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithLogger(l.With(applogger.String("component", "http"))),
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		opts = append(opts, xhttp.WithCORSOrigins(cfg.Server.CORSOrigins))
	}
	return xhttp.NewServer([]xhttp.Handler{series, chart}, opts...)
}

func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	pipeline *mid.EventPipeline,
	recorder *usecase.FetchRecorder,
	rv *cache.Revalidator,
) *server.App {
	return server.New(cfg, l, httpServer, pipeline, recorder, rv)
}

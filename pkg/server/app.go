package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MacroPull/internal/middleware"
	"MacroPull/internal/usecase"
	"MacroPull/pkg/cache"
	"MacroPull/pkg/config"
	xhttp "MacroPull/pkg/http"
	applogger "MacroPull/pkg/logger"
)

// App encapsulates the application lifecycle. The clients it uses (cache,
// Kafka producer, ClickHouse) are closed by the injector cleanup after Run.
type App struct {
	cfg      *config.Config
	log      *applogger.Logger
	http     *xhttp.Server
	pipeline *middleware.EventPipeline
	recorder *usecase.FetchRecorder
	rv       *cache.Revalidator
}

func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	pipeline *middleware.EventPipeline,
	recorder *usecase.FetchRecorder,
	rv *cache.Revalidator,
) *App {
	if log == nil {
		log = applogger.NewNop()
	}
	return &App{
		cfg:      cfg,
		log:      log,
		http:     httpServer,
		pipeline: pipeline,
		recorder: recorder,
		rv:       rv,
	}
}

// Run starts the event pipeline and the HTTP server, then blocks until
// SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext is Run with caller-controlled cancellation.
func (a *App) RunContext(ctx context.Context) error {
	if a.pipeline != nil {
		// stopped explicitly in shutdown so queued events still drain
		a.pipeline.Start(context.WithoutCancel(ctx))
		backend := usecase.BackendNone
		if a.recorder != nil {
			backend = a.recorder.Backend()
		}
		a.log.Info("event pipeline started", applogger.String("backend", backend))
	}

	if err := a.http.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		a.shutdown()
		return err
	}
	a.log.Info("application started",
		applogger.String("host", a.cfg.Server.Host),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("environment", a.cfg.Environment),
	)

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	a.shutdown()
	return nil
}

// shutdown stops intake first, then drains queued events and refreshes.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	if err := a.http.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.pipeline != nil {
		a.pipeline.Stop()
	}
	// the digest publishes through the producer, so it stops first
	a.log.DetachDigest()
	if a.recorder != nil {
		a.recorder.Close()
	}

	// background refreshes write to the cache, which closes after Run returns
	if a.rv != nil {
		a.rv.Wait()
	}
	a.log.Info("shutdown complete")
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg != nil && a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}

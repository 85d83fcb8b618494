package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MacroPull/internal/middleware"
	"MacroPull/internal/usecase"
	"MacroPull/pkg/cache"
	"MacroPull/pkg/config"
	xhttp "MacroPull/pkg/http"
)

func TestRunContextShutsDownOnCancel(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	store := cache.NewMemoryCache()
	defer store.Close()
	recorder := usecase.NewFetchRecorder(nil, nil, nil, usecase.BackendNone)
	pipeline := middleware.NewEventPipeline(recorder, nil, middleware.WithBatch(10, 10*time.Millisecond))
	srv := xhttp.NewServer(nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0))

	app := New(cfg, nil, srv, pipeline, recorder, cache.NewRevalidator(store, time.Minute, time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}

	// clients belong to the injector cleanup, so the cache is still open
	require.NoError(t, store.Set(context.Background(), "k", []byte("v"), time.Minute))
	v, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}

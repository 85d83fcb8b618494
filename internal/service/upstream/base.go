package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"MacroPull/internal/domain/models"
	"MacroPull/internal/domain/repository"
	"MacroPull/internal/service/ratelimit"
	xhttp "MacroPull/pkg/http"
	applogger "MacroPull/pkg/logger"
	"MacroPull/pkg/metrics"
)

// excerptLen bounds the body text carried on UpstreamError.
const excerptLen = 400

// Base is the shared foundation of the provider adapters. It turns transport
// failures and non-2xx responses into UpstreamError and paces calls through
// the limiter.
type Base struct {
	provider string
	client   *xhttp.Client
	limiter  *ratelimit.Limiter
	metrics  repository.Metrics
	log      *applogger.Logger
}

type Option func(*Base)

func WithLimiter(l *ratelimit.Limiter) Option { return func(b *Base) { b.limiter = l } }

func WithMetrics(m repository.Metrics) Option {
	return func(b *Base) {
		if m != nil {
			b.metrics = m
		}
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(b *Base) {
		if l != nil {
			b.log = l
		}
	}
}

func NewBase(provider string, client *xhttp.Client, opts ...Option) *Base {
	if client == nil {
		client = xhttp.NewClient()
	}
	b := &Base{
		provider: provider,
		client:   client,
		metrics:  metrics.Nop{},
		log:      applogger.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.With(applogger.String("provider", provider))
	return b
}

func (b *Base) Provider() string { return b.provider }

func (b *Base) Logger() *applogger.Logger { return b.log }

// Fetch performs the request and returns the body of a 2xx response.
func (b *Base) Fetch(ctx context.Context, opts *xhttp.RequestOptions) ([]byte, error) {
	if !b.limiter.Allow(b.provider) {
		b.metrics.RecordError("rate_limited")
		return nil, &models.UpstreamError{
			Provider:    b.provider,
			Status:      http.StatusTooManyRequests,
			BodyExcerpt: "local request budget exhausted",
		}
	}

	start := time.Now()
	resp, err := b.client.Do(ctx, opts)
	b.metrics.RecordLatency("fetch."+b.provider, time.Since(start).Seconds())
	if err != nil {
		b.metrics.RecordError("upstream_transport")
		return nil, &models.UpstreamError{Provider: b.provider, Err: err}
	}
	if !resp.OK() {
		b.metrics.RecordError("upstream_status")
		b.log.Debug("upstream returned non-2xx",
			applogger.String("url", opts.URL),
			applogger.Int("status", resp.Status))
		return nil, &models.UpstreamError{
			Provider:    b.provider,
			Status:      resp.Status,
			BodyExcerpt: xhttp.Excerpt(resp.Body, excerptLen),
		}
	}
	return resp.Body, nil
}

// FetchWithRetry retries transport failures and 5xx responses with a linear backoff.
func (b *Base) FetchWithRetry(ctx context.Context, opts *xhttp.RequestOptions, attempts int) ([]byte, error) {
	if attempts <= 1 {
		return b.Fetch(ctx, opts)
	}
	var err error
	for i := 1; i <= attempts; i++ {
		var body []byte
		body, err = b.Fetch(ctx, opts)
		if err == nil || !retryable(err) || i == attempts {
			return body, err
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return nil, &models.UpstreamError{Provider: b.provider, Err: ctx.Err()}
		}
	}
	return nil, err
}

// GetJSON fetches url and decodes the 2xx body into dest.
func (b *Base) GetJSON(ctx context.Context, url string, query map[string][]string, dest interface{}) error {
	body, err := b.Fetch(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         url,
		QueryParams: query,
		Headers:     map[string]string{"Accept": "application/json"},
	})
	if err != nil {
		return err
	}
	return b.Decode(body, dest)
}

// Decode unmarshals a JSON body, reporting a ParseError on failure.
func (b *Base) Decode(body []byte, dest interface{}) error {
	if err := json.Unmarshal(body, dest); err != nil {
		return b.ParseError("response is not valid JSON", err)
	}
	return nil
}

func (b *Base) ParseError(reason string, err error) error {
	b.metrics.RecordError("parse")
	return &models.ParseError{Provider: b.provider, Reason: reason, Err: err}
}

func retryable(err error) bool {
	var up *models.UpstreamError
	if !errors.As(err, &up) {
		return false
	}
	if up.Status == 0 {
		return !errors.Is(up.Err, context.Canceled)
	}
	return up.Status >= 500
}

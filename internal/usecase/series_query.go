package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"MacroPull/internal/domain/models"
	drepo "MacroPull/internal/domain/repository"
	dservice "MacroPull/internal/domain/service"
	"MacroPull/internal/services/features"
	applogger "MacroPull/pkg/logger"
)

// Canonical provider names accepted by the series façade.
const (
	ProviderWorldBank = "worldbank"
	ProviderBLS       = "bls"
	ProviderFRED      = "fred"
	ProviderEurostat  = "eurostat"
)

// DefaultMirrors maps BLS series ids to the FRED series carrying the same data.
var DefaultMirrors = map[string]string{
	"LNS14000000":   "UNRATE",
	"CUUR0000SA0":   "CPIAUCNS",
	"CUSR0000SA0":   "CPIAUCSL",
	"CES0000000001": "PAYEMS",
}

// CanonicalProvider resolves provider aliases. It reports false for names
// the façade does not serve.
func CanonicalProvider(p string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "worldbank", "wb":
		return ProviderWorldBank, true
	case "bls":
		return ProviderBLS, true
	case "fred":
		return ProviderFRED, true
	case "eurostat":
		return ProviderEurostat, true
	}
	return "", false
}

// EventSink accepts fetch telemetry without blocking the request path.
type EventSink interface {
	Submit(e *models.FetchEvent)
}

// SeriesQueryUseCase builds a fallback chain per request, resolves it and
// applies the requested transform.
type SeriesQueryUseCase struct {
	sources map[string]drepo.SeriesSource
	mirrors map[string]string
	orch    *FallbackOrchestrator
	events  EventSink
	timeout time.Duration
	log     *applogger.Logger
}

var _ dservice.SeriesProvider = (*SeriesQueryUseCase)(nil)

// NewSeriesQueryUseCase registers sources by their Name. A nil mirrors map
// uses DefaultMirrors; events may be nil.
func NewSeriesQueryUseCase(
	orch *FallbackOrchestrator,
	sources []drepo.SeriesSource,
	mirrors map[string]string,
	events EventSink,
	log *applogger.Logger,
) *SeriesQueryUseCase {
	if mirrors == nil {
		mirrors = DefaultMirrors
	}
	if log == nil {
		log = applogger.NewNop()
	}
	m := make(map[string]drepo.SeriesSource, len(sources))
	for _, s := range sources {
		if s != nil {
			m[s.Name()] = s
		}
	}
	return &SeriesQueryUseCase{
		sources: m,
		mirrors: mirrors,
		orch:    orch,
		events:  events,
		timeout: 30 * time.Second,
		log:     log,
	}
}

// SetTimeout bounds one whole chain resolution.
func (uc *SeriesQueryUseCase) SetTimeout(d time.Duration) {
	if d > 0 {
		uc.timeout = d
	}
}

func (uc *SeriesQueryUseCase) GetSeries(ctx context.Context, q dservice.SeriesQuery) (*models.Series, error) {
	provider, ok := CanonicalProvider(q.Provider)
	if !ok || uc.sources[provider] == nil {
		return nil, &models.UnsupportedProviderError{Provider: q.Provider}
	}
	dataset := strings.TrimSpace(q.Dataset)
	if dataset == "" {
		return nil, &models.MissingParameterError{Param: "dataset"}
	}
	if !features.Supported(q.Transform) {
		return nil, &models.InvalidParameterError{Param: "transform", Value: q.Transform, Reason: "unsupported transform"}
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	start := time.Now()
	res, err := uc.orch.Resolve(ctx, uc.chain(provider, dataset, q.Country))
	uc.emit(provider, dataset, q.Country, start, res, err)
	if err != nil {
		return nil, err
	}
	return features.Apply(res.Series, q.Transform)
}

func (uc *SeriesQueryUseCase) chain(provider, dataset, country string) []Candidate {
	chain := []Candidate{{Source: uc.sources[provider], Dataset: dataset, Country: country}}
	if provider != ProviderBLS {
		return chain
	}
	fred := uc.sources[ProviderFRED]
	if fred == nil {
		return chain
	}
	mirror, ok := uc.mirrors[strings.ToUpper(dataset)]
	if !ok {
		mirror = dataset
	}
	return append(chain, Candidate{Source: fred, Dataset: mirror})
}

func (uc *SeriesQueryUseCase) emit(provider, dataset, country string, start time.Time, res *Resolution, err error) {
	if uc.events == nil {
		return
	}
	e := &models.FetchEvent{
		ID:         uuid.NewString(),
		Timestamp:  start.UTC(),
		Provider:   provider,
		Dataset:    dataset,
		Country:    country,
		DurationMs: time.Since(start).Milliseconds(),
	}
	switch {
	case err == nil:
		e.Outcome = models.OutcomeSuccess
		e.SourceUsed = res.SourceUsed
		e.Attempts = res.Attempts
		e.Points = len(res.Series.Points)
	default:
		e.Outcome = models.OutcomeFailure
		var empty *models.EmptyResultError
		if errors.As(err, &empty) {
			e.Outcome = models.OutcomeEmpty
		}
		if res != nil {
			e.Attempts = res.Attempts
		}
		e.Error = err.Error()
	}
	uc.events.Submit(e)
}

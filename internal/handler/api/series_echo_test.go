package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MacroPull/internal/domain/models"
	drepo "MacroPull/internal/domain/repository"
	dservice "MacroPull/internal/domain/service"
	"MacroPull/internal/usecase"
	"MacroPull/pkg/cache"
)

type stubSource struct {
	name  string
	calls atomic.Int32
	err   error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FetchSeries(_ context.Context, dataset, country string) (*models.Series, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &models.Series{
		ID:     s.name + ":" + dataset,
		Title:  dataset,
		Points: []models.SeriesPoint{{Time: "2020", Value: models.Value(1)}, {Time: "2021", Value: models.Value(3)}},
		Source: models.Source{Name: s.name},
	}, nil
}

type stubCountries struct{}

func (stubCountries) ListCountries(_ context.Context, provider string) ([]models.Country, error) {
	if p, _ := usecase.CanonicalProvider(provider); p != usecase.ProviderWorldBank {
		return nil, &models.UnsupportedProviderError{Provider: provider}
	}
	return []models.Country{{Code: "USA", Label: "United States"}}, nil
}

type stubIndustries struct {
	query dservice.IndustryQuery
}

func (s *stubIndustries) Options(_ context.Context, provider, level string) ([]models.IndustryOption, error) {
	return []models.IndustryOption{{Code: "AGR", Label: "Agriculture"}}, nil
}

func (s *stubIndustries) Panel(_ context.Context, q dservice.IndustryQuery) (*models.IndustryPanel, error) {
	s.query = q
	return &models.IndustryPanel{
		Provider: "worldbank",
		Country:  q.Country,
		Unit:     "% of GDP",
		Series:   []models.IndustrySeries{{Key: "Agriculture", Code: "AGR", Points: []models.YearPoint{{Year: 2020, Value: models.Value(1.1)}}}},
		Errors:   map[string]string{"Industry": "worldbank: upstream status 502"},
	}, nil
}

type fixture struct {
	e          *echo.Echo
	wb         *stubSource
	industries *stubIndustries
}

func newFixture(t *testing.T, rv *cache.Revalidator, wbErr error) *fixture {
	t.Helper()
	wb := &stubSource{name: "worldbank", err: wbErr}
	facade := usecase.NewSeriesQueryUseCase(usecase.NewFallbackOrchestrator(nil, nil), []drepo.SeriesSource{wb}, nil, nil, nil)
	ind := &stubIndustries{}

	e := echo.New()
	NewSeriesEchoHandler(nil, facade, stubCountries{}, ind, rv).RegisterRoutes(e)
	return &fixture{e: e, wb: wb, industries: ind}
}

func (f *fixture) get(t *testing.T, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestSeriesEndpoint(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec, body := f.get(t, "/api/series?provider=wb&dataset=NY.GDP.MKTP.CD&country=usa")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
	series := body["series"].(map[string]interface{})
	assert.Equal(t, "worldbank:NY.GDP.MKTP.CD", series["id"])
	assert.Len(t, series["points"], 2)
}

func TestSeriesEndpointTransform(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec, body := f.get(t, "/api/series?provider=wb&dataset=X&country=USA&transform=diff1")
	require.Equal(t, http.StatusOK, rec.Code)
	points := body["series"].(map[string]interface{})["points"].([]interface{})
	assert.Nil(t, points[0].(map[string]interface{})["value"])
	assert.InDelta(t, 2.0, points[1].(map[string]interface{})["value"], 1e-9)
}

func TestSeriesEndpointRequestErrors(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec, body := f.get(t, "/api/series?provider=wb")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "dataset")

	rec, body = f.get(t, "/api/series?provider=imf&dataset=X")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "unsupported provider")

	rec, _ = f.get(t, "/api/series?provider=wb&dataset=X&transform=log")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, int32(0), f.wb.calls.Load())
}

func TestSeriesEndpointUpstreamFailure(t *testing.T) {
	f := newFixture(t, nil, &models.UpstreamError{Provider: "worldbank", Status: 502})

	rec, body := f.get(t, "/api/series?provider=wb&dataset=X&country=USA")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, body["error"], "upstream status 502")
	details := body["details"].(map[string]interface{})
	assert.Equal(t, "worldbank", details["provider"])
}

func TestSeriesEndpointCachesSuccessOnly(t *testing.T) {
	store := cache.NewMemoryCache()
	defer store.Close()
	f := newFixture(t, cache.NewRevalidator(store, time.Hour, time.Hour), nil)

	rec, _ := f.get(t, "/api/series?provider=wb&dataset=X&country=USA")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	rec, _ = f.get(t, "/api/series?provider=wb&dataset=X&country=USA")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, int32(1), f.wb.calls.Load())

	f.wb.err = &models.UpstreamError{Provider: "worldbank", Status: 500}
	rec, _ = f.get(t, "/api/series?provider=wb&dataset=Y&country=USA")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	rec, _ = f.get(t, "/api/series?provider=wb&dataset=Y&country=USA")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
}

func TestCountriesEndpoint(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec, body := f.get(t, "/api/countries")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["countries"], 1)

	rec, body = f.get(t, "/api/countries?provider=fred")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, body["error"])
}

func TestIndustrySeriesEndpoint(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec, body := f.get(t, "/api/industries/series?country=deu&codes=AGR;%20IND;&n=3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "wb", body["provider"])
	assert.Equal(t, "% of GDP", body["unit"])
	assert.Contains(t, body["errors"], "Industry")

	assert.Equal(t, dservice.IndustryQuery{
		Provider: "wb", Country: "DEU", Codes: []string{"AGR", "IND"}, Price: "CP_MEUR", SAdj: "NSA", TopN: 3,
	}, f.industries.query)
}

func TestIndustryOptionsEndpoint(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec, body := f.get(t, "/api/industries/options")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	assert.Len(t, body["options"], 1)

	rec, body = f.get(t, "/api/industries/options?level=everything")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["ok"])
	assert.Contains(t, body["error"], "level")
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil, nil)
	rec, body := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

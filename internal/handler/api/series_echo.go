package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"MacroPull/internal/domain/models"
	dservice "MacroPull/internal/domain/service"
	"MacroPull/internal/service/metrics"
	"MacroPull/pkg/cache"
	xhttp "MacroPull/pkg/http"
	xlogger "MacroPull/pkg/logger"
	"MacroPull/pkg/util"
)

// CountryLister lists selectable countries for a provider.
type CountryLister interface {
	ListCountries(ctx context.Context, provider string) ([]models.Country, error)
}

// SeriesEchoHandler serves the series, countries and industries endpoints.
// Responses are cached stale-while-revalidate when a Revalidator is set.
type SeriesEchoHandler struct {
	logger     *xlogger.Logger
	series     dservice.SeriesProvider
	countries  CountryLister
	industries dservice.IndustryProvider
	cache      *cache.Revalidator
}

func NewSeriesEchoHandler(
	logger *xlogger.Logger,
	series dservice.SeriesProvider,
	countries CountryLister,
	industries dservice.IndustryProvider,
	rv *cache.Revalidator,
) *SeriesEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &SeriesEchoHandler{
		logger:     logger,
		series:     series,
		countries:  countries,
		industries: industries,
		cache:      rv,
	}
}

func (h *SeriesEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/countries", h.Countries)
	g.GET("/series", h.Series)
	g.GET("/industries/options", h.IndustryOptions)
	g.GET("/industries/series", h.IndustrySeries)
}

func (h *SeriesEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

type countriesResponse struct {
	Countries []models.Country `json:"countries"`
}

func (h *SeriesEchoHandler) Countries(c echo.Context) error {
	req := &models.CountriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.AppErrorResponse(c, verr)
	}
	key := cache.Key("countries", strings.ToLower(req.Provider))
	return h.serve(c, "countries", key, func(ctx context.Context) (interface{}, error) {
		list, err := h.countries.ListCountries(ctx, req.Provider)
		if err != nil {
			return nil, err
		}
		return countriesResponse{Countries: list}, nil
	}, h.fail)
}

type seriesResponse struct {
	Series *models.Series `json:"series"`
}

func (h *SeriesEchoHandler) Series(c echo.Context) error {
	req := &models.SeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.AppErrorResponse(c, verr)
	}
	q := dservice.SeriesQuery{
		Provider:  req.Provider,
		Dataset:   req.Dataset,
		Country:   strings.ToUpper(req.Country),
		Transform: req.Transform,
	}
	key := cache.Key("series", strings.ToLower(q.Provider), q.Dataset, q.Country, q.Transform)
	return h.serve(c, "series", key, func(ctx context.Context) (interface{}, error) {
		s, err := h.series.GetSeries(ctx, q)
		if err != nil {
			return nil, err
		}
		return seriesResponse{Series: s}, nil
	}, h.fail)
}

type industryOptionsResponse struct {
	OK       bool                    `json:"ok"`
	Provider string                  `json:"provider"`
	Options  []models.IndustryOption `json:"options"`
}

func (h *SeriesEchoHandler) IndustryOptions(c echo.Context) error {
	req := &models.IndustryOptionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.failIndustry(c, "industries_options", verr)
	}
	key := cache.Key("industries", "options", req.Provider, req.Level)
	return h.serve(c, "industries_options", key, func(ctx context.Context) (interface{}, error) {
		opts, err := h.industries.Options(ctx, req.Provider, req.Level)
		if err != nil {
			return nil, err
		}
		return industryOptionsResponse{OK: true, Provider: req.Provider, Options: opts}, nil
	}, h.failIndustry)
}

type industrySeriesResponse struct {
	OK       bool                    `json:"ok"`
	Provider string                  `json:"provider"`
	Country  string                  `json:"country"`
	Unit     string                  `json:"unit"`
	Series   []models.IndustrySeries `json:"series"`
	Errors   map[string]string       `json:"errors,omitempty"`
}

func (h *SeriesEchoHandler) IndustrySeries(c echo.Context) error {
	req := &models.IndustrySeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.failIndustry(c, "industries_series", verr)
	}
	q := dservice.IndustryQuery{
		Provider: req.Provider,
		Country:  strings.ToUpper(req.Country),
		Codes:    util.SplitList(req.Codes, ";"),
		Price:    req.Price,
		SAdj:     req.SAdj,
		TopN:     req.N,
	}
	key := cache.Key("industries", "series", q.Provider, q.Country, strings.Join(q.Codes, ";"), q.Price, q.SAdj, strconv.Itoa(q.TopN))
	return h.serve(c, "industries_series", key, func(ctx context.Context) (interface{}, error) {
		panel, err := h.industries.Panel(ctx, q)
		if err != nil {
			return nil, err
		}
		return industrySeriesResponse{
			OK:       true,
			Provider: req.Provider,
			Country:  panel.Country,
			Unit:     panel.Unit,
			Series:   panel.Series,
			Errors:   panel.Errors,
		}, nil
	}, h.failIndustry)
}

type failFunc func(c echo.Context, endpoint string, err error) error

// serve answers from the response cache, or from load when caching is off.
func (h *SeriesEchoHandler) serve(c echo.Context, endpoint, key string, load func(context.Context) (interface{}, error), fail failFunc) error {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	loader := func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}

	ctx := c.Request().Context()
	var (
		body []byte
		err  error
	)
	if h.cache != nil {
		var status cache.Status
		body, status, err = h.cache.Get(ctx, key, loader)
		c.Response().Header().Set("X-Cache", string(status))
		metrics.CacheResults.WithLabelValues(endpoint, string(status)).Inc()
	} else {
		body, err = loader(ctx)
	}
	if err != nil {
		return fail(c, endpoint, err)
	}
	return xhttp.RawJSONResponse(c, http.StatusOK, body)
}

func (h *SeriesEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := h.record(c, endpoint, err)
	return xhttp.ErrorResponse(c, appErr.Status, appErr.Message, appErr.Details)
}

// failIndustry keeps the {ok:false} envelope of the industries endpoints.
func (h *SeriesEchoHandler) failIndustry(c echo.Context, endpoint string, err error) error {
	appErr := h.record(c, endpoint, err)
	return c.JSON(appErr.Status, map[string]interface{}{
		"ok":    false,
		"error": appErr.Message,
	})
}

func (h *SeriesEchoHandler) record(c echo.Context, endpoint string, err error) *xhttp.AppError {
	appErr := ToAppError(err)
	kind := ErrorKind(err)
	metrics.APIErrors.WithLabelValues(endpoint, kind).Inc()

	fields := []xlogger.Field{
		xlogger.String("endpoint", endpoint),
		xlogger.String("query", c.QueryString()),
		xlogger.String("kind", kind),
		xlogger.Error(err),
	}
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Warn("request rejected", fields...)
	}
	return appErr
}

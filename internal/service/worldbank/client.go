package worldbank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"MacroPull/internal/domain/models"
	"MacroPull/internal/service/upstream"
	xhttp "MacroPull/pkg/http"
	applogger "MacroPull/pkg/logger"
	"MacroPull/pkg/util"
)

const (
	ProviderName   = "worldbank"
	DefaultBaseURL = "https://api.worldbank.org/v2"
)

type Config struct {
	BaseURL  string
	PerPage  int
	MaxPages int
	Retries  int
}

// Client implements repository.SeriesSource and repository.CountryLister
// against the World Bank indicators API.
type Client struct {
	cfg  Config
	base *upstream.Base
}

func New(cfg Config, base *upstream.Base) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PerPage <= 0 {
		cfg.PerPage = 20000
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 2
	}
	return &Client{cfg: cfg, base: base}
}

func (c *Client) Name() string { return ProviderName }

// flexInt accepts both 5 and "5"; the API is not consistent about it.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

type pageMeta struct {
	Page  flexInt `json:"page"`
	Pages flexInt `json:"pages"`
	Total flexInt `json:"total"`
}

type apiMessage struct {
	Message []struct {
		ID    string `json:"id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"message"`
}

type idValue struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type observation struct {
	Indicator idValue         `json:"indicator"`
	Country   idValue         `json:"country"`
	ISO3      string          `json:"countryiso3code"`
	Date      string          `json:"date"`
	Value     json.RawMessage `json:"value"`
	Unit      string          `json:"unit"`
}

// FetchSeries loads indicator for country. Both are required.
func (c *Client) FetchSeries(ctx context.Context, indicator, country string) (*models.Series, error) {
	indicator = strings.TrimSpace(indicator)
	country = strings.ToUpper(strings.TrimSpace(country))
	if indicator == "" {
		return nil, &models.MissingParameterError{Param: "dataset"}
	}
	if country == "" {
		return nil, &models.MissingParameterError{Param: "country"}
	}

	endpoint := fmt.Sprintf("%s/country/%s/indicator/%s",
		c.cfg.BaseURL, url.PathEscape(country), url.PathEscape(indicator))

	var rows []observation
	for page := 1; page <= c.cfg.MaxPages; page++ {
		meta, batch, err := c.fetchPage(ctx, endpoint, page)
		if err != nil {
			return nil, err
		}
		rows = append(rows, batch...)
		if int(meta.Pages) <= page {
			break
		}
		if page == c.cfg.MaxPages {
			c.base.Logger().Warn("world bank pagination truncated",
				applogger.String("indicator", indicator),
				applogger.Int("pages", int(meta.Pages)))
		}
	}

	points := make([]models.SeriesPoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, models.SeriesPoint{
			Time:  util.CanonicalPeriod(r.Date),
			Value: models.RawValue(r.Value),
		})
	}
	points, err := models.NormalizePoints(points)
	if err != nil {
		return nil, c.base.ParseError("unexpected date", err)
	}

	s := &models.Series{
		ID:     fmt.Sprintf("worldbank:%s:%s", indicator, country),
		Title:  indicator + " - " + country,
		Points: points,
		Source: models.Source{
			Name:    "World Bank",
			URL:     "https://data.worldbank.org/indicator/" + url.PathEscape(indicator),
			License: "CC BY-4.0",
		},
		Meta: map[string]string{"indicator": indicator, "country": country},
	}
	if len(rows) > 0 {
		if rows[0].Indicator.Value != "" && rows[0].Country.Value != "" {
			s.Title = rows[0].Indicator.Value + " - " + rows[0].Country.Value
		}
		s.Unit = rows[0].Unit
	}
	s.Frequency = models.InferFrequency(points)
	return s, nil
}

func (c *Client) fetchPage(ctx context.Context, endpoint string, page int) (*pageMeta, []observation, error) {
	body, err := c.base.FetchWithRetry(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    endpoint,
		QueryParams: map[string][]string{
			"format":   {"json"},
			"per_page": {strconv.Itoa(c.cfg.PerPage)},
			"page":     {strconv.Itoa(page)},
		},
	}, c.cfg.Retries)
	if err != nil {
		return nil, nil, err
	}

	var rows []observation
	meta, err := c.decodeEnvelope(body, &rows)
	if err != nil {
		return nil, nil, err
	}
	return meta, rows, nil
}

// decodeEnvelope validates the [meta, rows] shape and decodes rows into dest.
func (c *Client) decodeEnvelope(body []byte, dest interface{}) (*pageMeta, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil {
		return nil, c.base.ParseError("response is not a JSON array", err)
	}
	if len(parts) != 2 {
		if len(parts) == 1 {
			var msg apiMessage
			if json.Unmarshal(parts[0], &msg) == nil && len(msg.Message) > 0 {
				return nil, c.base.ParseError("api message: "+msg.Message[0].Value, nil)
			}
		}
		return nil, c.base.ParseError(fmt.Sprintf("expected [meta, rows], got %d elements", len(parts)), nil)
	}

	var meta pageMeta
	if err := json.Unmarshal(parts[0], &meta); err != nil {
		return nil, c.base.ParseError("malformed page metadata", err)
	}
	rows := strings.TrimSpace(string(parts[1]))
	if !strings.HasPrefix(rows, "[") {
		return nil, c.base.ParseError("rows is not an array", nil)
	}
	if err := json.Unmarshal(parts[1], dest); err != nil {
		return nil, c.base.ParseError("malformed rows", err)
	}
	return &meta, nil
}

type countryRow struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Region idValue `json:"region"`
}

// ListCountries returns economies (aggregates excluded) sorted by name.
func (c *Client) ListCountries(ctx context.Context) ([]models.Country, error) {
	body, err := c.base.FetchWithRetry(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.cfg.BaseURL + "/country",
		QueryParams: map[string][]string{
			"format":   {"json"},
			"per_page": {"400"},
		},
	}, c.cfg.Retries)
	if err != nil {
		return nil, err
	}

	var rows []countryRow
	if _, err := c.decodeEnvelope(body, &rows); err != nil {
		return nil, err
	}

	out := make([]models.Country, 0, len(rows))
	for _, r := range rows {
		if r.Region.ID == "NA" {
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(r.ID))
		if len(code) != 3 {
			continue
		}
		out = append(out, models.Country{Code: code, Label: r.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

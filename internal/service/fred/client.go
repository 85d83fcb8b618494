package fred

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"MacroPull/internal/domain/models"
	"MacroPull/internal/service/upstream"
	xhttp "MacroPull/pkg/http"
	applogger "MacroPull/pkg/logger"
	"MacroPull/pkg/util"
)

const (
	ProviderName   = "fred"
	DefaultBaseURL = "https://api.stlouisfed.org/fred"
	DefaultCSVURL  = "https://fred.stlouisfed.org/graph/fredgraph.csv"
)

type Config struct {
	BaseURL          string
	CSVURL           string
	APIKey           string // empty switches to the keyless CSV export
	ObservationStart string
}

// Client implements repository.SeriesSource for FRED.
type Client struct {
	cfg  Config
	base *upstream.Base
}

func New(cfg Config, base *upstream.Base) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.CSVURL == "" {
		cfg.CSVURL = DefaultCSVURL
	}
	if cfg.ObservationStart == "" {
		cfg.ObservationStart = "1950-01-01"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, base: base}
}

func (c *Client) Name() string { return ProviderName }

// Keyed reports whether the official JSON API is used.
func (c *Client) Keyed() bool { return c.cfg.APIKey != "" }

type seriesMeta struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Units          string `json:"units"`
	FrequencyShort string `json:"frequency_short"`
}

type metaResponse struct {
	Seriess      []seriesMeta `json:"seriess"`
	ErrorMessage string       `json:"error_message"`
}

type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
	ErrorMessage string `json:"error_message"`
}

type dated struct {
	at    time.Time
	value *float64
}

func (c *Client) FetchSeries(ctx context.Context, seriesID, _ string) (*models.Series, error) {
	id := strings.ToUpper(strings.TrimSpace(seriesID))
	if id == "" {
		return nil, &models.MissingParameterError{Param: "dataset"}
	}
	if c.Keyed() {
		return c.viaJSON(ctx, id)
	}
	return c.viaCSV(ctx, id)
}

func (c *Client) viaJSON(ctx context.Context, id string) (*models.Series, error) {
	meta, err := c.metadata(ctx, id)
	if err != nil {
		var pe *models.ParseError
		if errors.As(err, &pe) {
			return nil, err
		}
		// metadata only feeds title/units; observations still decide the result
		c.base.Logger().Warn("fred metadata unavailable", applogger.String("series", id), applogger.Error(err))
		meta = &seriesMeta{ID: id}
	}

	var resp observationsResponse
	err = c.base.GetJSON(ctx, c.cfg.BaseURL+"/series/observations", map[string][]string{
		"series_id":         {id},
		"api_key":           {c.cfg.APIKey},
		"file_type":         {"json"},
		"observation_start": {c.cfg.ObservationStart},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.ErrorMessage != "" {
		return nil, &models.UpstreamError{Provider: ProviderName, BodyExcerpt: resp.ErrorMessage}
	}
	if resp.Observations == nil {
		return nil, c.base.ParseError("observations missing", nil)
	}

	rows := make([]dated, 0, len(resp.Observations))
	for _, o := range resp.Observations {
		at, err := time.Parse(time.DateOnly, strings.TrimSpace(o.Date))
		if err != nil {
			return nil, c.base.ParseError("unexpected observation date", err)
		}
		rows = append(rows, dated{at: at, value: models.CoerceNumber(o.Value)})
	}

	freq := normalizeFrequency(meta.FrequencyShort)
	if freq == "" {
		freq = classifyDates(rows)
	}
	s, err := c.build(id, freq, rows)
	if err != nil {
		return nil, err
	}
	if meta.Title != "" {
		s.Title = meta.Title
	}
	s.Unit = meta.Units
	s.Meta["access"] = "api"
	return s, nil
}

func (c *Client) metadata(ctx context.Context, id string) (*seriesMeta, error) {
	var resp metaResponse
	err := c.base.GetJSON(ctx, c.cfg.BaseURL+"/series", map[string][]string{
		"series_id": {id},
		"api_key":   {c.cfg.APIKey},
		"file_type": {"json"},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.ErrorMessage != "" {
		return nil, &models.UpstreamError{Provider: ProviderName, BodyExcerpt: resp.ErrorMessage}
	}
	if len(resp.Seriess) == 0 {
		return &seriesMeta{ID: id}, nil
	}
	return &resp.Seriess[0], nil
}

func (c *Client) viaCSV(ctx context.Context, id string) (*models.Series, error) {
	body, err := c.base.Fetch(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.cfg.CSVURL,
		QueryParams: map[string][]string{"id": {id}},
		Headers:     map[string]string{"Accept": "text/csv"},
	})
	if err != nil {
		return nil, err
	}

	rows, err := c.parseCSV(body)
	if err != nil {
		return nil, err
	}
	s, err := c.build(id, classifyDates(rows), rows)
	if err != nil {
		return nil, err
	}
	s.Meta["access"] = "csv"
	return s, nil
}

// parseCSV reads a two-column export: a header row, then date,value rows.
func (c *Client) parseCSV(body []byte) ([]dated, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] == '<' {
		return nil, c.base.ParseError("csv export returned no data", nil)
	}

	r := csv.NewReader(bytes.NewReader(trimmed))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, c.base.ParseError("unreadable csv header", err)
	}
	if len(header) < 2 {
		return nil, c.base.ParseError(fmt.Sprintf("csv header has %d columns", len(header)), nil)
	}

	var rows []dated
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, c.base.ParseError(fmt.Sprintf("csv line %d", line), err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) < 2 {
			return nil, c.base.ParseError(fmt.Sprintf("csv line %d has %d columns", line, len(rec)), nil)
		}
		at, err := time.Parse(time.DateOnly, strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, c.base.ParseError(fmt.Sprintf("csv line %d date", line), err)
		}
		rows = append(rows, dated{at: at, value: models.CoerceNumber(rec[1])})
	}
	return rows, nil
}

func (c *Client) build(id, freq string, rows []dated) (*models.Series, error) {
	freq = keyFrequency(freq, rows)
	points := make([]models.SeriesPoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, models.SeriesPoint{Time: periodKey(r.at, freq), Value: r.value})
	}
	points, err := models.NormalizePoints(points)
	if err != nil {
		return nil, c.base.ParseError("unexpected period", err)
	}
	return &models.Series{
		ID:        "fred:" + id,
		Title:     id,
		Frequency: freq,
		Points:    points,
		Source: models.Source{
			Name:    "FRED, St. Louis Fed",
			URL:     "https://fred.stlouisfed.org/series/" + url.PathEscape(id),
			License: "FRED Terms of Use",
		},
		Meta: map[string]string{"seriesId": id},
	}, nil
}

// classifyDates infers a frequency from observation dates: when at least 60%
// of dates fall on a day other than the 1st the series is daily, when at
// least 60% fall in a month other than January it is monthly, else annual.
func classifyDates(rows []dated) string {
	if len(rows) == 0 {
		return models.FrequencyAnnual
	}
	var days, months int
	for _, r := range rows {
		if r.at.Day() != 1 {
			days++
		}
		if r.at.Month() != time.January {
			months++
		}
	}
	threshold := 0.6 * float64(len(rows))
	switch {
	case float64(days) >= threshold:
		return models.FrequencyDaily
	case float64(months) >= threshold:
		return models.FrequencyMonthly
	default:
		return models.FrequencyAnnual
	}
}

// keyFrequency narrows freq until every row maps to its own period key, so
// distinct observation dates never collapse into one point.
func keyFrequency(freq string, rows []dated) string {
	yearStart, quarterStart, monthStart := true, true, true
	for _, r := range rows {
		if r.at.Day() != 1 {
			yearStart, quarterStart, monthStart = false, false, false
			break
		}
		if (r.at.Month()-1)%3 != 0 {
			quarterStart = false
		}
		if r.at.Month() != time.January {
			yearStart = false
		}
	}
	switch {
	case freq == models.FrequencyAnnual && yearStart:
		return models.FrequencyAnnual
	case freq == models.FrequencyQuarterly && quarterStart:
		return models.FrequencyQuarterly
	case (freq == models.FrequencyAnnual || freq == models.FrequencyQuarterly || freq == models.FrequencyMonthly) && monthStart:
		return models.FrequencyMonthly
	case freq == models.FrequencyWeekly:
		return models.FrequencyWeekly
	default:
		return models.FrequencyDaily
	}
}

func normalizeFrequency(short string) string {
	switch strings.ToUpper(strings.TrimSpace(short)) {
	case "A":
		return models.FrequencyAnnual
	case "Q":
		return models.FrequencyQuarterly
	case "M", "SA":
		// semiannual observations are keyed by their starting month
		return models.FrequencyMonthly
	case "W", "BW":
		return models.FrequencyWeekly
	case "D":
		return models.FrequencyDaily
	default:
		return ""
	}
}

func periodKey(t time.Time, freq string) string {
	switch freq {
	case models.FrequencyAnnual:
		return util.YearKey(t)
	case models.FrequencyQuarterly:
		return util.QuarterKey(t)
	case models.FrequencyMonthly:
		return util.MonthKey(t)
	default:
		return t.Format(time.DateOnly)
	}
}

package bls

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"MacroPull/internal/domain/models"
	"MacroPull/internal/service/upstream"
	xhttp "MacroPull/pkg/http"
	applogger "MacroPull/pkg/logger"
)

const (
	ProviderName   = "bls"
	DefaultBaseURL = "https://api.bls.gov/publicAPI/v2/timeseries/data"

	statusSucceeded = "REQUEST_SUCCEEDED"
)

var monthlyPeriod = regexp.MustCompile(`^M(0[1-9]|1[0-2])$`)

type Config struct {
	BaseURL string
	APIKey  string
	// YearSpan is how many years back from the current one are requested.
	// The public API caps it at 20 with a key and 10 without.
	YearSpan int
}

// Client implements repository.SeriesSource for the BLS public data API.
type Client struct {
	cfg  Config
	base *upstream.Base
	now  func() time.Time
}

func New(cfg Config, base *upstream.Base) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	limit := 10
	if cfg.APIKey != "" {
		limit = 20
	}
	if cfg.YearSpan <= 0 || cfg.YearSpan > limit {
		cfg.YearSpan = limit
	}
	return &Client{cfg: cfg, base: base, now: time.Now}
}

func (c *Client) Name() string { return ProviderName }

type apiRow struct {
	Year   string `json:"year"`
	Period string `json:"period"`
	Value  string `json:"value"`
}

type apiResponse struct {
	Status  string   `json:"status"`
	Message []string `json:"message"`
	Results struct {
		Series []struct {
			SeriesID string   `json:"seriesID"`
			Data     []apiRow `json:"data"`
		} `json:"series"`
	} `json:"Results"`
}

type postPayload struct {
	SeriesID        []string `json:"seriesid"`
	StartYear       string   `json:"startyear"`
	EndYear         string   `json:"endyear"`
	RegistrationKey string   `json:"registrationkey,omitempty"`
}

// FetchSeries loads a BLS series id. Country is ignored. The GET endpoint is
// tried first; on failure or an empty result the POST endpoint is tried once.
func (c *Client) FetchSeries(ctx context.Context, seriesID, _ string) (*models.Series, error) {
	id := strings.ToUpper(strings.TrimSpace(seriesID))
	if id == "" {
		return nil, &models.MissingParameterError{Param: "dataset"}
	}
	end := c.now().Year()
	start := end - c.cfg.YearSpan + 1

	s, getErr := c.viaGet(ctx, id, start, end)
	if getErr == nil && s.UsablePoints() > 0 {
		return s, nil
	}
	c.base.Logger().Warn("bls GET unusable, retrying with POST",
		applogger.String("series", id), applogger.Error(getErr))

	s, postErr := c.viaPost(ctx, id, start, end)
	if postErr == nil && s.UsablePoints() > 0 {
		return s, nil
	}
	if getErr == nil || postErr == nil {
		return nil, &models.EmptyResultError{Provider: ProviderName, Dataset: id}
	}
	return nil, errors.Join(getErr, postErr)
}

func (c *Client) viaGet(ctx context.Context, id string, start, end int) (*models.Series, error) {
	q := map[string][]string{
		"startyear": {strconv.Itoa(start)},
		"endyear":   {strconv.Itoa(end)},
	}
	if c.cfg.APIKey != "" {
		q["registrationkey"] = []string{c.cfg.APIKey}
	}
	body, err := c.base.Fetch(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.cfg.BaseURL + "/" + url.PathEscape(id),
		QueryParams: q,
	})
	if err != nil {
		return nil, err
	}
	return c.parse(id, body)
}

func (c *Client) viaPost(ctx context.Context, id string, start, end int) (*models.Series, error) {
	body, err := c.base.Fetch(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     c.cfg.BaseURL + "/",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body: postPayload{
			SeriesID:        []string{id},
			StartYear:       strconv.Itoa(start),
			EndYear:         strconv.Itoa(end),
			RegistrationKey: c.cfg.APIKey,
		},
	})
	if err != nil {
		return nil, err
	}
	return c.parse(id, body)
}

func (c *Client) parse(id string, body []byte) (*models.Series, error) {
	var resp apiResponse
	if err := c.base.Decode(body, &resp); err != nil {
		return nil, err
	}
	if resp.Status != statusSucceeded {
		msg := resp.Status
		if len(resp.Message) > 0 && resp.Message[0] != "" {
			msg = resp.Message[0]
		}
		return nil, &models.UpstreamError{Provider: ProviderName, BodyExcerpt: "BLS: " + msg}
	}
	if len(resp.Results.Series) == 0 {
		return nil, c.base.ParseError("no series in results", nil)
	}

	var monthly, annual []models.SeriesPoint
	for _, row := range resp.Results.Series[0].Data {
		year := strings.TrimSpace(row.Year)
		switch {
		case monthlyPeriod.MatchString(row.Period):
			monthly = append(monthly, models.SeriesPoint{
				Time:  year + "-" + row.Period[1:],
				Value: models.CoerceNumber(row.Value),
			})
		case row.Period == "M13":
			annual = append(annual, models.SeriesPoint{
				Time:  year + "-12",
				Value: models.CoerceNumber(row.Value),
			})
		}
	}

	points := monthly
	meta := map[string]string{"seriesId": id}
	if !anyValue(monthly) && anyValue(annual) {
		points = annual
		meta["degraded"] = "annual-average"
	}
	points, err := models.NormalizePoints(points)
	if err != nil {
		return nil, c.base.ParseError("unexpected period", err)
	}

	return &models.Series{
		ID:        "bls:" + id,
		Title:     id,
		Frequency: models.FrequencyMonthly,
		Points:    points,
		Source: models.Source{
			Name:    "Bureau of Labor Statistics",
			URL:     fmt.Sprintf("https://data.bls.gov/timeseries/%s", url.PathEscape(id)),
			License: "BLS API Terms",
		},
		Meta: meta,
	}, nil
}

func anyValue(points []models.SeriesPoint) bool {
	for _, p := range points {
		if p.Value != nil {
			return true
		}
	}
	return false
}

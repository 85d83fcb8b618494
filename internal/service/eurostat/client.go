package eurostat

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"MacroPull/internal/domain/models"
	"MacroPull/internal/service/upstream"
	xhttp "MacroPull/pkg/http"
)

const (
	ProviderName = "eurostat"
	// SectorDataset is national accounts by 64 NACE branches.
	SectorDataset = "nama_10_a64"

	sdmxAccept = "application/vnd.sdmx.data+json; charset=utf-8"
	naceDim    = "nace_r2"
)

var (
	sectionCode = regexp.MustCompile(`^[A-U]$`)
	detailCode  = regexp.MustCompile(`^(C.*|[G-S])$`)
	aggregates  = map[string]bool{"B-E": true, "G-I": true}

	// defaultSectorCodes is the ranking pool when a panel names no codes:
	// sections A..U plus the B-E and G-I aggregates, never TOTAL or divisions.
	defaultSectorCodes = []string{
		"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K",
		"L", "M", "N", "O", "P", "Q", "R", "S", "T", "U", "B-E", "G-I",
	}
)

type Config struct {
	BaseURL string // EUROSTAT_SDMX_BASE
}

// Client implements repository.SeriesSource over an SDMX-JSON endpoint and
// the sector queries behind the industries panel.
type Client struct {
	cfg  Config
	base *upstream.Base
}

func New(cfg Config, base *upstream.Base) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return &Client{cfg: cfg, base: base}
}

func (c *Client) Name() string { return ProviderName }

func (c *Client) query(ctx context.Context, dataset string, params url.Values) (*cube, error) {
	if c.cfg.BaseURL == "" {
		return nil, &models.ConfigurationError{Field: "EUROSTAT_SDMX_BASE"}
	}
	q := make(map[string][]string, len(params))
	for k, v := range params {
		q[k] = v
	}
	body, err := c.base.Fetch(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.cfg.BaseURL + "/" + url.PathEscape(dataset),
		QueryParams: q,
		Headers:     map[string]string{"Accept": sdmxAccept},
	})
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, c.base.ParseError("did not return JSON: "+xhttp.Excerpt(trimmed, 200), nil)
	}
	var msg sdmxMessage
	if err := c.base.Decode(trimmed, &msg); err != nil {
		return nil, err
	}
	cb, err := decodeCube(&msg)
	if err != nil {
		return nil, c.base.ParseError("unexpected SDMX structure", err)
	}
	return cb, nil
}

// FetchSeries resolves dataset to exactly one series. Dimension filters may
// follow the dataset id as a query string, e.g.
// "nama_10_a64?unit=CP_MEUR&na_item=B1GQ&nace_r2=TOTAL". Country sets geo.
func (c *Client) FetchSeries(ctx context.Context, dataset, country string) (*models.Series, error) {
	id, rawFilters, _ := strings.Cut(strings.TrimSpace(dataset), "?")
	if id == "" {
		return nil, &models.MissingParameterError{Param: "dataset"}
	}
	filters, err := url.ParseQuery(rawFilters)
	if err != nil {
		return nil, &models.InvalidParameterError{Param: "dataset", Value: dataset, Reason: "malformed dimension filters"}
	}
	if country != "" {
		geo, err := GeoCode(country)
		if err != nil {
			return nil, err
		}
		filters.Set("geo", geo)
	}

	cb, err := c.query(ctx, id, filters)
	if err != nil {
		return nil, err
	}
	switch len(cb.series) {
	case 0:
		return nil, &models.EmptyResultError{Provider: ProviderName, Dataset: dataset}
	case 1:
	default:
		return nil, c.base.ParseError(fmt.Sprintf("%d series match %s, add dimension filters", len(cb.series), dataset), nil)
	}

	cs := cb.series[0]
	ids := make([]string, 0, len(cb.dims))
	labels := make([]string, 0, len(cb.dims))
	meta := map[string]string{"dataset": id}
	for _, d := range cb.dims {
		v := cs.coords[d.ID]
		ids = append(ids, v.ID)
		meta[d.ID] = v.ID
		if !strings.EqualFold(d.ID, "freq") && !strings.EqualFold(d.ID, "unit") && v.Name != "" {
			labels = append(labels, v.Name)
		}
	}

	freq := strings.ToUpper(cs.coords["freq"].ID)
	if freq == "" {
		freq = models.InferFrequency(cs.points)
	}
	title := id
	if len(labels) > 0 {
		title = strings.Join(labels, " - ")
	}
	return &models.Series{
		ID:        "eurostat:" + id + ":" + strings.Join(ids, "."),
		Title:     title,
		Unit:      cs.coords["unit"].Name,
		Frequency: freq,
		Points:    cs.points,
		Source: models.Source{
			Name:    "Eurostat",
			URL:     "https://ec.europa.eu/eurostat/databrowser/view/" + url.PathEscape(id),
			License: "CC BY 4.0",
		},
		Meta: meta,
	}, nil
}

// SectorOptions lists nace_r2 codes. Level "sections" keeps the A..U
// sections plus the B-E and G-I aggregates; "detail" keeps manufacturing
// divisions (C*) and the G..S sections.
func (c *Client) SectorOptions(ctx context.Context, level string) ([]models.IndustryOption, error) {
	cb, err := c.query(ctx, SectorDataset, url.Values{"limit": {"1"}})
	if err != nil {
		return nil, err
	}
	dim := cb.dimension(naceDim)
	if dim == nil {
		return nil, c.base.ParseError("nace_r2 dimension missing", nil)
	}

	out := make([]models.IndustryOption, 0, len(dim.Values))
	for _, v := range dim.Values {
		keep := false
		switch level {
		case "detail":
			keep = detailCode.MatchString(v.ID)
		default:
			keep = sectionCode.MatchString(v.ID) || aggregates[v.ID]
		}
		if keep {
			out = append(out, models.IndustryOption{Code: v.ID, Label: v.Name})
		}
	}
	return out, nil
}

// SectorQuery selects sector value added for one country.
type SectorQuery struct {
	Country string
	Codes   []string // empty ranks the sections and the B-E, G-I aggregates
	Price   string   // unit, e.g. CP_MEUR
	SAdj    string
	TopN    int // with no explicit codes, keep the n largest; 0 keeps all
}

// SectorPanel fetches one line per nace_r2 code.
func (c *Client) SectorPanel(ctx context.Context, q SectorQuery) (*models.IndustryPanel, error) {
	geo, err := GeoCode(q.Country)
	if err != nil {
		return nil, err
	}
	price := q.Price
	if price == "" {
		price = "CP_MEUR"
	}
	sadj := q.SAdj
	if sadj == "" {
		sadj = "NSA"
	}
	params := url.Values{
		"unit":    {price},
		"s_adj":   {sadj},
		"na_item": {"B1GQ"},
		"geo":     {geo},
	}
	codes := q.Codes
	if len(codes) == 0 {
		codes = defaultSectorCodes
	}
	params.Set(naceDim, strings.Join(codes, ","))

	cb, err := c.query(ctx, SectorDataset, params)
	if err != nil {
		return nil, err
	}

	unit := unitLabel(price)
	if d := cb.dimension("unit"); d != nil && len(d.Values) > 0 && d.Values[0].Name != "" {
		unit = d.Values[0].Name
	}

	type ranked struct {
		line models.IndustrySeries
		last float64
		ok   bool
	}
	lines := make([]ranked, 0, len(cb.series))
	for _, cs := range cb.series {
		nace := cs.coords[naceDim]
		label := nace.Name
		if label == "" {
			label = nace.ID
		}
		pts := make([]models.YearPoint, 0, len(cs.points))
		for _, p := range cs.points {
			year, err := strconv.Atoi(p.Time[:4])
			if err != nil {
				return nil, c.base.ParseError("unexpected period "+p.Time, err)
			}
			pts = append(pts, models.YearPoint{Year: year, Value: models.Float(p.Value)})
		}
		last, ok := lastValue(cs.points)
		lines = append(lines, ranked{
			line: models.IndustrySeries{Key: label, Code: nace.ID, Points: pts},
			last: last,
			ok:   ok,
		})
	}

	if len(q.Codes) == 0 {
		sort.SliceStable(lines, func(i, j int) bool {
			if lines[i].ok != lines[j].ok {
				return lines[i].ok
			}
			return lines[i].last > lines[j].last
		})
		if q.TopN > 0 && len(lines) > q.TopN {
			lines = lines[:q.TopN]
		}
	} else {
		order := make(map[string]int, len(q.Codes))
		for i, code := range q.Codes {
			order[code] = i
		}
		sort.SliceStable(lines, func(i, j int) bool {
			return order[lines[i].line.Code] < order[lines[j].line.Code]
		})
	}

	panel := &models.IndustryPanel{Provider: ProviderName, Country: geo, Unit: unit}
	for _, l := range lines {
		panel.Series = append(panel.Series, l.line)
	}
	return panel, nil
}

func unitLabel(price string) string {
	if strings.HasPrefix(price, "CLV") {
		return "Million EUR (chain-linked)"
	}
	return "Million EUR (current)"
}

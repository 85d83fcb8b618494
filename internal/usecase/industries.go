package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"MacroPull/internal/domain/models"
	drepo "MacroPull/internal/domain/repository"
	dservice "MacroPull/internal/domain/service"
	"MacroPull/internal/service/eurostat"
)

// World Bank value-added shares shown on the industries panel.
var wbSectors = []struct {
	Code      string
	Indicator string
	Label     string
}{
	{"AGR", "NV.AGR.TOTL.ZS", "Agriculture"},
	{"IND", "NV.IND.TOTL.ZS", "Industry"},
	{"SRV", "NV.SRV.TOTL.ZS", "Services"},
}

const wbSectorUnit = "% of GDP"

// SectorSource serves the eurostat side of the industries panel.
type SectorSource interface {
	SectorOptions(ctx context.Context, level string) ([]models.IndustryOption, error)
	SectorPanel(ctx context.Context, q eurostat.SectorQuery) (*models.IndustryPanel, error)
}

// IndustriesUseCase assembles sector panels. World Bank sectors are fetched
// in parallel; a failing sector is reported in the panel's Errors map and
// does not fail the others.
type IndustriesUseCase struct {
	wb      drepo.SeriesSource
	euro    SectorSource
	timeout time.Duration
}

var _ dservice.IndustryProvider = (*IndustriesUseCase)(nil)

func NewIndustriesUseCase(wb drepo.SeriesSource, euro SectorSource) *IndustriesUseCase {
	return &IndustriesUseCase{wb: wb, euro: euro, timeout: 30 * time.Second}
}

func industryProvider(p string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "", "wb", "worldbank":
		return ProviderWorldBank, nil
	case "eurostat":
		return ProviderEurostat, nil
	}
	return "", &models.UnsupportedProviderError{Provider: p}
}

func (uc *IndustriesUseCase) Options(ctx context.Context, provider, level string) ([]models.IndustryOption, error) {
	p, err := industryProvider(provider)
	if err != nil {
		return nil, err
	}
	if p == ProviderEurostat {
		if uc.euro == nil {
			return nil, &models.UnsupportedProviderError{Provider: provider}
		}
		return uc.euro.SectorOptions(ctx, level)
	}

	out := make([]models.IndustryOption, 0, len(wbSectors))
	for _, s := range wbSectors {
		out = append(out, models.IndustryOption{Code: s.Code, Label: s.Label})
	}
	return out, nil
}

func (uc *IndustriesUseCase) Panel(ctx context.Context, q dservice.IndustryQuery) (*models.IndustryPanel, error) {
	p, err := industryProvider(q.Provider)
	if err != nil {
		return nil, err
	}
	if p == ProviderEurostat {
		if uc.euro == nil {
			return nil, &models.UnsupportedProviderError{Provider: q.Provider}
		}
		return uc.euro.SectorPanel(ctx, eurostat.SectorQuery{
			Country: q.Country,
			Codes:   q.Codes,
			Price:   q.Price,
			SAdj:    q.SAdj,
			TopN:    q.TopN,
		})
	}
	if uc.wb == nil {
		return nil, &models.UnsupportedProviderError{Provider: q.Provider}
	}
	return uc.worldBankPanel(ctx, q)
}

func (uc *IndustriesUseCase) worldBankPanel(ctx context.Context, q dservice.IndustryQuery) (*models.IndustryPanel, error) {
	country := strings.ToUpper(strings.TrimSpace(q.Country))
	if country == "" {
		return nil, &models.MissingParameterError{Param: "country"}
	}

	wanted := make(map[string]bool, len(q.Codes))
	for _, c := range q.Codes {
		wanted[strings.ToUpper(c)] = true
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	type item struct {
		idx    int
		series *models.Series
		err    error
	}
	ch := make(chan item, len(wbSectors))
	var wg sync.WaitGroup

	for i, s := range wbSectors {
		if len(wanted) > 0 && !wanted[s.Code] {
			continue
		}
		wg.Add(1)
		go func(i int, indicator string) {
			defer wg.Done()
			v, err := uc.wb.FetchSeries(ctx, indicator, country)
			ch <- item{i, v, err}
		}(i, s.Indicator)
	}

	go func() { wg.Wait(); close(ch) }()

	lines := make([]*models.IndustrySeries, len(wbSectors))
	errs := map[string]string{}
	for it := range ch {
		sector := wbSectors[it.idx]
		if it.err == nil && it.series.UsablePoints() == 0 {
			it.err = &models.EmptyResultError{Provider: ProviderWorldBank, Dataset: sector.Indicator}
		}
		if it.err != nil {
			errs[sector.Label] = it.err.Error()
			continue
		}
		pts, err := yearPoints(it.series.Points)
		if err != nil {
			errs[sector.Label] = err.Error()
			continue
		}
		lines[it.idx] = &models.IndustrySeries{Key: sector.Label, Code: sector.Code, Points: pts}
	}

	panel := &models.IndustryPanel{Provider: ProviderWorldBank, Country: country, Unit: wbSectorUnit}
	for _, l := range lines {
		if l != nil {
			panel.Series = append(panel.Series, *l)
		}
	}
	if len(errs) > 0 {
		panel.Errors = errs
	}
	if len(panel.Series) == 0 {
		if len(errs) == 0 {
			return nil, &models.InvalidParameterError{Param: "codes", Value: strings.Join(q.Codes, ","), Reason: "no known sector"}
		}
		return nil, fmt.Errorf("every sector failed: %s", joinErrors(errs))
	}
	return panel, nil
}

func yearPoints(points []models.SeriesPoint) ([]models.YearPoint, error) {
	out := make([]models.YearPoint, 0, len(points))
	for _, p := range points {
		if len(p.Time) < 4 {
			return nil, fmt.Errorf("unexpected period %q", p.Time)
		}
		year, err := strconv.Atoi(p.Time[:4])
		if err != nil {
			return nil, fmt.Errorf("unexpected period %q: %w", p.Time, err)
		}
		out = append(out, models.YearPoint{Year: year, Value: models.Float(p.Value)})
	}
	return out, nil
}

func joinErrors(errs map[string]string) string {
	parts := make([]string, 0, len(wbSectors))
	for _, s := range wbSectors {
		if msg, ok := errs[s.Label]; ok {
			parts = append(parts, s.Label+": "+msg)
		}
	}
	return strings.Join(parts, "; ")
}

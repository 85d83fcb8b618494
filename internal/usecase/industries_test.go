package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MacroPull/internal/domain/models"
	dservice "MacroPull/internal/domain/service"
	"MacroPull/internal/service/eurostat"
)

// indicatorSource answers per indicator.
type indicatorSource struct {
	mu      sync.Mutex
	results map[string]*models.Series
	errs    map[string]error
	seen    []string
}

func (s *indicatorSource) Name() string { return "worldbank" }

func (s *indicatorSource) FetchSeries(_ context.Context, indicator, country string) (*models.Series, error) {
	s.mu.Lock()
	s.seen = append(s.seen, indicator+"|"+country)
	s.mu.Unlock()
	if err := s.errs[indicator]; err != nil {
		return nil, err
	}
	return s.results[indicator], nil
}

type fakeSectors struct {
	level string
	query eurostat.SectorQuery
}

func (f *fakeSectors) SectorOptions(_ context.Context, level string) ([]models.IndustryOption, error) {
	f.level = level
	return []models.IndustryOption{{Code: "A", Label: "Agriculture, forestry and fishing"}}, nil
}

func (f *fakeSectors) SectorPanel(_ context.Context, q eurostat.SectorQuery) (*models.IndustryPanel, error) {
	f.query = q
	return &models.IndustryPanel{Provider: "eurostat", Country: "FR"}, nil
}

func TestIndustryOptions(t *testing.T) {
	euro := &fakeSectors{}
	uc := NewIndustriesUseCase(&indicatorSource{}, euro)

	opts, err := uc.Options(context.Background(), "wb", "sections")
	require.NoError(t, err)
	require.Len(t, opts, 3)
	assert.Equal(t, "AGR", opts[0].Code)

	opts, err = uc.Options(context.Background(), "eurostat", "detail")
	require.NoError(t, err)
	assert.Len(t, opts, 1)
	assert.Equal(t, "detail", euro.level)

	_, err = uc.Options(context.Background(), "bls", "sections")
	var unsupported *models.UnsupportedProviderError
	assert.True(t, errors.As(err, &unsupported))
}

func TestWorldBankPanelIsolatesSectorFailures(t *testing.T) {
	src := &indicatorSource{
		results: map[string]*models.Series{
			"NV.AGR.TOTL.ZS": seriesWith("agr", 1.1, 1.0),
			"NV.SRV.TOTL.ZS": seriesWith("srv", 77.2, 77.8),
		},
		errs: map[string]error{
			"NV.IND.TOTL.ZS": &models.UpstreamError{Provider: "worldbank", Status: 502},
		},
	}
	uc := NewIndustriesUseCase(src, nil)

	panel, err := uc.Panel(context.Background(), dservice.IndustryQuery{Provider: "wb", Country: "usa"})
	require.NoError(t, err)
	assert.Equal(t, "USA", panel.Country)
	assert.Equal(t, "% of GDP", panel.Unit)
	require.Len(t, panel.Series, 2)
	assert.Equal(t, "Agriculture", panel.Series[0].Key)
	assert.Equal(t, "Services", panel.Series[1].Key)
	assert.Equal(t, 2019, panel.Series[0].Points[0].Year)
	assert.Contains(t, panel.Errors, "Industry")

	seen := append([]string(nil), src.seen...)
	sort.Strings(seen)
	assert.Equal(t, []string{"NV.AGR.TOTL.ZS|USA", "NV.IND.TOTL.ZS|USA", "NV.SRV.TOTL.ZS|USA"}, seen)
}

func TestWorldBankPanelFiltersCodes(t *testing.T) {
	src := &indicatorSource{results: map[string]*models.Series{"NV.IND.TOTL.ZS": seriesWith("ind", 18)}}
	uc := NewIndustriesUseCase(src, nil)

	panel, err := uc.Panel(context.Background(), dservice.IndustryQuery{Country: "DEU", Codes: []string{"ind"}})
	require.NoError(t, err)
	require.Len(t, panel.Series, 1)
	assert.Equal(t, "IND", panel.Series[0].Code)
	assert.Nil(t, panel.Errors)
	assert.Equal(t, []string{"NV.IND.TOTL.ZS|DEU"}, src.seen)
}

func TestWorldBankPanelAllSectorsFailed(t *testing.T) {
	boom := &models.UpstreamError{Provider: "worldbank", Status: 500}
	src := &indicatorSource{errs: map[string]error{
		"NV.AGR.TOTL.ZS": boom, "NV.IND.TOTL.ZS": boom, "NV.SRV.TOTL.ZS": boom,
	}}
	uc := NewIndustriesUseCase(src, nil)

	_, err := uc.Panel(context.Background(), dservice.IndustryQuery{Country: "USA"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every sector failed")
}

func TestEurostatPanelDelegates(t *testing.T) {
	euro := &fakeSectors{}
	uc := NewIndustriesUseCase(nil, euro)

	panel, err := uc.Panel(context.Background(), dservice.IndustryQuery{
		Provider: "eurostat", Country: "FRA", Codes: []string{"C"}, Price: "CLV15_MEUR", SAdj: "NSA", TopN: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "eurostat", panel.Provider)
	assert.Equal(t, eurostat.SectorQuery{Country: "FRA", Codes: []string{"C"}, Price: "CLV15_MEUR", SAdj: "NSA", TopN: 5}, euro.query)
}

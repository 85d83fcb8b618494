package usecase

import (
	"context"

	"MacroPull/internal/domain/models"
	drepo "MacroPull/internal/domain/repository"
)

// CountriesUseCase lists the countries a provider can be queried for.
type CountriesUseCase struct {
	listers map[string]drepo.CountryLister
}

// NewCountriesUseCase keys listers by canonical provider name.
func NewCountriesUseCase(listers map[string]drepo.CountryLister) *CountriesUseCase {
	return &CountriesUseCase{listers: listers}
}

func (uc *CountriesUseCase) ListCountries(ctx context.Context, provider string) ([]models.Country, error) {
	p, ok := CanonicalProvider(provider)
	if !ok || uc.listers[p] == nil {
		return nil, &models.UnsupportedProviderError{Provider: provider}
	}
	return uc.listers[p].ListCountries(ctx)
}

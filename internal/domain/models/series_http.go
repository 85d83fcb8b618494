package models

// Requests for the HTTP endpoints. Bound from query params, then defaulted, then validated.

type CountriesRequest struct {
	Provider string `query:"provider" json:"provider" default:"worldbank"`
}

type SeriesRequest struct {
	Provider  string `query:"provider" json:"provider"`
	Dataset   string `query:"dataset" json:"dataset"`
	Country   string `query:"country" json:"country" validate:"omitempty,min=2,max=3,alpha"`
	Transform string `query:"transform" json:"transform" validate:"omitempty,oneof=diff1"`
}

type IndustryOptionsRequest struct {
	Provider string `query:"provider" json:"provider" default:"wb" validate:"oneof=wb worldbank eurostat"`
	Country  string `query:"country" json:"country" default:"USA" validate:"min=2,max=3,alpha"`
	Level    string `query:"level" json:"level" default:"sections" validate:"oneof=sections detail"`
}

type IndustrySeriesRequest struct {
	Provider string `query:"provider" json:"provider" default:"wb" validate:"oneof=wb worldbank eurostat"`
	Country  string `query:"country" json:"country" default:"USA" validate:"min=2,max=3,alpha"`
	Codes    string `query:"codes" json:"codes"`
	Price    string `query:"price" json:"price" default:"CP_MEUR" validate:"oneof=CP_MEUR CLV15_MEUR CLV10_MEUR PC_GDP"`
	SAdj     string `query:"s_adj" json:"s_adj" default:"NSA" validate:"oneof=NSA SA SCA CA"`
	N        int    `query:"n" json:"n" validate:"gte=0,lte=100"`
}

type ChartSessionRequest struct {
	Provider  string `query:"provider" json:"provider"`
	Dataset   string `query:"dataset" json:"dataset"`
	Country   string `query:"country" json:"country"`
	Transform string `query:"transform" json:"transform" validate:"omitempty,oneof=diff1"`
	Scale     string `query:"scale" json:"scale" default:"auto" validate:"oneof=auto raw thousand million billion trillion sci"`
	Digits    int    `query:"digits" json:"digits" default:"2" validate:"gte=0,lte=10"`
}

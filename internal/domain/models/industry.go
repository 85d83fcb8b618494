package models

// IndustryOption is a selectable sector code.
type IndustryOption struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

type YearPoint struct {
	Year  int      `json:"year"`
	Value *float64 `json:"value"`
}

// IndustrySeries is one sector line of a multi-line chart.
type IndustrySeries struct {
	Key    string      `json:"key"`
	Code   string      `json:"code,omitempty"`
	Points []YearPoint `json:"points"`
}

// IndustryPanel is the joined result of a multi-sector fetch. Errors holds
// per-sector failures; a failed sector is absent from Series.
type IndustryPanel struct {
	Provider string
	Country  string
	Unit     string
	Series   []IndustrySeries
	Errors   map[string]string
}

type Country struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

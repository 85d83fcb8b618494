package eurostat

import (
	"strings"

	"MacroPull/internal/domain/models"
)

// iso3ToGeo maps ISO 3166 alpha-3 codes to Eurostat geo codes, which are
// alpha-2 except for Greece (EL) and the United Kingdom (UK).
var iso3ToGeo = map[string]string{
	"ALB": "AL", "AUT": "AT", "BEL": "BE", "BGR": "BG", "BIH": "BA",
	"CHE": "CH", "CYP": "CY", "CZE": "CZ", "DEU": "DE", "DNK": "DK",
	"ESP": "ES", "EST": "EE", "FIN": "FI", "FRA": "FR", "GBR": "UK",
	"GRC": "EL", "HRV": "HR", "HUN": "HU", "IRL": "IE", "ISL": "IS",
	"ITA": "IT", "LIE": "LI", "LTU": "LT", "LUX": "LU", "LVA": "LV",
	"MKD": "MK", "MLT": "MT", "MNE": "ME", "NLD": "NL", "NOR": "NO",
	"POL": "PL", "PRT": "PT", "ROU": "RO", "SRB": "RS", "SVK": "SK",
	"SVN": "SI", "SWE": "SE", "TUR": "TR", "XKX": "XK",
}

// GeoCode translates a country code to Eurostat's geo dimension. Alpha-2
// codes and aggregates such as EU27_2020 pass through.
func GeoCode(country string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(country))
	if c == "" {
		return "", &models.MissingParameterError{Param: "country"}
	}
	if len(c) != 3 {
		return c, nil
	}
	if g, ok := iso3ToGeo[c]; ok {
		return g, nil
	}
	return "", &models.InvalidParameterError{Param: "country", Value: country, Reason: "not covered by Eurostat"}
}

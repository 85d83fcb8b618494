package scale

import (
	"fmt"
	"math"
	"strings"
)

// Mode is a requested display scale.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeRaw      Mode = "raw"
	ModeThousand Mode = "thousand"
	ModeMillion  Mode = "million"
	ModeBillion  Mode = "billion"
	ModeTrillion Mode = "trillion"
	ModeSci      Mode = "sci"
)

// Info is a chosen scale. Div is at least 1; the "sci" mode has Div 1 and no
// suffix because the exponent is rendered by the formatter.
type Info struct {
	Mode   string  `json:"mode"`
	Div    float64 `json:"div"`
	Suffix string  `json:"suffix"`
}

var (
	Raw      = Info{Mode: "raw", Div: 1, Suffix: ""}
	Thousand = Info{Mode: "k", Div: 1e3, Suffix: " K"}
	Million  = Info{Mode: "m", Div: 1e6, Suffix: " M"}
	Billion  = Info{Mode: "b", Div: 1e9, Suffix: " B"}
	Trillion = Info{Mode: "t", Div: 1e12, Suffix: " T"}
	Sci      = Info{Mode: "sci", Div: 1, Suffix: ""}

	// descending, for auto selection
	magnitudes = []Info{Trillion, Billion, Million, Thousand}
)

// ParseMode accepts the long mode names and the short ones carried on Info.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "raw":
		return ModeRaw, nil
	case "thousand", "k":
		return ModeThousand, nil
	case "million", "m":
		return ModeMillion, nil
	case "billion", "b":
		return ModeBillion, nil
	case "trillion", "t":
		return ModeTrillion, nil
	case "sci", "scientific":
		return ModeSci, nil
	default:
		return "", fmt.Errorf("unknown scale mode %q", s)
	}
}

// Choose returns the scale for mode given the largest absolute value in
// view. Auto keeps anything below 1000 raw, otherwise it takes the largest
// divisor not exceeding maxAbs so the scaled maximum lands in [1, 1000).
// Unknown modes fall back to raw.
func Choose(mode Mode, maxAbs float64) Info {
	switch mode {
	case ModeRaw:
		return Raw
	case ModeThousand:
		return Thousand
	case ModeMillion:
		return Million
	case ModeBillion:
		return Billion
	case ModeTrillion:
		return Trillion
	case ModeSci:
		return Sci
	case ModeAuto:
	default:
		return Raw
	}

	if math.IsNaN(maxAbs) || math.IsInf(maxAbs, 0) {
		return Raw
	}
	m := math.Abs(maxAbs)
	if m < 1000 {
		return Raw
	}
	for _, b := range magnitudes {
		if m >= b.Div {
			return b
		}
	}
	return Raw
}

package scale

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const maxDigits = 20

// Format renders v under scale info. Zero and non-finite values render "0".
func Format(v float64, info Info, digits int) string {
	if info.Mode == Sci.Mode {
		return FormatScientific(v, digits)
	}
	if !finite(v) || v == 0 {
		return "0"
	}
	div := info.Div
	if div < 1 {
		div = 1
	}
	return FormatNumber(v/div, digits) + info.Suffix
}

// FormatNumber renders v with digits fractional digits and grouped
// thousands. Values with magnitude below 1 always get at least 2 fractional
// digits so they never round to "0".
func FormatNumber(v float64, digits int) string {
	if !finite(v) || v == 0 {
		return "0"
	}
	d := clampDigits(digits)
	if math.Abs(v) < 1 && d < 2 {
		d = 2
	}
	return groupThousands(decimal.NewFromFloat(v).StringFixed(int32(d)))
}

// FormatScientific renders v as "<mantissa> ×10^<exponent>".
func FormatScientific(v float64, digits int) string {
	if !finite(v) || v == 0 {
		return "0"
	}
	s := strconv.FormatFloat(v, 'e', clampDigits(digits), 64)
	mantissa, exp, ok := strings.Cut(s, "e")
	if !ok {
		return s
	}
	n, err := strconv.Atoi(exp)
	if err != nil {
		return s
	}
	return mantissa + " ×10^" + strconv.Itoa(n)
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	if len(intPart) > 3 {
		var b strings.Builder
		lead := len(intPart) % 3
		if lead > 0 {
			b.WriteString(intPart[:lead])
		}
		for i := lead; i < len(intPart); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(intPart[i : i+3])
		}
		intPart = b.String()
	}
	if hasFrac {
		return sign + intPart + "." + frac
	}
	return sign + intPart
}

func clampDigits(d int) int {
	if d < 0 {
		return 0
	}
	if d > maxDigits {
		return maxDigits
	}
	return d
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

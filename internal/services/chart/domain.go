package chart

import (
	"fmt"

	"MacroPull/internal/domain/models"
	"MacroPull/pkg/util"

	"gonum.org/v1/gonum/floats"
)

// yPadRatio is the share of the visible span added above and below.
const yPadRatio = 0.08

// XY is a plotted point; X is the period start in unix milliseconds.
type XY struct {
	X float64
	Y *float64
}

// PointsXY maps series points onto the x axis.
func PointsXY(points []models.SeriesPoint) ([]XY, error) {
	out := make([]XY, 0, len(points))
	for _, p := range points {
		x, ok := util.PeriodMillis(p.Time)
		if !ok {
			return nil, fmt.Errorf("unrecognized period %q", p.Time)
		}
		out = append(out, XY{X: x, Y: p.Value})
	}
	return out, nil
}

// visibleValues returns reported y values whose x falls in window (all when nil).
func visibleValues(points []XY, window *Domain) []float64 {
	ys := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Y == nil || !finite(*p.Y) {
			continue
		}
		if window != nil && !window.Contains(p.X) {
			continue
		}
		ys = append(ys, *p.Y)
	}
	return ys
}

// YRange is [min-pad, max+pad] over the visible reported values, with pad 8%
// of the span, or 8% of |max| for a flat series (0.08 for a flat zero series).
func YRange(points []XY, window *Domain) (Domain, bool) {
	ys := visibleValues(points, window)
	if len(ys) == 0 {
		return Domain{}, false
	}
	lo, hi := floats.Min(ys), floats.Max(ys)
	pad := yPadRatio * (hi - lo)
	if hi == lo {
		pad = yPadRatio * abs(hi)
		if pad == 0 {
			pad = yPadRatio
		}
	}
	return Domain{Min: lo - pad, Max: hi + pad}, true
}

// XExtent is the x range of all plotted points.
func XExtent(points []XY) (Domain, bool) {
	if len(points) == 0 {
		return Domain{}, false
	}
	xs := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
	}
	return Domain{Min: floats.Min(xs), Max: floats.Max(xs)}, true
}

// MaxAbs is the largest magnitude among the visible values.
func MaxAbs(points []XY, window *Domain) float64 {
	ys := visibleValues(points, window)
	if len(ys) == 0 {
		return 0
	}
	lo, hi := floats.Min(ys), floats.Max(ys)
	if abs(lo) > abs(hi) {
		return abs(lo)
	}
	return abs(hi)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

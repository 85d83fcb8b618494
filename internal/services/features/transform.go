package features

import (
	"strings"

	"MacroPull/internal/domain/models"
)

// Supported point transforms.
const (
	TransformNone  = ""
	TransformDiff1 = "diff1"
)

// Supported reports whether name is a known transform.
func Supported(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case TransformNone, TransformDiff1:
		return true
	default:
		return false
	}
}

// Apply returns a transformed copy of s. The input is expected to be
// normalized (ascending, unique periods).
func Apply(s *models.Series, name string) (*models.Series, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case TransformNone:
		return s, nil
	case TransformDiff1:
		out := s.Clone()
		out.Points = FirstDifference(s.Points)
		out.ID = s.ID + ":diff1"
		out.Title = s.Title + " (change)"
		if out.Meta == nil {
			out.Meta = make(map[string]string, 1)
		}
		out.Meta["transform"] = TransformDiff1
		return out, nil
	default:
		return nil, &models.InvalidParameterError{Param: "transform", Value: name, Reason: "supported: diff1"}
	}
}

// FirstDifference maps point i to value[i] - value[i-1]. The first point and
// any point with a null on either side of the difference become null.
func FirstDifference(points []models.SeriesPoint) []models.SeriesPoint {
	out := make([]models.SeriesPoint, len(points))
	for i, p := range points {
		out[i].Time = p.Time
		if i == 0 || p.Value == nil || points[i-1].Value == nil {
			continue
		}
		out[i].Value = models.Value(*p.Value - *points[i-1].Value)
	}
	return out
}

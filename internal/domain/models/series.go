package models

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"MacroPull/pkg/util"
)

// Frequencies carried in Series.Frequency.
const (
	FrequencyAnnual    = "A"
	FrequencyQuarterly = "Q"
	FrequencyMonthly   = "M"
	FrequencyWeekly    = "W"
	FrequencyDaily     = "D"
)

// SeriesPoint is one observation. A nil Value means "not reported", distinct from 0.
type SeriesPoint struct {
	Time  string   `json:"time"`
	Value *float64 `json:"value"`
}

type Source struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	License string `json:"license,omitempty"`
}

// Series is the canonical normalized time series. Points are strictly
// ascending by parsed time with unique period keys.
type Series struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Unit      string            `json:"unit,omitempty"`
	Frequency string            `json:"frequency,omitempty"`
	Points    []SeriesPoint     `json:"points"`
	Source    Source            `json:"source"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// UsablePoints counts points with a reported value.
func (s *Series) UsablePoints() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, p := range s.Points {
		if p.Value != nil {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (s *Series) Clone() *Series {
	if s == nil {
		return nil
	}
	out := *s
	out.Points = make([]SeriesPoint, len(s.Points))
	for i, p := range s.Points {
		out.Points[i] = SeriesPoint{Time: p.Time, Value: Float(p.Value)}
	}
	if s.Meta != nil {
		out.Meta = make(map[string]string, len(s.Meta))
		for k, v := range s.Meta {
			out.Meta[k] = v
		}
	}
	return &out
}

// Value returns a pointer to v, or nil when v is not finite.
func Value(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Float copies a nullable value.
func Float(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// CoerceNumber parses an upstream textual value. Empty, ".", "-", "NA", "N/A"
// and anything unparsable become nil; thousands separators are ignored.
func CoerceNumber(raw string) *float64 {
	s := strings.TrimSpace(raw)
	switch strings.ToUpper(s) {
	case "", ".", "-", "NA", "N/A", "NAN":
		return nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil
	}
	return Value(f)
}

// NormalizePoints orders points ascending by parsed period and removes
// duplicate periods, keeping the last occurrence in input order. Keys that
// parse to the same instant count as duplicates. An unparsable key is an error.
func NormalizePoints(points []SeriesPoint) ([]SeriesPoint, error) {
	type keyed struct {
		at time.Time
		p  SeriesPoint
	}
	latest := make(map[int64]int, len(points))
	items := make([]keyed, 0, len(points))
	for _, p := range points {
		at, ok := util.ParsePeriod(p.Time)
		if !ok {
			return nil, fmt.Errorf("unrecognized period %q", p.Time)
		}
		if p.Value != nil && (math.IsNaN(*p.Value) || math.IsInf(*p.Value, 0)) {
			p.Value = nil
		}
		k := at.UnixNano()
		if i, dup := latest[k]; dup {
			items[i].p = p
			continue
		}
		latest[k] = len(items)
		items = append(items, keyed{at: at, p: p})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].at.Before(items[j].at) })

	out := make([]SeriesPoint, len(items))
	for i, it := range items {
		out[i] = it.p
	}
	return out, nil
}

// RawValue decodes a JSON observation that may be a number, a numeric
// string, or null. Anything else becomes nil.
func RawValue(raw json.RawMessage) *float64 {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return nil
		}
		return CoerceNumber(str)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return Value(f)
}

// InferFrequency classifies canonical period keys: quarterly and monthly
// keys win when they make up at least 60% of the points, otherwise annual
// keys give "A" and full dates give "D".
func InferFrequency(points []SeriesPoint) string {
	if len(points) == 0 {
		return ""
	}
	var years, quarters, months, dates int
	for _, p := range points {
		switch k := p.Time; {
		case len(k) == 4:
			years++
		case len(k) == 6 && k[4] == 'Q':
			quarters++
		case len(k) == 7:
			months++
		default:
			dates++
		}
	}
	threshold := float64(len(points)) * 0.6
	switch {
	case float64(months) >= threshold:
		return FrequencyMonthly
	case float64(quarters) >= threshold:
		return FrequencyQuarterly
	case float64(dates) >= threshold:
		return FrequencyDaily
	default:
		return FrequencyAnnual
	}
}

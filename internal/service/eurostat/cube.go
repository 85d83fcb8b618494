package eurostat

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"MacroPull/internal/domain/models"
	"MacroPull/pkg/util"
)

type dimValue struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type dimension struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Values []dimValue `json:"values"`
}

type sdmxMessage struct {
	DataSets []struct {
		Series map[string]struct {
			Observations map[string][]json.RawMessage `json:"observations"`
		} `json:"series"`
	} `json:"dataSets"`
	Structure *struct {
		Dimensions struct {
			Series      []dimension `json:"series"`
			Observation []dimension `json:"observation"`
		} `json:"dimensions"`
	} `json:"structure"`
}

// cube is a decoded SDMX-JSON message: the series dimensions with their
// value lists and every series resolved to labelled coordinates.
type cube struct {
	dims   []dimension
	series []cubeSeries
}

type cubeSeries struct {
	key    string
	coords map[string]dimValue // dimension id -> value
	points []models.SeriesPoint
}

func (c *cube) dimension(id string) *dimension {
	for i := range c.dims {
		if strings.EqualFold(c.dims[i].ID, id) {
			return &c.dims[i]
		}
	}
	return nil
}

// decodeCube walks the sparse dataSets[0].series map. Series keys are
// colon-separated ordinals into the series dimensions, observation keys are
// ordinals into the time dimension.
func decodeCube(msg *sdmxMessage) (*cube, error) {
	if msg.Structure == nil {
		return nil, fmt.Errorf("structure missing")
	}
	dims := msg.Structure.Dimensions.Series
	var times []dimValue
	found := false
	for _, d := range msg.Structure.Dimensions.Observation {
		if strings.EqualFold(d.ID, "time") || strings.EqualFold(d.ID, "TIME_PERIOD") {
			times, found = d.Values, true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("time dimension missing")
	}

	out := &cube{dims: dims}
	if len(msg.DataSets) == 0 {
		return out, nil
	}

	for key, raw := range msg.DataSets[0].Series {
		parts := strings.Split(key, ":")
		if len(parts) != len(dims) {
			return nil, fmt.Errorf("series key %q has %d parts, want %d", key, len(parts), len(dims))
		}
		coords := make(map[string]dimValue, len(dims))
		for i, p := range parts {
			idx, err := strconv.Atoi(p)
			if err != nil || idx < 0 || idx >= len(dims[i].Values) {
				return nil, fmt.Errorf("series key %q: ordinal %q out of range for %s", key, p, dims[i].ID)
			}
			coords[dims[i].ID] = dims[i].Values[idx]
		}

		points := make([]models.SeriesPoint, 0, len(raw.Observations))
		for obsKey, vals := range raw.Observations {
			idx, err := strconv.Atoi(obsKey)
			if err != nil || idx < 0 || idx >= len(times) {
				return nil, fmt.Errorf("observation %q out of range", obsKey)
			}
			period := times[idx].ID
			if period == "" {
				period = times[idx].Name
			}
			var v *float64
			if len(vals) > 0 {
				v = models.RawValue(vals[0])
			}
			points = append(points, models.SeriesPoint{Time: util.CanonicalPeriod(period), Value: v})
		}
		points, err := models.NormalizePoints(points)
		if err != nil {
			return nil, err
		}
		out.series = append(out.series, cubeSeries{key: key, coords: coords, points: points})
	}
	sort.Slice(out.series, func(i, j int) bool { return out.series[i].key < out.series[j].key })
	return out, nil
}

// lastValue returns the most recent non-null observation.
func lastValue(points []models.SeriesPoint) (float64, bool) {
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].Value != nil {
			return *points[i].Value, true
		}
	}
	return 0, false
}

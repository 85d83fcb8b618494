package chart

import (
	"MacroPull/internal/domain/models"
	"MacroPull/internal/services/scale"

	"gonum.org/v1/gonum/floats"
)

const defaultTicks = 5

type Tick struct {
	Value float64 `json:"value"`
	Label string  `json:"label"`
}

// View is the derived render state of a chart.
type View struct {
	SeriesID string     `json:"series_id,omitempty"`
	State    State      `json:"state"`
	Domain   *Domain    `json:"domain,omitempty"` // nil is full extent
	XExtent  *Domain    `json:"x_extent,omitempty"`
	Band     *Domain    `json:"band,omitempty"`
	YRange   *Domain    `json:"y_range,omitempty"`
	Scale    scale.Info `json:"scale"`
	Ticks    []Tick     `json:"ticks"`
	Visible  int        `json:"visible"`
}

// Chart binds a series to an interaction machine and display settings.
type Chart struct {
	machine  *Machine
	seriesID string
	points   []XY
	mode     scale.Mode
	digits   int
	ticks    int
}

func NewChart(aff Affordance, mode scale.Mode, digits int) *Chart {
	return &Chart{
		machine: NewMachine(aff),
		mode:    mode,
		digits:  digits,
		ticks:   defaultTicks,
	}
}

func (c *Chart) Machine() *Machine { return c.machine }

// Load replaces the plotted series. A different series identity resets the
// zoom window.
func (c *Chart) Load(s *models.Series) error {
	pts, err := PointsXY(s.Points)
	if err != nil {
		return err
	}
	if s.ID != c.seriesID {
		c.machine.Reset()
	}
	c.seriesID = s.ID
	c.points = pts
	c.machine.SetExtent(XExtent(pts))
	return nil
}

func (c *Chart) SetScale(mode scale.Mode) { c.mode = mode }

func (c *Chart) SetDigits(d int) {
	if d >= 0 {
		c.digits = d
	}
}

// View recomputes scale, y range and tick labels for the active window.
func (c *Chart) View() View {
	v := View{SeriesID: c.seriesID, State: c.machine.State(), Ticks: []Tick{}}

	var window *Domain
	if d, ok := c.machine.Domain(); ok {
		window = &d
		v.Domain = window
	}
	if band, ok := c.machine.Band(); ok {
		v.Band = &band
	}
	if ext, ok := XExtent(c.points); ok {
		v.XExtent = &ext
	}
	v.Visible = len(visibleValues(c.points, window))

	v.Scale = scale.Choose(c.mode, MaxAbs(c.points, window))
	yr, ok := YRange(c.points, window)
	if !ok {
		return v
	}
	v.YRange = &yr
	for _, t := range floats.Span(make([]float64, c.ticks), yr.Min, yr.Max) {
		v.Ticks = append(v.Ticks, Tick{Value: t, Label: scale.Format(t, v.Scale, c.digits)})
	}
	return v
}

package chart

import (
	"fmt"
	"math"
	"sync"
)

// State is the gesture state of a chart.
type State string

const (
	StateIdle     State = "idle"
	StateDragging State = "dragging"
	StateZoomed   State = "zoomed"
)

// Event types accepted by Handle.
const (
	EventPointerDown = "pointerdown"
	EventPointerMove = "pointermove"
	EventPointerUp   = "pointerup"
	EventDoubleClick = "dblclick"
	EventCancel      = "cancel"
)

// minDragSpan is the smallest x distance treated as a drag rather than a click.
const minDragSpan = 1.0

// Domain is a closed x (or y) interval.
type Domain struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (d Domain) Contains(x float64) bool { return x >= d.Min && x <= d.Max }

// Affordance is the surface-level behavior bracketing a drag: selection and
// cursor changes are suppressed on drag start and restored on release.
type Affordance interface {
	Suppress()
	Restore()
}

// Event is one pointer or keyboard input. X is nil when the pointer is not
// over a resolvable data position.
type Event struct {
	Type string   `json:"type"`
	X    *float64 `json:"x,omitempty"`
}

// Machine is the drag-to-zoom state machine. It is not safe for concurrent
// use; callers feed it events from a single goroutine.
//
//	Idle     --down(x)--> Dragging(x)
//	Dragging --move(x)--> Dragging (band edge follows x)
//	Dragging --up(x)----> Zoomed([min,max]) or back to rest when |x-anchor| < 1
//	any      --dblclick-> Idle, domain cleared
type Machine struct {
	state   State
	anchor  float64
	cursor  float64
	domain  *Domain
	extent  *Domain
	aff     Affordance
	release func()
}

func NewMachine(aff Affordance) *Machine {
	if aff == nil {
		aff = noAffordance{}
	}
	return &Machine{state: StateIdle, aff: aff}
}

func (m *Machine) State() State { return m.state }

// Domain returns the active zoom window; false means full extent.
func (m *Machine) Domain() (Domain, bool) {
	if m.domain == nil {
		return Domain{}, false
	}
	return *m.domain, true
}

// Band returns the in-progress drag band.
func (m *Machine) Band() (Domain, bool) {
	if m.state != StateDragging {
		return Domain{}, false
	}
	return Domain{Min: math.Min(m.anchor, m.cursor), Max: math.Max(m.anchor, m.cursor)}, true
}

// Handle dispatches ev to the matching transition.
func (m *Machine) Handle(ev Event) error {
	switch ev.Type {
	case EventPointerDown:
		m.PointerDown(ev.X)
	case EventPointerMove:
		m.PointerMove(ev.X)
	case EventPointerUp:
		m.PointerUp(ev.X)
	case EventDoubleClick:
		m.DoubleClick()
	case EventCancel:
		m.Cancel()
	default:
		return fmt.Errorf("unknown chart event %q", ev.Type)
	}
	return nil
}

// SetExtent bounds where a drag may start to the plotted x range. ok=false
// means nothing is plotted and every press is ignored.
func (m *Machine) SetExtent(d Domain, ok bool) {
	if !ok {
		d = Domain{Min: math.Inf(1), Max: math.Inf(-1)}
	}
	m.extent = &d
}

// PointerDown starts a drag at x. Presses outside the data are ignored.
func (m *Machine) PointerDown(x *float64) {
	if x == nil || !finite(*x) || m.state == StateDragging {
		return
	}
	if m.extent != nil && !m.extent.Contains(*x) {
		return
	}
	m.anchor, m.cursor = *x, *x
	m.state = StateDragging
	m.aff.Suppress()
	m.release = sync.OnceFunc(m.aff.Restore)
}

// PointerMove moves the band edge while dragging.
func (m *Machine) PointerMove(x *float64) {
	if m.state != StateDragging || x == nil || !finite(*x) {
		return
	}
	m.cursor = *x
}

// PointerUp completes a drag. A release with no resolvable x (outside the
// chart) ends the gesture at the last tracked position.
func (m *Machine) PointerUp(x *float64) {
	if m.state != StateDragging {
		return
	}
	end := m.cursor
	if x != nil && finite(*x) {
		end = *x
	}
	m.fireRelease()

	if math.Abs(end-m.anchor) < minDragSpan {
		m.state = m.resting()
		return
	}
	m.domain = &Domain{Min: math.Min(m.anchor, end), Max: math.Max(m.anchor, end)}
	m.state = StateZoomed
}

// DoubleClick cancels any drag and clears the zoom.
func (m *Machine) DoubleClick() {
	m.fireRelease()
	m.domain = nil
	m.state = StateIdle
}

// Reset returns to full extent; used when the data source changes.
func (m *Machine) Reset() { m.DoubleClick() }

// Cancel abandons an in-progress drag, keeping the current zoom.
func (m *Machine) Cancel() {
	m.fireRelease()
	if m.state == StateDragging {
		m.state = m.resting()
	}
}

func (m *Machine) resting() State {
	if m.domain != nil {
		return StateZoomed
	}
	return StateIdle
}

// fireRelease runs the restore hook at most once and drops it.
func (m *Machine) fireRelease() {
	if m.release == nil {
		return
	}
	r := m.release
	m.release = nil
	r()
}

type noAffordance struct{}

func (noAffordance) Suppress() {}
func (noAffordance) Restore()  {}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

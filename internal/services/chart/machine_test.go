package chart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAffordance struct {
	suppressed int
	restored   int
}

func (r *recordingAffordance) Suppress() { r.suppressed++ }
func (r *recordingAffordance) Restore()  { r.restored++ }

func x(v float64) *float64 { return &v }

func TestNearZeroDragIsClick(t *testing.T) {
	m := NewMachine(nil)
	m.PointerDown(x(5))
	m.PointerMove(x(5.3))
	m.PointerUp(x(5.3))

	assert.Equal(t, StateIdle, m.State())
	_, zoomed := m.Domain()
	assert.False(t, zoomed)
}

func TestDragSetsDomain(t *testing.T) {
	m := NewMachine(nil)
	m.PointerDown(x(5))
	m.PointerUp(x(9))

	d, ok := m.Domain()
	require.True(t, ok)
	assert.Equal(t, Domain{Min: 5, Max: 9}, d)
	assert.Equal(t, StateZoomed, m.State())
}

func TestRightToLeftDragOrdersDomain(t *testing.T) {
	m := NewMachine(nil)
	m.PointerDown(x(9))
	m.PointerMove(x(6))
	band, ok := m.Band()
	require.True(t, ok)
	assert.Equal(t, Domain{Min: 6, Max: 9}, band)
	m.PointerUp(x(2))

	d, _ := m.Domain()
	assert.Equal(t, Domain{Min: 2, Max: 9}, d)
}

func TestPointerDownOutsideDataIgnored(t *testing.T) {
	aff := &recordingAffordance{}
	m := NewMachine(aff)
	m.PointerDown(nil)
	assert.Equal(t, StateIdle, m.State())
	assert.Zero(t, aff.suppressed)
}

func TestDoubleClickDuringDragCancelsAndClearsZoom(t *testing.T) {
	aff := &recordingAffordance{}
	m := NewMachine(aff)
	m.PointerDown(x(1))
	m.PointerUp(x(4))
	_, ok := m.Domain()
	require.True(t, ok)

	m.PointerDown(x(2))
	assert.Equal(t, StateDragging, m.State())
	m.DoubleClick()

	assert.Equal(t, StateIdle, m.State())
	_, ok = m.Domain()
	assert.False(t, ok)
	assert.Equal(t, 2, aff.suppressed)
	assert.Equal(t, 2, aff.restored)

	// a late release after the cancel does nothing
	m.PointerUp(x(8))
	_, ok = m.Domain()
	assert.False(t, ok)
	assert.Equal(t, 2, aff.restored)
}

func TestReleaseOutsideChartUsesLastCursor(t *testing.T) {
	aff := &recordingAffordance{}
	m := NewMachine(aff)
	m.PointerDown(x(10))
	m.PointerMove(x(20))
	m.PointerUp(nil)

	d, ok := m.Domain()
	require.True(t, ok)
	assert.Equal(t, Domain{Min: 10, Max: 20}, d)
	assert.Equal(t, 1, aff.restored)
}

func TestClickWhileZoomedKeepsDomain(t *testing.T) {
	m := NewMachine(nil)
	m.PointerDown(x(0))
	m.PointerUp(x(10))
	m.PointerDown(x(3))
	m.PointerUp(x(3.2))

	assert.Equal(t, StateZoomed, m.State())
	d, _ := m.Domain()
	assert.Equal(t, Domain{Min: 0, Max: 10}, d)
}

func TestCancelRestoresOnceAndKeepsZoom(t *testing.T) {
	aff := &recordingAffordance{}
	m := NewMachine(aff)
	m.PointerDown(x(0))
	m.PointerUp(x(10))
	m.PointerDown(x(1))
	m.Cancel()
	m.Cancel()

	assert.Equal(t, StateZoomed, m.State())
	assert.Equal(t, 2, aff.suppressed)
	assert.Equal(t, 2, aff.restored)
}

func TestHandleDispatch(t *testing.T) {
	m := NewMachine(nil)
	require.NoError(t, m.Handle(Event{Type: EventPointerDown, X: x(1)}))
	require.NoError(t, m.Handle(Event{Type: EventPointerUp, X: x(3)}))
	assert.Equal(t, StateZoomed, m.State())
	assert.Error(t, m.Handle(Event{Type: "wheel"}))
}

package chart

import (
	"pricechart/internal/market"
)

// State is the interaction state of the chart.
type State int

const (
	Idle State = iota
	Hovering
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Hovering:
		return "hovering"
	default:
		return "unknown"
	}
}

// Tooltip is what the view needs to draw the crosshair, marker and panel.
// X and Y are the projected position of the located point, not the pointer.
type Tooltip struct {
	Active bool
	Index  int
	Point  market.PricePoint
	X      float64
	Y      float64
}

// Frame is everything derived from one series and one measured size.
type Frame struct {
	Series market.Series
	Size   Size
	Scales Scales
}

func newFrame(series market.Series, size Size, margin float64) Frame {
	return Frame{
		Series: series,
		Size:   size,
		Scales: NewScales(series, size, margin),
	}
}

// Path returns the projected polyline of the series, or nil when there is
// nothing to draw into.
func (f Frame) Path() []Point {
	if len(f.Series) == 0 || f.Scales.Bounds.Empty() {
		return nil
	}
	pts := make([]Point, len(f.Series))
	for i, pp := range f.Series {
		pts[i] = f.Scales.Project(pp)
	}
	return pts
}

// Gridline is a horizontal rule at a round value.
type Gridline struct {
	Value float64
	Y     float64
}

// Gridlines returns up to count rules at the ticks of the niced value domain.
func (f Frame) Gridlines(count int) []Gridline {
	if f.Scales.Bounds.Empty() {
		return nil
	}
	ticks := f.Scales.Y.Ticks(count)
	lines := make([]Gridline, 0, len(ticks))
	for _, v := range ticks {
		lines = append(lines, Gridline{Value: v, Y: f.Scales.Y.Map(v)})
	}
	return lines
}

// Controller owns the hover state of one chart. Every input replaces the
// derived frame wholesale, and the tooltip is located again from the last
// pointer position, so it never refers to a stale series or size. It is not
// safe for concurrent use; the view calls it from its single update loop.
type Controller struct {
	margin  float64
	frame   Frame
	state   State
	tooltip Tooltip

	// pointer is the last position seen since the pointer entered.
	pointer    Point
	hasPointer bool
}

func NewController(margin float64) *Controller {
	c := &Controller{
		margin: margin,
		frame:  newFrame(nil, Size{}, margin),
	}
	c.reset()
	return c
}

// SetSeries swaps in a freshly fetched series. A pointer resting on the
// chart hovers the nearest point of the new series.
func (c *Controller) SetSeries(series market.Series) {
	c.frame = newFrame(series, c.frame.Size, c.margin)
	c.locate()
}

// Resize records a new measured container size and locates the point under
// the pointer on the new scales.
func (c *Controller) Resize(size Size) {
	if size == c.frame.Size {
		return
	}
	c.frame = newFrame(c.frame.Series, size, c.margin)
	c.locate()
}

// OnPointerMove snaps the hover to the point nearest the pointer's time.
// Outside the interaction surface the chart is Idle, but the position is kept
// so that a resize which brings it inside hovers again.
func (c *Controller) OnPointerMove(p Point) {
	c.pointer, c.hasPointer = p, true
	c.locate()
}

func (c *Controller) OnPointerLeave() {
	c.hasPointer = false
	c.reset()
}

func (c *Controller) CurrentTooltip() Tooltip {
	return c.tooltip
}

func (c *Controller) State() State {
	return c.state
}

func (c *Controller) Frame() Frame {
	return c.frame
}

func (c *Controller) locate() {
	sc := c.frame.Scales
	if !c.hasPointer || len(c.frame.Series) == 0 || sc.Bounds.Empty() || !sc.Bounds.Contains(c.pointer) {
		c.reset()
		return
	}
	c.hover(Locate(c.frame.Series, sc.X.Invert(c.pointer.X)))
}

func (c *Controller) hover(idx int) {
	if idx < 0 || idx >= len(c.frame.Series) || c.frame.Scales.Bounds.Empty() {
		c.reset()
		return
	}
	pp := c.frame.Series[idx]
	pos := c.frame.Scales.Project(pp)
	c.state = Hovering
	c.tooltip = Tooltip{
		Active: true,
		Index:  idx,
		Point:  pp,
		X:      pos.X,
		Y:      pos.Y,
	}
}

func (c *Controller) reset() {
	c.state = Idle
	c.tooltip = Tooltip{Index: -1}
}

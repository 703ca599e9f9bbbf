package chart

import "math"

// DefaultMargin is the inset kept clear on every side of the chart for axis labels.
const DefaultMargin = 50.0

// Size is the measured pixel size of the chart container.
type Size struct {
	Width  float64
	Height float64
}

// Point is a position in pixels.
type Point struct {
	X float64
	Y float64
}

// Bounds is the drawable interior of the container. It is also the
// interaction surface that receives pointer events.
type Bounds struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// Interior insets size by margin on all sides. When the container is smaller
// than twice the margin the interior collapses to zero width or height rather
// than going negative.
func Interior(size Size, margin float64) Bounds {
	if margin < 0 || math.IsNaN(margin) {
		margin = 0
	}
	w := math.Max(0, size.Width-2*margin)
	h := math.Max(0, size.Height-2*margin)
	return Bounds{
		Left:   margin,
		Top:    margin,
		Right:  margin + w,
		Bottom: margin + h,
	}
}

func (b Bounds) Dx() float64 { return b.Right - b.Left }
func (b Bounds) Dy() float64 { return b.Bottom - b.Top }

// Empty reports whether there is no area to draw into.
func (b Bounds) Empty() bool {
	return !(b.Dx() > 0) || !(b.Dy() > 0)
}

func (b Bounds) Contains(p Point) bool {
	return p.X >= b.Left && p.X <= b.Right && p.Y >= b.Top && p.Y <= b.Bottom
}

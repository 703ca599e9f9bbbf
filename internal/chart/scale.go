package chart

import (
	"math"
	"time"

	"pricechart/internal/market"
)

const (
	// minTimeSpan stands in for a zero-width time domain.
	minTimeSpan = time.Millisecond
	// minValueSpan stands in for a zero-height value domain.
	minValueSpan = 1.0

	defaultTickCount = 10
	// maxTicks bounds Ticks where float indices stop being exact integers.
	maxTicks = 1000
)

// TimeScale maps instants affinely onto a pixel range.
type TimeScale struct {
	start  time.Time
	span   time.Duration
	r0, r1 float64
}

// NewTimeScale maps [lo, hi] onto [r0, r1]. A zero or negative span is
// widened to minTimeSpan around lo.
func NewTimeScale(lo, hi time.Time, r0, r1 float64) TimeScale {
	span := hi.Sub(lo)
	if span <= 0 {
		lo = lo.Add(-minTimeSpan / 2)
		span = minTimeSpan
	}
	return TimeScale{start: lo, span: span, r0: r0, r1: r1}
}

// Map returns the whole-pixel X for t.
func (s TimeScale) Map(t time.Time) float64 {
	f := float64(t.Sub(s.start)) / float64(s.span)
	return math.Round(s.r0 + f*(s.r1-s.r0))
}

// Invert is the inverse of Map before rounding. A collapsed range inverts to
// the start of the domain.
func (s TimeScale) Invert(px float64) time.Time {
	if s.r1 == s.r0 || math.IsNaN(px) {
		return s.start
	}
	f := (px - s.r0) / (s.r1 - s.r0)
	return s.start.Add(time.Duration(math.Round(f * float64(s.span))))
}

func (s TimeScale) Domain() (time.Time, time.Time) {
	return s.start, s.start.Add(s.span)
}

func (s TimeScale) Range() (float64, float64) {
	return s.r0, s.r1
}

// LinearScale maps numbers affinely onto a pixel range.
type LinearScale struct {
	d0, d1 float64
	r0, r1 float64
}

// NewLinearScale maps [lo, hi] onto [r0, r1]. Pass r0 > r1 for a screen Y axis,
// where larger values sit higher up. A zero span is widened to minValueSpan
// centred on lo, or to the neighbouring float where lo is too large for that.
func NewLinearScale(lo, hi, r0, r1 float64) LinearScale {
	if hi < lo {
		lo, hi = hi, lo
	}
	if !hasSpan(lo, hi) {
		mid := lo
		lo, hi = mid-minValueSpan/2, mid+minValueSpan/2
		if !hasSpan(lo, hi) {
			if mid > 0 {
				lo, hi = math.Nextafter(mid, 0), mid
			} else {
				lo, hi = mid, math.Nextafter(mid, 0)
			}
		}
	}
	return LinearScale{d0: lo, d1: hi, r0: r0, r1: r1}
}

// hasSpan reports whether [lo, hi] is finite and non-empty. Halving first
// keeps the difference from overflowing for extents near the float64 limits.
func hasSpan(lo, hi float64) bool {
	return !math.IsInf(lo, 0) && !math.IsInf(hi, 0) && hi/2-lo/2 > 0
}

// clampFinite pins overflowed results to the largest representable value.
func clampFinite(v, fallback float64) float64 {
	switch {
	case math.IsNaN(v):
		return fallback
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	}
	return v
}

// Nice widens the domain outward to round boundaries so that the first and
// last of count ticks land on clean numbers.
func (s LinearScale) Nice(count int) LinearScale {
	start, stop := s.d0, s.d1
	var prestep float64
	for i := 0; i < 10; i++ {
		step := tickIncrement(start, stop, count)
		if step == prestep {
			break
		}
		var lo, hi float64
		switch {
		case step > 0:
			lo = math.Floor(start/step) * step
			hi = math.Ceil(stop/step) * step
		case step < 0:
			lo = math.Ceil(start*step) / step
			hi = math.Floor(stop*step) / step
		default:
			return s
		}
		if !hasSpan(lo, hi) {
			return s
		}
		start, stop = lo, hi
		prestep = step
	}
	s.d0, s.d1 = start, stop
	return s
}

// Map returns the whole-pixel coordinate for v.
func (s LinearScale) Map(v float64) float64 {
	f := (v/2 - s.d0/2) / (s.d1/2 - s.d0/2)
	return math.Round(clampFinite(s.r0+f*(s.r1-s.r0), s.r0))
}

// Invert is the inverse of Map before rounding.
func (s LinearScale) Invert(px float64) float64 {
	if s.r1 == s.r0 {
		return s.d0
	}
	f := (px - s.r0) / (s.r1 - s.r0)
	return clampFinite(s.d0+f*(s.d1/2-s.d0/2)*2, s.d0)
}

func (s LinearScale) Domain() (float64, float64) {
	return s.d0, s.d1
}

func (s LinearScale) Range() (float64, float64) {
	return s.r0, s.r1
}

// Ticks returns roughly count evenly spaced round values inside the domain.
func (s LinearScale) Ticks(count int) []float64 {
	step := tickIncrement(s.d0, s.d1, count)
	if step == 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return nil
	}
	var ticks []float64
	if step > 0 {
		i0, i1 := math.Ceil(s.d0/step), math.Floor(s.d1/step)
		if !countable(i0, i1) {
			return nil
		}
		for i := i0; i <= i1; i++ {
			ticks = append(ticks, i*step)
		}
		return ticks
	}
	inv := -step
	i0, i1 := math.Ceil(s.d0*inv), math.Floor(s.d1*inv)
	if !countable(i0, i1) {
		return nil
	}
	for i := i0; i <= i1; i++ {
		ticks = append(ticks, i/inv)
	}
	return ticks
}

func countable(i0, i1 float64) bool {
	return i1-i0 <= maxTicks && i0+1 != i0 && i1-1 != i1
}

var (
	e10 = math.Sqrt(50)
	e5  = math.Sqrt(10)
	e2  = math.Sqrt(2)
)

// tickIncrement returns the 1-2-5 step for splitting [start, stop] into about
// count intervals. Steps below one come back negated as their reciprocal, so
// that 0.1 is -10, which keeps decimal boundaries exact.
func tickIncrement(start, stop float64, count int) float64 {
	if count <= 0 || !hasSpan(start, stop) {
		return 0
	}
	step := stop/float64(count) - start/float64(count)
	if !(step > 0) {
		return 0
	}
	power := math.Floor(math.Log10(step))
	errRatio := step / math.Pow(10, power)

	factor := 1.0
	switch {
	case errRatio >= e10:
		factor = 10
	case errRatio >= e5:
		factor = 5
	case errRatio >= e2:
		factor = 2
	}
	var inc float64
	if power >= 0 {
		inc = factor * math.Pow(10, power)
	} else {
		inc = -math.Pow(10, -power) / factor
	}
	if math.IsInf(inc, 0) || math.IsNaN(inc) {
		return 0
	}
	return inc
}

// Scales holds both axes of a chart for one series and one measured size.
// It is recomputed from scratch whenever either input changes.
type Scales struct {
	X      TimeScale
	Y      LinearScale
	Bounds Bounds
}

// NewScales derives the time and value domains from series and maps them onto
// the interior of size. The value domain is niced.
func NewScales(series market.Series, size Size, margin float64) Scales {
	b := Interior(size, margin)

	tLo, tHi, _ := series.TimeExtent()
	vLo, vHi, _ := series.PriceExtent()

	return Scales{
		X:      NewTimeScale(tLo, tHi, b.Left, b.Right),
		Y:      NewLinearScale(vLo, vHi, b.Bottom, b.Top).Nice(defaultTickCount),
		Bounds: b,
	}
}

// Project returns the pixel position of pp.
func (s Scales) Project(pp market.PricePoint) Point {
	return Point{X: s.X.Map(pp.Timestamp), Y: s.Y.Map(pp.Price)}
}

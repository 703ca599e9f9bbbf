package market

import "time"

// PricePoint is one observation of an asset's price.
type PricePoint struct {
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// Series is a price history in ascending Timestamp order, as delivered by the
// upstream source. Nothing here re-sorts it; lookups that bisect on time rely
// on the source honouring that order.
//
// A Series is never modified after a fetch. A refetch replaces it wholesale.
type Series []PricePoint

// TimeExtent returns the earliest and latest timestamps of s.
func (s Series) TimeExtent() (lo, hi time.Time, ok bool) {
	if len(s) == 0 {
		return time.Time{}, time.Time{}, false
	}
	lo, hi = s[0].Timestamp, s[0].Timestamp
	for _, pp := range s[1:] {
		if pp.Timestamp.Before(lo) {
			lo = pp.Timestamp
		}
		if pp.Timestamp.After(hi) {
			hi = pp.Timestamp
		}
	}
	return lo, hi, true
}

// PriceExtent returns the lowest and highest prices of s.
func (s Series) PriceExtent() (lo, hi float64, ok bool) {
	if len(s) == 0 {
		return 0, 0, false
	}
	lo, hi = s[0].Price, s[0].Price
	for _, pp := range s[1:] {
		if pp.Price < lo {
			lo = pp.Price
		}
		if pp.Price > hi {
			hi = pp.Price
		}
	}
	return lo, hi, true
}

// Latest returns the last point of s.
func (s Series) Latest() (PricePoint, bool) {
	if len(s) == 0 {
		return PricePoint{}, false
	}
	return s[len(s)-1], true
}

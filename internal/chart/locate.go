package chart

import (
	"sort"
	"time"

	"pricechart/internal/market"
)

// Locate returns the index of the point in series whose timestamp is nearest
// to t, or -1 if series is empty. series must be sorted ascending by time.
//
// The search bisects for the first point at or after t, starting from index 1
// so a left neighbour always exists, then keeps whichever neighbour is closer.
// An exact midpoint goes to the later point.
func Locate(series market.Series, t time.Time) int {
	n := len(series)
	if n == 0 {
		return -1
	}

	i := 1 + sort.Search(n-1, func(j int) bool {
		return !series[j+1].Timestamp.Before(t)
	})
	if i >= n {
		return n - 1
	}

	toLeft := t.Sub(series[i-1].Timestamp).Abs()
	toRight := series[i].Timestamp.Sub(t).Abs()
	if toRight <= toLeft {
		return i
	}
	return i - 1
}

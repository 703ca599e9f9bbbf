package market

import (
	"math"

	"github.com/dustin/go-humanize"
)

const maxPriceDigits = 12

// FormatPrice renders price with thousands separators. Prices of one or more
// show cents; smaller prices keep four significant digits.
func FormatPrice(price float64) string {
	return humanize.CommafWithDigits(price, priceDigits(price))
}

func priceDigits(price float64) int {
	a := math.Abs(price)
	if a >= 1 || a == 0 || math.IsNaN(a) || math.IsInf(a, 0) {
		return 2
	}
	return min(3-int(math.Floor(math.Log10(a))), maxPriceDigits)
}

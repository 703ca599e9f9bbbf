package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		price float64
		want  string
	}{
		{price: 63123.456, want: "63,123.45"},
		{price: 1.5, want: "1.5"},
		{price: 0.123456, want: "0.1234"},
		{price: 0.00001234, want: "0.00001234"},
		{price: -0.005, want: "-0.005"},
		{price: 0, want: "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPrice(tt.price), "price=%v", tt.price)
	}
}

func TestPriceDigits(t *testing.T) {
	assert.Equal(t, 2, priceDigits(42))
	assert.Equal(t, 4, priceDigits(0.5))
	assert.Equal(t, 8, priceDigits(0.00001234))
	assert.Equal(t, maxPriceDigits, priceDigits(1e-30))
}

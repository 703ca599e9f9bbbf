package snapshot

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricechart/internal/market"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func weekOfPrices() market.Series {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var s market.Series
	for i := 0; i < 7*24; i++ {
		s = append(s, market.PricePoint{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Price:     63000 + float64(i%24)*40,
		})
	}
	return s
}

func TestRender(t *testing.T) {
	img, err := Render(weekOfPrices(), Options{Title: "BITCOIN • 7d", Width: 600, Height: 400})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))
}

func TestRenderEmpty(t *testing.T) {
	_, err := Render(nil, Options{})
	require.Error(t, err)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "chart.png")
	require.NoError(t, WriteFile(path, weekOfPrices(), Options{Title: "BTC"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))
}

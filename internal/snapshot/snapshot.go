package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vicanso/go-charts/v2"

	"pricechart/internal/chart"
	"pricechart/internal/market"
)

const (
	niceTicks   = 10
	yDivisions  = 5
	xLabelCount = 7
)

type Options struct {
	Title  string
	Width  int
	Height int
}

// Render draws series as a PNG line chart. The value axis spans the same
// niced domain the interactive chart uses.
func Render(series market.Series, opts Options) ([]byte, error) {
	if len(series) == 0 {
		return nil, errors.New("snapshot: no data points")
	}

	vLo, vHi, _ := series.PriceExtent()
	yMin, yMax := chart.NewLinearScale(vLo, vHi, 1, 0).Nice(niceTicks).Domain()

	tLo, tHi, _ := series.TimeExtent()
	layout := "15:04"
	if tHi.Sub(tLo) > 48*time.Hour {
		layout = "Jan 02"
	}

	labels := make([]string, len(series))
	values := make([]float64, len(series))
	for i, pp := range series {
		labels[i] = pp.Timestamp.Format(layout)
		values[i] = pp.Price
	}

	optFuncs := []charts.OptionFunc{
		charts.TitleTextOptionFunc(opts.Title),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: labels, BoundaryGap: charts.FalseFlag(), SplitNumber: xLabelCount}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: yDivisions}),
		charts.ThemeOptionFunc(charts.ThemeDark),
	}
	if opts.Width > 0 {
		optFuncs = append(optFuncs, charts.WidthOptionFunc(opts.Width))
	}
	if opts.Height > 0 {
		optFuncs = append(optFuncs, charts.HeightOptionFunc(opts.Height))
	}

	painter, err := charts.LineRender([][]float64{values}, optFuncs...)
	if err != nil {
		return nil, fmt.Errorf("snapshot: render: %w", err)
	}
	img, err := painter.Bytes()
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	return img, nil
}

// WriteFile renders series and writes it to path, creating parent directories.
func WriteFile(path string, series market.Series, opts Options) error {
	img, err := Render(series, opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("snapshot: create dir: %w", err)
	}
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	return nil
}

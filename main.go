package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/temidaradev/esset/v2"
	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/image/font/gofont/goregular"

	"pricechart/internal/config"
	"pricechart/internal/market"
	"pricechart/internal/query"
	"pricechart/internal/snapshot"
)

const glyphsToPreload = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789.,:/$-• "
const baseFontSize = 12

func main() {
	var (
		configPath   = flag.String("f", "etc/pricechart.yaml", "path to configuration file")
		snapshotPath = flag.String("snapshot", "", "fetch once, write the chart as PNG to this path and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	logx.Must(err)
	logx.MustSetup(cfg.Log)
	logx.DisableStat()

	src, err := market.NewSource(cfg.Source.Provider, cfg.SourceOptions())
	logx.Must(err)
	client, err := query.NewClient(cfg.QueryOptions())
	logx.Must(err)
	prices := query.New(client, src.Key(), fetchSeries(src))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *snapshotPath != "" {
		code := runSnapshot(ctx, cfg, prices, *snapshotPath)
		stop()
		os.Exit(code)
	}

	deviceScale := ebiten.Monitor().DeviceScaleFactor()

	scaledFontSize := baseFontSize * deviceScale
	fontFace, err := esset.GetFont(goregular.TTF, int(scaledFontSize))
	logx.Must(err)

	logx.Info("glyph caching...")
	tempImage := ebiten.NewImage(1, 1)
	text.Draw(tempImage, glyphsToPreload, fontFace, &text.DrawOptions{})
	logx.Info("glyph caching done")

	g := newGame(ctx, cfg, prices, fontFace, deviceScale)
	prices.Start(ctx)

	pad := 2 * int(cfg.Chart.Padding)
	ebiten.SetWindowSize(cfg.Chart.Width+pad, cfg.Chart.Height+pad)
	ebiten.SetWindowSizeLimits(cfg.Chart.MinWidth+pad, pad, -1, -1)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowTitle(cfg.Chart.Title)
	if err := ebiten.RunGame(g); err != nil {
		logx.Errorf("run chart window: %v", err)
		os.Exit(1)
	}
}

func fetchSeries(src market.Source) query.FetchFunc[market.Series] {
	return func(ctx context.Context) (market.Series, error) {
		series, err := src.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		logx.WithContext(ctx).Infow("price history fetched",
			logx.Field("source", src.Key()),
			logx.Field("points", len(series)))
		return series, nil
	}
}

func runSnapshot(ctx context.Context, cfg *config.Config, prices *query.Query[market.Series], path string) int {
	res := prices.Fetch(ctx)
	if res.Status != query.StatusReady {
		logx.Errorf("snapshot: %s: %v", res.Status, res.Err)
		return 1
	}
	err := snapshot.WriteFile(path, res.Data, snapshot.Options{
		Title:  cfg.Chart.Title,
		Width:  cfg.Chart.Width,
		Height: cfg.Chart.Height,
	})
	if err != nil {
		logx.Errorf("snapshot: %v", err)
		return 1
	}
	logx.Infof("snapshot: wrote %d points to %s", len(res.Data), path)
	return 0
}

package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/temidaradev/esset/v2"
	"github.com/zeromicro/go-zero/core/logx"

	"pricechart/internal/chart"
	"pricechart/internal/config"
	"pricechart/internal/market"
	"pricechart/internal/query"
)

const gridTicks = 5

var (
	backgroundColor = color.RGBA{44, 43, 90, 255}
	panelColor      = color.RGBA{32, 29, 71, 255}
	lineColor       = color.RGBA{0, 200, 255, 255}
	gridColor       = color.RGBA{255, 255, 255, 28}
	labelColor      = color.RGBA{150, 150, 180, 255}
	titleColor      = color.RGBA{200, 200, 200, 255}
	crosshairColor  = color.RGBA{255, 255, 255, 90}
	markerColor     = color.RGBA{255, 255, 0, 255}
	tooltipColor    = color.RGBA{255, 255, 255, 230}
	tooltipText     = color.RGBA{32, 29, 71, 255}
	errorColor      = color.RGBA{255, 110, 110, 255}
)

type Game struct {
	ctx        context.Context
	cfg        *config.Config
	prices     *query.Query[market.Series]
	controller *chart.Controller

	// dataVersion is the fetch time of the series the controller holds.
	dataVersion time.Time

	fontFace           text.Face
	physicalLineHeight float64
	deviceScale        float64
	solidColorImage    *ebiten.Image

	screenSize  image.Point
	panel       image.Rectangle
	touchIDs    []ebiten.TouchID
	touching    bool
	lastPointer chart.Point
	hasPointer  bool
}

func newGame(ctx context.Context, cfg *config.Config, prices *query.Query[market.Series], fontFace text.Face, deviceScale float64) *Game {
	_, fontHeight := text.Measure("0", fontFace, 0)
	return &Game{
		ctx:                ctx,
		cfg:                cfg,
		prices:             prices,
		controller:         chart.NewController(cfg.Chart.Margin * deviceScale),
		fontFace:           fontFace,
		physicalLineHeight: fontHeight*1.5 + 2*deviceScale,
		deviceScale:        deviceScale,
	}
}

func (g *Game) initSolidColorImage() {
	if g.solidColorImage == nil {
		g.solidColorImage = ebiten.NewImage(1, 1)
		g.solidColorImage.Fill(color.White)
	}
}

func (g *Game) Update() error {
	select {
	case <-g.ctx.Done():
		logx.Info("shutting down")
		return ebiten.Termination
	default:
	}

	g.prices.RefetchIfStale(g.ctx)

	res := g.prices.Result()
	if res.Status == query.StatusReady && !res.UpdatedAt.Equal(g.dataVersion) {
		g.controller.SetSeries(res.Data)
		g.dataVersion = res.UpdatedAt
		logx.Infof("chart: showing %d points fetched at %s", len(res.Data), res.UpdatedAt.Format(time.RFC3339))
	}

	g.handlePointer()
	return nil
}

// handlePointer forwards pointer movement over the panel to the controller,
// in panel coordinates: a resize that moves the panel under a still cursor is
// a move too. A finger lifting or the cursor leaving the window is a pointer
// leave.
func (g *Game) handlePointer() {
	p, ok := g.pointer()
	if !ok {
		if g.hasPointer {
			g.hasPointer = false
			g.controller.OnPointerLeave()
		}
		return
	}
	local := p.Sub(g.panel.Min)
	lp := chart.Point{X: float64(local.X), Y: float64(local.Y)}
	if g.hasPointer && lp == g.lastPointer {
		return
	}
	g.lastPointer, g.hasPointer = lp, true
	g.controller.OnPointerMove(lp)
}

func (g *Game) pointer() (image.Point, bool) {
	g.touchIDs = ebiten.AppendTouchIDs(g.touchIDs[:0])
	if len(g.touchIDs) > 0 {
		g.touching = true
		x, y := ebiten.TouchPosition(g.touchIDs[0])
		return image.Pt(x, y), true
	}
	if g.touching {
		g.touching = false
		return image.Point{}, false
	}

	if !ebiten.IsFocused() {
		return image.Point{}, false
	}
	x, y := ebiten.CursorPosition()
	p := image.Pt(x, y)
	if !p.In(image.Rectangle{Max: g.screenSize}) {
		return image.Point{}, false
	}
	return p, true
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (screenWidth, screenHeight int) {
	w := int(math.Ceil(float64(outsideWidth) * g.deviceScale))
	h := int(math.Ceil(float64(outsideHeight) * g.deviceScale))
	g.measure(w, h)
	return w, h
}

// measure places the chart panel in the middle of the window: the configured
// size where it fits, never narrower than the minimum width.
func (g *Game) measure(screenWidth, screenHeight int) {
	g.screenSize = image.Pt(screenWidth, screenHeight)

	pad := int(g.cfg.Chart.Padding * g.deviceScale)
	availW := max(0, screenWidth-2*pad)
	availH := max(0, screenHeight-2*pad)

	w := min(int(float64(g.cfg.Chart.Width)*g.deviceScale), availW)
	w = max(w, int(float64(g.cfg.Chart.MinWidth)*g.deviceScale))
	h := min(int(float64(g.cfg.Chart.Height)*g.deviceScale), availH)

	x := (screenWidth - w) / 2
	y := (screenHeight - h) / 2
	g.panel = image.Rect(x, y, x+w, y+h)

	g.controller.Resize(chart.Size{Width: float64(w), Height: float64(h)})
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.initSolidColorImage()

	screen.Fill(backgroundColor)
	vector.DrawFilledRect(screen, float32(g.panel.Min.X), float32(g.panel.Min.Y), float32(g.panel.Dx()), float32(g.panel.Dy()), panelColor, false)

	res := g.prices.Result()
	switch res.Status {
	case query.StatusLoading:
		g.drawMessage(screen, "Loading...", labelColor)
	case query.StatusFetchFailed:
		g.drawMessage(screen, "Could not load price data.", errorColor)
	case query.StatusReady:
		g.drawChart(screen)
	}
}

func (g *Game) drawMessage(screen *ebiten.Image, message string, clr color.RGBA) {
	textWidth, textHeight := text.Measure(message, g.fontFace, 0)
	msgX := float64(g.panel.Min.X) + (float64(g.panel.Dx())-textWidth)/2.0
	msgY := float64(g.panel.Min.Y) + (float64(g.panel.Dy())-textHeight)/2.0
	esset.DrawText(screen, message, 0, msgX, msgY, g.fontFace, clr)
}

func (g *Game) drawChart(screen *ebiten.Image) {
	frame := g.controller.Frame()
	ox, oy := float64(g.panel.Min.X), float64(g.panel.Min.Y)
	b := frame.Scales.Bounds

	esset.DrawText(screen, g.cfg.Chart.Title, 0, ox+b.Left, oy+(b.Top-g.physicalLineHeight)/2, g.fontFace, titleColor)

	if len(frame.Series) == 0 {
		g.drawMessage(screen, "No price data.", labelColor)
		return
	}

	for _, gl := range frame.Gridlines(gridTicks) {
		y := float32(oy + gl.Y)
		vector.StrokeLine(screen, float32(ox+b.Left), y, float32(ox+b.Right), y, float32(g.deviceScale), gridColor, false)

		label := humanize.Commaf(gl.Value)
		labelWidth, labelHeight := text.Measure(label, g.fontFace, 0)
		esset.DrawText(screen, label, 0, ox+b.Left-labelWidth-6*g.deviceScale, float64(y)-labelHeight/2, g.fontFace, labelColor)
	}

	pts := frame.Path()
	switch len(pts) {
	case 0:
		return
	case 1:
		vector.DrawFilledCircle(screen, float32(ox+pts[0].X), float32(oy+pts[0].Y), 3.0*float32(g.deviceScale), lineColor, true)
	default:
		path := &vector.Path{}
		path.MoveTo(float32(ox+pts[0].X), float32(oy+pts[0].Y))
		for _, p := range pts[1:] {
			path.LineTo(float32(ox+p.X), float32(oy+p.Y))
		}

		vs, is := path.AppendVerticesAndIndicesForStroke(nil, nil, &vector.StrokeOptions{
			Width:    2.0 * float32(g.deviceScale),
			LineJoin: vector.LineJoinRound,
		})
		op := &ebiten.DrawTrianglesOptions{AntiAlias: true}
		op.ColorScale.ScaleWithColor(lineColor)
		screen.DrawTriangles(vs, is, g.solidColorImage, op)
	}

	if tip := g.controller.CurrentTooltip(); tip.Active {
		g.drawTooltip(screen, frame, tip)
	}
}

func (g *Game) drawTooltip(screen *ebiten.Image, frame chart.Frame, tip chart.Tooltip) {
	ox, oy := float64(g.panel.Min.X), float64(g.panel.Min.Y)
	b := frame.Scales.Bounds
	x, y := ox+tip.X, oy+tip.Y
	lw := float32(g.deviceScale)

	vector.StrokeLine(screen, float32(x), float32(oy+b.Top), float32(x), float32(oy+b.Bottom), lw, crosshairColor, false)
	vector.StrokeLine(screen, float32(ox+b.Left), float32(y), float32(ox+b.Right), float32(y), lw, crosshairColor, false)
	vector.DrawFilledCircle(screen, float32(x), float32(y), 4.0*float32(g.deviceScale), markerColor, true)

	lines := []string{
		tip.Point.Timestamp.Local().Format("Mon Jan 2 2006 15:04"),
		g.formatPrice(tip.Point.Price),
	}
	inset := 8 * g.deviceScale
	var boxW float64
	for _, l := range lines {
		w, _ := text.Measure(l, g.fontFace, 0)
		boxW = math.Max(boxW, w)
	}
	boxW += 2 * inset
	boxH := float64(len(lines))*g.physicalLineHeight + inset

	// Keep the panel on whichever side of the marker has room, inside the chart.
	gap := 12 * g.deviceScale
	boxX := x + gap
	if boxX+boxW > float64(g.panel.Max.X) {
		boxX = x - gap - boxW
	}
	boxY := math.Min(math.Max(y-boxH-gap, float64(g.panel.Min.Y)), float64(g.panel.Max.Y)-boxH)

	vector.DrawFilledRect(screen, float32(boxX), float32(boxY), float32(boxW), float32(boxH), tooltipColor, true)
	for i, l := range lines {
		esset.DrawText(screen, l, 0, boxX+inset, boxY+inset/2+float64(i)*g.physicalLineHeight, g.fontFace, tooltipText)
	}
}

func (g *Game) formatPrice(price float64) string {
	s := market.FormatPrice(price)
	if g.cfg.Source.Provider == market.ProviderCoinGecko {
		return fmt.Sprintf("%s %s", s, strings.ToUpper(g.cfg.Source.Currency))
	}
	return s
}

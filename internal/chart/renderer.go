package chart

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"trading-agent/internal/domain"
	"trading-agent/internal/indicator"
)

const (
	defaultChartWidth  = 960
	defaultChartHeight = 640
	maxChartCandles    = 120

	// Mini plots embedded in the report mail.
	MiniWidth  = 700
	MiniHeight = 308

	placeholderWidth  = 960
	placeholderHeight = 384

	titleHeight = 22
)

var (
	colBackground = color.RGBA{R: 250, G: 252, B: 255, A: 255}
	colGrid       = color.RGBA{R: 225, G: 232, B: 240, A: 255}
	colBull       = color.RGBA{R: 18, G: 140, B: 126, A: 255}
	colBear       = color.RGBA{R: 210, G: 61, B: 87, A: 255}
	colWick       = color.RGBA{R: 58, G: 64, B: 90, A: 255}
	colMarker     = color.RGBA{R: 62, G: 106, B: 214, A: 255}
	colLineA      = color.RGBA{R: 62, G: 106, B: 214, A: 255}
	colLineB      = color.RGBA{R: 255, G: 149, B: 0, A: 255}
	colBand       = color.RGBA{R: 104, G: 122, B: 146, A: 255}
	colPSAR       = color.RGBA{R: 140, G: 82, B: 200, A: 255}
	colText       = color.RGBA{R: 33, G: 37, B: 51, A: 255}
)

type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderCandles draws the last candles of f with the fast/slow EMA and PSAR
// overlaid and an RSI pane below.
func (r *Renderer) RenderCandles(f *indicator.Frame, title string) ([]byte, error) {
	if f.Len() < 2 {
		return nil, fmt.Errorf("need at least 2 candles to render chart")
	}
	if f.Len() > maxChartCandles {
		f = f.Tail(maxChartCandles)
	}
	n := f.Len()

	c := newCanvas(defaultChartWidth, defaultChartHeight, colBackground)
	c.text(60, 16, title, colText)

	lo, hi := priceRange(f.Candles)
	price := c.pane(image.Rect(60, titleHeight+4, defaultChartWidth-20, defaultChartHeight*72/100), lo, hi, n)
	rsi := c.pane(image.Rect(60, price.r.Max.Y+16, defaultChartWidth-20, defaultChartHeight-30), 0, 100, n)
	price.grid(8, 6, colGrid)
	rsi.grid(8, 3, colGrid)

	drawBodies(price, f.Candles)
	price.polyline(f.EMAFast, colLineA)
	price.polyline(f.EMASlow, colLineB)
	price.dots(f.PSAR, colPSAR)
	last := price.x(n - 1)
	c.line(last, price.r.Min.Y, last, price.r.Max.Y, colMarker)

	rsi.level(50, colGrid)
	rsi.level(30, colBand)
	rsi.level(70, colBand)
	rsi.polyline(f.RSI, colLineA)
	c.text(8, rsi.r.Min.Y+12, "RSI", colText)

	return c.png()
}

// RenderClose draws a close-price line of candles with the range printed on
// the left edge.
func (r *Renderer) RenderClose(candles []domain.Candle, title string) ([]byte, error) {
	if len(candles) < 2 {
		return r.RenderPlaceholder(title, "Not enough data")
	}

	closes := make([]float64, len(candles))
	for i, k := range candles {
		closes[i] = k.Close
	}
	lo, hi := finiteRange(closes)

	c := newCanvas(MiniWidth, MiniHeight, colBackground)
	c.text(50, 16, title, colText)
	p := c.pane(image.Rect(50, titleHeight+4, MiniWidth-12, MiniHeight-14), lo, hi, len(closes))
	p.grid(6, 4, colGrid)
	p.polyline(closes, colLineA)
	c.text(2, p.r.Min.Y+10, formatPrice(hi), colText)
	c.text(2, p.r.Max.Y, formatPrice(lo), colText)

	return c.png()
}

// RenderPlaceholder draws a blank chart carrying a title and a message.
func (r *Renderer) RenderPlaceholder(title, message string) ([]byte, error) {
	c := newCanvas(placeholderWidth, placeholderHeight, colBackground)
	c.centered(placeholderHeight*35/100, title, colText)
	c.centered(placeholderHeight*65/100, message, colText)
	return c.png()
}

// WriteM15 renders the M15 chart into dir as <symbol>_M15.png and returns the
// path. An empty frame yields a placeholder image.
func (r *Renderer) WriteM15(dir, symbol string, loc *time.Location, f *indicator.Frame) (string, error) {
	if loc == nil {
		loc = time.UTC
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create chart dir: %w", err)
	}

	stamp := "n/a"
	if last, ok := f.Last(); ok && !last.Time.IsZero() {
		stamp = last.Time.In(loc).Format("2006-01-02 15:04")
	}
	// basicfont is ASCII-only, so the title uses a plain hyphen.
	title := fmt.Sprintf("%s - M15 (%s %s)", symbol, stamp, loc)

	render := func() ([]byte, error) { return r.RenderCandles(f, title) }
	if f.Len() < 2 {
		render = func() ([]byte, error) {
			return r.RenderPlaceholder(title, "No M15 data available (rate limit or empty download).")
		}
	}
	data, err := render()
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, SafeSymbol(symbol)+"_M15.png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write chart: %w", err)
	}
	return path, nil
}

// SafeSymbol makes a ticker usable as a file name.
func SafeSymbol(symbol string) string {
	return strings.NewReplacer("=", "_", "/", "_").Replace(symbol)
}

func drawBodies(p *pane, candles []domain.Candle) {
	half := max(3, (p.r.Dx()-10)/len(candles)-1) / 2
	for i, k := range candles {
		x := p.x(i)
		p.c.line(x, p.y(k.High), x, p.y(k.Low), colWick)

		top, bottom := p.y(k.Open), p.y(k.Close)
		if top > bottom {
			top, bottom = bottom, top
		}
		bottom = max(bottom, top+2)
		col := colBull
		if k.Close < k.Open {
			col = colBear
		}
		p.c.fill(image.Rect(x-half, top, x+half+1, bottom+1), col)
	}
}

func priceRange(candles []domain.Candle) (lo, hi float64) {
	lo, hi = candles[0].Low, candles[0].High
	for _, k := range candles[1:] {
		lo = math.Min(lo, k.Low)
		hi = math.Max(hi, k.High)
	}
	return lo, hi
}

// finiteRange ignores NaN and infinities and falls back to [0, 1].
func finiteRange(vals []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		if finite(v) {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	return lo, hi
}

func formatPrice(v float64) string {
	return fmt.Sprintf("%.5f", v)
}

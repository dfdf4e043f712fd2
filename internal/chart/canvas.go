package chart

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var face = basicfont.Face7x13

type canvas struct {
	img *image.RGBA
}

func newCanvas(w, h int, bg color.RGBA) *canvas {
	c := &canvas{img: image.NewRGBA(image.Rect(0, 0, w, h))}
	c.fill(c.img.Bounds(), bg)
	return c
}

func (c *canvas) fill(r image.Rectangle, col color.RGBA) {
	draw.Draw(c.img, r.Intersect(c.img.Bounds()), image.NewUniform(col), image.Point{}, draw.Src)
}

func (c *canvas) text(x, baseline int, s string, col color.RGBA) {
	d := font.Drawer{Dst: c.img, Src: image.NewUniform(col), Face: face, Dot: fixed.P(x, baseline)}
	d.DrawString(s)
}

// centered draws s horizontally centered on the canvas.
func (c *canvas) centered(baseline int, s string, col color.RGBA) {
	w := font.MeasureString(face, s).Ceil()
	c.text(max(4, (c.img.Bounds().Dx()-w)/2), baseline, s, col)
}

// line is Bresenham; points outside the canvas are clipped.
func (c *canvas) line(x0, y0, x1, y1 int, col color.RGBA) {
	dx, dy := iabs(x1-x0), -iabs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	bounds := c.img.Bounds()
	e := dx + dy
	for {
		if image.Pt(x0, y0).In(bounds) {
			c.img.SetRGBA(x0, y0, col)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func (c *canvas) png() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// pane maps series index and value onto a rectangle of the canvas.
type pane struct {
	c      *canvas
	r      image.Rectangle
	lo, hi float64
	n      int
}

func (c *canvas) pane(r image.Rectangle, lo, hi float64, n int) *pane {
	if hi <= lo {
		hi = lo + 1
	}
	return &pane{c: c, r: r, lo: lo, hi: hi, n: n}
}

func (p *pane) x(i int) int {
	if p.n <= 1 {
		return p.r.Min.X
	}
	return p.r.Min.X + i*(p.r.Dx()-1)/(p.n-1)
}

func (p *pane) y(v float64) int {
	f := (v - p.lo) / (p.hi - p.lo)
	f = math.Max(0, math.Min(1, f))
	return p.r.Max.Y - int(f*float64(p.r.Dy()-1))
}

func (p *pane) grid(cols, rows int, col color.RGBA) {
	for i := 0; i <= cols; i++ {
		x := p.r.Min.X + p.r.Dx()*i/max(1, cols)
		p.c.line(x, p.r.Min.Y, x, p.r.Max.Y, col)
	}
	for i := 0; i <= rows; i++ {
		y := p.r.Min.Y + p.r.Dy()*i/max(1, rows)
		p.c.line(p.r.Min.X, y, p.r.Max.X, y, col)
	}
}

func (p *pane) level(v float64, col color.RGBA) {
	y := p.y(v)
	p.c.line(p.r.Min.X, y, p.r.Max.X, y, col)
}

// polyline connects consecutive finite points; NaN breaks the line.
func (p *pane) polyline(vals []float64, col color.RGBA) {
	px, py, have := 0, 0, false
	for i, v := range vals {
		if !finite(v) {
			have = false
			continue
		}
		x, y := p.x(i), p.y(v)
		if have {
			p.c.line(px, py, x, y, col)
		}
		px, py, have = x, y, true
	}
}

// dots marks each in-range point with a 3x3 square.
func (p *pane) dots(vals []float64, col color.RGBA) {
	for i, v := range vals {
		if !finite(v) || v < p.lo || v > p.hi {
			continue
		}
		x, y := p.x(i), p.y(v)
		p.c.fill(image.Rect(x-1, y-1, x+2, y+2), col)
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func iabs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// Raster is a Surface backed by an RGBA image. It is safe for concurrent use:
// one goroutine may draw while others take snapshots.
type Raster struct {
	mu   sync.RWMutex
	img  *image.RGBA
	face font.Face
}

// NewRaster creates a transparent surface of the given size.
func NewRaster(width, height int) *Raster {
	return &Raster{
		img:  image.NewRGBA(image.Rect(0, 0, width, height)),
		face: basicfont.Face7x13,
	}
}

// Size implements Surface.
func (r *Raster) Size() (width, height int) {
	b := r.img.Bounds()
	return b.Dx(), b.Dy()
}

// Clear resets every pixel to transparent.
func (r *Raster) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	draw.Draw(r.img, r.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

// Fill paints the interior of every subpath of p. Open subpaths are closed implicitly.
func (r *Raster) Fill(p *Path, s Style) {
	if p.Empty() || s.Color == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	z := r.rasterizer()
	drawn := false
	for _, sp := range p.Subpaths() {
		if len(sp.Points) < 3 {
			continue
		}
		r.moveTo(z, sp.Points[0])
		for _, pt := range sp.Points[1:] {
			r.lineTo(z, pt)
		}
		z.ClosePath()
		drawn = true
	}
	if drawn {
		z.Draw(r.img, r.img.Bounds(), image.NewUniform(s.Color), image.Point{})
	}
}

// Stroke outlines every segment of p with a band of width s.LineWidth.
func (r *Raster) Stroke(p *Path, s Style) {
	if p.Empty() || s.Color == nil {
		return
	}
	hw := s.LineWidth / 2
	if hw <= 0 {
		hw = 0.5
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	z := r.rasterizer()
	drawn := false
	for _, sp := range p.Subpaths() {
		pts := sp.Points
		if sp.Closed && len(pts) > 2 {
			pts = append(pts[:len(pts):len(pts)], pts[0])
		}
		for i := 1; i < len(pts); i++ {
			if r.segment(z, pts[i-1], pts[i], hw) {
				drawn = true
			}
		}
	}
	if drawn {
		z.Draw(r.img, r.img.Bounds(), image.NewUniform(s.Color), image.Point{})
	}
}

// segment adds the quad covering a->b. Every quad has the same winding so
// overlapping joints accumulate instead of cancelling.
func (r *Raster) segment(z *vector.Rasterizer, a, b Point, hw float64) bool {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return false
	}
	nx, ny := -dy/l*hw, dx/l*hw
	r.moveTo(z, Point{X: a.X + nx, Y: a.Y + ny})
	r.lineTo(z, Point{X: b.X + nx, Y: b.Y + ny})
	r.lineTo(z, Point{X: b.X - nx, Y: b.Y - ny})
	r.lineTo(z, Point{X: a.X - nx, Y: a.Y - ny})
	z.ClosePath()
	return true
}

// Text draws text with its baseline at at.
func (r *Raster) Text(text string, at Point, s TextStyle) {
	if text == "" || s.Color == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	d := &font.Drawer{Dst: r.img, Src: image.NewUniform(s.Color), Face: r.face}
	x := at.X
	if s.Align == AlignCenter {
		x -= float64(d.MeasureString(text)) / 64 / 2
	}
	ix, iy := int(math.Round(x)), int(math.Round(at.Y))
	d.Dot = fixed.P(ix, iy)
	d.DrawString(text)
	if s.Bold {
		d.Dot = fixed.P(ix+1, iy)
		d.DrawString(text)
	}
}

// Snapshot returns a copy of the current pixels.
func (r *Raster) Snapshot() *image.RGBA {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := image.NewRGBA(r.img.Bounds())
	copy(out.Pix, r.img.Pix)
	return out
}

// At returns the colour of one pixel.
func (r *Raster) At(x, y int) color.Color {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.img.At(x, y)
}

func (r *Raster) rasterizer() *vector.Rasterizer {
	b := r.img.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over
	return z
}

func (r *Raster) moveTo(z *vector.Rasterizer, p Point) {
	x, y := r.clamp(p)
	z.MoveTo(x, y)
}

func (r *Raster) lineTo(z *vector.Rasterizer, p Point) {
	x, y := r.clamp(p)
	z.LineTo(x, y)
}

// clamp keeps vertices inside the rasterizer bounds.
func (r *Raster) clamp(p Point) (float32, float32) {
	b := r.img.Bounds()
	x := math.Max(0, math.Min(float64(b.Dx()), p.X))
	y := math.Max(0, math.Min(float64(b.Dy()), p.Y))
	return float32(x), float32(y)
}

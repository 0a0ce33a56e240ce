package canvas

import (
	"fmt"
	"image/color"
	"math"
)

// Point is a position in surface coordinates (pixels, origin top-left).
type Point struct {
	X float64
	Y float64
}

// Subpath is one connected run of points inside a Path.
type Subpath struct {
	Points []Point
	Closed bool
}

// Path accumulates subpaths the way a 2D canvas path does.
// The zero value is an empty path ready to use.
type Path struct {
	subpaths []Subpath
}

// arcSegments is the number of chords used to approximate a full circle.
const arcSegments = 32

// MoveTo starts a new subpath at (x, y).
func (p *Path) MoveTo(x, y float64) {
	p.subpaths = append(p.subpaths, Subpath{Points: []Point{{X: x, Y: y}}})
}

// LineTo extends the current subpath. Without a current subpath it behaves like MoveTo.
func (p *Path) LineTo(x, y float64) {
	if len(p.subpaths) == 0 || p.subpaths[len(p.subpaths)-1].Closed {
		p.MoveTo(x, y)
		return
	}
	last := &p.subpaths[len(p.subpaths)-1]
	last.Points = append(last.Points, Point{X: x, Y: y})
}

// ClosePath closes the current subpath.
func (p *Path) ClosePath() {
	if len(p.subpaths) == 0 {
		return
	}
	p.subpaths[len(p.subpaths)-1].Closed = true
}

// Arc adds a closed circle of radius r centred on (cx, cy) as its own subpath.
func (p *Path) Arc(cx, cy, r float64) {
	if r <= 0 {
		return
	}
	for i := 0; i < arcSegments; i++ {
		a := 2 * math.Pi * float64(i) / arcSegments
		x, y := cx+r*math.Cos(a), cy+r*math.Sin(a)
		if i == 0 {
			p.MoveTo(x, y)
			continue
		}
		p.LineTo(x, y)
	}
	p.ClosePath()
}

// Empty reports whether the path holds no points.
func (p *Path) Empty() bool {
	return p == nil || len(p.subpaths) == 0
}

// Subpaths returns the subpaths of p. The result must not be modified.
func (p *Path) Subpaths() []Subpath {
	if p == nil {
		return nil
	}
	return p.subpaths
}

// Len returns the total number of points in p.
func (p *Path) Len() int {
	n := 0
	for _, sp := range p.Subpaths() {
		n += len(sp.Points)
	}
	return n
}

// Clone returns a deep copy of p.
func (p *Path) Clone() *Path {
	c := &Path{subpaths: make([]Subpath, len(p.Subpaths()))}
	for i, sp := range p.Subpaths() {
		c.subpaths[i] = Subpath{Points: append([]Point(nil), sp.Points...), Closed: sp.Closed}
	}
	return c
}

// Style controls fills and strokes. Transparency is carried by the colour's alpha.
type Style struct {
	Color     color.Color
	LineWidth float64
}

// Align is the horizontal anchoring of text relative to its position.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
)

// TextStyle controls text drawing. The position given to Surface.Text is the baseline.
type TextStyle struct {
	Color color.Color
	Align Align
	Bold  bool
}

// Surface is a drawing target: the static base map or the animated overlay.
type Surface interface {
	Size() (width, height int)
	Clear()
	Fill(p *Path, s Style)
	Stroke(p *Path, s Style)
	Text(text string, at Point, s TextStyle)
}

// Hex formats c as #rrggbb, ignoring alpha.
func Hex(c color.Color) string {
	if c == nil {
		return ""
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("#%02x%02x%02x", n.R, n.G, n.B)
}

// WithAlpha returns c with its alpha scaled by a (0..1).
func WithAlpha(c color.Color, a float64) color.NRGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = uint8(math.Round(float64(n.A) * math.Max(0, math.Min(1, a))))
	return n
}

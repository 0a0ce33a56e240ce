package geo

import (
	"github.com/paulmach/orb"

	"groundtrack/pkg/canvas"
)

// PointRadius is the radius used when a Point geometry is rendered as a path.
const PointRadius = 4.5

// Adapter converts geographic data to surface coordinates. Markers and
// geometry both go through the same Projection, so they always line up.
type Adapter struct {
	proj Projection
	step float64
}

// NewAdapter creates an adapter. resampleDeg is the longest edge, in degrees,
// drawn without inserting intermediate vertices; zero disables resampling.
func NewAdapter(proj Projection, resampleDeg float64) *Adapter {
	return &Adapter{proj: proj, step: resampleDeg}
}

// Projection returns the underlying projection.
func (a *Adapter) Projection() Projection {
	return a.proj
}

// Project converts p, returning false for missing or non-finite input.
func (a *Adapter) Project(p Point) (canvas.Point, bool) {
	return a.proj.Project(p)
}

// RenderPath appends g to path. Invalid vertices are dropped.
func (a *Adapter) RenderPath(g orb.Geometry, path *canvas.Path) {
	switch v := g.(type) {
	case nil:
	case orb.Point:
		a.point(v, path)
	case orb.MultiPoint:
		for _, p := range v {
			a.point(p, path)
		}
	case orb.LineString:
		a.line(v, path)
	case orb.MultiLineString:
		for _, ls := range v {
			a.line(ls, path)
		}
	case orb.Ring:
		a.ring(v, path)
	case orb.Polygon:
		for _, r := range v {
			a.ring(r, path)
		}
	case orb.MultiPolygon:
		for _, poly := range v {
			for _, r := range poly {
				a.ring(r, path)
			}
		}
	case orb.Collection:
		for _, child := range v {
			a.RenderPath(child, path)
		}
	case orb.Bound:
		a.ring(v.ToRing(), path)
	}
}

func (a *Adapter) point(p orb.Point, path *canvas.Path) {
	sp, ok := a.proj.Project(Point{Lat: p[1], Lon: p[0]})
	if !ok {
		return
	}
	path.Arc(sp.X, sp.Y, PointRadius)
}

func (a *Adapter) line(ls orb.LineString, path *canvas.Path) {
	for _, piece := range splitLine(validOnly(ls)) {
		a.emit(resample(piece, a.step), path, false)
	}
}

func (a *Adapter) ring(r orb.Ring, path *canvas.Path) {
	for _, piece := range cutRing(orb.Ring(validOnly(r))) {
		a.emit(resample(piece, a.step), path, true)
	}
}

func (a *Adapter) emit(pts []orb.Point, path *canvas.Path, closed bool) {
	if len(pts) == 0 {
		return
	}
	for i, p := range pts {
		sp := a.proj.lonLat(p[0], p[1])
		if i == 0 {
			path.MoveTo(sp.X, sp.Y)
			continue
		}
		path.LineTo(sp.X, sp.Y)
	}
	if closed {
		path.ClosePath()
	}
}

func validOnly(pts []orb.Point) []orb.Point {
	out := pts[:0:0]
	for _, p := range pts {
		if (Point{Lat: p[1], Lon: p[0]}).Valid() {
			out = append(out, p)
		}
	}
	return out
}

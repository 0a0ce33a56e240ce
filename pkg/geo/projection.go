package geo

import (
	"math"

	"groundtrack/pkg/canvas"
)

// Projector is a raw map projection working in radians.
// It returns unscaled planar coordinates with y pointing north.
type Projector interface {
	Forward(lambda, phi float64) (x, y float64)
}

// Kavrayskiy7 is the Kavrayskiy VII pseudocylindrical projection.
type Kavrayskiy7 struct{}

// Forward implements Projector.
func (Kavrayskiy7) Forward(lambda, phi float64) (x, y float64) {
	return 3 * lambda / (2 * math.Pi) * math.Sqrt(math.Pi*math.Pi/3-phi*phi), phi
}

// Equirectangular is the plate carrée projection.
type Equirectangular struct{}

// Forward implements Projector.
func (Equirectangular) Forward(lambda, phi float64) (x, y float64) {
	return lambda, phi
}

// ProjectorByName resolves a configured projection name. Unknown names fall back to Kavrayskiy VII.
func ProjectorByName(name string) Projector {
	switch name {
	case "equirectangular", "plate-carree":
		return Equirectangular{}
	default:
		return Kavrayskiy7{}
	}
}

// Projection scales and translates a raw projection onto a fixed-size surface.
type Projection struct {
	Raw       Projector
	Scale     float64
	Translate canvas.Point
}

// NewProjection centres raw on a width×height surface.
func NewProjection(raw Projector, scale float64, width, height int) Projection {
	return Projection{
		Raw:       raw,
		Scale:     scale,
		Translate: canvas.Point{X: float64(width) / 2, Y: float64(height) / 2},
	}
}

// Project converts p to surface coordinates. It returns false when either
// component is missing or non-finite; callers must then skip drawing.
func (pr Projection) Project(p Point) (canvas.Point, bool) {
	if !p.Valid() {
		return canvas.Point{}, false
	}
	return pr.lonLat(p.Lon, p.Lat), true
}

// lonLat projects degrees without validation.
func (pr Projection) lonLat(lon, lat float64) canvas.Point {
	x, y := pr.Raw.Forward(lon*math.Pi/180, lat*math.Pi/180)
	return canvas.Point{
		X: pr.Translate.X + pr.Scale*x,
		Y: pr.Translate.Y - pr.Scale*y,
	}
}

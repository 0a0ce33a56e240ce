package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	graticuleStep      = 10.0
	graticuleMajorStep = 90.0
	graticuleMinorLat  = 80.0
	graticulePrecision = 2.5
)

// Graticule returns the 10° longitude/latitude grid. Meridians at multiples
// of 90° run pole to pole; the others and all parallels stop at ±80°.
func Graticule() orb.MultiLineString {
	var lines orb.MultiLineString
	for lon := -180.0; lon < 180; lon += graticuleStep {
		extent := graticuleMinorLat
		if math.Mod(math.Abs(lon), graticuleMajorStep) == 0 {
			extent = 90
		}
		lines = append(lines, orb.LineString(meridianLine(lon, -extent, extent)))
	}
	for lat := -graticuleMinorLat; lat <= graticuleMinorLat; lat += graticuleStep {
		lines = append(lines, orb.LineString(parallelLine(lat, -180, 180)))
	}
	return lines
}

// Outline returns the boundary of the whole sphere as a polygon.
func Outline() orb.Polygon {
	var ring orb.Ring
	ring = append(ring, meridianLine(-180, -90, 90)...)
	ring = append(ring, parallelLine(90, -180, 180)[1:]...)
	ring = append(ring, meridianLine(180, 90, -90)[1:]...)
	ring = append(ring, parallelLine(-90, 180, -180)[1:]...)
	return orb.Polygon{ring}
}

func meridianLine(lon, lat0, lat1 float64) []orb.Point {
	return append([]orb.Point{{lon, lat0}}, steps(lat0, lat1, func(v float64) orb.Point { return orb.Point{lon, v} })...)
}

func parallelLine(lat, lon0, lon1 float64) []orb.Point {
	return append([]orb.Point{{lon0, lat}}, steps(lon0, lon1, func(v float64) orb.Point { return orb.Point{v, lat} })...)
}

// steps returns points from v0 (exclusive) to v1 (inclusive) at graticulePrecision.
func steps(v0, v1 float64, at func(float64) orb.Point) []orb.Point {
	n := int(math.Ceil(math.Abs(v1-v0) / graticulePrecision))
	out := make([]orb.Point, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, at(v0+(v1-v0)*float64(i)/float64(n)))
	}
	return out
}

package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// crosses reports whether the segment a->b jumps across the antimeridian.
func crosses(a, b orb.Point) bool {
	return math.Abs(b[0]-a[0]) > 180
}

// crossing returns the edge longitude on a's side and the latitude where a->b meets it.
func crossing(a, b orb.Point) (side, lat float64) {
	side = 180.0
	bl := b[0] + 360
	if a[0] < 0 {
		side = -180
		bl = b[0] - 360
	}
	t := 0.0
	if bl != a[0] {
		t = (side - a[0]) / (bl - a[0])
	}
	return side, a[1] + t*(b[1]-a[1])
}

// splitLine cuts a line wherever it crosses the antimeridian.
func splitLine(line []orb.Point) [][]orb.Point {
	if len(line) == 0 {
		return nil
	}
	var out [][]orb.Point
	cur := []orb.Point{line[0]}
	for i := 1; i < len(line); i++ {
		a, b := line[i-1], line[i]
		if crosses(a, b) {
			side, lat := crossing(a, b)
			cur = append(cur, orb.Point{side, lat})
			out = append(out, cur)
			cur = []orb.Point{{-side, lat}}
		}
		cur = append(cur, b)
	}
	return append(out, cur)
}

// cutRing splits a closed ring at the antimeridian and closes every piece
// along the map edge, or around a pole when the piece spans the whole map.
func cutRing(ring orb.Ring) [][]orb.Point {
	if len(ring) < 3 {
		return nil
	}
	pts := []orb.Point(ring)
	if !ring.Closed() {
		pts = append(pts[:len(pts):len(pts)], pts[0])
	}
	arcs := splitLine(pts)
	if len(arcs) == 1 {
		return arcs
	}

	// The ring's start is not a crossing, so the last and first arcs are one piece.
	last := arcs[len(arcs)-1]
	arcs[0] = append(last[:len(last):len(last)], arcs[0][1:]...)
	arcs = arcs[:len(arcs)-1]

	out := make([][]orb.Point, 0, len(arcs))
	for _, arc := range arcs {
		out = append(out, closeArc(arc))
	}
	return out
}

func closeArc(arc []orb.Point) []orb.Point {
	start, end := arc[0], arc[len(arc)-1]
	if start[0] == end[0] {
		return append(arc, meridian(end[0], end[1], start[1])...)
	}

	pole := 90.0
	if meanLat(arc) < 0 {
		pole = -90
	}
	arc = append(arc, meridian(end[0], end[1], pole)...)
	arc = append(arc, parallel(pole, end[0], start[0])...)
	return append(arc, meridian(start[0], pole, start[1])...)
}

// meridian returns points along lon from lat0 (exclusive) to lat1 (inclusive) at 1° spacing.
func meridian(lon, lat0, lat1 float64) []orb.Point {
	n := int(math.Ceil(math.Abs(lat1 - lat0)))
	if n == 0 {
		return nil
	}
	out := make([]orb.Point, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, orb.Point{lon, lat0 + (lat1-lat0)*float64(i)/float64(n)})
	}
	return out
}

func parallel(lat, lon0, lon1 float64) []orb.Point {
	n := int(math.Ceil(math.Abs(lon1 - lon0)))
	if n == 0 {
		return nil
	}
	out := make([]orb.Point, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, orb.Point{lon0 + (lon1-lon0)*float64(i)/float64(n), lat})
	}
	return out
}

func meanLat(pts []orb.Point) float64 {
	sum := 0.0
	for _, p := range pts {
		sum += p[1]
	}
	return sum / float64(len(pts))
}

// resample inserts points so that no step exceeds step degrees in either axis.
func resample(pts []orb.Point, step float64) []orb.Point {
	if step <= 0 || len(pts) < 2 {
		return pts
	}
	out := make([]orb.Point, 0, len(pts))
	out = append(out, pts[0])
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		d := math.Max(math.Abs(b[0]-a[0]), math.Abs(b[1]-a[1]))
		n := int(math.Ceil(d / step))
		for k := 1; k < n; k++ {
			t := float64(k) / float64(n)
			out = append(out, orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])})
		}
		out = append(out, b)
	}
	return out
}

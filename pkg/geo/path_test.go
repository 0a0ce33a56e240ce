package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"

	"groundtrack/pkg/canvas"
)

func newTestAdapter() *Adapter {
	return NewAdapter(NewProjection(Kavrayskiy7{}, 170, 960, 600), 1)
}

func TestRenderPathPoint(t *testing.T) {
	a := newTestAdapter()
	var p canvas.Path
	a.RenderPath(orb.Point{0, 0}, &p)

	subs := p.Subpaths()
	if len(subs) != 1 || !subs[0].Closed {
		t.Fatalf("expected one closed circle, got %+v", subs)
	}
	for _, pt := range subs[0].Points {
		if r := math.Hypot(pt.X-480, pt.Y-300); math.Abs(r-PointRadius) > 1e-9 {
			t.Fatalf("vertex %v is %v from the centre, want %v", pt, r, PointRadius)
		}
	}
}

func TestRenderPathSharesProjection(t *testing.T) {
	a := newTestAdapter()
	var p canvas.Path
	a.RenderPath(orb.LineString{{10, 20}, {10.5, 20}}, &p)

	want, _ := a.Project(Point{Lat: 20, Lon: 10})
	got := p.Subpaths()[0].Points[0]
	if math.Abs(got.X-want.X) > 1e-9 || math.Abs(got.Y-want.Y) > 1e-9 {
		t.Errorf("path vertex %v differs from projected point %v", got, want)
	}
}

func TestRenderPathDropsInvalidVertices(t *testing.T) {
	a := newTestAdapter()
	var p canvas.Path
	a.RenderPath(orb.LineString{{0, 0}, {math.NaN(), 5}, {0.5, 0}}, &p)
	if p.Len() != 2 {
		t.Errorf("got %d vertices, want 2", p.Len())
	}
}

func TestRenderPathPolygonAcrossAntimeridian(t *testing.T) {
	a := newTestAdapter()
	var p canvas.Path
	a.RenderPath(orb.Polygon{{{170, -10}, {-170, -10}, {-170, 10}, {170, 10}, {170, -10}}}, &p)

	subs := p.Subpaths()
	if len(subs) != 2 {
		t.Fatalf("got %d subpaths, want 2", len(subs))
	}
	for _, sp := range subs {
		if !sp.Closed {
			t.Error("polygon pieces must be closed")
		}
		minX, maxX := math.Inf(1), math.Inf(-1)
		for _, pt := range sp.Points {
			minX = math.Min(minX, pt.X)
			maxX = math.Max(maxX, pt.X)
		}
		if maxX-minX > 100 {
			t.Errorf("piece spans %v px, it wraps across the map", maxX-minX)
		}
	}
}

func TestRenderPathCollection(t *testing.T) {
	a := newTestAdapter()
	var p canvas.Path
	a.RenderPath(orb.Collection{orb.Point{0, 0}, orb.MultiPoint{{1, 1}, {2, 2}}}, &p)
	if got := len(p.Subpaths()); got != 3 {
		t.Errorf("got %d subpaths, want 3", got)
	}
}

func TestGraticule(t *testing.T) {
	g := Graticule()
	// 36 meridians and 17 parallels.
	if len(g) != 53 {
		t.Fatalf("got %d lines, want 53", len(g))
	}
	for _, line := range g {
		for i := 1; i < len(line); i++ {
			if crosses(line[i-1], line[i]) {
				t.Fatalf("graticule line crosses the antimeridian: %v", line)
			}
		}
	}
	if top := g[0][len(g[0])-1]; top != (orb.Point{-180, 90}) {
		t.Errorf("-180 meridian ends at %v, want the pole", top)
	}
	if top := g[1][len(g[1])-1]; top != (orb.Point{-170, 80}) {
		t.Errorf("-170 meridian ends at %v, want 80N", top)
	}
}

func TestOutlineIsClosed(t *testing.T) {
	o := Outline()
	if !o[0].Closed() {
		t.Fatal("outline ring is not closed")
	}
	a := newTestAdapter()
	var p canvas.Path
	a.RenderPath(o, &p)
	if len(p.Subpaths()) != 1 {
		t.Errorf("outline rendered as %d subpaths, want 1", len(p.Subpaths()))
	}
}

package geo

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// DefaultLandObject is the topology object holding country outlines in world-atlas files.
const DefaultLandObject = "countries"

type topology struct {
	Type      string                     `json:"type"`
	Transform *topoTransform             `json:"transform"`
	Objects   map[string]json.RawMessage `json:"objects"`
	Arcs      [][][]float64              `json:"arcs"`
}

type topoTransform struct {
	Scale     [2]float64 `json:"scale"`
	Translate [2]float64 `json:"translate"`
}

type topoGeometry struct {
	Type        string                 `json:"type"`
	ID          interface{}            `json:"id"`
	Properties  map[string]interface{} `json:"properties"`
	Arcs        json.RawMessage        `json:"arcs"`
	Coordinates json.RawMessage        `json:"coordinates"`
	Geometries  []topoGeometry         `json:"geometries"`
}

// DecodeTopology converts the named object of a TopoJSON topology to GeoJSON features.
func DecodeTopology(data []byte, object string) ([]*geojson.Feature, error) {
	var topo topology
	if err := json.Unmarshal(data, &topo); err != nil {
		return nil, fmt.Errorf("failed to parse topology: %w", err)
	}
	if topo.Type != "Topology" {
		return nil, fmt.Errorf("not a topology: type %q", topo.Type)
	}
	if object == "" {
		object = DefaultLandObject
	}
	raw, ok := topo.Objects[object]
	if !ok {
		return nil, fmt.Errorf("topology has no object %q", object)
	}
	var root topoGeometry
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("failed to parse object %q: %w", object, err)
	}

	d := &topoDecoder{topo: &topo}
	if root.Type == "GeometryCollection" {
		features := make([]*geojson.Feature, 0, len(root.Geometries))
		for i := range root.Geometries {
			f, err := d.feature(&root.Geometries[i])
			if err != nil {
				return nil, err
			}
			features = append(features, f)
		}
		return features, nil
	}
	f, err := d.feature(&root)
	if err != nil {
		return nil, err
	}
	return []*geojson.Feature{f}, nil
}

type topoDecoder struct {
	topo *topology
}

func (d *topoDecoder) feature(g *topoGeometry) (*geojson.Feature, error) {
	geom, err := d.geometry(g)
	if err != nil {
		return nil, err
	}
	f := geojson.NewFeature(geom)
	f.ID = g.ID
	for k, v := range g.Properties {
		f.Properties[k] = v
	}
	return f, nil
}

func (d *topoDecoder) geometry(g *topoGeometry) (orb.Geometry, error) {
	switch g.Type {
	case "", "null":
		return nil, nil
	case "GeometryCollection":
		var c orb.Collection
		for i := range g.Geometries {
			child, err := d.geometry(&g.Geometries[i])
			if err != nil {
				return nil, err
			}
			if child != nil {
				c = append(c, child)
			}
		}
		return c, nil
	case "Point":
		var p []float64
		if err := json.Unmarshal(g.Coordinates, &p); err != nil {
			return nil, fmt.Errorf("bad Point coordinates: %w", err)
		}
		return d.position(p), nil
	case "MultiPoint":
		var ps [][]float64
		if err := json.Unmarshal(g.Coordinates, &ps); err != nil {
			return nil, fmt.Errorf("bad MultiPoint coordinates: %w", err)
		}
		mp := make(orb.MultiPoint, 0, len(ps))
		for _, p := range ps {
			mp = append(mp, d.position(p))
		}
		return mp, nil
	case "LineString":
		var arcs []int
		if err := json.Unmarshal(g.Arcs, &arcs); err != nil {
			return nil, fmt.Errorf("bad LineString arcs: %w", err)
		}
		return orb.LineString(d.line(arcs)), nil
	case "MultiLineString":
		var arcs [][]int
		if err := json.Unmarshal(g.Arcs, &arcs); err != nil {
			return nil, fmt.Errorf("bad MultiLineString arcs: %w", err)
		}
		ml := make(orb.MultiLineString, 0, len(arcs))
		for _, a := range arcs {
			ml = append(ml, d.line(a))
		}
		return ml, nil
	case "Polygon":
		var arcs [][]int
		if err := json.Unmarshal(g.Arcs, &arcs); err != nil {
			return nil, fmt.Errorf("bad Polygon arcs: %w", err)
		}
		return d.polygon(arcs), nil
	case "MultiPolygon":
		var arcs [][][]int
		if err := json.Unmarshal(g.Arcs, &arcs); err != nil {
			return nil, fmt.Errorf("bad MultiPolygon arcs: %w", err)
		}
		mp := make(orb.MultiPolygon, 0, len(arcs))
		for _, p := range arcs {
			mp = append(mp, d.polygon(p))
		}
		return mp, nil
	default:
		return nil, fmt.Errorf("unsupported topology geometry %q", g.Type)
	}
}

func (d *topoDecoder) polygon(rings [][]int) orb.Polygon {
	poly := make(orb.Polygon, 0, len(rings))
	for _, r := range rings {
		pts := d.line(r)
		for len(pts) > 0 && len(pts) < 4 {
			pts = append(pts, pts[0])
		}
		poly = append(poly, orb.Ring(pts))
	}
	return poly
}

// line stitches arcs end to end. A negative index ~i refers to arc i reversed.
func (d *topoDecoder) line(arcs []int) orb.LineString {
	var pts orb.LineString
	for _, i := range arcs {
		idx := i
		if i < 0 {
			idx = ^i
		}
		if idx >= len(d.topo.Arcs) {
			continue
		}
		arc := d.arc(idx)
		if len(arc) == 0 {
			continue
		}
		// Consecutive arcs share their joining point.
		if len(pts) > 0 {
			pts = pts[:len(pts)-1]
		}
		if i < 0 {
			for l, r := 0, len(arc)-1; l < r; l, r = l+1, r-1 {
				arc[l], arc[r] = arc[r], arc[l]
			}
		}
		pts = append(pts, arc...)
	}
	return pts
}

// arc decodes one arc, undoing delta encoding and quantization.
func (d *topoDecoder) arc(i int) []orb.Point {
	src := d.topo.Arcs[i]
	out := make([]orb.Point, 0, len(src))
	var x, y float64
	for _, p := range src {
		if len(p) < 2 {
			continue
		}
		if d.topo.Transform == nil {
			out = append(out, orb.Point{p[0], p[1]})
			continue
		}
		x += p[0]
		y += p[1]
		out = append(out, orb.Point{
			x*d.topo.Transform.Scale[0] + d.topo.Transform.Translate[0],
			y*d.topo.Transform.Scale[1] + d.topo.Transform.Translate[1],
		})
	}
	return out
}

func (d *topoDecoder) position(p []float64) orb.Point {
	if len(p) < 2 {
		return orb.Point{}
	}
	if d.topo.Transform == nil {
		return orb.Point{p[0], p[1]}
	}
	return orb.Point{
		p[0]*d.topo.Transform.Scale[0] + d.topo.Transform.Translate[0],
		p[1]*d.topo.Transform.Scale[1] + d.topo.Transform.Translate[1],
	}
}

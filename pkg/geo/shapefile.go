package geo

import (
	"fmt"
	"log/slog"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ReadShapefile loads every non-null shape of an ESRI Shapefile as a feature,
// with the DBF attributes as string properties.
func ReadShapefile(path string) ([]*geojson.Feature, error) {
	shape, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer shape.Close()

	fields := shape.Fields()
	fieldNames := make([]string, len(fields))
	for i, f := range fields {
		fieldNames[i] = f.String()
	}

	var features []*geojson.Feature
	for shape.Next() {
		n, p := shape.Shape()

		var geometry orb.Geometry
		switch s := p.(type) {
		case *shp.Null:
			continue
		case *shp.PolyLine:
			geometry = polyLineGeometry(s.Parts, s.Points)
		case *shp.Polygon:
			geometry = polygonGeometry(s.Parts, s.Points)
		case *shp.Point:
			geometry = orb.Point{s.X, s.Y}
		default:
			slog.Debug("Skipping unsupported shape type", "type", fmt.Sprintf("%T", p))
			continue
		}

		f := geojson.NewFeature(geometry)
		for i, name := range fieldNames {
			f.Properties[name] = shape.ReadAttribute(n, i)
		}
		features = append(features, f)
	}

	if err := shape.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shapes: %w", err)
	}
	return features, nil
}

func shapeParts(parts []int32, points []shp.Point) [][]orb.Point {
	out := make([][]orb.Point, 0, len(parts))
	for i := range parts {
		start := parts[i]
		end := int32(len(points))
		if i < len(parts)-1 {
			end = parts[i+1]
		}
		part := make([]orb.Point, 0, end-start)
		for j := start; j < end; j++ {
			part = append(part, orb.Point{points[j].X, points[j].Y})
		}
		out = append(out, part)
	}
	return out
}

func polyLineGeometry(parts []int32, points []shp.Point) orb.MultiLineString {
	var ml orb.MultiLineString
	for _, p := range shapeParts(parts, points) {
		ml = append(ml, orb.LineString(p))
	}
	return ml
}

// polygonGeometry groups rings by orientation: a clockwise ring starts a new
// polygon and counter-clockwise rings are holes of the polygon before them.
func polygonGeometry(parts []int32, points []shp.Point) orb.Geometry {
	var mp orb.MultiPolygon
	for _, p := range shapeParts(parts, points) {
		ring := orb.Ring(p)
		if ring.Orientation() == orb.CCW && len(mp) > 0 {
			mp[len(mp)-1] = append(mp[len(mp)-1], ring)
			continue
		}
		mp = append(mp, orb.Polygon{ring})
	}
	if len(mp) == 1 {
		return mp[0]
	}
	return mp
}

package geo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
)

const testTopology = `{
  "type": "Topology",
  "transform": {"scale": [0.5, 0.5], "translate": [-5, -5]},
  "objects": {
    "countries": {
      "type": "GeometryCollection",
      "geometries": [
        {"type": "Polygon", "id": "001", "properties": {"name": "Square"}, "arcs": [[0, 1]]},
        {"type": "LineString", "arcs": [-1]},
        {"type": "Point", "coordinates": [10, 10]}
      ]
    }
  },
  "arcs": [
    [[0, 0], [10, 0], [0, 10]],
    [[10, 10], [-10, 0], [0, -10]]
  ]
}`

func TestDecodeTopology(t *testing.T) {
	features, err := DecodeLand([]byte(testTopology), "")
	if err != nil {
		t.Fatalf("DecodeLand failed: %v", err)
	}
	if len(features) != 3 {
		t.Fatalf("got %d features, want 3", len(features))
	}

	poly, ok := features[0].Geometry.(orb.Polygon)
	if !ok {
		t.Fatalf("first feature is %T, want orb.Polygon", features[0].Geometry)
	}
	wantRing := orb.Ring{{-5, -5}, {0, -5}, {0, 0}, {-5, 0}, {-5, -5}}
	if !poly[0].Equal(wantRing) {
		t.Errorf("ring = %v, want %v", poly[0], wantRing)
	}
	if FeatureName(features[0]) != "Square" {
		t.Errorf("name = %q", FeatureName(features[0]))
	}
	if features[0].ID != "001" {
		t.Errorf("id = %v", features[0].ID)
	}

	line := features[1].Geometry.(orb.LineString)
	wantLine := orb.LineString{{0, 0}, {0, -5}, {-5, -5}}
	if !line.Equal(wantLine) {
		t.Errorf("reversed arc = %v, want %v", line, wantLine)
	}

	if pt := features[2].Geometry.(orb.Point); pt != (orb.Point{0, 0}) {
		t.Errorf("point = %v, want [0 0]", pt)
	}
}

func TestDecodeTopologyUnknownArcKeepsVertices(t *testing.T) {
	const topo = `{
  "type": "Topology",
  "transform": {"scale": [0.5, 0.5], "translate": [-5, -5]},
  "objects": {"land": {"type": "GeometryCollection", "geometries": [
    {"type": "LineString", "arcs": [0, 7]},
    {"type": "LineString", "arcs": [7, 0]}
  ]}},
  "arcs": [[[0, 0], [10, 0], [0, 10]]]
}`
	features, err := DecodeLand([]byte(topo), "land")
	if err != nil {
		t.Fatalf("DecodeLand failed: %v", err)
	}
	want := orb.LineString{{-5, -5}, {0, -5}, {0, 0}}
	for i, f := range features {
		if line := f.Geometry.(orb.LineString); !line.Equal(want) {
			t.Errorf("feature %d = %v, want %v", i, line, want)
		}
	}
}

func TestDecodeTopologyMissingObject(t *testing.T) {
	if _, err := DecodeLand([]byte(testTopology), "land"); err == nil {
		t.Error("expected error for missing object")
	}
}

func TestDecodeLandGeoJSON(t *testing.T) {
	data := `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"NAME":"Box"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}
	]}`
	features, err := DecodeLand([]byte(data), "")
	if err != nil {
		t.Fatalf("DecodeLand failed: %v", err)
	}
	if len(features) != 1 || FeatureName(features[0]) != "Box" {
		t.Fatalf("unexpected features %+v", features)
	}
}

func TestDecodeLandRejectsGarbage(t *testing.T) {
	for _, data := range []string{"", "not json", `{"foo":1}`} {
		if _, err := DecodeLand([]byte(data), ""); err == nil {
			t.Errorf("DecodeLand(%q) should fail", data)
		}
	}
}

func TestLoadLandFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "land.json")
	if err := os.WriteFile(path, []byte(testTopology), 0o644); err != nil {
		t.Fatal(err)
	}
	features, err := LoadLandFile(path, "countries")
	if err != nil {
		t.Fatalf("LoadLandFile failed: %v", err)
	}
	if len(features) != 3 {
		t.Errorf("got %d features, want 3", len(features))
	}

	if _, err := LoadLandFile(filepath.Join(t.TempDir(), "missing.json"), ""); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLandSetVersion(t *testing.T) {
	var s LandSet
	if _, v := s.Features(); v != 0 {
		t.Fatalf("empty set has version %d", v)
	}
	features, _ := DecodeLand([]byte(testTopology), "")
	if v := s.Replace(features); v != 1 {
		t.Errorf("first load version = %d, want 1", v)
	}
	if v := s.Replace(features); v != 2 {
		t.Errorf("second load version = %d, want 2", v)
	}
}

package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"groundtrack/pkg/geo"
)

const squareFC = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"name":"Square"},
  "geometry":{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]]]}}]}`

func TestLandFromURL(t *testing.T) {
	g := &fakeGetter{body: []byte(squareFC)}
	l := NewLand(g, "https://cdn.example/world.json", "", "")

	var set geo.LandSet
	if err := l.LoadInto(context.Background(), &set); err != nil {
		t.Fatalf("LoadInto: %v", err)
	}
	features, version := set.Features()
	if version != 1 || len(features) != 1 {
		t.Fatalf("features %d version %d", len(features), version)
	}
	if geo.FeatureName(features[0]) != "Square" {
		t.Errorf("name = %q", geo.FeatureName(features[0]))
	}
	if g.keys[0] != "land:https://cdn.example/world.json" {
		t.Errorf("cache key = %q", g.keys[0])
	}
}

func TestLandFromFileWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "land.geojson")
	if err := os.WriteFile(path, []byte(squareFC), 0o644); err != nil {
		t.Fatal(err)
	}
	g := &fakeGetter{err: errors.New("network must not be used")}
	features, err := NewLand(g, "https://cdn.example/world.json", path, "").Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(features) != 1 || len(g.urls) != 0 {
		t.Errorf("features %d, fetches %d", len(features), len(g.urls))
	}
}

func TestLandErrors(t *testing.T) {
	if _, err := NewLand(nil, "", "", "").Load(context.Background()); err == nil {
		t.Error("expected error without a source")
	}
	g := &fakeGetter{err: errors.New("offline")}
	var set geo.LandSet
	if err := NewLand(g, "https://cdn.example/x.json", "", "").LoadInto(context.Background(), &set); err == nil {
		t.Error("expected fetch error")
	}
	if _, v := set.Features(); v != 0 {
		t.Errorf("failed load must not replace the set, version %d", v)
	}
}

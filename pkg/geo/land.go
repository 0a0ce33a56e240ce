package geo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/paulmach/orb/geojson"
)

// DecodeLand parses a landmass payload. TopoJSON topologies are converted
// using object (default "countries"); GeoJSON FeatureCollections, single
// Features and bare geometries are accepted as-is.
func DecodeLand(data []byte, object string) ([]*geojson.Feature, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(data), &head); err != nil {
		return nil, fmt.Errorf("failed to parse land data: %w", err)
	}

	switch head.Type {
	case "Topology":
		return DecodeTopology(data, object)
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse geojson: %w", err)
		}
		return fc.Features, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse geojson feature: %w", err)
		}
		return []*geojson.Feature{f}, nil
	case "":
		return nil, fmt.Errorf("land data has no type")
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse geojson geometry: %w", err)
		}
		return []*geojson.Feature{geojson.NewFeature(g.Geometry())}, nil
	}
}

// LoadLandFile reads a landmass file. ".shp" files go through the Shapefile
// reader; anything else is decoded as JSON.
func LoadLandFile(path, object string) ([]*geojson.Feature, error) {
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		return ReadShapefile(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read land file %s: %w", path, err)
	}
	features, err := DecodeLand(data, object)
	if err != nil {
		return nil, fmt.Errorf("failed to decode land file %s: %w", path, err)
	}
	return features, nil
}

// LandSet holds the currently loaded landmass dataset. Every successful
// Replace bumps the version so renderers can tell a new load from a repeat.
type LandSet struct {
	mu       sync.RWMutex
	features []*geojson.Feature
	version  int
}

// Replace swaps in a new dataset and returns its version.
func (s *LandSet) Replace(features []*geojson.Feature) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.features = features
	s.version++
	return s.version
}

// Features returns the current dataset and its version. Version 0 means nothing is loaded.
func (s *LandSet) Features() ([]*geojson.Feature, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.features, s.version
}

// FeatureName returns a display name for a land feature, if it has one.
func FeatureName(f *geojson.Feature) string {
	for _, key := range []string{"name", "NAME", "ADMIN", "admin"} {
		if v := getStringProp(f.Properties, key); v != "" {
			return v
		}
	}
	return ""
}

// getStringProp safely extracts a string property from GeoJSON properties.
func getStringProp(props geojson.Properties, key string) string {
	if val, ok := props[key]; ok {
		if s, ok := val.(string); ok {
			return strings.TrimSpace(s)
		}
		if f, ok := val.(json.Number); ok {
			return string(f)
		}
	}
	return ""
}

// Command land2geojson converts landmass data (ESRI Shapefile, TopoJSON or
// GeoJSON) into a compact GeoJSON FeatureCollection for source.land_path.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"

	"groundtrack/pkg/geo"
)

func main() {
	inputPath := flag.String("input", "", "Path to input .shp, TopoJSON or GeoJSON file")
	outputPath := flag.String("output", "", "Path to output .geojson file")
	object := flag.String("object", geo.DefaultLandObject, "TopoJSON object to convert")
	tolerance := flag.Float64("simplify", 0, "Douglas-Peucker tolerance in degrees (0 keeps every vertex)")
	slim := flag.Bool("slim", true, "Keep only the name property")
	flag.Parse()

	if *inputPath == "" || *outputPath == "" {
		flag.Usage()
		log.Fatal("Input and output paths are required")
	}

	n, err := run(*inputPath, *outputPath, *object, *tolerance, *slim)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Successfully converted %d features to %s\n", n, *outputPath)
}

func run(inputPath, outputPath, object string, tolerance float64, slim bool) (int, error) {
	features, err := geo.LoadLandFile(inputPath, object)
	if err != nil {
		return 0, err
	}

	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		if f == nil || f.Geometry == nil {
			continue
		}
		out := geojson.NewFeature(f.Geometry)
		if tolerance > 0 {
			out.Geometry = simplify.DouglasPeucker(tolerance).Simplify(orb.Clone(f.Geometry))
		}
		if slim {
			if name := geo.FeatureName(f); name != "" {
				out.Properties["name"] = name
			}
		} else {
			for k, v := range f.Properties {
				out.Properties[k] = v
			}
		}
		fc.Append(out)
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write output file: %w", err)
	}
	return len(fc.Features), nil
}

package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb/geojson"

	"groundtrack/pkg/geo"
)

// Land loads the landmass dataset, from a local file when configured and
// otherwise from a URL through the cached request client.
type Land struct {
	client Getter
	url    string
	path   string
	object string
}

// NewLand creates a landmass loader. object names the TopoJSON object to convert.
func NewLand(client Getter, url, path, object string) *Land {
	if object == "" {
		object = geo.DefaultLandObject
	}
	return &Land{client: client, url: url, path: path, object: object}
}

// Load fetches and decodes the dataset.
func (l *Land) Load(ctx context.Context) ([]*geojson.Feature, error) {
	if l.path != "" {
		features, err := geo.LoadLandFile(l.path, l.object)
		if err != nil {
			return nil, err
		}
		slog.Info("Land data loaded", "path", l.path, "features", len(features))
		return features, nil
	}
	if l.url == "" || l.client == nil {
		return nil, errors.New("no land source configured")
	}

	// The dataset is static, so the response is cached under its URL.
	body, err := l.client.Get(ctx, l.url, "land:"+l.url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch land data: %w", err)
	}
	features, err := geo.DecodeLand(body, l.object)
	if err != nil {
		return nil, err
	}
	slog.Info("Land data loaded", "url", l.url, "features", len(features))
	return features, nil
}

// LoadInto loads the dataset and swaps it into set.
func (l *Land) LoadInto(ctx context.Context, set *geo.LandSet) error {
	features, err := l.Load(ctx)
	if err != nil {
		return err
	}
	set.Replace(features)
	return nil
}

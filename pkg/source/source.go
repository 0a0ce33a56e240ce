package source

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"groundtrack/pkg/model"
)

// ErrUnknownObject is returned when a source has no data for a catalog id.
var ErrUnknownObject = errors.New("unknown object")

// Observer is the ground position and window a track is requested for.
type Observer struct {
	Lat       float64       `json:"lat"`
	Lon       float64       `json:"lon"`
	Elevation float64       `json:"elevation"` // meters
	Duration  time.Duration `json:"duration"`
}

// Seconds is the number of one-second samples the window covers.
func (o Observer) Seconds() int {
	if o.Duration <= 0 {
		return 0
	}
	return int(math.Ceil(o.Duration.Seconds()))
}

// PositionSource returns the sampled ground track of one object.
type PositionSource interface {
	Positions(ctx context.Context, id string, obs Observer) (model.Series, error)
}

// Getter is the HTTP dependency of the remote sources. *request.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, u, cacheKey string) ([]byte, error)
}

// fetchConcurrency bounds parallel requests per FetchAll call.
const fetchConcurrency = 4

// FetchAll requests every selected object concurrently. Results keep the
// selection order. Any failure fails the whole batch and no partial result is returned.
func FetchAll(ctx context.Context, src PositionSource, sel model.Selection, obs Observer) ([]model.Series, error) {
	if len(sel) == 0 {
		return nil, nil
	}
	out := make([]model.Series, len(sel))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, id := range sel {
		i, id := i, id
		g.Go(func() error {
			s, err := src.Positions(gctx, id, obs)
			if err != nil {
				return fmt.Errorf("object %s: %w", id, err)
			}
			out[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

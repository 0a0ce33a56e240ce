package basemap

import (
	"image/color"
	"log/slog"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"

	"groundtrack/pkg/canvas"
	"groundtrack/pkg/geo"
)

// Style holds the colours of the static map.
type Style struct {
	LandFill        color.Color
	LandStroke      color.Color
	LandStrokeWidth float64
	GraticuleColor  color.Color
	GraticuleWidth  float64
	OutlineColor    color.Color
	OutlineWidth    float64
}

// DefaultStyle is light-blue land with black borders drawn at 70% opacity
// and a faint grid.
func DefaultStyle() Style {
	const alpha = 0.7
	grid := canvas.WithAlpha(color.RGBA{220, 220, 220, 255}, 0.1*alpha)
	return Style{
		LandFill:        canvas.WithAlpha(color.RGBA{0xb3, 0xdd, 0xef, 0xff}, alpha),
		LandStroke:      canvas.WithAlpha(color.Black, alpha),
		LandStrokeWidth: 1,
		GraticuleColor:  grid,
		GraticuleWidth:  0.1,
		OutlineColor:    grid,
		OutlineWidth:    0.5,
	}
}

// Renderer draws land, graticule and outline onto the static surface.
// The surface is only ever drawn by the renderer, and only once per dataset.
type Renderer struct {
	adapter *geo.Adapter
	surface canvas.Surface
	style   Style

	mu      sync.Mutex
	drawn   bool
	version int
}

// NewRenderer creates a renderer for surface.
func NewRenderer(adapter *geo.Adapter, surface canvas.Surface, style Style) *Renderer {
	return &Renderer{adapter: adapter, surface: surface, style: style}
}

// Render draws land once. Later calls are no-ops and return false.
func (r *Renderer) Render(land []*geojson.Feature) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drawn {
		return false
	}
	r.draw(land)
	return true
}

// Sync draws the dataset held by set if it is newer than what was last drawn.
// An empty set draws nothing.
func (r *Renderer) Sync(set *geo.LandSet) bool {
	features, version := set.Features()

	r.mu.Lock()
	defer r.mu.Unlock()
	if version == 0 || version == r.version {
		return false
	}
	if r.drawn {
		r.surface.Clear()
	}
	r.draw(features)
	r.version = version
	return true
}

// Drawn reports whether a base map is on the surface.
func (r *Renderer) Drawn() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drawn
}

func (r *Renderer) draw(land []*geojson.Feature) {
	start := time.Now()
	for _, f := range land {
		if f == nil || f.Geometry == nil {
			continue
		}
		var p canvas.Path
		r.adapter.RenderPath(f.Geometry, &p)
		if p.Empty() {
			continue
		}
		r.surface.Fill(&p, canvas.Style{Color: r.style.LandFill})
		r.surface.Stroke(&p, canvas.Style{Color: r.style.LandStroke, LineWidth: r.style.LandStrokeWidth})
	}

	var grid canvas.Path
	r.adapter.RenderPath(geo.Graticule(), &grid)
	r.surface.Stroke(&grid, canvas.Style{Color: r.style.GraticuleColor, LineWidth: r.style.GraticuleWidth})

	var outline canvas.Path
	r.adapter.RenderPath(geo.Outline(), &outline)
	r.surface.Stroke(&outline, canvas.Style{Color: r.style.OutlineColor, LineWidth: r.style.OutlineWidth})

	r.drawn = true
	slog.Info("Base map rendered", "features", len(land), "duration", time.Since(start))
}

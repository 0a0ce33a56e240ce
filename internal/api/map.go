package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"

	"groundtrack/pkg/basemap"
	"groundtrack/pkg/canvas"
	"groundtrack/pkg/geo"
)

// LandLoader refreshes the landmass dataset.
type LandLoader interface {
	LoadInto(ctx context.Context, set *geo.LandSet) error
}

// Recording is the latest GIF export, if enabled.
type Recording interface {
	LastPath() string
}

// MapHandler serves the base map, the overlay and their composition as PNG.
type MapHandler struct {
	base     *canvas.Raster
	overlay  *canvas.Raster
	renderer *basemap.Renderer
	land     *geo.LandSet
	loader   LandLoader
	bg       color.Color
	rec      Recording
}

// NewMapHandler creates the handler. loader and rec may be nil.
func NewMapHandler(base, overlay *canvas.Raster, renderer *basemap.Renderer, land *geo.LandSet, loader LandLoader, rec Recording) *MapHandler {
	return &MapHandler{
		base:     base,
		overlay:  overlay,
		renderer: renderer,
		land:     land,
		loader:   loader,
		bg:       color.White,
		rec:      rec,
	}
}

// HandleBase serves GET /api/map.png.
func (h *MapHandler) HandleBase(w http.ResponseWriter, r *http.Request) {
	writePNG(w, canvas.Compose(h.bg, h.base.Snapshot()))
}

// HandleOverlay serves GET /api/overlay.png with a transparent background.
func (h *MapHandler) HandleOverlay(w http.ResponseWriter, r *http.Request) {
	writePNG(w, h.overlay.Snapshot())
}

// HandleFrame serves GET /api/frame.png: the base map with the overlay on top.
func (h *MapHandler) HandleFrame(w http.ResponseWriter, r *http.Request) {
	writePNG(w, canvas.Compose(h.bg, h.base.Snapshot(), h.overlay.Snapshot()))
}

// HandleReload serves POST /api/map/reload: fetch the landmass again and redraw if it changed.
func (h *MapHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		http.Error(w, "no land source configured", http.StatusNotFound)
		return
	}
	if err := h.loader.LoadInto(r.Context(), h.land); err != nil {
		slog.Error("Land reload failed", "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	drawn := h.renderer.Sync(h.land)
	features, version := h.land.Features()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"features": len(features),
		"version":  version,
		"redrawn":  drawn,
	}); err != nil {
		slog.Error("Failed to encode reload response", "error", err)
	}
}

// HandleRecording serves GET /api/recording.gif, the last exported run.
func (h *MapHandler) HandleRecording(w http.ResponseWriter, r *http.Request) {
	if h.rec == nil || h.rec.LastPath() == "" {
		http.Error(w, "no recording", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/gif")
	http.ServeFile(w, r, h.rec.LastPath())
}

func writePNG(w http.ResponseWriter, img image.Image) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		slog.Error("Failed to encode png", "error", err)
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("Failed to write png", "error", err)
	}
}

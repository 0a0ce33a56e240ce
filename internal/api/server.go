package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"groundtrack/pkg/observability"
	"groundtrack/pkg/version"
)

// Handlers groups everything NewServer routes.
type Handlers struct {
	Track   *TrackHandler
	Map     *MapHandler
	Hint    *Hint
	Stream  *StreamHandler
	Stats   *StatsHandler
	Metrics *observability.Collector // optional
}

// NewServer creates and configures the HTTP server.
// shutdown is called (asynchronously) by POST /api/shutdown.
func NewServer(addr string, h Handlers, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// instrument counts requests per route when metrics are enabled.
	instrument := func(route string, fn http.HandlerFunc) http.Handler {
		if h.Metrics == nil {
			return fn
		}
		return h.Metrics.Instrument(route, fn)
	}

	// 1. Health and version
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)

	// 2. Runs
	mux.Handle("POST /api/track", instrument("track_start", h.Track.HandleStart))
	mux.Handle("GET /api/track", instrument("track_state", h.Track.HandleState))
	mux.Handle("DELETE /api/track", instrument("track_abort", h.Track.HandleAbort))
	mux.HandleFunc("GET /api/hint", h.Hint.HandleGet)

	// 3. Surfaces
	mux.Handle("GET /api/map.png", instrument("map", h.Map.HandleBase))
	mux.Handle("GET /api/overlay.png", instrument("overlay", h.Map.HandleOverlay))
	mux.Handle("GET /api/frame.png", instrument("frame", h.Map.HandleFrame))
	mux.Handle("POST /api/map/reload", instrument("map_reload", h.Map.HandleReload))
	mux.HandleFunc("GET /api/recording.gif", h.Map.HandleRecording)

	// 4. Frame stream (not instrumented: the connection is hijacked)
	if h.Stream != nil {
		mux.Handle("GET /api/stream", h.Stream)
	}

	// 5. Stats and metrics
	if h.Stats != nil {
		mux.Handle("GET /api/stats", h.Stats)
		mux.HandleFunc("POST /api/stats/reset", h.Stats.HandleReset)
	}
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics.Handler())
	}

	// 6. Shutdown
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Let the response flush first
		go func() {
			time.Sleep(100 * time.Millisecond)
			if shutdown != nil {
				shutdown()
			}
		}()
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}

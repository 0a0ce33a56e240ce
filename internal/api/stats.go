package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"

	"groundtrack/pkg/track"
	"groundtrack/pkg/tracker"
)

type StatsHandler struct {
	tracker *tracker.Tracker
	colors  *track.ColorAllocator
	stream  *StreamHandler
}

func NewStatsHandler(t *tracker.Tracker, colors *track.ColorAllocator, stream *StreamHandler) *StatsHandler {
	return &StatsHandler{tracker: t, colors: colors, stream: stream}
}

// UpstreamStats is one upstream's counters with its cache hit rate.
type UpstreamStats struct {
	tracker.Counts
	HitRate int64 `json:"hit_rate"`
}

type StatsResponse struct {
	Upstreams     map[string]UpstreamStats `json:"upstreams"`
	Colors        map[string]string        `json:"colors"`
	StreamClients int                      `json:"stream_clients"`
	Goroutines    int                      `json:"goroutines"`
	MemoryMB      uint64                   `json:"memory_mb"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := StatsResponse{
		Upstreams:  make(map[string]UpstreamStats),
		Colors:     map[string]string{},
		Goroutines: runtime.NumGoroutine(),
		MemoryMB:   bToMb(mem.Alloc),
	}
	if h.colors != nil {
		resp.Colors = h.colors.Assigned()
	}
	if h.stream != nil {
		resp.StreamClients = h.stream.Clients()
	}

	for name, c := range h.tracker.Snapshot() {
		resp.Upstreams[name] = UpstreamStats{Counts: c, HitRate: c.HitRate()}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode stats response", "error", err)
	}
}

// HandleReset serves POST /api/stats/reset.
func (h *StatsHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.tracker.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Hint is the single user-facing guidance slot. The animator sets it on a
// rejected start and clears it when a run finishes.
type Hint struct {
	mu        sync.RWMutex
	text      string
	updatedAt time.Time
}

// Set replaces the hint. An empty message clears it. It matches track.HintFunc.
func (h *Hint) Set(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.text = msg
	h.updatedAt = time.Now()
}

// Get returns the current hint.
func (h *Hint) Get() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.text
}

// HintResponse is the payload of GET /api/hint.
type HintResponse struct {
	Hint      string    `json:"hint"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// HandleGet serves the current hint.
func (h *Hint) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	resp := HintResponse{Hint: h.text, UpdatedAt: h.updatedAt}
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode hint response", "error", err)
	}
}

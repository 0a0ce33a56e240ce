package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"groundtrack/pkg/logging"
	"groundtrack/pkg/model"
	"groundtrack/pkg/source"
	"groundtrack/pkg/track"
)

// Animator is the part of track.Animator the handler drives.
type Animator interface {
	Start(series []model.Series) (track.StartResult, error)
	Abort() bool
	Busy() bool
	State() track.Run
}

// TrackHandler accepts selections, fetches their positions and starts runs.
type TrackHandler struct {
	anim     Animator
	src      source.PositionSource
	hint     *Hint
	observer source.Observer
	timeout  time.Duration

	mu      sync.Mutex
	loading bool
	lastErr string
}

// NewTrackHandler creates the handler. observer is used when a request does not carry one.
func NewTrackHandler(anim Animator, src source.PositionSource, hint *Hint, observer source.Observer) *TrackHandler {
	return &TrackHandler{
		anim:     anim,
		src:      src,
		hint:     hint,
		observer: observer,
		timeout:  60 * time.Second,
	}
}

// ObserverRequest overrides the configured observer. Duration is in minutes.
type ObserverRequest struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Elevation float64 `json:"elevation"`
	Duration  float64 `json:"duration"`
}

// TrackRequest is the body of POST /api/track.
type TrackRequest struct {
	IDs      []string         `json:"ids"`
	Observer *ObserverRequest `json:"observer,omitempty"`
}

// TrackResponse reports the outcome of a request and the current run.
type TrackResponse struct {
	Result  string    `json:"result,omitempty"`
	Loading bool      `json:"loading"`
	Hint    string    `json:"hint,omitempty"`
	Error   string    `json:"error,omitempty"`
	Run     track.Run `json:"run"`
}

// HandleStart serves POST /api/track.
func (h *TrackHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, TrackResponse{Error: "invalid request body"})
		return
	}
	obs, err := h.observerFor(req.Observer)
	if err != nil {
		h.respond(w, http.StatusBadRequest, TrackResponse{Error: err.Error()})
		return
	}

	sel := model.NewSelection(req.IDs)
	if len(sel) == 0 {
		h.respond(w, http.StatusOK, TrackResponse{Result: track.StartIgnored.String()})
		return
	}

	// Rejecting before the fetch saves upstream quota; Start checks again.
	if h.anim.Busy() {
		h.reject(w, sel, "")
		return
	}

	if !h.beginLoading() {
		h.reject(w, sel, "a fetch is already in progress")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	series, err := source.FetchAll(ctx, h.src, sel, obs)
	cancel()
	h.endLoading(err)

	if err != nil {
		slog.Error("Position fetch failed", "objects", len(sel), "error", err)
		logging.LogEvent(logging.Event{Type: "fetch", Title: "Position fetch failed", Summary: err.Error()})
		h.respond(w, http.StatusBadGateway, TrackResponse{Error: err.Error()})
		return
	}

	res, err := h.anim.Start(series)
	switch {
	case errors.Is(err, track.ErrNoPositionData):
		logging.LogEvent(logging.Event{Type: "run", Title: "Run not started", Summary: err.Error()})
		h.respond(w, http.StatusUnprocessableEntity, TrackResponse{Result: res.String(), Error: err.Error()})
	case err != nil:
		h.respond(w, http.StatusInternalServerError, TrackResponse{Result: res.String(), Error: err.Error()})
	case res == track.StartRejected:
		h.reject(w, sel, "")
	case res == track.Started:
		run := h.anim.State()
		logging.LogEvent(logging.Event{Type: "run", Title: "Run started", Summary: fmt.Sprintf("%s (%d samples)", strings.Join(sel, ", "), run.Length)})
		h.respond(w, http.StatusAccepted, TrackResponse{Result: res.String(), Run: run})
	default:
		h.respond(w, http.StatusOK, TrackResponse{Result: res.String()})
	}
}

// reject answers a start attempt made while a run or its fetch is in progress.
func (h *TrackHandler) reject(w http.ResponseWriter, sel model.Selection, reason string) {
	h.hint.Set(track.BusyHint)
	logging.LogEvent(logging.Event{Type: "run", Title: "Run rejected", Summary: strings.Join(sel, ", ")})
	h.respond(w, http.StatusConflict, TrackResponse{Result: track.StartRejected.String(), Hint: track.BusyHint, Error: reason})
}

// HandleState serves GET /api/track.
func (h *TrackHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, TrackResponse{})
}

// HandleAbort serves DELETE /api/track.
func (h *TrackHandler) HandleAbort(w http.ResponseWriter, r *http.Request) {
	if !h.anim.Abort() {
		h.respond(w, http.StatusNotFound, TrackResponse{Error: "no active run"})
		return
	}
	logging.LogEvent(logging.Event{Type: "run", Title: "Run aborted"})
	h.respond(w, http.StatusOK, TrackResponse{Result: string(track.StateAborted)})
}

func (h *TrackHandler) observerFor(req *ObserverRequest) (source.Observer, error) {
	if req == nil {
		return h.observer, nil
	}
	switch {
	case req.Lat < -90 || req.Lat > 90:
		return source.Observer{}, fmt.Errorf("observer lat %v out of range", req.Lat)
	case req.Lon < -180 || req.Lon > 180:
		return source.Observer{}, fmt.Errorf("observer lon %v out of range", req.Lon)
	case req.Duration <= 0:
		return source.Observer{}, errors.New("observer duration must be positive")
	}
	return source.Observer{
		Lat:       req.Lat,
		Lon:       req.Lon,
		Elevation: req.Elevation,
		Duration:  time.Duration(req.Duration * float64(time.Minute)),
	}, nil
}

func (h *TrackHandler) beginLoading() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loading {
		return false
	}
	h.loading = true
	h.lastErr = ""
	return true
}

func (h *TrackHandler) endLoading(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loading = false
	if err != nil {
		h.lastErr = err.Error()
	}
}

func (h *TrackHandler) respond(w http.ResponseWriter, status int, resp TrackResponse) {
	h.mu.Lock()
	resp.Loading = h.loading
	if resp.Error == "" && resp.Result == "" {
		resp.Error = h.lastErr
	}
	h.mu.Unlock()
	if resp.Run.State == "" {
		resp.Run = h.anim.State()
	}
	if resp.Hint == "" {
		resp.Hint = h.hint.Get()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode track response", "error", err)
	}
}

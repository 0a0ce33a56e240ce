package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundtrack/pkg/basemap"
	"groundtrack/pkg/canvas"
	"groundtrack/pkg/geo"
	"groundtrack/pkg/model"
	"groundtrack/pkg/source"
	"groundtrack/pkg/track"
	"groundtrack/pkg/tracker"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeSource returns n samples per object, or err. With hold set, each call
// signals entered and waits for hold to close.
type fakeSource struct {
	mu      sync.Mutex
	n       int
	err     error
	calls   []string
	hold    chan struct{}
	entered chan struct{}
}

func (f *fakeSource) Positions(_ context.Context, id string, obs source.Observer) (model.Series, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.mu.Unlock()
	if f.hold != nil {
		f.entered <- struct{}{}
		<-f.hold
	}
	if f.err != nil {
		return model.Series{}, f.err
	}
	s := model.Series{Info: model.ObjectInfo{ID: id, Name: "SAT " + id}}
	for i := 0; i < f.n; i++ {
		s.Positions = append(s.Positions, geo.Point{Lat: obs.Lat + float64(i)/100, Lon: obs.Lon + float64(i)/50})
	}
	return s, nil
}

type fakeLoader struct {
	features string
	err      error
}

func (l *fakeLoader) LoadInto(_ context.Context, set *geo.LandSet) error {
	if l.err != nil {
		return l.err
	}
	features, err := geo.DecodeLand([]byte(l.features), "")
	if err != nil {
		return err
	}
	set.Replace(features)
	return nil
}

type fixedRecording string

func (r fixedRecording) LastPath() string { return string(r) }

const squareFC = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"name":"Square"},
  "geometry":{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]]]}}]}`

type testAPI struct {
	handler http.Handler
	sched   *track.ManualScheduler
	anim    *track.Animator
	hint    *Hint
	src     *fakeSource
	stream  *StreamHandler
	tracker *tracker.Tracker
}

func newTestAPI(t *testing.T, src *fakeSource, loader LandLoader, rec Recording) *testAPI {
	t.Helper()
	const w, h = 480, 300

	adapter := geo.NewAdapter(geo.NewProjection(geo.Kavrayskiy7{}, 85, w, h), 1)
	base := canvas.NewRaster(w, h)
	overlay := canvas.NewRaster(w, h)
	renderer := basemap.NewRenderer(adapter, base, basemap.DefaultStyle())
	land := &geo.LandSet{}

	a := &testAPI{
		sched:   track.NewManualScheduler(t0),
		hint:    &Hint{},
		src:     src,
		stream:  NewStreamHandler(),
		tracker: tracker.New(),
	}
	a.anim = track.NewAnimator(track.DefaultConfig(), adapter, overlay, a.sched, track.WithHint(a.hint.Set))
	a.anim.OnFrame(a.stream.Publish)

	obs := source.Observer{Lat: 10, Lon: 20, Duration: 2 * time.Minute}
	srv := NewServer("127.0.0.1:0", Handlers{
		Track:  NewTrackHandler(a.anim, src, a.hint, obs),
		Map:    NewMapHandler(base, overlay, renderer, land, loader, rec),
		Hint:   a.hint,
		Stream: a.stream,
		Stats:  NewStatsHandler(a.tracker, a.anim.Colors(), a.stream),
	}, nil)
	a.handler = srv.Handler
	return a
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, http.NoBody)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, r)
	return rec
}

func decodeTrack(t *testing.T, rec *httptest.ResponseRecorder) TrackResponse {
	t.Helper()
	var resp TrackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestHealthAndVersion(t *testing.T) {
	a := newTestAPI(t, &fakeSource{n: 10}, nil, nil)

	rec := a.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/version", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var v map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.NotEmpty(t, v["version"])
}

func TestTrackLifecycle(t *testing.T) {
	src := &fakeSource{n: 180}
	a := newTestAPI(t, src, nil, nil)

	rec := a.do(t, http.MethodPost, "/api/track", `{"ids":["25544"," 20580","25544"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decodeTrack(t, rec)
	assert.Equal(t, "started", resp.Result)
	assert.Equal(t, track.StateRunning, resp.Run.State)
	assert.Equal(t, 180, resp.Run.Length)
	require.Len(t, resp.Run.Objects, 2)
	assert.Equal(t, "25544", resp.Run.Objects[0].ID)
	assert.Equal(t, "20580", resp.Run.Objects[1].ID)
	assert.Len(t, src.calls, 2)

	// A second selection while animating is rejected without fetching.
	rec = a.do(t, http.MethodPost, "/api/track", `{"ids":["43013"]}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	resp = decodeTrack(t, rec)
	assert.Equal(t, "rejected", resp.Result)
	assert.Equal(t, track.BusyHint, resp.Hint)
	assert.Len(t, src.calls, 2)

	rec = a.do(t, http.MethodGet, "/api/hint", "")
	var hint HintResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hint))
	assert.Equal(t, track.BusyHint, hint.Hint)

	// Drive the run to completion.
	a.sched.RunUntilIdle(100)
	assert.Equal(t, 0, a.sched.Active())

	rec = a.do(t, http.MethodGet, "/api/track", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeTrack(t, rec)
	assert.Equal(t, track.StateCompleted, resp.Run.State)
	assert.Equal(t, 180, resp.Run.Cursor)
	assert.Empty(t, resp.Hint, "finishing a run clears the hint")
	assert.Empty(t, a.hint.Get())

	// The next selection is accepted again.
	rec = a.do(t, http.MethodPost, "/api/track", `{"ids":["43013"]}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestTrackStartOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		src        *fakeSource
		body       string
		wantStatus int
		wantResult string
		wantError  string
	}{
		{
			name:       "EmptySelection",
			src:        &fakeSource{n: 10},
			body:       `{"ids":[" ",""]}`,
			wantStatus: http.StatusOK,
			wantResult: "ignored",
		},
		{
			name:       "InvalidBody",
			src:        &fakeSource{n: 10},
			body:       `{"ids":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request body",
		},
		{
			name:       "ObserverOutOfRange",
			src:        &fakeSource{n: 10},
			body:       `{"ids":["1"],"observer":{"lat":91,"lon":0,"duration":5}}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "observer lat",
		},
		{
			name:       "ObserverWithoutDuration",
			src:        &fakeSource{n: 10},
			body:       `{"ids":["1"],"observer":{"lat":1,"lon":2}}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "duration",
		},
		{
			name:       "FetchFails",
			src:        &fakeSource{err: errors.New("upstream down")},
			body:       `{"ids":["1","2"]}`,
			wantStatus: http.StatusBadGateway,
			wantError:  "upstream down",
		},
		{
			name:       "NoSamples",
			src:        &fakeSource{n: 0},
			body:       `{"ids":["1"]}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantResult: "ignored",
			wantError:  track.ErrNoPositionData.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI(t, tt.src, nil, nil)
			rec := a.do(t, http.MethodPost, "/api/track", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			resp := decodeTrack(t, rec)
			assert.Equal(t, tt.wantResult, resp.Result)
			if tt.wantError != "" {
				assert.Contains(t, resp.Error, tt.wantError)
			}
			assert.False(t, a.anim.Busy())
			assert.Equal(t, track.StateIdle, resp.Run.State)
		})
	}
}

func TestTrackObserverOverride(t *testing.T) {
	src := &fakeSource{n: 600}
	a := newTestAPI(t, src, nil, nil)

	rec := a.do(t, http.MethodPost, "/api/track", `{"ids":["25544"],"observer":{"lat":-33.9,"lon":151.2,"duration":10}}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, 600, decodeTrack(t, rec).Run.Length)
}

func TestTrackAbort(t *testing.T) {
	a := newTestAPI(t, &fakeSource{n: 600}, nil, nil)

	rec := a.do(t, http.MethodDelete, "/api/track", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/track", `{"ids":["25544"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	a.sched.Tick()

	rec = a.do(t, http.MethodDelete, "/api/track", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeTrack(t, rec)
	assert.Equal(t, "aborted", resp.Result)
	assert.Equal(t, track.StateAborted, resp.Run.State)
	assert.False(t, a.anim.Busy())
	assert.Equal(t, 0, a.sched.Active())

	rec = a.do(t, http.MethodDelete, "/api/track", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMapImages(t *testing.T) {
	loader := &fakeLoader{features: squareFC}
	a := newTestAPI(t, &fakeSource{n: 120}, loader, nil)

	rec := a.do(t, http.MethodPost, "/api/map/reload", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var reload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reload))
	assert.EqualValues(t, 1, reload["features"])
	assert.EqualValues(t, 1, reload["version"])
	assert.Equal(t, true, reload["redrawn"])

	require.Equal(t, http.StatusAccepted, a.do(t, http.MethodPost, "/api/track", `{"ids":["1"]}`).Code)
	a.sched.Tick()

	for _, path := range []string{"/api/map.png", "/api/overlay.png", "/api/frame.png"} {
		t.Run(strings.TrimPrefix(path, "/api/"), func(t *testing.T) {
			rec := a.do(t, http.MethodGet, path, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

			img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, 480, img.Bounds().Dx())
			assert.Equal(t, 300, img.Bounds().Dy())
		})
	}
}

func TestMapReloadErrors(t *testing.T) {
	a := newTestAPI(t, &fakeSource{}, nil, nil)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodPost, "/api/map/reload", "").Code)

	a = newTestAPI(t, &fakeSource{}, &fakeLoader{err: errors.New("cdn unreachable")}, nil)
	rec := a.do(t, http.MethodPost, "/api/map/reload", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "cdn unreachable")
}

func TestRecording(t *testing.T) {
	a := newTestAPI(t, &fakeSource{}, nil, nil)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/api/recording.gif", "").Code)

	a = newTestAPI(t, &fakeSource{}, nil, fixedRecording(""))
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/api/recording.gif", "").Code)
}

func TestStats(t *testing.T) {
	a := newTestAPI(t, &fakeSource{n: 60}, nil, nil)
	a.tracker.Record("n2yo", tracker.Fetched)
	a.tracker.Record("cdn", tracker.CacheHit)
	a.tracker.Record("cdn", tracker.CacheMiss)

	require.Equal(t, http.StatusAccepted, a.do(t, http.MethodPost, "/api/track", `{"ids":["25544"]}`).Code)
	a.sched.Tick()

	rec := a.do(t, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.EqualValues(t, 1, stats.Upstreams["n2yo"].Fetched)
	assert.EqualValues(t, 50, stats.Upstreams["cdn"].HitRate)
	assert.Contains(t, stats.Colors, "25544")

	rec = a.do(t, http.MethodPost, "/api/stats/reset", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, a.tracker.Snapshot()["n2yo"].Fetched)
}

func TestStream(t *testing.T) {
	a := newTestAPI(t, &fakeSource{n: 120}, nil, nil)
	ts := httptest.NewServer(a.handler)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return a.stream.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusAccepted, a.do(t, http.MethodPost, "/api/track", `{"ids":["25544"]}`).Code)
	a.sched.Tick()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f track.Frame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, 0, f.Tick)
	assert.Equal(t, 0, f.Cursor)
	assert.Equal(t, 120, f.Length)
	require.Len(t, f.Markers, 1)
	assert.Equal(t, "25544", f.Markers[0].ID)

	conn.Close()
	require.Eventually(t, func() bool { return a.stream.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestShutdownEndpoint(t *testing.T) {
	called := make(chan struct{})
	srv := NewServer("127.0.0.1:0", Handlers{
		Track: NewTrackHandler(nil, nil, &Hint{}, source.Observer{}),
		Map:   &MapHandler{},
		Hint:  &Hint{},
	}, func() { close(called) })

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/shutdown", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown callback not called")
	}
}

func TestTrackRejectedWhileFetching(t *testing.T) {
	src := &fakeSource{n: 60, hold: make(chan struct{}), entered: make(chan struct{}, 1)}
	a := newTestAPI(t, src, &fakeLoader{features: squareFC}, nil)

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() { first <- a.do(t, http.MethodPost, "/api/track", `{"ids":["25544"]}`) }()
	<-src.entered

	assert.Empty(t, a.hint.Get())
	rec := a.do(t, http.MethodPost, "/api/track", `{"ids":["20580"]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeTrack(t, rec)
	assert.Equal(t, track.StartRejected.String(), resp.Result)
	assert.Equal(t, track.BusyHint, resp.Hint)
	assert.Equal(t, "a fetch is already in progress", resp.Error)
	assert.Equal(t, track.BusyHint, a.hint.Get())

	close(src.hold)
	assert.Equal(t, http.StatusAccepted, (<-first).Code)
	assert.Equal(t, []string{"25544"}, src.calls)
}

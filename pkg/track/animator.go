package track

import (
	"image/color"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"groundtrack/pkg/canvas"
	"groundtrack/pkg/geo"
	"groundtrack/pkg/logging"
	"groundtrack/pkg/model"
)

// BusyHint is shown when a run is requested while another one is animating.
const BusyHint = "Please wait for the current animation to finish before selecting new objects!"

// Config holds the fixed animation parameters.
type Config struct {
	TickInterval time.Duration // wall-clock time between frames
	Acceleration float64       // simulated seconds per wall-clock second
	CursorStep   int           // samples the shared cursor advances per frame
	MarkerRadius float64
	LabelOffset  float64 // distance of the marker label below the marker
	ClockLabelY  float64 // baseline of the simulated-time label
	ClockFormat  string
	ClockColor   color.Color
}

// DefaultConfig replays one simulated minute per wall-clock second.
func DefaultConfig() Config {
	return Config{
		TickInterval: time.Second,
		Acceleration: 60,
		CursorStep:   60,
		MarkerRadius: 4,
		LabelOffset:  14,
		ClockLabelY:  16,
		ClockFormat:  "2006-01-02 15:04:05 MST",
		ClockColor:   color.RGBA{0x33, 0x33, 0x33, 0xff},
	}
}

// State is the lifecycle state of a run.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

// StartResult tells the caller what Start did.
type StartResult int

const (
	// StartIgnored means the snapshot was empty or unusable and nothing happened.
	StartIgnored StartResult = iota
	// Started means a new run is animating.
	Started
	// StartRejected means another run is active; the hint was set.
	StartRejected
)

func (r StartResult) String() string {
	switch r {
	case Started:
		return "started"
	case StartRejected:
		return "rejected"
	default:
		return "ignored"
	}
}

// Marker is one object drawn in a frame.
type Marker struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Label   string    `json:"label"`
	Color   string    `json:"color"`
	Index   int       `json:"index"`
	Pos     geo.Point `json:"position"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	Heading float64   `json:"heading"`
}

// Frame describes what one tick drew on the overlay.
type Frame struct {
	RunID   string    `json:"run_id"`
	Tick    int       `json:"tick"`
	Cursor  int       `json:"cursor"`
	Length  int       `json:"length"`
	SimTime time.Time `json:"sim_time"`
	Markers []Marker  `json:"markers"`
	Skipped int       `json:"skipped"`
	Final   bool      `json:"final"`
}

// Run is a snapshot of the current or most recent run.
type Run struct {
	ID         string             `json:"id,omitempty"`
	State      State              `json:"state"`
	Cursor     int                `json:"cursor"`
	Length     int                `json:"length"`
	Ticks      int                `json:"ticks"`
	Objects    []model.ObjectInfo `json:"objects,omitempty"`
	StartedAt  time.Time          `json:"started_at,omitempty"`
	FinishedAt time.Time          `json:"finished_at,omitempty"`
}

// HintFunc receives the user-facing hint. An empty string clears it.
type HintFunc func(msg string)

// Metrics receives animator events.
type Metrics interface {
	RunStarted()
	RunRejected()
	RunFinished(state State, d time.Duration)
	Tick(markers int)
	SampleSkipped()
}

type noopMetrics struct{}

func (noopMetrics) RunStarted() {}
func (noopMetrics) RunRejected() {}
func (noopMetrics) RunFinished(_ State, _ time.Duration) {}
func (noopMetrics) Tick(_ int) {}
func (noopMetrics) SampleSkipped() {}

// PointProjector converts geographic points to surface coordinates.
type PointProjector interface {
	Project(p geo.Point) (canvas.Point, bool)
}

// Option customizes an Animator.
type Option func(*Animator)

// WithGuard shares a guard with other components.
func WithGuard(g *Guard) Option {
	return func(a *Animator) { a.guard = g }
}

// WithColors shares a colour allocator, keeping colours stable across animators.
func WithColors(c *ColorAllocator) Option {
	return func(a *Animator) { a.colors = c }
}

// WithHint sets the hint output.
func WithHint(h HintFunc) Option {
	return func(a *Animator) { a.hint = h }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(a *Animator) { a.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Animator) { a.log = l }
}

type runState struct {
	id         string
	series     []model.Series
	length     int
	startedAt  time.Time
	finishedAt time.Time
	cursor     int
	ticks      int
	state      State
	timer      Timer
}

// Animator replays position series on the overlay surface, one shared
// cursor for all series, driven by a Scheduler.
type Animator struct {
	cfg     Config
	proj    PointProjector
	overlay canvas.Surface
	sched   Scheduler

	guard   *Guard
	colors  *ColorAllocator
	hint    HintFunc
	metrics Metrics
	log     *slog.Logger

	mu        sync.Mutex
	run       *runState
	listeners map[int]func(Frame)
	nextID    int
}

// NewAnimator creates an idle animator drawing onto overlay.
func NewAnimator(cfg Config, proj PointProjector, overlay canvas.Surface, sched Scheduler, opts ...Option) *Animator {
	if cfg.CursorStep <= 0 {
		cfg.CursorStep = 1
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.ClockColor == nil {
		cfg.ClockColor = color.Black
	}
	a := &Animator{
		cfg:       cfg,
		proj:      proj,
		overlay:   overlay,
		sched:     sched,
		hint:      func(string) {},
		metrics:   noopMetrics{},
		log:       slog.Default(),
		listeners: make(map[int]func(Frame)),
	}
	for _, o := range opts {
		o(a)
	}
	if a.guard == nil {
		a.guard = &Guard{}
	}
	if a.colors == nil {
		a.colors = NewColorAllocator()
	}
	return a
}

// Start begins animating series. An empty snapshot is ignored. A snapshot
// without any valid sample fails with ErrNoPositionData before anything is drawn.
// While another run is active the request is rejected and the hint is set.
func (a *Animator) Start(series []model.Series) (StartResult, error) {
	if len(series) == 0 {
		return StartIgnored, nil
	}
	length := model.MaxLen(series)
	if length == 0 || model.ValidCount(series) == 0 {
		return StartIgnored, ErrNoPositionData
	}

	if !a.guard.TryStart() {
		a.log.Info("Animation busy, request rejected", "objects", len(series))
		a.metrics.RunRejected()
		a.hint(BusyHint)
		return StartRejected, nil
	}

	run := &runState{
		id:     uuid.NewString(),
		series: append([]model.Series(nil), series...),
		length: length,
		state:  StateRunning,
	}

	a.mu.Lock()
	run.startedAt = a.sched.Now()
	a.run = run
	run.timer = a.sched.Every(a.cfg.TickInterval, func(now time.Time) {
		a.tick(run, now)
	})
	a.mu.Unlock()

	a.metrics.RunStarted()
	a.log.Info("Animation started", "run", run.id, "objects", len(series), "samples", length, "step", a.cfg.CursorStep)
	return Started, nil
}

// Abort stops the active run, leaving its last frame on the overlay.
// It returns false when nothing is running.
func (a *Animator) Abort() bool {
	a.mu.Lock()
	run := a.run
	if run == nil || run.state != StateRunning {
		a.mu.Unlock()
		return false
	}
	a.finish(run, StateAborted)
	a.mu.Unlock()

	a.afterFinish(run)
	return true
}

// Busy reports whether a run is active.
func (a *Animator) Busy() bool {
	return a.guard.Busy()
}

// State returns a snapshot of the current or most recent run.
func (a *Animator) State() Run {
	a.mu.Lock()
	defer a.mu.Unlock()
	run := a.run
	if run == nil {
		return Run{State: StateIdle}
	}
	objects := make([]model.ObjectInfo, len(run.series))
	for i, s := range run.series {
		objects[i] = s.Info
	}
	return Run{
		ID:         run.id,
		State:      run.state,
		Cursor:     run.cursor,
		Length:     run.length,
		Ticks:      run.ticks,
		Objects:    objects,
		StartedAt:  run.startedAt,
		FinishedAt: run.finishedAt,
	}
}

// OnFrame registers fn to receive every frame. The returned function unregisters it.
func (a *Animator) OnFrame(fn func(Frame)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, id)
	}
}

// Colors returns the colour allocator.
func (a *Animator) Colors() *ColorAllocator {
	return a.colors
}

func (a *Animator) tick(run *runState, now time.Time) {
	a.mu.Lock()
	if a.run != run || run.state != StateRunning {
		a.mu.Unlock()
		return
	}

	var elapsed time.Duration
	if run.ticks > 0 {
		elapsed = now.Sub(run.startedAt)
	}
	simTime := run.startedAt.Add(time.Duration(float64(elapsed) * a.cfg.Acceleration))

	a.overlay.Clear()
	w, _ := a.overlay.Size()
	a.overlay.Text(simTime.Format(a.cfg.ClockFormat), canvas.Point{X: float64(w) / 2, Y: a.cfg.ClockLabelY},
		canvas.TextStyle{Color: a.cfg.ClockColor, Align: canvas.AlignCenter, Bold: true})

	markers, skipped := a.drawMarkers(run)

	frame := Frame{
		RunID:   run.id,
		Tick:    run.ticks,
		Cursor:  run.cursor,
		Length:  run.length,
		SimTime: simTime,
		Markers: markers,
		Skipped: skipped,
	}

	run.ticks++
	run.cursor += a.cfg.CursorStep
	if run.cursor >= run.length {
		a.finish(run, StateCompleted)
		frame.Final = true
	}

	listeners := make([]func(Frame), 0, len(a.listeners))
	for _, l := range a.listeners {
		listeners = append(listeners, l)
	}
	a.mu.Unlock()

	logging.Trace(a.log, "Animation tick", "run", run.id, "tick", frame.Tick, "cursor", frame.Cursor, "markers", len(markers))
	a.metrics.Tick(len(markers))
	for i := 0; i < skipped; i++ {
		a.metrics.SampleSkipped()
	}
	if frame.Final {
		a.afterFinish(run)
	}
	for _, l := range listeners {
		l(frame)
	}
}

// drawMarkers must be called with a.mu held.
func (a *Animator) drawMarkers(run *runState) ([]Marker, int) {
	var markers []Marker
	skipped := 0
	for _, s := range run.series {
		if run.cursor >= len(s.Positions) {
			continue
		}
		pos := s.Positions[run.cursor]
		xy, ok := a.proj.Project(pos)
		if !ok {
			skipped++
			continue
		}

		label := model.LabelFor(s.Info.Name)
		if label == "" {
			label = s.Info.ID
		}
		col := a.colors.ColorFor(label)

		var dot canvas.Path
		dot.Arc(xy.X, xy.Y, a.cfg.MarkerRadius)
		a.overlay.Fill(&dot, canvas.Style{Color: col})
		a.overlay.Text(label, canvas.Point{X: xy.X, Y: xy.Y + a.cfg.LabelOffset},
			canvas.TextStyle{Color: col, Align: canvas.AlignCenter, Bold: true})

		m := Marker{
			ID:    s.Info.ID,
			Name:  s.Info.Name,
			Label: label,
			Color: canvas.Hex(col),
			Index: run.cursor,
			Pos:   pos,
			X:     xy.X,
			Y:     xy.Y,
		}
		if next := run.cursor + 1; next < len(s.Positions) && s.Positions[next].Valid() {
			m.Heading = geo.Bearing(pos, s.Positions[next])
		}
		markers = append(markers, m)
	}
	return markers, skipped
}

// finish must be called with a.mu held.
func (a *Animator) finish(run *runState, state State) {
	run.state = state
	run.finishedAt = a.sched.Now()
	if run.timer != nil {
		run.timer.Stop()
	}
	a.guard.Release()
}

// afterFinish runs the side effects of finish outside the lock.
func (a *Animator) afterFinish(run *runState) {
	a.hint("")
	a.metrics.RunFinished(run.state, run.finishedAt.Sub(run.startedAt))
	a.log.Info("Animation finished", "run", run.id, "state", run.state, "ticks", run.ticks)
}

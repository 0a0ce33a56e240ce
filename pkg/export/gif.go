package export

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"groundtrack/pkg/canvas"
	"groundtrack/pkg/track"
)

// ErrNoFrames is returned when encoding a recording that captured nothing.
var ErrNoFrames = errors.New("no frames recorded")

// Snapshotter provides the current pixels of a surface.
type Snapshotter interface {
	Snapshot() *image.RGBA
}

// Options controls a GIF recording.
type Options struct {
	Dir        string        // where finished runs are written; empty keeps them in memory only
	MaxFrames  int           // frames beyond this are dropped; 0 means unlimited
	Delay      time.Duration // display time of each frame
	Background color.Color
}

// Recorder captures animator frames (base map plus overlay) into an animated GIF.
// Register OnFrame with track.Animator.OnFrame.
type Recorder struct {
	base    Snapshotter
	overlay Snapshotter
	opts    Options

	mu      sync.Mutex
	runID   string
	frames  []*image.Paletted
	dropped int
	last    string
}

// NewRecorder creates a recorder. base may be nil.
func NewRecorder(base, overlay Snapshotter, opts Options) *Recorder {
	if opts.Delay <= 0 {
		opts.Delay = 100 * time.Millisecond
	}
	if opts.Background == nil {
		opts.Background = color.White
	}
	return &Recorder{base: base, overlay: overlay, opts: opts}
}

// OnFrame captures one frame. A new run id discards the previous recording;
// the final frame of a run writes the GIF when a directory is configured.
func (r *Recorder) OnFrame(f track.Frame) {
	r.mu.Lock()
	if f.RunID != r.runID {
		r.runID = f.RunID
		r.frames = nil
		r.dropped = 0
	}
	if r.opts.MaxFrames > 0 && len(r.frames) >= r.opts.MaxFrames {
		r.dropped++
	} else {
		r.frames = append(r.frames, r.capture())
	}
	final := f.Final
	r.mu.Unlock()

	if final && r.opts.Dir != "" {
		path := filepath.Join(r.opts.Dir, f.RunID+".gif")
		if err := r.Save(path); err != nil {
			slog.Error("Failed to write recording", "run", f.RunID, "path", path, "error", err)
			return
		}
		slog.Info("Recording written", "run", f.RunID, "path", path, "frames", r.Len())
	}
}

// capture must be called with r.mu held.
func (r *Recorder) capture() *image.Paletted {
	var base image.Image
	if r.base != nil {
		base = r.base.Snapshot()
	}
	rgba := canvas.Compose(r.opts.Background, base, r.overlay.Snapshot())
	pimg := image.NewPaletted(rgba.Bounds(), palette.Plan9)
	draw.FloydSteinberg.Draw(pimg, pimg.Bounds(), rgba, rgba.Bounds().Min)
	return pimg
}

// Len returns the number of frames of the current recording.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// Dropped returns how many frames exceeded MaxFrames.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// LastPath returns the file most recently written by Save.
func (r *Recorder) LastPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Encode writes the current recording as a looping GIF.
func (r *Recorder) Encode(w io.Writer) error {
	r.mu.Lock()
	frames := append([]*image.Paletted(nil), r.frames...)
	r.mu.Unlock()

	if len(frames) == 0 {
		return ErrNoFrames
	}
	delay := int(r.opts.Delay / (10 * time.Millisecond))
	if delay < 1 {
		delay = 1
	}
	anim := &gif.GIF{
		Image: frames,
		Delay: make([]int, len(frames)),
	}
	for i := range anim.Delay {
		anim.Delay[i] = delay
	}
	return gif.EncodeAll(w, anim)
}

// Save encodes the recording to path, creating parent directories.
func (r *Recorder) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	r.mu.Lock()
	r.last = path
	r.mu.Unlock()
	return nil
}

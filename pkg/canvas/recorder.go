package canvas

import "sync"

// OpKind names a recorded drawing call.
type OpKind string

const (
	OpClear  OpKind = "clear"
	OpFill   OpKind = "fill"
	OpStroke OpKind = "stroke"
	OpText   OpKind = "text"
)

// Op is one recorded drawing call.
type Op struct {
	Kind      OpKind
	Path      *Path
	Style     Style
	Text      string
	At        Point
	TextStyle TextStyle
}

// Recorder is a Surface that keeps a log of drawing calls instead of pixels.
type Recorder struct {
	mu     sync.Mutex
	width  int
	height int
	ops    []Op
}

// NewRecorder creates a recording surface of the given logical size.
func NewRecorder(width, height int) *Recorder {
	return &Recorder{width: width, height: height}
}

func (r *Recorder) Size() (width, height int) { return r.width, r.height }

func (r *Recorder) Clear() { r.record(Op{Kind: OpClear}) }

func (r *Recorder) Fill(p *Path, s Style) {
	r.record(Op{Kind: OpFill, Path: p.Clone(), Style: s})
}

func (r *Recorder) Stroke(p *Path, s Style) {
	r.record(Op{Kind: OpStroke, Path: p.Clone(), Style: s})
}

func (r *Recorder) Text(text string, at Point, s TextStyle) {
	r.record(Op{Kind: OpText, Text: text, At: at, TextStyle: s})
}

func (r *Recorder) record(op Op) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

// Ops returns a copy of the recorded calls.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Op(nil), r.ops...)
}

// Count returns how many calls of kind were recorded.
func (r *Recorder) Count(kind OpKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, op := range r.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// SinceLastClear returns the calls recorded after the most recent Clear.
func (r *Recorder) SinceLastClear() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.ops) - 1; i >= 0; i-- {
		if r.ops[i].Kind == OpClear {
			return append([]Op(nil), r.ops[i+1:]...)
		}
	}
	return append([]Op(nil), r.ops...)
}

// Reset drops every recorded call.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
}

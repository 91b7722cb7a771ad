package playback

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"voxelreplay.ai/internal/persistence/export"
	"voxelreplay.ai/internal/sim/layer"
	"voxelreplay.ai/internal/sim/palette"
	"voxelreplay.ai/internal/sim/timeline"
	"voxelreplay.ai/internal/sim/tuning"
	"voxelreplay.ai/internal/sim/voxel"
)

// Frame describes one completed seek.
type Frame struct {
	Seq      uint64
	From     timeline.Stamp
	To       timeline.Stamp
	Ops      int
	Chunks   int
	Changed  []string
	Layers   map[string]layer.Change
	Duration time.Duration
}

func (f Frame) Forward() bool { return f.To >= f.From }

// Options configure a Simulation.
type Options struct {
	Span        timeline.Span
	ClampToSpan bool
	Logger      *log.Logger
}

// Simulation owns the named layers and moves them along the timeline
// together. Seeks are serialized; observers run inside the seek, so they
// may read renderable buffers before the next seek mutates them.
type Simulation struct {
	mu        sync.Mutex
	layers    []layer.Layer
	byName    map[string]layer.Layer
	span      timeline.Span
	clamp     bool
	cursor    timeline.Stamp
	seq       uint64
	observers []func(Frame)
	logger    *log.Logger
}

func New(layers []layer.Layer, opts Options) *Simulation {
	sorted := append([]layer.Layer(nil), layers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name() < sorted[j].Name() })
	s := &Simulation{
		layers: sorted,
		byName: make(map[string]layer.Layer, len(sorted)),
		span:   opts.Span,
		clamp:  opts.ClampToSpan,
		logger: opts.Logger,
	}
	for _, l := range sorted {
		s.byName[l.Name()] = l
	}
	s.cursor = s.initialCursor()
	for _, l := range sorted {
		l.Seek(s.cursor)
	}
	return s
}

func (s *Simulation) initialCursor() timeline.Stamp {
	if !s.span.IsZero() {
		return s.span.Start
	}
	for i, l := range s.layers {
		if c := l.Cursor(); i == 0 || c < s.cursor {
			s.cursor = c
		}
	}
	return s.cursor
}

// Load builds every layer of an export and assembles a simulation.
func Load(ex export.ExportV1, tune tuning.Tuning, logger *log.Logger) (*Simulation, error) {
	env, err := EnvFor(ex.Params, tune)
	if err != nil {
		return nil, err
	}
	layers := make([]layer.Layer, 0, len(ex.Layers))
	for _, name := range ex.LayerNames() {
		l, err := layer.New(name, ex.Layers[name], env)
		if err != nil {
			return nil, err
		}
		layers = append(layers, l)
	}
	return New(layers, Options{Span: env.Span, ClampToSpan: tune.Playback.ClampToSpan, Logger: logger}), nil
}

// EnvFor derives the layer build environment from export params.
func EnvFor(p export.Params, tune tuning.Tuning) (layer.Env, error) {
	bb := p.BoundingBox
	env := layer.Env{
		BBox: voxel.BBox{
			Min: voxel.Pos{X: bb[0][0], Y: bb[1][0], Z: bb[2][0]},
			Max: voxel.Pos{X: bb[0][1], Y: bb[1][1], Z: bb[2][1]},
		},
		Classifier: tune.Classifier(),
	}
	if len(tune.ChunkSize) == 3 {
		env.ChunkSize = voxel.Size{X: tune.ChunkSize[0], Y: tune.ChunkSize[1], Z: tune.ChunkSize[2]}
	}
	for i := 0; i < 3; i++ {
		if bb[i][1] < bb[i][0] {
			return env, fmt.Errorf("%w: bounding box axis %d is inverted", export.ErrMalformed, i)
		}
	}
	if len(p.Timespan) == 2 {
		start, err := timeline.ParseStamp(p.Timespan[0])
		if err != nil {
			return env, fmt.Errorf("%w: timespan start: %v", export.ErrMalformed, err)
		}
		end, err := timeline.ParseStamp(p.Timespan[1])
		if err != nil {
			return env, fmt.Errorf("%w: timespan end: %v", export.ErrMalformed, err)
		}
		if end < start {
			return env, fmt.Errorf("%w: timespan ends before it starts", export.ErrMalformed)
		}
		env.Span = timeline.Span{Start: start, End: end}
	}
	return env, nil
}

// OnSeek registers fn to run after every seek, under the seek lock.
func (s *Simulation) OnSeek(fn func(Frame)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Seek moves every layer to ts.
func (s *Simulation) Seek(ts timeline.Stamp) Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clamp {
		ts = s.span.Clamp(ts)
	}
	started := time.Now()
	f := Frame{From: s.cursor, To: ts, Layers: make(map[string]layer.Change, len(s.layers))}
	for _, l := range s.layers {
		ch := l.Seek(ts)
		f.Layers[l.Name()] = ch
		f.Ops += ch.Ops
		f.Chunks += ch.Chunks
		f.Changed = append(f.Changed, ch.Changed...)
	}
	s.cursor = ts
	s.seq++
	f.Seq = s.seq
	f.Duration = time.Since(started)

	if s.logger != nil && f.Chunks > 0 {
		s.logger.Printf("seek %s -> %s ops=%d chunks=%d took=%s", f.From, f.To, f.Ops, f.Chunks, f.Duration)
	}
	for _, fn := range s.observers {
		fn(f)
	}
	return f
}

func (s *Simulation) Cursor() timeline.Stamp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *Simulation) Span() timeline.Span { return s.span }

// LayerNames returns the layer names in sorted order.
func (s *Simulation) LayerNames() []string {
	out := make([]string, len(s.layers))
	for i, l := range s.layers {
		out[i] = l.Name()
	}
	return out
}

func (s *Simulation) Layer(name string) (layer.Layer, bool) {
	l, ok := s.byName[name]
	return l, ok
}

// Terrain returns the first terrain layer, if any.
func (s *Simulation) Terrain() (*layer.Terrain, bool) {
	for _, l := range s.layers {
		if t, ok := l.(*layer.Terrain); ok {
			return t, true
		}
	}
	return nil, false
}

// View runs fn with the current renderables while no seek can run.
func (s *Simulation) View(fn func(cursor timeline.Stamp, rs []layer.Renderable)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.cursor, s.renderablesLocked())
}

func (s *Simulation) Renderables() []layer.Renderable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderablesLocked()
}

func (s *Simulation) renderablesLocked() []layer.Renderable {
	var out []layer.Renderable
	for _, l := range s.layers {
		out = append(out, l.Renderables()...)
	}
	return out
}

// Digest identifies the full voxel state of every terrain layer.
func (s *Simulation) Digest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var d string
	for _, l := range s.layers {
		if t, ok := l.(*layer.Terrain); ok {
			d += t.Name() + ":" + t.World().Digest() + ";"
		}
	}
	return d
}

// ChunkVoxels copies one chunk's storage from the first terrain layer.
func (s *Simulation) ChunkVoxels(k voxel.ChunkKey) ([]palette.ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.Terrain()
	if !ok {
		return nil, false
	}
	c, ok := t.World().Chunk(k)
	if !ok {
		return nil, false
	}
	return c.Voxels(), true
}

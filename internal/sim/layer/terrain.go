package layer

import (
	"errors"
	"fmt"

	"voxelreplay.ai/internal/persistence/export"
	"voxelreplay.ai/internal/sim/palette"
	"voxelreplay.ai/internal/sim/timeline"
	"voxelreplay.ai/internal/sim/tuning"
	"voxelreplay.ai/internal/sim/voxel"
)

// Terrain replays voxel edits over a chunked world.
type Terrain struct {
	name   string
	world  *voxel.World
	cursor *timeline.Cursor[voxel.Pos, palette.ID]
}

func NewTerrain(name string, l export.LayerV1, env Env) (*Terrain, error) {
	t, err := l.Terrain()
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", name, err)
	}
	b, err := palette.NewBuilder(env.Classifier, t.Palette)
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", name, err)
	}

	ops := make([]voxel.Op, len(t.Ops))
	for i, o := range t.Ops {
		ts, err := parseStamp(name, i, o.TS)
		if err != nil {
			return nil, err
		}
		before, err := b.Intern(o.Before)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", name, err)
		}
		after, err := b.Intern(o.After)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", name, err)
		}
		ops[i] = voxel.Op{TS: ts, At: voxel.Pos{X: o.At[0], Y: o.At[1], Z: o.At[2]}, Before: before, After: after}
	}
	pal, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", name, err)
	}
	if err := timeline.CheckOrder(ops); err != nil {
		return nil, fmt.Errorf("layer %q: %w: %v", name, export.ErrMalformed, err)
	}

	planes := make([]voxel.Plane, len(t.Planes))
	for i, p := range t.Planes {
		planes[i] = voxel.Plane{Method: p.Method, Dense: p.Dense, Sparse: p.Sparse}
	}
	w, err := voxel.Build(pal, env.BBox, env.ChunkSize, planes, len(t.Palette), ops)
	if errors.Is(err, voxel.ErrBeforeMismatch) {
		return nil, fmt.Errorf("layer %q: %w: %v", name, export.ErrMalformed, err)
	}
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", name, err)
	}
	log, err := timeline.NewLog(ops)
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w: %v", name, export.ErrMalformed, err)
	}
	return &Terrain{
		name:   name,
		world:  w,
		cursor: timeline.NewCursor(log, timeline.StartOf(log, env.Span)),
	}, nil
}

func (t *Terrain) Name() string              { return t.name }
func (t *Terrain) Type() string              { return export.TypeTerrain }
func (t *Terrain) Cursor() timeline.Stamp    { return t.cursor.Position() }
func (t *Terrain) World() *voxel.World       { return t.world }
func (t *Terrain) Ops() int                  { return t.cursor.Log().Len() }
func (t *Terrain) Palette() *palette.Palette { return t.world.Palette() }

func (t *Terrain) Seek(ts timeline.Stamp) Change {
	ops := t.cursor.Seek(ts)
	if len(ops) == 0 {
		return Change{}
	}
	rebuilt := t.world.ApplyOps(ops)
	ch := Change{Ops: len(ops), Chunks: len(rebuilt), Changed: make([]string, 0, 2*len(rebuilt))}
	for _, c := range rebuilt {
		ch.Changed = append(ch.Changed, t.meshID(c.Key, tuning.AppearanceTerrain), t.meshID(c.Key, tuning.AppearanceWater))
	}
	return ch
}

func (t *Terrain) Renderables() []Renderable {
	chunks := t.world.Chunks()
	out := make([]Renderable, 0, 2*len(chunks))
	for _, c := range chunks {
		out = append(out,
			Renderable{
				ID:         t.meshID(c.Key, tuning.AppearanceTerrain),
				Layer:      t.name,
				Appearance: tuning.AppearanceTerrain,
				Kind:       KindMesh,
				Mesh:       c.Terrain(),
			},
			Renderable{
				ID:         t.meshID(c.Key, tuning.AppearanceWater),
				Layer:      t.name,
				Appearance: tuning.AppearanceWater,
				Kind:       KindMesh,
				Mesh:       c.Water(),
			})
	}
	return out
}

func (t *Terrain) meshID(k voxel.ChunkKey, appearance string) string {
	return fmt.Sprintf("%s/%s/%s", t.name, k, appearance)
}

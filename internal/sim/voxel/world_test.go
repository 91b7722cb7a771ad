package voxel

import (
	"errors"
	"testing"

	"voxelreplay.ai/internal/sim/palette"
	"voxelreplay.ai/internal/sim/timeline"
)

const (
	air   palette.ID = 0
	stone palette.ID = 1
	water palette.ID = 2
)

var smallSize = Size{X: 4, Y: 4, Z: 4}

func testPalette(t *testing.T) *palette.Palette {
	t.Helper()
	b, err := palette.NewBuilder(palette.DefaultClassifier(), []string{"minecraft:air", "minecraft:stone", "minecraft:water"})
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	p, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return p
}

func testWorld(t *testing.T, size Size) *World {
	t.Helper()
	return NewWorld(testPalette(t), BBox{Max: Pos{8, 4, 8}}, size)
}

func TestSingleSolidVoxel(t *testing.T) {
	w := testWorld(t, DefaultSize)
	w.SetVoxel(Pos{2, 3, 4}, stone)
	w.CreateMeshes()

	c, ok := w.Chunk(ChunkKey{})
	if !ok {
		t.Fatalf("chunk not created")
	}
	m := c.Terrain()
	if m.Faces() != 6 || m.Vertices() != 24 || m.Triangles() != 12 || len(m.Indices()) != 36 {
		t.Fatalf("faces=%d verts=%d tris=%d idx=%d", m.Faces(), m.Vertices(), m.Triangles(), len(m.Indices()))
	}
	if c.Water().Faces() != 0 {
		t.Fatalf("unexpected water faces %d", c.Water().Faces())
	}

	// first face is left; its first corner is (0,1,0) from the cell origin
	pos := m.Positions()
	if pos[0] != 2 || pos[1] != 4 || pos[2] != 4 {
		t.Fatalf("first vertex=(%v,%v,%v)", pos[0], pos[1], pos[2])
	}
	if n := m.Normals(); n[0] != -1 || n[1] != 0 || n[2] != 0 {
		t.Fatalf("first normal=%v", n[:3])
	}
	want := []uint32{0, 1, 2, 2, 1, 3, 4, 5, 6, 6, 5, 7}
	for i, v := range want {
		if m.Indices()[i] != v {
			t.Fatalf("index %d=%d want %d", i, m.Indices()[i], v)
		}
	}
}

func TestAdjacentVoxelsCullSharedFace(t *testing.T) {
	w := testWorld(t, DefaultSize)
	w.SetVoxel(Pos{1, 1, 1}, stone)
	w.SetVoxel(Pos{2, 1, 1}, stone)
	w.CreateMeshes()
	c, _ := w.Chunk(ChunkKey{})
	if got := c.Terrain().Faces(); got != 10 {
		t.Fatalf("faces=%d want 10", got)
	}
}

func TestWaterFacesAgainstSolid(t *testing.T) {
	w := testWorld(t, DefaultSize)
	w.SetVoxel(Pos{1, 1, 1}, stone)
	w.SetVoxel(Pos{2, 1, 1}, water)
	w.CreateMeshes()
	c, _ := w.Chunk(ChunkKey{})
	if c.Terrain().Faces() != 6 {
		t.Fatalf("terrain faces=%d want 6", c.Terrain().Faces())
	}
	if c.Water().Faces() != 6 {
		t.Fatalf("water faces=%d want 6", c.Water().Faces())
	}
}

func TestMissingChunkReadsVoid(t *testing.T) {
	w := testWorld(t, smallSize)
	if got := w.GetVoxel(Pos{-100, 5, 300}); got != w.Palette().Void() {
		t.Fatalf("got %d want void %d", got, w.Palette().Void())
	}
	if len(w.ChunkKeys()) != 0 {
		t.Fatalf("read must not create chunks")
	}
}

func TestChunkKeyNegativeCoords(t *testing.T) {
	s := smallSize
	if k := s.KeyOf(Pos{-1, 0, -5}); k != (ChunkKey{-1, 0, -2}) {
		t.Fatalf("key=%v", k)
	}
	if l := s.Local(Pos{-1, 0, -5}); l != (Pos{3, 0, 3}) {
		t.Fatalf("local=%v", l)
	}
}

func TestChunkSetOutOfBoundsPanics(t *testing.T) {
	w := testWorld(t, smallSize)
	w.SetVoxel(Pos{0, 0, 0}, stone)
	c, _ := w.Chunk(ChunkKey{})
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	c.SetVoxel(Pos{4, 0, 0}, stone)
}

func TestChunkGetOutOfBoundsDelegates(t *testing.T) {
	w := testWorld(t, smallSize)
	w.SetVoxel(Pos{0, 0, 0}, stone)
	w.SetVoxel(Pos{4, 0, 0}, water)
	c, _ := w.Chunk(ChunkKey{})
	if got := c.GetVoxel(Pos{4, 0, 0}); got != water {
		t.Fatalf("got %d want water", got)
	}
	if got := c.GetVoxel(Pos{0, 0, -1}); got != w.Palette().Void() {
		t.Fatalf("got %d want void", got)
	}
}

func TestBoundaryFacesAcrossChunks(t *testing.T) {
	w := testWorld(t, smallSize)
	w.SetVoxel(Pos{3, 0, 0}, stone)
	w.SetVoxel(Pos{4, 0, 0}, stone)
	w.CreateMeshes()
	a, _ := w.Chunk(ChunkKey{0, 0, 0})
	b, _ := w.Chunk(ChunkKey{1, 0, 0})
	if a.Terrain().Faces() != 5 || b.Terrain().Faces() != 5 {
		t.Fatalf("faces a=%d b=%d want 5/5", a.Terrain().Faces(), b.Terrain().Faces())
	}
}

func TestDenseAndSparseAgree(t *testing.T) {
	pal := testPalette(t)
	bbox := BBox{Min: Pos{-2, 10, 5}, Max: Pos{1, 12, 7}}
	// 3 wide, 2 tall, 2 deep
	dense := []Plane{
		{Method: EncodingDense, Dense: []int{1, 0, 2, 0, 1, 1}},
		{Method: EncodingDense, Dense: []int{0, 0, 0, 2, 2, 0}},
	}
	sparse := []Plane{
		{Method: EncodingSparse, Sparse: [][3]int{{0, 0, 1}, {0, 2, 2}, {1, 1, 1}, {1, 2, 1}}},
		{Method: EncodingSparse, Sparse: [][3]int{{1, 0, 2}, {1, 1, 2}}},
	}
	wd, err := Build(pal, bbox, smallSize, dense, 3, nil)
	if err != nil {
		t.Fatalf("dense: %v", err)
	}
	ws, err := Build(pal, bbox, smallSize, sparse, 3, nil)
	if err != nil {
		t.Fatalf("sparse: %v", err)
	}
	for y := bbox.Min.Y; y < bbox.Max.Y; y++ {
		for z := bbox.Min.Z; z < bbox.Max.Z; z++ {
			for x := bbox.Min.X; x < bbox.Max.X; x++ {
				p := Pos{x, y, z}
				if wd.Palette().IsSolid(wd.GetVoxel(p)) != ws.Palette().IsSolid(ws.GetVoxel(p)) ||
					wd.Palette().IsWater(wd.GetVoxel(p)) != ws.Palette().IsWater(ws.GetVoxel(p)) {
					t.Fatalf("mismatch at %s: dense=%d sparse=%d", p, wd.GetVoxel(p), ws.GetVoxel(p))
				}
			}
		}
	}
	dt, dw := wd.LiveFaces()
	st, sw := ws.LiveFaces()
	if dt != st || dw != sw {
		t.Fatalf("faces dense=%d/%d sparse=%d/%d", dt, dw, st, sw)
	}
	if got := wd.GetVoxel(Pos{-2, 10, 5}); got != stone {
		t.Fatalf("dense origin=%d want stone", got)
	}
}

func TestUnknownEncodingIsLoadError(t *testing.T) {
	_, err := Build(testPalette(t), BBox{Max: Pos{1, 1, 1}}, smallSize, []Plane{{Method: "rle"}}, 3, nil)
	if !errors.Is(err, ErrUnknownEncoding) {
		t.Fatalf("expected ErrUnknownEncoding, got %v", err)
	}
}

func TestBadMaterialIndexIsLoadError(t *testing.T) {
	_, err := Build(testPalette(t), BBox{Max: Pos{1, 1, 1}}, smallSize, []Plane{{Method: EncodingDense, Dense: []int{9}}}, 3, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestPrecomputeAfterChunksPanics(t *testing.T) {
	w := testWorld(t, smallSize)
	w.SetVoxel(Pos{}, stone)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	w.PrecomputeCapacities(nil)
}

func TestBoundaryOpRebuildsNeighbor(t *testing.T) {
	pal := testPalette(t)
	ops := []Op{{TS: 1, At: Pos{3, 0, 0}, Before: stone, After: air}}
	w := NewWorld(pal, BBox{Max: Pos{8, 4, 4}}, smallSize)
	w.PrecomputeCapacities(ops)
	w.SetVoxel(Pos{3, 0, 0}, stone)
	w.SetVoxel(Pos{4, 0, 0}, stone)
	w.EnsureChunks(ops)
	w.CreateMeshes()
	if w.OpBudget(ChunkKey{1, 0, 0}) != 1 || w.OpBudget(ChunkKey{-1, 0, 0}) != 0 {
		t.Fatalf("budgets: %d %d", w.OpBudget(ChunkKey{1, 0, 0}), w.OpBudget(ChunkKey{-1, 0, 0}))
	}

	rebuilt := w.ApplyOps(ops)
	if len(rebuilt) != 2 {
		t.Fatalf("rebuilt %d chunks want 2", len(rebuilt))
	}
	b, _ := w.Chunk(ChunkKey{1, 0, 0})
	if b.Terrain().Faces() != 6 {
		t.Fatalf("neighbor faces=%d want 6", b.Terrain().Faces())
	}
	a, _ := w.Chunk(ChunkKey{})
	if a.Terrain().Faces() != 0 {
		t.Fatalf("owner faces=%d want 0", a.Terrain().Faces())
	}
}

func TestCapacityBoundNeverExceeded(t *testing.T) {
	pal := testPalette(t)
	var ops []Op
	ts := int64(0)
	// fill then carve a 4x4x4 chunk in a checkerboard, all ops in one chunk
	for y := 0; y < 4; y++ {
		for z := 0; z < 4; z++ {
			for x := 0; x < 4; x++ {
				ts++
				ops = append(ops, Op{TS: timeline.Stamp(ts), At: Pos{x, y, z}, Before: air, After: stone})
			}
		}
	}
	for y := 0; y < 4; y++ {
		for z := 0; z < 4; z++ {
			for x := 0; x < 4; x++ {
				if (x+y+z)%2 == 0 {
					ts++
					ops = append(ops, Op{TS: timeline.Stamp(ts), At: Pos{x, y, z}, Before: stone, After: air})
				}
			}
		}
	}
	w, err := Build(pal, BBox{Max: Pos{4, 4, 4}}, smallSize, nil, 3, ops)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	c, _ := w.Chunk(ChunkKey{})
	initial := c.Terrain().Faces()
	bound := initial + len(ops)*12
	for _, op := range ops {
		w.ApplyOps([]Op{op})
		if f := c.Terrain().Faces(); f > bound || f > c.Terrain().Capacity() {
			t.Fatalf("faces=%d bound=%d capacity=%d", f, bound, c.Terrain().Capacity())
		}
	}
	if c.Terrain().Faces() == 0 {
		t.Fatalf("expected surviving faces")
	}
}

func TestRoundTripRestoresState(t *testing.T) {
	pal := testPalette(t)
	ops := []Op{
		{TS: 1, At: Pos{0, 0, 0}, Before: stone, After: air},
		{TS: 2, At: Pos{3, 1, 0}, Before: air, After: water},
		{TS: 3, At: Pos{4, 1, 0}, Before: air, After: stone},
		{TS: 4, At: Pos{0, 0, 0}, Before: air, After: water},
	}
	planes := []Plane{
		{Method: EncodingSparse, Sparse: [][3]int{{0, 0, 1}, {0, 1, 1}, {1, 0, 1}}},
		{Method: EncodingSparse, Sparse: [][3]int{{0, 2, 1}}},
	}
	w, err := Build(pal, BBox{Max: Pos{8, 2, 2}}, smallSize, planes, 3, ops)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	start := w.Digest()
	t0, w0 := w.LiveFaces()
	// (3,1,0) and (4,1,0) are unset in the snapshot and read as void
	if ops[1].Before != pal.Void() || ops[2].Before != pal.Void() {
		t.Fatalf("before not reconciled: %d %d want %d", ops[1].Before, ops[2].Before, pal.Void())
	}

	w.ApplyOps(ops)
	if w.Digest() == start {
		t.Fatalf("ops did not change state")
	}
	back := make([]Op, 0, len(ops))
	for i := len(ops) - 1; i >= 0; i-- {
		back = append(back, ops[i].Reverse())
	}
	w.ApplyOps(back)
	if w.Digest() != start {
		t.Fatalf("digest after round trip differs")
	}
	t1, w1 := w.LiveFaces()
	if t0 != t1 || w0 != w1 {
		t.Fatalf("faces before=%d/%d after=%d/%d", t0, w0, t1, w1)
	}
}

func TestReverseRestoresVoidCell(t *testing.T) {
	pal := testPalette(t)
	at := Pos{3, 1, 0}
	ops := []Op{{TS: 1, At: at, Before: air, After: stone}}
	w, err := Build(pal, BBox{Max: Pos{4, 2, 1}}, smallSize, nil, 3, ops)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	initial := w.GetVoxel(at)
	if initial != pal.Void() {
		t.Fatalf("initial=%q want void", pal.Material(initial))
	}
	w.ApplyOps(ops)
	w.ApplyOps([]Op{ops[0].Reverse()})
	if got := w.GetVoxel(at); got != initial {
		t.Fatalf("cell %v: initial=%q after round trip=%q", at, pal.Material(initial), pal.Material(got))
	}
}

func TestReconcileFollowsEarlierOps(t *testing.T) {
	pal := testPalette(t)
	at := Pos{1, 0, 0}
	ops := []Op{
		{TS: 1, At: at, Before: air, After: air},
		{TS: 2, At: at, Before: air, After: stone},
		{TS: 3, At: at, Before: stone, After: air},
	}
	w := NewWorld(pal, BBox{Max: Pos{4, 1, 1}}, smallSize)
	if err := w.ReconcileOps(ops); err != nil {
		t.Fatalf("ReconcileOps: %v", err)
	}
	// the first op writes real air, so the second sees air, not void
	if ops[0].Before != pal.Void() || ops[1].Before != air || ops[2].Before != stone {
		t.Fatalf("befores=%d,%d,%d", ops[0].Before, ops[1].Before, ops[2].Before)
	}
	if w.GetVoxel(at) != pal.Void() {
		t.Fatalf("reconcile wrote the world")
	}
}

func TestBuildRejectsBeforeMismatch(t *testing.T) {
	ops := []Op{{TS: 1, At: Pos{0, 0, 0}, Before: stone, After: air}}
	_, err := Build(testPalette(t), BBox{Max: Pos{1, 1, 1}}, smallSize, nil, 3, ops)
	if !errors.Is(err, ErrBeforeMismatch) {
		t.Fatalf("expected ErrBeforeMismatch, got %v", err)
	}
}

func TestRebuildZeroesStaleTail(t *testing.T) {
	pal := testPalette(t)
	ops := []Op{{TS: 1, At: Pos{1, 1, 1}, Before: stone, After: air}}
	w, err := Build(pal, BBox{Max: Pos{4, 4, 4}}, smallSize,
		[]Plane{{Method: EncodingSparse}, {Method: EncodingSparse, Sparse: [][3]int{{1, 1, 1}}}}, 3, ops)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	c, _ := w.Chunk(ChunkKey{})
	m := c.Terrain()
	full := m.positions[:6*floatsPerFace]
	w.ApplyOps(ops)
	if m.Faces() != 0 {
		t.Fatalf("faces=%d", m.Faces())
	}
	for i, v := range full {
		if v != 0 {
			t.Fatalf("stale position %d=%v", i, v)
		}
	}
}

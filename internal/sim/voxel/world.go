package voxel

import (
	"crypto/sha256"
	"encoding/hex"

	"voxelreplay.ai/internal/sim/palette"
	"voxelreplay.ai/internal/sim/timeline"
)

// Op is a voxel edit: the material at a position before and after TS.
type Op = timeline.Op[Pos, palette.ID]

// World partitions voxel space into chunks and routes reads, writes and ops
// to the chunk that owns each position.
type World struct {
	bbox BBox
	size Size
	pal  *palette.Palette

	budgets map[ChunkKey]int
	chunks  map[ChunkKey]*Chunk
	meshed  bool
}

func NewWorld(pal *palette.Palette, bbox BBox, size Size) *World {
	if !size.Valid() {
		size = DefaultSize
	}
	return &World{
		bbox:    bbox,
		size:    size,
		pal:     pal,
		budgets: map[ChunkKey]int{},
		chunks:  map[ChunkKey]*Chunk{},
	}
}

func (w *World) BBox() BBox                { return w.bbox }
func (w *World) ChunkSize() Size           { return w.size }
func (w *World) Palette() *palette.Palette { return w.pal }

// PrecomputeCapacities counts, per chunk coordinate, the ops that can change
// that chunk's surfaces. It must run before any chunk exists, since chunks
// take their op budget at construction.
func (w *World) PrecomputeCapacities(ops []Op) {
	if len(w.chunks) != 0 {
		panic("voxel: capacities computed after chunks were created")
	}
	for _, op := range ops {
		for _, k := range w.affected(op.At) {
			w.budgets[k]++
		}
	}
}

// OpBudget returns the precomputed op count for a chunk.
func (w *World) OpBudget(k ChunkKey) int { return w.budgets[k] }

// affected returns the chunk owning p followed by the chunks across every
// chunk face p lies on. Neighbor faces of those chunks depend on p.
func (w *World) affected(p Pos) []ChunkKey {
	owner := w.size.KeyOf(p)
	out := []ChunkKey{owner}
	l := w.size.Local(p)
	if l.X == 0 {
		out = append(out, ChunkKey{owner.CX - 1, owner.CY, owner.CZ})
	}
	if l.X == w.size.X-1 {
		out = append(out, ChunkKey{owner.CX + 1, owner.CY, owner.CZ})
	}
	if l.Y == 0 {
		out = append(out, ChunkKey{owner.CX, owner.CY - 1, owner.CZ})
	}
	if l.Y == w.size.Y-1 {
		out = append(out, ChunkKey{owner.CX, owner.CY + 1, owner.CZ})
	}
	if l.Z == 0 {
		out = append(out, ChunkKey{owner.CX, owner.CY, owner.CZ - 1})
	}
	if l.Z == w.size.Z-1 {
		out = append(out, ChunkKey{owner.CX, owner.CY, owner.CZ + 1})
	}
	return out
}

// Chunk returns the chunk at k, if it exists.
func (w *World) Chunk(k ChunkKey) (*Chunk, bool) {
	c, ok := w.chunks[k]
	return c, ok
}

func (w *World) getOrCreateChunk(p Pos) *Chunk {
	k := w.size.KeyOf(p)
	if c, ok := w.chunks[k]; ok {
		return c
	}
	c := newChunk(w, k, w.budgets[k])
	w.chunks[k] = c
	if w.meshed {
		c.CreateMeshes()
	}
	return c
}

// GetVoxel returns the material at p. Positions in chunks that were never
// created read as void.
func (w *World) GetVoxel(p Pos) palette.ID {
	c, ok := w.chunks[w.size.KeyOf(p)]
	if !ok {
		return w.pal.Void()
	}
	return c.voxels[c.index(w.size.Local(p))]
}

// SetVoxel writes p, creating its chunk when needed. Meshes are not rebuilt.
func (w *World) SetVoxel(p Pos, id palette.ID) {
	w.getOrCreateChunk(p).SetVoxel(p, id)
}

// EnsureChunks creates the owning chunk of every op position so that edits
// into empty space have a mesh to land in.
func (w *World) EnsureChunks(ops []Op) {
	for _, op := range ops {
		w.getOrCreateChunk(op.At)
	}
}

// ChunkKeys returns the existing chunk coordinates in sorted order.
func (w *World) ChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(w.chunks))
	for k := range w.chunks {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func (w *World) Chunks() []*Chunk {
	keys := w.ChunkKeys()
	out := make([]*Chunk, len(keys))
	for i, k := range keys {
		out[i] = w.chunks[k]
	}
	return out
}

// CreateMeshes builds the surfaces of every chunk. Chunks created later get
// their meshes on creation.
func (w *World) CreateMeshes() {
	for _, c := range w.Chunks() {
		c.CreateMeshes()
	}
	w.meshed = true
}

// ApplyOps writes every op into its owning chunk, then rebuilds each chunk
// whose surfaces the ops can change, including boundary neighbors. It
// returns the rebuilt chunks in key order.
func (w *World) ApplyOps(ops []Op) []*Chunk {
	if len(ops) == 0 {
		return nil
	}
	keys, groups := w.groupByChunk(ops)
	dirty := map[ChunkKey]bool{}
	for _, k := range keys {
		c, ok := w.chunks[k]
		if !ok {
			c = w.getOrCreateChunk(w.size.Origin(k))
		}
		c.applyOps(groups[k])
		dirty[k] = true
	}
	for _, op := range ops {
		for _, k := range w.affected(op.At)[1:] {
			if _, ok := w.chunks[k]; ok {
				dirty[k] = true
			}
		}
	}
	rebuilt := make([]ChunkKey, 0, len(dirty))
	for k := range dirty {
		rebuilt = append(rebuilt, k)
	}
	sortKeys(rebuilt)
	out := make([]*Chunk, len(rebuilt))
	for i, k := range rebuilt {
		c := w.chunks[k]
		c.rebuild()
		out[i] = c
	}
	return out
}

// groupByChunk partitions ops by owning chunk, keeping log order within
// each partition.
func (w *World) groupByChunk(ops []Op) ([]ChunkKey, map[ChunkKey][]Op) {
	groups := map[ChunkKey][]Op{}
	var keys []ChunkKey
	for _, op := range ops {
		k := w.size.KeyOf(op.At)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], op)
	}
	sortKeys(keys)
	return keys, groups
}

// LiveFaces sums the live face counts of all terrain and water meshes.
func (w *World) LiveFaces() (terrain, water int) {
	for _, c := range w.chunks {
		if c.terrain != nil {
			terrain += c.terrain.Faces()
			water += c.water.Faces()
		}
	}
	return terrain, water
}

// Digest hashes every chunk's storage in key order.
func (w *World) Digest() string {
	h := sha256.New()
	for _, c := range w.Chunks() {
		d := c.Digest()
		h.Write([]byte(c.Key.String()))
		h.Write(d[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

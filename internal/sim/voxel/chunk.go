package voxel

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"voxelreplay.ai/internal/sim/palette"
)

// Chunk owns a dense block of palette IDs and the two meshes derived from it.
type Chunk struct {
	Key    ChunkKey
	origin Pos
	size   Size
	world  *World

	voxels []palette.ID

	// opBudget is the number of ops that can touch this chunk over the
	// session, fixed before the chunk exists.
	opBudget int

	terrain *Mesh
	water   *Mesh

	version uint64
	dirty   bool
	hash    [32]byte
}

func newChunk(w *World, key ChunkKey, opBudget int) *Chunk {
	c := &Chunk{
		Key:      key,
		origin:   w.size.Origin(key),
		size:     w.size,
		world:    w,
		voxels:   make([]palette.ID, w.size.Volume()),
		opBudget: opBudget,
		dirty:    true,
	}
	if void := w.pal.Void(); void != 0 {
		for i := range c.voxels {
			c.voxels[i] = void
		}
	}
	return c
}

func (c *Chunk) Origin() Pos { return c.origin }

func (c *Chunk) OpBudget() int { return c.opBudget }

// Version increases every time the chunk's meshes are rebuilt.
func (c *Chunk) Version() uint64 { return c.version }

func (c *Chunk) Terrain() *Mesh { return c.terrain }
func (c *Chunk) Water() *Mesh   { return c.water }

func (c *Chunk) Contains(p Pos) bool {
	l := p.Sub(c.origin)
	return l.X >= 0 && l.X < c.size.X &&
		l.Y >= 0 && l.Y < c.size.Y &&
		l.Z >= 0 && l.Z < c.size.Z
}

// index lays cells out y-major, then z, then x, matching extraction order.
func (c *Chunk) index(l Pos) int {
	return l.X + c.size.X*(l.Z+c.size.Z*l.Y)
}

// GetVoxel reads a world position. Positions outside the chunk are answered
// by the world.
func (c *Chunk) GetVoxel(p Pos) palette.ID {
	if !c.Contains(p) {
		return c.world.GetVoxel(p)
	}
	return c.voxels[c.index(p.Sub(c.origin))]
}

// SetVoxel writes a world position that must lie inside the chunk.
func (c *Chunk) SetVoxel(p Pos, id palette.ID) {
	if !c.Contains(p) {
		panic(fmt.Sprintf("voxel: set %s outside chunk %s", p, c.Key))
	}
	i := c.index(p.Sub(c.origin))
	if c.voxels[i] == id {
		return
	}
	c.voxels[i] = id
	c.dirty = true
}

// Voxels returns a copy of the chunk storage in y, z, x order.
func (c *Chunk) Voxels() []palette.ID {
	return append([]palette.ID(nil), c.voxels...)
}

// CreateMeshes extracts both surfaces and allocates their buffers at the
// initial face count plus the worst case for every op budgeted here.
func (c *Chunk) CreateMeshes() {
	pal := c.world.pal
	reserve := c.opBudget * MaxFacesPerOp
	c.terrain = newMesh(palette.ClassSolid, c.countFaces(pal.IsSolid)+reserve)
	c.water = newMesh(palette.ClassWater, c.countFaces(pal.IsWater)+reserve)
	c.rebuild()
}

// UpdateGeometries applies each op's after-material, then re-extracts both
// surfaces in place.
func (c *Chunk) UpdateGeometries(ops []Op) {
	c.applyOps(ops)
	c.rebuild()
}

func (c *Chunk) applyOps(ops []Op) {
	for _, op := range ops {
		c.SetVoxel(op.At, op.After)
	}
}

func (c *Chunk) rebuild() {
	if c.terrain == nil {
		return
	}
	pal := c.world.pal
	c.terrain.rebuild(func(add func(Pos, *Face)) { c.extract(pal.IsSolid, add) })
	c.water.rebuild(func(add func(Pos, *Face)) { c.extract(pal.IsWater, add) })
	c.version++
}

func (c *Chunk) countFaces(match func(palette.ID) bool) int {
	n := 0
	c.extract(match, func(Pos, *Face) { n++ })
	return n
}

// extract emits every face of a matching cell whose neighbor does not match.
func (c *Chunk) extract(match func(palette.ID) bool, add func(Pos, *Face)) {
	i := 0
	for y := 0; y < c.size.Y; y++ {
		for z := 0; z < c.size.Z; z++ {
			for x := 0; x < c.size.X; x++ {
				id := c.voxels[i]
				i++
				if !match(id) {
					continue
				}
				cell := Pos{c.origin.X + x, c.origin.Y + y, c.origin.Z + z}
				for f := range Faces {
					face := &Faces[f]
					if !match(c.GetVoxel(cell.Add(face.Dir))) {
						add(cell, face)
					}
				}
			}
		}
	}
}

// Digest is the sha256 of the chunk storage as little-endian uint16.
func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		buf := make([]byte, 2*len(c.voxels))
		for i, v := range c.voxels {
			binary.LittleEndian.PutUint16(buf[2*i:], uint16(v))
		}
		h.Write(buf)
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

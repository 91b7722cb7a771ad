package voxel

import (
	"fmt"

	"voxelreplay.ai/internal/sim/palette"
)

// Mesh is a fixed-capacity surface buffer for one material class of one
// chunk. The backing arrays are allocated once; rebuilding overwrites the
// live prefix and zeroes whatever the previous build used beyond it.
type Mesh struct {
	Class palette.Class

	positions []float32
	normals   []float32
	indices   []uint32

	faces    int
	capacity int
}

func newMesh(class palette.Class, capacity int) *Mesh {
	return &Mesh{
		Class:     class,
		positions: make([]float32, capacity*floatsPerFace),
		normals:   make([]float32, capacity*floatsPerFace),
		indices:   make([]uint32, capacity*indicesPerFace),
		capacity:  capacity,
	}
}

// Capacity is the number of faces the buffers can hold.
func (m *Mesh) Capacity() int { return m.capacity }

// Faces is the number of live faces.
func (m *Mesh) Faces() int { return m.faces }

func (m *Mesh) Vertices() int  { return m.faces * vertsPerFace }
func (m *Mesh) Triangles() int { return m.faces * 2 }

// Positions returns the live prefix of the position buffer (xyz per vertex).
// The slice aliases the mesh and is only valid until the next rebuild.
func (m *Mesh) Positions() []float32 { return m.positions[:m.faces*floatsPerFace] }

// Normals returns the live prefix of the normal buffer.
func (m *Mesh) Normals() []float32 { return m.normals[:m.faces*floatsPerFace] }

// Indices returns the live prefix of the triangle index list.
func (m *Mesh) Indices() []uint32 { return m.indices[:m.faces*indicesPerFace] }

// rebuild runs emit, which must call add once per visible face.
func (m *Mesh) rebuild(emit func(add func(cell Pos, f *Face))) {
	prev := m.faces
	m.faces = 0
	emit(m.add)
	if m.faces < prev {
		clear(m.positions[m.faces*floatsPerFace : prev*floatsPerFace])
		clear(m.normals[m.faces*floatsPerFace : prev*floatsPerFace])
		clear(m.indices[m.faces*indicesPerFace : prev*indicesPerFace])
	}
}

func (m *Mesh) add(cell Pos, f *Face) {
	if m.faces >= m.capacity {
		panic(fmt.Sprintf("voxel: %s mesh capacity %d exceeded at %s", m.Class, m.capacity, cell))
	}
	p := m.faces * floatsPerFace
	for _, c := range f.Corners {
		m.positions[p] = float32(cell.X) + c.X()
		m.positions[p+1] = float32(cell.Y) + c.Y()
		m.positions[p+2] = float32(cell.Z) + c.Z()
		m.normals[p] = f.Normal.X()
		m.normals[p+1] = f.Normal.Y()
		m.normals[p+2] = f.Normal.Z()
		p += 3
	}
	base := uint32(m.faces * vertsPerFace)
	ix := m.faces * indicesPerFace
	for i, q := range quadIndices {
		m.indices[ix+i] = base + q
	}
	m.faces++
}

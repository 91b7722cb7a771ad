package voxel

import (
	"fmt"
	"sort"
)

// Pos is a world-space voxel coordinate.
type Pos struct {
	X, Y, Z int
}

func (p Pos) Add(q Pos) Pos { return Pos{p.X + q.X, p.Y + q.Y, p.Z + q.Z} }
func (p Pos) Sub(q Pos) Pos { return Pos{p.X - q.X, p.Y - q.Y, p.Z - q.Z} }

func (p Pos) String() string { return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z) }

// ChunkKey addresses a chunk: floor(pos / chunk size) per axis.
type ChunkKey struct {
	CX, CY, CZ int
}

func (k ChunkKey) String() string { return fmt.Sprintf("%d,%d,%d", k.CX, k.CY, k.CZ) }

func (k ChunkKey) Less(o ChunkKey) bool {
	if k.CX != o.CX {
		return k.CX < o.CX
	}
	if k.CY != o.CY {
		return k.CY < o.CY
	}
	return k.CZ < o.CZ
}

func sortKeys(keys []ChunkKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

// Size is the extent of one chunk, in voxels.
type Size struct {
	X, Y, Z int
}

var DefaultSize = Size{X: 16, Y: 256, Z: 16}

func (s Size) Volume() int { return s.X * s.Y * s.Z }

func (s Size) Valid() bool { return s.X > 0 && s.Y > 0 && s.Z > 0 }

// KeyOf returns the chunk containing p.
func (s Size) KeyOf(p Pos) ChunkKey {
	return ChunkKey{floorDiv(p.X, s.X), floorDiv(p.Y, s.Y), floorDiv(p.Z, s.Z)}
}

// Origin is the world position of a chunk's (0,0,0) cell.
func (s Size) Origin(k ChunkKey) Pos {
	return Pos{k.CX * s.X, k.CY * s.Y, k.CZ * s.Z}
}

// Local returns p relative to its own chunk origin.
func (s Size) Local(p Pos) Pos {
	return Pos{mod(p.X, s.X), mod(p.Y, s.Y), mod(p.Z, s.Z)}
}

// BBox is an inclusive-min, exclusive-max voxel box.
type BBox struct {
	Min, Max Pos
}

func (b BBox) Size() Pos { return b.Max.Sub(b.Min) }

func (b BBox) Contains(p Pos) bool {
	return p.X >= b.Min.X && p.X < b.Max.X &&
		p.Y >= b.Min.Y && p.Y < b.Max.Y &&
		p.Z >= b.Min.Z && p.Z < b.Max.Z
}

func floorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

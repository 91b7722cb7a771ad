package voxel

import "github.com/go-gl/mathgl/mgl32"

// Face is one side of the unit cube.
type Face struct {
	Name    string
	Dir     Pos
	Normal  mgl32.Vec3
	Corners [4]mgl32.Vec3
}

// Faces is the canonical face table. Order matters: extraction walks faces
// in this order and the corner order fixes the triangle winding.
var Faces = [6]Face{
	{
		Name:    "left",
		Dir:     Pos{-1, 0, 0},
		Normal:  mgl32.Vec3{-1, 0, 0},
		Corners: [4]mgl32.Vec3{{0, 1, 0}, {0, 0, 0}, {0, 1, 1}, {0, 0, 1}},
	},
	{
		Name:    "right",
		Dir:     Pos{1, 0, 0},
		Normal:  mgl32.Vec3{1, 0, 0},
		Corners: [4]mgl32.Vec3{{1, 1, 1}, {1, 0, 1}, {1, 1, 0}, {1, 0, 0}},
	},
	{
		Name:    "bottom",
		Dir:     Pos{0, -1, 0},
		Normal:  mgl32.Vec3{0, -1, 0},
		Corners: [4]mgl32.Vec3{{1, 0, 1}, {0, 0, 1}, {1, 0, 0}, {0, 0, 0}},
	},
	{
		Name:    "top",
		Dir:     Pos{0, 1, 0},
		Normal:  mgl32.Vec3{0, 1, 0},
		Corners: [4]mgl32.Vec3{{0, 1, 1}, {1, 1, 1}, {0, 1, 0}, {1, 1, 0}},
	},
	{
		Name:    "back",
		Dir:     Pos{0, 0, -1},
		Normal:  mgl32.Vec3{0, 0, -1},
		Corners: [4]mgl32.Vec3{{1, 0, 0}, {0, 0, 0}, {1, 1, 0}, {0, 1, 0}},
	},
	{
		Name:    "front",
		Dir:     Pos{0, 0, 1},
		Normal:  mgl32.Vec3{0, 0, 1},
		Corners: [4]mgl32.Vec3{{0, 0, 1}, {1, 0, 1}, {0, 1, 1}, {1, 1, 1}},
	},
}

// quadIndices triangulates a face's 4 corners relative to its first vertex.
var quadIndices = [6]uint32{0, 1, 2, 2, 1, 3}

const (
	vertsPerFace   = 4
	indicesPerFace = 6
	floatsPerFace  = vertsPerFace * 3

	// MaxFacesPerOp bounds how many faces a single voxel edit can add to one
	// mesh: the cell's own 6 faces, or the 6 neighbor faces it uncovers.
	MaxFacesPerOp = 6
)

package voxel

import (
	"errors"
	"fmt"

	"voxelreplay.ai/internal/sim/palette"
)

var (
	ErrUnknownEncoding = errors.New("unknown snapshot encoding")
	ErrBeforeMismatch  = errors.New("op before-material does not match world")
)

const (
	EncodingDense  = "dense"
	EncodingSparse = "sparse"
)

// Plane is one Y layer of the initial snapshot, relative to the bounding
// box minimum. Dense cells are indexed z*sizeX+x; sparse cells are
// (z, x, material) triples.
type Plane struct {
	Method string
	Dense  []int
	Sparse [][3]int
}

// BuildInitialState writes the snapshot planes into the world. Indices
// refer to the snapshot palette, which is a prefix of the world palette.
// Cells holding the void material are left unset.
func (w *World) BuildInitialState(planes []Plane, snapshotPaletteLen int) error {
	ext := w.bbox.Size()
	void := w.pal.Void()
	material := func(m int) (palette.ID, error) {
		if m < 0 || m >= snapshotPaletteLen {
			return 0, fmt.Errorf("material index %d outside palette of %d", m, snapshotPaletteLen)
		}
		return palette.ID(m), nil
	}
	for y, pl := range planes {
		switch pl.Method {
		case EncodingDense:
			if want := ext.X * ext.Z; len(pl.Dense) != want {
				return fmt.Errorf("plane %d: dense length %d, want %d", y, len(pl.Dense), want)
			}
			for z := 0; z < ext.Z; z++ {
				for x := 0; x < ext.X; x++ {
					id, err := material(pl.Dense[z*ext.X+x])
					if err != nil {
						return fmt.Errorf("plane %d: %w", y, err)
					}
					if id == void {
						continue
					}
					w.SetVoxel(w.bbox.Min.Add(Pos{x, y, z}), id)
				}
			}
		case EncodingSparse:
			for _, cell := range pl.Sparse {
				z, x := cell[0], cell[1]
				if x < 0 || x >= ext.X || z < 0 || z >= ext.Z {
					return fmt.Errorf("plane %d: sparse cell (z=%d,x=%d) outside bounding box", y, z, x)
				}
				id, err := material(cell[2])
				if err != nil {
					return fmt.Errorf("plane %d: %w", y, err)
				}
				if id == void {
					continue
				}
				w.SetVoxel(w.bbox.Min.Add(Pos{x, y, z}), id)
			}
		default:
			return fmt.Errorf("plane %d: %w %q", y, ErrUnknownEncoding, pl.Method)
		}
	}
	return nil
}

// ReconcileOps walks ops in order over the current state without writing
// it and sets each op's Before to the material actually present, so that
// reversing an op restores the exact cell. Exports record unset cells as
// air while the world holds void there; mismatches between two air-class
// materials are rewritten, any other mismatch is an error. ops must be
// ordered by timestamp.
func (w *World) ReconcileOps(ops []Op) error {
	cur := make(map[Pos]palette.ID, len(ops))
	for i := range ops {
		op := &ops[i]
		have, ok := cur[op.At]
		if !ok {
			have = w.GetVoxel(op.At)
		}
		if have != op.Before {
			if !w.pal.IsAir(have) || !w.pal.IsAir(op.Before) {
				return fmt.Errorf("op %d at %v: %w: recorded %q, found %q",
					i, op.At, ErrBeforeMismatch, w.pal.Material(op.Before), w.pal.Material(have))
			}
			op.Before = have
		}
		cur[op.At] = op.After
	}
	return nil
}

// Build assembles a meshed world: capacities first, then the snapshot,
// then op reconciliation, then a chunk for every op target, then meshes.
// ops must be ordered by timestamp; their Before fields are rewritten in
// place by ReconcileOps.
func Build(pal *palette.Palette, bbox BBox, size Size, planes []Plane, snapshotPaletteLen int, ops []Op) (*World, error) {
	w := NewWorld(pal, bbox, size)
	w.PrecomputeCapacities(ops)
	if err := w.BuildInitialState(planes, snapshotPaletteLen); err != nil {
		return nil, err
	}
	if err := w.ReconcileOps(ops); err != nil {
		return nil, err
	}
	w.EnsureChunks(ops)
	w.CreateMeshes()
	return w, nil
}

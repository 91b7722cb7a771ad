package layer

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"voxelreplay.ai/internal/persistence/export"
	"voxelreplay.ai/internal/sim/palette"
	"voxelreplay.ai/internal/sim/timeline"
	"voxelreplay.ai/internal/sim/voxel"
)

var ErrUnknownKind = errors.New("unknown layer type")

// Layer is one timeline-addressable slice of the scene. All layer kinds
// share the same seek contract: after Seek(ts) the renderables reflect the
// state at ts.
type Layer interface {
	Name() string
	Type() string
	Cursor() timeline.Stamp
	Seek(ts timeline.Stamp) Change
	Renderables() []Renderable
}

// Change summarizes one seek of one layer.
type Change struct {
	Ops     int
	Chunks  int
	Changed []string
}

// Env carries the export-wide parameters every layer is built against.
type Env struct {
	BBox       voxel.BBox
	ChunkSize  voxel.Size
	Span       timeline.Span
	Classifier palette.Classifier
}

// New builds the layer variant named by l.Type.
func New(name string, l export.LayerV1, env Env) (Layer, error) {
	switch l.Type {
	case export.TypeTerrain:
		return NewTerrain(name, l, env)
	case export.TypePlayers:
		return NewPlayers(name, l, env)
	case export.TypeJVA:
		return NewJVA(name, l, env)
	default:
		return nil, fmt.Errorf("layer %q: %w %q", name, ErrUnknownKind, l.Type)
	}
}

type Kind string

const (
	KindMesh   Kind = "mesh"
	KindMarker Kind = "marker"
)

// Renderable is what the renderer draws. Mesh and Marker point at state the
// layer mutates in place on every seek.
type Renderable struct {
	ID         string
	Layer      string
	Appearance string
	Kind       Kind
	Mesh       *voxel.Mesh
	Marker     *Marker
}

type Shape string

const (
	ShapeCylinder Shape = "cylinder"
	// ShapeGaze is a truncated cone running from z=0 to z=1 along +z.
	ShapeGaze   Shape = "gaze"
	ShapeSphere Shape = "sphere"
)

// Marker is a fixed geometry placed by a transform.
type Marker struct {
	Shape Shape
	// RadiusStart and RadiusEnd are the radii at the two ends of the shape
	// axis; a sphere uses RadiusStart only.
	RadiusStart float32
	RadiusEnd   float32
	Height      float32

	Transform mgl32.Mat4
	Visible   bool
}

func (m *Marker) Position() mgl32.Vec3 { return m.Transform.Col(3).Vec3() }

func parseStamp(layer string, i int, s string) (timeline.Stamp, error) {
	ts, err := timeline.ParseStamp(s)
	if err != nil {
		return 0, fmt.Errorf("%w: layer %q op %d: %v", export.ErrMalformed, layer, i, err)
	}
	return ts, nil
}

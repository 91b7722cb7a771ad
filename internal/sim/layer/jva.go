package layer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"voxelreplay.ai/internal/persistence/export"
	"voxelreplay.ai/internal/sim/tuning"
)

const jvaRadius = 0.5

// JVA shows joint visual attention points as spheres that appear while two
// players look at the same place.
type JVA struct {
	*collection[export.JVAStateV1]
}

func NewJVA(name string, l export.LayerV1, env Env) (*JVA, error) {
	e, err := export.DecodeEntities[export.JVAStateV1](l)
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", name, err)
	}
	c, err := newCollection(name, export.TypeJVA, e, env.Span,
		func() ([]*Marker, []string) {
			return []*Marker{{Shape: ShapeSphere, RadiusStart: jvaRadius, RadiusEnd: jvaRadius}}, []string{tuning.AppearanceJVA}
		},
		func(s export.JVAStateV1, m []*Marker) {
			p := vec3(s.Position)
			m[0].Transform = mgl32.Translate3D(p.X(), p.Y(), p.Z())
			m[0].Visible = s.Visible
		})
	if err != nil {
		return nil, err
	}
	return &JVA{collection: c}, nil
}

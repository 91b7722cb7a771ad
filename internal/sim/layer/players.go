package layer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"voxelreplay.ai/internal/persistence/export"
	"voxelreplay.ai/internal/sim/tuning"
)

const (
	playerHeight     = 2
	playerRadius     = 0.5
	playerEyeHeight  = 1.75
	gazeRadiusEye    = 0.1
	gazeRadiusTarget = 0.2
	gazeTargetLift   = 0.5
)

// Players draws each player as a body cylinder and a gaze cone from the
// eye towards the block the player is looking at.
type Players struct {
	*collection[export.PlayerStateV1]
}

func NewPlayers(name string, l export.LayerV1, env Env) (*Players, error) {
	e, err := export.DecodeEntities[export.PlayerStateV1](l)
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", name, err)
	}
	c, err := newCollection(name, export.TypePlayers, e, env.Span, playerMarkers, placePlayer)
	if err != nil {
		return nil, err
	}
	return &Players{collection: c}, nil
}

func playerMarkers() ([]*Marker, []string) {
	body := &Marker{Shape: ShapeCylinder, RadiusStart: playerRadius, RadiusEnd: playerRadius, Height: playerHeight, Visible: true}
	gaze := &Marker{Shape: ShapeGaze, RadiusStart: gazeRadiusEye, RadiusEnd: gazeRadiusTarget, Height: 1, Visible: true}
	return []*Marker{body, gaze}, []string{tuning.AppearancePlayerBody, tuning.AppearancePlayerGaze}
}

func placePlayer(s export.PlayerStateV1, m []*Marker) {
	pos := vec3(s.Position)
	m[0].Transform = mgl32.Translate3D(pos.X(), pos.Y()+1, pos.Z())
	m[1].Transform = GazeTransform(pos, vec3(s.EyeTarget))
}

// GazeTransform places a unit gaze cone at the player's eye, pointing at
// the lifted target and stretched to reach it.
func GazeTransform(pos, target mgl32.Vec3) mgl32.Mat4 {
	eye := pos.Add(mgl32.Vec3{0, playerEyeHeight, 0})
	aim := target.Add(mgl32.Vec3{0, gazeTargetLift, 0})
	d := aim.Sub(eye)
	dist := d.Len()
	rot := mgl32.Ident4()
	if dist > 1e-6 {
		rot = mgl32.QuatBetweenVectors(mgl32.Vec3{0, 0, 1}, d.Mul(1/dist)).Mat4()
	}
	return mgl32.Translate3D(eye.X(), eye.Y(), eye.Z()).Mul4(rot).Mul4(mgl32.Scale3D(1, 1, dist))
}

func vec3(v [3]float64) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}

package viewer

import (
	"voxelreplay.ai/internal/sim/encoding"
	"voxelreplay.ai/internal/sim/layer"
	"voxelreplay.ai/internal/viewerproto"
)

// objectFor snapshots r into wire form. The caller must hold the
// simulation still: mesh buffers are read in place.
func objectFor(r layer.Renderable) viewerproto.Object {
	o := viewerproto.Object{
		ID:         r.ID,
		Layer:      r.Layer,
		Appearance: r.Appearance,
		Kind:       string(r.Kind),
	}
	switch {
	case r.Mesh != nil:
		o.Mesh = &viewerproto.MeshBuffers{
			Vertices:  r.Mesh.Vertices(),
			Triangles: r.Mesh.Triangles(),
			Positions: encoding.EncodeF32LE(r.Mesh.Positions()),
			Normals:   encoding.EncodeF32LE(r.Mesh.Normals()),
			Indices:   encoding.EncodeU32LE(r.Mesh.Indices()),
		}
	case r.Marker != nil:
		m := r.Marker
		o.Marker = &viewerproto.MarkerState{
			Shape:       string(m.Shape),
			RadiusStart: m.RadiusStart,
			RadiusEnd:   m.RadiusEnd,
			Height:      m.Height,
			Transform:   [16]float32(m.Transform),
			Visible:     m.Visible,
		}
	}
	return o
}

func objectsFor(rs []layer.Renderable) []viewerproto.Object {
	out := make([]viewerproto.Object, len(rs))
	for i, r := range rs {
		out[i] = objectFor(r)
	}
	return out
}

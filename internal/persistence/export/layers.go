package export

import (
	"encoding/json"
	"fmt"
)

// Layer type tags.
const (
	TypeTerrain = "terrain"
	TypePlayers = "players"
	TypeJVA     = "jva"
)

// PlaneV1 is one Y layer of the terrain snapshot: [method, payload].
type PlaneV1 struct {
	Method string
	Dense  []int
	Sparse [][3]int
}

func (p *PlaneV1) UnmarshalJSON(b []byte) error {
	var tup []json.RawMessage
	if err := json.Unmarshal(b, &tup); err != nil {
		return err
	}
	if len(tup) != 2 {
		return fmt.Errorf("plane: want [method, payload], got %d elements", len(tup))
	}
	if err := json.Unmarshal(tup[0], &p.Method); err != nil {
		return fmt.Errorf("plane method: %w", err)
	}
	switch p.Method {
	case "dense":
		return json.Unmarshal(tup[1], &p.Dense)
	case "sparse":
		return json.Unmarshal(tup[1], &p.Sparse)
	default:
		// Unknown methods are rejected when the world is built.
		return nil
	}
}

func (p PlaneV1) MarshalJSON() ([]byte, error) {
	var payload any
	switch {
	case p.Method == "sparse" && p.Sparse != nil:
		payload = p.Sparse
	case p.Method == "sparse":
		payload = [][3]int{}
	case p.Dense != nil:
		payload = p.Dense
	default:
		payload = []int{}
	}
	return json.Marshal([]any{p.Method, payload})
}

// VoxelOpV1 is [timestamp, [x,y,z], before, after].
type VoxelOpV1 struct {
	TS     string
	At     [3]int
	Before string
	After  string
}

func (o *VoxelOpV1) UnmarshalJSON(b []byte) error {
	var tup []json.RawMessage
	if err := json.Unmarshal(b, &tup); err != nil {
		return err
	}
	if len(tup) != 4 {
		return fmt.Errorf("voxel op: want 4 elements, got %d", len(tup))
	}
	for i, dst := range []any{&o.TS, &o.At, &o.Before, &o.After} {
		if err := json.Unmarshal(tup[i], dst); err != nil {
			return fmt.Errorf("voxel op element %d: %w", i, err)
		}
	}
	return nil
}

func (o VoxelOpV1) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{o.TS, o.At, o.Before, o.After})
}

// TerrainV1 is a decoded terrain layer.
type TerrainV1 struct {
	Planes  []PlaneV1
	Palette []string
	Ops     []VoxelOpV1
}

// Terrain decodes a terrain layer: initial is [planes, palette].
func (l LayerV1) Terrain() (TerrainV1, error) {
	var t TerrainV1
	if l.Type != TypeTerrain {
		return t, fmt.Errorf("%w: layer type %q is not terrain", ErrMalformed, l.Type)
	}
	var initial []json.RawMessage
	if err := json.Unmarshal(l.Initial, &initial); err != nil {
		return t, fmt.Errorf("%w: terrain initial: %v", ErrMalformed, err)
	}
	if len(initial) != 2 {
		return t, fmt.Errorf("%w: terrain initial: want [voxels, palette], got %d elements", ErrMalformed, len(initial))
	}
	if err := json.Unmarshal(initial[0], &t.Planes); err != nil {
		return t, fmt.Errorf("%w: terrain voxels: %v", ErrMalformed, err)
	}
	if err := json.Unmarshal(initial[1], &t.Palette); err != nil {
		return t, fmt.Errorf("%w: terrain palette: %v", ErrMalformed, err)
	}
	if len(l.Ops) != 0 {
		if err := json.Unmarshal(l.Ops, &t.Ops); err != nil {
			return t, fmt.Errorf("%w: terrain ops: %v", ErrMalformed, err)
		}
	}
	return t, nil
}

// NewTerrainLayer encodes a terrain layer.
func NewTerrainLayer(t TerrainV1) (LayerV1, error) {
	initial, err := json.Marshal([]any{t.Planes, t.Palette})
	if err != nil {
		return LayerV1{}, err
	}
	ops := t.Ops
	if ops == nil {
		ops = []VoxelOpV1{}
	}
	rawOps, err := json.Marshal(ops)
	if err != nil {
		return LayerV1{}, err
	}
	return LayerV1{Type: TypeTerrain, Initial: initial, Ops: rawOps}, nil
}

type PlayerStateV1 struct {
	Position     [3]float64 `json:"position"`
	EyeDirection [2]float64 `json:"eyeDirection"`
	EyeTarget    [3]float64 `json:"eyeTarget"`
}

// JVAStateV1 is [visible, x, y, z].
type JVAStateV1 struct {
	Visible  bool
	Position [3]float64
}

func (s *JVAStateV1) UnmarshalJSON(b []byte) error {
	var tup []json.RawMessage
	if err := json.Unmarshal(b, &tup); err != nil {
		return err
	}
	if len(tup) != 4 {
		return fmt.Errorf("jva state: want 4 elements, got %d", len(tup))
	}
	if err := json.Unmarshal(tup[0], &s.Visible); err != nil {
		return fmt.Errorf("jva visible: %w", err)
	}
	for i := 0; i < 3; i++ {
		if err := json.Unmarshal(tup[i+1], &s.Position[i]); err != nil {
			return fmt.Errorf("jva position: %w", err)
		}
	}
	return nil
}

func (s JVAStateV1) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{s.Visible, s.Position[0], s.Position[1], s.Position[2]})
}

// EntityOpV1 is [timestamp, before, after].
type EntityOpV1[S any] struct {
	TS     string
	Before S
	After  S
}

func (o *EntityOpV1[S]) UnmarshalJSON(b []byte) error {
	var tup []json.RawMessage
	if err := json.Unmarshal(b, &tup); err != nil {
		return err
	}
	if len(tup) != 3 {
		return fmt.Errorf("entity op: want 3 elements, got %d", len(tup))
	}
	if err := json.Unmarshal(tup[0], &o.TS); err != nil {
		return fmt.Errorf("entity op timestamp: %w", err)
	}
	if err := json.Unmarshal(tup[1], &o.Before); err != nil {
		return fmt.Errorf("entity op before: %w", err)
	}
	if err := json.Unmarshal(tup[2], &o.After); err != nil {
		return fmt.Errorf("entity op after: %w", err)
	}
	return nil
}

func (o EntityOpV1[S]) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{o.TS, o.Before, o.After})
}

// EntitiesV1 is a decoded entity-collection layer keyed by entity name.
type EntitiesV1[S any] struct {
	Initial map[string]S
	Ops     map[string][]EntityOpV1[S]
}

// DecodeEntities decodes a players or jva layer.
func DecodeEntities[S any](l LayerV1) (EntitiesV1[S], error) {
	var e EntitiesV1[S]
	if err := json.Unmarshal(l.Initial, &e.Initial); err != nil {
		return e, fmt.Errorf("%w: %s initial: %v", ErrMalformed, l.Type, err)
	}
	if len(l.Ops) != 0 {
		if err := json.Unmarshal(l.Ops, &e.Ops); err != nil {
			return e, fmt.Errorf("%w: %s ops: %v", ErrMalformed, l.Type, err)
		}
	}
	for name := range e.Ops {
		if _, ok := e.Initial[name]; !ok {
			return e, fmt.Errorf("%w: %s ops for %q without initial state", ErrMalformed, l.Type, name)
		}
	}
	return e, nil
}

// NewEntityLayer encodes a players or jva layer.
func NewEntityLayer[S any](typ string, e EntitiesV1[S]) (LayerV1, error) {
	initial, err := json.Marshal(e.Initial)
	if err != nil {
		return LayerV1{}, err
	}
	ops := e.Ops
	if ops == nil {
		ops = map[string][]EntityOpV1[S]{}
	}
	rawOps, err := json.Marshal(ops)
	if err != nil {
		return LayerV1{}, err
	}
	return LayerV1{Type: typ, Initial: initial, Ops: rawOps}, nil
}

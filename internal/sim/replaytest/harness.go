package replaytest

import (
	"path/filepath"
	"testing"

	"voxelreplay.ai/internal/persistence/export"
	"voxelreplay.ai/internal/sim/timeline"
)

// Sample timeline. Ops are spread one every few seconds across a one
// minute segment so tests can seek between any two of them.
const (
	Start = "2021-07-17T18:48:00"
	End   = "2021-07-17T18:49:00"
)

// Sample builds a small export whose terrain straddles the x=16 chunk
// boundary: a stone floor at y=60, a water cell above it, two players and
// one joint attention marker.
//
// Terrain ops (all at y=61 unless noted):
//
//	18:48:10  (15,61,0) air   -> stone   chunk edge, touches neighbor
//	18:48:20  (16,61,0) air   -> stone
//	18:48:30  (15,61,0) stone -> air
//	18:48:40  (3,60,1)  stone -> glass   new material, interned at load
//	18:48:50  (5,61,0)  water -> air
func Sample(t testing.TB) export.ExportV1 {
	t.Helper()

	const sx, sz = 20, 2
	floor := make([]int, sx*sz)
	for i := range floor {
		floor[i] = 1
	}
	ter, err := export.NewTerrainLayer(export.TerrainV1{
		Planes: []export.PlaneV1{
			{Method: "dense", Dense: floor},
			{Method: "sparse", Sparse: [][3]int{{0, 5, 2}}},
		},
		Palette: []string{"minecraft:air", "minecraft:stone", "minecraft:water"},
		Ops: []export.VoxelOpV1{
			{TS: "2021-07-17T18:48:10", At: [3]int{15, 61, 0}, Before: "minecraft:air", After: "minecraft:stone"},
			{TS: "2021-07-17 18:48:20", At: [3]int{16, 61, 0}, Before: "minecraft:air", After: "minecraft:stone"},
			{TS: "2021-07-17T18:48:30", At: [3]int{15, 61, 0}, Before: "minecraft:stone", After: "minecraft:air"},
			{TS: "2021-07-17 18:48:40", At: [3]int{3, 60, 1}, Before: "minecraft:stone", After: "minecraft:glass"},
			{TS: "2021-07-17T18:48:50", At: [3]int{5, 61, 0}, Before: "minecraft:water", After: "minecraft:air"},
		},
	})
	if err != nil {
		t.Fatalf("terrain layer: %v", err)
	}

	alice0 := export.PlayerStateV1{Position: [3]float64{1, 61, 1}, EyeDirection: [2]float64{20, 90}, EyeTarget: [3]float64{5, 60, 1}}
	alice1 := export.PlayerStateV1{Position: [3]float64{4, 61, 1}, EyeDirection: [2]float64{15, 90}, EyeTarget: [3]float64{8, 60, 1}}
	alice2 := export.PlayerStateV1{Position: [3]float64{10, 61, 0}, EyeDirection: [2]float64{0, 180}, EyeTarget: [3]float64{10, 60, 5}}
	bob := export.PlayerStateV1{Position: [3]float64{18, 61, 1}, EyeDirection: [2]float64{30, 270}, EyeTarget: [3]float64{5, 60, 1}}
	players, err := export.NewEntityLayer(export.TypePlayers, export.EntitiesV1[export.PlayerStateV1]{
		Initial: map[string]export.PlayerStateV1{"alice": alice0, "bob": bob},
		Ops: map[string][]export.EntityOpV1[export.PlayerStateV1]{
			"alice": {
				{TS: "2021-07-17 18:48:15", Before: alice0, After: alice1},
				{TS: "2021-07-17 18:48:45", Before: alice1, After: alice2},
			},
		},
	})
	if err != nil {
		t.Fatalf("players layer: %v", err)
	}

	hidden := export.JVAStateV1{}
	shown := export.JVAStateV1{Visible: true, Position: [3]float64{5, 61, 1}}
	jva, err := export.NewEntityLayer(export.TypeJVA, export.EntitiesV1[export.JVAStateV1]{
		Initial: map[string]export.JVAStateV1{"alice-bob": hidden},
		Ops: map[string][]export.EntityOpV1[export.JVAStateV1]{
			"alice-bob": {{TS: "2021-07-17 18:48:35", Before: hidden, After: shown}},
		},
	})
	if err != nil {
		t.Fatalf("jva layer: %v", err)
	}

	return export.ExportV1{
		Params: export.Params{
			BoundingBox: [3][2]int{{0, sx}, {60, 62}, {0, sz}},
			Timespan:    []string{Start, End},
			Title:       "sample",
		},
		Layers: map[string]export.LayerV1{
			"terrain": ter,
			"players": players,
			"jva":     jva,
		},
	}
}

// WriteSample stores Sample under dir and returns its path.
func WriteSample(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := export.Write(path, Sample(t)); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

// Stamp parses s or fails the test.
func Stamp(t testing.TB, s string) timeline.Stamp {
	t.Helper()
	ts, err := timeline.ParseStamp(s)
	if err != nil {
		t.Fatalf("ParseStamp(%q): %v", s, err)
	}
	return ts
}

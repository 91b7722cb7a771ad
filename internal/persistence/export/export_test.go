package export_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"voxelreplay.ai/internal/persistence/export"
)

const sampleDoc = `{
  "params": {
    "bounding_box": [[0, 2], [64, 66], [0, 2]],
    "timespan": ["2021-07-17 18:48:00", "2021-07-17 18:49:00"]
  },
  "layers": {
    "terrain": {
      "type": "terrain",
      "initial": [
        [["dense", [1, 0, 0, 2]], ["sparse", [[1, 1, 1]]]],
        ["minecraft:air", "minecraft:stone", "minecraft:water"]
      ],
      "ops": [
        ["2021-07-17T18:48:10", [0, 64, 0], "minecraft:stone", "minecraft:air"],
        ["2021-07-17 18:48:20", [1, 65, 0], "minecraft:air", "minecraft:glass"]
      ]
    },
    "players": {
      "type": "players",
      "initial": {
        "alice": {"position": [0, 64, 0], "eyeDirection": [10.5, 90], "eyeTarget": [1, 64, 1]}
      },
      "ops": {
        "alice": [
          ["2021-07-17 18:48:15",
           {"position": [0, 64, 0], "eyeDirection": [10.5, 90], "eyeTarget": [1, 64, 1]},
           {"position": [1, 64, 1], "eyeDirection": [0, 45], "eyeTarget": [2, 64, 2]}]
        ]
      }
    },
    "jva": {
      "type": "jva",
      "initial": {"alice-bob": [false, 0, 0, 0]},
      "ops": {"alice-bob": [["2021-07-17 18:48:30", [false, 0, 0, 0], [true, 1.5, 64, 1.5]]]}
    }
  }
}`

func TestDecodeSample(t *testing.T) {
	ex, err := export.Decode([]byte(sampleDoc), export.Options{Validate: true})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ex.Params.BoundingBox[1] != [2]int{64, 66} {
		t.Fatalf("bbox=%v", ex.Params.BoundingBox)
	}
	if got := ex.LayerNames(); len(got) != 3 || got[0] != "jva" || got[2] != "terrain" {
		t.Fatalf("layers=%v", got)
	}

	ter, err := ex.Layers["terrain"].Terrain()
	if err != nil {
		t.Fatalf("Terrain: %v", err)
	}
	if len(ter.Planes) != 2 || ter.Planes[0].Method != "dense" || len(ter.Planes[0].Dense) != 4 {
		t.Fatalf("planes=%+v", ter.Planes)
	}
	if ter.Planes[1].Sparse[0] != [3]int{1, 1, 1} {
		t.Fatalf("sparse=%v", ter.Planes[1].Sparse)
	}
	if len(ter.Ops) != 2 || ter.Ops[1].After != "minecraft:glass" || ter.Ops[1].At != [3]int{1, 65, 0} {
		t.Fatalf("ops=%+v", ter.Ops)
	}

	players, err := export.DecodeEntities[export.PlayerStateV1](ex.Layers["players"])
	if err != nil {
		t.Fatalf("players: %v", err)
	}
	if players.Initial["alice"].EyeDirection != [2]float64{10.5, 90} {
		t.Fatalf("alice=%+v", players.Initial["alice"])
	}
	if got := players.Ops["alice"][0].After.Position; got != [3]float64{1, 64, 1} {
		t.Fatalf("after=%v", got)
	}

	jva, err := export.DecodeEntities[export.JVAStateV1](ex.Layers["jva"])
	if err != nil {
		t.Fatalf("jva: %v", err)
	}
	if op := jva.Ops["alice-bob"][0]; !op.After.Visible || op.After.Position[0] != 1.5 || op.Before.Visible {
		t.Fatalf("jva op=%+v", op)
	}
}

func TestValidateRejectsShortOp(t *testing.T) {
	doc := `{"params":{"bounding_box":[[0,1],[0,1],[0,1]]},
	  "layers":{"terrain":{"type":"terrain","initial":[[],[]],"ops":[["2021-07-17T18:48:10",[0,0,0],"minecraft:air"]]}}}`
	_, err := export.Decode([]byte(doc), export.Options{Validate: true})
	if !errors.Is(err, export.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestValidateRejectsMissingBoundingBox(t *testing.T) {
	doc := `{"params":{},"layers":{"terrain":{"type":"terrain","initial":[[],[]]}}}`
	if _, err := export.Decode([]byte(doc), export.Options{Validate: true}); !errors.Is(err, export.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestEntityOpsWithoutInitialRejected(t *testing.T) {
	l := export.LayerV1{
		Type:    export.TypeJVA,
		Initial: []byte(`{}`),
		Ops:     []byte(`{"x":[["2021-07-17 18:48:30",[false,0,0,0],[true,0,0,0]]]}`),
	}
	if _, err := export.DecodeEntities[export.JVAStateV1](l); !errors.Is(err, export.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	ter, err := export.NewTerrainLayer(export.TerrainV1{
		Planes:  []export.PlaneV1{{Method: "sparse", Sparse: [][3]int{{0, 0, 1}}}},
		Palette: []string{"minecraft:air", "minecraft:stone"},
		Ops:     []export.VoxelOpV1{{TS: "2021-07-17T18:48:10", At: [3]int{0, 0, 0}, Before: "minecraft:stone", After: "minecraft:air"}},
	})
	if err != nil {
		t.Fatalf("NewTerrainLayer: %v", err)
	}
	in := export.ExportV1{
		Params: export.Params{BoundingBox: [3][2]int{{0, 1}, {0, 1}, {0, 1}}},
		Layers: map[string]export.LayerV1{"terrain": ter},
	}
	dir := t.TempDir()
	for _, name := range []string{"world.json", "world.json.zst"} {
		path := filepath.Join(dir, "nested", name)
		if err := export.Write(path, in); err != nil {
			t.Fatalf("Write %s: %v", name, err)
		}
		out, err := export.Read(path, export.Options{Validate: true})
		if err != nil {
			t.Fatalf("Read %s: %v", name, err)
		}
		got, err := out.Layers["terrain"].Terrain()
		if err != nil {
			t.Fatalf("Terrain %s: %v", name, err)
		}
		if len(got.Ops) != 1 || got.Ops[0].Before != "minecraft:stone" || got.Planes[0].Sparse[0] != [3]int{0, 0, 1} {
			t.Fatalf("%s: terrain=%+v", name, got)
		}
	}

	raw, err := os.ReadFile(filepath.Join(dir, "nested", "world.json.zst"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	// zstd magic
	if len(raw) < 4 || raw[0] != 0x28 || raw[1] != 0xb5 || raw[2] != 0x2f || raw[3] != 0xfd {
		t.Fatalf("not zstd: % x", raw[:4])
	}
}

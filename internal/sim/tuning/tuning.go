package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"voxelreplay.ai/internal/sim/palette"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	ChunkSize []int `yaml:"chunk_size"`

	Materials  Materials             `yaml:"materials"`
	Appearance map[string]Appearance `yaml:"appearance"`

	Playback Playback `yaml:"playback"`
	Viewer   Viewer   `yaml:"viewer"`
	Export   Export   `yaml:"export"`
	Journal  Journal  `yaml:"journal"`
}

type Materials struct {
	Void  string   `yaml:"void"`
	Air   []string `yaml:"air"`
	Water []string `yaml:"water"`
}

// Appearance is a material descriptor handed to the renderer.
type Appearance struct {
	Color       string  `yaml:"color" json:"color"`
	Transparent bool    `yaml:"transparent" json:"transparent"`
	Opacity     float64 `yaml:"opacity" json:"opacity"`
}

type Playback struct {
	TickMs      int     `yaml:"tick_ms"`
	Speed       float64 `yaml:"speed"`
	ClampToSpan bool    `yaml:"clamp_to_span"`
	Autoplay    bool    `yaml:"autoplay"`
}

type Viewer struct {
	MaxQueue     int  `yaml:"max_queue"`
	LoopbackOnly bool `yaml:"loopback_only"`
}

type Export struct {
	Validate bool `yaml:"validate"`
}

type Journal struct {
	Enabled bool `yaml:"enabled"`
}

// Descriptor names used by layers when they emit renderables.
const (
	AppearanceTerrain    = "terrain"
	AppearanceWater      = "water"
	AppearancePlayerBody = "player_body"
	AppearancePlayerGaze = "player_gaze"
	AppearanceJVA        = "jva"
)

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "0.1",
		ChunkSize:       []int{16, 256, 16},
		Materials: Materials{
			Void:  palette.Void,
			Air:   []string{palette.Air, palette.CaveAir, palette.Void},
			Water: []string{palette.Water},
		},
		Appearance: map[string]Appearance{
			AppearanceTerrain:    {Color: "green", Opacity: 1},
			AppearanceWater:      {Color: "blue", Transparent: true, Opacity: 0.2},
			AppearancePlayerBody: {Color: "#c0392b", Opacity: 1},
			AppearancePlayerGaze: {Color: "#c0392b", Transparent: true, Opacity: 0.4},
			AppearanceJVA:        {Color: "#ffff00", Opacity: 1},
		},
		Playback: Playback{
			TickMs:      100,
			Speed:       1,
			ClampToSpan: true,
		},
		Viewer: Viewer{
			MaxQueue: 64,
		},
		Export:  Export{Validate: true},
		Journal: Journal{Enabled: true},
	}
}

// Load reads path over Defaults(); keys absent from the file keep their
// default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	// yaml replaces maps wholesale, so appearance entries are merged by hand.
	base := t.Appearance
	t.Appearance = nil
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	for k, v := range t.Appearance {
		base[k] = v
	}
	t.Appearance = base
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if len(t.ChunkSize) != 3 {
		return fmt.Errorf("chunk_size must have 3 entries, got %d", len(t.ChunkSize))
	}
	for i, v := range t.ChunkSize {
		if v <= 0 {
			return fmt.Errorf("chunk_size[%d] must be > 0", i)
		}
	}
	if strings.TrimSpace(t.Materials.Void) == "" {
		return fmt.Errorf("materials.void is required")
	}
	for _, w := range t.Materials.Water {
		for _, a := range t.Materials.Air {
			if w == a {
				return fmt.Errorf("material %q listed as both air and water", w)
			}
		}
	}
	if t.Playback.TickMs <= 0 {
		return fmt.Errorf("playback.tick_ms must be > 0")
	}
	if t.Playback.Speed <= 0 {
		return fmt.Errorf("playback.speed must be > 0")
	}
	if t.Viewer.MaxQueue <= 0 {
		return fmt.Errorf("viewer.max_queue must be > 0")
	}
	return nil
}

func (t Tuning) Classifier() palette.Classifier {
	return palette.NewClassifier(t.Materials.Void, t.Materials.Air, t.Materials.Water)
}

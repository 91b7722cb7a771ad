package palette

import "testing"

func TestClassify(t *testing.T) {
	c := DefaultClassifier()
	cases := []struct {
		in   string
		want Class
	}{
		{"minecraft:air", ClassAir},
		{"minecraft:cave_air", ClassAir},
		{"meta:void", ClassAir},
		{"", ClassAir},
		{"minecraft:water", ClassWater},
		{"minecraft:stone", ClassSolid},
		{"minecraft:oak_leaves", ClassSolid},
	}
	for _, tc := range cases {
		if got := c.Classify(tc.in); got != tc.want {
			t.Fatalf("Classify(%q)=%v want %v", tc.in, got, tc.want)
		}
	}
}

func TestBuilder_InternsAndAddsVoid(t *testing.T) {
	b, err := NewBuilder(DefaultClassifier(), []string{"minecraft:air", "minecraft:stone", "minecraft:stone"})
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	stone, _ := b.Intern("minecraft:stone")
	if stone != 1 {
		t.Fatalf("stone id=%d want 1", stone)
	}
	glass, _ := b.Intern("minecraft:glass")
	if glass != 3 {
		t.Fatalf("glass id=%d want 3", glass)
	}
	p, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Len() != 5 {
		t.Fatalf("len=%d want 5", p.Len())
	}
	if p.Material(p.Void()) != Void || !p.IsAir(p.Void()) {
		t.Fatalf("void id %d resolved to %q", p.Void(), p.Material(p.Void()))
	}
	if !p.IsSolid(glass) || p.IsSolid(0) {
		t.Fatalf("unexpected solidity")
	}
	if p.Class(ID(999)) != ClassAir {
		t.Fatalf("out of range id should be air")
	}
	if p.Digest() == "" {
		t.Fatalf("missing digest")
	}
}

func TestBuilder_ReusesExistingVoid(t *testing.T) {
	b, _ := NewBuilder(DefaultClassifier(), []string{"meta:void", "minecraft:water"})
	p, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Void() != 0 || p.Len() != 2 {
		t.Fatalf("void=%d len=%d", p.Void(), p.Len())
	}
	if !p.IsWater(1) {
		t.Fatalf("water not classified")
	}
}

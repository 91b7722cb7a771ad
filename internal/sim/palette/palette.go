package palette

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ID is an index into a Palette.
type ID uint16

// MaxSize bounds the number of distinct materials a palette can hold.
const MaxSize = 1 << 16

// Class is the coarse material category the mesher works with.
type Class uint8

const (
	// ClassAir covers air, cave air and the void filler. Never meshed.
	ClassAir Class = iota
	ClassWater
	ClassSolid
)

func (c Class) String() string {
	switch c {
	case ClassAir:
		return "air"
	case ClassWater:
		return "water"
	case ClassSolid:
		return "solid"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// Palette maps IDs to material strings. It is immutable once built.
type Palette struct {
	ids     []string
	index   map[string]ID
	classes []Class
	void    ID
	digest  string
}

func (p *Palette) Len() int { return len(p.ids) }

// Material returns the material string for id, or "" if id is out of range.
func (p *Palette) Material(id ID) string {
	if int(id) >= len(p.ids) {
		return ""
	}
	return p.ids[id]
}

// Lookup returns the ID of a material string.
func (p *Palette) Lookup(material string) (ID, bool) {
	id, ok := p.index[material]
	return id, ok
}

// Class returns the class of id. Unknown IDs are treated as air so that
// absent materials never produce geometry.
func (p *Palette) Class(id ID) Class {
	if int(id) >= len(p.classes) {
		return ClassAir
	}
	return p.classes[id]
}

func (p *Palette) IsSolid(id ID) bool { return p.Class(id) == ClassSolid }
func (p *Palette) IsWater(id ID) bool { return p.Class(id) == ClassWater }
func (p *Palette) IsAir(id ID) bool   { return p.Class(id) == ClassAir }

// Void is the ID every unset cell holds.
func (p *Palette) Void() ID { return p.void }

// Materials returns a copy of the palette strings in ID order.
func (p *Palette) Materials() []string {
	return append([]string(nil), p.ids...)
}

// Digest is the sha256 of the JSON-encoded palette.
func (p *Palette) Digest() string { return p.digest }

// Builder interns material strings while an export is being loaded.
type Builder struct {
	cls   Classifier
	ids   []string
	index map[string]ID
}

// NewBuilder seeds a builder with the snapshot palette. Duplicate entries
// keep their position so snapshot indices stay valid; lookups resolve to
// the first occurrence.
func NewBuilder(cls Classifier, initial []string) (*Builder, error) {
	if len(initial) > MaxSize {
		return nil, fmt.Errorf("palette too large: %d entries", len(initial))
	}
	b := &Builder{
		cls:   cls,
		ids:   make([]string, 0, len(initial)+1),
		index: make(map[string]ID, len(initial)+1),
	}
	for i, s := range initial {
		b.ids = append(b.ids, s)
		if _, ok := b.index[s]; !ok {
			b.index[s] = ID(i)
		}
	}
	return b, nil
}

// Intern returns the ID for material, appending it when new.
func (b *Builder) Intern(material string) (ID, error) {
	if id, ok := b.index[material]; ok {
		return id, nil
	}
	if len(b.ids) >= MaxSize {
		return 0, fmt.Errorf("palette full: cannot intern %q", material)
	}
	id := ID(len(b.ids))
	b.ids = append(b.ids, material)
	b.index[material] = id
	return id, nil
}

func (b *Builder) Len() int { return len(b.ids) }

// Build freezes the palette. The classifier's void material is interned
// first if the snapshot did not already carry it.
func (b *Builder) Build() (*Palette, error) {
	void, err := b.Intern(b.cls.Void)
	if err != nil {
		return nil, err
	}
	p := &Palette{
		ids:     append([]string(nil), b.ids...),
		index:   make(map[string]ID, len(b.index)),
		classes: make([]Class, len(b.ids)),
		void:    void,
	}
	for k, v := range b.index {
		p.index[k] = v
	}
	for i, s := range p.ids {
		p.classes[i] = b.cls.Classify(s)
	}
	raw, _ := json.Marshal(p.ids)
	p.digest = sha256Hex(raw)
	return p, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

package palette

const (
	Void    = "meta:void"
	Air     = "minecraft:air"
	CaveAir = "minecraft:cave_air"
	Water   = "minecraft:water"
)

// Classifier decides the class of a material string. Anything not listed
// as air or water is solid, except the empty string which is air.
type Classifier struct {
	Void  string
	Air   map[string]bool
	Water map[string]bool
}

// DefaultClassifier knows the vanilla air and water ids.
func DefaultClassifier() Classifier {
	return NewClassifier(Void, []string{Air, CaveAir, Void}, []string{Water})
}

func NewClassifier(void string, air, water []string) Classifier {
	c := Classifier{
		Void:  void,
		Air:   make(map[string]bool, len(air)+1),
		Water: make(map[string]bool, len(water)),
	}
	for _, s := range air {
		c.Air[s] = true
	}
	c.Air[void] = true
	for _, s := range water {
		c.Water[s] = true
	}
	return c
}

func (c Classifier) Classify(material string) Class {
	switch {
	case material == "" || c.Air[material]:
		return ClassAir
	case c.Water[material]:
		return ClassWater
	default:
		return ClassSolid
	}
}

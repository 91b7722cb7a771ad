package layer

import (
	"fmt"
	"sort"

	"voxelreplay.ai/internal/persistence/export"
	"voxelreplay.ai/internal/sim/timeline"
)

// entity is one named actor with its own op log and markers.
type entity[S any] struct {
	name    string
	cursor  *timeline.Cursor[string, S]
	state   S
	markers []*Marker
	ids     []string
	looks   []string
}

// collection is a layer made of independently replayed entities. place
// positions an entity's markers for a state.
type collection[S any] struct {
	name     string
	typ      string
	entities []*entity[S]
	place    func(S, []*Marker)
}

func newCollection[S any](name, typ string, e export.EntitiesV1[S], span timeline.Span,
	markers func() ([]*Marker, []string), place func(S, []*Marker)) (*collection[S], error) {
	names := make([]string, 0, len(e.Initial))
	for n := range e.Initial {
		names = append(names, n)
	}
	sort.Strings(names)

	c := &collection[S]{name: name, typ: typ, place: place}
	for _, n := range names {
		raw := e.Ops[n]
		ops := make([]timeline.Op[string, S], len(raw))
		for i, o := range raw {
			ts, err := parseStamp(name+"/"+n, i, o.TS)
			if err != nil {
				return nil, err
			}
			ops[i] = timeline.Op[string, S]{TS: ts, At: n, Before: o.Before, After: o.After}
		}
		log, err := timeline.NewLog(ops)
		if err != nil {
			return nil, fmt.Errorf("layer %q entity %q: %w: %v", name, n, export.ErrMalformed, err)
		}
		ms, looks := markers()
		ent := &entity[S]{
			name:    n,
			cursor:  timeline.NewCursor(log, timeline.StartOf(log, span)),
			state:   e.Initial[n],
			markers: ms,
			looks:   looks,
		}
		for i := range ms {
			ent.ids = append(ent.ids, fmt.Sprintf("%s/%s/%d", name, n, i))
		}
		place(ent.state, ent.markers)
		c.entities = append(c.entities, ent)
	}
	return c, nil
}

func (c *collection[S]) Name() string { return c.name }
func (c *collection[S]) Type() string { return c.typ }

// Cursor is the earliest position among the entities.
func (c *collection[S]) Cursor() timeline.Stamp {
	var first timeline.Stamp
	for i, e := range c.entities {
		if p := e.cursor.Position(); i == 0 || p < first {
			first = p
		}
	}
	return first
}

func (c *collection[S]) Seek(ts timeline.Stamp) Change {
	var ch Change
	for _, e := range c.entities {
		ops := e.cursor.Seek(ts)
		if len(ops) == 0 {
			continue
		}
		e.state = ops[len(ops)-1].After
		c.place(e.state, e.markers)
		ch.Ops += len(ops)
		ch.Changed = append(ch.Changed, e.ids...)
	}
	return ch
}

func (c *collection[S]) Renderables() []Renderable {
	var out []Renderable
	for _, e := range c.entities {
		for i, m := range e.markers {
			out = append(out, Renderable{
				ID:         e.ids[i],
				Layer:      c.name,
				Appearance: e.looks[i],
				Kind:       KindMarker,
				Marker:     m,
			})
		}
	}
	return out
}

// State returns the current state of a named entity.
func (c *collection[S]) State(name string) (S, bool) {
	for _, e := range c.entities {
		if e.name == name {
			return e.state, true
		}
	}
	var zero S
	return zero, false
}

// Entities returns the entity names in sorted order.
func (c *collection[S]) Entities() []string {
	out := make([]string, len(c.entities))
	for i, e := range c.entities {
		out[i] = e.name
	}
	return out
}

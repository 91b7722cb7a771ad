package timeline

// Cursor is a position on a Log. Each Seek returns exactly the ops needed to
// move the owner's state from the current position to the target.
type Cursor[K comparable, V any] struct {
	log *Log[K, V]
	ts  Stamp
}

func NewCursor[K comparable, V any](log *Log[K, V], start Stamp) *Cursor[K, V] {
	return &Cursor[K, V]{log: log, ts: start}
}

func (c *Cursor[K, V]) Position() Stamp { return c.ts }

func (c *Cursor[K, V]) Log() *Log[K, V] { return c.log }

func (c *Cursor[K, V]) Seek(target Stamp) []Op[K, V] {
	ops := c.log.Between(c.ts, target)
	c.ts = target
	return ops
}

// StartOf picks the initial cursor for a log: the span start when it does
// not come after the first op, otherwise the first op's timestamp.
func StartOf[K comparable, V any](log *Log[K, V], span Span) Stamp {
	first, ok := log.First()
	switch {
	case !ok && span.IsZero():
		return 0
	case !ok:
		return span.Start
	case span.IsZero() || span.Start > first:
		return first
	default:
		return span.Start
	}
}

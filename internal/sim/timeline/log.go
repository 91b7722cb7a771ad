package timeline

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnordered = errors.New("ops not ordered by timestamp")

// Op records one state change at a key: the value before and after TS.
type Op[K comparable, V any] struct {
	TS     Stamp
	At     K
	Before V
	After  V
}

// Reverse swaps Before and After. Reverse(Reverse(op)) == op.
func (o Op[K, V]) Reverse() Op[K, V] {
	return Op[K, V]{TS: o.TS, At: o.At, Before: o.After, After: o.Before}
}

// Log is an immutable, timestamp-ordered sequence of ops.
type Log[K comparable, V any] struct {
	ops []Op[K, V]
}

// CheckOrder returns ErrUnordered if any timestamp precedes its predecessor.
func CheckOrder[K comparable, V any](ops []Op[K, V]) error {
	for i := 1; i < len(ops); i++ {
		if ops[i].TS < ops[i-1].TS {
			return fmt.Errorf("%w: op %d at %s precedes op %d at %s",
				ErrUnordered, i, ops[i].TS, i-1, ops[i-1].TS)
		}
	}
	return nil
}

// NewLog copies ops into a log. Timestamps must be non-decreasing.
func NewLog[K comparable, V any](ops []Op[K, V]) (*Log[K, V], error) {
	if err := CheckOrder(ops); err != nil {
		return nil, err
	}
	return &Log[K, V]{ops: append([]Op[K, V](nil), ops...)}, nil
}

func (l *Log[K, V]) Len() int { return len(l.ops) }

func (l *Log[K, V]) At(i int) Op[K, V] { return l.ops[i] }

// First returns the timestamp of the earliest op.
func (l *Log[K, V]) First() (Stamp, bool) {
	if len(l.ops) == 0 {
		return 0, false
	}
	return l.ops[0].TS, true
}

// Last returns the timestamp of the latest op.
func (l *Log[K, V]) Last() (Stamp, bool) {
	if len(l.ops) == 0 {
		return 0, false
	}
	return l.ops[len(l.ops)-1].TS, true
}

// Each calls fn for every op in timestamp order.
func (l *Log[K, V]) Each(fn func(Op[K, V])) {
	for _, op := range l.ops {
		fn(op)
	}
}

// Between returns the ops that carry state at start to state at end.
//
// start <= end: ops with start <= TS < end, ascending.
// start > end:  reversed ops with end <= TS < start, descending.
func (l *Log[K, V]) Between(start, end Stamp) []Op[K, V] {
	if start <= end {
		lo, hi := l.lowerBound(start), l.lowerBound(end)
		if lo == hi {
			return nil
		}
		return append([]Op[K, V](nil), l.ops[lo:hi]...)
	}
	lo, hi := l.lowerBound(end), l.lowerBound(start)
	if lo == hi {
		return nil
	}
	out := make([]Op[K, V], 0, hi-lo)
	for i := hi - 1; i >= lo; i-- {
		out = append(out, l.ops[i].Reverse())
	}
	return out
}

// lowerBound is the index of the first op with TS >= ts.
func (l *Log[K, V]) lowerBound(ts Stamp) int {
	return sort.Search(len(l.ops), func(i int) bool { return l.ops[i].TS >= ts })
}

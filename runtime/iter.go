package runtime

import (
	"reflect"

	"github.com/viant/aardwolf/ids"
)

// Iterator is the host iterator protocol the trace wrapper preserves:
// Next returns the next element and whether one was produced.
type Iterator interface {
	Next() (any, bool)
}

// TraceIter wraps an inner iterator so that each yielded element emits
// a statement event followed by its value events. The inner iterator is
// advanced one element at a time; the sequence is never buffered.
type TraceIter struct {
	handle *Handle
	inner  Iterator
	id     ids.StmtID
	tree   *AccTree
}

// Iter wraps inner for the default Handle; this is the aardwolf_iter of
// the wire contract.
func Iter(inner any, id ids.StmtID, tree *AccTree) *TraceIter {
	return Default().Iter(inner, id, tree)
}

// Iter wraps inner, coercing slices and arrays into Iterators the way
// Python's iter() coerces iterables.
func (h *Handle) Iter(inner any, id ids.StmtID, tree *AccTree) *TraceIter {
	it, ok := inner.(Iterator)
	if !ok {
		it = newSliceIter(inner)
	}
	return &TraceIter{handle: h, inner: it, id: id, tree: tree}
}

// Next advances the inner iterator, emits the statement and value
// events for the yielded element, and returns it. Exhaustion passes
// through without emitting anything.
func (t *TraceIter) Next() (any, bool) {
	value, ok := t.inner.Next()
	if !ok {
		return nil, false
	}
	t.handle.WriteStmt(t.id)
	t.handle.WriteValue(value, t.tree)
	return value, true
}

// sliceIter adapts a slice or array to the Iterator protocol. Anything
// else yields nothing, mirroring iteration over a non-iterable.
type sliceIter struct {
	rv  reflect.Value
	pos int
}

func newSliceIter(value any) *sliceIter {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return &sliceIter{}
	}
	return &sliceIter{rv: rv}
}

func (s *sliceIter) Next() (any, bool) {
	if !s.rv.IsValid() || s.pos >= s.rv.Len() {
		return nil, false
	}
	v := s.rv.Index(s.pos).Interface()
	s.pos++
	return v, true
}

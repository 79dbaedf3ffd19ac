package runtime

// AccTree mirrors the destructuring shape of an assignment target so
// runtime values can be decomposed into one observable leaf per bound
// name: a Leaf observes the value itself, Tuple/List index into it, and
// Starred marks a *rest pattern whose slice is not observed element by
// element.
type AccTree struct {
	Kind     AccKind
	Children []*AccTree
}

type AccKind int

const (
	AccLeaf AccKind = iota
	AccTuple
	AccList
	AccStarred
)

// Leaf observes the whole value.
func Leaf() *AccTree { return &AccTree{Kind: AccLeaf} }

// TupleOf observes value[i] through children[i].
func TupleOf(children ...*AccTree) *AccTree {
	return &AccTree{Kind: AccTuple, Children: children}
}

// ListOf is the list-pattern form of TupleOf.
func ListOf(children ...*AccTree) *AccTree {
	return &AccTree{Kind: AccList, Children: children}
}

// StarredOf marks a *rest binding.
func StarredOf(child *AccTree) *AccTree {
	return &AccTree{Kind: AccStarred, Children: []*AccTree{child}}
}

// Leaves counts the observable leaves under t, which is the number of
// data tokens a write_value with this tree will emit.
func (t *AccTree) Leaves() int {
	if t == nil {
		return 1
	}
	switch t.Kind {
	case AccLeaf, AccStarred:
		return 1
	default:
		n := 0
		for _, c := range t.Children {
			n += c.Leaves()
		}
		return n
	}
}

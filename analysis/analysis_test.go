package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/aardwolf/cfg"
	"github.com/viant/aardwolf/langast"
	"github.com/viant/aardwolf/normalizer"
	"github.com/viant/aardwolf/symbols"
	"github.com/viant/aardwolf/wire"
)

func pos(line, col int) langast.Base {
	return langast.NewBase(langast.NewPos(line, col))
}

func analyze(t *testing.T, mod *langast.Module) *Result {
	t.Helper()
	table := symbols.Build(mod)
	normalizer.Normalize(mod)
	return Analyze(mod, table, 7)
}

// stmtByID fails the test when the id is unknown.
func stmtByID(t *testing.T, res *Result, id uint64) *Statement {
	t.Helper()
	st, ok := res.Statement(id)
	require.True(t, ok, "statement %d", id)
	return st
}

func defStrings(st *Statement) []string {
	out := make([]string, 0, len(st.Defs))
	for _, d := range st.Defs {
		out = append(out, d.String())
	}
	return out
}

func useStrings(st *Statement) []string {
	out := make([]string, 0, len(st.Uses))
	for _, u := range st.Uses {
		out = append(out, u.String())
	}
	return out
}

func succIDs(st *Statement) []uint64 {
	out := make([]uint64, 0, len(st.Succ))
	for _, s := range st.Succ {
		out = append(out, s.Stmt)
	}
	return out
}

// def foo(bar):
//
//	return 2 * bar
func TestAnalyze_SimpleFunction(t *testing.T) {
	mod := &langast.Module{Body: []langast.Stmt{
		&langast.FunctionDef{
			Base: pos(1, 1),
			Name: "foo",
			Args: []*langast.Arg{{Base: pos(1, 9), Name: "bar"}},
			Body: []langast.Stmt{
				&langast.Return{Base: pos(2, 5), Value: &langast.BinOp{
					Base:  pos(2, 12),
					Left:  &langast.Constant{Base: pos(2, 12), Value: int64(2)},
					Op:    "*",
					Right: &langast.Name{Base: pos(2, 16), Id: "bar"},
				}},
			},
		},
	}}

	res := analyze(t, mod)
	assert.Contains(t, res.Contexts, "foo[1]")

	arg := stmtByID(t, res, 1)
	assert.Equal(t, "foo[1]", arg.FuncContext)
	assert.Equal(t, wire.Meta(wire.MetaArg), arg.Meta)
	assert.Equal(t, []string{"top::foo::bar"}, defStrings(arg))
	assert.Empty(t, arg.Uses)
	assert.Equal(t, []uint64{2}, succIDs(arg))

	ret := stmtByID(t, res, 2)
	assert.Equal(t, wire.Meta(wire.MetaRet), ret.Meta)
	assert.Empty(t, ret.Defs)
	assert.Equal(t, []string{"top::foo::bar"}, useStrings(ret))
	assert.Empty(t, ret.Succ)

	assert.Equal(t, uint64(7), arg.ID.FileID)
	assert.Equal(t, 1, arg.Loc.StartLine)
}

// if a > 0:
//
//	b = 1
//
// else:
//
//	b = 2
func TestAnalyze_IfElse(t *testing.T) {
	mod := &langast.Module{Body: []langast.Stmt{
		&langast.If{
			Base: pos(1, 1),
			Test: &langast.Compare{
				Base:        pos(1, 4),
				Left:        &langast.Name{Base: pos(1, 4), Id: "a"},
				Ops:         []string{">"},
				Comparators: []langast.Expr{&langast.Constant{Base: pos(1, 8), Value: int64(0)}},
			},
			Body: []langast.Stmt{&langast.Assign{
				Base:    pos(2, 5),
				Targets: []langast.Expr{&langast.Name{Base: pos(2, 5), Id: "b"}},
				Value:   &langast.Constant{Base: pos(2, 9), Value: int64(1)},
			}},
			Orelse: []langast.Stmt{&langast.Assign{
				Base:    pos(4, 5),
				Targets: []langast.Expr{&langast.Name{Base: pos(4, 5), Id: "b"}},
				Value:   &langast.Constant{Base: pos(4, 9), Value: int64(2)},
			}},
		},
	}}

	res := analyze(t, mod)

	ifStmt := stmtByID(t, res, 1)
	assert.Equal(t, "__main__", ifStmt.FuncContext)
	assert.Equal(t, []string{"a"}, useStrings(ifStmt), "unresolvable name falls back to by-name scalar")
	assert.Equal(t, []uint64{2, 3}, succIDs(ifStmt), "both arms are direct successors")

	thenStmt := stmtByID(t, res, 2)
	assert.Equal(t, []string{"top::b"}, defStrings(thenStmt))
	assert.Empty(t, thenStmt.Succ, "the empty join block was elided")

	elseStmt := stmtByID(t, res, 3)
	assert.Equal(t, []string{"top::b"}, defStrings(elseStmt))
	assert.Empty(t, elseStmt.Succ)

	for _, blk := range res.Blocks["__main__"] {
		assert.False(t, blk.Empty(), "no empty block survives normalization")
	}
}

// for x in xs:
//
//	if x < 0:
//	    break
//	total += x
//
// done = 1
func TestAnalyze_ForLoopWithBreak(t *testing.T) {
	mod := &langast.Module{Body: []langast.Stmt{
		&langast.For{
			Base:   pos(1, 1),
			Target: &langast.Name{Base: pos(1, 5), Id: "x"},
			Iter:   &langast.Name{Base: pos(1, 10), Id: "xs"},
			Body: []langast.Stmt{
				&langast.If{
					Base: pos(2, 5),
					Test: &langast.Compare{
						Base:        pos(2, 8),
						Left:        &langast.Name{Base: pos(2, 8), Id: "x"},
						Ops:         []string{"<"},
						Comparators: []langast.Expr{&langast.Constant{Base: pos(2, 12), Value: int64(0)}},
					},
					Body: []langast.Stmt{&langast.Break{Base: pos(3, 9)}},
				},
				&langast.AugAssign{
					Base:   pos(4, 5),
					Target: &langast.Name{Base: pos(4, 5), Id: "total"},
					Op:     "+",
					Value:  &langast.Name{Base: pos(4, 14), Id: "x"},
				},
			},
		},
		&langast.Assign{
			Base:    pos(5, 1),
			Targets: []langast.Expr{&langast.Name{Base: pos(5, 1), Id: "done"}},
			Value:   &langast.Constant{Base: pos(5, 8), Value: int64(1)},
		},
	}}

	res := analyze(t, mod)

	forStmt := stmtByID(t, res, 1)
	assert.Equal(t, []string{"top::x"}, defStrings(forStmt))
	assert.Equal(t, []string{"xs"}, useStrings(forStmt))
	assert.ElementsMatch(t, []uint64{2, 5}, succIDs(forStmt), "loop header reaches the body and the join")

	ifStmt := stmtByID(t, res, 2)
	assert.ElementsMatch(t, []uint64{3, 4}, succIDs(ifStmt))

	breakStmt := stmtByID(t, res, 3)
	assert.Equal(t, []uint64{5}, succIDs(breakStmt), "break escapes to the join via the exits list")

	augStmt := stmtByID(t, res, 4)
	assert.Equal(t, []uint64{1}, succIDs(augStmt), "loop body loops back to the header")
	assert.Equal(t, []string{"top::total"}, defStrings(augStmt))
	assert.Equal(t, []string{"top::x", "top::total"}, useStrings(augStmt))

	// The break site's block is frozen and listed in the loop's exits.
	var headerBlock, breakBlock *cfg.Block
	for _, blk := range res.Blocks["__main__"] {
		for _, id := range blk.Stmts {
			switch id {
			case 1:
				headerBlock = blk
			case 3:
				breakBlock = blk
			}
		}
	}
	require.NotNil(t, headerBlock)
	require.NotNil(t, breakBlock)
	assert.True(t, breakBlock.Frozen())
	assert.Contains(t, headerBlock.Exits(), breakBlock)
}

// self.x = y
func TestAnalyze_AttributeAssignment(t *testing.T) {
	mod := &langast.Module{Body: []langast.Stmt{
		&langast.Assign{
			Base: pos(1, 1),
			Targets: []langast.Expr{&langast.Attribute{
				Base:  pos(1, 1),
				Value: &langast.Name{Base: pos(1, 1), Id: "self"},
				Attr:  "x",
			}},
			Value: &langast.Name{Base: pos(1, 10), Id: "y"},
		},
	}}

	res := analyze(t, mod)
	st := stmtByID(t, res, 1)
	assert.Equal(t, []string{"self.x"}, defStrings(st))
	assert.Equal(t, []string{"y"}, useStrings(st))
}

// a, b = pair
func TestAnalyze_TupleUnpacking(t *testing.T) {
	mod := &langast.Module{Body: []langast.Stmt{
		&langast.Assign{
			Base: pos(1, 1),
			Targets: []langast.Expr{&langast.Tuple{Base: pos(1, 1), Elts: []langast.Expr{
				&langast.Name{Base: pos(1, 1), Id: "a"},
				&langast.Name{Base: pos(1, 4), Id: "b"},
			}}},
			Value: &langast.Name{Base: pos(1, 8), Id: "pair"},
		},
	}}

	res := analyze(t, mod)
	st := stmtByID(t, res, 1)
	assert.Equal(t, []string{"top::a", "top::b"}, defStrings(st))
	assert.Equal(t, []string{"pair"}, useStrings(st))
}

// foo(foo(1)) — the inner call is its own statement, encountered first,
// and its tagged result feeds the outer call's uses.
func TestAnalyze_NestedCalls(t *testing.T) {
	inner := &langast.Call{
		Base: pos(1, 5),
		Func: &langast.Name{Base: pos(1, 5), Id: "foo"},
		Args: []langast.Expr{&langast.Constant{Base: pos(1, 9), Value: int64(1)}},
	}
	outer := &langast.Call{
		Base: pos(1, 1),
		Func: &langast.Name{Base: pos(1, 1), Id: "foo"},
		Args: []langast.Expr{inner},
	}
	mod := &langast.Module{Body: []langast.Stmt{
		&langast.ExprStmt{Base: pos(1, 1), Value: outer},
	}}

	res := analyze(t, mod)

	innerStmt := stmtByID(t, res, 1)
	assert.Equal(t, wire.Meta(wire.MetaCall), innerStmt.Meta)
	assert.Equal(t, []string{"foo:1:5"}, defStrings(innerStmt))
	assert.Empty(t, innerStmt.Uses, "constant argument yields no access")

	outerStmt := stmtByID(t, res, 2)
	assert.Equal(t, wire.Meta(wire.MetaCall), outerStmt.Meta)
	assert.Equal(t, []string{"foo:1:1"}, defStrings(outerStmt))
	assert.Equal(t, []string{"foo:1:5"}, useStrings(outerStmt), "outer call uses the inner call's tagged result")
}

// value = table[key].field
func TestAnalyze_SubscriptAttributeChain(t *testing.T) {
	mod := &langast.Module{Body: []langast.Stmt{
		&langast.Assign{
			Base:    pos(1, 1),
			Targets: []langast.Expr{&langast.Name{Base: pos(1, 1), Id: "value"}},
			Value: &langast.Attribute{
				Base: pos(1, 9),
				Value: &langast.Subscript{
					Base:  pos(1, 9),
					Value: &langast.Name{Base: pos(1, 9), Id: "table"},
					Index: &langast.Name{Base: pos(1, 15), Id: "key"},
				},
				Attr: "field",
			},
		},
	}}

	res := analyze(t, mod)
	st := stmtByID(t, res, 1)
	assert.Equal(t, []string{"table[key].field"}, useStrings(st))
}

// handler = lambda v: v — the lambda body becomes its own context with
// an arg statement and an implicit return keyed on the body expression.
func TestAnalyze_LambdaContext(t *testing.T) {
	mod := &langast.Module{Body: []langast.Stmt{
		&langast.Assign{
			Base:    pos(1, 1),
			Targets: []langast.Expr{&langast.Name{Base: pos(1, 1), Id: "handler"}},
			Value: &langast.Lambda{
				Base: pos(1, 11),
				Args: []*langast.Arg{{Base: pos(1, 18), Name: "v"}},
				Body: &langast.Name{Base: pos(1, 21), Id: "v"},
			},
		},
	}}

	res := analyze(t, mod)
	assert.Contains(t, res.Contexts, "lambda:1:11")

	arg := stmtByID(t, res, 1)
	assert.Equal(t, "lambda:1:11", arg.FuncContext)
	assert.Equal(t, wire.Meta(wire.MetaArg), arg.Meta)

	ret := stmtByID(t, res, 2)
	assert.Equal(t, "lambda:1:11", ret.FuncContext)
	assert.Equal(t, wire.Meta(wire.MetaRet), ret.Meta)
	assert.Equal(t, []string{"top::lambda:1:11::v"}, useStrings(ret))
}

// Determinism: two runs over the same tree produce identical def/use
// tables and successor lists.
func TestAnalyze_Deterministic(t *testing.T) {
	build := func() *langast.Module {
		return &langast.Module{Body: []langast.Stmt{
			&langast.Assign{
				Base:    pos(1, 1),
				Targets: []langast.Expr{&langast.Name{Base: pos(1, 1), Id: "a"}},
				Value: &langast.BinOp{
					Base:  pos(1, 5),
					Left:  &langast.Name{Base: pos(1, 5), Id: "b"},
					Op:    "+",
					Right: &langast.Name{Base: pos(1, 9), Id: "b"},
				},
			},
			&langast.While{
				Base: pos(2, 1),
				Test: &langast.Name{Base: pos(2, 7), Id: "a"},
				Body: []langast.Stmt{&langast.AugAssign{
					Base:   pos(3, 5),
					Target: &langast.Name{Base: pos(3, 5), Id: "a"},
					Op:     "-",
					Value:  &langast.Constant{Base: pos(3, 10), Value: int64(1)},
				}},
			},
		}}
	}

	first := analyze(t, build())
	second := analyze(t, build())
	require.Equal(t, len(first.Statements), len(second.Statements))
	for id, st := range first.Statements {
		other := second.Statements[id]
		require.NotNil(t, other)
		assert.Equal(t, defStrings(st), defStrings(other))
		assert.Equal(t, useStrings(st), useStrings(other))
		assert.Equal(t, succIDs(st), succIDs(other))
	}

	// The RHS use of b appears once despite two occurrences.
	assert.Equal(t, []string{"b"}, useStrings(stmtByID(t, first, 1)))
}

package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/viant/aardwolf/langast"
)

func pos(line, col int) langast.Base {
	return langast.NewBase(langast.NewPos(line, col))
}

func TestBuild_FunctionScopes(t *testing.T) {
	// def foo(bar):
	//     baz = bar
	mod := &langast.Module{Body: []langast.Stmt{
		&langast.FunctionDef{
			Base: pos(1, 1),
			Name: "foo",
			Args: []*langast.Arg{{Base: pos(1, 9), Name: "bar"}},
			Body: []langast.Stmt{
				&langast.Assign{
					Base:    pos(2, 5),
					Targets: []langast.Expr{&langast.Name{Base: pos(2, 5), Id: "baz"}},
					Value:   &langast.Name{Base: pos(2, 11), Id: "bar"},
				},
			},
		},
	}}

	table := Build(mod)
	assert.Equal(t, "top", table.Top.Name)
	assert.Equal(t, []string{"foo"}, table.Top.LocalNames())

	fooScope := table.Top.Children[0]
	assert.Equal(t, "foo", fooScope.Name)
	assert.Equal(t, []string{"bar", "baz"}, fooScope.LocalNames())
	assert.Equal(t, "top::foo", fooScope.Namespace())

	sym, ok := fooScope.Lookup("bar")
	assert.True(t, ok)
	assert.Same(t, fooScope, sym.Scope)

	// Lookup walks outward to the defining scope.
	sym, ok = fooScope.Lookup("foo")
	assert.True(t, ok)
	assert.Same(t, table.Top, sym.Scope)

	_, ok = fooScope.Lookup("missing")
	assert.False(t, ok)
}

func TestBuild_LambdaScopeName(t *testing.T) {
	// adder = lambda x: x + base
	mod := &langast.Module{Body: []langast.Stmt{
		&langast.Assign{
			Base:    pos(3, 1),
			Targets: []langast.Expr{&langast.Name{Base: pos(3, 1), Id: "adder"}},
			Value: &langast.Lambda{
				Base: pos(3, 9),
				Args: []*langast.Arg{{Base: pos(3, 16), Name: "x"}},
				Body: &langast.BinOp{
					Base:  pos(3, 19),
					Left:  &langast.Name{Base: pos(3, 19), Id: "x"},
					Op:    "+",
					Right: &langast.Name{Base: pos(3, 23), Id: "base"},
				},
			},
		},
	}}

	table := Build(mod)
	assert.Len(t, table.Top.Children, 1)
	lam := table.Top.Children[0]
	assert.Equal(t, "lambda:3:9", lam.Name)
	assert.Equal(t, []string{"x"}, lam.LocalNames())
	assert.Equal(t, "top::lambda:3:9", lam.Namespace())
}

func TestBuild_BindingStatements(t *testing.T) {
	// import os
	// with open(p) as fh:
	//     for i, line in lines:
	//         total += line
	mod := &langast.Module{Body: []langast.Stmt{
		&langast.Import{Base: pos(1, 1), Names: []string{"os"}},
		&langast.With{
			Base: pos(2, 1),
			ContextExpr: &langast.Call{
				Base: pos(2, 6),
				Func: &langast.Name{Base: pos(2, 6), Id: "open"},
				Args: []langast.Expr{&langast.Name{Base: pos(2, 11), Id: "p"}},
			},
			OptionalVars: &langast.Name{Base: pos(2, 17), Id: "fh"},
			Body: []langast.Stmt{
				&langast.For{
					Base: pos(3, 5),
					Target: &langast.Tuple{Base: pos(3, 9), Elts: []langast.Expr{
						&langast.Name{Base: pos(3, 9), Id: "i"},
						&langast.Name{Base: pos(3, 12), Id: "line"},
					}},
					Iter: &langast.Name{Base: pos(3, 20), Id: "lines"},
					Body: []langast.Stmt{
						&langast.AugAssign{
							Base:   pos(4, 9),
							Target: &langast.Name{Base: pos(4, 9), Id: "total"},
							Op:     "+",
							Value:  &langast.Name{Base: pos(4, 18), Id: "line"},
						},
					},
				},
			},
		},
	}}

	table := Build(mod)
	assert.Equal(t, []string{"os", "fh", "i", "line", "total"}, table.Top.LocalNames())
}

func TestBuild_ClassAndHandler(t *testing.T) {
	mod := &langast.Module{Body: []langast.Stmt{
		&langast.ClassDef{
			Base: pos(1, 1),
			Name: "C",
			Body: []langast.Stmt{
				&langast.FunctionDef{
					Base: pos(2, 5),
					Name: "m",
					Args: []*langast.Arg{{Base: pos(2, 11), Name: "self"}},
					Body: []langast.Stmt{&langast.Return{Base: pos(3, 9)}},
				},
			},
		},
		&langast.Try{
			Base: pos(5, 1),
			Body: []langast.Stmt{&langast.Raise{Base: pos(6, 5), Exc: &langast.Name{Base: pos(6, 11), Id: "C"}}},
			Handlers: []*langast.ExceptHandler{{
				Base: pos(7, 1),
				Name: "err",
				Body: []langast.Stmt{&langast.Raise{Base: pos(8, 5)}},
			}},
		},
	}}

	table := Build(mod)
	assert.Equal(t, []string{"C", "err"}, table.Top.LocalNames())

	cls := table.Top.Children[0]
	assert.Equal(t, "C", cls.Name)
	assert.Equal(t, []string{"m"}, cls.LocalNames())
	assert.Equal(t, "top::C::m", cls.Children[0].Namespace())
}

// Package symbols builds the lexical scope tree once, up front, and
// leaves it immutable afterward — analysis reads from it but never
// mutates it.
package symbols

import (
	"strconv"

	"github.com/viant/aardwolf/langast"
)

// Symbol is a single bound name: a variable, parameter, function or
// class name, or an imported module/alias.
type Symbol struct {
	Name  string
	Scope *Scope
}

// Scope is a node in the lexical scope tree: a namespace with an
// ordered list of defined symbols and a parent pointer for lookups that
// walk outward.
type Scope struct {
	Name     string
	Parent   *Scope
	Children []*Scope
	symbols  map[string]*Symbol
	order    []string
}

func newScope(name string, parent *Scope) *Scope {
	s := &Scope{Name: name, Parent: parent, symbols: make(map[string]*Symbol)}
	if parent != nil {
		parent.Children = append(parent.Children, s)
	}
	return s
}

// Define binds name in this scope if not already bound, returning the
// Symbol either way.
func (s *Scope) Define(name string) *Symbol {
	if sym, ok := s.symbols[name]; ok {
		return sym
	}
	sym := &Symbol{Name: name, Scope: s}
	s.symbols[name] = sym
	s.order = append(s.order, name)
	return sym
}

// Lookup searches this scope and each enclosing scope in turn.
func (s *Scope) Lookup(name string) (*Symbol, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if sym, ok := cur.symbols[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// LocalNames returns names defined directly in this scope, in
// first-defined order.
func (s *Scope) LocalNames() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Namespace returns the dotted path of scope names from the top scope
// down to this one, e.g. "top::foo::lambda:12:4".
func (s *Scope) Namespace() string {
	if s.Parent == nil {
		return s.Name
	}
	return s.Parent.Namespace() + "::" + s.Name
}

// Table is the fully built, immutable-after-construction symbol table
// for one module.
type Table struct {
	Top *Scope
}

// Build walks mod once and returns the completed scope tree. Every
// FunctionDef gets its own child scope named after the function, unless
// IsLambda is set, in which case the scope is named "lambda:<line>:<col>"
// regardless of the function's Name field; Lambda expressions get
// "lambda:<line>:<col>" scopes as well.
func Build(mod *langast.Module) *Table {
	top := newScope("top", nil)
	b := &builder{top: top}
	b.visitBlock(top, mod.Body)
	return &Table{Top: top}
}

type builder struct{ top *Scope }

func (b *builder) visitBlock(scope *Scope, body []langast.Stmt) {
	for _, stmt := range body {
		b.visitStmt(scope, stmt)
	}
}

func (b *builder) visitStmt(scope *Scope, stmt langast.Stmt) {
	switch n := stmt.(type) {
	case *langast.FunctionDef:
		scope.Define(n.Name)
		fnScope := newScope(scopeName(n), scope)
		for _, arg := range n.Args {
			fnScope.Define(arg.Name)
		}
		b.visitBlock(fnScope, n.Body)

	case *langast.ClassDef:
		scope.Define(n.Name)
		clsScope := newScope(n.Name, scope)
		b.visitBlock(clsScope, n.Body)

	case *langast.Assign:
		for _, t := range n.Targets {
			b.defineTarget(scope, t)
		}
		b.visitExpr(scope, n.Value)

	case *langast.AugAssign:
		b.defineTarget(scope, n.Target)
		b.visitExpr(scope, n.Value)

	case *langast.For:
		b.defineTarget(scope, n.Target)
		b.visitExpr(scope, n.Iter)
		b.visitBlock(scope, n.Body)
		b.visitBlock(scope, n.Orelse)

	case *langast.While:
		b.visitExpr(scope, n.Test)
		b.visitBlock(scope, n.Body)
		b.visitBlock(scope, n.Orelse)

	case *langast.If:
		b.visitExpr(scope, n.Test)
		b.visitBlock(scope, n.Body)
		b.visitBlock(scope, n.Orelse)

	case *langast.With:
		b.visitExpr(scope, n.ContextExpr)
		if n.OptionalVars != nil {
			b.defineTarget(scope, n.OptionalVars)
		}
		b.visitBlock(scope, n.Body)

	case *langast.Try:
		b.visitBlock(scope, n.Body)
		for _, h := range n.Handlers {
			if h.Name != "" {
				scope.Define(h.Name)
			}
			b.visitBlock(scope, h.Body)
		}
		b.visitBlock(scope, n.Orelse)
		b.visitBlock(scope, n.Finally)

	case *langast.Import:
		for _, name := range n.Names {
			scope.Define(name)
		}

	case *langast.ImportFrom:
		for _, name := range n.Names {
			scope.Define(name)
		}

	case *langast.Return:
		if n.Value != nil {
			b.visitExpr(scope, n.Value)
		}
	case *langast.ExprStmt:
		b.visitExpr(scope, n.Value)
	case *langast.Assert:
		b.visitExpr(scope, n.Test)
	case *langast.Raise:
		if n.Exc != nil {
			b.visitExpr(scope, n.Exc)
		}
	case *langast.Delete:
		for _, t := range n.Targets {
			b.visitExpr(scope, t)
		}
	}
}

// defineTarget defines the bound names appearing in an assignment
// target, recursing into tuple/list patterns so every leaf name binds.
func (b *builder) defineTarget(scope *Scope, target langast.Expr) {
	switch t := target.(type) {
	case *langast.Name:
		scope.Define(t.Id)
	case *langast.Tuple:
		for _, e := range t.Elts {
			b.defineTarget(scope, e)
		}
	case *langast.List:
		for _, e := range t.Elts {
			b.defineTarget(scope, e)
		}
	case *langast.Starred:
		b.defineTarget(scope, t.Value)
	default:
		b.visitExpr(scope, target)
	}
}

func (b *builder) visitExpr(scope *Scope, expr langast.Expr) {
	switch e := expr.(type) {
	case *langast.Lambda:
		p := e.Position()
		lamScope := newScope(lambdaScopeName(p.Line, p.Col), scope)
		for _, arg := range e.Args {
			lamScope.Define(arg.Name)
		}
		b.visitExpr(lamScope, e.Body)
	case *langast.Call:
		b.visitExpr(scope, e.Func)
		for _, a := range e.Args {
			b.visitExpr(scope, a)
		}
	case *langast.Attribute:
		b.visitExpr(scope, e.Value)
	case *langast.Subscript:
		b.visitExpr(scope, e.Value)
		b.visitExpr(scope, e.Index)
	case *langast.Tuple:
		for _, el := range e.Elts {
			b.visitExpr(scope, el)
		}
	case *langast.List:
		for _, el := range e.Elts {
			b.visitExpr(scope, el)
		}
	case *langast.Starred:
		b.visitExpr(scope, e.Value)
	case *langast.BinOp:
		b.visitExpr(scope, e.Left)
		b.visitExpr(scope, e.Right)
	case *langast.BoolOp:
		for _, v := range e.Values {
			b.visitExpr(scope, v)
		}
	case *langast.Compare:
		b.visitExpr(scope, e.Left)
		for _, c := range e.Comparators {
			b.visitExpr(scope, c)
		}
	case *langast.UnaryOp:
		b.visitExpr(scope, e.Operand)
	case *langast.Dict:
		for _, k := range e.Keys {
			b.visitExpr(scope, k)
		}
		for _, v := range e.Values {
			b.visitExpr(scope, v)
		}
	}
}

// scopeName names the child scope pushed for a function/class
// definition: the declared name, or "lambda:<line>:<col>" when the
// FunctionDef stands in for a Lambda expression's synthetic body.
func scopeName(n *langast.FunctionDef) string {
	if n.IsLambda {
		p := n.Position()
		return lambdaScopeName(p.Line, p.Col)
	}
	return n.Name
}

func lambdaScopeName(line, col int) string {
	return "lambda:" + strconv.Itoa(line) + ":" + strconv.Itoa(col)
}

// Package instrumenter rewrites an analyzed module so that executing it
// produces a well-formed trace: every statement id assigned by analysis
// gains exactly one runtime emission point, injected without altering
// the program's behavior. Statements with nothing to observe are the
// exception: a Return, Yield or YieldFrom without a value, a bare Raise
// and a lambda's parameters get no emission point. The rewrite never
// creates statement ids of its own; resolving a node the analysis has
// not seen is a fatal invariant violation.
package instrumenter

import (
	"fmt"

	"github.com/viant/aardwolf/analysis"
	"github.com/viant/aardwolf/ids"
	"github.com/viant/aardwolf/langast"
	"github.com/viant/aardwolf/runtime"
)

// RuntimeName is the ambient handle the injected calls are reached
// through; the module import prepended to the rewritten tree binds it.
const RuntimeName = "aardwolf"

type invariantViolation struct{ msg string }

// Instrument rewrites mod in place against res. The id-map divergence
// invariant is enforced with a panic converted to an error here, at the
// package boundary.
func Instrument(mod *langast.Module, res *analysis.Result) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if v, ok := r.(invariantViolation); ok {
				err = fmt.Errorf("instrumenter: %s", v.msg)
				return
			}
			panic(r)
		}
	}()

	in := &instrumenter{res: res}
	mod.Body = in.rewriteBody(mod.Body)

	imp := &langast.Import{Names: []string{RuntimeName}}
	if len(mod.Body) > 0 {
		imp.Base = langast.NewBase(mod.Body[0].Position())
	}
	mod.Body = append([]langast.Stmt{imp}, mod.Body...)
	return nil
}

type instrumenter struct {
	res *analysis.Result
}

// nodeID resolves the statement id analysis assigned to node. Rewriting
// must never be the first to see a node.
func (in *instrumenter) nodeID(node langast.Node) ids.StmtID {
	id, inserted := in.res.Nodes.GetChecked(node)
	if inserted {
		panic(invariantViolation{msg: fmt.Sprintf(
			"rewriting introduced a new statement id %d at %d:%d", id, node.Position().Line, node.Position().Col)})
	}
	return ids.StmtID{FileID: in.res.FileID, Stmt: id}
}

// --- injected node constructors -------------------------------------------

// idTuple renders a StmtID as the (file_id, stmt_id) tuple literal the
// runtime emitters take.
func idTuple(at langast.Node, id ids.StmtID) langast.Expr {
	base := langast.NewBase(at.Position())
	return &langast.Tuple{Base: base, Elts: []langast.Expr{
		&langast.Constant{Base: base, Value: id.FileID},
		&langast.Constant{Base: base, Value: id.Stmt},
	}}
}

// runtimeCall builds aardwolf.<name>(args...), positioned at host.
func runtimeCall(host langast.Node, name string, args ...langast.Expr) *langast.Call {
	base := langast.NewBase(host.Position())
	return &langast.Call{
		Base: base,
		Func: &langast.Attribute{
			Base:  base,
			Value: &langast.Name{Base: base, Id: RuntimeName},
			Attr:  name,
		},
		Args: args,
	}
}

// isRuntimeCall reports whether e is a call already injected by this
// pass; such calls are not instrumented again.
func isRuntimeCall(e langast.Expr) bool {
	call, ok := e.(*langast.Call)
	if !ok {
		return false
	}
	attr, ok := call.Func.(*langast.Attribute)
	if !ok {
		return false
	}
	name, ok := attr.Value.(*langast.Name)
	return ok && name.Id == RuntimeName
}

func (in *instrumenter) writeStmtStmt(node langast.Node, id ids.StmtID) langast.Stmt {
	call := runtimeCall(node, "write_stmt", idTuple(node, id))
	return &langast.ExprStmt{Base: langast.NewBase(node.Position()), Value: call}
}

// wrapExpr wraps e in write_expr(e, (file_id, stmt_id)) for the
// statement identified by idNode.
func (in *instrumenter) wrapExpr(e langast.Expr, idNode langast.Node) langast.Expr {
	id := in.nodeID(idNode)
	return runtimeCall(e, "write_expr", e, idTuple(e, id))
}

// wrapValue wraps e in write_value(e[, accessor_tree]).
func (in *instrumenter) wrapValue(e langast.Expr, tree *runtime.AccTree) langast.Expr {
	args := []langast.Expr{e}
	if tree != nil {
		args = append(args, &langast.Constant{Base: langast.NewBase(e.Position()), Value: tree})
	}
	return runtimeCall(e, "write_value", args...)
}

// --- expression rewriting --------------------------------------------------

// rewriteExpr recursively rewrites subexpressions and instruments every
// call expression: the dispatched-through function value is observed by
// write_expr and the call's result by write_value.
func (in *instrumenter) rewriteExpr(e langast.Expr) langast.Expr {
	switch n := e.(type) {
	case nil:
		return nil
	case *langast.Call:
		if isRuntimeCall(n) {
			return n
		}
		for i, arg := range n.Args {
			n.Args[i] = in.rewriteExpr(arg)
		}
		n.Func = in.rewriteExpr(n.Func)
		n.Func = in.wrapExpr(n.Func, n)
		return in.wrapValue(n, nil)
	case *langast.Lambda:
		idNode := n.Body
		n.Body = in.rewriteExpr(n.Body)
		if !isRuntimeCall(n.Body) {
			// A call body already emits through its own wrapping; any
			// other body gains the implicit-return emission here.
			id := in.nodeID(idNode)
			n.Body = runtimeCall(n.Body, "write_expr", n.Body, idTuple(n.Body, id))
		}
		return n
	case *langast.Attribute:
		n.Value = in.rewriteExpr(n.Value)
		return n
	case *langast.Subscript:
		n.Value = in.rewriteExpr(n.Value)
		n.Index = in.rewriteExpr(n.Index)
		return n
	case *langast.Tuple:
		for i, el := range n.Elts {
			n.Elts[i] = in.rewriteExpr(el)
		}
		return n
	case *langast.List:
		for i, el := range n.Elts {
			n.Elts[i] = in.rewriteExpr(el)
		}
		return n
	case *langast.Starred:
		n.Value = in.rewriteExpr(n.Value)
		return n
	case *langast.BinOp:
		n.Left = in.rewriteExpr(n.Left)
		n.Right = in.rewriteExpr(n.Right)
		return n
	case *langast.BoolOp:
		for i, v := range n.Values {
			n.Values[i] = in.rewriteExpr(v)
		}
		return n
	case *langast.Compare:
		n.Left = in.rewriteExpr(n.Left)
		for i, c := range n.Comparators {
			n.Comparators[i] = in.rewriteExpr(c)
		}
		return n
	case *langast.UnaryOp:
		n.Operand = in.rewriteExpr(n.Operand)
		return n
	case *langast.Dict:
		for i, k := range n.Keys {
			n.Keys[i] = in.rewriteExpr(k)
		}
		for i, v := range n.Values {
			n.Values[i] = in.rewriteExpr(v)
		}
		return n
	}
	return e
}

// --- statement rewriting ---------------------------------------------------

func (in *instrumenter) rewriteBody(body []langast.Stmt) []langast.Stmt {
	out := make([]langast.Stmt, 0, len(body))
	for _, stmt := range body {
		out = append(out, in.rewriteStmt(stmt)...)
	}
	return out
}

func (in *instrumenter) rewriteStmt(stmt langast.Stmt) []langast.Stmt {
	switch n := stmt.(type) {
	case *langast.FunctionDef:
		return []langast.Stmt{in.rewriteFunctionDef(n)}

	case *langast.ClassDef:
		for i, d := range n.Decorators {
			n.Decorators[i] = in.rewriteExpr(d)
		}
		n.Body = in.rewriteBody(n.Body)
		return []langast.Stmt{n}

	case *langast.Assign:
		n.Value = in.rewriteExpr(n.Value)
		n.Value = in.wrapExpr(n.Value, n)
		for i, target := range n.Targets {
			n.Targets[i] = in.rewriteExpr(target)
		}
		// One write_value layer per target, so the number of value events
		// matches the number of definitions.
		for _, target := range n.Targets {
			n.Value = in.wrapValue(n.Value, accTreeOf(target))
		}
		return []langast.Stmt{n}

	case *langast.AugAssign:
		n.Value = in.rewriteExpr(n.Value)
		n.Value = in.wrapExpr(n.Value, n)
		n.Target = in.rewriteExpr(n.Target)
		n.Value = in.wrapValue(n.Value, accTreeOf(n.Target))
		return []langast.Stmt{n}

	case *langast.ExprStmt:
		n.Value = in.rewriteExpr(n.Value)
		return []langast.Stmt{n}

	case *langast.Assert:
		n.Msg = in.rewriteExpr(n.Msg)
		n.Test = in.rewriteExpr(n.Test)
		n.Test = in.wrapExpr(n.Test, n)
		return []langast.Stmt{n}

	case *langast.Delete:
		for i, target := range n.Targets {
			n.Targets[i] = in.rewriteExpr(target)
		}
		return []langast.Stmt{n, in.writeStmtStmt(n, in.nodeID(n))}

	case *langast.If:
		n.Test = in.rewriteExpr(n.Test)
		n.Test = in.wrapExpr(n.Test, n)
		n.Body = in.rewriteBody(n.Body)
		n.Orelse = in.rewriteBody(n.Orelse)
		return []langast.Stmt{n}

	case *langast.While:
		n.Test = in.rewriteExpr(n.Test)
		n.Test = in.wrapExpr(n.Test, n)
		n.Body = in.rewriteBody(n.Body)
		n.Orelse = in.rewriteBody(n.Orelse)
		return []langast.Stmt{n}

	case *langast.For:
		id := in.nodeID(n)
		n.Iter = in.rewriteExpr(n.Iter)
		n.Target = in.rewriteExpr(n.Target)
		tree := accTreeOf(n.Target)
		n.Iter = runtimeCall(n.Iter, "aardwolf_iter",
			n.Iter,
			idTuple(n.Iter, id),
			&langast.Constant{Base: langast.NewBase(n.Iter.Position()), Value: tree})
		n.Body = in.rewriteBody(n.Body)
		n.Orelse = in.rewriteBody(n.Orelse)
		return []langast.Stmt{n}

	case *langast.With:
		n.ContextExpr = in.rewriteExpr(n.ContextExpr)
		n.ContextExpr = in.wrapExpr(n.ContextExpr, n)
		n.ContextExpr = in.wrapValue(n.ContextExpr, nil)
		n.OptionalVars = in.rewriteExpr(n.OptionalVars)
		n.Body = in.rewriteBody(n.Body)
		return []langast.Stmt{n}

	case *langast.Break:
		return []langast.Stmt{in.writeStmtStmt(n, in.nodeID(n)), n}

	case *langast.Continue:
		return []langast.Stmt{in.writeStmtStmt(n, in.nodeID(n)), n}

	case *langast.Return:
		if n.Value != nil {
			n.Value = in.rewriteExpr(n.Value)
			n.Value = in.wrapExpr(n.Value, n)
		}
		return []langast.Stmt{n}

	case *langast.Yield:
		if n.Value != nil {
			n.Value = in.rewriteExpr(n.Value)
			n.Value = in.wrapExpr(n.Value, n)
		}
		return []langast.Stmt{n}

	case *langast.YieldFrom:
		if n.Value != nil {
			n.Value = in.rewriteExpr(n.Value)
			n.Value = in.wrapExpr(n.Value, n)
		}
		return []langast.Stmt{n}

	case *langast.Raise:
		if n.Exc != nil {
			n.Cause = in.rewriteExpr(n.Cause)
			n.Exc = in.rewriteExpr(n.Exc)
			n.Exc = in.wrapExpr(n.Exc, n)
		}
		return []langast.Stmt{n}

	case *langast.Try:
		return []langast.Stmt{in.rewriteTry(n)}
	}

	return []langast.Stmt{stmt}
}

// rewriteFunctionDef prepends, for each formal parameter, a statement
// event and a value observation at the head of the body, in parameter
// order.
func (in *instrumenter) rewriteFunctionDef(n *langast.FunctionDef) langast.Stmt {
	for i, d := range n.Decorators {
		n.Decorators[i] = in.rewriteExpr(d)
	}
	n.Body = in.rewriteBody(n.Body)

	head := make([]langast.Stmt, 0, 2*len(n.Args))
	for _, arg := range n.Args {
		head = append(head, in.writeStmtStmt(arg, in.nodeID(arg)))
		observe := in.wrapValue(&langast.Name{Base: arg.Base, Id: arg.Name}, nil)
		head = append(head, &langast.ExprStmt{Base: arg.Base, Value: observe})
	}
	n.Body = append(head, n.Body...)
	return n
}

// rewriteTry completes the handler-variable observation: a named
// handler gets a statement event and a value observation for the bound
// exception at the head of its body, the same pair a function parameter
// gets.
func (in *instrumenter) rewriteTry(n *langast.Try) langast.Stmt {
	n.Body = in.rewriteBody(n.Body)
	for _, h := range n.Handlers {
		h.Body = in.rewriteBody(h.Body)
		if h.Name == "" {
			continue
		}
		observe := in.wrapValue(&langast.Name{Base: h.Base, Id: h.Name}, nil)
		head := []langast.Stmt{
			in.writeStmtStmt(h, in.nodeID(h)),
			&langast.ExprStmt{Base: h.Base, Value: observe},
		}
		h.Body = append(head, h.Body...)
	}
	n.Orelse = in.rewriteBody(n.Orelse)
	n.Finally = in.rewriteBody(n.Finally)
	return n
}

// accTreeOf mirrors a destructuring target's shape: leaves for plain
// names/attributes/subscripts, tuple and list nodes for patterns, and a
// starred tag for *rest bindings.
func accTreeOf(target langast.Expr) *runtime.AccTree {
	switch t := target.(type) {
	case *langast.Tuple:
		children := make([]*runtime.AccTree, 0, len(t.Elts))
		for _, el := range t.Elts {
			children = append(children, accTreeOf(el))
		}
		return runtime.TupleOf(children...)
	case *langast.List:
		children := make([]*runtime.AccTree, 0, len(t.Elts))
		for _, el := range t.Elts {
			children = append(children, accTreeOf(el))
		}
		return runtime.ListOf(children...)
	case *langast.Starred:
		return runtime.StarredOf(accTreeOf(t.Value))
	}
	return runtime.Leaf()
}

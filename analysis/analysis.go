// Package analysis implements the third pipeline stage: it walks a
// normalized module once, building one CFG per function context while
// extracting each statement's def/use sets over the value-access
// algebra.
package analysis

import (
	"strconv"

	"github.com/viant/aardwolf/access"
	"github.com/viant/aardwolf/cfg"
	"github.com/viant/aardwolf/ids"
	"github.com/viant/aardwolf/langast"
	"github.com/viant/aardwolf/symbols"
	"github.com/viant/aardwolf/wire"
)

// Statement is one tracing point: a function parameter, or a statement
// node selected by the traversal below.
type Statement struct {
	ID          ids.StmtID
	FuncContext string
	Loc         access.Location
	Defs        []*access.Access
	Uses        []*access.Access
	Meta        byte
	Succ        []ids.StmtID
	Node        langast.Node
}

// Result is everything Analysis hands downstream: the ordered function
// contexts (so staticfile can skip empty ones deterministically), each
// context's normalized block list, the full statement table keyed by
// per-file statement id, and the node/value id maps the Instrumenter
// must not grow.
type Result struct {
	FileID     uint64
	Contexts   []string
	Blocks     map[string][]*cfg.Block
	Statements map[uint64]*Statement
	Nodes      *ids.Map[langast.Node]
	Values     *access.Map
}

// Statement looks up a statement by its per-file numeric id.
func (r *Result) Statement(id uint64) (*Statement, bool) {
	st, ok := r.Statements[id]
	return st, ok
}

// Analyze runs the Analysis pass over a normalized module, given the
// symbol table Symbols built in stage 1 and the stable fileID assigned
// to this source.
func Analyze(mod *langast.Module, table *symbols.Table, fileID uint64) *Result {
	a := &analyzer{
		cfgb:        cfg.NewBuilder(),
		scope:       table.Top,
		childCursor: make(map[*symbols.Scope]int),
		nodes:       ids.NewMap[langast.Node](),
		values:      access.NewMap(),
		statements:  make(map[uint64]*Statement),
		fileID:      fileID,
	}
	a.levels = append(a.levels, nil)

	for _, stmt := range mod.Body {
		a.visitStmt(stmt)
	}

	blocks := make(map[string][]*cfg.Block, len(a.cfgb.Contexts()))
	for _, ctx := range a.cfgb.Contexts() {
		blocks[ctx] = cfg.Normalize(a.cfgb.Blocks(ctx))
	}

	linkSuccessors(blocks, a.statements)

	return &Result{
		FileID:     fileID,
		Contexts:   a.cfgb.Contexts(),
		Blocks:     blocks,
		Statements: a.statements,
		Nodes:      a.nodes,
		Values:     a.values,
	}
}

// linkSuccessors derives each statement's Succ list from its owning
// block: interior statements point at the next statement in the same
// block, and a block's last statement points at the entry statement of
// every successor block.
func linkSuccessors(blocks map[string][]*cfg.Block, statements map[uint64]*Statement) {
	for _, list := range blocks {
		for _, blk := range list {
			for i, id := range blk.Stmts {
				st := statements[id]
				if i+1 < len(blk.Stmts) {
					st.Succ = append(st.Succ, statements[blk.Stmts[i+1]].ID)
					continue
				}
				for _, succ := range blk.Succ() {
					if len(succ.Stmts) == 0 {
						continue
					}
					st.Succ = append(st.Succ, statements[succ.Stmts[0]].ID)
				}
			}
		}
	}
}

type analyzer struct {
	cfgb        *cfg.Builder
	scope       *symbols.Scope
	childCursor map[*symbols.Scope]int

	levels [][]*access.Access

	nodes  *ids.Map[langast.Node]
	values *access.Map

	statements map[uint64]*Statement
	fileID     uint64
}

// --- level stack ---------------------------------------------------------

func (a *analyzer) newLevel() {
	a.levels = append(a.levels, nil)
}

func (a *analyzer) collectLevel() []*access.Access {
	n := len(a.levels) - 1
	level := a.levels[n]
	a.levels = a.levels[:n]
	return level
}

func (a *analyzer) push(acc *access.Access) {
	n := len(a.levels) - 1
	a.levels[n] = append(a.levels[n], acc)
}

func (a *analyzer) levelLen() int {
	return len(a.levels[len(a.levels)-1])
}

func (a *analyzer) pop() *access.Access {
	n := len(a.levels) - 1
	level := a.levels[n]
	last := level[len(level)-1]
	a.levels[n] = level[:len(level)-1]
	return last
}

// --- scope stack -----------------------------------------------------------

// enterScope descends into the symbol-table child scope a matching
// symbols.Build() created for the Nth scope-introducing construct seen
// at this level; both passes visit FunctionDef/ClassDef/Lambda nodes in
// the same left-to-right order, so a plain per-scope cursor keeps them
// paired without needing to match by name.
func (a *analyzer) enterScope() *symbols.Scope {
	idx := a.childCursor[a.scope]
	child := a.scope.Children[idx]
	a.childCursor[a.scope] = idx + 1
	prev := a.scope
	a.scope = child
	return prev
}

func (a *analyzer) exitScope(prev *symbols.Scope) {
	a.scope = prev
}

// --- node/statement bookkeeping --------------------------------------------

func (a *analyzer) addStatement(node langast.Node, defs, uses []*access.Access, meta byte) {
	id := a.nodes.Get(node)
	st := &Statement{
		ID:          ids.StmtID{FileID: a.fileID, Stmt: id},
		FuncContext: a.cfgb.Context(),
		Loc:         a.locOf(node),
		Defs:        access.Dedup(defs),
		Uses:        access.Dedup(uses),
		Meta:        wire.Meta(meta),
		Node:        node,
	}
	a.statements[id] = st
	a.cfgb.AddStmt(id)
}

func (a *analyzer) locOf(node langast.Node) access.Location {
	start, end := node.Position(), node.EndPosition()
	return access.Location{
		FileID:    a.fileID,
		StartLine: start.Line,
		StartCol:  start.Col,
		EndLine:   end.Line,
		EndCol:    end.Col,
	}
}

// --- expression visiting: def/use extraction -------------------------------

func (a *analyzer) registerName(name string) {
	if sym, ok := a.scope.Lookup(name); ok {
		a.push(access.Scalar(sym.Scope.Namespace() + "::" + sym.Name))
		return
	}
	a.push(access.Scalar(name))
}

func (a *analyzer) visitExpr(e langast.Expr) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *langast.Name:
		a.registerName(n.Id)
	case *langast.Constant:
		// produces no access; attribute/subscript bases over constants
		// substitute a synthetic scalar instead
	case *langast.Attribute:
		before := a.levelLen()
		a.visitExpr(n.Value)
		if a.levelLen() > before {
			base := a.pop()
			a.push(access.Structural(base, access.Scalar(n.Attr)))
		} else {
			a.push(access.Scalar(n.Attr))
		}
	case *langast.Subscript:
		before := a.levelLen()
		a.visitExpr(n.Value)
		var base *access.Access
		if a.levelLen() > before {
			base = a.pop()
		} else {
			base = access.Scalar("$constant")
		}
		a.newLevel()
		a.visitExpr(n.Index)
		idx := a.collectLevel()
		a.push(access.ArrayLike(base, idx...))
	case *langast.Call:
		a.visitCall(n)
	case *langast.Lambda:
		a.visitLambdaExpr(n)
	case *langast.Tuple:
		for _, el := range n.Elts {
			a.visitExpr(el)
		}
	case *langast.List:
		for _, el := range n.Elts {
			a.visitExpr(el)
		}
	case *langast.Starred:
		a.visitExpr(n.Value)
	case *langast.BinOp:
		a.visitExpr(n.Left)
		a.visitExpr(n.Right)
	case *langast.BoolOp:
		for _, v := range n.Values {
			a.visitExpr(v)
		}
	case *langast.Compare:
		a.visitExpr(n.Left)
		for _, c := range n.Comparators {
			a.visitExpr(c)
		}
	case *langast.UnaryOp:
		a.visitExpr(n.Operand)
	case *langast.Dict:
		for _, k := range n.Keys {
			a.visitExpr(k)
		}
		for _, v := range n.Values {
			a.visitExpr(v)
		}
	}
}

// visitCall visits a call expression. Calls are always their own CFG
// statement, recorded at the point they are encountered — even nested
// inside a bigger expression — with the call's own def (the tagged
// result access) and uses (the argument accesses). The tagged result
// access is also left on the enclosing level so the containing
// expression picks it up as a use.
func (a *analyzer) visitCall(n *langast.Call) {
	a.newLevel()
	for _, arg := range n.Args {
		a.visitExpr(arg)
	}
	argUses := a.collectLevel()

	before := a.levelLen()
	a.visitExpr(n.Func)

	var fn *access.Access
	if a.levelLen() > before {
		fn = a.pop()
	} else {
		// The callee produced no access (e.g. an immediately-invoked
		// Lambda); fall back to a synthetic name so the call result is
		// still a distinguishable access.
		pos := n.Func.Position()
		fn = access.Scalar(lambdaName(pos.Line, pos.Col))
	}

	pos := n.Position()
	tagged := access.Call(fn, pos.Line, pos.Col)
	a.push(tagged)

	a.addStatement(n, []*access.Access{tagged}, argUses, wire.MetaCall)
}

func lambdaName(line, col int) string {
	return "lambda:" + strconv.Itoa(line) + ":" + strconv.Itoa(col)
}

// visitLambdaExpr pushes a lambda scope, treats the lambda body as a
// `return <body>`, then pops the scope/context.
func (a *analyzer) visitLambdaExpr(n *langast.Lambda) {
	pos := n.Position()
	name := lambdaName(pos.Line, pos.Col)

	a.cfgb.PushCtx(name)
	prevScope := a.enterScope()

	a.newLevel()
	for _, arg := range n.Args {
		a.registerName(arg.Name)
		def := a.pop()
		a.addStatement(arg, []*access.Access{def}, nil, wire.MetaArg)
	}
	a.collectLevel()

	// The implicit return is keyed on the body expression itself, so the
	// instrumenter can re-resolve the id from the node it actually
	// rewrites (a synthetic Return node would be unreachable to it).
	a.newLevel()
	a.visitExpr(n.Body)
	uses := a.collectLevel()
	if id, inserted := a.nodes.GetChecked(n.Body); !inserted {
		// The body is itself a call statement; fold the return role into
		// it rather than registering the node twice.
		st := a.statements[id]
		st.Meta |= wire.MetaRet
		st.Uses = access.Dedup(append(st.Uses, uses...))
	} else {
		a.addStatement(n.Body, nil, uses, wire.MetaRet)
	}
	a.cfgb.Block().Freeze()

	a.exitScope(prevScope)
	a.cfgb.PopCtx()
}

// --- statement visiting: control flow + def/use --------------------------

func (a *analyzer) visitStmt(stmt langast.Stmt) {
	switch n := stmt.(type) {
	case *langast.FunctionDef:
		a.visitFunctionDef(n)
	case *langast.ClassDef:
		a.visitClassDef(n)
	case *langast.Assign:
		a.visitAssign(n)
	case *langast.AugAssign:
		a.visitAugAssign(n)
	case *langast.Assert:
		a.visitAssert(n)
	case *langast.Delete:
		a.visitDelete(n)
	case *langast.ExprStmt:
		a.visitExprStmt(n)
	case *langast.If:
		a.visitIf(n)
	case *langast.For:
		a.visitFor(n)
	case *langast.While:
		a.visitWhile(n)
	case *langast.With:
		a.visitWith(n)
	case *langast.Break:
		a.visitBreak(n)
	case *langast.Continue:
		a.visitContinue(n)
	case *langast.Return:
		a.visitReturn(n)
	case *langast.Yield:
		a.visitYield(n)
	case *langast.YieldFrom:
		a.visitYieldFrom(n)
	case *langast.Raise:
		a.visitRaise(n)
	case *langast.Try:
		a.visitTry(n)
	case *langast.Import, *langast.ImportFrom:
		// no def/use tracked; names were bound in stage 1.
	}
}

func (a *analyzer) visitBody(body []langast.Stmt) {
	for _, s := range body {
		a.visitStmt(s)
	}
}

func (a *analyzer) visitDecorators(decorators []langast.Expr) {
	hasCall := false
	for _, d := range decorators {
		a.newLevel()
		a.visitExpr(d)
		a.collectLevel()
		if _, ok := d.(*langast.Call); ok {
			hasCall = true
		}
	}
	if hasCall {
		a.cfgb.NewBlock()
	}
}

func (a *analyzer) visitFunctionDef(n *langast.FunctionDef) {
	name := n.Name + "[" + strconv.Itoa(n.Position().Line) + "]"
	a.cfgb.PushCtx(name)
	prevScope := a.enterScope()

	a.visitDecorators(n.Decorators)

	a.newLevel()
	for _, arg := range n.Args {
		a.registerName(arg.Name)
	}
	argDefs := a.collectLevel()
	for i, arg := range n.Args {
		a.addStatement(arg, []*access.Access{argDefs[i]}, nil, wire.MetaArg)
	}

	a.visitBody(n.Body)

	a.exitScope(prevScope)
	a.cfgb.PopCtx()
}

func (a *analyzer) visitClassDef(n *langast.ClassDef) {
	a.cfgb.PushCtx(n.Name)
	prevScope := a.enterScope()

	a.visitDecorators(n.Decorators)

	a.visitBody(n.Body)

	a.exitScope(prevScope)
	a.cfgb.PopCtx()
}

func (a *analyzer) visitAssign(n *langast.Assign) {
	a.newLevel()
	a.visitExpr(n.Value)
	uses := a.collectLevel()

	var defs []*access.Access
	for _, target := range n.Targets {
		defs = append(defs, a.visitTarget(target)...)
	}

	a.addStatement(n, defs, uses, 0)
}

// visitTarget collects one Access per leaf of a (possibly destructuring)
// assignment target: a target may be a Name, Attribute, Subscript, or a
// Tuple/List pattern, and each leaf contributes one def.
func (a *analyzer) visitTarget(target langast.Expr) []*access.Access {
	switch t := target.(type) {
	case *langast.Tuple:
		var out []*access.Access
		for _, el := range t.Elts {
			out = append(out, a.visitTarget(el)...)
		}
		return out
	case *langast.List:
		var out []*access.Access
		for _, el := range t.Elts {
			out = append(out, a.visitTarget(el)...)
		}
		return out
	case *langast.Starred:
		return a.visitTarget(t.Value)
	default:
		a.newLevel()
		a.visitExpr(target)
		return a.collectLevel()
	}
}

func (a *analyzer) visitAugAssign(n *langast.AugAssign) {
	a.newLevel()
	a.visitExpr(n.Value)
	uses := a.collectLevel()

	a.newLevel()
	a.visitExpr(n.Target)
	defs := a.collectLevel()
	uses = append(uses, defs...)

	a.addStatement(n, defs, uses, 0)
}

func (a *analyzer) visitAssert(n *langast.Assert) {
	a.newLevel()
	a.visitExpr(n.Test)
	a.visitExpr(n.Msg)
	uses := a.collectLevel()
	a.addStatement(n, nil, uses, 0)
}

func (a *analyzer) visitDelete(n *langast.Delete) {
	var uses []*access.Access
	for _, target := range n.Targets {
		a.newLevel()
		a.visitExpr(target)
		uses = append(uses, a.collectLevel()...)
	}
	a.addStatement(n, nil, uses, 0)
}

func (a *analyzer) visitExprStmt(n *langast.ExprStmt) {
	a.newLevel()
	a.visitExpr(n.Value)
	a.collectLevel()
}

func (a *analyzer) visitIf(n *langast.If) {
	a.newLevel()
	a.visitExpr(n.Test)
	uses := a.collectLevel()

	ifBlock := a.cfgb.Block()
	a.addStatement(n, nil, uses, 0)

	thenBlock := a.cfgb.NewBlock()
	ifBlock.AddSucc(thenBlock, false)

	a.visitBody(n.Body)
	thenBlock = a.cfgb.Block()

	var elseBlock *cfg.Block
	if len(n.Orelse) > 0 {
		elseBlock = a.cfgb.NewBlock()
		ifBlock.AddSucc(elseBlock, false)

		a.visitBody(n.Orelse)
		elseBlock = a.cfgb.Block()
	}

	join := a.cfgb.NewBlock()
	thenBlock.AddSucc(join, false)
	if elseBlock == nil {
		ifBlock.AddSucc(join, false)
	} else {
		elseBlock.AddSucc(join, false)
	}
}

func (a *analyzer) visitFor(n *langast.For) {
	a.newLevel()
	a.visitExpr(n.Iter)
	uses := a.collectLevel()

	prevBlock := a.cfgb.Block()

	loopBlock := a.cfgb.NewBlock()
	prevBlock.AddSucc(loopBlock, false)
	a.cfgb.PushLoop()

	a.newLevel()
	a.visitExpr(n.Target)
	defs := a.collectLevel()
	a.addStatement(n, defs, uses, 0)

	bodyBlock := a.cfgb.NewBlock()
	loopBlock.AddSucc(bodyBlock, false)

	a.visitBody(n.Body)
	a.cfgb.Block().AddSucc(loopBlock, false)

	var elseBlock *cfg.Block
	if len(n.Orelse) > 0 {
		elseBlock = a.cfgb.NewBlock()
		loopBlock.AddSucc(elseBlock, false)

		a.visitBody(n.Orelse)
		elseBlock = a.cfgb.Block()
	}

	join := a.cfgb.NewBlock()
	loopBlock.AddSucc(join, false)
	if elseBlock != nil {
		elseBlock.AddSucc(join, false)
	}
	for _, exit := range loopBlock.Exits() {
		exit.AddSucc(join, true)
	}

	a.cfgb.PopLoop()
}

func (a *analyzer) visitWhile(n *langast.While) {
	a.newLevel()
	a.visitExpr(n.Test)
	uses := a.collectLevel()

	prevBlock := a.cfgb.Block()

	loopBlock := a.cfgb.NewBlock()
	prevBlock.AddSucc(loopBlock, false)
	a.cfgb.PushLoop()

	a.addStatement(n, nil, uses, 0)

	bodyBlock := a.cfgb.NewBlock()
	loopBlock.AddSucc(bodyBlock, false)

	a.visitBody(n.Body)
	a.cfgb.Block().AddSucc(loopBlock, false)

	var elseBlock *cfg.Block
	if len(n.Orelse) > 0 {
		elseBlock = a.cfgb.NewBlock()
		loopBlock.AddSucc(elseBlock, false)

		a.visitBody(n.Orelse)
		elseBlock = a.cfgb.Block()
	}

	join := a.cfgb.NewBlock()
	loopBlock.AddSucc(join, false)
	if elseBlock != nil {
		elseBlock.AddSucc(join, false)
	}
	for _, exit := range loopBlock.Exits() {
		exit.AddSucc(join, true)
	}

	a.cfgb.PopLoop()
}

func (a *analyzer) visitWith(n *langast.With) {
	a.newLevel()
	a.visitExpr(n.ContextExpr)
	uses := a.collectLevel()

	var defs []*access.Access
	if n.OptionalVars != nil {
		defs = a.visitTarget(n.OptionalVars)
	}

	a.addStatement(n, defs, uses, 0)

	a.visitBody(n.Body)
}

func (a *analyzer) visitBreak(n *langast.Break) {
	block := a.cfgb.Block()
	a.addStatement(n, nil, nil, 0)

	loopBlock := a.cfgb.PeekLoop()
	loopBlock.AddExit(block)
	block.Freeze()
}

func (a *analyzer) visitContinue(n *langast.Continue) {
	block := a.cfgb.Block()
	a.addStatement(n, nil, nil, 0)

	loopBlock := a.cfgb.PeekLoop()
	block.AddSucc(loopBlock, false)
	block.Freeze()
}

func (a *analyzer) visitReturn(n *langast.Return) {
	var uses []*access.Access
	if n.Value != nil {
		a.newLevel()
		a.visitExpr(n.Value)
		uses = a.collectLevel()
	}
	a.addStatement(n, nil, uses, wire.MetaRet)
	a.cfgb.Block().Freeze()
}

func (a *analyzer) visitYield(n *langast.Yield) {
	var uses []*access.Access
	if n.Value != nil {
		a.newLevel()
		a.visitExpr(n.Value)
		uses = a.collectLevel()
	}
	a.addStatement(n, nil, uses, wire.MetaRet)
}

func (a *analyzer) visitYieldFrom(n *langast.YieldFrom) {
	var uses []*access.Access
	if n.Value != nil {
		a.newLevel()
		a.visitExpr(n.Value)
		uses = a.collectLevel()
	}
	a.addStatement(n, nil, uses, wire.MetaRet)
}

// visitRaise treats `raise` as a sequential, non-terminating-for-CFG
// statement whose uses are the raised expression's accesses.
func (a *analyzer) visitRaise(n *langast.Raise) {
	a.newLevel()
	a.visitExpr(n.Exc)
	a.visitExpr(n.Cause)
	uses := a.collectLevel()
	a.addStatement(n, nil, uses, 0)
}

// visitTry gives Try/Except/Finally a conservative CFG treatment: every
// try-body statement can fault into each handler, handlers behave like
// If arms, and finally is a join every path crosses.
func (a *analyzer) visitTry(n *langast.Try) {
	ctx := a.cfgb.Context()
	beforeLen := len(a.cfgb.Blocks(ctx))

	prev := a.cfgb.Block()
	tryEntry := a.cfgb.NewBlock()
	prev.AddSucc(tryEntry, false)

	a.visitBody(n.Body)
	bodyExit := a.cfgb.Block()

	// Every block opened while walking the try body can fault, so each
	// gets an edge into every handler.
	tryBlocks := a.cfgb.Blocks(ctx)[beforeLen:]

	var handlerExits []*cfg.Block
	for _, h := range n.Handlers {
		handlerBlock := a.cfgb.NewBlock()
		for _, blk := range tryBlocks {
			blk.AddSucc(handlerBlock, false)
		}

		if h.Name != "" {
			a.newLevel()
			a.registerName(h.Name)
			defs := a.collectLevel()
			a.addStatement(h, defs, nil, 0)
		}

		a.visitBody(h.Body)
		handlerExits = append(handlerExits, a.cfgb.Block())
	}

	if len(n.Orelse) > 0 {
		orelseBlock := a.cfgb.NewBlock()
		bodyExit.AddSucc(orelseBlock, false)
		a.visitBody(n.Orelse)
		bodyExit = a.cfgb.Block()
	}

	finallyBlock := a.cfgb.NewBlock()
	bodyExit.AddSucc(finallyBlock, false)
	for _, exit := range handlerExits {
		exit.AddSucc(finallyBlock, false)
	}

	a.visitBody(n.Finally)
}

// Package cfg implements the basic-block graph the analysis pass builds
// one function at a time. A Block accumulates statements in execution
// order and links to its successors/predecessors/exits; Builder drives
// block creation, context nesting and the loop stack.
package cfg

// Block is a maximal run of statements sharing one entry; in this
// system it may have more than one successor (the branch point is the
// block's last statement) and carries an auxiliary exits list used by
// Break to reach the loop's join block without an ordinary edge.
type Block struct {
	ID     int
	Stmts  []uint64 // statement IDs in block order, filled in by analysis
	succ   []*Block
	pred   []*Block
	exits  []*Block
	frozen bool
}

// AddStmt appends a statement id to the block's body.
func (b *Block) AddStmt(stmtID uint64) {
	b.Stmts = append(b.Stmts, stmtID)
}

// AddSucc links b to next, unless b is frozen and force is false.
func (b *Block) AddSucc(next *Block, force bool) {
	if b.frozen && !force {
		return
	}
	b.succ = append(b.succ, next)
	next.pred = append(next.pred, b)
}

// AddExit records next as a non-local escape target (a break site),
// unless b is frozen.
func (b *Block) AddExit(next *Block) {
	if b.frozen {
		return
	}
	b.exits = append(b.exits, next)
}

// Freeze forbids further successor/exit additions via the normal path;
// AddSucc(..., force=true) still adds an edge from a frozen block (used
// to link a Break's frozen block to its loop's join).
func (b *Block) Freeze() { b.frozen = true }

func (b *Block) Frozen() bool { return b.frozen }

// Empty reports whether no statement was ever appended to this block.
func (b *Block) Empty() bool { return len(b.Stmts) == 0 }

// Succ, Pred, Exits return the block's neighbours in insertion order.
func (b *Block) Succ() []*Block  { return b.succ }
func (b *Block) Pred() []*Block  { return b.pred }
func (b *Block) Exits() []*Block { return b.exits }

// removeSucc/removePred splice out a single neighbour; a neighbour not
// present is ignored.
func (b *Block) removeSucc(target *Block) {
	b.succ = removeBlock(b.succ, target)
}

func (b *Block) removePred(target *Block) {
	b.pred = removeBlock(b.pred, target)
}

func removeBlock(blocks []*Block, target *Block) []*Block {
	out := blocks[:0]
	removed := false
	for _, blk := range blocks {
		if !removed && blk == target {
			removed = true
			continue
		}
		out = append(out, blk)
	}
	return out
}

// Builder drives block creation and function-context/loop nesting for
// one module: a context stack joined by "::" (the top level reads as
// "__main__"), an ordered per-context block list, and a loop stack of
// currently enclosing loop-header blocks.
type Builder struct {
	nextID int
	block  *Block

	ctxStack []string
	ctx      string
	ctxOrder []string
	ctxStore map[string][]*Block

	loops []*Block
}

// NewBuilder returns a Builder positioned at the top-level "__main__"
// context with a fresh entry block.
func NewBuilder() *Builder {
	b := &Builder{ctxStore: make(map[string][]*Block)}
	b.PushCtx("__main__")
	return b
}

// PushCtx opens a new function context (function/class/lambda body) and
// returns its fresh entry block.
func (b *Builder) PushCtx(name string) *Block {
	b.ctxStack = append(b.ctxStack, name)
	b.ctx = b.prefix()
	if _, ok := b.ctxStore[b.ctx]; !ok {
		b.ctxOrder = append(b.ctxOrder, b.ctx)
	}
	return b.NewBlock()
}

// PopCtx closes the innermost context and restores the block cursor to
// the parent context's last block.
func (b *Builder) PopCtx() *Block {
	b.ctxStack = b.ctxStack[:len(b.ctxStack)-1]
	b.ctx = b.prefix()
	blocks := b.ctxStore[b.ctx]
	b.block = blocks[len(blocks)-1]
	return b.block
}

// NewBlock opens and returns a fresh block in the current context,
// appended after the context's existing blocks.
func (b *Builder) NewBlock() *Block {
	b.nextID++
	blk := &Block{ID: b.nextID}
	b.ctxStore[b.ctx] = append(b.ctxStore[b.ctx], blk)
	b.block = blk
	return blk
}

// AddStmt appends stmtID to the current block.
func (b *Builder) AddStmt(stmtID uint64) { b.block.AddStmt(stmtID) }

// Block returns the current block.
func (b *Builder) Block() *Block { return b.block }

// Context returns the current function-context name, e.g.
// "foo[12]::lambda:14:8".
func (b *Builder) Context() string { return b.ctx }

// PushLoop records the current block as the nearest enclosing loop
// header, consulted by Break/Continue.
func (b *Builder) PushLoop() { b.loops = append(b.loops, b.block) }

// PopLoop leaves the innermost loop.
func (b *Builder) PopLoop() { b.loops = b.loops[:len(b.loops)-1] }

// PeekLoop returns the nearest enclosing loop header block.
func (b *Builder) PeekLoop() *Block { return b.loops[len(b.loops)-1] }

// Contexts returns function-context names in first-seen order.
func (b *Builder) Contexts() []string {
	out := make([]string, len(b.ctxOrder))
	copy(out, b.ctxOrder)
	return out
}

// Blocks returns the ordered block list for a context.
func (b *Builder) Blocks(ctx string) []*Block { return b.ctxStore[ctx] }

func (b *Builder) prefix() string {
	if len(b.ctxStack) == 1 {
		return b.ctxStack[0]
	}
	out := b.ctxStack[1]
	for _, part := range b.ctxStack[2:] {
		out += "::" + part
	}
	return out
}

// Normalize elides every empty block from a context's block list,
// rewiring its predecessors directly to its successors. Blocks are
// processed in order; an elided block's own exits are not propagated
// since exits, unlike succ, are never the only path to a join.
func Normalize(blocks []*Block) []*Block {
	out := make([]*Block, 0, len(blocks))
	for _, blk := range blocks {
		if len(blk.Stmts) > 0 {
			out = append(out, blk)
			continue
		}
		for _, pred := range blk.pred {
			for _, succ := range blk.succ {
				pred.AddSucc(succ, true)
			}
			pred.removeSucc(blk)
		}
		for _, succ := range blk.succ {
			succ.removePred(blk)
		}
	}
	return out
}

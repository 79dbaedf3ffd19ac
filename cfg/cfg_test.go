package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlock_Freeze(t *testing.T) {
	a := &Block{ID: 1}
	b := &Block{ID: 2}
	c := &Block{ID: 3}

	a.AddStmt(1)
	a.Freeze()

	a.AddSucc(b, false)
	assert.Empty(t, a.Succ(), "frozen block must not gain successors")

	a.AddSucc(c, true)
	assert.Equal(t, []*Block{c}, a.Succ(), "force still stitches loop edges")
	assert.Equal(t, []*Block{a}, c.Pred())
}

func TestBlock_Exits(t *testing.T) {
	breakBlock := &Block{ID: 1}
	join := &Block{ID: 2}

	loop := &Block{ID: 3}
	loop.AddExit(breakBlock)
	assert.Equal(t, []*Block{breakBlock}, loop.Exits())

	breakBlock.Freeze()
	breakBlock.AddSucc(join, true)
	assert.Equal(t, []*Block{join}, breakBlock.Succ())
}

func TestBuilder_Contexts(t *testing.T) {
	b := NewBuilder()
	assert.Equal(t, "__main__", b.Context())

	b.AddStmt(1)

	b.PushCtx("foo[1]")
	assert.Equal(t, "foo[1]", b.Context())

	b.PushCtx("lambda:2:5")
	assert.Equal(t, "foo[1]::lambda:2:5", b.Context())
	b.AddStmt(2)

	b.PopCtx()
	assert.Equal(t, "foo[1]", b.Context())
	b.PopCtx()
	assert.Equal(t, "__main__", b.Context())

	assert.Equal(t, []string{"__main__", "foo[1]", "foo[1]::lambda:2:5"}, b.Contexts())
	assert.Equal(t, []uint64{2}, b.Blocks("foo[1]::lambda:2:5")[0].Stmts)
}

func TestBuilder_Loops(t *testing.T) {
	b := NewBuilder()
	header := b.NewBlock()
	b.PushLoop()
	assert.Same(t, header, b.PeekLoop())

	b.NewBlock()
	assert.Same(t, header, b.PeekLoop(), "loop header survives new blocks")
	b.PopLoop()
}

func TestNormalize(t *testing.T) {
	entry := &Block{ID: 1}
	entry.AddStmt(1)
	empty := &Block{ID: 2}
	exit := &Block{ID: 3}
	exit.AddStmt(2)

	entry.AddSucc(empty, false)
	empty.AddSucc(exit, false)

	out := Normalize([]*Block{entry, empty, exit})
	assert.Len(t, out, 2)
	assert.Equal(t, []*Block{exit}, entry.Succ(), "predecessor rewired past the empty block")
	assert.Equal(t, []*Block{entry}, exit.Pred())
}

func TestNormalize_TerminalEmptyBlock(t *testing.T) {
	entry := &Block{ID: 1}
	entry.AddStmt(1)
	join := &Block{ID: 2}
	entry.AddSucc(join, false)

	out := Normalize([]*Block{entry, join})
	assert.Len(t, out, 1)
	assert.Empty(t, entry.Succ(), "terminal empty join leaves no dangling successor")
}

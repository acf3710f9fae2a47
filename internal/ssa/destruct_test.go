package ssa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medal/internal/cfg"
	"medal/internal/local"
	"medal/internal/luaast"
)

func TestDestructResolvesRemainingPhiAndCoalescesGroup(t *testing.T) {
	fn, _, join := diamondWithWrite(t)
	result, err := Construct(fn)
	require.NoError(t, err)
	require.Len(t, join.Phis, 1)

	Destruct(fn, result)

	assert.Empty(t, join.Phis, "Destruct must lower every remaining phi")

	ret := join.Terminator.(*cfg.Return)
	read, ok := ret.Values[0].(*luaast.LocalRead)
	require.True(t, ok)

	a := fn.Blocks[1]
	require.NotEmpty(t, a.Statements)
	write, ok := a.Statements[len(a.Statements)-1].(*luaast.Assign)
	require.True(t, ok)
	writtenLocal, ok := write.Left[0].(*luaast.LocalLValue)
	require.True(t, ok)

	assert.Equal(t, writtenLocal.Local, read.Local, "the coalesced local read at join must match what a's branch last wrote")
}

func TestSplitCriticalEdgesInsertsRelayOnlyForCriticalEdges(t *testing.T) {
	// entry -(T)-> mid -> join, entry -(F)-> join: the entry->join edge is
	// critical (entry has two successors, join has two predecessors); the
	// other two edges are not.
	entry := &cfg.BasicBlock{ID: 0}
	mid := &cfg.BasicBlock{ID: 1}
	join := &cfg.BasicBlock{ID: 2}
	fn := cfg.NewFunction(entry, nil, false, nil)
	fn.Blocks = append(fn.Blocks, mid, join)

	trueEdge := &cfg.Edge{Kind: cfg.EdgeConditionalTrue, To: mid}
	falseEdge := &cfg.Edge{Kind: cfg.EdgeConditionalFalse, To: join}
	entry.Terminator = &cfg.Branch{Condition: &luaast.Literal{Kind: luaast.LiteralBool, Bool: true}, True: trueEdge, False: falseEdge}
	cfg.AddEdge(entry, trueEdge)
	cfg.AddEdge(entry, falseEdge)

	midEdge := &cfg.Edge{Kind: cfg.EdgeUnconditional, To: join}
	mid.Terminator = &cfg.Jump{Edge: midEdge}
	cfg.AddEdge(mid, midEdge)
	join.Terminator = &cfg.Return{}

	before := len(fn.Blocks)
	splitCriticalEdges(fn)

	assert.Equal(t, before+1, len(fn.Blocks), "exactly one relay block should be inserted, for the entry->join critical edge")
	assert.NotEqual(t, join, falseEdge.To, "the false edge must now point at the relay, not join directly")
	assert.Equal(t, join, midEdge.To, "the non-critical mid->join edge must be untouched")
	_ = local.Local{}
}

package restructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medal/internal/cfg"
	"medal/internal/local"
	"medal/internal/luaast"
)

func TestLiftLinearizesFullyReducedChain(t *testing.T) {
	entry := &cfg.BasicBlock{ID: 0}
	tail := &cfg.BasicBlock{ID: 1}
	fn := cfg.NewFunction(entry, nil, false, nil)
	fn.Blocks = append(fn.Blocks, tail)

	x := local.New()
	entry.Statements = append(entry.Statements, &luaast.Assign{
		Left:  []luaast.LValue{&luaast.LocalLValue{Local: x}},
		Right: []luaast.RValue{&luaast.Literal{Kind: luaast.LiteralNumber, Num: 1}},
	})
	edge := &cfg.Edge{Kind: cfg.EdgeUnconditional, To: tail}
	entry.Terminator = &cfg.Jump{Edge: edge}
	cfg.AddEdge(entry, edge)

	tail.Terminator = &cfg.Return{Values: []luaast.RValue{&luaast.LocalRead{Local: x}}}

	body := Lift(fn)
	stmts := body.Statements()
	require.Len(t, stmts, 2, "the jump should be elided, leaving only the assignment and the return")

	_, ok := stmts[0].(*luaast.Assign)
	assert.True(t, ok)
	ret, ok := stmts[1].(*luaast.Return)
	require.True(t, ok)
	read, ok := ret.Values[0].(*luaast.LocalRead)
	require.True(t, ok)
	assert.Equal(t, x, read.Local)

	for _, s := range stmts {
		_, isGoto := s.(*luaast.Goto)
		assert.False(t, isGoto, "a fully reduced chain must not surface any Goto")
		_, isLabel := s.(*luaast.Label)
		assert.False(t, isLabel, "a fully reduced chain must not surface any Label")
	}
}

func TestLiftSurfacesResidualBranchAsGotoLabel(t *testing.T) {
	// entry ends in a Branch that structuring failed to collapse: both arms
	// return directly, so there is nothing left for StructureConditionals to
	// fold. Lift must expose this irreducible shape as goto/label rather than
	// pretend it never existed, so gotoguard has something to reject.
	entry := &cfg.BasicBlock{ID: 0}
	left := &cfg.BasicBlock{ID: 1}
	right := &cfg.BasicBlock{ID: 2}
	fn := cfg.NewFunction(entry, nil, false, nil)
	fn.Blocks = append(fn.Blocks, left, right)

	trueEdge := &cfg.Edge{Kind: cfg.EdgeConditionalTrue, To: left}
	falseEdge := &cfg.Edge{Kind: cfg.EdgeConditionalFalse, To: right}
	entry.Terminator = &cfg.Branch{
		Condition: &luaast.Literal{Kind: luaast.LiteralBool, Bool: true},
		True:      trueEdge,
		False:     falseEdge,
	}
	cfg.AddEdge(entry, trueEdge)
	cfg.AddEdge(entry, falseEdge)

	left.Terminator = &cfg.Return{}
	right.Terminator = &cfg.Return{}

	body := Lift(fn)
	stmts := body.Statements()
	require.GreaterOrEqual(t, len(stmts), 5, "If, then left's label+return, then right's label+return")

	ifStmt, ok := stmts[0].(*luaast.If)
	require.True(t, ok)
	require.NotNil(t, ifStmt.Else)

	require.Equal(t, 1, ifStmt.Then.Len())
	thenGoto, ok := ifStmt.Then.At(0).(*luaast.Goto)
	require.True(t, ok)

	require.Equal(t, 1, ifStmt.Else.Len())
	elseGoto, ok := ifStmt.Else.At(0).(*luaast.Goto)
	require.True(t, ok)
	assert.NotEqual(t, thenGoto.Label, elseGoto.Label)

	var labelNames []string
	var gotReturn int
	for _, s := range stmts[1:] {
		switch v := s.(type) {
		case *luaast.Label:
			labelNames = append(labelNames, v.Name)
		case *luaast.Return:
			gotReturn++
		}
	}
	assert.ElementsMatch(t, []string{thenGoto.Label, elseGoto.Label}, labelNames,
		"left and right must each be emitted under the label the If's gotos point at")
	assert.Equal(t, 2, gotReturn)
}

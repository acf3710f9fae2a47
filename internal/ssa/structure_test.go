package ssa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medal/internal/cfg"
	"medal/internal/local"
	"medal/internal/luaast"
)

// ifElseDiamond builds: entry-(T)->a->join, entry-(F)->b->join, join returns x,
// where x is a parameter reassigned differently in a and b.
func ifElseDiamond(t *testing.T) *cfg.Function {
	t.Helper()
	x := local.New()
	cond := local.New()

	entry := &cfg.BasicBlock{ID: 0}
	a := &cfg.BasicBlock{ID: 1}
	b := &cfg.BasicBlock{ID: 2}
	join := &cfg.BasicBlock{ID: 3}
	fn := cfg.NewFunction(entry, []*local.Local{x, cond}, false, nil)
	fn.Blocks = append(fn.Blocks, a, b, join)

	trueEdge := &cfg.Edge{Kind: cfg.EdgeConditionalTrue, To: a}
	falseEdge := &cfg.Edge{Kind: cfg.EdgeConditionalFalse, To: b}
	entry.Terminator = &cfg.Branch{Condition: &luaast.LocalRead{Local: cond}, True: trueEdge, False: falseEdge}
	cfg.AddEdge(entry, trueEdge)
	cfg.AddEdge(entry, falseEdge)

	a.Statements = append(a.Statements, &luaast.Assign{
		Left:  []luaast.LValue{&luaast.LocalLValue{Local: x}},
		Right: []luaast.RValue{&luaast.Literal{Kind: luaast.LiteralNumber, Num: 1}},
	})
	aEdge := &cfg.Edge{Kind: cfg.EdgeUnconditional, To: join}
	a.Terminator = &cfg.Jump{Edge: aEdge}
	cfg.AddEdge(a, aEdge)

	b.Statements = append(b.Statements, &luaast.Assign{
		Left:  []luaast.LValue{&luaast.LocalLValue{Local: x}},
		Right: []luaast.RValue{&luaast.Literal{Kind: luaast.LiteralNumber, Num: 2}},
	})
	bEdge := &cfg.Edge{Kind: cfg.EdgeUnconditional, To: join}
	b.Terminator = &cfg.Jump{Edge: bEdge}
	cfg.AddEdge(b, bEdge)

	join.Terminator = &cfg.Return{Values: []luaast.RValue{&luaast.LocalRead{Local: x}}}

	return fn
}

func TestStructureConditionalsCollapsesDiamondAndResolvesPhi(t *testing.T) {
	fn := ifElseDiamond(t)
	_, err := Construct(fn)
	require.NoError(t, err)

	progressed := false
	for i := 0; i < 10; i++ {
		if StructureConditionals(fn) {
			progressed = true
			continue
		}
		break
	}
	require.True(t, progressed)

	require.Len(t, fn.Blocks, 2, "entry and join should be the only surviving blocks")
	entry := fn.Blocks[0]
	require.Len(t, entry.Statements, 1)
	ifStmt, ok := entry.Statements[0].(*luaast.If)
	require.True(t, ok)
	require.NotNil(t, ifStmt.Else)
	// Each arm keeps its own write of x plus the phi's resolving assignment.
	assert.Equal(t, 2, ifStmt.Then.Len())
	assert.Equal(t, 2, ifStmt.Else.Len())

	join := fn.Blocks[1]
	assert.Empty(t, join.Phis, "the phi merging x should have been resolved into per-arm assignments")
}

// whileLoop builds a head-tested loop: entry->header-(T)->body->header(back edge), header-(F)->exit.
func whileLoop(t *testing.T) (*cfg.Function, *local.Local) {
	t.Helper()
	entry := &cfg.BasicBlock{ID: 0}
	header := &cfg.BasicBlock{ID: 1}
	body := &cfg.BasicBlock{ID: 2}
	exit := &cfg.BasicBlock{ID: 3}
	fn := cfg.NewFunction(entry, nil, false, nil)
	fn.Blocks = append(fn.Blocks, header, body, exit)

	i := local.New()
	entryInit := &cfg.Edge{Kind: cfg.EdgeUnconditional, To: header}
	entry.Statements = append(entry.Statements, &luaast.Assign{
		Left:  []luaast.LValue{&luaast.LocalLValue{Local: i}},
		Right: []luaast.RValue{&luaast.Literal{Kind: luaast.LiteralNumber, Num: 0}},
	})
	entry.Terminator = &cfg.Jump{Edge: entryInit}
	cfg.AddEdge(entry, entryInit)

	bodyEdge := &cfg.Edge{Kind: cfg.EdgeConditionalTrue, To: body}
	exitEdge := &cfg.Edge{Kind: cfg.EdgeConditionalFalse, To: exit}
	header.Terminator = &cfg.Branch{Condition: &luaast.LocalRead{Local: i}, True: bodyEdge, False: exitEdge}
	cfg.AddEdge(header, bodyEdge)
	cfg.AddEdge(header, exitEdge)

	body.Statements = append(body.Statements, &luaast.Assign{
		Left: []luaast.LValue{&luaast.LocalLValue{Local: i}},
		Right: []luaast.RValue{&luaast.BinaryOp{
			Op: "-", Left: &luaast.LocalRead{Local: i}, Right: &luaast.Literal{Kind: luaast.LiteralNumber, Num: 1},
		}},
	})
	backEdge := &cfg.Edge{Kind: cfg.EdgeUnconditional, To: header}
	body.Terminator = &cfg.Jump{Edge: backEdge}
	cfg.AddEdge(body, backEdge)

	exit.Terminator = &cfg.Return{}

	return fn, i
}

func TestStructureConditionalsRecoversWhileLoop(t *testing.T) {
	fn, _ := whileLoop(t)
	_, err := Construct(fn)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		if !StructureJumps(fn) && !StructureConditionals(fn) {
			break
		}
	}

	require.Len(t, fn.Blocks, 3, "entry, the header now holding the While, and exit should be the only surviving blocks")
	header := fn.Blocks[1]
	var whileStmt *luaast.While
	for _, s := range header.Statements {
		if w, ok := s.(*luaast.While); ok {
			whileStmt = w
		}
	}
	require.NotNil(t, whileStmt, "a While statement should have been recovered")
	// The body's decrement plus the latch-edge resolution of the header phi.
	assert.Equal(t, 2, whileStmt.Body.Len())
}

// findWhile searches every surviving block's statements for a While.
func findWhile(fn *cfg.Function) *luaast.While {
	for _, b := range fn.Blocks {
		for _, s := range b.Statements {
			if w, ok := s.(*luaast.While); ok {
				return w
			}
		}
	}
	return nil
}

// shortCircuitAnd builds: entry-(T)->mid-(T)->thenBlk->join, entry-(F)->elseBlk,
// mid-(F)->elseBlk, elseBlk->join, join returns x — the `a and b` pattern,
// where mid is a pure test block only reached once entry's condition holds.
func shortCircuitAnd(t *testing.T) *cfg.Function {
	t.Helper()
	x := local.New()
	cond1 := local.New()
	cond2 := local.New()

	entry := &cfg.BasicBlock{ID: 0}
	mid := &cfg.BasicBlock{ID: 1}
	thenBlk := &cfg.BasicBlock{ID: 2}
	elseBlk := &cfg.BasicBlock{ID: 3}
	join := &cfg.BasicBlock{ID: 4}
	fn := cfg.NewFunction(entry, []*local.Local{x, cond1, cond2}, false, nil)
	fn.Blocks = append(fn.Blocks, mid, thenBlk, elseBlk, join)

	entryTrue := &cfg.Edge{Kind: cfg.EdgeConditionalTrue, To: mid}
	entryFalse := &cfg.Edge{Kind: cfg.EdgeConditionalFalse, To: elseBlk}
	entry.Terminator = &cfg.Branch{Condition: &luaast.LocalRead{Local: cond1}, True: entryTrue, False: entryFalse}
	cfg.AddEdge(entry, entryTrue)
	cfg.AddEdge(entry, entryFalse)

	midTrue := &cfg.Edge{Kind: cfg.EdgeConditionalTrue, To: thenBlk}
	midFalse := &cfg.Edge{Kind: cfg.EdgeConditionalFalse, To: elseBlk}
	mid.Terminator = &cfg.Branch{Condition: &luaast.LocalRead{Local: cond2}, True: midTrue, False: midFalse}
	cfg.AddEdge(mid, midTrue)
	cfg.AddEdge(mid, midFalse)

	thenBlk.Statements = append(thenBlk.Statements, &luaast.Assign{
		Left:  []luaast.LValue{&luaast.LocalLValue{Local: x}},
		Right: []luaast.RValue{&luaast.Literal{Kind: luaast.LiteralNumber, Num: 1}},
	})
	thenEdge := &cfg.Edge{Kind: cfg.EdgeUnconditional, To: join}
	thenBlk.Terminator = &cfg.Jump{Edge: thenEdge}
	cfg.AddEdge(thenBlk, thenEdge)

	elseBlk.Statements = append(elseBlk.Statements, &luaast.Assign{
		Left:  []luaast.LValue{&luaast.LocalLValue{Local: x}},
		Right: []luaast.RValue{&luaast.Literal{Kind: luaast.LiteralNumber, Num: 2}},
	})
	elseEdge := &cfg.Edge{Kind: cfg.EdgeUnconditional, To: join}
	elseBlk.Terminator = &cfg.Jump{Edge: elseEdge}
	cfg.AddEdge(elseBlk, elseEdge)

	join.Terminator = &cfg.Return{Values: []luaast.RValue{&luaast.LocalRead{Local: x}}}

	return fn
}

func TestStructureConditionalsFusesShortCircuitAnd(t *testing.T) {
	fn := shortCircuitAnd(t)
	_, err := Construct(fn)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		if !StructureJumps(fn) && !StructureConditionals(fn) {
			break
		}
	}

	// A stray edge left on the fused mid block would keep elseBlk at two
	// predecessors, blocking the diamond collapse that follows the fusion.
	require.Len(t, fn.Blocks, 2, "entry and join should be the only surviving blocks")
	entry := fn.Blocks[0]
	require.Len(t, entry.Statements, 1)
	ifStmt, ok := entry.Statements[0].(*luaast.If)
	require.True(t, ok)
	cond, ok := ifStmt.Condition.(*luaast.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, "and", cond.Op)
}

// whileLoopWithBreak builds a multi-block while loop whose body conditionally
// breaks out before reaching the latch: entry->header-(T)->body->header (back
// edge via cont), header-(F)->exit; body-(T)->exit is the early break,
// body-(F)->cont continues on to decrement and loop back.
func whileLoopWithBreak(t *testing.T) *cfg.Function {
	t.Helper()
	entry := &cfg.BasicBlock{ID: 0}
	header := &cfg.BasicBlock{ID: 1}
	body := &cfg.BasicBlock{ID: 2}
	cont := &cfg.BasicBlock{ID: 3}
	exit := &cfg.BasicBlock{ID: 4}
	fn := cfg.NewFunction(entry, nil, false, nil)
	fn.Blocks = append(fn.Blocks, header, body, cont, exit)

	i := local.New()
	entryInit := &cfg.Edge{Kind: cfg.EdgeUnconditional, To: header}
	entry.Statements = append(entry.Statements, &luaast.Assign{
		Left:  []luaast.LValue{&luaast.LocalLValue{Local: i}},
		Right: []luaast.RValue{&luaast.Literal{Kind: luaast.LiteralNumber, Num: 0}},
	})
	entry.Terminator = &cfg.Jump{Edge: entryInit}
	cfg.AddEdge(entry, entryInit)

	headerBody := &cfg.Edge{Kind: cfg.EdgeConditionalTrue, To: body}
	headerExit := &cfg.Edge{Kind: cfg.EdgeConditionalFalse, To: exit}
	header.Terminator = &cfg.Branch{Condition: &luaast.LocalRead{Local: i}, True: headerBody, False: headerExit}
	cfg.AddEdge(header, headerBody)
	cfg.AddEdge(header, headerExit)

	bodyBreak := &cfg.Edge{Kind: cfg.EdgeConditionalTrue, To: exit}
	bodyCont := &cfg.Edge{Kind: cfg.EdgeConditionalFalse, To: cont}
	body.Terminator = &cfg.Branch{Condition: &luaast.LocalRead{Local: i}, True: bodyBreak, False: bodyCont}
	cfg.AddEdge(body, bodyBreak)
	cfg.AddEdge(body, bodyCont)

	cont.Statements = append(cont.Statements, &luaast.Assign{
		Left: []luaast.LValue{&luaast.LocalLValue{Local: i}},
		Right: []luaast.RValue{&luaast.BinaryOp{
			Op: "-", Left: &luaast.LocalRead{Local: i}, Right: &luaast.Literal{Kind: luaast.LiteralNumber, Num: 1},
		}},
	})
	backEdge := &cfg.Edge{Kind: cfg.EdgeUnconditional, To: header}
	cont.Terminator = &cfg.Jump{Edge: backEdge}
	cfg.AddEdge(cont, backEdge)

	exit.Terminator = &cfg.Return{}

	return fn
}

func TestStructureJumpsRelabelsBreakBeforeWhileRecovery(t *testing.T) {
	fn := whileLoopWithBreak(t)
	_, err := Construct(fn)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		if !StructureJumps(fn) && !StructureConditionals(fn) {
			break
		}
	}

	whileStmt := findWhile(fn)
	require.NotNil(t, whileStmt, "a While statement should have been recovered around the break")

	var ifStmt *luaast.If
	for i := 0; i < whileStmt.Body.Len(); i++ {
		if f, ok := whileStmt.Body.At(i).(*luaast.If); ok {
			ifStmt = f
		}
	}
	require.NotNil(t, ifStmt, "the break branch should survive as a guarding if inside the loop body")
	require.Equal(t, 1, ifStmt.Then.Len())
	_, isBreak := ifStmt.Then.At(0).(*luaast.Break)
	assert.True(t, isBreak, "the guarded statement should be a break")
}

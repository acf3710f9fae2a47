package cleanup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medal/internal/local"
	"medal/internal/luaast"
)

func TestCombineNestedIfsFoldsUnusedCondition(t *testing.T) {
	x := local.New()
	cond := &luaast.BinaryOp{Op: ">", Left: &luaast.LocalRead{Local: local.New()}, Right: &luaast.Literal{Kind: luaast.LiteralNumber, Num: 0}}
	assign := &luaast.Assign{Left: []luaast.LValue{&luaast.LocalLValue{Local: x}}, Right: []luaast.RValue{cond}}
	body := luaast.NewBlock(assign, &luaast.If{
		Condition: &luaast.LocalRead{Local: x},
		Then:      luaast.NewBlock(&luaast.Return{}),
	})

	progressed := CombineNestedIfs(body)
	assert.True(t, progressed)
	require.Equal(t, 1, body.Len())
	ifStmt, ok := body.At(0).(*luaast.If)
	require.True(t, ok)
	assert.Same(t, cond, ifStmt.Condition)
}

func TestCombineNestedIfsSkipsWhenUsedAfter(t *testing.T) {
	x := local.New()
	assign := &luaast.Assign{Left: []luaast.LValue{&luaast.LocalLValue{Local: x}}, Right: []luaast.RValue{&luaast.Literal{Kind: luaast.LiteralBool, Bool: true}}}
	ifStmt := &luaast.If{Condition: &luaast.LocalRead{Local: x}, Then: luaast.NewBlock(&luaast.Return{})}
	tail := &luaast.Return{Values: []luaast.RValue{&luaast.LocalRead{Local: x}}}
	body := luaast.NewBlock(assign, ifStmt, tail)

	progressed := CombineNestedIfs(body)
	assert.False(t, progressed)
	assert.Equal(t, 3, body.Len())
}

func TestDeclareLocalsMarksFirstAssignAsDeclaration(t *testing.T) {
	x := local.New()
	assign := &luaast.Assign{Left: []luaast.LValue{&luaast.LocalLValue{Local: x}}, Right: []luaast.RValue{&luaast.Literal{Kind: luaast.LiteralNumber, Num: 1}}}
	body := luaast.NewBlock(assign)

	DeclareLocals(body, local.NewSet())
	assert.True(t, assign.IsDeclaration)
}

func TestDeclareLocalsDoesNotRedeclareParameters(t *testing.T) {
	x := local.New()
	assign := &luaast.Assign{Left: []luaast.LValue{&luaast.LocalLValue{Local: x}}, Right: []luaast.RValue{&luaast.Literal{Kind: luaast.LiteralNumber, Num: 1}}}
	body := luaast.NewBlock(assign)

	DeclareLocals(body, local.NewSet(x))
	assert.False(t, assign.IsDeclaration)
}

func TestDeclareLocalsHoistsAcrossIfWhenReadAfter(t *testing.T) {
	x := local.New()
	thenAssign := &luaast.Assign{Left: []luaast.LValue{&luaast.LocalLValue{Local: x}}, Right: []luaast.RValue{&luaast.Literal{Kind: luaast.LiteralNumber, Num: 1}}}
	ifStmt := &luaast.If{
		Condition: &luaast.LocalRead{Local: local.New()},
		Then:      luaast.NewBlock(thenAssign),
	}
	ret := &luaast.Return{Values: []luaast.RValue{&luaast.LocalRead{Local: x}}}
	body := luaast.NewBlock(ifStmt, ret)

	DeclareLocals(body, local.NewSet())

	require.Equal(t, 3, body.Len(), "a hoisted nil declaration should be inserted before the if")
	decl, ok := body.At(0).(*luaast.Assign)
	require.True(t, ok)
	assert.True(t, decl.IsDeclaration)
	lv, ok := decl.Left[0].(*luaast.LocalLValue)
	require.True(t, ok)
	assert.Same(t, x, lv.Local)
	lit, ok := decl.Right[0].(*luaast.Literal)
	require.True(t, ok)
	assert.Equal(t, luaast.LiteralNil, lit.Kind)

	assert.False(t, thenAssign.IsDeclaration, "the in-arm assignment no longer declares x")
}

func TestNameLocalsGivesSingleUseParameterUnderscore(t *testing.T) {
	arg := local.New()
	fn := luaast.NewFunction([]*local.Local{arg}, false)
	fn.Body.Append(&luaast.Return{Values: []luaast.RValue{&luaast.LocalRead{Local: arg}}})

	NameLocals(fn, true)

	name, ok := arg.Name()
	require.True(t, ok)
	assert.Equal(t, "_", name)
}

func TestNameLocalsUsesServiceCallHint(t *testing.T) {
	game := local.New()
	runService := local.New()
	assign := &luaast.Assign{
		Left: []luaast.LValue{&luaast.LocalLValue{Local: runService}},
		Right: []luaast.RValue{&luaast.MethodCall{
			Base:   &luaast.LocalRead{Local: game},
			Method: "GetService",
			Args:   []luaast.RValue{&luaast.Literal{Kind: luaast.LiteralString, Str: []byte("RunService")}},
		}},
		IsDeclaration: true,
	}
	body := luaast.NewBlock(assign,
		&luaast.ExprStatement{Call: &luaast.MethodCall{Base: &luaast.LocalRead{Local: runService}, Method: "Foo"}},
		&luaast.ExprStatement{Call: &luaast.MethodCall{Base: &luaast.LocalRead{Local: runService}, Method: "Bar"}},
	)
	fn := luaast.NewFunction(nil, false)
	fn.Body = body

	NameLocals(fn, true)

	name, ok := runService.Name()
	require.True(t, ok)
	assert.Equal(t, "RunService", name)
}

func TestNameLocalsUniquifiesOnCollision(t *testing.T) {
	a := local.New()
	b := local.New()
	useA := &luaast.ExprStatement{Call: &luaast.MethodCall{Base: &luaast.LocalRead{Local: a}, Method: "Foo"}}
	useA2 := &luaast.ExprStatement{Call: &luaast.MethodCall{Base: &luaast.LocalRead{Local: a}, Method: "Bar"}}
	useB := &luaast.ExprStatement{Call: &luaast.MethodCall{Base: &luaast.LocalRead{Local: b}, Method: "Foo"}}
	useB2 := &luaast.ExprStatement{Call: &luaast.MethodCall{Base: &luaast.LocalRead{Local: b}, Method: "Bar"}}
	assignA := &luaast.Assign{Left: []luaast.LValue{&luaast.LocalLValue{Local: a}}, Right: []luaast.RValue{&luaast.Literal{Kind: luaast.LiteralNumber, Num: 1}}, IsDeclaration: true}
	assignB := &luaast.Assign{Left: []luaast.LValue{&luaast.LocalLValue{Local: b}}, Right: []luaast.RValue{&luaast.Literal{Kind: luaast.LiteralNumber, Num: 2}}, IsDeclaration: true}
	fn := luaast.NewFunction(nil, false)
	fn.Body = luaast.NewBlock(assignA, useA, useA2, assignB, useB, useB2)

	NameLocals(fn, true)

	nameA, _ := a.Name()
	nameB, _ := b.Name()
	assert.Equal(t, "var", nameA)
	assert.Equal(t, "var_2", nameB)
}

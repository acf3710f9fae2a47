package luaast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"medal/internal/local"
)

func TestHasSideEffectsConservativeIndex(t *testing.T) {
	idx := &Index{Base: &LocalRead{Local: local.New()}, Key: &Literal{Kind: LiteralString, Str: []byte("x")}}
	assert.True(t, HasSideEffects(idx), "index reads are conservatively side-effecting")

	pure := &BinaryOp{Op: "+", Left: &Literal{Kind: LiteralNumber, Num: 1}, Right: &Literal{Kind: LiteralNumber, Num: 2}}
	assert.False(t, HasSideEffects(pure))

	call := &Call{Fn: &Global{Name: "f"}}
	assert.True(t, HasSideEffects(call))
}

func TestValuesReadWalksChildren(t *testing.T) {
	a := local.New()
	b := local.New()
	expr := &BinaryOp{Op: "+", Left: &LocalRead{Local: a}, Right: &LocalRead{Local: b}}
	reads := ValuesRead(expr)
	assert.ElementsMatch(t, []*local.Local{a, b}, reads)
}

func TestBlockMutationInPlace(t *testing.T) {
	block := NewBlock(&Break{})
	block.Append(&Continue{})
	assert.Equal(t, 2, block.Len())

	block.Set(0, &Return{})
	_, isReturn := block.At(0).(*Return)
	assert.True(t, isReturn)

	block.Insert(1, &Label{Name: "L"})
	assert.Equal(t, 3, block.Len())
	_, isLabel := block.At(1).(*Label)
	assert.True(t, isLabel)

	block.Remove(0)
	assert.Equal(t, 2, block.Len())
}

func TestAssignRValuesAllowsInPlaceSubstitution(t *testing.T) {
	key := RValue(&Literal{Kind: LiteralString, Str: []byte("k")})
	lv := &IndexLValue{Base: &Global{Name: "t"}, Key: key}
	assign := &Assign{Left: []LValue{lv}, Right: []RValue{&Literal{Kind: LiteralNumber, Num: 1}}}

	ptrs := assign.RValues()
	wantLen := 3 // Right[0], lv.Base, lv.Key
	assert.Equal(t, wantLen, len(ptrs))

	replacement := RValue(&Literal{Kind: LiteralString, Str: []byte("k2")})
	*ptrs[2] = replacement
	assert.Equal(t, replacement, lv.Key)
}

package printer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"medal/internal/local"
	"medal/internal/luaast"
)

func TestPrintTrivialReturn(t *testing.T) {
	fn := luaast.NewFunction(nil, false)
	fn.Body.Append(&luaast.Return{})
	assert.Equal(t, "return\n", Print(fn))
}

func TestPrintIdentityFunction(t *testing.T) {
	arg := local.NewNamed("_")
	fn := luaast.NewFunction([]*local.Local{arg}, false)
	fn.Body.Append(&luaast.Return{Values: []luaast.RValue{&luaast.LocalRead{Local: arg}}})
	assert.Equal(t, "return _\n", Print(fn))
}

func TestPrintServiceAssignment(t *testing.T) {
	game := local.NewNamed("game")
	runService := local.NewNamed("RunService")
	fn := luaast.NewFunction(nil, false)
	fn.Body.Append(&luaast.Assign{
		Left: []luaast.LValue{&luaast.LocalLValue{Local: runService}},
		Right: []luaast.RValue{&luaast.MethodCall{
			Base:   &luaast.LocalRead{Local: game},
			Method: "GetService",
			Args:   []luaast.RValue{&luaast.Literal{Kind: luaast.LiteralString, Str: []byte("RunService")}},
		}},
		IsDeclaration: true,
	})
	got := Print(fn)
	assert.Equal(t, "local RunService = game:GetService(\"RunService\")\n", got)
}

func TestPrintSetListAllTablesFoldsToLiteral(t *testing.T) {
	obj := local.NewNamed("t")
	fn := luaast.NewFunction(nil, false)
	fn.Body.Append(&luaast.SetList{
		Object: obj,
		Index:  1,
		Values: []luaast.RValue{
			&luaast.TableConstructor{},
			&luaast.TableConstructor{},
		},
	})
	got := Print(fn)
	assert.Equal(t, "local t = {{}, {}}\n", got)
}

func TestPrintSetListWithTailWarnsWithSentinel(t *testing.T) {
	obj := local.NewNamed("t")
	fn := luaast.NewFunction(nil, false)
	fn.Body.Append(&luaast.SetList{
		Object: obj,
		Index:  1,
		Values: []luaast.RValue{&luaast.Literal{Kind: luaast.LiteralNumber, Num: 1}},
		Tail:   &luaast.Varargs{},
	})
	got := Print(fn)
	assert.True(t, strings.Contains(got, "__set_list(1, 1, ...)"))
	assert.True(t, strings.Contains(got, "WARNING: non-table value"))
}

func TestPrintIfElse(t *testing.T) {
	cond := local.NewNamed("cond")
	fn := luaast.NewFunction(nil, false)
	fn.Body.Append(&luaast.If{
		Condition: &luaast.LocalRead{Local: cond},
		Then:      luaast.NewBlock(&luaast.Return{Values: []luaast.RValue{&luaast.Literal{Kind: luaast.LiteralNumber, Num: 1}}}),
		Else:      luaast.NewBlock(&luaast.Return{Values: []luaast.RValue{&luaast.Literal{Kind: luaast.LiteralNumber, Num: 2}}}),
	})
	got := Print(fn)
	assert.Equal(t, "if cond then\n    return 1\nelse\n    return 2\nend\n", got)
}

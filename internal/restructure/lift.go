// Package restructure holds the final step of turning a (by now, ideally
// fully structured) CFG into a plain statement list: C6, the AST lift.
//
// With jump/conditional structuring (ssa.StructureJumps /
// ssa.StructureConditionals) fused into materializing If/While/Repeat/For
// nodes directly as it recognizes each region, a well-formed function
// arrives here as a single surviving chain of blocks linked by plain Jump
// edges and ending in Return. Lift's job shrinks to linearizing that chain.
// A function that still has a real Branch or an un-lowered for-loop
// terminator at this point means the fixed point gave up on an irreducible
// region; Lift surfaces the residue as Goto/Label so gotoguard can reject it
// instead of printing broken control flow.
package restructure

import (
	"fmt"

	"medal/internal/cfg"
	"medal/internal/luaast"
)

// Lift walks fn from its entry block and returns the linear statement list
// that represents the whole function body.
func Lift(fn *cfg.Function) *luaast.Block {
	out := luaast.NewBlock()
	visited := map[*cfg.BasicBlock]bool{}
	labels := map[*cfg.BasicBlock]string{}
	label := func(b *cfg.BasicBlock) string {
		if n, ok := labels[b]; ok {
			return n
		}
		n := fmt.Sprintf("block_%d", b.ID)
		labels[b] = n
		return n
	}

	var emit func(b *cfg.BasicBlock)
	emit = func(b *cfg.BasicBlock) {
		if visited[b] {
			out.Append(&luaast.Goto{Label: label(b)})
			return
		}
		visited[b] = true
		// Only a block a goto can reach gets a label: a residual branch or
		// for-loop target (labeled before it is emitted) or a block with more
		// than one predecessor. A plain fallthrough Jump emits no label.
		if _, wanted := labels[b]; b != fn.Entry && (wanted || len(b.Predecessors) > 1) {
			out.Append(&luaast.Label{Name: label(b)})
		}
		for _, s := range b.Statements {
			out.Append(s)
		}
		switch t := b.Terminator.(type) {
		case *cfg.Jump:
			emit(t.Edge.To)
		case *cfg.Return:
			out.Append(&luaast.Return{Values: t.Values})
		case *cfg.Branch:
			out.Append(&luaast.If{
				Condition: t.Condition,
				Then:      luaast.NewBlock(&luaast.Goto{Label: label(t.True.To)}),
				Else:      luaast.NewBlock(&luaast.Goto{Label: label(t.False.To)}),
			})
			emit(t.True.To)
			emit(t.False.To)
		case *cfg.NumericForLoop:
			out.Append(&luaast.Goto{Label: label(t.Continue.To)})
			emit(t.Continue.To)
			emit(t.Exit.To)
		case *cfg.GenericForLoop:
			out.Append(&luaast.Goto{Label: label(t.Continue.To)})
			emit(t.Continue.To)
			emit(t.Exit.To)
		case nil:
			// Unreachable under a well-formed function; every block owns a
			// terminator by construction.
		}
	}
	emit(fn.Entry)
	return out
}

// Package cleanup is C7: the AST cleanup passes that run after restructure.Lift
// has produced a fully structured tree. Declare locals, combine nested ifs,
// and name locals each make one pass over the tree and are run in that
// order by the decompiler pipeline (naming runs last so it sees the final
// local set — combine_nested_ifs can delete locals outright).
package cleanup

import (
	"medal/internal/local"
	"medal/internal/luaast"
)

// CombineNestedIfs folds the pattern `x = E; if x then S end` into
// `if E then S end` wherever x has no other uses, grounded directly on the
// original fork's combine_nested_ifs pass: it only considers the assignment
// immediately preceding the if (no skipping over an unrelated statement in
// between) and only the shape where the condition is a bare read of that
// local. Recurses into every nested block regardless of whether a fold
// happened at this level. Returns whether it made any change.
func CombineNestedIfs(b *luaast.Block) bool {
	progressed := false
	i := 0
	for i < b.Len() {
		if fold(b, i) {
			progressed = true
			continue
		}
		if recurseCombine(b.At(i)) {
			progressed = true
		}
		i++
	}
	return progressed
}

func fold(b *luaast.Block, i int) bool {
	assign, ok := b.At(i).(*luaast.Assign)
	if !ok || len(assign.Left) != 1 || len(assign.Right) != 1 {
		return false
	}
	lv, ok := assign.Left[0].(*luaast.LocalLValue)
	if !ok {
		return false
	}
	if i+1 >= b.Len() {
		return false
	}
	ifStmt, ok := b.At(i + 1).(*luaast.If)
	if !ok {
		return false
	}
	cond, ok := ifStmt.Condition.(*luaast.LocalRead)
	if !ok || cond.Local != lv.Local {
		return false
	}
	if usedAfter(b, i+2, lv.Local) {
		return false
	}

	usedInThen := blockShallowReads(ifStmt.Then, lv.Local)
	usedInElse := ifStmt.Else != nil && blockShallowReads(ifStmt.Else, lv.Local)

	ifStmt.Condition = assign.Right[0]
	if usedInThen {
		ifStmt.Then.Prepend(assign)
	}
	if usedInElse {
		if usedInThen {
			ifStmt.Else.Prepend(cloneAssign(assign))
		} else {
			ifStmt.Else.Prepend(assign)
		}
	}

	b.Remove(i + 1)
	b.Remove(i)
	b.Insert(i, ifStmt)
	return true
}

func cloneAssign(a *luaast.Assign) *luaast.Assign {
	return &luaast.Assign{
		Left:          append([]luaast.LValue{}, a.Left...),
		Right:         append([]luaast.RValue{}, a.Right...),
		IsDeclaration: a.IsDeclaration,
	}
}

// usedAfter reports whether any statement in b from index `from` onward
// reads l, at that statement's own level (matching the original's shallow
// block[i+2..] scan — it does not recurse into nested blocks).
func usedAfter(b *luaast.Block, from int, l *local.Local) bool {
	stmts := b.Statements()
	for i := from; i < len(stmts); i++ {
		for _, r := range luaast.StatementValuesRead(stmts[i]) {
			if r == l {
				return true
			}
		}
	}
	return false
}

// blockShallowReads reports whether any top-level statement of blk reads l,
// without recursing into further-nested blocks (matching the original's
// then_block.lock().iter().flat_map(values_read) scan).
func blockShallowReads(blk *luaast.Block, l *local.Local) bool {
	for _, s := range blk.Statements() {
		for _, r := range luaast.StatementValuesRead(s) {
			if r == l {
				return true
			}
		}
	}
	return false
}

func recurseCombine(s luaast.Statement) bool {
	switch st := s.(type) {
	case *luaast.If:
		changed := CombineNestedIfs(st.Then)
		if st.Else != nil {
			changed = CombineNestedIfs(st.Else) || changed
		}
		return changed
	case *luaast.While:
		return CombineNestedIfs(st.Body)
	case *luaast.Repeat:
		return CombineNestedIfs(st.Body)
	case *luaast.NumericFor:
		return CombineNestedIfs(st.Body)
	case *luaast.GenericFor:
		return CombineNestedIfs(st.Body)
	}
	return false
}

package ssa

import (
	"medal/internal/cfg"
	"medal/internal/local"
	"medal/internal/luaast"
)

// Inline performs copy propagation / expression inlining over fn: every
// local with exactly one definition and exactly one use that is visible
// from the definition without crossing a branch, loop, or call barrier is
// substituted directly at its use site and the definition is removed.
//
// Since each local version is already single-def courtesy of SSA
// construction, "visible without crossing a barrier" reduces to "used in
// the same basic block as its definition, with nothing side-effecting or
// write-conflicting in between" — every block boundary in this
// representation already is one of those barriers.
func Inline(fn *cfg.Function) bool {
	useCount, usedInPhi := countUses(fn)

	anyChange := false
	for _, b := range fn.Blocks {
		for {
			changed := false
			for i := 0; i < len(b.Statements); i++ {
				assign, ok := b.Statements[i].(*luaast.Assign)
				if !ok || len(assign.Left) != 1 || len(assign.Right) != 1 {
					continue
				}
				target, ok := assign.Left[0].AsLocal()
				if !ok || usedInPhi.Has(target) || useCount[target] != 1 {
					continue
				}
				rhs := assign.Right[0]
				slot, useIdx, ok := findSingleUseAfter(b, i, target)
				if !ok {
					continue
				}
				if !safeToInlineBetween(b, i, useIdx, rhs) {
					continue
				}
				*slot = rhs
				b.Statements = append(b.Statements[:i], b.Statements[i+1:]...)
				changed = true
				anyChange = true
				break
			}
			if !changed {
				break
			}
		}
	}
	return anyChange
}

// countUses walks every statement, terminator, and phi argument in fn and
// counts how many times each local version is read. Locals read from a phi
// argument are flagged separately: a phi argument is a use straddling a
// block boundary by definition, so it is never a valid inlining target
// regardless of its count.
func countUses(fn *cfg.Function) (map[*local.Local]int, local.Set) {
	counts := map[*local.Local]int{}
	usedInPhi := local.NewSet()

	for _, b := range fn.Blocks {
		for _, p := range b.Phis {
			for _, arg := range p.Args {
				counts[arg]++
				usedInPhi.Add(arg)
			}
		}
		for _, stmt := range b.Statements {
			for _, rv := range stmt.RValues() {
				for _, l := range luaast.ValuesRead(*rv) {
					counts[l]++
				}
			}
			if a, ok := stmt.(*luaast.Assign); ok {
				for _, lv := range a.Left {
					if r, ok := lv.(luaast.LocalReader); ok {
						for _, l := range r.ValuesRead() {
							counts[l]++
						}
					}
				}
			}
		}
		if b.Terminator != nil {
			for _, rv := range cfg.TerminatorRValues(b.Terminator) {
				for _, l := range luaast.ValuesRead(*rv) {
					counts[l]++
				}
			}
		}
	}
	return counts, usedInPhi
}

// findSingleUseAfter looks for a read of target in b.Statements[defIdx+1:]
// or in b's terminator, returning a pointer to the exact RValue slot holding
// the LocalRead node (so the caller can overwrite the whole node) along with
// the statement index the use was found at (len(b.Statements) if it was
// found in the terminator).
func findSingleUseAfter(b *cfg.BasicBlock, defIdx int, target *local.Local) (*luaast.RValue, int, bool) {
	for k := defIdx + 1; k < len(b.Statements); k++ {
		for _, rv := range b.Statements[k].RValues() {
			if slot := findLocalReadSlot(rv, target); slot != nil {
				return slot, k, true
			}
		}
	}
	if b.Terminator != nil {
		for _, rv := range cfg.TerminatorRValues(b.Terminator) {
			if slot := findLocalReadSlot(rv, target); slot != nil {
				return slot, len(b.Statements), true
			}
		}
	}
	return nil, 0, false
}

func findLocalReadSlot(root *luaast.RValue, target *local.Local) *luaast.RValue {
	if root == nil || *root == nil {
		return nil
	}
	if lr, ok := (*root).(*luaast.LocalRead); ok {
		if lr.Local == target {
			return root
		}
		return nil
	}
	for _, child := range (*root).RValues() {
		if found := findLocalReadSlot(child, target); found != nil {
			return found
		}
	}
	return nil
}

// safeToInlineBetween reports whether rhs can be relocated from statement
// defIdx to the use found at useIdx (len(b.Statements) meaning the
// terminator) without changing observable behavior: nothing in between may
// have a side effect rhs would then be reordered against, and nothing in
// between may write a local rhs reads.
func safeToInlineBetween(b *cfg.BasicBlock, defIdx, useIdx int, rhs luaast.RValue) bool {
	rhsSideEffects := luaast.HasSideEffects(rhs)
	rhsReads := local.NewSet(luaast.ValuesRead(rhs)...)

	for k := defIdx + 1; k < useIdx && k < len(b.Statements); k++ {
		stmt := b.Statements[k]
		if rhsSideEffects && statementHasSideEffects(stmt) {
			return false
		}
		for _, w := range luaast.ValuesWritten(stmt) {
			if rhsReads.Has(w) {
				return false
			}
		}
	}
	return true
}

func statementHasSideEffects(s luaast.Statement) bool {
	for _, rv := range s.RValues() {
		if luaast.HasSideEffects(*rv) {
			return true
		}
	}
	return false
}

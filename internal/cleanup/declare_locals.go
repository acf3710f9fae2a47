package cleanup

import (
	"medal/internal/local"
	"medal/internal/luaast"
)

// DeclareLocals walks body and marks, on each Assign, which local targets
// are appearing for the first time (IsDeclaration = true), so the printer
// knows where to emit a `local` prefix. external names the locals that are
// already bound on entry (the function's parameters and inbound upvalues)
// and must never be marked as declarations.
//
// A local written in only one arm of an if and read after the if cannot be
// declared inside that arm (the declaration would go out of scope at the
// end of the arm): it is hoisted to a `local x = nil` statement inserted
// immediately before the if, and the in-arm assignment loses its
// declaration flag.
func DeclareLocals(body *luaast.Block, external local.Set) {
	d := &declarer{external: external}
	d.declareBlock(body, local.NewSet())
}

type declarer struct {
	external local.Set
}

func cloneLocalSet(s local.Set) local.Set {
	out := local.NewSet()
	out.Union(s)
	return out
}

func (d *declarer) declareBlock(b *luaast.Block, declared local.Set) {
	stmts := b.Statements()
	// inserted counts the hoisted declarations added to b so far; each one
	// shifts every later statement's live index one past its snapshot index.
	inserted := 0
	for i, s := range stmts {
		switch n := s.(type) {
		case *luaast.Assign:
			d.declareAssign(n, declared)
		case *luaast.If:
			inserted += d.declareIf(b, i+inserted, n, declared)
		case *luaast.While:
			d.declareBlock(n.Body, cloneLocalSet(declared))
		case *luaast.Repeat:
			d.declareBlock(n.Body, cloneLocalSet(declared))
		case *luaast.NumericFor:
			inner := cloneLocalSet(declared)
			inner.Add(n.Counter)
			d.declareBlock(n.Body, inner)
		case *luaast.GenericFor:
			inner := cloneLocalSet(declared)
			for _, l := range n.ResLocals {
				inner.Add(l)
			}
			d.declareBlock(n.Body, inner)
		}
	}
}

func (d *declarer) declareAssign(n *luaast.Assign, declared local.Set) {
	isDecl := false
	for _, lv := range n.Left {
		l, ok := lv.AsLocal()
		if !ok {
			continue
		}
		if declared.Has(l) || d.external.Has(l) {
			continue
		}
		declared.Add(l)
		isDecl = true
	}
	if isDecl {
		n.IsDeclaration = true
	}
}

func (d *declarer) declareIf(b *luaast.Block, i int, n *luaast.If, declared local.Set) int {
	thenWritten := deepWrittenLocals(n.Then)
	elseWritten := local.NewSet()
	if n.Else != nil {
		elseWritten = deepWrittenLocals(n.Else)
	}

	candidates := cloneLocalSet(thenWritten)
	candidates.Union(elseWritten)
	inserted := 0
	for l := range candidates {
		if declared.Has(l) || d.external.Has(l) {
			continue
		}
		if readAfterIf(b, i+inserted+1, l) {
			decl := &luaast.Assign{
				Left:          []luaast.LValue{&luaast.LocalLValue{Local: l}},
				Right:         []luaast.RValue{&luaast.Literal{Kind: luaast.LiteralNil}},
				IsDeclaration: true,
			}
			b.Insert(i+inserted, decl)
			inserted++
			declared.Add(l)
		}
	}

	d.declareBlock(n.Then, cloneLocalSet(declared))
	if n.Else != nil {
		d.declareBlock(n.Else, cloneLocalSet(declared))
	}
	return inserted
}

// deepWrittenLocals collects every local written anywhere inside blk,
// including inside further-nested blocks, since the representative local
// of a collapsed diamond or loop can be written at any depth the
// structuring pass placed its resolution assignment.
func deepWrittenLocals(blk *luaast.Block) local.Set {
	s := local.NewSet()
	luaast.Walk(blk, func(st luaast.Statement) {
		for _, l := range luaast.ValuesWritten(st) {
			s.Add(l)
		}
	})
	return s
}

// readAfterIf reports whether l is read anywhere from index `from` onward
// in b, including inside nested blocks of those later statements.
func readAfterIf(b *luaast.Block, from int, l *local.Local) bool {
	stmts := b.Statements()
	for i := from; i < len(stmts); i++ {
		if statementReadsDeep(stmts[i], l) {
			return true
		}
	}
	return false
}

func statementReadsDeep(s luaast.Statement, l *local.Local) bool {
	for _, r := range luaast.StatementValuesRead(s) {
		if r == l {
			return true
		}
	}
	found := false
	for _, sub := range s.SubBlocks() {
		luaast.Walk(sub, func(inner luaast.Statement) {
			if found {
				return
			}
			for _, r := range luaast.StatementValuesRead(inner) {
				if r == l {
					found = true
					return
				}
			}
		})
		if found {
			return true
		}
	}
	return false
}

package ssa

import (
	"medal/internal/cfg"
	"medal/internal/local"
	"medal/internal/luaast"
)

// Destruct lowers every remaining phi in fn to a parallel copy on each
// incoming edge and coalesces every local group (from Result.LocalGroups)
// to a single post-SSA local, rewriting every read and write in place.
// Critical edges (an edge whose source has more than one successor and
// whose destination has more than one predecessor) are split first so a
// copy sequence inserted on that edge cannot run on a path that bypasses it.
func Destruct(fn *cfg.Function, result *Result) {
	splitCriticalEdges(fn)
	lowerPhis(fn)
	coalesceGroups(fn, result)
}

// splitCriticalEdges inserts an empty relay block on every edge whose
// source has multiple successors and whose destination has multiple
// predecessors, so that copies lowered onto the edge run exactly once, on
// exactly that path.
func splitCriticalEdges(fn *cfg.Function) {
	for _, b := range fn.Blocks {
		succs := b.Successors()
		if len(succs) < 2 {
			continue
		}
		for _, e := range succs {
			if len(e.To.Predecessors) < 2 {
				continue
			}
			relay := fn.NewBlock()
			newEdge := &cfg.Edge{Kind: cfg.EdgeUnconditional, To: e.To}
			relay.Terminator = &cfg.Jump{Edge: newEdge}
			cfg.AddEdge(relay, newEdge)

			for _, phi := range e.To.Phis {
				if v, ok := phi.Args[b]; ok {
					delete(phi.Args, b)
					phi.Args[relay] = v
				}
			}
			cfg.RemoveEdge(b, e.To)
			e.To = relay
			cfg.AddEdge(b, e)
		}
	}
}

// lowerPhis replaces every phi with an explicit local-to-local assignment
// appended at the end of each predecessor, using a fresh temporary to break
// any copy cycle (e.g. a loop header phi that swaps two locals across
// iterations).
func lowerPhis(fn *cfg.Function) {
	for _, b := range fn.Blocks {
		if len(b.Phis) == 0 {
			continue
		}
		copiesByPred := map[*cfg.BasicBlock][][2]*local.Local{}
		for _, phi := range b.Phis {
			for pred, src := range phi.Args {
				copiesByPred[pred] = append(copiesByPred[pred], [2]*local.Local{phi.Result, src})
			}
		}
		for pred, copies := range copiesByPred {
			emitParallelCopy(pred, copies)
		}
		b.Phis = nil
	}
}

// emitParallelCopy sequences a set of (dest, src) register copies that must
// all appear to happen simultaneously. Chains are emitted in dependency
// order (a copy whose destination no other pending copy still reads can go
// first); any residual cycle is broken with one fresh temporary per cycle.
func emitParallelCopy(pred *cfg.BasicBlock, copies [][2]*local.Local) {
	pending := append([][2]*local.Local{}, copies...)
	readByOther := func(l *local.Local, self int) bool {
		for j, c := range pending {
			if j != self && c[1] == l {
				return true
			}
		}
		return false
	}

	emit := func(dest, src *local.Local) {
		pred.Statements = append(pred.Statements, &luaast.Assign{
			Left:  []luaast.LValue{&luaast.LocalLValue{Local: dest}},
			Right: []luaast.RValue{&luaast.LocalRead{Local: src}},
		})
	}

	for len(pending) > 0 {
		progressed := false
		for i, c := range pending {
			dest, src := c[0], c[1]
			if dest == src {
				pending = append(pending[:i], pending[i+1:]...)
				progressed = true
				break
			}
			if !readByOther(dest, i) {
				emit(dest, src)
				pending = append(pending[:i], pending[i+1:]...)
				progressed = true
				break
			}
		}
		if !progressed {
			// A genuine cycle: break it with one temporary holding the first
			// copy's destination value before it is overwritten.
			c := pending[0]
			tmp := local.New()
			emit(tmp, c[0])
			for i := range pending {
				if pending[i][1] == c[0] {
					pending[i][1] = tmp
				}
			}
		}
	}
}

// coalesceGroups picks one representative local per SSA group and rewrites
// every read, write, and closure upvalue capture of any group member to
// that representative.
func coalesceGroups(fn *cfg.Function, result *Result) {
	if result == nil {
		return
	}
	representative := map[*local.Local]*local.Local{}
	for _, g := range result.LocalGroups {
		if len(g.Members) == 0 {
			continue
		}
		rep := g.Members[0]
		for _, m := range g.Members {
			representative[m] = rep
		}
	}
	rewrite := func(l *local.Local) *local.Local {
		if rep, ok := representative[l]; ok {
			return rep
		}
		return l
	}

	var renameRValue func(luaast.RValue)
	renameRValue = func(v luaast.RValue) {
		if v == nil {
			return
		}
		switch n := v.(type) {
		case *luaast.LocalRead:
			n.Local = rewrite(n.Local)
		case *luaast.Closure:
			for i := range n.Upvalues {
				n.Upvalues[i].Parent = rewrite(n.Upvalues[i].Parent)
			}
		}
		for _, child := range v.RValues() {
			renameRValue(*child)
		}
	}

	var rewriteStatement func(luaast.Statement)
	rewriteStatement = func(stmt luaast.Statement) {
		for _, rv := range stmt.RValues() {
			renameRValue(*rv)
		}
		switch s := stmt.(type) {
		case *luaast.Assign:
			for i, lv := range s.Left {
				if ll, ok := lv.(*luaast.LocalLValue); ok {
					s.Left[i] = &luaast.LocalLValue{Local: rewrite(ll.Local)}
				}
			}
		case *luaast.NumericFor:
			s.Counter = rewrite(s.Counter)
		case *luaast.GenericFor:
			for i, l := range s.ResLocals {
				s.ResLocals[i] = rewrite(l)
			}
		}
		for _, sub := range stmt.SubBlocks() {
			for _, child := range sub.Statements() {
				rewriteStatement(child)
			}
		}
	}

	for _, b := range fn.Blocks {
		for _, stmt := range b.Statements {
			rewriteStatement(stmt)
		}
		if b.Terminator != nil {
			for _, rv := range cfg.TerminatorRValues(b.Terminator) {
				renameRValue(*rv)
			}
			switch t := b.Terminator.(type) {
			case *cfg.NumericForLoop:
				t.Counter = rewrite(t.Counter)
			case *cfg.GenericForLoop:
				for i, rl := range t.ResLocals {
					t.ResLocals[i] = rewrite(rl)
				}
			}
		}
	}

	for i, p := range fn.Parameters {
		fn.Parameters[i] = rewrite(p)
	}
}

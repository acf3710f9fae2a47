// Package ssa implements C2 (construction), C3 (inlining), C4 (jump and
// conditional structuring), and C5 (destruction): the middle of the
// pipeline that turns a plain CFG into a reducible one dressed in SSA form,
// then back out of SSA into a form restructure.Lift can walk.
package ssa

import (
	"medal/internal/cfg"
	"medal/internal/local"
	"medal/internal/luaast"
)

// MalformedCFGError is returned by Construct when the input CFG does not
// satisfy the invariants SSA construction depends on: a missing entry block,
// or a local read that is not dominated by any definition and is not a
// parameter or inbound upvalue.
type MalformedCFGError struct {
	Reason string
}

func (e *MalformedCFGError) Error() string { return "malformed cfg: " + e.Reason }

// Result is everything SSA construction hands back to the pipeline driver:
// the total count of SSA versions minted, the coalescing groups the
// destructor will need, and the two upvalue-group maps the spec calls for.
type Result struct {
	LocalCount          int
	LocalGroups         []*local.Group
	UpvalueInGroups     map[*local.Local]*local.Group
	UpvaluePassedGroups map[*local.Local]*local.Group
}

type unionFind struct {
	parent map[*local.Local]*local.Local
}

func newUnionFind() *unionFind { return &unionFind{parent: map[*local.Local]*local.Local{}} }

func (u *unionFind) find(l *local.Local) *local.Local {
	p, ok := u.parent[l]
	if !ok {
		u.parent[l] = l
		return l
	}
	if p == l {
		return l
	}
	root := u.find(p)
	u.parent[l] = root
	return root
}

func (u *unionFind) union(a, b *local.Local) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

// Construct performs SSA construction over fn in place: every write mints a
// fresh local version, phi nodes are inserted at the iterated dominance
// frontier of each original local's definitions, and reads are rewritten to
// the version reaching them along the dominator tree. fn's parameters and
// inbound upvalues are treated as already "defined" at the entry block.
func Construct(fn *cfg.Function) (*Result, error) {
	if fn.Entry == nil {
		return nil, &MalformedCFGError{Reason: "function has no entry block"}
	}

	doms := cfg.Compute(fn)
	frontier := doms.Frontier()

	defBlocks := collectDefBlocks(fn)

	// Phase 1: insert phis at the iterated dominance frontier of every
	// original's definitions.
	phiFor := make(map[*cfg.BasicBlock]map[*local.Local]*cfg.Phi)
	for orig, defs := range defBlocks {
		hasPhi := map[*cfg.BasicBlock]bool{}
		worklist := append([]*cfg.BasicBlock{}, defs...)
		for len(worklist) > 0 {
			b := worklist[len(worklist)-1]
			worklist = worklist[:len(worklist)-1]
			for f := range frontier[b] {
				if hasPhi[f] {
					continue
				}
				hasPhi[f] = true
				if phiFor[f] == nil {
					phiFor[f] = map[*local.Local]*cfg.Phi{}
				}
				p := &cfg.Phi{Args: map[*cfg.BasicBlock]*local.Local{}}
				phiFor[f][orig] = p
				f.Phis = append(f.Phis, p)
				worklist = append(worklist, f)
			}
		}
	}

	uf := newUnionFind()
	stacks := map[*local.Local][]*local.Local{}
	for _, p := range fn.Parameters {
		stacks[p] = []*local.Local{p}
	}
	for _, uv := range fn.UpvaluesIn {
		stacks[uv] = []*local.Local{uv}
	}

	allVersions := local.NewSet()
	for _, p := range fn.Parameters {
		allVersions.Add(p)
	}
	for _, uv := range fn.UpvaluesIn {
		allVersions.Add(uv)
	}

	var renameErr error
	push := func(orig, version *local.Local) {
		stacks[orig] = append(stacks[orig], version)
		allVersions.Add(version)
	}
	top := func(orig *local.Local) (*local.Local, bool) {
		s := stacks[orig]
		if len(s) == 0 {
			return nil, false
		}
		return s[len(s)-1], true
	}

	// origOf maps every minted version back to the pre-SSA original it
	// versions, so that a later statement writing the same original knows
	// which stack to push onto. Parameters/upvalues version themselves.
	origOf := map[*local.Local]*local.Local{}
	for orig := range defBlocks {
		origOf[orig] = orig
	}
	for _, p := range fn.Parameters {
		origOf[p] = p
	}
	for _, uv := range fn.UpvaluesIn {
		origOf[uv] = uv
	}

	renameRValue := func(v luaast.RValue) {
		var walk func(luaast.RValue)
		walk = func(n luaast.RValue) {
			if n == nil {
				return
			}
			if lr, ok := n.(*luaast.LocalRead); ok {
				orig, tracked := origOf[lr.Local]
				if !tracked {
					orig = lr.Local
				}
				cur, ok := top(orig)
				if !ok {
					if renameErr == nil {
						renameErr = &MalformedCFGError{Reason: "read of local with no reaching definition"}
					}
					return
				}
				lr.Local = cur
			}
			for _, child := range n.RValues() {
				walk(*child)
			}
		}
		walk(v)
	}

	var walkBlock func(b *cfg.BasicBlock)
	walkBlock = func(b *cfg.BasicBlock) {
		var pushedOrigs []*local.Local

		for orig, p := range phiFor[b] {
			version := local.New()
			p.Result = version
			push(orig, version)
			pushedOrigs = append(pushedOrigs, orig)
		}

		for _, stmt := range b.Statements {
			for _, rv := range stmt.RValues() {
				renameRValue(*rv)
			}
			if a, ok := stmt.(*luaast.Assign); ok {
				for i, lv := range a.Left {
					ll, ok := lv.(*luaast.LocalLValue)
					if !ok {
						continue
					}
					orig, tracked := origOf[ll.Local]
					if !tracked {
						orig = ll.Local
						origOf[orig] = orig
					}
					version := local.New()
					push(orig, version)
					pushedOrigs = append(pushedOrigs, orig)
					a.Left[i] = &luaast.LocalLValue{Local: version}
				}
			}
		}

		if b.Terminator != nil {
			for _, rv := range cfg.TerminatorRValues(b.Terminator) {
				renameRValue(*rv)
			}
			switch t := b.Terminator.(type) {
			case *cfg.NumericForLoop:
				orig, tracked := origOf[t.Counter]
				if !tracked {
					orig = t.Counter
					origOf[orig] = orig
				}
				version := local.New()
				push(orig, version)
				pushedOrigs = append(pushedOrigs, orig)
				t.Counter = version
			case *cfg.GenericForLoop:
				for i, rl := range t.ResLocals {
					orig, tracked := origOf[rl]
					if !tracked {
						orig = rl
						origOf[orig] = orig
					}
					version := local.New()
					push(orig, version)
					pushedOrigs = append(pushedOrigs, orig)
					t.ResLocals[i] = version
				}
			}
		}

		for _, e := range b.Successors() {
			for orig, p := range phiFor[e.To] {
				if cur, ok := top(orig); ok {
					p.Args[b] = cur
				}
			}
		}

		for _, child := range doms.Children(b) {
			walkBlock(child)
		}

		for _, orig := range pushedOrigs {
			s := stacks[orig]
			stacks[orig] = s[:len(s)-1]
		}
	}
	walkBlock(fn.Entry)

	if renameErr != nil {
		return nil, renameErr
	}

	// Union every phi result with its non-nil arguments: they must coalesce
	// to a single post-SSA local at destruction.
	for _, b := range fn.Blocks {
		for _, p := range b.Phis {
			for _, arg := range p.Args {
				uf.union(p.Result, arg)
			}
		}
	}

	// Collect locals captured by nested closures so their group is tracked
	// for the destructor to repoint once coalescing picks a representative.
	passed := local.NewSet()
	for _, b := range fn.Blocks {
		for _, stmt := range b.Statements {
			assign, ok := stmt.(*luaast.Assign)
			if !ok {
				continue
			}
			for _, rv := range assign.Right {
				if cl, ok := rv.(*luaast.Closure); ok {
					for _, uv := range cl.Upvalues {
						passed.Add(uv.Parent)
						allVersions.Add(uv.Parent)
					}
				}
			}
		}
	}

	groupsByRoot := map[*local.Local]*local.Group{}
	nextGroupID := 0
	groupOf := func(v *local.Local) *local.Group {
		root := uf.find(v)
		g, ok := groupsByRoot[root]
		if !ok {
			nextGroupID++
			g = &local.Group{ID: nextGroupID}
			groupsByRoot[root] = g
		}
		return g
	}

	for v := range allVersions {
		g := groupOf(v)
		g.Members = append(g.Members, v)
	}

	groups := make([]*local.Group, 0, len(groupsByRoot))
	for _, g := range groupsByRoot {
		groups = append(groups, g)
	}

	upvalueInGroups := map[*local.Local]*local.Group{}
	for _, uv := range fn.UpvaluesIn {
		upvalueInGroups[uv] = groupOf(uv)
	}
	upvaluePassedGroups := map[*local.Local]*local.Group{}
	for v := range passed {
		upvaluePassedGroups[v] = groupOf(v)
	}

	return &Result{
		LocalCount:          len(allVersions),
		LocalGroups:         groups,
		UpvalueInGroups:     upvalueInGroups,
		UpvaluePassedGroups: upvaluePassedGroups,
	}, nil
}

// collectDefBlocks finds, for every local written anywhere in fn, the set of
// blocks containing a write to it. A parameter or inbound upvalue appears
// only if some block reassigns it; its implicit definition at Entry is not
// recorded here.
func collectDefBlocks(fn *cfg.Function) map[*local.Local][]*cfg.BasicBlock {
	defs := map[*local.Local][]*cfg.BasicBlock{}
	add := func(l *local.Local, b *cfg.BasicBlock) {
		list := defs[l]
		for _, existing := range list {
			if existing == b {
				return
			}
		}
		defs[l] = append(list, b)
	}
	for _, b := range fn.Blocks {
		for _, stmt := range b.Statements {
			for _, w := range luaast.ValuesWritten(stmt) {
				add(w, b)
			}
		}
		switch t := b.Terminator.(type) {
		case *cfg.NumericForLoop:
			add(t.Counter, b)
		case *cfg.GenericForLoop:
			for _, rl := range t.ResLocals {
				add(rl, b)
			}
		}
	}
	return defs
}

// PruneTrivialPhis removes phi nodes whose arguments (ignoring self-
// references) all resolve to the same local, rewriting every use of the
// phi's result to that local directly. This is the "parameter pruning" step
// the jump/conditional structuring fixed point runs each iteration, since
// structuring frequently turns a real phi into a trivial one by deleting an
// edge. Returns whether any phi was removed.
func PruneTrivialPhis(fn *cfg.Function) bool {
	changed := false
	for _, b := range fn.Blocks {
		kept := b.Phis[:0]
		for _, p := range b.Phis {
			var same *local.Local
			trivial := true
			for _, arg := range p.Args {
				if arg == p.Result {
					continue
				}
				if same == nil {
					same = arg
					continue
				}
				if same != arg {
					trivial = false
					break
				}
			}
			if trivial && same != nil {
				replaceLocal(fn, p.Result, same)
				changed = true
				continue
			}
			kept = append(kept, p)
		}
		b.Phis = kept
	}
	return changed
}

// replaceLocal rewrites every read of from (in statements, terminators, and
// other phi arguments) to to.
func replaceLocal(fn *cfg.Function, from, to *local.Local) {
	var rename func(luaast.RValue)
	rename = func(v luaast.RValue) {
		if v == nil {
			return
		}
		if lr, ok := v.(*luaast.LocalRead); ok && lr.Local == from {
			lr.Local = to
		}
		for _, child := range v.RValues() {
			rename(*child)
		}
	}
	for _, b := range fn.Blocks {
		for _, stmt := range b.Statements {
			for _, rv := range stmt.RValues() {
				rename(*rv)
			}
		}
		if b.Terminator != nil {
			for _, rv := range cfg.TerminatorRValues(b.Terminator) {
				rename(*rv)
			}
		}
		for _, p := range b.Phis {
			for pred, arg := range p.Args {
				if arg == from {
					p.Args[pred] = to
				}
			}
		}
	}
}

package ssa

import (
	"medal/internal/cfg"
	"medal/internal/local"
	"medal/internal/luaast"
)

// StructureJumps rewrites the small CFG idioms that shrink the graph without
// needing dominator-tree region matching: bypassing empty jump-only blocks,
// and relabeling a branch inside a loop body that jumps straight to the
// loop's header as continue or out past the loop as break. Returns whether
// it made progress.
func StructureJumps(fn *cfg.Function) bool {
	changed := false
	for {
		progressed := false
		for _, b := range fn.Blocks {
			if b == fn.Entry {
				continue
			}
			jmp, ok := b.Terminator.(*cfg.Jump)
			if !ok || len(b.Statements) != 0 || len(b.Phis) != 0 {
				continue
			}
			target := jmp.Edge.To
			if target == b {
				continue
			}
			bypassBlock(fn, b, target)
			changed = true
			progressed = true
			break
		}
		if progressed {
			continue
		}
		if relabelLoopJumps(fn, cfg.Compute(fn)) {
			changed = true
			continue
		}
		break
	}
	return changed
}

// relabelLoopJumps finds one branch inside a natural loop's body, other than
// the header's own loop test or the latch's own tail test, where exactly one
// arm leaves the loop (to the header, a continue, or to anywhere else outside
// the body, a break), and reduces it to a single-successor block guarded by
// an if that carries the matching luaast.Continue/Break. Processes at most
// one match per call, like the other region-collapse passes, so the caller's
// fixed-point loop re-verifies the graph from scratch after each rewrite.
func relabelLoopJumps(fn *cfg.Function, doms *cfg.Dominators) bool {
	for _, be := range cfg.FindBackEdges(fn, doms) {
		header, latch := be.Header, be.From
		if latch == header {
			continue
		}
		body := cfg.NaturalLoopBlocks(header, latch)
		for _, b := range fn.Blocks {
			if b == header || b == latch || !body[b] {
				continue
			}
			branch, ok := b.Terminator.(*cfg.Branch)
			if !ok {
				continue
			}
			if relabelBranchEscape(b, branch, header, body) {
				return true
			}
		}
	}
	return false
}

// relabelBranchEscape rewrites b's Branch into a guarding if plus a single
// Jump, when exactly one of its two arms leaves the loop body: targeting
// header directly (continue) or targeting any block outside body (break).
// The other arm's edge is kept as b's new unconditional successor.
func relabelBranchEscape(b *cfg.BasicBlock, branch *cfg.Branch, header *cfg.BasicBlock, body map[*cfg.BasicBlock]bool) bool {
	classify := func(e *cfg.Edge) (luaast.Statement, bool) {
		if e.To == header {
			return &luaast.Continue{}, true
		}
		if !body[e.To] {
			return &luaast.Break{}, true
		}
		return nil, false
	}

	trueStmt, trueEscapes := classify(branch.True)
	falseStmt, falseEscapes := classify(branch.False)

	var escapeEdge, stayEdge *cfg.Edge
	var escapeStmt luaast.Statement
	cond := branch.Condition
	switch {
	case trueEscapes && !falseEscapes:
		escapeEdge, stayEdge, escapeStmt = branch.True, branch.False, trueStmt
	case falseEscapes && !trueEscapes:
		escapeEdge, stayEdge, escapeStmt = branch.False, branch.True, falseStmt
		cond = &luaast.UnaryOp{Op: "not", Operand: cond}
	default:
		return false
	}

	arm := luaast.NewBlock()
	for _, phi := range escapeEdge.To.Phis {
		if v, ok := phi.Args[b]; ok {
			appendPhiResolution(arm, phi.Result, v)
			delete(phi.Args, b)
		}
	}
	arm.Append(escapeStmt)

	b.Statements = append(b.Statements, &luaast.If{Condition: cond, Then: arm})
	cfg.RemoveEdge(b, escapeEdge.To)
	b.Terminator = &cfg.Jump{Edge: stayEdge}
	return true
}

// bypassBlock retargets every predecessor of b to jump straight to target,
// carrying forward any phi arguments target's phis recorded for b, then
// removes b from fn.
func bypassBlock(fn *cfg.Function, b, target *cfg.BasicBlock) {
	preds := append([]*cfg.BasicBlock{}, b.Predecessors...)

	var carried map[*local.Local]*local.Local
	_ = carried
	phiVals := map[*cfg.Phi]*local.Local{}
	for _, p := range target.Phis {
		if v, ok := p.Args[b]; ok {
			phiVals[p] = v
		}
	}

	for _, p := range preds {
		cfg.Retarget(p, b, target)
		for phi, v := range phiVals {
			phi.Args[p] = v
		}
	}
	for _, p := range target.Phis {
		delete(p.Args, b)
	}
	fn.RemoveBlock(b)
}

// StructureConditionals runs one pass of region recognition over fn:
// short-circuit and/or detection, diamond/triangle if/else collapsing, and
// loop recovery via back edges. It directly builds the corresponding
// luaast statement and folds the region's blocks into one, fusing what the
// specification separates into jump/conditional structuring (C4) and AST
// lift (C6): the structured node is materialized the moment its CFG shape
// is recognized instead of being recorded for a later emission walk.
// Returns whether it made progress.
func StructureConditionals(fn *cfg.Function) bool {
	doms := cfg.Compute(fn)

	if collapseLoop(fn, doms) {
		return true
	}
	if collapseShortCircuit(fn, doms) {
		return true
	}
	if collapseDiamond(fn, doms) {
		return true
	}
	return false
}

// blockStatements returns b's statements as a fresh AST block, consuming
// them (b itself is discarded by the caller once this runs).
func blockStatements(b *cfg.BasicBlock) *luaast.Block {
	return luaast.NewBlock(append([]luaast.Statement{}, b.Statements...)...)
}

// appendPhiResolution appends `result = value` to the end of arm: the
// explicit assignment a phi's argument along one incoming path becomes once
// that path is folded into a structured arm instead of a labeled
// predecessor block.
func appendPhiResolution(arm *luaast.Block, result, value *local.Local) {
	if result == value {
		return
	}
	arm.Append(&luaast.Assign{
		Left:  []luaast.LValue{&luaast.LocalLValue{Local: result}},
		Right: []luaast.RValue{&luaast.LocalRead{Local: value}},
	})
}

// removePhis deletes the given phis from b.Phis.
func removePhis(b *cfg.BasicBlock, dead []*cfg.Phi) {
	if len(dead) == 0 {
		return
	}
	isDead := map[*cfg.Phi]bool{}
	for _, p := range dead {
		isDead[p] = true
	}
	kept := b.Phis[:0]
	for _, p := range b.Phis {
		if !isDead[p] {
			kept = append(kept, p)
		}
	}
	b.Phis = kept
}

// collapseDiamond finds a head block whose conditional branch reconverges
// at a single join block, with each arm either empty (falls straight
// through to join) or a single already-reduced block, and rewrites it to an
// If/Else appended to head, retargeted to join.
func collapseDiamond(fn *cfg.Function, doms *cfg.Dominators) bool {
	for _, head := range fn.Blocks {
		branch, ok := head.Terminator.(*cfg.Branch)
		if !ok {
			continue
		}
		thenBlock, thenJoin, thenOK := straightArm(branch.True.To)
		elseBlock, elseJoin, elseOK := straightArm(branch.False.To)
		// An empty arm branches straight to the block the other arm jumps to.
		if thenOK && !elseOK && thenJoin == branch.False.To {
			elseBlock, elseJoin, elseOK = thenJoin, thenJoin, true
		} else if elseOK && !thenOK && elseJoin == branch.True.To {
			thenBlock, thenJoin, thenOK = elseJoin, elseJoin, true
		}
		if !thenOK || !elseOK || thenJoin != elseJoin {
			continue
		}
		join := thenJoin
		if join == nil || !doms.Dominates(head, join) {
			continue
		}

		// The predecessor key a join phi used for each arm, before that
		// arm's block disappears: a real intermediate block for a
		// non-empty arm, or head itself for an empty (pass-through) arm.
		thenPredKey, elsePredKey := branch.True.To, branch.False.To
		if thenBlock == join {
			thenPredKey = head
		}
		if elseBlock == join {
			elsePredKey = head
		}

		var thenAST *luaast.Block
		if thenBlock == join {
			thenAST = luaast.NewBlock()
		} else {
			thenAST = blockStatements(thenBlock)
		}
		var elseAST *luaast.Block
		haveElse := elseBlock != join
		if haveElse {
			elseAST = blockStatements(elseBlock)
		}

		var resolved []*cfg.Phi
		for _, phi := range join.Phis {
			thenVal, hasThen := phi.Args[thenPredKey]
			elseVal, hasElse := phi.Args[elsePredKey]
			if !hasThen || !hasElse {
				continue
			}
			appendPhiResolution(thenAST, phi.Result, thenVal)
			if elseAST == nil {
				elseAST = luaast.NewBlock()
				haveElse = true
			}
			appendPhiResolution(elseAST, phi.Result, elseVal)
			delete(phi.Args, thenPredKey)
			delete(phi.Args, elsePredKey)
			resolved = append(resolved, phi)
		}
		removePhis(join, resolved)

		var elseBlockForIf *luaast.Block
		if haveElse {
			elseBlockForIf = elseAST
		}
		ifStmt := &luaast.If{Condition: branch.Condition, Then: thenAST, Else: elseBlockForIf}
		head.Statements = append(head.Statements, ifStmt)
		head.Terminator = &cfg.Jump{Edge: &cfg.Edge{Kind: cfg.EdgeUnconditional, To: join}}
		cfg.RemoveEdge(head, branch.True.To)
		cfg.RemoveEdge(head, branch.False.To)
		cfg.AddEdge(head, head.Terminator.(*cfg.Jump).Edge)

		if thenBlock != join {
			cfg.RemoveEdge(thenBlock, join)
			fn.RemoveBlock(thenBlock)
		}
		if elseBlock != join && elseBlock != nil {
			cfg.RemoveEdge(elseBlock, join)
			fn.RemoveBlock(elseBlock)
		}
		return true
	}
	return false
}

// straightArm follows b if it is a single candidate branch-arm block: b has
// exactly one predecessor and an unconditional jump onward, in which case b
// is the arm body and its jump target is the join. An empty arm (a branch
// edge straight to the join) is not recognized here; collapseDiamond detects
// it by matching the branch target against the other arm's join.
func straightArm(b *cfg.BasicBlock) (armBlock, join *cfg.BasicBlock, ok bool) {
	if b == nil {
		return nil, nil, false
	}
	if !b.HasSinglePredecessor() {
		return nil, nil, false
	}
	jmp, isJump := b.Terminator.(*cfg.Jump)
	if !isJump {
		return nil, nil, false
	}
	return b, jmp.Edge.To, true
}

// collapseShortCircuit recognizes a head whose true edge leads to another
// single-predecessor condition block sharing the head's false target (an
// `and`), or whose false edge leads to one sharing the true target (an
// `or`), and fuses them into one Branch testing a BinaryOp. `and` is
// preferred when both shapes match, since distinct targets mean they cannot
// both match at once except in that tie.
func collapseShortCircuit(fn *cfg.Function, doms *cfg.Dominators) bool {
	_ = doms
	for _, head := range fn.Blocks {
		branch, ok := head.Terminator.(*cfg.Branch)
		if !ok {
			continue
		}
		if mid, midBranch, isCand := singlePredBranch(branch.True.To); isCand {
			if midBranch.False.To == branch.False.To {
				fuseShortCircuit(fn, head, branch, mid, midBranch, "and", branch.True.To == mid)
				return true
			}
		}
		if mid, midBranch, isCand := singlePredBranch(branch.False.To); isCand {
			if midBranch.True.To == branch.True.To {
				fuseShortCircuit(fn, head, branch, mid, midBranch, "or", branch.False.To == mid)
				return true
			}
		}
	}
	return false
}

func singlePredBranch(b *cfg.BasicBlock) (*cfg.BasicBlock, *cfg.Branch, bool) {
	if b == nil || !b.HasSinglePredecessor() || len(b.Statements) != 0 || len(b.Phis) != 0 {
		return nil, nil, false
	}
	br, ok := b.Terminator.(*cfg.Branch)
	if !ok {
		return nil, nil, false
	}
	return b, br, true
}

func fuseShortCircuit(fn *cfg.Function, head *cfg.BasicBlock, headBranch *cfg.Branch, mid *cfg.BasicBlock, midBranch *cfg.Branch, op string, midIsTrueArm bool) {
	combined := &luaast.BinaryOp{Op: op, Left: headBranch.Condition, Right: midBranch.Condition}
	newTrue := midBranch.True
	newFalse := midBranch.False
	head.Terminator = &cfg.Branch{Condition: combined, True: newTrue, False: newFalse}

	cfg.RemoveEdge(head, headBranch.True.To)
	cfg.RemoveEdge(head, headBranch.False.To)
	cfg.RemoveEdge(mid, newTrue.To)
	cfg.RemoveEdge(mid, newFalse.To)
	rekeyPhiArgs(newTrue.To, mid, head)
	rekeyPhiArgs(newFalse.To, mid, head)
	cfg.AddEdge(head, newTrue)
	cfg.AddEdge(head, newFalse)
	_ = midIsTrueArm
	fn.RemoveBlock(mid)
}

// rekeyPhiArgs moves target's phi arguments recorded under old onto repl.
// mid is always a pure test block (singlePredBranch rejects one with any
// statements), so whatever value reached a join from old was never touched
// by mid; if repl already has its own recorded argument there, old's is
// redundant and just dropped instead of overwriting it.
func rekeyPhiArgs(target *cfg.BasicBlock, old, repl *cfg.BasicBlock) {
	for _, phi := range target.Phis {
		v, ok := phi.Args[old]
		if !ok {
			continue
		}
		delete(phi.Args, old)
		if _, already := phi.Args[repl]; !already {
			phi.Args[repl] = v
		}
	}
}

// collapseLoop recognizes a back edge whose source is either the loop
// header itself (a single-block loop) or a latch reached from the header by
// a chain of single-predecessor, single-successor blocks, and rewrites the
// region to a While (head-tested, branch at the header) or Repeat
// (tail-tested, branch at the latch). Numeric-for and generic-for
// terminators need no recognition step: the lifter already emits them as
// typed terminators, so NumericFor/GenericFor are lowered to AST directly
// wherever they appear as a block's terminator.
func collapseLoop(fn *cfg.Function, doms *cfg.Dominators) bool {
	for _, b := range fn.Blocks {
		switch t := b.Terminator.(type) {
		case *cfg.NumericForLoop:
			return lowerNumericFor(fn, b, t)
		case *cfg.GenericForLoop:
			return lowerGenericFor(fn, b, t)
		}
	}

	backEdges := cfg.FindBackEdges(fn, doms)
	for _, be := range backEdges {
		header := be.Header
		latch := be.From

		if latch == header {
			if collapseWhile(fn, header, header) {
				return true
			}
			continue
		}

		// collapseWhile/collapseRepeat each validate their own shape via
		// gatherBodyBlocks starting from the loop's body edge, not from
		// header itself, so no separate pre-check is needed here: header is
		// branch-terminated by construction for a head-tested loop, which is
		// exactly what collapseWhile requires, not what a chain walk
		// starting at header would find.
		if _, ok := header.Terminator.(*cfg.Branch); ok {
			if collapseWhile(fn, header, latch) {
				return true
			}
		}
		if _, ok := latch.Terminator.(*cfg.Branch); ok {
			if collapseRepeat(fn, header, latch) {
				return true
			}
		}
	}
	return false
}

// straightChainFrom reports whether every block from header (exclusive) to
// latch (inclusive) forms a single-predecessor chain, returning the chain in
// order, or nil if the region is not yet reduced to a straight line.
func straightChainFrom(header, latch *cfg.BasicBlock) []*cfg.BasicBlock {
	var chain []*cfg.BasicBlock
	cur := header
	for cur != latch {
		jmp, ok := cur.Terminator.(*cfg.Jump)
		if cur == header {
			if !ok {
				return nil
			}
		} else if !ok || !cur.HasSinglePredecessor() {
			return nil
		}
		next := jmp.Edge.To
		chain = append(chain, next)
		cur = next
		if len(chain) > len(latch.Predecessors)+1 && cur != latch {
			// Defensive bound against an unexpected cycle in malformed input;
			// genuine chains terminate at latch well before this.
			if len(chain) > 4096 {
				return nil
			}
		}
	}
	return chain
}

func collapseWhile(fn *cfg.Function, header, latch *cfg.BasicBlock) bool {
	branch, ok := header.Terminator.(*cfg.Branch)
	if !ok {
		return false
	}
	var bodyEdge, exitEdge *cfg.Edge
	switch {
	case leadsToLatch(branch.True.To, latch):
		bodyEdge, exitEdge = branch.True, branch.False
	case leadsToLatch(branch.False.To, latch):
		bodyEdge, exitEdge = branch.False, branch.True
		branch.Condition = &luaast.UnaryOp{Op: "not", Operand: branch.Condition}
	default:
		return false
	}
	if exitEdge.To == header {
		return false
	}

	body := gatherBodyBlocks(header, bodyEdge.To, latch)
	if body == nil {
		return false
	}
	bodyIncludesHeader := len(body) > 0 && body[0] == header
	bodyAST := luaast.NewBlock()
	for _, blk := range body {
		for _, s := range blk.Statements {
			bodyAST.Append(s)
		}
	}

	entryAssigns := resolveLoopCarriedPhis(header, latch, bodyAST)

	whileStmt := &luaast.While{Condition: branch.Condition, Body: bodyAST}
	if bodyIncludesHeader {
		header.Statements = nil
	}
	header.Statements = append(header.Statements, entryAssigns...)
	header.Statements = append(header.Statements, whileStmt)
	for _, e := range header.Successors() {
		cfg.RemoveEdge(header, e.To)
	}
	header.Terminator = &cfg.Jump{Edge: exitEdge}
	cfg.AddEdge(header, exitEdge)

	for _, blk := range body {
		if blk != header {
			for _, e := range blk.Successors() {
				cfg.RemoveEdge(blk, e.To)
			}
			fn.RemoveBlock(blk)
		}
	}
	return true
}

func collapseRepeat(fn *cfg.Function, header, latch *cfg.BasicBlock) bool {
	branch, ok := latch.Terminator.(*cfg.Branch)
	if !ok {
		return false
	}
	var exitEdge *cfg.Edge
	cond := branch.Condition
	switch {
	case branch.True.To == header:
		exitEdge = branch.False
		cond = &luaast.UnaryOp{Op: "not", Operand: cond}
	case branch.False.To == header:
		exitEdge = branch.True
	default:
		return false
	}

	body := gatherBodyBlocks(header, header, latch)
	if body == nil {
		return false
	}
	bodyAST := luaast.NewBlock()
	for _, blk := range body {
		for _, s := range blk.Statements {
			bodyAST.Append(s)
		}
	}

	entryAssigns := resolveLoopCarriedPhis(header, latch, bodyAST)

	repeatStmt := &luaast.Repeat{Body: bodyAST, Condition: cond}
	// header's own statements were already copied into bodyAST above (the
	// loop body runs header's code once per iteration before testing at the
	// latch); replace them with any pre-loop phi initializers plus the
	// single Repeat statement that now represents this whole region.
	header.Statements = append(append([]luaast.Statement{}, entryAssigns...), repeatStmt)
	for _, e := range latch.Successors() {
		cfg.RemoveEdge(latch, e.To)
	}
	header.Terminator = &cfg.Jump{Edge: exitEdge}
	cfg.AddEdge(header, exitEdge)

	for _, blk := range body {
		if blk != header {
			fn.RemoveBlock(blk)
		}
	}
	return true
}

// resolveLoopCarriedPhis resolves every phi at header whose two arguments
// come from exactly the loop's entry predecessor and its latch: the
// entry-edge value becomes a pre-loop initializer (returned for the caller
// to place before the loop statement) and the latch-edge value becomes an
// assignment appended to the end of the loop body. Phis with any other
// shape (multiple entry predecessors, e.g. several break sites feeding the
// header — not expected from a reducible single-entry loop) are left in
// place for Destruct to lower as a last resort.
func resolveLoopCarriedPhis(header, latch *cfg.BasicBlock, bodyAST *luaast.Block) []luaast.Statement {
	var entryPred *cfg.BasicBlock
	for _, p := range header.Predecessors {
		if p != latch {
			entryPred = p
			break
		}
	}
	if entryPred == nil {
		return nil
	}

	var entryAssigns []luaast.Statement
	var resolved []*cfg.Phi
	for _, phi := range header.Phis {
		entryVal, hasEntry := phi.Args[entryPred]
		backVal, hasBack := phi.Args[latch]
		if !hasEntry || !hasBack {
			continue
		}
		if phi.Result != entryVal {
			entryAssigns = append(entryAssigns, &luaast.Assign{
				Left:  []luaast.LValue{&luaast.LocalLValue{Local: phi.Result}},
				Right: []luaast.RValue{&luaast.LocalRead{Local: entryVal}},
			})
		}
		appendPhiResolution(bodyAST, phi.Result, backVal)
		delete(phi.Args, entryPred)
		delete(phi.Args, latch)
		resolved = append(resolved, phi)
	}
	removePhis(header, resolved)
	return entryAssigns
}

func leadsToLatch(b, latch *cfg.BasicBlock) bool {
	if b == latch {
		return true
	}
	chain := straightChainFrom(b, latch)
	return chain != nil || b == latch
}

// gatherBodyBlocks linearizes the straight-line chain of blocks making up a
// loop body: bodyStart first, then each block reached by jumps from it, up to
// and including latch. header itself is not inspected, so it is part of the
// result whenever it is bodyStart (collapseRepeat) or latch (the for-loop
// lowerings). Returns nil if the body is not yet reduced to a single chain.
func gatherBodyBlocks(header, bodyStart, latch *cfg.BasicBlock) []*cfg.BasicBlock {
	if bodyStart == latch {
		return []*cfg.BasicBlock{latch}
	}
	chain := straightChainFrom(bodyStart, latch)
	if chain == nil {
		if _, ok := bodyStart.Terminator.(*cfg.Jump); ok {
			return nil
		}
		return nil
	}
	return append([]*cfg.BasicBlock{bodyStart}, chain...)
}

func lowerNumericFor(fn *cfg.Function, header *cfg.BasicBlock, t *cfg.NumericForLoop) bool {
	body := gatherBodyBlocks(header, t.Continue.To, header)
	if body == nil && t.Continue.To != header {
		return false
	}
	bodyAST := luaast.NewBlock()
	if t.Continue.To != header {
		for _, blk := range body {
			if blk == header {
				continue
			}
			for _, s := range blk.Statements {
				bodyAST.Append(s)
			}
		}
	}
	forStmt := &luaast.NumericFor{Counter: t.Counter, Start: t.Start, Limit: t.Limit, Step: t.Step, Body: bodyAST}
	header.Statements = append(header.Statements, forStmt)
	cfg.RemoveEdge(header, t.Continue.To)
	cfg.RemoveEdge(header, t.Exit.To)
	header.Terminator = &cfg.Jump{Edge: t.Exit}
	cfg.AddEdge(header, t.Exit)
	if t.Continue.To != header {
		for _, blk := range body {
			if blk == header {
				continue
			}
			for _, e := range blk.Successors() {
				cfg.RemoveEdge(blk, e.To)
			}
			fn.RemoveBlock(blk)
		}
	}
	return true
}

func lowerGenericFor(fn *cfg.Function, header *cfg.BasicBlock, t *cfg.GenericForLoop) bool {
	body := gatherBodyBlocks(header, t.Continue.To, header)
	if body == nil && t.Continue.To != header {
		return false
	}
	bodyAST := luaast.NewBlock()
	if t.Continue.To != header {
		for _, blk := range body {
			if blk == header {
				continue
			}
			for _, s := range blk.Statements {
				bodyAST.Append(s)
			}
		}
	}
	forStmt := &luaast.GenericFor{
		ResLocals: t.ResLocals,
		Exprs:     []luaast.RValue{t.Iterator, t.State, t.Control},
		Body:      bodyAST,
	}
	header.Statements = append(header.Statements, forStmt)
	cfg.RemoveEdge(header, t.Continue.To)
	cfg.RemoveEdge(header, t.Exit.To)
	header.Terminator = &cfg.Jump{Edge: t.Exit}
	cfg.AddEdge(header, t.Exit)
	if t.Continue.To != header {
		for _, blk := range body {
			if blk == header {
				continue
			}
			for _, e := range blk.Successors() {
				cfg.RemoveEdge(blk, e.To)
			}
			fn.RemoveBlock(blk)
		}
	}
	return true
}

package cfg

// Dominators is the result of a dominance computation over a Function: the
// immediate-dominator tree plus, lazily, the dominance frontier that SSA
// construction needs to place phi nodes.
type Dominators struct {
	fn    *Function
	rpo   []*BasicBlock
	index map[*BasicBlock]int
	idom  map[*BasicBlock]*BasicBlock
}

// Compute builds the dominator tree of fn using the Cooper/Harvey/Kennedy
// iterative algorithm: a fixed point over reverse-postorder is simpler to
// get right than classic Lengauer-Tarjan and is plenty fast for
// function-sized graphs.
func Compute(fn *Function) *Dominators {
	rpo := fn.ReversePostorder()
	index := make(map[*BasicBlock]int, len(rpo))
	for i, b := range rpo {
		index[b] = i
	}

	idom := make(map[*BasicBlock]*BasicBlock, len(rpo))
	idom[fn.Entry] = fn.Entry

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == fn.Entry {
				continue
			}
			var newIdom *BasicBlock
			for _, p := range b.Predecessors {
				if idom[p] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = intersect(idom, index, newIdom, p)
			}
			if newIdom != nil && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	delete(idom, fn.Entry) // entry has no strict dominator; it maps to itself below, and IDom, Dominates and Children special-case it
	idom[fn.Entry] = fn.Entry

	return &Dominators{fn: fn, rpo: rpo, index: index, idom: idom}
}

func intersect(idom map[*BasicBlock]*BasicBlock, index map[*BasicBlock]int, a, b *BasicBlock) *BasicBlock {
	for a != b {
		for index[a] > index[b] {
			a = idom[a]
		}
		for index[b] > index[a] {
			b = idom[b]
		}
	}
	return a
}

// IDom returns b's immediate dominator, or nil for the entry block.
func (d *Dominators) IDom(b *BasicBlock) *BasicBlock {
	if b == d.fn.Entry {
		return nil
	}
	return d.idom[b]
}

// Dominates reports whether a dominates b (every path from the entry to b
// passes through a). A block always dominates itself.
func (d *Dominators) Dominates(a, b *BasicBlock) bool {
	for cur := b; ; {
		if cur == a {
			return true
		}
		if cur == d.fn.Entry {
			return cur == a
		}
		cur = d.idom[cur]
	}
}

// StrictlyDominates reports a dominates b and a != b.
func (d *Dominators) StrictlyDominates(a, b *BasicBlock) bool {
	return a != b && d.Dominates(a, b)
}

// Children returns the blocks whose immediate dominator is b, i.e. b's
// children in the dominator tree.
func (d *Dominators) Children(b *BasicBlock) []*BasicBlock {
	var out []*BasicBlock
	for _, cand := range d.rpo {
		if cand != d.fn.Entry && d.idom[cand] == b {
			out = append(out, cand)
		}
	}
	return out
}

// Frontier computes the dominance frontier of every block: the set of
// blocks where b's dominance "stops", i.e. where a definition in b would
// need a phi node. Computed on demand since only SSA construction needs it.
func (d *Dominators) Frontier() map[*BasicBlock]map[*BasicBlock]struct{} {
	df := make(map[*BasicBlock]map[*BasicBlock]struct{}, len(d.rpo))
	for _, b := range d.rpo {
		df[b] = map[*BasicBlock]struct{}{}
	}
	for _, b := range d.rpo {
		if len(b.Predecessors) < 2 {
			continue
		}
		for _, p := range b.Predecessors {
			runner := p
			for runner != d.idom[b] && runner != nil {
				df[runner][b] = struct{}{}
				if runner == d.fn.Entry && d.idom[b] != d.fn.Entry {
					// Entry has no idom of its own; stop once we've recorded it.
					break
				}
				next := d.idom[runner]
				if next == runner {
					break
				}
				runner = next
			}
		}
	}
	return df
}

// ReversePostorder exposes the iteration order Compute used, so callers that
// need to walk the dominator tree top-down can reuse it instead of
// recomputing.
func (d *Dominators) ReversePostorder() []*BasicBlock { return d.rpo }

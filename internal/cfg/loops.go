package cfg

// BackEdge is a CFG edge from a block to one of its own dominators,
// indicating a loop.
type BackEdge struct {
	From, Header *BasicBlock
}

// FindBackEdges scans every edge in fn and returns the ones whose target
// dominates their source.
func FindBackEdges(fn *Function, doms *Dominators) []BackEdge {
	var out []BackEdge
	for _, b := range fn.Blocks {
		for _, e := range b.Successors() {
			if doms.Dominates(e.To, b) {
				out = append(out, BackEdge{From: b, Header: e.To})
			}
		}
	}
	return out
}

// NaturalLoopBlocks returns the natural loop owning the back edge from latch
// to header: header itself, plus every block that can reach latch by walking
// predecessors without crossing back through header. Standard construction
// (Aho/Sethi/Ullman): header is always a member even though the walk never
// steps through it, since header is where the loop is entered and tested.
func NaturalLoopBlocks(header, latch *BasicBlock) map[*BasicBlock]bool {
	body := map[*BasicBlock]bool{header: true}
	if latch == header {
		return body
	}
	stack := []*BasicBlock{latch}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if body[b] {
			continue
		}
		body[b] = true
		for _, p := range b.Predecessors {
			if !body[p] {
				stack = append(stack, p)
			}
		}
	}
	return body
}

package luaast

import "github.com/sasha-s/go-deadlock"

// Block is an ordered sequence of statements. A Block nested inside a
// statement (an if-arm, a loop body) is reference-shared and guarded by a
// mutex so that top-down passes can recurse into it and mutate in place
// without cloning the subtree; per the single-threaded pipeline model the
// lock is never contended, it exists purely as an interior-mutability
// token. The invariant passes must preserve: never hold the lock on two
// blocks that lie on the same root-to-leaf path at once. Every method here
// is self-contained (lock taken and released within the call), so a
// recursive pass naturally satisfies that invariant as long as it doesn't
// hold a borrowed slice across a recursive call into a child block.
//
// deadlock.Mutex is a drop-in for sync.Mutex that detects lock-ordering
// cycles instead of hanging on one, which is exactly the failure mode the
// single-lock-at-a-time invariant above exists to rule out.
type Block struct {
	mu    deadlock.Mutex
	stmts []Statement
}

// NewBlock builds a block from an initial statement list.
func NewBlock(stmts ...Statement) *Block {
	return &Block{stmts: stmts}
}

// Len returns the number of statements currently in the block.
func (b *Block) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.stmts)
}

// At returns the statement at index i.
func (b *Block) At(i int) Statement {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stmts[i]
}

// Set replaces the statement at index i.
func (b *Block) Set(i int, s Statement) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stmts[i] = s
}

// Insert inserts s at index i, shifting later statements right.
func (b *Block) Insert(i int, s Statement) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stmts = append(b.stmts, nil)
	copy(b.stmts[i+1:], b.stmts[i:])
	b.stmts[i] = s
}

// Remove deletes the statement at index i.
func (b *Block) Remove(i int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stmts = append(b.stmts[:i], b.stmts[i+1:]...)
}

// Append adds s to the end of the block.
func (b *Block) Append(s Statement) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stmts = append(b.stmts, s)
}

// Prepend adds s to the front of the block.
func (b *Block) Prepend(s Statement) {
	b.Insert(0, s)
}

// Statements returns a snapshot copy of the statement list. Passes that need
// to iterate while the block might be mutated by a nested recursive call
// should snapshot first and index into the live block by position, not hold
// the snapshot's elements as the source of truth after recursing.
func (b *Block) Statements() []Statement {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Statement, len(b.stmts))
	copy(out, b.stmts)
	return out
}

// ReplaceAll swaps the entire statement list.
func (b *Block) ReplaceAll(stmts []Statement) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stmts = stmts
}

// IsEmpty reports whether the block has no statements.
func (b *Block) IsEmpty() bool {
	return b.Len() == 0
}

package luaast

import "medal/internal/local"

// Function is the AST-level function tree: the shape the pretty-printer and
// the outer decompile pipeline consume and produce at module scope.
type Function struct {
	Parameters []*local.Local
	IsVariadic bool
	Body       *Block
}

// NewFunction builds an empty function with the given parameters.
func NewFunction(params []*local.Local, variadic bool) *Function {
	return &Function{
		Parameters: params,
		IsVariadic: variadic,
		Body:       NewBlock(),
	}
}

// Walk visits every statement in b, recursing into nested blocks in AST
// order. It does not enter the bodies of closures. The visitor may mutate the statement in place via the block's Set method; Walk
// itself only reads.
func Walk(b *Block, visit func(Statement)) {
	for _, s := range b.Statements() {
		visit(s)
		for _, sub := range s.SubBlocks() {
			Walk(sub, visit)
		}
	}
}

// WalkClosures calls visit for every Closure RValue reachable from b's
// statements and nested blocks, including ones nested inside other
// expressions; closures inside another closure's body are not visited. It does not descend
// into a closure's own body automatically; visit is responsible for that if
// it wants deep recursion (most callers pair this with a second Walk call
// on closure.Function.Body).
func WalkClosures(b *Block, visit func(*Closure)) {
	Walk(b, func(s Statement) {
		for _, rv := range s.RValues() {
			walkRValueClosures(*rv, visit)
		}
	})
}

func walkRValueClosures(v RValue, visit func(*Closure)) {
	if v == nil {
		return
	}
	if c, ok := v.(*Closure); ok {
		visit(c)
	}
	for _, child := range v.RValues() {
		walkRValueClosures(*child, visit)
	}
}

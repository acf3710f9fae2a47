// Package gotoguard is C8: the final assertion that a decompiled function
// tree contains no residual goto or label statement. Structuring (C4) only
// ever surfaces these for a region it could not reduce; reaching this guard
// with one present means the input's control flow was genuinely
// irreducible, which is a fatal, reportable condition rather than something
// to paper over.
package gotoguard

import (
	"medal/internal/luaast"
	"medal/internal/pipelineerr"
)

// Check walks fn's entire tree, including every nested closure, and returns
// a pipelineerr.Error of KindStructuringIncomplete naming the first Goto or
// Label statement found, or nil if the tree is fully structured.
func Check(fn *luaast.Function) error {
	return checkBlock(fn.Body)
}

func checkBlock(b *luaast.Block) error {
	var err error
	luaast.Walk(b, func(s luaast.Statement) {
		if err != nil {
			return
		}
		switch n := s.(type) {
		case *luaast.Goto:
			err = pipelineerr.New(pipelineerr.KindStructuringIncomplete, "unresolved goto %q survived structuring", n.Label)
		case *luaast.Label:
			err = pipelineerr.New(pipelineerr.KindStructuringIncomplete, "unresolved label %q survived structuring", n.Name)
		}
	})
	if err != nil {
		return err
	}
	var closureErr error
	luaast.WalkClosures(b, func(c *luaast.Closure) {
		if closureErr != nil {
			return
		}
		closureErr = checkBlock(c.Function.Body)
	})
	return closureErr
}

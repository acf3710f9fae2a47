// Package lifter defines the boundary contract between the core pipeline
// and the bytecode parser / per-instruction lifter, both explicitly out of
// scope for this module: "bytecode parsing into instructions [and] the
// initial per-instruction lifter that produces the CFG" are external
// collaborators invoked by a thin adapter. This package specifies only the
// shape the core consumes, so internal/decompiler can be wired against any
// concrete Lua 5.1 / Luau front-end that implements Lifter without the core
// knowing anything about opcodes.
package lifter

import (
	"medal/internal/cfg"
	"medal/internal/local"
	"medal/internal/luaast"
	"medal/internal/pipelineerr"
)

// Unit is one lifted source function: its control-flow graph (already in
// the three-address instruction form C1 describes) plus its ordered
// inbound upvalue list. The chunk's top-level function is a Unit with no
// upvalues.
//
// Target is the AST function shell the decompiler populates once it has
// finished this unit's pipeline. For Main it is an empty *luaast.Function
// the driver allocates; for a nested function it is the very
// *luaast.Function already referenced by the enclosing unit's
// luaast.Closure RValue, so writing into it (Parameters, IsVariadic, Body)
// makes the finished body visible through every place that already holds a
// pointer to it — mirroring the original's Arc<Mutex<ast::Function>>
// placeholder shared between the lifter and the per-unit pipeline runs.
type Unit struct {
	CFG        *cfg.Function
	UpvaluesIn []*local.Local
	Target     *luaast.Function
}

// Program is every function lifted from one compiled chunk, with Main
// identifying the chunk's entry function (matching lua51-lifter's
// convention of pushing nested functions first and reversing so the main
// chunk function ends up first).
type Program struct {
	Main      *Unit
	Functions []*Unit
}

// Lifter turns a compiled bytecode chunk into a Program the pipeline can
// run SSA construction over. The core never implements this itself; it is
// supplied by whatever bytecode-parsing adapter a caller wires in (a Lua
// 5.1 deserializer, a Luau deserializer, or a test fixture that builds a
// cfg.Function by hand).
type Lifter interface {
	Lift(bytecode []byte) (*Program, error)
}

// Unimplemented is the zero-value Lifter the CLI and HTTP entry points wire
// in until a real Lua 5.1 / Luau bytecode deserializer is plugged in at
// this seam. It always fails with KindBytecodeParse, the same error kind a
// real lifter would use for a malformed chunk, so callers of Decompile
// don't need to special-case "no front-end configured".
type Unimplemented struct{}

func (Unimplemented) Lift([]byte) (*Program, error) {
	return nil, pipelineerr.New(pipelineerr.KindBytecodeParse, "no bytecode lifter is wired in")
}

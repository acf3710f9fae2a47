// Package decompiler is the orchestrator: it drives every core stage
// (C2-C8) over a lifter.Program and hands the result to a printer. It is
// the one place that knows the full pipeline order; every stage package
// (ssa, restructure, cleanup, gotoguard) is usable independently of it.
package decompiler

import (
	"github.com/segmentio/ksuid"
	"golang.org/x/sync/errgroup"

	"medal/internal/cfg"
	"medal/internal/cleanup"
	"medal/internal/gotoguard"
	"medal/internal/lifter"
	"medal/internal/local"
	"medal/internal/pipelineerr"
	"medal/internal/printer"
	"medal/internal/restructure"
	"medal/internal/ssa"
)

// maxStructuringPasses bounds the C3<->C4 fixed-point loop. Spec guarantees
// termination via a strictly decreasing well-founded measure (block + edge +
// SSA-def count); this is a defensive backstop against a measure-breaking
// bug in one of the passes, not a real limit any well-formed function
// should approach.
const maxStructuringPasses = 10000

// Pipeline runs the full core over lifted programs. It holds no state
// between calls; a Pipeline value is safe to reuse or share, since every
// decompile only touches the lifter.Program passed to it (spec.md's
// concurrency model: no state shared between concurrent decompiles).
type Pipeline struct{}

// New builds a Pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

// Decompile runs the program through every core stage and returns the
// fully printed Lua source of its main function, with every nested closure
// inlined into the tree via its luaast.Closure.
func (p *Pipeline) Decompile(prog *lifter.Program) (string, error) {
	requestID := ksuid.New().String()

	// Every unit's CFG, locals, and AST subtree are disjoint from every
	// other unit's until NameLocals/gotoguard walk the assembled tree
	// below, so the per-unit structuring passes can run concurrently
	// (spec.md §5: "no state is shared between concurrent decompiles").
	var g errgroup.Group
	for _, unit := range prog.Functions {
		unit := unit
		g.Go(func() error { return p.decompileUnit(unit, requestID) })
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	if err := gotoguard.Check(prog.Main.Target); err != nil {
		return "", err
	}
	cleanup.NameLocals(prog.Main.Target, true)

	return printer.Print(prog.Main.Target), nil
}

// decompileUnit runs C2-C7's structuring and declaration passes over a
// single lifted function, leaving the result in unit.Target. Naming (C7's
// last pass) and the goto guard (C8) run once globally, in Decompile, after
// every unit (including every nested closure) has reached structured form
// — naming needs the final local set, and closures embedded inside one
// unit's tree are only reachable for the guard once every unit's Target has
// been populated.
func (p *Pipeline) decompileUnit(unit *lifter.Unit, requestID string) error {
	fn := unit.CFG

	result, err := ssa.Construct(fn)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindMalformedCFG, err, "request %s", requestID)
	}

	for i := 0; i < maxStructuringPasses; i++ {
		progressed := ssa.StructureJumps(fn)
		progressed = ssa.Inline(fn) || progressed
		progressed = ssa.StructureConditionals(fn) || progressed
		progressed = ssa.PruneTrivialPhis(fn) || progressed
		if !progressed {
			break
		}
	}

	ssa.Destruct(fn, result)

	body := restructure.Lift(fn)
	cleanup.DeclareLocals(body, externalLocals(fn))
	cleanup.CombineNestedIfs(body)

	unit.Target.Parameters = fn.Parameters
	unit.Target.IsVariadic = fn.IsVariadic
	unit.Target.Body = body
	return nil
}

// externalLocals is the set of locals already bound on entry to fn — its
// parameters and inbound upvalues — which DeclareLocals must never mark as
// a fresh declaration.
func externalLocals(fn *cfg.Function) local.Set {
	s := local.NewSet()
	s.Union(local.NewSet(fn.Parameters...))
	s.Union(local.NewSet(fn.UpvaluesIn...))
	return s
}

package cfg

import "medal/internal/luaast"

// RValues returns pointers to a terminator's directly-owned expressions, the
// terminator-side analogue of luaast.Statement.RValues: SSA renaming and the
// inliner use it to rewrite operands in place without a type switch at every
// call site.
type rvalueHolder interface {
	RValues() []*luaast.RValue
}

func (j *Jump) RValues() []*luaast.RValue { return nil }

func (b *Branch) RValues() []*luaast.RValue { return []*luaast.RValue{&b.Condition} }

func (r *Return) RValues() []*luaast.RValue {
	out := make([]*luaast.RValue, len(r.Values))
	for i := range r.Values {
		out[i] = &r.Values[i]
	}
	return out
}

func (n *NumericForLoop) RValues() []*luaast.RValue {
	return []*luaast.RValue{&n.Start, &n.Limit, &n.Step}
}

func (g *GenericForLoop) RValues() []*luaast.RValue {
	return []*luaast.RValue{&g.Iterator, &g.State, &g.Control}
}

// TerminatorRValues dispatches to the concrete terminator's RValues, or nil
// for a terminator type that owns none.
func TerminatorRValues(t Terminator) []*luaast.RValue {
	if h, ok := t.(rvalueHolder); ok {
		return h.RValues()
	}
	return nil
}

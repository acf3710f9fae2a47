// Package luaast is the structured abstract syntax tree the pipeline builds
// towards: RValue expressions, Statement variants, and Block containers of
// statements. It is the output of C6 (restructure.Lift), the input and
// output of C7 (cleanup), and the input of C8 (gotoguard) and C9 (the
// pretty-printer).
//
// Every polymorphic node is a tagged sum implemented as a Go interface with
// a small closed set of concrete pointer types, mirroring the Rust source's
// RValue/Statement enums: passes either exhaustively switch on the concrete
// type or traverse children uniformly through RValues/SubBlocks.
package luaast

import "medal/internal/local"

// RValue is any expression that produces a value (or, for calls/varargs, a
// variable-arity list of values).
type RValue interface {
	// RValues returns pointers to this node's direct child expressions, so a
	// pass can mutate a child in place via *ptr = replacement without the
	// node knowing how it itself is laid out.
	RValues() []*RValue
	isRValue()
}

// LiteralKind tags the payload carried by a Literal node.
type LiteralKind int

const (
	LiteralNil LiteralKind = iota
	LiteralBool
	LiteralNumber
	LiteralString
)

// Literal is a constant nil, boolean, number, or string-bytes value.
type Literal struct {
	Kind LiteralKind
	Bool bool
	Num  float64
	Str  []byte
}

func (*Literal) isRValue()            {}
func (*Literal) RValues() []*RValue   { return nil }

// LocalRead reads the current value of a local.
type LocalRead struct {
	Local *local.Local
}

func (*LocalRead) isRValue()          {}
func (*LocalRead) RValues() []*RValue { return nil }

// ValuesRead implements LocalReader for a bare local read.
func (l *LocalRead) ValuesRead() []*local.Local { return []*local.Local{l.Local} }

// Global reads or is the target of an assignment to a global variable.
type Global struct {
	Name string
}

func (*Global) isRValue()          {}
func (*Global) RValues() []*RValue { return nil }

// Index is a dynamic `base[key]` access.
type Index struct {
	Base RValue
	Key  RValue
}

func (x *Index) isRValue() {}
func (x *Index) RValues() []*RValue {
	return []*RValue{&x.Base, &x.Key}
}

// Field is a static `base.name` access, the common case of Index where the
// key is a literal string that the printer renders with dot syntax.
type Field struct {
	Base RValue
	Name string
}

func (x *Field) isRValue() {}
func (x *Field) RValues() []*RValue {
	return []*RValue{&x.Base}
}

// Call is `fn(args...)`.
type Call struct {
	Fn   RValue
	Args []RValue
}

func (x *Call) isRValue() {}
func (x *Call) RValues() []*RValue {
	out := make([]*RValue, 0, len(x.Args)+1)
	out = append(out, &x.Fn)
	for i := range x.Args {
		out = append(out, &x.Args[i])
	}
	return out
}

// MethodCall is `base:method(args...)`, i.e. Lua's `self`-passing call.
type MethodCall struct {
	Base   RValue
	Method string
	Args   []RValue
}

func (x *MethodCall) isRValue() {}
func (x *MethodCall) RValues() []*RValue {
	out := make([]*RValue, 0, len(x.Args)+1)
	out = append(out, &x.Base)
	for i := range x.Args {
		out = append(out, &x.Args[i])
	}
	return out
}

// BinaryOp is a two-operand arithmetic, comparison, concat, or logical
// ("and"/"or") operator.
type BinaryOp struct {
	Op    string
	Left  RValue
	Right RValue
}

func (x *BinaryOp) isRValue() {}
func (x *BinaryOp) RValues() []*RValue {
	return []*RValue{&x.Left, &x.Right}
}

// UnaryOp is a single-operand operator: "-", "not", "#".
type UnaryOp struct {
	Op      string
	Operand RValue
}

func (x *UnaryOp) isRValue() {}
func (x *UnaryOp) RValues() []*RValue {
	return []*RValue{&x.Operand}
}

// Closure is a nested function expression. It owns its own Function tree and
// an ordered list of upvalue bindings into the enclosing frame.
type Closure struct {
	Function *Function
	Upvalues []local.Upvalue
}

func (*Closure) isRValue()          {}
func (*Closure) RValues() []*RValue { return nil }

// Varargs is Lua's `...` expression.
type Varargs struct{}

func (*Varargs) isRValue()          {}
func (*Varargs) RValues() []*RValue { return nil }

// TableField is one entry of a table constructor: either positional
// (Key == nil) or keyed (`[Key] = Value` / `Name = Value`).
type TableField struct {
	Key   RValue // nil for array-style entries
	Name  string // set instead of Key for `name = value` syntax
	Value RValue
}

// TableConstructor is a `{ ... }` literal.
type TableConstructor struct {
	Fields []TableField
}

func (x *TableConstructor) isRValue() {}
func (x *TableConstructor) RValues() []*RValue {
	out := make([]*RValue, 0, len(x.Fields)*2)
	for i := range x.Fields {
		if x.Fields[i].Key != nil {
			out = append(out, &x.Fields[i].Key)
		}
		out = append(out, &x.Fields[i].Value)
	}
	return out
}

// LocalReader is implemented by any node that reads one or more locals
// directly (as opposed to through a child RValue, which is walked via
// RValues instead). Used by the inliner and the declaration-placement pass
// to find use sites without a full expression-tree walk.
type LocalReader interface {
	ValuesRead() []*local.Local
}

// HasSideEffects classifies an RValue per the conservative rule in the
// specification: calls and method-calls are side-effecting outright; index
// reads (dynamic Index and static Field alike) are treated as
// side-effecting unconditionally because the base
// table may alias arbitrary other state (no alias analysis is attempted);
// everything else is pure if its children are pure.
func HasSideEffects(v RValue) bool {
	switch n := v.(type) {
	case *Call, *MethodCall, *Index, *Field:
		return true
	case *BinaryOp:
		return HasSideEffects(n.Left) || HasSideEffects(n.Right)
	case *UnaryOp:
		return HasSideEffects(n.Operand)
	case *TableConstructor:
		for _, f := range n.Fields {
			if f.Key != nil && HasSideEffects(f.Key) {
				return true
			}
			if HasSideEffects(f.Value) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ValuesRead collects every local directly or transitively read by an
// RValue, including through LocalReader leaves discovered during the walk.
func ValuesRead(v RValue) []*local.Local {
	var out []*local.Local
	var walk func(RValue)
	walk = func(n RValue) {
		if n == nil {
			return
		}
		if r, ok := n.(LocalReader); ok {
			out = append(out, r.ValuesRead()...)
		}
		for _, child := range n.RValues() {
			walk(*child)
		}
	}
	walk(v)
	return out
}

package luaast

import "medal/internal/local"

// Statement is any AST statement variant. Like RValue it is a closed tagged
// sum; passes either switch exhaustively or traverse generically through
// RValues/SubBlocks.
type Statement interface {
	// RValues returns pointers to every top-level expression this statement
	// directly owns (not reaching into nested blocks).
	RValues() []*RValue
	// SubBlocks returns the nested blocks this statement owns, for passes
	// that recurse structurally (cleanup, the goto guard, the printer).
	SubBlocks() []*Block
	isStatement()
}

// LValue is an assignment target: a local, a dynamic index, or a static
// field.
type LValue interface {
	isLValue()
	// AsLocal returns the target local if this LValue is a bare local,
	// otherwise (nil, false).
	AsLocal() (*local.Local, bool)
}

// LocalLValue assigns directly to a local.
type LocalLValue struct{ Local *local.Local }

func (*LocalLValue) isLValue() {}
func (l *LocalLValue) AsLocal() (*local.Local, bool) { return l.Local, true }

// IndexLValue assigns to `base[key]`.
type IndexLValue struct {
	Base RValue
	Key  RValue
}

func (*IndexLValue) isLValue()                     {}
func (*IndexLValue) AsLocal() (*local.Local, bool) { return nil, false }

// FieldLValue assigns to `base.name`.
type FieldLValue struct {
	Base RValue
	Name string
}

func (*FieldLValue) isLValue()                     {}
func (*FieldLValue) AsLocal() (*local.Local, bool) { return nil, false }

// Assign is a parallel, possibly multi-target/multi-source assignment.
// IsDeclaration is set by the local-declaration-placement cleanup pass when
// this is the first appearance of at least one of its local targets.
type Assign struct {
	Left          []LValue
	Right         []RValue
	IsDeclaration bool
}

func (*Assign) isStatement() {}
func (s *Assign) RValues() []*RValue {
	out := make([]*RValue, 0, len(s.Right)+2*len(s.Left))
	for i := range s.Right {
		out = append(out, &s.Right[i])
	}
	for i := range s.Left {
		switch lv := s.Left[i].(type) {
		case *IndexLValue:
			out = append(out, &lv.Base, &lv.Key)
		case *FieldLValue:
			out = append(out, &lv.Base)
		}
	}
	return out
}
func (s *Assign) SubBlocks() []*Block { return nil }

// If is `if Condition then Then [else Else] end`. Else is nil when there is
// no else arm (an if-without-else region); the printer omits the clause in
// that case.
type If struct {
	Condition RValue
	Then      *Block
	Else      *Block
}

func (*If) isStatement()        {}
func (s *If) RValues() []*RValue { return []*RValue{&s.Condition} }
func (s *If) SubBlocks() []*Block {
	if s.Else == nil {
		return []*Block{s.Then}
	}
	return []*Block{s.Then, s.Else}
}

// While is a head-tested loop: `while Condition do Body end`.
type While struct {
	Condition RValue
	Body      *Block
}

func (*While) isStatement()        {}
func (s *While) RValues() []*RValue { return []*RValue{&s.Condition} }
func (s *While) SubBlocks() []*Block { return []*Block{s.Body} }

// Repeat is a tail-tested loop: `repeat Body until Condition`.
type Repeat struct {
	Body      *Block
	Condition RValue
}

func (*Repeat) isStatement()        {}
func (s *Repeat) RValues() []*RValue { return []*RValue{&s.Condition} }
func (s *Repeat) SubBlocks() []*Block { return []*Block{s.Body} }

// NumericFor is `for Counter = Start, Limit[, Step] do Body end`.
type NumericFor struct {
	Counter *local.Local
	Start   RValue
	Limit   RValue
	Step    RValue // nil means the implicit step of 1
	Body    *Block
}

func (*NumericFor) isStatement() {}
func (s *NumericFor) RValues() []*RValue {
	out := []*RValue{&s.Start, &s.Limit}
	if s.Step != nil {
		out = append(out, &s.Step)
	}
	return out
}
func (s *NumericFor) SubBlocks() []*Block { return []*Block{s.Body} }

// GenericFor is `for ResLocals in Exprs do Body end`.
type GenericFor struct {
	ResLocals []*local.Local
	Exprs     []RValue
	Body      *Block
}

func (*GenericFor) isStatement() {}
func (s *GenericFor) RValues() []*RValue {
	out := make([]*RValue, len(s.Exprs))
	for i := range s.Exprs {
		out[i] = &s.Exprs[i]
	}
	return out
}
func (s *GenericFor) SubBlocks() []*Block { return []*Block{s.Body} }

// Return is `return Values...`.
type Return struct {
	Values []RValue
}

func (*Return) isStatement() {}
func (s *Return) RValues() []*RValue {
	out := make([]*RValue, len(s.Values))
	for i := range s.Values {
		out[i] = &s.Values[i]
	}
	return out
}
func (s *Return) SubBlocks() []*Block { return nil }

// Break is `break`.
type Break struct{}

func (*Break) isStatement()          {}
func (*Break) RValues() []*RValue    { return nil }
func (*Break) SubBlocks() []*Block   { return nil }

// Continue is a `continue` statement (Luau extension; the printer emits it
// as `continue` for every target).
type Continue struct{}

func (*Continue) isStatement()        {}
func (*Continue) RValues() []*RValue  { return nil }
func (*Continue) SubBlocks() []*Block { return nil }

// Goto and Label are residual unstructured control flow. Surfacing either
// one in the final tree is always a pipeline bug or irreducible input; C8
// exists solely to make that fatal instead of silently printable.
type Goto struct{ Label string }

func (*Goto) isStatement()        {}
func (*Goto) RValues() []*RValue  { return nil }
func (*Goto) SubBlocks() []*Block { return nil }

type Label struct{ Name string }

func (*Label) isStatement()        {}
func (*Label) RValues() []*RValue  { return nil }
func (*Label) SubBlocks() []*Block { return nil }

// SetList lowers Lua's SETLIST opcode family: assigning a contiguous run of
// array-part elements (plus an optional multi-value tail) into a table in
// one shot.
type SetList struct {
	Object *local.Local
	Index  int
	Values []RValue
	Tail   RValue // nil if there is no multi-value tail
}

func (*SetList) isStatement() {}
func (s *SetList) RValues() []*RValue {
	out := make([]*RValue, 0, len(s.Values)+1)
	for i := range s.Values {
		out = append(out, &s.Values[i])
	}
	if s.Tail != nil {
		out = append(out, &s.Tail)
	}
	return out
}
func (s *SetList) SubBlocks() []*Block { return nil }

// ExprStatement is a call or method-call used for its side effects, with its
// result(s) discarded.
type ExprStatement struct {
	Call RValue // *Call or *MethodCall
}

func (*ExprStatement) isStatement()       {}
func (s *ExprStatement) RValues() []*RValue { return []*RValue{&s.Call} }
func (s *ExprStatement) SubBlocks() []*Block { return nil }

// ValuesRead reports the locals read by the base (and, for IndexLValue, the
// key) of a non-local assignment target; mirrors LValue::values_read on the
// Rust source's IndexLValue/FieldLValue.
func (l *IndexLValue) ValuesRead() []*local.Local {
	return append(ValuesRead(l.Base), ValuesRead(l.Key)...)
}

func (l *FieldLValue) ValuesRead() []*local.Local {
	return ValuesRead(l.Base)
}

// ValuesWritten returns the locals directly written by a statement (not
// reached through a nested block). Used by the inliner's side-effect-free
// reordering check and the declaration-placement pass.
func ValuesWritten(s Statement) []*local.Local {
	switch n := s.(type) {
	case *Assign:
		var out []*local.Local
		for _, lv := range n.Left {
			if l, ok := lv.AsLocal(); ok {
				out = append(out, l)
			}
		}
		return out
	case *NumericFor:
		return []*local.Local{n.Counter}
	case *GenericFor:
		return append([]*local.Local{}, n.ResLocals...)
	default:
		return nil
	}
}

// StatementValuesRead returns every local read at this statement's own
// level, including inside owned LValues (index/field bases), but not inside
// nested blocks.
func StatementValuesRead(s Statement) []*local.Local {
	var out []*local.Local
	for _, rv := range s.RValues() {
		out = append(out, ValuesRead(*rv)...)
	}
	if a, ok := s.(*Assign); ok {
		for _, lv := range a.Left {
			if r, ok := lv.(LocalReader); ok {
				out = append(out, r.ValuesRead()...)
			}
		}
	}
	return out
}

package cleanup

import (
	"fmt"
	"unicode"

	"github.com/iancoleman/strcase"

	"medal/internal/local"
	"medal/internal/luaast"
)

// methodNameHints is the set of method-call names whose first string-literal
// argument makes a good variable name (`game:GetService("RunService")` →
// RunService), taken from the original fork's name_gen/name_locals.
var methodNameHints = map[string]bool{
	"GetService":      true,
	"WaitForChild":    true,
	"FindFirstChild":  true,
	"require":         true,
	"Clone":           true,
	"new":             true,
}

// Namer assigns display names to every local reachable from a function
// tree. Single-reference locals get "_"; everything else either takes a
// meaningful name derived from its initializer or a prefix-based fallback,
// made unique against every name handed out so far. Per the intended
// behavior recorded in the source's own open question, collisions are
// resolved with a running per-name counter rather than one global counter.
type Namer struct {
	rename bool
	reads  map[*local.Local]int
	used   map[string]int
	// upvalues is collected for parity with the original pass (which
	// builds this set before naming); nothing downstream of naming
	// currently consults it, but it documents which locals cross a
	// closure boundary for a future pass that might.
	upvalues local.Set
}

// NameLocals assigns names across fn's entire tree: its own parameters,
// then every local declared or introduced in its body, recursing into every
// nested closure's parameters and body in turn.
func NameLocals(fn *luaast.Function, rename bool) {
	n := &Namer{
		rename:   rename,
		reads:    countReads(fn),
		used:     map[string]int{},
		upvalues: local.NewSet(),
	}
	n.findUpvalues(fn.Body)
	for _, p := range fn.Parameters {
		n.nameLocal("param", p, nil)
	}
	n.nameBlock(fn.Body)
}

func countReads(fn *luaast.Function) map[*local.Local]int {
	counts := map[*local.Local]int{}
	var walkBlock func(b *luaast.Block)
	walkBlock = func(b *luaast.Block) {
		luaast.Walk(b, func(s luaast.Statement) {
			for _, l := range luaast.StatementValuesRead(s) {
				counts[l]++
			}
		})
		luaast.WalkClosures(b, func(c *luaast.Closure) {
			for _, uv := range c.Upvalues {
				counts[uv.Parent]++
			}
			walkBlock(c.Function.Body)
		})
	}
	walkBlock(fn.Body)
	return counts
}

func (n *Namer) findUpvalues(b *luaast.Block) {
	luaast.WalkClosures(b, func(c *luaast.Closure) {
		for _, uv := range c.Upvalues {
			n.upvalues.Add(uv.Parent)
		}
		n.findUpvalues(c.Function.Body)
	})
}

func (n *Namer) nameBlock(b *luaast.Block) {
	for _, s := range b.Statements() {
		for _, rv := range s.RValues() {
			n.nameClosuresIn(*rv)
		}
		switch st := s.(type) {
		case *luaast.Assign:
			if !st.IsDeclaration {
				continue
			}
			for idx, lv := range st.Left {
				l, ok := lv.AsLocal()
				if !ok {
					continue
				}
				var val luaast.RValue
				if idx < len(st.Right) {
					val = st.Right[idx]
				}
				n.nameLocal("var", l, val)
			}
		case *luaast.If:
			n.nameBlock(st.Then)
			if st.Else != nil {
				n.nameBlock(st.Else)
			}
		case *luaast.While:
			n.nameBlock(st.Body)
		case *luaast.Repeat:
			n.nameBlock(st.Body)
		case *luaast.NumericFor:
			n.nameLocal("index", st.Counter, nil)
			n.nameBlock(st.Body)
		case *luaast.GenericFor:
			for _, rl := range st.ResLocals {
				n.nameLocal("iter", rl, nil)
			}
			n.nameBlock(st.Body)
		}
	}
}

func (n *Namer) nameClosuresIn(v luaast.RValue) {
	if v == nil {
		return
	}
	if c, ok := v.(*luaast.Closure); ok {
		for _, p := range c.Function.Parameters {
			n.nameLocal("param", p, nil)
		}
		n.nameBlock(c.Function.Body)
		return
	}
	for _, child := range v.RValues() {
		n.nameClosuresIn(*child)
	}
}

func (n *Namer) nameLocal(prefix string, l *local.Local, value luaast.RValue) {
	if l.HasName() && !n.rename {
		return
	}
	if n.reads[l] <= 1 {
		l.SetName("_")
		return
	}
	if value != nil {
		if hint, ok := meaningfulName(value); ok {
			l.SetName(n.unique(hint))
			return
		}
	}
	base := "var"
	switch prefix {
	case "param":
		base = "arg"
	case "iter":
		base = "iter"
	case "index":
		base = "i"
	}
	l.SetName(n.unique(base))
}

// unique returns base the first time it is requested, and base_<n> (n = 2,
// 3, ...) on every later collision, tracked per distinct base string.
func (n *Namer) unique(base string) string {
	count := n.used[base]
	n.used[base] = count + 1
	if count == 0 {
		return base
	}
	return fmt.Sprintf("%s_%d", base, count+1)
}

// meaningfulName derives a name hint from the RValue a local is being
// initialized with: a tracked method call's first string-literal argument,
// a static index/field key, or (recursing) the base of a chained call.
func meaningfulName(value luaast.RValue) (string, bool) {
	switch v := value.(type) {
	case *luaast.MethodCall:
		if methodNameHints[v.Method] && len(v.Args) > 0 {
			if lit, ok := v.Args[0].(*luaast.Literal); ok && lit.Kind == luaast.LiteralString {
				return sanitizeName(string(lit.Str)), true
			}
		}
	case *luaast.Call:
		if field, ok := v.Fn.(*luaast.Field); ok && methodNameHints[field.Name] && len(v.Args) > 0 {
			if lit, ok := v.Args[0].(*luaast.Literal); ok && lit.Kind == luaast.LiteralString {
				return sanitizeName(string(lit.Str)), true
			}
		}
	case *luaast.Index:
		if lit, ok := v.Key.(*luaast.Literal); ok {
			switch lit.Kind {
			case luaast.LiteralString:
				return sanitizeName(string(lit.Str)), true
			case luaast.LiteralNumber:
				return sanitizeName(fmt.Sprintf("%v", lit.Num)), true
			}
		}
	case *luaast.Field:
		return sanitizeName(v.Name), true
	}
	return "", false
}

// sanitizeName folds a hint string into a valid Lua identifier fragment.
// strcase.ToCamel first merges any word separators the hint carries (so
// "Run Service" becomes "RunService" rather than "Run_Service"); what's
// left is filtered character-by-character the way the original fork does,
// replacing anything non-alphanumeric with "_" and prefixing a leading
// digit.
func sanitizeName(hint string) string {
	camel := strcase.ToCamel(hint)
	if camel == "" {
		camel = hint
	}
	out := make([]rune, 0, len(camel))
	for _, r := range camel {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			out = append(out, r)
		} else {
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "_"
	}
	if unicode.IsDigit(out[0]) {
		out = append([]rune{'_'}, out...)
	}
	return string(out)
}

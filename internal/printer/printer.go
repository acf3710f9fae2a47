// Package printer is C9: the pretty-printer that turns a cleaned-up AST into
// Lua source text. The core pipeline only relies on its contract (identifier
// names reproduced verbatim, declaration flags producing `local` prefixes,
// parallel assignments rendering as one multi-target statement, SetList
// rendering as either a table literal or a `__set_list` sentinel call); this
// package is one concrete implementation of that contract, grounded on the
// original fork's Display impls (ast/src/set_list.rs in particular).
package printer

import (
	"fmt"
	"strconv"
	"strings"

	"medal/internal/local"
	"medal/internal/luaast"
)

const indentUnit = "    "

// Print renders fn as Lua source text.
func Print(fn *luaast.Function) string {
	var b strings.Builder
	p := &printer{out: &b}
	p.functionBody(fn, 0)
	return b.String()
}

type printer struct {
	out *strings.Builder
}

func (p *printer) writeIndent(level int) {
	p.out.WriteString(strings.Repeat(indentUnit, level))
}

func (p *printer) functionBody(fn *luaast.Function, level int) {
	for _, s := range fn.Body.Statements() {
		p.statement(s, level)
	}
}

func localName(l *local.Local) string {
	if l == nil {
		return "nil"
	}
	return l.String()
}

func (p *printer) statement(s luaast.Statement, level int) {
	p.writeIndent(level)
	switch n := s.(type) {
	case *luaast.Assign:
		p.assign(n)
		p.out.WriteString("\n")
	case *luaast.If:
		p.ifStmt(n, level)
	case *luaast.While:
		fmt.Fprintf(p.out, "while %s do\n", p.expr(n.Condition))
		p.block(n.Body, level+1)
		p.writeIndent(level)
		p.out.WriteString("end\n")
	case *luaast.Repeat:
		p.out.WriteString("repeat\n")
		p.block(n.Body, level+1)
		p.writeIndent(level)
		fmt.Fprintf(p.out, "until %s\n", p.expr(n.Condition))
	case *luaast.NumericFor:
		p.numericFor(n, level)
	case *luaast.GenericFor:
		p.genericFor(n, level)
	case *luaast.Return:
		if len(n.Values) == 0 {
			p.out.WriteString("return\n")
		} else {
			fmt.Fprintf(p.out, "return %s\n", p.exprList(n.Values))
		}
	case *luaast.Break:
		p.out.WriteString("break\n")
	case *luaast.Continue:
		p.out.WriteString("continue\n")
	case *luaast.Goto:
		fmt.Fprintf(p.out, "goto %s\n", n.Label)
	case *luaast.Label:
		fmt.Fprintf(p.out, "::%s::\n", n.Name)
	case *luaast.SetList:
		p.setList(n)
	case *luaast.ExprStatement:
		fmt.Fprintf(p.out, "%s\n", p.expr(n.Call))
	default:
		fmt.Fprintf(p.out, "--[[ unknown statement %T ]]\n", n)
	}
}

func (p *printer) assign(n *luaast.Assign) {
	var left []string
	for _, lv := range n.Left {
		left = append(left, p.lvalue(lv))
	}
	prefix := ""
	if n.IsDeclaration {
		prefix = "local "
	}
	fmt.Fprintf(p.out, "%s%s = %s", prefix, strings.Join(left, ", "), p.exprList(n.Right))
}

func (p *printer) lvalue(lv luaast.LValue) string {
	switch n := lv.(type) {
	case *luaast.LocalLValue:
		return localName(n.Local)
	case *luaast.IndexLValue:
		return fmt.Sprintf("%s[%s]", p.expr(n.Base), p.expr(n.Key))
	case *luaast.FieldLValue:
		return fmt.Sprintf("%s.%s", p.expr(n.Base), n.Name)
	default:
		return "?"
	}
}

func (p *printer) ifStmt(n *luaast.If, level int) {
	fmt.Fprintf(p.out, "if %s then\n", p.expr(n.Condition))
	p.block(n.Then, level+1)
	if n.Else != nil && !n.Else.IsEmpty() {
		p.writeIndent(level)
		p.out.WriteString("else\n")
		p.block(n.Else, level+1)
	}
	p.writeIndent(level)
	p.out.WriteString("end\n")
}

func (p *printer) numericFor(n *luaast.NumericFor, level int) {
	if n.Step != nil {
		fmt.Fprintf(p.out, "for %s = %s, %s, %s do\n", localName(n.Counter), p.expr(n.Start), p.expr(n.Limit), p.expr(n.Step))
	} else {
		fmt.Fprintf(p.out, "for %s = %s, %s do\n", localName(n.Counter), p.expr(n.Start), p.expr(n.Limit))
	}
	p.block(n.Body, level+1)
	p.writeIndent(level)
	p.out.WriteString("end\n")
}

func (p *printer) genericFor(n *luaast.GenericFor, level int) {
	names := make([]string, len(n.ResLocals))
	for i, l := range n.ResLocals {
		names[i] = localName(l)
	}
	fmt.Fprintf(p.out, "for %s in %s do\n", strings.Join(names, ", "), p.exprList(n.Exprs))
	p.block(n.Body, level+1)
	p.writeIndent(level)
	p.out.WriteString("end\n")
}

// setList renders the lowering of Lua's SETLIST opcode family: when every
// value is a table constructor and there is no multi-value tail, it folds
// to a plain table literal; otherwise it falls back to a `__set_list`
// sentinel call the caller is expected to supply at runtime, with a comment
// distinguishing "nothing to warn about, just unfoldable" from "a
// non-table value snuck into this set_list" (ast/src/set_list.rs).
func (p *printer) setList(n *luaast.SetList) {
	allTables := n.Tail == nil
	hasNonTable := false
	for _, v := range n.Values {
		if _, ok := v.(*luaast.TableConstructor); !ok {
			allTables = false
			hasNonTable = true
		}
	}
	if allTables {
		fmt.Fprintf(p.out, "local %s = {%s}\n", localName(n.Object), p.exprList(n.Values))
		return
	}
	args := append([]luaast.RValue{}, n.Values...)
	if n.Tail != nil {
		args = append(args, n.Tail)
	}
	comment := " -- set the table your self"
	if hasNonTable {
		comment = " -- WARNING: non-table value in set_list!"
	}
	fmt.Fprintf(p.out, "local %s = __set_list(%d, %s)%s\n", localName(n.Object), n.Index, p.exprList(args), comment)
}

func (p *printer) block(b *luaast.Block, level int) {
	for _, s := range b.Statements() {
		p.statement(s, level)
	}
}

func (p *printer) exprList(vs []luaast.RValue) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = p.expr(v)
	}
	return strings.Join(parts, ", ")
}

func (p *printer) expr(v luaast.RValue) string {
	switch n := v.(type) {
	case nil:
		return "nil"
	case *luaast.Literal:
		return p.literal(n)
	case *luaast.LocalRead:
		return localName(n.Local)
	case *luaast.Global:
		return n.Name
	case *luaast.Index:
		return fmt.Sprintf("%s[%s]", p.expr(n.Base), p.expr(n.Key))
	case *luaast.Field:
		return fmt.Sprintf("%s.%s", p.expr(n.Base), n.Name)
	case *luaast.Call:
		return fmt.Sprintf("%s(%s)", p.expr(n.Fn), p.exprList(n.Args))
	case *luaast.MethodCall:
		return fmt.Sprintf("%s:%s(%s)", p.expr(n.Base), n.Method, p.exprList(n.Args))
	case *luaast.BinaryOp:
		return fmt.Sprintf("(%s %s %s)", p.expr(n.Left), n.Op, p.expr(n.Right))
	case *luaast.UnaryOp:
		if n.Op == "not" {
			return fmt.Sprintf("(not %s)", p.expr(n.Operand))
		}
		return fmt.Sprintf("(%s%s)", n.Op, p.expr(n.Operand))
	case *luaast.Closure:
		return p.closure(n)
	case *luaast.Varargs:
		return "..."
	case *luaast.TableConstructor:
		return p.tableConstructor(n)
	default:
		return fmt.Sprintf("--[[ unknown rvalue %T ]]", n)
	}
}

func (p *printer) literal(n *luaast.Literal) string {
	switch n.Kind {
	case luaast.LiteralNil:
		return "nil"
	case luaast.LiteralBool:
		if n.Bool {
			return "true"
		}
		return "false"
	case luaast.LiteralNumber:
		return strconv.FormatFloat(n.Num, 'g', -1, 64)
	case luaast.LiteralString:
		return strconv.Quote(string(n.Str))
	default:
		return "nil"
	}
}

func (p *printer) closure(n *luaast.Closure) string {
	names := make([]string, len(n.Function.Parameters))
	for i, l := range n.Function.Parameters {
		names[i] = localName(l)
	}
	if n.Function.IsVariadic {
		names = append(names, "...")
	}
	var body strings.Builder
	inner := &printer{out: &body}
	inner.functionBody(n.Function, 1)
	return fmt.Sprintf("function(%s)\n%send", strings.Join(names, ", "), body.String())
}

func (p *printer) tableConstructor(n *luaast.TableConstructor) string {
	parts := make([]string, len(n.Fields))
	for i, f := range n.Fields {
		switch {
		case f.Key != nil:
			parts[i] = fmt.Sprintf("[%s] = %s", p.expr(f.Key), p.expr(f.Value))
		case f.Name != "":
			parts[i] = fmt.Sprintf("%s = %s", f.Name, p.expr(f.Value))
		default:
			parts[i] = p.expr(f.Value)
		}
	}
	return fmt.Sprintf("{%s}", strings.Join(parts, ", "))
}

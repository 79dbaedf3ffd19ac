// Package pyfront turns Python source text into the langast tree the
// pipeline stages consume. It is a thin adapter over a tree-sitter
// parse, not a parser: grammar questions are answered by the
// tree-sitter-python grammar, and this package only maps the concrete
// syntax nodes onto langast shapes.
package pyfront

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/viant/aardwolf/langast"
)

// Parser converts Python source into a langast.Module.
type Parser struct {
	source []byte
}

// NewParser creates a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile reads and parses a Python source file.
func (p *Parser) ParseFile(filename string) (*langast.Module, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return p.ParseSource(src, filename)
}

// ParseSource parses Python source from a byte slice.
func (p *Parser) ParseSource(src []byte, filename string) (*langast.Module, error) {
	p.source = src

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("syntax error in %s", filename)
	}

	mod := &langast.Module{Filename: filename}
	mod.Body = p.convertBlock(root)
	return mod, nil
}

func (p *Parser) text(n *sitter.Node) string {
	return n.Content(p.source)
}

func (p *Parser) base(n *sitter.Node) langast.Base {
	start := n.StartPoint()
	end := n.EndPoint()
	return langast.NewSpan(
		langast.NewPos(int(start.Row)+1, int(start.Column)+1),
		langast.NewPos(int(end.Row)+1, int(end.Column)+1),
	)
}

// convertBlock maps the named children of a block/module node, skipping
// nodes with no langast counterpart (comments, pass, global).
func (p *Parser) convertBlock(n *sitter.Node) []langast.Stmt {
	var out []langast.Stmt
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		out = append(out, p.convertStmt(child)...)
	}
	return out
}

// convertStmt maps one statement node. A single concrete statement may
// map to no langast statement or to several (a with statement without
// items contributes its body directly), hence the slice return.
func (p *Parser) convertStmt(n *sitter.Node) []langast.Stmt {
	switch n.Type() {
	case "comment", "pass_statement", "global_statement", "nonlocal_statement":
		return nil

	case "decorated_definition":
		return p.convertDecorated(n)

	case "function_definition":
		return []langast.Stmt{p.convertFunctionDef(n, nil)}

	case "class_definition":
		return []langast.Stmt{p.convertClassDef(n, nil)}

	case "expression_statement":
		return p.convertExprStatement(n)

	case "return_statement":
		ret := &langast.Return{Base: p.base(n)}
		if v := n.NamedChild(0); v != nil {
			ret.Value = p.convertExpr(v)
		}
		return []langast.Stmt{ret}

	case "if_statement":
		return []langast.Stmt{p.convertIf(n)}

	case "for_statement":
		stmt := &langast.For{
			Base:   p.base(n),
			Target: p.convertExpr(n.ChildByFieldName("left")),
			Iter:   p.convertExpr(n.ChildByFieldName("right")),
			Body:   p.convertBlock(n.ChildByFieldName("body")),
		}
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			stmt.Orelse = p.convertBlock(alt.ChildByFieldName("body"))
		}
		return []langast.Stmt{stmt}

	case "while_statement":
		stmt := &langast.While{
			Base: p.base(n),
			Test: p.convertExpr(n.ChildByFieldName("condition")),
			Body: p.convertBlock(n.ChildByFieldName("body")),
		}
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			stmt.Orelse = p.convertBlock(alt.ChildByFieldName("body"))
		}
		return []langast.Stmt{stmt}

	case "with_statement":
		return p.convertWith(n)

	case "try_statement":
		return []langast.Stmt{p.convertTry(n)}

	case "raise_statement":
		stmt := &langast.Raise{Base: p.base(n)}
		if v := n.NamedChild(0); v != nil {
			stmt.Exc = p.convertExpr(v)
		}
		if cause := n.ChildByFieldName("cause"); cause != nil {
			stmt.Cause = p.convertExpr(cause)
		}
		return []langast.Stmt{stmt}

	case "assert_statement":
		stmt := &langast.Assert{Base: p.base(n), Test: p.convertExpr(n.NamedChild(0))}
		if msg := n.NamedChild(1); msg != nil {
			stmt.Msg = p.convertExpr(msg)
		}
		return []langast.Stmt{stmt}

	case "delete_statement":
		stmt := &langast.Delete{Base: p.base(n)}
		target := n.NamedChild(0)
		if target != nil && target.Type() == "expression_list" {
			for i := 0; i < int(target.NamedChildCount()); i++ {
				stmt.Targets = append(stmt.Targets, p.convertExpr(target.NamedChild(i)))
			}
		} else if target != nil {
			stmt.Targets = append(stmt.Targets, p.convertExpr(target))
		}
		return []langast.Stmt{stmt}

	case "break_statement":
		return []langast.Stmt{&langast.Break{Base: p.base(n)}}

	case "continue_statement":
		return []langast.Stmt{&langast.Continue{Base: p.base(n)}}

	case "import_statement":
		return []langast.Stmt{&langast.Import{Base: p.base(n), Names: p.importNames(n)}}

	case "import_from_statement":
		stmt := &langast.ImportFrom{Base: p.base(n), Names: p.importNames(n)}
		if mod := n.ChildByFieldName("module_name"); mod != nil {
			stmt.Module = p.text(mod)
		}
		return []langast.Stmt{stmt}
	}

	// Unknown statement kinds carry no tracing points of their own.
	return nil
}

// convertExprStatement handles the expression_statement wrapper around
// assignments, augmented assignments, bare yields and plain expressions.
func (p *Parser) convertExprStatement(n *sitter.Node) []langast.Stmt {
	inner := n.NamedChild(0)
	if inner == nil {
		return nil
	}
	switch inner.Type() {
	case "assignment":
		return []langast.Stmt{p.convertAssign(inner)}
	case "augmented_assignment":
		op := ""
		if opNode := inner.ChildByFieldName("operator"); opNode != nil {
			op = strings.TrimSuffix(p.text(opNode), "=")
		}
		return []langast.Stmt{&langast.AugAssign{
			Base:   p.base(inner),
			Target: p.convertExpr(inner.ChildByFieldName("left")),
			Op:     op,
			Value:  p.convertExpr(inner.ChildByFieldName("right")),
		}}
	case "yield":
		return []langast.Stmt{p.convertYield(inner)}
	}
	return []langast.Stmt{&langast.ExprStmt{Base: p.base(n), Value: p.convertExpr(inner)}}
}

// convertAssign flattens a chained assignment (a = b = expr) into one
// Assign with multiple targets, the same shape ast.Assign has.
func (p *Parser) convertAssign(n *sitter.Node) langast.Stmt {
	stmt := &langast.Assign{Base: p.base(n)}
	cur := n
	for cur.Type() == "assignment" {
		left := cur.ChildByFieldName("left")
		stmt.Targets = append(stmt.Targets, p.convertExpr(left))
		right := cur.ChildByFieldName("right")
		if right == nil {
			// Annotated declaration without value: `x: int`. Treat as a
			// definition with a constant RHS.
			stmt.Value = &langast.Constant{Base: p.base(cur)}
			return stmt
		}
		if right.Type() == "assignment" {
			cur = right
			continue
		}
		stmt.Value = p.convertExpr(right)
		break
	}
	return stmt
}

func (p *Parser) convertYield(n *sitter.Node) langast.Stmt {
	// `yield from it` carries a "from" anonymous child before the value.
	from := false
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == "from" {
			from = true
			break
		}
	}
	var value langast.Expr
	if v := n.NamedChild(0); v != nil {
		value = p.convertExpr(v)
	}
	if from {
		return &langast.YieldFrom{Base: p.base(n), Value: value}
	}
	return &langast.Yield{Base: p.base(n), Value: value}
}

func (p *Parser) convertDecorated(n *sitter.Node) []langast.Stmt {
	var decorators []langast.Expr
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "decorator" {
			decorators = append(decorators, p.convertExpr(child.NamedChild(0)))
		}
	}
	def := n.ChildByFieldName("definition")
	if def == nil {
		return nil
	}
	switch def.Type() {
	case "function_definition":
		return []langast.Stmt{p.convertFunctionDef(def, decorators)}
	case "class_definition":
		return []langast.Stmt{p.convertClassDef(def, decorators)}
	}
	return nil
}

func (p *Parser) convertFunctionDef(n *sitter.Node, decorators []langast.Expr) *langast.FunctionDef {
	def := &langast.FunctionDef{
		Base:       p.base(n),
		Name:       p.text(n.ChildByFieldName("name")),
		Decorators: decorators,
		Args:       p.convertParameters(n.ChildByFieldName("parameters")),
		Body:       p.convertBlock(n.ChildByFieldName("body")),
	}
	return def
}

func (p *Parser) convertClassDef(n *sitter.Node, decorators []langast.Expr) *langast.ClassDef {
	return &langast.ClassDef{
		Base:       p.base(n),
		Name:       p.text(n.ChildByFieldName("name")),
		Decorators: decorators,
		Body:       p.convertBlock(n.ChildByFieldName("body")),
	}
}

// convertParameters extracts formal parameter names. Default and typed
// parameters contribute their name; *args/**kwargs contribute the bare
// name behind the stars.
func (p *Parser) convertParameters(n *sitter.Node) []*langast.Arg {
	if n == nil {
		return nil
	}
	var out []*langast.Arg
	for i := 0; i < int(n.NamedChildCount()); i++ {
		param := n.NamedChild(i)
		switch param.Type() {
		case "identifier":
			out = append(out, &langast.Arg{Base: p.base(param), Name: p.text(param)})
		case "default_parameter", "typed_default_parameter", "typed_parameter":
			name := param.ChildByFieldName("name")
			if name == nil {
				name = param.NamedChild(0)
			}
			if name != nil && name.Type() == "identifier" {
				out = append(out, &langast.Arg{Base: p.base(name), Name: p.text(name)})
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			if name := param.NamedChild(0); name != nil {
				out = append(out, &langast.Arg{Base: p.base(name), Name: p.text(name)})
			}
		}
	}
	return out
}

// convertIf maps the elif chain onto nested If nodes, the way the
// Python ast module represents it.
func (p *Parser) convertIf(n *sitter.Node) *langast.If {
	stmt := &langast.If{
		Base: p.base(n),
		Test: p.convertExpr(n.ChildByFieldName("condition")),
		Body: p.convertBlock(n.ChildByFieldName("consequence")),
	}
	tail := &stmt.Orelse
	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		switch clause.Type() {
		case "elif_clause":
			elif := &langast.If{
				Base: p.base(clause),
				Test: p.convertExpr(clause.ChildByFieldName("condition")),
				Body: p.convertBlock(clause.ChildByFieldName("consequence")),
			}
			*tail = []langast.Stmt{elif}
			tail = &elif.Orelse
		case "else_clause":
			*tail = p.convertBlock(clause.ChildByFieldName("body"))
		}
	}
	return stmt
}

// convertWith flattens a with_clause into nested With nodes, one per
// with_item, so each item is its own sequential statement.
func (p *Parser) convertWith(n *sitter.Node) []langast.Stmt {
	body := p.convertBlock(n.ChildByFieldName("body"))

	clause := n.NamedChild(0)
	var items []*sitter.Node
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		if clause.NamedChild(i).Type() == "with_item" {
			items = append(items, clause.NamedChild(i))
		}
	}
	if len(items) == 0 {
		return body
	}

	var out langast.Stmt
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		value := item.ChildByFieldName("value")
		with := &langast.With{Base: p.base(item), Body: body}
		if value != nil && value.Type() == "as_pattern" {
			with.ContextExpr = p.convertExpr(value.NamedChild(0))
			if alias := value.ChildByFieldName("alias"); alias != nil {
				target := alias
				if alias.NamedChildCount() > 0 {
					target = alias.NamedChild(0)
				}
				with.OptionalVars = p.convertExpr(target)
			}
		} else if value != nil {
			with.ContextExpr = p.convertExpr(value)
		}
		body = []langast.Stmt{with}
		out = with
	}
	return []langast.Stmt{out}
}

func (p *Parser) convertTry(n *sitter.Node) *langast.Try {
	stmt := &langast.Try{
		Base: p.base(n),
		Body: p.convertBlock(n.ChildByFieldName("body")),
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		switch clause.Type() {
		case "except_clause":
			handler := &langast.ExceptHandler{Base: p.base(clause)}
			for j := 0; j < int(clause.NamedChildCount()); j++ {
				child := clause.NamedChild(j)
				switch child.Type() {
				case "block":
					handler.Body = p.convertBlock(child)
				case "as_pattern":
					handler.Type = p.convertExpr(child.NamedChild(0))
					if alias := child.ChildByFieldName("alias"); alias != nil {
						handler.Name = p.text(alias)
					}
				default:
					if handler.Type == nil {
						handler.Type = p.convertExpr(child)
					}
				}
			}
			stmt.Handlers = append(stmt.Handlers, handler)
		case "else_clause":
			stmt.Orelse = p.convertBlock(clause.ChildByFieldName("body"))
		case "finally_clause":
			for j := 0; j < int(clause.NamedChildCount()); j++ {
				if clause.NamedChild(j).Type() == "block" {
					stmt.Finally = p.convertBlock(clause.NamedChild(j))
				}
			}
		}
	}
	return stmt
}

func (p *Parser) importNames(n *sitter.Node) []string {
	var out []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			// `import a.b` binds `a`.
			out = append(out, strings.SplitN(p.text(child), ".", 2)[0])
		case "aliased_import":
			if alias := child.ChildByFieldName("alias"); alias != nil {
				out = append(out, p.text(alias))
			}
		case "wildcard_import":
			// `from m import *`: no statically known names.
		}
	}
	// The module_name field of import_from also matches dotted_name;
	// drop it so only the imported names remain.
	if n.Type() == "import_from_statement" && len(out) > 0 {
		if mod := n.ChildByFieldName("module_name"); mod != nil && mod.Type() == "dotted_name" {
			prefix := strings.SplitN(p.text(mod), ".", 2)[0]
			if out[0] == prefix {
				out = out[1:]
			}
		}
	}
	return out
}

// convertExpr maps one expression node. Shapes with no def/use
// relevance (literals, comprehensions) degrade to Constant or to a
// Tuple of their subexpressions so names inside them still surface.
func (p *Parser) convertExpr(n *sitter.Node) langast.Expr {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier":
		return &langast.Name{Base: p.base(n), Id: p.text(n)}

	case "attribute":
		return &langast.Attribute{
			Base:  p.base(n),
			Value: p.convertExpr(n.ChildByFieldName("object")),
			Attr:  p.text(n.ChildByFieldName("attribute")),
		}

	case "subscript":
		sub := &langast.Subscript{
			Base:  p.base(n),
			Value: p.convertExpr(n.ChildByFieldName("value")),
		}
		if idx := n.ChildByFieldName("subscript"); idx != nil {
			sub.Index = p.convertExpr(idx)
		}
		return sub

	case "call":
		call := &langast.Call{
			Base: p.base(n),
			Func: p.convertExpr(n.ChildByFieldName("function")),
		}
		if args := n.ChildByFieldName("arguments"); args != nil {
			for i := 0; i < int(args.NamedChildCount()); i++ {
				arg := args.NamedChild(i)
				if arg.Type() == "keyword_argument" {
					call.Args = append(call.Args, p.convertExpr(arg.ChildByFieldName("value")))
					continue
				}
				call.Args = append(call.Args, p.convertExpr(arg))
			}
		}
		return call

	case "lambda":
		return &langast.Lambda{
			Base: p.base(n),
			Args: p.convertParameters(n.ChildByFieldName("parameters")),
			Body: p.convertExpr(n.ChildByFieldName("body")),
		}

	case "tuple", "expression_list", "pattern_list", "tuple_pattern":
		t := &langast.Tuple{Base: p.base(n)}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			t.Elts = append(t.Elts, p.convertExpr(n.NamedChild(i)))
		}
		return t

	case "list", "list_pattern", "set":
		l := &langast.List{Base: p.base(n)}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			l.Elts = append(l.Elts, p.convertExpr(n.NamedChild(i)))
		}
		return l

	case "list_splat", "list_splat_pattern":
		return &langast.Starred{Base: p.base(n), Value: p.convertExpr(n.NamedChild(0))}

	case "dictionary":
		d := &langast.Dict{Base: p.base(n)}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			pair := n.NamedChild(i)
			if pair.Type() != "pair" {
				continue
			}
			d.Keys = append(d.Keys, p.convertExpr(pair.ChildByFieldName("key")))
			d.Values = append(d.Values, p.convertExpr(pair.ChildByFieldName("value")))
		}
		return d

	case "binary_operator":
		return &langast.BinOp{
			Base:  p.base(n),
			Left:  p.convertExpr(n.ChildByFieldName("left")),
			Op:    p.text(n.ChildByFieldName("operator")),
			Right: p.convertExpr(n.ChildByFieldName("right")),
		}

	case "boolean_operator":
		return &langast.BoolOp{
			Base:   p.base(n),
			Op:     p.text(n.ChildByFieldName("operator")),
			Values: []langast.Expr{p.convertExpr(n.ChildByFieldName("left")), p.convertExpr(n.ChildByFieldName("right"))},
		}

	case "comparison_operator":
		cmp := &langast.Compare{Base: p.base(n), Left: p.convertExpr(n.NamedChild(0))}
		for i := 1; i < int(n.NamedChildCount()); i++ {
			cmp.Comparators = append(cmp.Comparators, p.convertExpr(n.NamedChild(i)))
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if child := n.Child(i); !child.IsNamed() {
				cmp.Ops = append(cmp.Ops, p.text(child))
			}
		}
		return cmp

	case "unary_operator":
		return &langast.UnaryOp{
			Base:    p.base(n),
			Op:      p.text(n.ChildByFieldName("operator")),
			Operand: p.convertExpr(n.ChildByFieldName("argument")),
		}

	case "not_operator":
		return &langast.UnaryOp{
			Base:    p.base(n),
			Op:      "not",
			Operand: p.convertExpr(n.ChildByFieldName("argument")),
		}

	case "parenthesized_expression", "await":
		return p.convertExpr(n.NamedChild(0))

	case "conditional_expression":
		// `a if cond else b` — all three operands surface as siblings.
		t := &langast.Tuple{Base: p.base(n)}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			t.Elts = append(t.Elts, p.convertExpr(n.NamedChild(i)))
		}
		return t

	case "list_comprehension", "set_comprehension", "dictionary_comprehension", "generator_expression":
		// Comprehensions degrade to a Tuple of their subexpressions so
		// names used inside still count as uses of the statement.
		t := &langast.Tuple{Base: p.base(n)}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			t.Elts = append(t.Elts, p.convertExpr(n.NamedChild(i)))
		}
		return t

	case "for_in_clause":
		t := &langast.Tuple{Base: p.base(n)}
		if right := n.ChildByFieldName("right"); right != nil {
			t.Elts = append(t.Elts, p.convertExpr(right))
		}
		return t

	case "if_clause":
		return p.convertExpr(n.NamedChild(0))

	case "integer":
		if v, err := strconv.ParseInt(p.text(n), 0, 64); err == nil {
			return &langast.Constant{Base: p.base(n), Value: v}
		}
		return &langast.Constant{Base: p.base(n), Value: p.text(n)}

	case "float":
		if v, err := strconv.ParseFloat(p.text(n), 64); err == nil {
			return &langast.Constant{Base: p.base(n), Value: v}
		}
		return &langast.Constant{Base: p.base(n), Value: p.text(n)}

	case "true":
		return &langast.Constant{Base: p.base(n), Value: true}
	case "false":
		return &langast.Constant{Base: p.base(n), Value: false}
	case "none":
		return &langast.Constant{Base: p.base(n)}
	case "string", "concatenated_string", "ellipsis":
		return &langast.Constant{Base: p.base(n), Value: p.text(n)}
	}

	return &langast.Constant{Base: p.base(n), Value: p.text(n)}
}

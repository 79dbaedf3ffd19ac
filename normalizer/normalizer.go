// Package normalizer applies the minimal AST rewrite the analysis pass
// depends on: every function body ends in an explicit Return, so CFG
// construction always has a real statement to hang the "loop fell
// through" alternative-successor edge on.
package normalizer

import "github.com/viant/aardwolf/langast"

// Normalize walks mod's body and appends an explicit `return None` to
// every FunctionDef whose last statement is not already a Return. It
// recurses into nested FunctionDef/ClassDef/control-flow bodies so
// methods and closures are normalized too.
func Normalize(mod *langast.Module) {
	normalizeBlock(mod.Body)
}

func normalizeBlock(body []langast.Stmt) {
	for _, stmt := range body {
		normalizeStmt(stmt)
	}
}

func normalizeStmt(stmt langast.Stmt) {
	switch n := stmt.(type) {
	case *langast.FunctionDef:
		normalizeBlock(n.Body)
		if len(n.Body) == 0 {
			n.Body = append(n.Body, syntheticReturn(n))
			return
		}
		if _, ok := n.Body[len(n.Body)-1].(*langast.Return); !ok {
			n.Body = append(n.Body, syntheticReturn(n))
		}
	case *langast.ClassDef:
		normalizeBlock(n.Body)
	case *langast.If:
		normalizeBlock(n.Body)
		normalizeBlock(n.Orelse)
	case *langast.For:
		normalizeBlock(n.Body)
		normalizeBlock(n.Orelse)
	case *langast.While:
		normalizeBlock(n.Body)
		normalizeBlock(n.Orelse)
	case *langast.With:
		normalizeBlock(n.Body)
	case *langast.Try:
		normalizeBlock(n.Body)
		for _, h := range n.Handlers {
			normalizeBlock(h.Body)
		}
		normalizeBlock(n.Orelse)
		normalizeBlock(n.Finally)
	}
}

// syntheticReturn builds the explicit `return None` appended at the end
// of a function body, positioned one line past the function's last
// statement.
func syntheticReturn(fn *langast.FunctionDef) *langast.Return {
	line := fn.Position().Line + 1
	if last := lastStmt(fn.Body); last != nil {
		line = last.EndPosition().Line + 1
	}
	return &langast.Return{
		Base:  langast.NewBase(langast.NewPos(line, fn.Position().Col+4)),
		Value: nil,
	}
}

func lastStmt(body []langast.Stmt) langast.Stmt {
	if len(body) == 0 {
		return nil
	}
	return body[len(body)-1]
}

package template

import (
	"fmt"
	"maps"
	"strings"

	starctx "github.com/leapstack-labs/leaprun/internal/starlark"
	"go.starlark.net/starlark"
)

// Evaluator evaluates one Starlark expression with extra locals in scope.
// *starlark.ExecutionContext implements it.
type Evaluator interface {
	EvalExprWithLocals(expr, file string, line int, locals starlark.StringDict) (starlark.Value, error)
}

// RenderString parses and renders a template in one step.
func RenderString(input, file string, ev Evaluator) (string, error) {
	tmpl, err := ParseString(input, file)
	if err != nil {
		return "", err
	}
	return Render(tmpl, ev)
}

// Render evaluates a parsed template.
func Render(tmpl *Template, ev Evaluator) (string, error) {
	r := &renderer{file: tmpl.File, ev: ev}
	var sb strings.Builder
	if err := r.renderNodes(&sb, tmpl.Nodes, nil); err != nil {
		return "", err
	}
	return sb.String(), nil
}

type renderer struct {
	file string
	ev   Evaluator
}

func (r *renderer) eval(expr string, pos Position, locals starlark.StringDict) (starlark.Value, error) {
	v, err := r.ev.EvalExprWithLocals(expr, r.file, pos.Line, locals)
	if err != nil {
		return nil, wrapRender(pos, fmt.Sprintf("evaluating %q", expr), err)
	}
	return v, nil
}

func (r *renderer) renderNodes(sb *strings.Builder, nodes []Node, locals starlark.StringDict) error {
	for _, n := range nodes {
		switch n := n.(type) {
		case *TextNode:
			sb.WriteString(n.Text)
		case *ExprNode:
			v, err := r.eval(n.Expr, n.Pos(), locals)
			if err != nil {
				return err
			}
			sb.WriteString(starctx.ValueString(v))
		case *IfBlock:
			if err := r.renderIf(sb, n, locals); err != nil {
				return err
			}
		case *ForBlock:
			if err := r.renderFor(sb, n, locals); err != nil {
				return err
			}
		default:
			return wrapRender(n.Pos(), fmt.Sprintf("unexpected node %T", n), nil)
		}
	}
	return nil
}

func (r *renderer) renderIf(sb *strings.Builder, b *IfBlock, locals starlark.StringDict) error {
	for _, br := range b.Branches {
		cond, err := r.eval(br.Condition, br.Pos, locals)
		if err != nil {
			return err
		}
		if cond.Truth() {
			return r.renderNodes(sb, br.Body, locals)
		}
	}
	return r.renderNodes(sb, b.Else, locals)
}

func (r *renderer) renderFor(sb *strings.Builder, b *ForBlock, locals starlark.StringDict) error {
	seq, err := r.eval(b.IterExpr, b.Pos(), locals)
	if err != nil {
		return err
	}
	iterable, ok := seq.(starlark.Iterable)
	if !ok {
		return wrapRender(b.Pos(), fmt.Sprintf("cannot iterate over %s", seq.Type()), nil)
	}

	iter := iterable.Iterate()
	defer iter.Done()

	scope := make(starlark.StringDict, len(locals)+len(b.VarNames))
	maps.Copy(scope, locals)

	var item starlark.Value
	for iter.Next(&item) {
		if err := bindLoopVars(scope, b.VarNames, item); err != nil {
			return wrapRender(b.Pos(), err.Error(), nil)
		}
		if err := r.renderNodes(sb, b.Body, scope); err != nil {
			return err
		}
	}
	return nil
}

func bindLoopVars(scope starlark.StringDict, names []string, item starlark.Value) error {
	if len(names) == 1 {
		scope[names[0]] = item
		return nil
	}
	seq, ok := item.(starlark.Indexable)
	if !ok {
		return fmt.Errorf("cannot unpack %s into %d variables", item.Type(), len(names))
	}
	if seq.Len() != len(names) {
		return fmt.Errorf("cannot unpack %d values into %d variables", seq.Len(), len(names))
	}
	for i, name := range names {
		scope[name] = seq.Index(i)
	}
	return nil
}

package template

import (
	"fmt"
	"slices"

	starctx "github.com/leapstack-labs/leaprun/internal/starlark"
	"github.com/leapstack-labs/leaprun/pkg/core"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// MacroNames are the builtins Scan reports.
var MacroNames = []string{"ref", "source", "config", "asset", "is_incremental"}

var scanOptions = &syntax.FileOptions{Set: true}

// CallSite is one macro call found in a template.
type CallSite struct {
	Name string
	// Args holds the positional arguments that are string literals, in order.
	Args []string
	// Literal is false when any positional argument is not a string literal.
	Literal bool
	Pos     Position

	call *syntax.CallExpr
}

// Scan parses a template and every expression in it without evaluating
// anything, returning the macro call sites in source order.
func Scan(body, file string) ([]CallSite, error) {
	tmpl, err := ParseString(body, file)
	if err != nil {
		return nil, err
	}

	var sites []CallSite
	var scanErr error
	visit := func(expr string, pos Position) {
		if scanErr != nil {
			return
		}
		found, err := scanExpr(expr, pos)
		if err != nil {
			scanErr = err
			return
		}
		sites = append(sites, found...)
	}

	Walk(tmpl.Nodes, func(n Node) {
		switch n := n.(type) {
		case *ExprNode:
			visit(n.Expr, n.Pos())
		case *ForBlock:
			visit(n.IterExpr, n.Pos())
		case *IfBlock:
			for _, br := range n.Branches {
				visit(br.Condition, br.Pos)
			}
		}
	})
	if scanErr != nil {
		return nil, scanErr
	}
	return sites, nil
}

func scanExpr(expr string, pos Position) ([]CallSite, error) {
	parsed, err := scanOptions.ParseExpr(pos.File, expr, 0)
	if err != nil {
		return nil, parseErrorf(pos, "invalid expression %q: %v", expr, err)
	}

	var sites []CallSite
	syntax.Walk(parsed, func(n syntax.Node) bool {
		call, ok := n.(*syntax.CallExpr)
		if !ok {
			return true
		}
		fn, ok := call.Fn.(*syntax.Ident)
		if !ok || !slices.Contains(MacroNames, fn.Name) {
			return true
		}

		site := CallSite{Name: fn.Name, Literal: true, call: call, Pos: pos}
		if start, _ := call.Span(); start.Line > 1 {
			site.Pos.Line += int(start.Line) - 1
		}
		for _, arg := range call.Args {
			if _, kw := arg.(*syntax.BinaryExpr); kw {
				continue
			}
			lit, ok := arg.(*syntax.Literal)
			if !ok || lit.Token != syntax.STRING {
				site.Literal = false
				continue
			}
			site.Args = append(site.Args, lit.Value.(string))
		}
		sites = append(sites, site)
		return true
	})
	return sites, nil
}

// Refs returns the distinct literal ref() targets in a template, in
// first-seen order.
func Refs(sites []CallSite) []string {
	var refs []string
	for _, s := range sites {
		if s.Name == "ref" && len(s.Args) == 1 && !slices.Contains(refs, s.Args[0]) {
			refs = append(refs, s.Args[0])
		}
	}
	return refs
}

// Diagnostic is a non-fatal problem found while reading a model.
type Diagnostic struct {
	Pos     Position
	Message string
}

func (d Diagnostic) String() string {
	if d.Pos.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", d.Pos.File, d.Pos.Line, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Pos.File, d.Message)
}

// ExtractConfig reads the config(...) call of a template. It never
// fails: problems yield an empty config and a diagnostic. When several
// config calls exist the first one is used.
func ExtractConfig(body, file string) (core.ModelConfig, []Diagnostic) {
	sites, err := Scan(body, file)
	if err != nil {
		return core.ModelConfig{}, []Diagnostic{{Pos: Position{File: file}, Message: err.Error()}}
	}
	return ConfigFromSites(sites, file)
}

// ConfigFromSites is ExtractConfig over already scanned call sites.
func ConfigFromSites(sites []CallSite, file string) (core.ModelConfig, []Diagnostic) {
	var diags []Diagnostic
	var first *CallSite
	for i := range sites {
		if sites[i].Name != "config" {
			continue
		}
		if first == nil {
			first = &sites[i]
			continue
		}
		diags = append(diags, Diagnostic{Pos: sites[i].Pos, Message: "multiple config() calls; only the first is used"})
	}
	if first == nil {
		return core.ModelConfig{}, diags
	}

	raw, err := configKeywords(first.call)
	if err != nil {
		return core.ModelConfig{}, append(diags, Diagnostic{Pos: first.Pos, Message: err.Error()})
	}
	cfg, err := core.DecodeModelConfig(raw)
	if err != nil {
		return core.ModelConfig{}, append(diags, Diagnostic{Pos: first.Pos, Message: fmt.Sprintf("config: %v", err)})
	}
	return cfg, diags
}

// configKeywords evaluates the keyword arguments of a config call. Values
// must be constant expressions: literals, lists, dicts, True/False/None.
func configKeywords(call *syntax.CallExpr) (map[string]any, error) {
	raw := make(map[string]any, len(call.Args))
	thread := &starlark.Thread{Name: "config"}
	for _, arg := range call.Args {
		kw, ok := arg.(*syntax.BinaryExpr)
		if !ok || kw.Op != syntax.EQ {
			return nil, fmt.Errorf("config() takes keyword arguments only")
		}
		key, ok := kw.X.(*syntax.Ident)
		if !ok {
			return nil, fmt.Errorf("config() takes keyword arguments only")
		}
		v, err := starlark.EvalExprOptions(scanOptions, thread, kw.Y, nil)
		if err != nil {
			return nil, fmt.Errorf("config %s: value must be a constant: %v", key.Name, err)
		}
		gv, err := starctx.ToGo(v)
		if err != nil {
			return nil, fmt.Errorf("config %s: %v", key.Name, err)
		}
		raw[key.Name] = gv
	}
	return raw, nil
}

package macro

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.starlark.net/syntax"
)

// FunctionDoc describes a public function of a macro file.
type FunctionDoc struct {
	Name      string   `json:"name"`
	Args      []string `json:"args"`
	Docstring string   `json:"docstring,omitempty"`
	Line      int      `json:"line"`
}

// NamespaceDoc describes a macro file without executing it.
type NamespaceDoc struct {
	Name      string         `json:"name"`
	Path      string         `json:"path"`
	Functions []*FunctionDoc `json:"functions"`
}

// Describe statically parses a .star file and lists its public functions.
func Describe(path string) (*NamespaceDoc, error) {
	content, err := os.ReadFile(path) //nolint:gosec // path comes from the macros directory
	if err != nil {
		return nil, &LoadError{File: path, Message: fmt.Sprintf("failed to read file: %v", err)}
	}

	f, err := syntax.Parse(path, content, 0)
	if err != nil {
		return nil, &LoadError{File: path, Message: err.Error()}
	}

	ns := &NamespaceDoc{
		Name: strings.TrimSuffix(filepath.Base(path), ".star"),
		Path: path,
	}
	for _, stmt := range f.Stmts {
		def, ok := stmt.(*syntax.DefStmt)
		if !ok || strings.HasPrefix(def.Name.Name, "_") {
			continue
		}
		ns.Functions = append(ns.Functions, &FunctionDoc{
			Name:      def.Name.Name,
			Args:      paramNames(def.Params),
			Docstring: docstring(def.Body),
			Line:      int(def.Name.NamePos.Line),
		})
	}
	return ns, nil
}

func paramNames(params []syntax.Expr) []string {
	args := make([]string, 0, len(params))
	for _, param := range params {
		switch p := param.(type) {
		case *syntax.Ident:
			args = append(args, p.Name)
		case *syntax.BinaryExpr:
			if id, ok := p.X.(*syntax.Ident); ok && p.Op == syntax.EQ {
				args = append(args, id.Name+"=...")
			}
		case *syntax.UnaryExpr:
			if id, ok := p.X.(*syntax.Ident); ok {
				prefix := "*"
				if p.Op == syntax.STARSTAR {
					prefix = "**"
				}
				args = append(args, prefix+id.Name)
			}
		}
	}
	return args
}

func docstring(body []syntax.Stmt) string {
	if len(body) == 0 {
		return ""
	}
	stmt, ok := body[0].(*syntax.ExprStmt)
	if !ok {
		return ""
	}
	lit, ok := stmt.X.(*syntax.Literal)
	if !ok || lit.Token != syntax.STRING {
		return ""
	}
	s, _ := lit.Value.(string)
	return strings.TrimSpace(s)
}

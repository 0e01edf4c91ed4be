// Package template renders SQL model bodies. {{ expr }} splices the value
// of a Starlark expression and {* stmt *} drives for/if control flow.
package template

// Position tracks source location for error reporting.
type Position struct {
	File   string
	Line   int
	Column int
}

// Node is a template AST node.
type Node interface {
	Pos() Position
	node()
}

type nodeBase struct {
	pos Position
}

func (n *nodeBase) Pos() Position { return n.pos }
func (n *nodeBase) node()         {}

// TextNode is literal SQL passed through unchanged.
type TextNode struct {
	nodeBase
	Text string
}

// ExprNode is a {{ expr }} expression.
type ExprNode struct {
	nodeBase
	Expr string
}

// StmtKind identifies a control statement.
type StmtKind int

// StmtKind constants.
const (
	StmtUnknown StmtKind = iota
	StmtFor
	StmtEndFor
	StmtIf
	StmtElif
	StmtElse
	StmtEndIf
)

func (k StmtKind) String() string {
	switch k {
	case StmtFor:
		return "for"
	case StmtEndFor:
		return "endfor"
	case StmtIf:
		return "if"
	case StmtElif:
		return "elif"
	case StmtElse:
		return "else"
	case StmtEndIf:
		return "endif"
	default:
		return "unknown"
	}
}

// ForBlock is {* for v in expr: *} ... {* endfor *}. VarNames holds one
// name, or several for tuple unpacking ("k, v").
type ForBlock struct {
	nodeBase
	VarNames []string
	IterExpr string
	Body     []Node
}

// IfBlock is an if/elif/else chain. Branches[0] is the if branch.
type IfBlock struct {
	nodeBase
	Branches []Branch
	Else     []Node
}

// Branch is one conditional arm of an IfBlock.
type Branch struct {
	Pos       Position
	Condition string
	Body      []Node
}

// Template is a parsed template.
type Template struct {
	File  string
	Nodes []Node
}

// Walk calls fn for every node in depth-first order.
func Walk(nodes []Node, fn func(Node)) {
	for _, n := range nodes {
		fn(n)
		switch b := n.(type) {
		case *ForBlock:
			Walk(b.Body, fn)
		case *IfBlock:
			for _, br := range b.Branches {
				Walk(br.Body, fn)
			}
			Walk(b.Else, fn)
		}
	}
}

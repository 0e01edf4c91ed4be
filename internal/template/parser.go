package template

import (
	"strings"

	"github.com/leapstack-labs/leaprun/internal/ident"
)

// ParseString lexes and parses a template.
func ParseString(input, file string) (*Template, error) {
	tokens, err := Lex(input, file)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	nodes, stop, err := p.parseUntil()
	if err != nil {
		return nil, err
	}
	if stop != nil {
		return nil, unmatched(stop.pos, stop.kind)
	}
	return &Template{File: file, Nodes: nodes}, nil
}

type parser struct {
	tokens []Token
	i      int
}

// stmt is a classified {* ... *} statement.
type stmt struct {
	pos  Position
	kind StmtKind
	expr string
	vars []string
}

// parseUntil collects nodes until EOF or a statement that closes or
// continues an enclosing block, which is returned unconsumed.
func (p *parser) parseUntil() ([]Node, *stmt, error) {
	var nodes []Node
	for {
		tok := p.tokens[p.i]
		switch tok.Type {
		case TokenEOF:
			return nodes, nil, nil
		case TokenText:
			p.i++
			nodes = append(nodes, &TextNode{nodeBase: nodeBase{pos: tok.Pos}, Text: tok.Value})
		case TokenExpr:
			p.i++
			if tok.Value == "" {
				return nil, nil, parseErrorf(tok.Pos, "empty expression")
			}
			nodes = append(nodes, &ExprNode{nodeBase: nodeBase{pos: tok.Pos}, Expr: tok.Value})
		case TokenStmt:
			st, err := classify(tok)
			if err != nil {
				return nil, nil, err
			}
			switch st.kind {
			case StmtFor:
				p.i++
				block, err := p.parseFor(st)
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, block)
			case StmtIf:
				p.i++
				block, err := p.parseIf(st)
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, block)
			default:
				return nodes, st, nil
			}
		}
	}
}

func (p *parser) parseFor(open *stmt) (*ForBlock, error) {
	body, stop, err := p.parseUntil()
	if err != nil {
		return nil, err
	}
	if stop == nil {
		return nil, unmatched(open.pos, StmtFor)
	}
	if stop.kind != StmtEndFor {
		return nil, unmatched(stop.pos, stop.kind)
	}
	p.i++
	return &ForBlock{
		nodeBase: nodeBase{pos: open.pos},
		VarNames: open.vars,
		IterExpr: open.expr,
		Body:     body,
	}, nil
}

func (p *parser) parseIf(open *stmt) (*IfBlock, error) {
	block := &IfBlock{nodeBase: nodeBase{pos: open.pos}}
	cur := Branch{Pos: open.pos, Condition: open.expr}
	inElse := false

	for {
		body, stop, err := p.parseUntil()
		if err != nil {
			return nil, err
		}
		if stop == nil {
			return nil, unmatched(open.pos, StmtIf)
		}
		if inElse {
			block.Else = body
		} else {
			cur.Body = body
			block.Branches = append(block.Branches, cur)
		}

		switch stop.kind {
		case StmtElif:
			if inElse {
				return nil, parseErrorf(stop.pos, "'elif' after 'else'")
			}
			cur = Branch{Pos: stop.pos, Condition: stop.expr}
		case StmtElse:
			if inElse {
				return nil, parseErrorf(stop.pos, "duplicate 'else'")
			}
			inElse = true
		case StmtEndIf:
			p.i++
			return block, nil
		default:
			return nil, unmatched(stop.pos, stop.kind)
		}
		p.i++
	}
}

// classify turns statement text into a stmt.
func classify(tok Token) (*stmt, error) {
	text := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(tok.Value), ":"))
	keyword, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)
	st := &stmt{pos: tok.Pos}

	switch keyword {
	case "for":
		target, iter, ok := strings.Cut(rest, " in ")
		if !ok || strings.TrimSpace(iter) == "" {
			return nil, parseErrorf(tok.Pos, "invalid for statement %q: want 'for x in items:'", tok.Value)
		}
		for _, v := range strings.Split(target, ",") {
			name, err := ident.Validate(strings.TrimSpace(v))
			if err != nil {
				return nil, parseErrorf(tok.Pos, "invalid loop variable %q", strings.TrimSpace(v))
			}
			st.vars = append(st.vars, name)
		}
		st.kind, st.expr = StmtFor, strings.TrimSpace(iter)
	case "if", "elif":
		if rest == "" {
			return nil, parseErrorf(tok.Pos, "%s statement needs a condition", keyword)
		}
		st.kind, st.expr = StmtIf, rest
		if keyword == "elif" {
			st.kind = StmtElif
		}
	case "else":
		st.kind = StmtElse
	case "endfor":
		st.kind = StmtEndFor
	case "endif":
		st.kind = StmtEndIf
	default:
		return nil, parseErrorf(tok.Pos, "unknown statement %q", keyword)
	}
	if (st.kind == StmtElse || st.kind == StmtEndFor || st.kind == StmtEndIf) && rest != "" {
		return nil, parseErrorf(tok.Pos, "unexpected text after '%s'", keyword)
	}
	return st, nil
}

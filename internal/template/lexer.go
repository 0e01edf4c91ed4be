package template

import "strings"

// TokenType identifies the type of token.
type TokenType int

// TokenType constants for template token types.
const (
	TokenText TokenType = iota // literal SQL
	TokenExpr                  // contents of {{ ... }}
	TokenStmt                  // contents of {* ... *}
	TokenEOF
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "TEXT"
	case TokenExpr:
		return "EXPR"
	case TokenStmt:
		return "STMT"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// Token is one lexical unit of a template.
type Token struct {
	Type  TokenType
	Value string
	Pos   Position
}

const (
	exprOpen  = "{{"
	exprClose = "}}"
	stmtOpen  = "{*"
	stmtClose = "*}"
)

// Lex splits a template into text, expression and statement tokens.
// Expression and statement values are trimmed of surrounding whitespace.
// Closing delimiters inside quoted strings do not end an expression.
func Lex(input, file string) ([]Token, error) {
	l := &lexer{input: input, file: file, line: 1, col: 1}
	var tokens []Token
	for l.pos < len(l.input) {
		rest := l.input[l.pos:]
		next := nextOpen(rest)

		if next > 0 {
			tokens = append(tokens, Token{Type: TokenText, Value: rest[:next], Pos: l.here()})
			l.consume(next)
			continue
		}
		if next < 0 {
			tokens = append(tokens, Token{Type: TokenText, Value: rest, Pos: l.here()})
			l.consume(len(rest))
			break
		}

		start := l.here()
		typ, closer := TokenExpr, exprClose
		if strings.HasPrefix(rest, stmtOpen) {
			typ, closer = TokenStmt, stmtClose
		}
		end := findClose(rest[2:], closer)
		if end < 0 {
			return nil, &LexError{baseError{pos: start, msg: "unclosed " + describe(typ) + ": missing '" + closer + "'"}}
		}
		tokens = append(tokens, Token{Type: typ, Value: strings.TrimSpace(rest[2 : 2+end]), Pos: start})
		l.consume(2 + end + len(closer))
	}
	tokens = append(tokens, Token{Type: TokenEOF, Pos: l.here()})
	return tokens, nil
}

func describe(t TokenType) string {
	if t == TokenStmt {
		return "statement"
	}
	return "expression"
}

// nextOpen returns the offset of the next opening delimiter, or -1.
func nextOpen(s string) int {
	e, st := strings.Index(s, exprOpen), strings.Index(s, stmtOpen)
	switch {
	case e < 0:
		return st
	case st < 0:
		return e
	default:
		return min(e, st)
	}
}

// findClose locates closer in s, skipping quoted strings and, for
// expressions, balanced braces such as dict literals.
func findClose(s, closer string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		if depth == 0 && strings.HasPrefix(s[i:], closer) {
			return i
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		}
	}
	return -1
}

type lexer struct {
	input string
	file  string
	pos   int
	line  int
	col   int
}

func (l *lexer) here() Position {
	return Position{File: l.file, Line: l.line, Column: l.col}
}

// consume advances n bytes, keeping line and column current.
func (l *lexer) consume(n int) {
	chunk := l.input[l.pos : l.pos+n]
	if nl := strings.Count(chunk, "\n"); nl > 0 {
		l.line += nl
		l.col = len(chunk) - strings.LastIndexByte(chunk, '\n')
	} else {
		l.col += len([]rune(chunk))
	}
	l.pos += n
}

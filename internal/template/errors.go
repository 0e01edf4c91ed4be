package template

import (
	"fmt"

	"github.com/leapstack-labs/leaprun/pkg/core"
)

// Error is implemented by every template error.
type Error interface {
	error
	Position() Position
}

type baseError struct {
	pos Position
	msg string
}

func (e *baseError) Position() Position { return e.pos }

func (e *baseError) Error() string {
	if e.pos.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.pos.File, e.pos.Line, e.pos.Column, e.msg)
	}
	return fmt.Sprintf("%d:%d: %s", e.pos.Line, e.pos.Column, e.msg)
}

// LexError reports an unterminated delimiter.
type LexError struct {
	baseError
}

// ParseError reports a malformed control statement.
type ParseError struct {
	baseError
}

func parseErrorf(pos Position, format string, args ...any) *ParseError {
	return &ParseError{baseError{pos: pos, msg: fmt.Sprintf(format, args...)}}
}

// UnmatchedBlockError reports a block opener without its closer, or the
// other way round.
type UnmatchedBlockError struct {
	baseError
	BlockKind StmtKind
}

func unmatched(pos Position, kind StmtKind) *UnmatchedBlockError {
	var msg string
	switch kind {
	case StmtFor:
		msg = "unclosed 'for' block (missing 'endfor')"
	case StmtIf:
		msg = "unclosed 'if' block (missing 'endif')"
	default:
		msg = fmt.Sprintf("'%s' without matching opener", kind)
	}
	return &UnmatchedBlockError{baseError: baseError{pos: pos, msg: msg}, BlockKind: kind}
}

// RenderError is returned when evaluating a template fails. Its Kind is
// the kind of the underlying cause when it has one, RenderError otherwise.
type RenderError struct {
	baseError
	Cause error
}

func wrapRender(pos Position, msg string, cause error) *RenderError {
	return &RenderError{baseError: baseError{pos: pos, msg: msg}, Cause: cause}
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.baseError.Error(), e.Cause)
	}
	return e.baseError.Error()
}

func (e *RenderError) Unwrap() error { return e.Cause }

// Kind implements core.KindedError.
func (e *RenderError) Kind() core.ErrorKind {
	if k := core.KindOf(e.Cause); k != core.ErrUnknown {
		return k
	}
	return core.ErrRender
}

// Kind implements core.KindedError.
func (e *LexError) Kind() core.ErrorKind { return core.ErrRender }

// Kind implements core.KindedError.
func (e *ParseError) Kind() core.ErrorKind { return core.ErrRender }

// Kind implements core.KindedError.
func (e *UnmatchedBlockError) Kind() core.ErrorKind { return core.ErrRender }

// Package lerrors are a unified errors package for lexing, parsing, compiling
// and runtime so that they can be formatted in a unified way and handled in a
// unified way.
package lerrors

import (
	"errors"
	"fmt"
)

type (
	// ErrorKind is an enum to describe where the error originates from.
	ErrorKind int
	// Error captures all errors in the luna pipeline. It distinguishes between
	// lexer, parser, semantic, compile, runtime and host errors and will format
	// them accordingly.
	Error struct {
		Line   int64
		Column int64
		Kind   ErrorKind
		Err    error
		Module string
	}
)

const (
	// RuntimeErr is a type error raised while executing bytecode.
	RuntimeErr ErrorKind = iota
	// ParserErr is an error that originates from the parser.
	ParserErr
	// LexerErr is an error that originates from the lexer.
	LexerErr
	// SemanticErr is an error found while annotating the syntax tree.
	SemanticErr
	// CompileErr is raised when code generation fails.
	CompileErr
	// HostErr is an error reported by a native function.
	HostErr
)

var kindNames = map[ErrorKind]string{
	RuntimeErr:  "runtime",
	ParserErr:   "parser",
	LexerErr:    "lexer",
	SemanticErr: "semantic",
	CompileErr:  "compile",
	HostErr:     "host",
}

func (kind ErrorKind) String() string {
	if name, ok := kindNames[kind]; ok {
		return name
	}
	return "unknown"
}

func (err *Error) Error() string {
	switch err.Kind {
	case RuntimeErr, HostErr, SemanticErr:
		return fmt.Sprintf("%s:%v: %v", err.Module, err.Line, err.Err)
	case CompileErr:
		return fmt.Sprintf("%s %v: %v", err.Module, err.Line, err.Err)
	case ParserErr:
		return fmt.Sprintf("Parse Error: %s:%v:%v %v", err.Module, err.Line, err.Column, err.Err)
	case LexerErr:
		return fmt.Sprintf("Lex Error: %s:%v:%v %v", err.Module, err.Line, err.Column, err.Err)
	default:
		return err.Err.Error()
	}
}

// Unwrap allows errors.Is and errors.As to see the underlying cause.
func (err *Error) Unwrap() error { return err.Err }

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind ErrorKind) bool {
	var lerr *Error
	return errors.As(err, &lerr) && lerr.Kind == kind
}

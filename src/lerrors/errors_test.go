package lerrors

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormat(t *testing.T) {
	t.Parallel()
	cause := errors.New("boom")
	testcases := []struct {
		desc string
		err  *Error
		out  string
	}{
		{"runtime", &Error{Kind: RuntimeErr, Module: "main.lua", Line: 3, Err: cause}, "main.lua:3: boom"},
		{"host", &Error{Kind: HostErr, Module: "stdin", Line: 1, Err: cause}, "stdin:1: boom"},
		{"compile", &Error{Kind: CompileErr, Module: "main.lua", Line: 7, Err: cause}, "main.lua 7: boom"},
		{"parser", &Error{Kind: ParserErr, Module: "a", Line: 1, Column: 2, Err: cause}, "Parse Error: a:1:2 boom"},
		{"lexer", &Error{Kind: LexerErr, Module: "a", Line: 1, Column: 2, Err: cause}, "Lex Error: a:1:2 boom"},
	}
	for _, tc := range testcases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.out, tc.err.Error())
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("wrapped: %w", &Error{Kind: ParserErr, Err: io.EOF})
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, Is(err, ParserErr))
	assert.False(t, Is(err, RuntimeErr))
	assert.Equal(t, "compile", CompileErr.String())
}

// Package codegen lowers an annotated syntax tree into register bytecode.
// Each function gets a prototype holding its instructions, constants, nested
// prototypes, upvalue descriptors and the debug ranges of its locals.
//
// Every expression is generated against a target: a range of registers that
// must hold exactly its values afterwards, or an open range starting at a
// register that leaves all of its values there and sets the stack top.
// Temporaries are allocated above the live registers and released when the
// expression is done, so the register counter comes back to where it was.
package codegen

import (
	"github.com/pkg/errors"

	"github.com/airtrack/luna-sub000/src/ast"
	"github.com/airtrack/luna-sub000/src/bytecode"
	"github.com/airtrack/luna-sub000/src/runtime"
)

var (
	// ErrTooManyLocals is returned when a function needs more registers than
	// an instruction can address.
	ErrTooManyLocals = errors.New("too many local variables")
	// ErrTooManyUpvalues is returned when a function captures too many names.
	ErrTooManyUpvalues = errors.New("too many upvalues")
	// ErrTooComplex is returned when the registers for a multiple assignment
	// run out.
	ErrTooComplex = errors.New("assignment too complex")

	errTooManyConstants = errors.New("too many constants")
	errJumpTooLong      = errors.New("control structure too long")
	errOpenTarget       = errors.New("expression cannot fill an open register range")
)

type (
	// Interner gives the canonical string instance constants should hold.
	Interner interface {
		NewString(str string) *runtime.String
	}
	generator struct {
		module  string
		strings Interner
	}
)

// Generate compiles the chunk into the prototype of its main function. The
// chunk must have been through semantic.Analyze.
func Generate(strings Interner, chunk *ast.Chunk) (*runtime.Function, error) {
	gen := &generator{module: chunk.Module, strings: strings}
	fs := newFuncState(gen, nil, "main chunk", chunk.Line())
	fs.proto.IsVararg = true
	fs.enterBlock()
	if err := fs.block(chunk.Block); err != nil {
		return nil, err
	}
	fs.leaveBlock()
	fs.line = chunk.Block.EndLine
	fs.emitAB(bytecode.RETURN, 0, 1)
	if fs.err != nil {
		return nil, fs.wrap(fs.err)
	}
	return fs.proto, nil
}

// function generates a nested function literal and returns its prototype.
func (fs *funcState) function(fn *ast.Function) (*runtime.Function, error) {
	child := newFuncState(fs.gen, fs, fn.Name, fn.Line())
	child.proto.NumParams = len(fn.Params)
	child.proto.IsVararg = fn.HasVarArg
	child.enterBlock()
	for _, param := range fn.Params {
		reg, err := child.reserveLocals(1)
		if err != nil {
			return nil, child.wrap(err)
		}
		child.declare(param, reg)
	}
	if err := child.block(fn.Body); err != nil {
		return nil, err
	}
	child.leaveBlock()
	child.line = fn.Body.EndLine
	child.emitAB(bytecode.RETURN, 0, 1)
	if child.err != nil {
		return nil, child.wrap(child.err)
	}
	return child.proto, nil
}

func (fs *funcState) closure(fn *ast.Function, reg int) error {
	proto, err := fs.function(fn)
	if err != nil {
		return err
	}
	fs.emitABx(bytecode.CLOSURE, reg, fs.proto.AddChild(proto))
	return nil
}

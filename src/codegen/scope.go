package codegen

import (
	"fortio.org/safecast"
	"github.com/pkg/errors"

	"github.com/airtrack/luna-sub000/src/ast"
	"github.com/airtrack/luna-sub000/src/bytecode"
	"github.com/airtrack/luna-sub000/src/conf"
	"github.com/airtrack/luna-sub000/src/lerrors"
	"github.com/airtrack/luna-sub000/src/runtime"
)

type (
	local struct {
		name     string
		register int
		beginPC  int
	}
	// blockScope is one lexical block of the function being generated.
	// regBase is the register counter when the block was entered.
	blockScope struct {
		parent  *blockScope
		locals  []local
		regBase int
	}
	jumpKind int
	jumpKey  struct {
		loop ast.Stmt
		kind jumpKind
	}
	// funcState is the generation state of one function. Nested function
	// literals get their own funcState linked through parent.
	funcState struct {
		gen     *generator
		parent  *funcState
		proto   *runtime.Function
		scope   *blockScope
		freeReg int
		jumps   map[jumpKey][]int
		line    int64
		err     error
	}
)

const (
	jumpHead jumpKind = iota
	jumpTail
)

func newFuncState(gen *generator, parent *funcState, name string, line int64) *funcState {
	var parentProto *runtime.Function
	if parent != nil {
		parentProto = parent.proto
	}
	return &funcState{
		gen:    gen,
		parent: parent,
		proto:  runtime.NewFunction(gen.module, name, line, parentProto),
		jumps:  map[jumpKey][]int{},
		line:   line,
	}
}

func (fs *funcState) enterBlock() {
	fs.scope = &blockScope{parent: fs.scope, regBase: fs.freeReg}
}

// leaveBlock commits the debug ranges of the block's locals and releases
// their registers for reuse.
func (fs *funcState) leaveBlock() {
	end := fs.proto.PC()
	for _, l := range fs.scope.locals {
		fs.proto.AddLocalVar(l.name, l.register, l.beginPC, end)
	}
	fs.freeReg = fs.scope.regBase
	fs.scope = fs.scope.parent
}

func (fs *funcState) declare(name string, register int) {
	fs.scope.locals = append(fs.scope.locals, local{
		name:     name,
		register: register,
		beginPC:  fs.proto.PC(),
	})
}

func (fs *funcState) lookup(name string) (int, bool) {
	for b := fs.scope; b != nil; b = b.parent {
		for i := len(b.locals) - 1; i >= 0; i-- {
			if b.locals[i].name == name {
				return b.locals[i].register, true
			}
		}
	}
	return 0, false
}

// reserve allocates n consecutive registers above every live one.
func (fs *funcState) reserve(n int) (int, error) {
	start := fs.freeReg
	return start, fs.growTo(start + n)
}

// reserveLocals allocates registers that named locals will live in. Locals
// stay below MAXREGISTERS so that temporaries always have room above them.
func (fs *funcState) reserveLocals(n int) (int, error) {
	if fs.freeReg+n > conf.MAXREGISTERS {
		return 0, ErrTooManyLocals
	}
	return fs.reserve(n)
}

// growTo makes sure every register below top is allocated.
func (fs *funcState) growTo(top int) error {
	if top > conf.MAXFRAMEREGISTERS {
		return ErrTooManyLocals
	}
	fs.freeReg = max(fs.freeReg, top)
	fs.proto.MaxRegisters = max(fs.proto.MaxRegisters, fs.freeReg)
	return nil
}

// upvalue resolves a name bound in an enclosing function. Every function
// between the definition and fs gets a forwarding descriptor so that the
// cell is passed down one closure at a time.
func (fs *funcState) upvalue(name string) (int, error) {
	if idx := fs.proto.FindUpvalue(name); idx >= 0 {
		return idx, nil
	}
	chain := []*funcState{}
	for cur := fs; cur.parent != nil; cur = cur.parent {
		chain = append(chain, cur)
		parent := cur.parent
		if reg, ok := parent.lookup(name); ok {
			return forward(chain, name, true, reg)
		} else if idx := parent.proto.FindUpvalue(name); idx >= 0 {
			return forward(chain, name, false, idx)
		}
	}
	return 0, errors.Errorf("unresolved upvalue '%s'", name)
}

func forward(chain []*funcState, name string, parentLocal bool, index int) (int, error) {
	for i := len(chain) - 1; i >= 0; i-- {
		proto := chain[i].proto
		if len(proto.Upvalues) >= conf.MAXUPVALUES {
			return 0, ErrTooManyUpvalues
		}
		index = proto.AddUpvalue(name, parentLocal, index)
		parentLocal = false
	}
	return index, nil
}

func (fs *funcState) fail(err error) {
	if fs.err == nil {
		fs.err = err
	}
}

// wrap gives an error the position of the statement being generated unless
// a nested function already did.
func (fs *funcState) wrap(err error) error {
	var lerr *lerrors.Error
	if err == nil || errors.As(err, &lerr) {
		return err
	}
	return &lerrors.Error{
		Kind:   lerrors.CompileErr,
		Module: fs.proto.Module,
		Line:   fs.line,
		Err:    err,
	}
}

// narrow converts an instruction field, remembering the first overflow.
func (fs *funcState) narrow(op bytecode.Op, name string, val int) uint8 {
	u, err := safecast.Conv[uint8](val)
	if err != nil {
		fs.fail(errors.Wrapf(err, "%v operand %s", op, name))
	}
	return u
}

func (fs *funcState) emit(inst uint32) int {
	return fs.proto.AddInstruction(inst, fs.line)
}

func (fs *funcState) emitABC(op bytecode.Op, a, b, c int) int {
	return fs.emit(bytecode.IABC(op, fs.narrow(op, "A", a), fs.narrow(op, "B", b), fs.narrow(op, "C", c)))
}

func (fs *funcState) emitAB(op bytecode.Op, a, b int) int {
	return fs.emitABC(op, a, b, 0)
}

func (fs *funcState) emitABx(op bytecode.Op, a, bx int) int {
	ubx, err := safecast.Conv[uint16](bx)
	if err != nil {
		fs.fail(errors.Wrapf(err, "%v operand Bx", op))
	}
	return fs.emit(bytecode.IABx(op, fs.narrow(op, "A", a), ubx))
}

// jump emits a jump with a placeholder offset to be patched later.
func (fs *funcState) jump(op bytecode.Op, a int) int {
	return fs.emit(bytecode.IAsBx(op, fs.narrow(op, "A", a), 0))
}

func (fs *funcState) patch(pc, target int) {
	offset, err := safecast.Conv[int16](target - pc - 1)
	if err != nil {
		fs.fail(errJumpTooLong)
		return
	}
	fs.proto.SetInstruction(pc, bytecode.SetsBx(fs.proto.Instructions[pc], offset))
}

func (fs *funcState) patchHere(pc int) { fs.patch(pc, fs.proto.PC()) }

func (fs *funcState) deferJump(loop ast.Stmt, kind jumpKind, pc int) {
	key := jumpKey{loop: loop, kind: kind}
	fs.jumps[key] = append(fs.jumps[key], pc)
}

// closeLoop patches every jump recorded against loop now that both of its
// ends are known.
func (fs *funcState) closeLoop(loop ast.Stmt, head, tail int) {
	for kind, target := range map[jumpKind]int{jumpHead: head, jumpTail: tail} {
		key := jumpKey{loop: loop, kind: kind}
		for _, pc := range fs.jumps[key] {
			fs.patch(pc, target)
		}
		delete(fs.jumps, key)
	}
}

func (fs *funcState) constant(val any) int {
	if str, ok := val.(string); ok {
		val = fs.gen.strings.NewString(str)
	}
	idx := fs.proto.AddConstant(val)
	if idx > conf.MAXCONST {
		fs.fail(errTooManyConstants)
	}
	return idx
}

package codegen

import (
	"github.com/pkg/errors"

	"github.com/airtrack/luna-sub000/src/ast"
	"github.com/airtrack/luna-sub000/src/bytecode"
	"github.com/airtrack/luna-sub000/src/lerrors"
)

// indexSlots are the registers holding the table and key of an indexed
// assignment target, evaluated before the right hand side.
type indexSlots struct {
	table, key int
}

func (fs *funcState) block(b *ast.Block) error {
	fs.enterBlock()
	if err := fs.stmts(b.Stmts); err != nil {
		return err
	}
	fs.leaveBlock()
	return nil
}

func (fs *funcState) stmts(stmts []ast.Stmt) error {
	for _, stmt := range stmts {
		if line := stmt.Line(); line > 0 {
			fs.line = line
		}
		if err := fs.stmt(stmt); err != nil {
			return fs.wrap(err)
		} else if fs.err != nil {
			return fs.wrap(fs.err)
		}
	}
	return nil
}

func (fs *funcState) stmt(stmt ast.Stmt) error {
	switch stmt := stmt.(type) {
	case *ast.Block:
		return fs.block(stmt)
	case *ast.Do:
		return fs.block(stmt.Body)
	case *ast.While:
		return fs.whileStmt(stmt)
	case *ast.Repeat:
		return fs.repeatStmt(stmt)
	case *ast.If:
		return fs.ifStmt(stmt)
	case *ast.NumericFor:
		return fs.numericFor(stmt)
	case *ast.GenericFor:
		return fs.genericFor(stmt)
	case *ast.FunctionStmt:
		return fs.functionStmt(stmt)
	case *ast.LocalFunction:
		reg, err := fs.reserveLocals(1)
		if err != nil {
			return err
		}
		fs.declare(stmt.Name, reg)
		return fs.closure(stmt.Func, reg)
	case *ast.Local:
		return fs.localStmt(stmt)
	case *ast.Assign:
		return fs.assignStmt(stmt)
	case *ast.CallStmt:
		return fs.expr(stmt.Call, fs.freeReg, fs.freeReg)
	case *ast.Return:
		return fs.returnStmt(stmt)
	case *ast.Break:
		fs.deferJump(stmt.Loop, jumpTail, fs.jump(bytecode.JMP, 0))
		return nil
	default:
		return errors.Errorf("cannot generate %T", stmt)
	}
}

// cond evaluates a condition and emits a jump taken when it is false.
func (fs *funcState) cond(e ast.Expr) (int, error) {
	saved := fs.freeReg
	defer func() { fs.freeReg = saved }()
	reg, err := fs.operand(e)
	if err != nil {
		return 0, err
	}
	return fs.jump(bytecode.JMPFALSE, reg), nil
}

func (fs *funcState) whileStmt(stmt *ast.While) error {
	head := fs.proto.PC()
	exit, err := fs.cond(stmt.Cond)
	if err != nil {
		return err
	}
	fs.deferJump(stmt, jumpTail, exit)
	if err := fs.block(stmt.Body); err != nil {
		return err
	}
	fs.deferJump(stmt, jumpHead, fs.jump(bytecode.JMP, 0))
	fs.closeLoop(stmt, head, fs.proto.PC())
	return nil
}

// repeatStmt keeps the body scope open while the condition is evaluated.
func (fs *funcState) repeatStmt(stmt *ast.Repeat) error {
	head := fs.proto.PC()
	fs.enterBlock()
	if err := fs.stmts(stmt.Body.Stmts); err != nil {
		return err
	}
	again, err := fs.cond(stmt.Cond)
	if err != nil {
		return err
	}
	fs.deferJump(stmt, jumpHead, again)
	fs.leaveBlock()
	fs.closeLoop(stmt, head, fs.proto.PC())
	return nil
}

func (fs *funcState) ifStmt(stmt *ast.If) error {
	skip, err := fs.cond(stmt.Cond)
	if err != nil {
		return err
	} else if err := fs.block(stmt.Then); err != nil {
		return err
	} else if stmt.Else == nil {
		fs.patchHere(skip)
		return nil
	}
	done := fs.jump(bytecode.JMP, 0)
	fs.patchHere(skip)
	if err := fs.stmt(stmt.Else); err != nil {
		return err
	}
	fs.patchHere(done)
	return nil
}

// numericFor keeps the counter, limit and step in three hidden registers and
// copies the counter into the visible loop variable every iteration, so a
// closure created in the body captures that iteration's value.
func (fs *funcState) numericFor(stmt *ast.NumericFor) error {
	base, err := fs.reserveLocals(3)
	if err != nil {
		return err
	}
	if err := fs.expr(stmt.Init, base, base+1); err != nil {
		return err
	} else if err := fs.expr(stmt.Limit, base+1, base+2); err != nil {
		return err
	}
	if stmt.Step != nil {
		if err := fs.expr(stmt.Step, base+2, base+3); err != nil {
			return err
		}
	} else {
		fs.loadNumber(base+2, 1)
	}
	fs.line = stmt.Line()
	fs.emitABC(bytecode.FORINIT, base, base+1, base+2)
	head := fs.emitABC(bytecode.FORSTEP, base, base+1, base+2)
	fs.deferJump(stmt, jumpTail, fs.jump(bytecode.JMP, 0))

	fs.enterBlock()
	v, err := fs.reserveLocals(1)
	if err != nil {
		return err
	}
	fs.emitAB(bytecode.MOVE, v, base)
	fs.declare(stmt.Var, v)
	if err := fs.block(stmt.Body); err != nil {
		return err
	}
	fs.leaveBlock()

	fs.line = stmt.Line()
	fs.emitABC(bytecode.ADD, base, base, base+2)
	fs.deferJump(stmt, jumpHead, fs.jump(bytecode.JMP, 0))
	fs.closeLoop(stmt, head, fs.proto.PC())
	fs.freeReg = base
	return nil
}

// genericFor keeps the iterator function, state and control value in three
// hidden registers. Each iteration calls the function with copies of them,
// stops when the first result is nil and makes it the next control value.
func (fs *funcState) genericFor(stmt *ast.GenericFor) error {
	base, err := fs.reserveLocals(3)
	if err != nil {
		return err
	} else if err := fs.adjust(stmt.Exprs, base, stmt.ValueCount); err != nil {
		return err
	}
	fs.line = stmt.Line()
	head := fs.proto.PC()

	fs.enterBlock()
	vars, err := fs.reserveLocals(max(len(stmt.Names), 3))
	if err != nil {
		return err
	}
	for i := 0; i < 3; i++ {
		fs.emitAB(bytecode.MOVE, vars+i, base+i)
	}
	fs.emitABC(bytecode.CALL, vars, 3, len(stmt.Names)+1)
	fs.deferJump(stmt, jumpTail, fs.jump(bytecode.JMPNIL, vars))
	fs.emitAB(bytecode.MOVE, base+2, vars)
	for i, name := range stmt.Names {
		fs.declare(name, vars+i)
	}
	if err := fs.block(stmt.Body); err != nil {
		return err
	}
	fs.leaveBlock()

	fs.deferJump(stmt, jumpHead, fs.jump(bytecode.JMP, 0))
	fs.closeLoop(stmt, head, fs.proto.PC())
	fs.freeReg = base
	return nil
}

// localStmt evaluates the values before the names exist so that they still
// refer to any outer binding.
func (fs *funcState) localStmt(stmt *ast.Local) error {
	base, err := fs.reserveLocals(len(stmt.Names))
	if err != nil {
		return err
	} else if err := fs.adjust(stmt.Exprs, base, len(stmt.Names)); err != nil {
		return err
	}
	for i, name := range stmt.Names {
		fs.declare(name, base+i)
	}
	return nil
}

func (fs *funcState) assignStmt(stmt *ast.Assign) error {
	saved := fs.freeReg
	defer func() { fs.freeReg = saved }()
	slots, err := fs.prepareTargets(stmt.Targets)
	if err != nil {
		return tooComplex(err)
	}
	base, err := fs.reserve(len(stmt.Targets))
	if err != nil {
		return tooComplex(err)
	} else if err := fs.adjust(stmt.Exprs, base, len(stmt.Targets)); err != nil {
		return tooComplex(err)
	}
	for i, target := range stmt.Targets {
		if err := fs.store(target, base+i, slots[i]); err != nil {
			return err
		}
	}
	return nil
}

func (fs *funcState) functionStmt(stmt *ast.FunctionStmt) error {
	saved := fs.freeReg
	defer func() { fs.freeReg = saved }()
	val, err := fs.reserve(1)
	if err != nil {
		return err
	} else if err := fs.closure(stmt.Func, val); err != nil {
		return err
	}
	slots, err := fs.prepareTargets([]ast.Expr{stmt.Target})
	if err != nil {
		return err
	}
	return fs.store(stmt.Target, val, slots[0])
}

// prepareTargets evaluates the table and key of every indexed target.
func (fs *funcState) prepareTargets(targets []ast.Expr) ([]indexSlots, error) {
	slots := make([]indexSlots, len(targets))
	for i, target := range targets {
		index, ok := target.(*ast.Index)
		if !ok {
			continue
		}
		reg, err := fs.reserve(2)
		if err != nil {
			return nil, err
		} else if err := fs.expr(index.Obj, reg, reg+1); err != nil {
			return nil, err
		} else if err := fs.expr(index.Key, reg+1, reg+2); err != nil {
			return nil, err
		}
		slots[i] = indexSlots{table: reg, key: reg + 1}
	}
	return slots, nil
}

// store assigns the value in register val to target. Locals are written
// with SETLOCAL so that a captured local updates its shared cell.
func (fs *funcState) store(target ast.Expr, val int, slots indexSlots) error {
	switch target := target.(type) {
	case *ast.Name:
		switch target.Scoping {
		case ast.ScopingLocal:
			if reg, ok := fs.lookup(target.Name); ok {
				fs.emitAB(bytecode.SETLOCAL, reg, val)
				return nil
			}
		case ast.ScopingUpvalue:
			idx, err := fs.upvalue(target.Name)
			if err != nil {
				return err
			}
			fs.emitAB(bytecode.SETUPVAL, val, idx)
			return nil
		}
		fs.emitABx(bytecode.SETGLOBAL, val, fs.constant(target.Name))
	case *ast.Index:
		fs.emitABC(bytecode.SETTABLE, slots.table, slots.key, val)
	default:
		return errors.Errorf("cannot assign to %T", target)
	}
	return nil
}

func (fs *funcState) returnStmt(stmt *ast.Return) error {
	saved := fs.freeReg
	defer func() { fs.freeReg = saved }()
	base := fs.freeReg
	if len(stmt.Exprs) == 1 && !stmt.Multi {
		if name, ok := stmt.Exprs[0].(*ast.Name); ok && name.Scoping == ast.ScopingLocal {
			if reg, ok := fs.lookup(name.Name); ok {
				fs.emitAB(bytecode.RETURN, reg, 2)
				return nil
			}
		}
	}
	if stmt.Multi {
		if err := fs.exprList(stmt.Exprs, base, true); err != nil {
			return err
		}
		fs.emitAB(bytecode.RETURN, base, 0)
		return nil
	}
	if _, err := fs.reserve(len(stmt.Exprs)); err != nil {
		return err
	} else if err := fs.adjust(stmt.Exprs, base, len(stmt.Exprs)); err != nil {
		return err
	}
	fs.emitAB(bytecode.RETURN, base, len(stmt.Exprs)+1)
	return nil
}

// tooComplex reports running out of registers in an assignment as the
// assignment being too complex. Errors from nested functions already carry
// their own position and pass through.
func tooComplex(err error) error {
	var lerr *lerrors.Error
	if errors.As(err, &lerr) || !errors.Is(err, ErrTooManyLocals) {
		return err
	}
	return errors.WithStack(ErrTooComplex)
}

package codegen

import (
	"math"

	"github.com/pkg/errors"

	"github.com/airtrack/luna-sub000/src/ast"
	"github.com/airtrack/luna-sub000/src/bytecode"
)

// openEnd marks a target that takes every value an expression produces.
const openEnd = -1

var binaryOps = map[ast.BinaryOp]bytecode.Op{
	ast.OpAdd:    bytecode.ADD,
	ast.OpSub:    bytecode.SUB,
	ast.OpMul:    bytecode.MUL,
	ast.OpDiv:    bytecode.DIV,
	ast.OpPow:    bytecode.POW,
	ast.OpMod:    bytecode.MOD,
	ast.OpConcat: bytecode.CONCAT,
	ast.OpLt:     bytecode.LT,
	ast.OpLe:     bytecode.LE,
	ast.OpGt:     bytecode.GT,
	ast.OpGe:     bytecode.GE,
	ast.OpEq:     bytecode.EQ,
	ast.OpNe:     bytecode.NE,
}

var unaryOps = map[ast.UnaryOp]bytecode.Op{
	ast.OpNeg: bytecode.NEG,
	ast.OpNot: bytecode.NOT,
	ast.OpLen: bytecode.LEN,
}

// expr generates e so that registers [start, end) hold its values, padded
// with nil or truncated. With end == openEnd every value is left from start
// on and the stack top marks the last one. The register counter is the same
// afterwards as before.
func (fs *funcState) expr(e ast.Expr, start, end int) error {
	saved := fs.freeReg
	defer func() { fs.freeReg = saved }()
	if line := e.Line(); line > 0 {
		fs.line = line
	}
	liveTop := end
	if end == openEnd {
		liveTop = start + 1
	}
	if err := fs.growTo(liveTop); err != nil {
		return err
	}
	want := end - start

	switch e := e.(type) {
	case *ast.Call:
		return fs.call(e.Func, nil, "", e.Args, e.Multi, start, end, saved)
	case *ast.MethodCall:
		return fs.call(nil, e.Receiver, e.Method, e.Args, e.Multi, start, end, saved)
	case *ast.VarArg:
		if end == openEnd {
			fs.emitAB(bytecode.VARARG, start, 0)
		} else if want > 0 {
			fs.emitAB(bytecode.VARARG, start, want+1)
		}
		return nil
	case *ast.Nil:
		if end == openEnd {
			return errOpenTarget
		} else if want > 0 {
			fs.emitAB(bytecode.LOADNIL, start, want)
		}
		return nil
	case *ast.Paren:
		if end == openEnd {
			return errOpenTarget
		} else if want == 0 {
			return fs.expr(e.Inner, start, start)
		} else if err := fs.expr(e.Inner, start, start+1); err != nil {
			return err
		}
	default:
		if end == openEnd {
			return errOpenTarget
		} else if want == 0 {
			tmp, err := fs.reserve(1)
			if err != nil {
				return err
			}
			return fs.single(e, tmp)
		} else if err := fs.single(e, start); err != nil {
			return err
		}
	}
	if want > 1 {
		fs.emitAB(bytecode.LOADNIL, start+1, want-1)
	}
	return nil
}

// single generates an expression that has exactly one value into reg.
func (fs *funcState) single(e ast.Expr, reg int) error {
	switch e := e.(type) {
	case *ast.Bool:
		val := 0
		if e.Value {
			val = 1
		}
		fs.emitAB(bytecode.LOADBOOL, reg, val)
	case *ast.Number:
		fs.loadNumber(reg, e.Value)
	case *ast.String:
		fs.emitABx(bytecode.LOADK, reg, fs.constant(e.Value))
	case *ast.Function:
		return fs.closure(e, reg)
	case *ast.Table:
		return fs.table(e, reg)
	case *ast.Name:
		return fs.name(e, reg)
	case *ast.Index:
		obj, err := fs.operand(e.Obj)
		if err != nil {
			return err
		}
		key, err := fs.operand(e.Key)
		if err != nil {
			return err
		}
		fs.emitABC(bytecode.GETTABLE, reg, obj, key)
	case *ast.BinOp:
		return fs.binOp(e, reg)
	case *ast.UnOp:
		val, err := fs.operand(e.Operand)
		if err != nil {
			return err
		}
		fs.emitAB(unaryOps[e.Op], reg, val)
	default:
		return errors.Errorf("cannot generate %T", e)
	}
	return nil
}

// operand returns a register holding the value of e. Locals are read where
// they live, anything else goes into a fresh temporary.
func (fs *funcState) operand(e ast.Expr) (int, error) {
	if name, ok := e.(*ast.Name); ok && name.Scoping == ast.ScopingLocal {
		if reg, ok := fs.lookup(name.Name); ok {
			return reg, nil
		}
	}
	tmp, err := fs.reserve(1)
	if err != nil {
		return 0, err
	}
	return tmp, fs.expr(e, tmp, tmp+1)
}

func (fs *funcState) loadNumber(reg int, num float64) {
	negZero := num == 0 && math.Signbit(num)
	if num == math.Trunc(num) && num >= math.MinInt16 && num <= math.MaxInt16 && !negZero {
		fs.emit(bytecode.IAsBx(bytecode.LOADINT, fs.narrow(bytecode.LOADINT, "A", reg), int16(num)))
		return
	}
	fs.emitABx(bytecode.LOADK, reg, fs.constant(num))
}

func (fs *funcState) name(e *ast.Name, reg int) error {
	switch e.Scoping {
	case ast.ScopingLocal:
		src, ok := fs.lookup(e.Name)
		if !ok {
			break
		} else if src != reg {
			fs.emitAB(bytecode.MOVE, reg, src)
		}
		return nil
	case ast.ScopingUpvalue:
		idx, err := fs.upvalue(e.Name)
		if err != nil {
			return err
		}
		fs.emitAB(bytecode.GETUPVAL, reg, idx)
		return nil
	}
	fs.emitABx(bytecode.GETGLOBAL, reg, fs.constant(e.Name))
	return nil
}

func (fs *funcState) binOp(e *ast.BinOp, reg int) error {
	switch e.Op {
	case ast.OpAnd, ast.OpOr:
		if err := fs.expr(e.Left, reg, reg+1); err != nil {
			return err
		}
		op := bytecode.JMPFALSE
		if e.Op == ast.OpOr {
			op = bytecode.JMPTRUE
		}
		skip := fs.jump(op, reg)
		if err := fs.expr(e.Right, reg, reg+1); err != nil {
			return err
		}
		fs.patchHere(skip)
		return nil
	}
	left, err := fs.operand(e.Left)
	if err != nil {
		return err
	}
	right, err := fs.operand(e.Right)
	if err != nil {
		return err
	}
	fs.emitABC(binaryOps[e.Op], reg, left, right)
	return nil
}

// call generates a function or method call. The callee frame reuses every
// register above the function slot, so the call is placed at start only
// when nothing above the target is live. Otherwise it goes above the live
// registers and its results are moved down.
func (fs *funcState) call(fn, recv ast.Expr, method string, args []ast.Expr, multi bool, start, end, saved int) error {
	fnReg := start
	if end == openEnd && saved > start+1 {
		return errOpenTarget
	} else if end != openEnd && saved > end {
		fnReg = saved
	}
	argStart := fnReg + 1
	if recv != nil {
		if err := fs.growTo(fnReg + 3); err != nil {
			return err
		} else if err := fs.expr(recv, fnReg+1, fnReg+2); err != nil {
			return err
		}
		fs.emitABx(bytecode.LOADK, fnReg+2, fs.constant(method))
		fs.emitABC(bytecode.GETTABLE, fnReg, fnReg+1, fnReg+2)
		argStart = fnReg + 2
	} else {
		if err := fs.growTo(fnReg + 1); err != nil {
			return err
		} else if err := fs.expr(fn, fnReg, fnReg+1); err != nil {
			return err
		}
	}
	if err := fs.exprList(args, argStart, multi); err != nil {
		return err
	}
	b, c := 0, 0
	if !multi {
		b = argStart - fnReg + len(args)
	}
	if end != openEnd {
		c = end - start + 1
	}
	fs.emitABC(bytecode.CALL, fnReg, b, c)
	if fnReg != start {
		for i := 0; i < end-start; i++ {
			fs.emitAB(bytecode.MOVE, start+i, fnReg+i)
		}
	}
	return nil
}

// exprList evaluates exprs into consecutive registers from start. When multi
// is set the last one leaves all of its values and sets the stack top.
func (fs *funcState) exprList(exprs []ast.Expr, start int, multi bool) error {
	for i, e := range exprs {
		reg := start + i
		if err := fs.growTo(reg + 1); err != nil {
			return err
		}
		end := reg + 1
		if multi && i == len(exprs)-1 {
			end = openEnd
		}
		if err := fs.expr(e, reg, end); err != nil {
			return err
		}
	}
	return nil
}

// adjust evaluates exprs into exactly count reserved registers from start.
// The last expression fills the remaining registers, extra expressions are
// still evaluated and their values dropped.
func (fs *funcState) adjust(exprs []ast.Expr, start, count int) error {
	if len(exprs) == 0 {
		if count > 0 {
			fs.emitAB(bytecode.LOADNIL, start, count)
		}
		return nil
	}
	for i, e := range exprs {
		var err error
		switch {
		case i >= count:
			err = fs.expr(e, fs.freeReg, fs.freeReg)
		case i == len(exprs)-1:
			err = fs.expr(e, start+i, start+count)
		default:
			err = fs.expr(e, start+i, start+i+1)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// table generates a constructor. Positional fields get keys 1, 2, ... in
// order, and a trailing multi-value field stores all of its values with
// SETLIST.
func (fs *funcState) table(t *ast.Table, reg int) error {
	fs.emitAB(bytecode.NEWTABLE, reg, 0)
	pos := 1.0
	for i, field := range t.Fields {
		saved := fs.freeReg
		if line := field.Line(); line > 0 {
			fs.line = line
		}
		var err error
		switch field := field.(type) {
		case *ast.ArrayField:
			if t.Multi && i == len(t.Fields)-1 {
				err = fs.setList(reg, pos, field.Value)
			} else {
				err = fs.setField(reg, func(key int) error {
					fs.loadNumber(key, pos)
					return nil
				}, field.Value)
				pos++
			}
		case *ast.NamedField:
			err = fs.setField(reg, func(key int) error {
				fs.emitABx(bytecode.LOADK, key, fs.constant(field.Name))
				return nil
			}, field.Value)
		case *ast.IndexField:
			err = fs.setField(reg, func(key int) error {
				return fs.expr(field.Key, key, key+1)
			}, field.Value)
		}
		fs.freeReg = saved
		if err != nil {
			return err
		}
	}
	return nil
}

func (fs *funcState) setField(tbl int, loadKey func(int) error, value ast.Expr) error {
	key, err := fs.reserve(2)
	if err != nil {
		return err
	} else if err := loadKey(key); err != nil {
		return err
	} else if err := fs.expr(value, key+1, key+2); err != nil {
		return err
	}
	fs.emitABC(bytecode.SETTABLE, tbl, key, key+1)
	return nil
}

func (fs *funcState) setList(tbl int, pos float64, value ast.Expr) error {
	base, err := fs.reserve(2)
	if err != nil {
		return err
	}
	fs.emitAB(bytecode.MOVE, base, tbl)
	fs.loadNumber(base+1, pos)
	if err := fs.expr(value, base+2, openEnd); err != nil {
		return err
	}
	fs.emitAB(bytecode.SETLIST, base, 0)
	return nil
}

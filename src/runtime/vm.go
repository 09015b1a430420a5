package runtime

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/airtrack/luna-sub000/src/bytecode"
)

var forNumNames = []string{"initial", "limit", "step"}

// run executes frames until the call stack is back to stopDepth. It does not
// recurse for lua calls: execute returns whenever a frame is pushed or popped
// and the loop picks up whichever frame is on top.
func (s *State) run(stopDepth int) error {
	for len(s.calls) > stopDepth {
		if err := s.execute(s.frame()); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) reg(ci *callInfo, i int) any { return deref(s.stack[ci.base+i]) }

func (s *State) execute(ci *callInfo) error {
	cl := ci.closure
	proto := cl.proto
	code := proto.Instructions
	k := proto.Constants
	for {
		s.steps++
		if s.steps&0xFF == 0 {
			if err := s.ctx.Err(); err != nil {
				return s.runtimeErr(ci, fmt.Errorf("execution interrupted: %w", err))
			}
		}

		instruction := code[ci.pc]
		ci.pc++
		a := int(bytecode.GetA(instruction))
		ra := ci.base + a
		switch bytecode.GetOp(instruction) {
		case bytecode.LOADNIL:
			clear(s.stack[ra : ra+int(bytecode.GetB(instruction))])
		case bytecode.LOADBOOL:
			s.stack[ra] = bytecode.GetB(instruction) != 0
		case bytecode.LOADINT:
			s.stack[ra] = float64(bytecode.GetsBx(instruction))
		case bytecode.LOADK:
			s.stack[ra] = k[bytecode.GetBx(instruction)]
		case bytecode.MOVE:
			s.stack[ra] = s.reg(ci, int(bytecode.GetB(instruction)))
		case bytecode.SETLOCAL:
			val := s.reg(ci, int(bytecode.GetB(instruction)))
			if up, ok := s.stack[ra].(*Upvalue); ok {
				up.Value = val
			} else {
				s.stack[ra] = val
			}
		case bytecode.GETUPVAL:
			s.stack[ra] = cl.upvalues[bytecode.GetB(instruction)].Value
		case bytecode.SETUPVAL:
			cl.upvalues[bytecode.GetB(instruction)].Value = s.reg(ci, a)
		case bytecode.GETGLOBAL:
			s.stack[ra] = s.Globals.Get(k[bytecode.GetBx(instruction)])
		case bytecode.SETGLOBAL:
			if err := s.Globals.Set(k[bytecode.GetBx(instruction)], s.reg(ci, a)); err != nil {
				return s.runtimeErr(ci, err)
			}
		case bytecode.CLOSURE:
			s.stack[ra] = nil
			ncl := s.newClosure(ci, proto.Children[bytecode.GetBx(instruction)])
			if up, ok := s.stack[ra].(*Upvalue); ok {
				up.Value = ncl
			} else {
				s.stack[ra] = ncl
			}
			s.maybeCollect()
		case bytecode.CALL:
			nargs := int(bytecode.GetB(instruction)) - 1
			if nargs < 0 {
				nargs = s.top - ra - 1
			}
			isLua, err := s.precall(ra, nargs, int(bytecode.GetC(instruction))-1)
			if err != nil {
				return s.callErr(ci, a, err)
			} else if isLua {
				return nil
			}
			s.maybeCollect()
		case bytecode.VARARG:
			n := int(bytecode.GetB(instruction)) - 1
			if n < 0 {
				n = ci.numVarArgs
				if err := s.ensureStack(ra + n); err != nil {
					return s.runtimeErr(ci, err)
				}
				s.top = ra + n
			}
			for i := 0; i < n; i++ {
				var val any
				if i < ci.numVarArgs {
					val = s.stack[ci.varargBase+i]
				}
				s.stack[ra+i] = val
			}
		case bytecode.RETURN:
			n := int(bytecode.GetB(instruction)) - 1
			if n < 0 {
				n = s.top - ra
			}
			for i := 0; i < n; i++ {
				s.stack[ra+i] = deref(s.stack[ra+i])
			}
			s.calls = s.calls[:len(s.calls)-1]
			if err := s.moveResults(ra, n, ci.funcIdx, ci.expected); err != nil {
				return s.runtimeErr(ci, err)
			}
			if ci.expected != ResultsAny {
				if caller := s.frame(); caller != nil && caller.closure != nil {
					s.top = caller.base + caller.closure.proto.MaxRegisters
				}
			}
			return nil
		case bytecode.JMP:
			ci.pc += int(bytecode.GetsBx(instruction))
		case bytecode.JMPFALSE:
			if !toBool(s.reg(ci, a)) {
				ci.pc += int(bytecode.GetsBx(instruction))
			}
		case bytecode.JMPTRUE:
			if toBool(s.reg(ci, a)) {
				ci.pc += int(bytecode.GetsBx(instruction))
			}
		case bytecode.JMPNIL:
			if s.reg(ci, a) == nil {
				ci.pc += int(bytecode.GetsBx(instruction))
			}
		case bytecode.NEG:
			b := int(bytecode.GetB(instruction))
			num, ok := s.reg(ci, b).(float64)
			if !ok {
				return s.unaryErr(ci, "negate", b)
			}
			s.stack[ra] = -num
		case bytecode.NOT:
			s.stack[ra] = !toBool(s.reg(ci, int(bytecode.GetB(instruction))))
		case bytecode.LEN:
			b := int(bytecode.GetB(instruction))
			switch val := s.reg(ci, b).(type) {
			case *String:
				s.stack[ra] = float64(len(val.val))
			case *Table:
				s.stack[ra] = float64(val.Len())
			default:
				return s.unaryErr(ci, "get length of", b)
			}
		case bytecode.ADD, bytecode.SUB, bytecode.MUL, bytecode.DIV, bytecode.POW, bytecode.MOD:
			b, c := int(bytecode.GetB(instruction)), int(bytecode.GetC(instruction))
			lval, lok := s.reg(ci, b).(float64)
			rval, rok := s.reg(ci, c).(float64)
			if !lok || !rok {
				return s.arithErr(ci, arithNames[bytecode.GetOp(instruction)], b, c)
			}
			s.stack[ra] = arith(bytecode.GetOp(instruction), lval, rval)
		case bytecode.CONCAT:
			b, c := int(bytecode.GetB(instruction)), int(bytecode.GetC(instruction))
			lval, lok := concatString(s.reg(ci, b))
			rval, rok := concatString(s.reg(ci, c))
			if !lok || !rok {
				return s.arithErr(ci, "concat", b, c)
			}
			s.stack[ra] = s.NewString(lval + rval)
			s.maybeCollect()
		case bytecode.LT, bytecode.LE, bytecode.GT, bytecode.GE:
			b, c := int(bytecode.GetB(instruction)), int(bytecode.GetC(instruction))
			res, ok := compare(bytecode.GetOp(instruction), s.reg(ci, b), s.reg(ci, c))
			if !ok {
				return s.compareErr(ci, b, c)
			}
			s.stack[ra] = res
		case bytecode.EQ:
			s.stack[ra] = valuesEqual(s.reg(ci, int(bytecode.GetB(instruction))), s.reg(ci, int(bytecode.GetC(instruction))))
		case bytecode.NE:
			s.stack[ra] = !valuesEqual(s.reg(ci, int(bytecode.GetB(instruction))), s.reg(ci, int(bytecode.GetC(instruction))))
		case bytecode.NEWTABLE:
			s.stack[ra] = s.NewTable()
			s.maybeCollect()
		case bytecode.SETTABLE:
			key, val := s.reg(ci, int(bytecode.GetB(instruction))), s.reg(ci, int(bytecode.GetC(instruction)))
			if err := s.setIndex(s.reg(ci, a), key, val); err != nil {
				return s.indexErr(ci, a, int(bytecode.GetB(instruction)), err)
			}
		case bytecode.GETTABLE:
			b, c := int(bytecode.GetB(instruction)), int(bytecode.GetC(instruction))
			val, err := s.index(s.reg(ci, b), s.reg(ci, c))
			if err != nil {
				return s.indexErr(ci, b, c, err)
			}
			s.stack[ra] = val
		case bytecode.SETLIST:
			tbl, ok := s.reg(ci, a).(*Table)
			if !ok {
				return s.unaryErr(ci, "index", a)
			}
			n := int(bytecode.GetB(instruction)) - 1
			if n < 0 {
				n = s.top - ra - 2
			}
			start, _ := s.reg(ci, a+1).(float64)
			for i := 0; i < n; i++ {
				if err := tbl.Set(start+float64(i), s.reg(ci, a+2+i)); err != nil {
					return s.runtimeErr(ci, err)
				}
			}
		case bytecode.FORINIT:
			for i, name := range forNumNames {
				if _, ok := s.reg(ci, a+i).(float64); !ok {
					return s.runtimeErr(ci, fmt.Errorf("'for' %s value must be a number", name))
				}
			}
		case bytecode.FORSTEP:
			num := s.reg(ci, a).(float64)
			limit := s.reg(ci, int(bytecode.GetB(instruction))).(float64)
			step := s.reg(ci, int(bytecode.GetC(instruction))).(float64)
			if (step <= 0 || num <= limit) && (step > 0 || num >= limit) {
				ci.pc++
			}
		default:
			return s.runtimeErr(ci, fmt.Errorf("unknown opcode %v", bytecode.GetOp(instruction)))
		}
	}
}

func (s *State) newClosure(ci *callInfo, proto *Function) *Closure {
	parent := ci.closure
	ncl := &Closure{proto: proto, upvalues: make([]*Upvalue, len(proto.Upvalues))}
	for i, desc := range proto.Upvalues {
		if !desc.ParentLocal {
			ncl.upvalues[i] = parent.upvalues[desc.Index]
			continue
		}
		slot := ci.base + desc.Index
		up, ok := s.stack[slot].(*Upvalue)
		if !ok {
			up = &Upvalue{Value: s.stack[slot]}
			s.Heap.track(up)
			s.stack[slot] = up
		}
		ncl.upvalues[i] = up
	}
	s.Heap.track(ncl)
	return ncl
}

func (s *State) callErr(ci *callInfo, a int, err error) error {
	if strings.HasPrefix(err.Error(), "attempt to call") {
		err = fmt.Errorf("%w%s", err, s.describe(ci, a))
	}
	return s.runtimeErr(ci, err)
}

func (s *State) indexErr(ci *callInfo, obj, key int, err error) error {
	if errors.Is(err, errNotIndexable) {
		err = fmt.Errorf("attempt to index a %s value%s", typeName(s.reg(ci, obj)), s.describe(ci, obj))
	}
	return s.runtimeErr(ci, err)
}

var errNotIndexable = errors.New("not indexable")

// index reads a field of a table or a userdata with a metatable.
func (s *State) index(obj, key any) (any, error) {
	switch tobj := obj.(type) {
	case *Table:
		return tobj.Get(key), nil
	case *String:
		if s.strLib == nil {
			return nil, errNotIndexable
		}
		return s.strLib.Get(key), nil
	case *UserData:
		if tobj.metatable == nil {
			return nil, errNotIndexable
		}
		if fields, ok := tobj.metatable.Get(s.NewString("__index")).(*Table); ok {
			return fields.Get(key), nil
		}
		return nil, nil
	default:
		return nil, errNotIndexable
	}
}

func (s *State) setIndex(obj, key, val any) error {
	switch tobj := obj.(type) {
	case *Table:
		return tobj.Set(key, val)
	case *UserData:
		if tobj.metatable == nil {
			return errNotIndexable
		}
		if fields, ok := tobj.metatable.Get(s.NewString("__newindex")).(*Table); ok {
			return fields.Set(key, val)
		}
		return fmt.Errorf("attempt to set field '%s' of a userdata value", ToString(key))
	default:
		return errNotIndexable
	}
}

var arithNames = map[bytecode.Op]string{
	bytecode.ADD: "add",
	bytecode.SUB: "sub",
	bytecode.MUL: "mul",
	bytecode.DIV: "div",
	bytecode.POW: "pow",
	bytecode.MOD: "mod",
}

func arith(op bytecode.Op, lval, rval float64) float64 {
	switch op {
	case bytecode.ADD:
		return lval + rval
	case bytecode.SUB:
		return lval - rval
	case bytecode.MUL:
		return lval * rval
	case bytecode.DIV:
		return lval / rval
	case bytecode.POW:
		return math.Pow(lval, rval)
	default:
		return lval - math.Floor(lval/rval)*rval
	}
}

func concatString(val any) (string, bool) {
	switch tval := val.(type) {
	case *String:
		return tval.val, true
	case float64:
		return numberToString(tval), true
	default:
		return "", false
	}
}

func compare(op bytecode.Op, lval, rval any) (bool, bool) {
	var cmp int
	switch tl := lval.(type) {
	case float64:
		tr, ok := rval.(float64)
		if !ok {
			return false, false
		}
		switch {
		case tl < tr:
			cmp = -1
		case tl > tr:
			cmp = 1
		case tl != tr:
			return false, true
		}
	case *String:
		tr, ok := rval.(*String)
		if !ok {
			return false, false
		}
		cmp = strings.Compare(tl.val, tr.val)
	default:
		return false, false
	}
	switch op {
	case bytecode.LT:
		return cmp < 0, true
	case bytecode.LE:
		return cmp <= 0, true
	case bytecode.GT:
		return cmp > 0, true
	default:
		return cmp >= 0, true
	}
}

// valuesEqual compares by value for numbers, booleans and strings and by
// identity for everything else.
func valuesEqual(lval, rval any) bool {
	if ls, ok := lval.(*String); ok {
		rs, ok := rval.(*String)
		return ok && (ls == rs || ls.val == rs.val)
	}
	return lval == rval
}

package runtime

import (
	"errors"
	"fmt"

	"github.com/airtrack/luna-sub000/src/bytecode"
	"github.com/airtrack/luna-sub000/src/lerrors"
)

// hostError marks an error reported by a native function so it is raised as
// a host error at the call site.
type hostError struct {
	err error
}

func (err *hostError) Error() string { return err.err.Error() }
func (err *hostError) Unwrap() error { return err.err }

// runtimeErr attaches the module and line of the running instruction.
func (s *State) runtimeErr(ci *callInfo, err error) error {
	var lerr *lerrors.Error
	if errors.As(err, &lerr) {
		return lerr
	}
	kind := lerrors.RuntimeErr
	var herr *hostError
	if errors.As(err, &herr) {
		kind = lerrors.HostErr
		err = herr.err
	}
	proto := ci.closure.proto
	var line int64
	if pc := ci.pc - 1; pc >= 0 && pc < len(proto.Lines) {
		line = proto.Lines[pc]
	}
	return &lerrors.Error{Kind: kind, Module: proto.Module, Line: line, Err: err}
}

func (s *State) arithErr(ci *callInfo, op string, b, c int) error {
	bVal, cVal := s.reg(ci, b), s.reg(ci, c)
	culprit := b
	if _, isNum := bVal.(float64); isNum {
		culprit = c
	}
	return s.runtimeErr(ci, fmt.Errorf("attempt to %s %s with %s%s",
		op, typeName(bVal), typeName(cVal), s.describe(ci, culprit)))
}

func (s *State) unaryErr(ci *callInfo, op string, b int) error {
	return s.runtimeErr(ci, fmt.Errorf("attempt to %s a %s value%s", op, typeName(s.reg(ci, b)), s.describe(ci, b)))
}

func (s *State) compareErr(ci *callInfo, b, c int) error {
	return s.runtimeErr(ci, fmt.Errorf("attempt to compare %s with %s",
		typeName(s.reg(ci, b)), typeName(s.reg(ci, c))))
}

// describe names where the value in a register came from, scanning back
// from the failing instruction for the last one that wrote it. It is only a
// best effort since jumps are ignored.
func (s *State) describe(ci *callInfo, reg int) string {
	if name := describeRegister(ci.closure.proto, reg, ci.pc-1); name != "" {
		return " (" + name + ")"
	}
	return ""
}

func describeRegister(proto *Function, reg, pc int) string {
	if name, ok := proto.localName(reg, pc); ok {
		return fmt.Sprintf("local '%s'", name)
	}
	for i := pc - 1; i >= 0; i-- {
		inst := proto.Instructions[i]
		if !bytecode.WritesA(inst) || int(bytecode.GetA(inst)) != reg {
			continue
		}
		switch bytecode.GetOp(inst) {
		case bytecode.GETGLOBAL:
			return fmt.Sprintf("global '%s'", ToString(proto.Constants[bytecode.GetBx(inst)]))
		case bytecode.GETUPVAL:
			return fmt.Sprintf("upvalue '%s'", proto.Upvalues[bytecode.GetB(inst)].Name)
		case bytecode.GETTABLE:
			if key, ok := constantString(proto, int(bytecode.GetC(inst)), i); ok {
				return fmt.Sprintf("field '%s'", key)
			}
		case bytecode.MOVE:
			if name, ok := proto.localName(int(bytecode.GetB(inst)), i); ok {
				return fmt.Sprintf("local '%s'", name)
			}
		}
		return ""
	}
	return ""
}

// constantString finds the string constant loaded into reg before pc.
func constantString(proto *Function, reg, pc int) (string, bool) {
	for i := pc - 1; i >= 0; i-- {
		inst := proto.Instructions[i]
		if !bytecode.WritesA(inst) || int(bytecode.GetA(inst)) != reg {
			continue
		}
		if bytecode.GetOp(inst) == bytecode.LOADK {
			if str, ok := proto.Constants[bytecode.GetBx(inst)].(*String); ok {
				return str.val, true
			}
		}
		return "", false
	}
	return "", false
}

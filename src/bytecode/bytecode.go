// Package bytecode handles formatting uint32 values which have meaning for the
// vm.
package bytecode

import (
	"fmt"
)

type (
	// Op is the descriptor of which kind of instruction each bytecode is.
	Op uint8
	// Type is a descriptor of what format an instruction has.
	Type string
)

const (
	// TypeABC is an instruction with an a b and c param all uint8.
	TypeABC Type = "iABC"
	// TypeABx is an instruction with an a uint8 and b uint16 param.
	TypeABx Type = "iABx"
	// TypeAsBx is an instruction with an a uint8 and b int16 param.
	TypeAsBx Type = "iAsBx"
)

const (
	// LOADNIL A B: R(A) .. R(A+B-1) = nil.
	LOADNIL Op = iota
	// LOADBOOL A B: R(A) = B != 0.
	LOADBOOL
	// LOADINT A sBx: R(A) = sBx.
	LOADINT
	// LOADK A Bx: R(A) = K(Bx).
	LOADK
	// MOVE A B: R(A) = R(B), overwriting whatever R(A) held.
	MOVE
	// SETLOCAL A B: R(A) = R(B), writing through R(A) if it was captured.
	SETLOCAL
	// GETUPVAL A B: R(A) = Upval(B).
	GETUPVAL
	// SETUPVAL A B: Upval(B) = R(A).
	SETUPVAL
	// GETGLOBAL A Bx: R(A) = Globals[K(Bx)].
	GETGLOBAL
	// SETGLOBAL A Bx: Globals[K(Bx)] = R(A).
	SETGLOBAL
	// CLOSURE A Bx: R(A) = closure(Children(Bx)).
	CLOSURE
	// CALL A B C: R(A) .. R(A+C-2) = R(A)(R(A+1) .. R(A+B-1)).
	CALL
	// VARARG A B: R(A) .. R(A+B-2) = vararg.
	VARARG
	// RETURN A B: return R(A) .. R(A+B-2).
	RETURN
	// JMP sBx: pc += sBx.
	JMP
	// JMPFALSE A sBx: if not R(A) then pc += sBx.
	JMPFALSE
	// JMPTRUE A sBx: if R(A) then pc += sBx.
	JMPTRUE
	// JMPNIL A sBx: if R(A) == nil then pc += sBx.
	JMPNIL
	// NEG A B: R(A) = -R(B).
	NEG
	// NOT A B: R(A) = not R(B).
	NOT
	// LEN A B: R(A) = #R(B).
	LEN
	// ADD A B C: R(A) = R(B) + R(C).
	ADD
	// SUB A B C: R(A) = R(B) - R(C).
	SUB
	// MUL A B C: R(A) = R(B) * R(C).
	MUL
	// DIV A B C: R(A) = R(B) / R(C).
	DIV
	// POW A B C: R(A) = R(B) ^ R(C).
	POW
	// MOD A B C: R(A) = R(B) % R(C).
	MOD
	// CONCAT A B C: R(A) = R(B) .. R(C).
	CONCAT
	// LT A B C: R(A) = R(B) < R(C).
	LT
	// LE A B C: R(A) = R(B) <= R(C).
	LE
	// GT A B C: R(A) = R(B) > R(C).
	GT
	// GE A B C: R(A) = R(B) >= R(C).
	GE
	// EQ A B C: R(A) = R(B) == R(C).
	EQ
	// NE A B C: R(A) = R(B) ~= R(C).
	NE
	// NEWTABLE A: R(A) = {}.
	NEWTABLE
	// SETTABLE A B C: R(A)[R(B)] = R(C).
	SETTABLE
	// GETTABLE A B C: R(A) = R(B)[R(C)].
	GETTABLE
	// SETLIST A B: R(A)[R(A+1)+i] = R(A+2+i) for 0 <= i < B-1, up to top when B is 0.
	SETLIST
	// FORINIT A B C: check that R(A), R(B) and R(C) are numbers.
	FORINIT
	// FORSTEP A B C: run the following JMP when the loop R(A), limit R(B),
	// step R(C) is done, skip it otherwise.
	FORSTEP
)

var opcodeToString = map[Op]string{
	LOADNIL:   "LOADNIL",
	LOADBOOL:  "LOADBOOL",
	LOADINT:   "LOADINT",
	LOADK:     "LOADK",
	MOVE:      "MOVE",
	SETLOCAL:  "SETLOCAL",
	GETUPVAL:  "GETUPVAL",
	SETUPVAL:  "SETUPVAL",
	GETGLOBAL: "GETGLOBAL",
	SETGLOBAL: "SETGLOBAL",
	CLOSURE:   "CLOSURE",
	CALL:      "CALL",
	VARARG:    "VARARG",
	RETURN:    "RETURN",
	JMP:       "JMP",
	JMPFALSE:  "JMPFALSE",
	JMPTRUE:   "JMPTRUE",
	JMPNIL:    "JMPNIL",
	NEG:       "NEG",
	NOT:       "NOT",
	LEN:       "LEN",
	ADD:       "ADD",
	SUB:       "SUB",
	MUL:       "MUL",
	DIV:       "DIV",
	POW:       "POW",
	MOD:       "MOD",
	CONCAT:    "CONCAT",
	LT:        "LT",
	LE:        "LE",
	GT:        "GT",
	GE:        "GE",
	EQ:        "EQ",
	NE:        "NE",
	NEWTABLE:  "NEWTABLE",
	SETTABLE:  "SETTABLE",
	GETTABLE:  "GETTABLE",
	SETLIST:   "SETLIST",
	FORINIT:   "FORINIT",
	FORSTEP:   "FORSTEP",
}

// Format values in the 32 bit opcode.
const (
	aShift     = 8
	bShift     = aShift + 8
	cShift     = bShift + 8
	maskByte   = 0xFF
	mask2Bytes = 0xFFFF
)

// IABC creates a new bytecode instruction with the format
// | C: u8 | B: u8 | A: u8 | Opcode: u8 |.
func IABC(op Op, a uint8, b uint8, c uint8) uint32 {
	return uint32(c)<<cShift | uint32(b)<<bShift | uint32(a)<<aShift | uint32(op)
}

// IAB is a helper to create an IABC instruction without a c param.
func IAB(op Op, a uint8, b uint8) uint32 { return IABC(op, a, b, 0) }

// IABx creates an instruction with a register and a uint16 value usually load constant.
func IABx(op Op, a uint8, b uint16) uint32 { return uint32(b)<<bShift | uint32(a)<<aShift | uint32(op) }

// IAsBx creates an instruction with a register and a signed int16 value often used for jumps.
func IAsBx(op Op, a uint8, b int16) uint32 {
	return uint32(uint16(b))<<bShift | uint32(a)<<aShift | uint32(op)
}

// GetOp gets what type of instruction it is. Used for the switch in the vm.
func GetOp(bc uint32) Op { return Op(bc & maskByte) }

// GetA gets the a param in all of the instructions.
func GetA(bc uint32) int64 { return int64(bc >> aShift & maskByte) }

// GetB gets the b param in IABC instructions.
func GetB(bc uint32) int64 { return int64(bc >> bShift & maskByte) }

// GetC gets the c param in IABC instructions.
func GetC(bc uint32) int64 { return int64(bc >> cShift & maskByte) }

// GetBx gets the b param in IABx instructions.
func GetBx(bc uint32) int64 { return int64(bc >> bShift & mask2Bytes) }

// GetsBx gets the b param in IAsBx instructions.
func GetsBx(bc uint32) int64 { return int64(int16(bc >> bShift & mask2Bytes)) }

// SetsBx replaces the jump offset of an already encoded IAsBx instruction,
// used when patching forward jumps.
func SetsBx(bc uint32, b int16) uint32 {
	return bc&^(mask2Bytes<<bShift) | uint32(uint16(b))<<bShift
}

func (op Op) String() string {
	if name, ok := opcodeToString[op]; ok {
		return name
	}
	return "UNDEFINED"
}

// ToString will format an instruction to be understandable.
func ToString(bc uint32) string {
	op := GetOp(bc)
	switch Kind(bc) {
	case TypeABx:
		return fmt.Sprintf("%-10v %-5v %-5v %-5v", op, GetA(bc), GetBx(bc), "")
	case TypeAsBx:
		return fmt.Sprintf("%-10v %-5v %-5v %-5v", op, GetA(bc), GetsBx(bc), "")
	default:
		return fmt.Sprintf("%-10v %-5v %-5v %-5v", op, GetA(bc), GetB(bc), GetC(bc))
	}
}

// Kind will return which type of bytecode it is, iABC, iABx, iAsBx.
func Kind(bc uint32) Type {
	switch GetOp(bc) {
	case LOADK, GETGLOBAL, SETGLOBAL, CLOSURE:
		return TypeABx
	case LOADINT, JMP, JMPFALSE, JMPTRUE, JMPNIL:
		return TypeAsBx
	default:
		return TypeABC
	}
}

// WritesA reports whether executing the instruction overwrites register A.
// Used to recover operand names for error messages.
func WritesA(bc uint32) bool {
	switch GetOp(bc) {
	case SETUPVAL, SETGLOBAL, RETURN, JMP, JMPFALSE, JMPTRUE, JMPNIL, SETTABLE, SETLIST, FORINIT, FORSTEP:
		return false
	default:
		return true
	}
}

package runtime

import (
	"fmt"
	"strings"

	"github.com/airtrack/luna-sub000/src/bytecode"
)

type (
	// Function is the compiled prototype of a lua function. It is built by the
	// code generator and never changes after that. Closures share it.
	Function struct {
		gcHeader
		Instructions []uint32
		Lines        []int64
		Constants    []any
		Children     []*Function
		Upvalues     []UpvalueDesc
		LocalVars    []LocalVar
		NumParams    int
		IsVararg     bool
		Module       string
		Name         string
		Line         int64
		MaxRegisters int
		// Parent is only followed by the collector.
		Parent    *Function
		constants map[any]int
	}
	// UpvalueDesc describes where a closure finds an upvalue when it is
	// created. ParentLocal upvalues capture register Index of the enclosing
	// frame, the others copy upvalue Index of the enclosing closure.
	UpvalueDesc struct {
		Name        string
		ParentLocal bool
		Index       int
	}
	// LocalVar is the debug range [BeginPC, EndPC) in which Register holds Name.
	LocalVar struct {
		Name     string
		Register int
		BeginPC  int
		EndPC    int
	}
)

// NewFunction creates an empty prototype.
func NewFunction(module, name string, line int64, parent *Function) *Function {
	return &Function{
		Module:    module,
		Name:      name,
		Line:      line,
		Parent:    parent,
		constants: map[any]int{},
	}
}

// AddInstruction appends an instruction and returns its index.
func (fn *Function) AddInstruction(inst uint32, line int64) int {
	fn.Instructions = append(fn.Instructions, inst)
	fn.Lines = append(fn.Lines, line)
	return len(fn.Instructions) - 1
}

// SetInstruction replaces an already emitted instruction.
func (fn *Function) SetInstruction(pc int, inst uint32) { fn.Instructions[pc] = inst }

// PC is the index the next instruction will get.
func (fn *Function) PC() int { return len(fn.Instructions) }

// AddConstant adds a number or string constant once and returns its index.
func (fn *Function) AddConstant(val any) int {
	key := hashKey(val)
	if idx, ok := fn.constants[key]; ok {
		return idx
	}
	fn.Constants = append(fn.Constants, val)
	fn.constants[key] = len(fn.Constants) - 1
	return len(fn.Constants) - 1
}

// AddChild registers a nested prototype.
func (fn *Function) AddChild(child *Function) int {
	fn.Children = append(fn.Children, child)
	return len(fn.Children) - 1
}

// AddUpvalue appends an upvalue descriptor.
func (fn *Function) AddUpvalue(name string, parentLocal bool, index int) int {
	fn.Upvalues = append(fn.Upvalues, UpvalueDesc{Name: name, ParentLocal: parentLocal, Index: index})
	return len(fn.Upvalues) - 1
}

// FindUpvalue returns the index of an existing upvalue or -1.
func (fn *Function) FindUpvalue(name string) int {
	for i, desc := range fn.Upvalues {
		if desc.Name == name {
			return i
		}
	}
	return -1
}

// AddLocalVar records the debug range of a local.
func (fn *Function) AddLocalVar(name string, register, begin, end int) {
	fn.LocalVars = append(fn.LocalVars, LocalVar{Name: name, Register: register, BeginPC: begin, EndPC: end})
}

// localName finds the local that occupies register at pc.
func (fn *Function) localName(register, pc int) (string, bool) {
	for _, local := range fn.LocalVars {
		if local.Register == register && local.BeginPC <= pc && pc < local.EndPC {
			return local.Name, true
		}
	}
	return "", false
}

func (fn *Function) trace(m *marker) {
	for _, k := range fn.Constants {
		m.mark(k)
	}
	for _, child := range fn.Children {
		m.mark(child)
	}
	if fn.Parent != nil {
		m.mark(fn.Parent)
	}
}

func (fn *Function) String() string {
	var out strings.Builder
	name := fn.Name
	if name == "" {
		name = "<anonymous>"
	}
	vararg := ""
	if fn.IsVararg {
		vararg = "+"
	}
	fmt.Fprintf(&out, "function %s <%s:%d> (%d instructions)\n", name, fn.Module, fn.Line, len(fn.Instructions))
	fmt.Fprintf(&out, "%d%s params, %d registers, %d upvalues, %d locals, %d constants, %d functions\n",
		fn.NumParams, vararg, fn.MaxRegisters, len(fn.Upvalues), len(fn.LocalVars), len(fn.Constants), len(fn.Children))
	for pc, inst := range fn.Instructions {
		fmt.Fprintf(&out, "\t%d\t[%d]\t%s", pc+1, fn.Lines[pc], bytecode.ToString(inst))
		switch bytecode.GetOp(inst) {
		case bytecode.LOADK, bytecode.GETGLOBAL, bytecode.SETGLOBAL:
			fmt.Fprintf(&out, "\t; %s", quoteConstant(fn.Constants[bytecode.GetBx(inst)]))
		case bytecode.JMP, bytecode.JMPFALSE, bytecode.JMPTRUE, bytecode.JMPNIL:
			fmt.Fprintf(&out, "\t; to %d", int64(pc)+bytecode.GetsBx(inst)+2)
		}
		out.WriteString("\n")
	}
	if len(fn.Constants) > 0 {
		fmt.Fprintf(&out, "constants (%d)\n", len(fn.Constants))
		for i, k := range fn.Constants {
			fmt.Fprintf(&out, "\t%d\t%s\n", i, quoteConstant(k))
		}
	}
	if len(fn.LocalVars) > 0 {
		fmt.Fprintf(&out, "locals (%d)\n", len(fn.LocalVars))
		for _, local := range fn.LocalVars {
			fmt.Fprintf(&out, "\t%s\tr%d\t%d\t%d\n", local.Name, local.Register, local.BeginPC+1, local.EndPC+1)
		}
	}
	if len(fn.Upvalues) > 0 {
		fmt.Fprintf(&out, "upvalues (%d)\n", len(fn.Upvalues))
		for i, up := range fn.Upvalues {
			fmt.Fprintf(&out, "\t%d\t%s\t%v\t%d\n", i, up.Name, up.ParentLocal, up.Index)
		}
	}
	for _, child := range fn.Children {
		out.WriteString("\n")
		out.WriteString(child.String())
	}
	return out.String()
}

func quoteConstant(k any) string {
	if str, ok := k.(*String); ok {
		return fmt.Sprintf("%q", str.val)
	}
	return ToString(k)
}

package codegen

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airtrack/luna-sub000/src/ast"
	"github.com/airtrack/luna-sub000/src/bytecode"
	"github.com/airtrack/luna-sub000/src/conf"
	"github.com/airtrack/luna-sub000/src/lerrors"
	"github.com/airtrack/luna-sub000/src/parse"
	"github.com/airtrack/luna-sub000/src/runtime"
	"github.com/airtrack/luna-sub000/src/semantic"
)

func analyzed(t *testing.T, src string) *ast.Chunk {
	t.Helper()
	chunk, err := parse.Parse("test", strings.NewReader(src))
	require.NoError(t, err)
	require.NoError(t, semantic.Analyze(chunk))
	return chunk
}

func compile(t *testing.T, src string) (*runtime.State, *runtime.Function, error) {
	t.Helper()
	state := runtime.NewState(context.Background(), conf.Default())
	proto, err := Generate(state, analyzed(t, src))
	return state, proto, err
}

func run(t *testing.T, src string) ([]any, error) {
	t.Helper()
	state, proto, err := compile(t, src)
	require.NoError(t, err)
	return state.Call(state.NewClosure(proto))
}

func assertByteCodes(t *testing.T, fn *runtime.Function, codes ...uint32) {
	t.Helper()
	require.Len(t, fn.Instructions, len(codes), fn.String())
	for i, code := range codes {
		assert.Equal(t, bytecode.ToString(code), bytecode.ToString(fn.Instructions[i]), "instruction %d", i)
	}
}

func TestGenerate_LocalArith(t *testing.T) {
	t.Parallel()
	_, fn, err := compile(t, `local a = 1 + x`)
	require.NoError(t, err)
	assertByteCodes(t, fn,
		bytecode.IAsBx(bytecode.LOADINT, 1, 1),
		bytecode.IABx(bytecode.GETGLOBAL, 2, 0),
		bytecode.IABC(bytecode.ADD, 0, 1, 2),
		bytecode.IAB(bytecode.RETURN, 0, 1),
	)
	require.Len(t, fn.Constants, 1)
	assert.Equal(t, "x", runtime.ToString(fn.Constants[0]))
	assert.Equal(t, 3, fn.MaxRegisters)
	assert.Equal(t, []runtime.LocalVar{{Name: "a", Register: 0, BeginPC: 3, EndPC: 3}}, fn.LocalVars)
}

func TestGenerate_MethodCall(t *testing.T) {
	t.Parallel()
	_, fn, err := compile(t, `obj:m(1)`)
	require.NoError(t, err)
	assertByteCodes(t, fn,
		bytecode.IABx(bytecode.GETGLOBAL, 1, 0),
		bytecode.IABx(bytecode.LOADK, 2, 1),
		bytecode.IABC(bytecode.GETTABLE, 0, 1, 2),
		bytecode.IAsBx(bytecode.LOADINT, 2, 1),
		bytecode.IABC(bytecode.CALL, 0, 3, 1),
		bytecode.IAB(bytecode.RETURN, 0, 1),
	)
}

func TestGenerate_AssignLocalWritesThrough(t *testing.T) {
	t.Parallel()
	_, fn, err := compile(t, `local a a = 2`)
	require.NoError(t, err)
	assertByteCodes(t, fn,
		bytecode.IAB(bytecode.LOADNIL, 0, 1),
		bytecode.IAsBx(bytecode.LOADINT, 1, 2),
		bytecode.IAB(bytecode.SETLOCAL, 0, 1),
		bytecode.IAB(bytecode.RETURN, 0, 1),
	)
}

func TestExprRestoresRegisters(t *testing.T) {
	t.Parallel()
	testcases := []string{
		`1 + 2 * x`,
		`f(a, b, ...)`,
		`o:m(1, g())`,
		`{1, 2, x = 3, [y] = 4, f()}`,
		`a and b or c`,
		`function(p) return p + x end`,
		`t.x.y[z]`,
		`#t`,
		`not (f())`,
		`"str" .. 1`,
		`...`,
	}
	for _, src := range testcases {
		src := src
		for _, start := range []int{0, 3, 10} {
			start := start
			t.Run(fmt.Sprintf("%s at %d", src, start), func(t *testing.T) {
				t.Parallel()
				state := runtime.NewState(context.Background(), conf.Default())
				chunk := analyzed(t, "return "+src)
				expr := chunk.Block.Stmts[0].(*ast.Return).Exprs[0]
				fs := newFuncState(&generator{module: "test", strings: state}, nil, "test", 1)
				fs.proto.IsVararg = true
				fs.enterBlock()
				fs.freeReg = start
				require.NoError(t, fs.expr(expr, start, start+1))
				assert.Equal(t, start, fs.freeReg)
				require.NoError(t, fs.expr(expr, start, start+3))
				assert.Equal(t, start, fs.freeReg)
				require.NoError(t, fs.err)
			})
		}
	}
}

func TestLocalShadowing(t *testing.T) {
	t.Parallel()
	res, err := run(t, `
local i = 1
local i = i
local j = 10
do
	local j = j + 1
	k = j
end
return i, j, k`)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 10.0, 11.0}, res)
}

func TestUpvalueSharing(t *testing.T) {
	t.Parallel()
	res, err := run(t, `
local x = 1
local function a() return x end
local function b() x = 2 end
b()
assert(a() == 2)
return a(), x`)
	require.NoError(t, err)
	assert.Equal(t, []any{2.0, 2.0}, res)
}

func TestUpvalueForwarding(t *testing.T) {
	t.Parallel()
	_, fn, err := compile(t, `
local x = 1
return function()
	return function() return x end
end`)
	require.NoError(t, err)
	mid := fn.Children[0]
	inner := mid.Children[0]
	assert.Equal(t, []runtime.UpvalueDesc{{Name: "x", ParentLocal: true, Index: 0}}, mid.Upvalues)
	assert.Equal(t, []runtime.UpvalueDesc{{Name: "x", ParentLocal: false, Index: 0}}, inner.Upvalues)
}

func TestClosuresCaptureEachIteration(t *testing.T) {
	t.Parallel()
	res, err := run(t, `
local fns = {}
for i = 1, 3 do
	fns[i] = function() return i end
end
local total = 0
for _, fn in ipairs(fns) do
	total = total * 10 + fn()
end
local counter = function()
	local n = 0
	return function() n = n + 1 return n end
end
local c1, c2 = counter(), counter()
c1() c1()
return total, c1(), c2()`)
	require.NoError(t, err)
	assert.Equal(t, []any{123.0, 3.0, 1.0}, res)
}

func TestRecursiveLocalFunction(t *testing.T) {
	t.Parallel()
	res, err := run(t, `
local function fib(n)
	if n < 2 then return n end
	return fib(n - 1) + fib(n - 2)
end
return fib(15)`)
	require.NoError(t, err)
	assert.Equal(t, []any{610.0}, res)
}

func TestBreakInnermostLoop(t *testing.T) {
	t.Parallel()
	res, err := run(t, `
local outer = 0
for i = 1, 5 do
	while true do break end
	for j = 1, 10 do
		if j == 2 then break end
	end
	repeat
		local stop = true
		if stop then break end
	until false
	outer = outer + 1
end
return outer`)
	require.NoError(t, err)
	assert.Equal(t, []any{5.0}, res)
}

func TestBreakLandsAfterLoop(t *testing.T) {
	t.Parallel()
	_, fn, err := compile(t, `while x do break end`)
	require.NoError(t, err)
	// 0 GETGLOBAL, 1 JMPFALSE, 2 JMP (break), 3 JMP (back), 4 RETURN
	require.Len(t, fn.Instructions, 5)
	assert.Equal(t, bytecode.JMP, bytecode.GetOp(fn.Instructions[2]))
	assert.Equal(t, int64(1), bytecode.GetsBx(fn.Instructions[2]))
	assert.Equal(t, int64(2), bytecode.GetsBx(fn.Instructions[1]))
	assert.Equal(t, int64(-4), bytecode.GetsBx(fn.Instructions[3]))
}

func TestMultipleResults(t *testing.T) {
	t.Parallel()
	testcases := []struct {
		desc     string
		src      string
		expected []any
	}{
		{"fewer results pad nil", `local function f() return 1, 2 end local a, b, c = f() return a, b, c`, []any{1.0, 2.0, nil}},
		{"more results truncate", `local function f() return 1, 2, 3, 4 end local a, b, c = f() return a, b, c`, []any{1.0, 2.0, 3.0}},
		{"only last expands", `local function f() return 1, 2 end local a, b, c = f(), 10 return a, b, c`, []any{1.0, 10.0, nil}},
		{"parens truncate", `local function f() return 1, 2 end return (f())`, []any{1.0}},
		{"return expands", `local function f() return 1, 2 end return 0, f()`, []any{0.0, 1.0, 2.0}},
		{"args expand", `local function f() return 1, 2 end return select('#', f(), f())`, []any{3.0}},
		{"varargs", `local function f(...) local a, b = ... return b, select('#', ...) end return f(4, 5, 6)`, []any{5.0, 3.0}},
		{"table tail", `local function f() return 1, 2, 3 end local t = {0, f()} return #t, t[4]`, []any{4.0, 3.0}},
		{"table middle", `local function f() return 1, 2, 3 end local t = {f(), 0} return #t, t[1], t[2]`, []any{2.0, 1.0, 0.0}},
		{"extra values dropped", `local a = 1, 2, 3 return a`, []any{1.0}},
		{"assign swap", `local a, b = 1, 2 a, b = b, a return a, b`, []any{2.0, 1.0}},
	}
	for _, tc := range testcases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			res, err := run(t, tc.src)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, res)
		})
	}
}

func TestNumericForIterations(t *testing.T) {
	t.Parallel()
	testcases := []struct {
		header   string
		expected float64
	}{
		{"i = 1, 1, 1", 1},
		{"i = 1, 0, 1", 0},
		{"i = 1, -10, -3", 4},
		{"i = 1, 10", 10},
		{"i = 10, 1, -1", 10},
		{"i = 0, 1, 0.25", 5},
	}
	for _, tc := range testcases {
		tc := tc
		t.Run(tc.header, func(t *testing.T) {
			t.Parallel()
			res, err := run(t, "local n = 0 for "+tc.header+" do n = n + 1 end return n")
			require.NoError(t, err)
			assert.Equal(t, []any{tc.expected}, res)
		})
	}
}

func TestGenericFor(t *testing.T) {
	t.Parallel()
	res, err := run(t, `
local t = {10, 20, 30, x = 1}
local sum, keys = 0, 0
for k, v in pairs(t) do
	keys = keys + 1
	if type(k) == "number" then sum = sum + v end
end
local prod = 1
for _, v in ipairs(t) do prod = prod * v end
return sum, keys, prod`)
	require.NoError(t, err)
	assert.Equal(t, []any{60.0, 4.0, 6000.0}, res)
}

func TestRegisterCeiling(t *testing.T) {
	t.Parallel()
	locals := func(n int) string {
		names := make([]string, n)
		for i := range names {
			names[i] = fmt.Sprintf("v%d", i)
		}
		return "local " + strings.Join(names, ", ")
	}
	_, _, err := compile(t, locals(conf.MAXREGISTERS))
	require.NoError(t, err)

	_, _, err = compile(t, locals(conf.MAXREGISTERS+1))
	require.Error(t, err)
	assert.True(t, lerrors.Is(err, lerrors.CompileErr))
	assert.ErrorIs(t, err, ErrTooManyLocals)
	assert.Contains(t, err.Error(), "too many local variables")

	_, _, err = compile(t, locals(conf.MAXREGISTERS-1)+"\nv1, v2, v3, v4, v5, v6, v7, v8 = 1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooComplex))
	assert.Equal(t, "test 2: assignment too complex", err.Error())
}

func TestRegisterCeiling_LocalsStayUsable(t *testing.T) {
	t.Parallel()
	names := make([]string, conf.MAXREGISTERS)
	for i := range names {
		names[i] = fmt.Sprintf("v%d", i)
	}
	decl := "local " + strings.Join(names, ", ") + "\n"

	testcases := []struct {
		desc     string
		body     string
		expected []any
	}{
		{desc: "return the last local", body: "v249 = 3\nreturn v249", expected: []any{3.0}},
		{desc: "assign and read", body: "v0 = 5\nv249 = v0 + 1\nreturn v249, v0", expected: []any{6.0, 5.0}},
		{desc: "call with locals", body: "v1 = 2\nreturn tostring(v1 * v1)", expected: []any{"4"}},
		{desc: "table field", body: "v2 = {x = 7}\nreturn v2.x", expected: []any{7.0}},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			res, err := run(t, decl+tc.body)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, res)
		})
	}
}

func TestGenerate_ReturnLocalInPlace(t *testing.T) {
	t.Parallel()
	_, fn, err := compile(t, `local a = 1 return a`)
	require.NoError(t, err)
	assertByteCodes(t, fn,
		bytecode.IAsBx(bytecode.LOADINT, 0, 1),
		bytecode.IAB(bytecode.RETURN, 0, 2),
		bytecode.IAB(bytecode.RETURN, 0, 1),
	)
	assert.Equal(t, 1, fn.MaxRegisters)
}

func TestCompileErrorInNestedFunction(t *testing.T) {
	t.Parallel()
	names := make([]string, conf.MAXREGISTERS+1)
	for i := range names {
		names[i] = fmt.Sprintf("p%d", i)
	}
	_, _, err := compile(t, "x = 1\nlocal f = function()\n\tlocal "+strings.Join(names, ",")+"\nend")
	require.Error(t, err)
	var lerr *lerrors.Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, int64(3), lerr.Line)
	assert.Equal(t, lerrors.CompileErr, lerr.Kind)
}

func TestTypeErrorMessages(t *testing.T) {
	t.Parallel()
	testcases := []struct {
		src, expected string
	}{
		{`return nil + 1`, "test:1: attempt to add nil with number"},
		{`return x + 1`, "test:1: attempt to add nil with number (global 'x')"},
		{`local t = {} return t.y .. "s"`, "test:1: attempt to concat nil with string (field 'y')"},
		{`local a return -a`, "test:1: attempt to negate a nil value (local 'a')"},
		{`return 1 < "x"`, "test:1: attempt to compare number with string"},
		{`undefined()`, "test:1: attempt to call a nil value (global 'undefined')"},
		{`local t return t.x`, "test:1: attempt to index a nil value (local 't')"},
	}
	for _, tc := range testcases {
		tc := tc
		t.Run(tc.src, func(t *testing.T) {
			t.Parallel()
			_, err := run(t, tc.src)
			require.Error(t, err)
			assert.True(t, lerrors.Is(err, lerrors.RuntimeErr))
			assert.Equal(t, tc.expected, err.Error())
		})
	}
}

func TestShortCircuit(t *testing.T) {
	t.Parallel()
	res, err := run(t, `
local calls = 0
local function f() calls = calls + 1 return true end
local a = false and f()
local b = true or f()
local c = nil or "d"
local e = 1 and 2
return a, b, c, e, calls`)
	require.NoError(t, err)
	require.Len(t, res, 5)
	assert.Equal(t, false, res[0])
	assert.Equal(t, true, res[1])
	assert.Equal(t, "d", runtime.ToString(res[2]))
	assert.Equal(t, 2.0, res[3])
	assert.Equal(t, 0.0, res[4])
}

func TestFunctionStatements(t *testing.T) {
	t.Parallel()
	res, err := run(t, `
obj = {n = 1}
function obj.add(a, b) return a + b end
function obj:inc(by) self.n = self.n + by return self end
local function twice(f, x) return f(f(x)) end
obj:inc(2):inc(3)
return obj.add(1, 2), obj.n, twice(function(v) return v * 2 end, 3)`)
	require.NoError(t, err)
	assert.Equal(t, []any{3.0, 6.0, 12.0}, res)
}

func TestAssignmentEvaluatesTargetsFirst(t *testing.T) {
	t.Parallel()
	res, err := run(t, `
local t = {}
local i = 3
i, t[i] = i + 1, 20
return i, t[3], t[4]`)
	require.NoError(t, err)
	assert.Equal(t, []any{4.0, 20.0, nil}, res)
}

package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airtrack/luna-sub000/src/bytecode"
	"github.com/airtrack/luna-sub000/src/conf"
	"github.com/airtrack/luna-sub000/src/lerrors"
)

func newTestState() *State {
	return NewState(context.Background(), conf.Default())
}

// testProto builds a prototype by hand. String constants are interned in s.
func testProto(s *State, constants []any, code []uint32, children ...*Function) *Function {
	fn := NewFunction("test", "test", 1, nil)
	fn.IsVararg = true
	fn.MaxRegisters = 10
	for _, k := range constants {
		if str, ok := k.(string); ok {
			k = s.NewString(str)
		}
		fn.Constants = append(fn.Constants, k)
	}
	for _, inst := range code {
		fn.AddInstruction(inst, 1)
	}
	for _, child := range children {
		child.Parent = fn
		fn.AddChild(child)
	}
	return fn
}

// plain turns interned strings back into go strings for comparisons.
func plain(vals []any) []any {
	out := make([]any, len(vals))
	for i, val := range vals {
		if str, ok := val.(*String); ok {
			out[i] = str.val
		} else {
			out[i] = val
		}
	}
	return out
}

func TestVM_Execute(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		desc      string
		constants []any
		code      []uint32
		args      []any
		result    []any
		err       string
	}{
		{
			desc:      "LOADK and MOVE",
			constants: []any{23.0},
			code: []uint32{
				bytecode.IABx(bytecode.LOADK, 0, 0), bytecode.IAB(bytecode.MOVE, 1, 0), bytecode.IAB(bytecode.RETURN, 0, 3),
			},
			result: []any{23.0, 23.0},
		},
		{
			desc: "LOADBOOL",
			code: []uint32{
				bytecode.IAB(bytecode.LOADBOOL, 0, 1), bytecode.IAB(bytecode.LOADBOOL, 1, 0), bytecode.IAB(bytecode.RETURN, 0, 3),
			},
			result: []any{true, false},
		},
		{
			desc:   "LOADINT",
			code:   []uint32{bytecode.IAsBx(bytecode.LOADINT, 0, -1274), bytecode.IAB(bytecode.RETURN, 0, 2)},
			result: []any{-1274.0},
		},
		{
			desc: "LOADNIL",
			code: []uint32{
				bytecode.IAsBx(bytecode.LOADINT, 0, 0), bytecode.IAsBx(bytecode.LOADINT, 1, 1),
				bytecode.IAsBx(bytecode.LOADINT, 2, 2), bytecode.IAB(bytecode.LOADNIL, 0, 2),
				bytecode.IAB(bytecode.RETURN, 0, 4),
			},
			result: []any{nil, nil, 2.0},
		},
		{
			desc: "arithmetic",
			code: []uint32{
				bytecode.IAsBx(bytecode.LOADINT, 0, 7), bytecode.IAsBx(bytecode.LOADINT, 1, 2),
				bytecode.IABC(bytecode.ADD, 2, 0, 1), bytecode.IABC(bytecode.SUB, 3, 0, 1),
				bytecode.IABC(bytecode.MUL, 4, 0, 1), bytecode.IABC(bytecode.DIV, 5, 0, 1),
				bytecode.IABC(bytecode.MOD, 6, 0, 1), bytecode.IABC(bytecode.POW, 7, 0, 1),
				bytecode.IAB(bytecode.RETURN, 2, 7),
			},
			result: []any{9.0, 5.0, 14.0, 3.5, 1.0, 49.0},
		},
		{
			desc: "MOD with negative dividend",
			code: []uint32{
				bytecode.IAsBx(bytecode.LOADINT, 0, -7), bytecode.IAsBx(bytecode.LOADINT, 1, 3),
				bytecode.IABC(bytecode.MOD, 2, 0, 1), bytecode.IAB(bytecode.RETURN, 2, 2),
			},
			result: []any{2.0},
		},
		{
			desc:      "CONCAT",
			constants: []any{"a"},
			code: []uint32{
				bytecode.IABx(bytecode.LOADK, 0, 0), bytecode.IAsBx(bytecode.LOADINT, 1, 1),
				bytecode.IABC(bytecode.CONCAT, 2, 0, 1), bytecode.IAB(bytecode.RETURN, 2, 2),
			},
			result: []any{"a1"},
		},
		{
			desc: "comparisons",
			code: []uint32{
				bytecode.IAsBx(bytecode.LOADINT, 0, 1), bytecode.IAsBx(bytecode.LOADINT, 1, 2),
				bytecode.IABC(bytecode.LT, 2, 0, 1), bytecode.IABC(bytecode.LE, 3, 1, 0),
				bytecode.IABC(bytecode.GT, 4, 1, 0), bytecode.IABC(bytecode.GE, 5, 0, 0),
				bytecode.IABC(bytecode.EQ, 6, 0, 1), bytecode.IABC(bytecode.NE, 7, 0, 1),
				bytecode.IAB(bytecode.RETURN, 2, 7),
			},
			result: []any{true, false, true, true, false, true},
		},
		{
			desc:      "string comparison and equality by content",
			constants: []any{"abc", "abd"},
			code: []uint32{
				bytecode.IABx(bytecode.LOADK, 0, 0), bytecode.IABx(bytecode.LOADK, 1, 1),
				bytecode.IABC(bytecode.LT, 2, 0, 1), bytecode.IABC(bytecode.EQ, 3, 0, 0),
				bytecode.IAB(bytecode.RETURN, 2, 3),
			},
			result: []any{true, true},
		},
		{
			desc:      "LEN NEG NOT",
			constants: []any{"abc"},
			code: []uint32{
				bytecode.IABx(bytecode.LOADK, 0, 0), bytecode.IAB(bytecode.LEN, 1, 0),
				bytecode.IAB(bytecode.NEG, 2, 1), bytecode.IAB(bytecode.NOT, 3, 2),
				bytecode.IAB(bytecode.RETURN, 1, 4),
			},
			result: []any{3.0, -3.0, false},
		},
		{
			desc: "JMP",
			code: []uint32{
				bytecode.IAsBx(bytecode.LOADINT, 0, 1), bytecode.IAsBx(bytecode.JMP, 0, 1),
				bytecode.IAsBx(bytecode.LOADINT, 0, 5), bytecode.IAB(bytecode.RETURN, 0, 2),
			},
			result: []any{1.0},
		},
		{
			desc: "conditional jumps",
			code: []uint32{
				bytecode.IAB(bytecode.LOADNIL, 0, 1),
				bytecode.IAsBx(bytecode.JMPNIL, 0, 1),
				bytecode.IAsBx(bytecode.LOADINT, 1, 9),
				bytecode.IAB(bytecode.LOADBOOL, 2, 1),
				bytecode.IAsBx(bytecode.JMPTRUE, 2, 1),
				bytecode.IAsBx(bytecode.LOADINT, 1, 8),
				bytecode.IAsBx(bytecode.JMPFALSE, 2, 1),
				bytecode.IAsBx(bytecode.LOADINT, 1, 7),
				bytecode.IAB(bytecode.RETURN, 1, 2),
			},
			result: []any{7.0},
		},
		{
			desc:      "NEWTABLE SETTABLE GETTABLE",
			constants: []any{"k"},
			code: []uint32{
				bytecode.IAB(bytecode.NEWTABLE, 0, 0), bytecode.IABx(bytecode.LOADK, 1, 0),
				bytecode.IAsBx(bytecode.LOADINT, 2, 42), bytecode.IABC(bytecode.SETTABLE, 0, 1, 2),
				bytecode.IABC(bytecode.GETTABLE, 3, 0, 1), bytecode.IAB(bytecode.RETURN, 3, 2),
			},
			result: []any{42.0},
		},
		{
			desc: "SETLIST",
			code: []uint32{
				bytecode.IAB(bytecode.NEWTABLE, 0, 0), bytecode.IAsBx(bytecode.LOADINT, 1, 1),
				bytecode.IAsBx(bytecode.LOADINT, 2, 10), bytecode.IAsBx(bytecode.LOADINT, 3, 20),
				bytecode.IAB(bytecode.SETLIST, 0, 3), bytecode.IAB(bytecode.LEN, 4, 0),
				bytecode.IAsBx(bytecode.LOADINT, 5, 2), bytecode.IABC(bytecode.GETTABLE, 5, 0, 5),
				bytecode.IAB(bytecode.RETURN, 4, 3),
			},
			result: []any{2.0, 20.0},
		},
		{
			desc:      "globals",
			constants: []any{"g"},
			code: []uint32{
				bytecode.IAsBx(bytecode.LOADINT, 0, 3), bytecode.IABx(bytecode.SETGLOBAL, 0, 0),
				bytecode.IABx(bytecode.GETGLOBAL, 1, 0), bytecode.IAB(bytecode.RETURN, 1, 2),
			},
			result: []any{3.0},
		},
		{
			desc: "numeric loop",
			code: []uint32{
				bytecode.IAsBx(bytecode.LOADINT, 0, 1),
				bytecode.IAsBx(bytecode.LOADINT, 1, 4),
				bytecode.IAsBx(bytecode.LOADINT, 2, 1),
				bytecode.IAsBx(bytecode.LOADINT, 3, 0),
				bytecode.IABC(bytecode.FORINIT, 0, 1, 2),
				bytecode.IABC(bytecode.FORSTEP, 0, 1, 2),
				bytecode.IAsBx(bytecode.JMP, 0, 3),
				bytecode.IABC(bytecode.ADD, 3, 3, 0),
				bytecode.IABC(bytecode.ADD, 0, 0, 2),
				bytecode.IAsBx(bytecode.JMP, 0, -5),
				bytecode.IAB(bytecode.RETURN, 3, 2),
			},
			result: []any{10.0},
		},
		{
			desc: "numeric loop with a bad limit",
			code: []uint32{
				bytecode.IAsBx(bytecode.LOADINT, 0, 1),
				bytecode.IAB(bytecode.LOADBOOL, 1, 1),
				bytecode.IAsBx(bytecode.LOADINT, 2, 1),
				bytecode.IABC(bytecode.FORINIT, 0, 1, 2),
				bytecode.IAB(bytecode.RETURN, 0, 1),
			},
			err: "test:1: 'for' limit value must be a number",
		},
		{
			desc:   "VARARG all",
			code:   []uint32{bytecode.IAB(bytecode.VARARG, 0, 0), bytecode.IAB(bytecode.RETURN, 0, 0)},
			args:   []any{1.0, 2.0, 3.0},
			result: []any{1.0, 2.0, 3.0},
		},
		{
			desc:   "VARARG fixed count pads with nil",
			code:   []uint32{bytecode.IAB(bytecode.VARARG, 0, 3), bytecode.IAB(bytecode.RETURN, 0, 3)},
			args:   []any{1.0},
			result: []any{1.0, nil},
		},
		{
			desc:      "CALL native",
			constants: []any{"select", "#"},
			code: []uint32{
				bytecode.IABx(bytecode.GETGLOBAL, 0, 0), bytecode.IABx(bytecode.LOADK, 1, 1),
				bytecode.IAsBx(bytecode.LOADINT, 2, 5), bytecode.IAsBx(bytecode.LOADINT, 3, 6),
				bytecode.IABC(bytecode.CALL, 0, 4, 2), bytecode.IAB(bytecode.RETURN, 0, 2),
			},
			result: []any{2.0},
		},
		{
			desc:      "CALL native with open arguments",
			constants: []any{"select", "#"},
			code: []uint32{
				bytecode.IABx(bytecode.GETGLOBAL, 0, 0), bytecode.IABx(bytecode.LOADK, 1, 1),
				bytecode.IAB(bytecode.VARARG, 2, 0), bytecode.IABC(bytecode.CALL, 0, 0, 0),
				bytecode.IAB(bytecode.RETURN, 0, 0),
			},
			args:   []any{true, false, nil, 4.0},
			result: []any{4.0},
		},
		{
			desc:   "RETURN more values than set",
			code:   []uint32{bytecode.IAB(bytecode.RETURN, 0, 4)},
			result: []any{nil, nil, nil},
		},
		{
			desc:   "RETURN nothing",
			code:   []uint32{bytecode.IAB(bytecode.RETURN, 0, 1)},
			result: []any{},
		},
		{
			desc: "arithmetic on nil",
			code: []uint32{
				bytecode.IAB(bytecode.LOADNIL, 0, 1), bytecode.IAsBx(bytecode.LOADINT, 1, 1),
				bytecode.IABC(bytecode.ADD, 2, 0, 1), bytecode.IAB(bytecode.RETURN, 0, 1),
			},
			err: "test:1: attempt to add nil with number",
		},
		{
			desc:      "arithmetic on a global",
			constants: []any{"x"},
			code: []uint32{
				bytecode.IAsBx(bytecode.LOADINT, 0, 1), bytecode.IABx(bytecode.GETGLOBAL, 1, 0),
				bytecode.IABC(bytecode.MUL, 2, 0, 1), bytecode.IAB(bytecode.RETURN, 0, 1),
			},
			err: "test:1: attempt to mul number with nil (global 'x')",
		},
		{
			desc: "call a number",
			code: []uint32{
				bytecode.IAsBx(bytecode.LOADINT, 0, 1), bytecode.IABC(bytecode.CALL, 0, 1, 1),
				bytecode.IAB(bytecode.RETURN, 0, 1),
			},
			err: "test:1: attempt to call a number value",
		},
		{
			desc: "index a number",
			code: []uint32{
				bytecode.IAsBx(bytecode.LOADINT, 0, 1), bytecode.IABC(bytecode.GETTABLE, 1, 0, 0),
				bytecode.IAB(bytecode.RETURN, 0, 1),
			},
			err: "test:1: attempt to index a number value",
		},
		{
			desc: "length of a boolean",
			code: []uint32{
				bytecode.IAB(bytecode.LOADBOOL, 0, 1), bytecode.IAB(bytecode.LEN, 1, 0),
				bytecode.IAB(bytecode.RETURN, 0, 1),
			},
			err: "test:1: attempt to get length of a boolean value",
		},
		{
			desc: "nil table key",
			code: []uint32{
				bytecode.IAB(bytecode.NEWTABLE, 0, 0), bytecode.IAB(bytecode.LOADNIL, 1, 1),
				bytecode.IABC(bytecode.SETTABLE, 0, 1, 0), bytecode.IAB(bytecode.RETURN, 0, 1),
			},
			err: "test:1: table index is nil",
		},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			s := newTestState()
			res, err := s.Call(s.NewClosure(testProto(s, tc.constants, tc.code)), tc.args...)
			if tc.err != "" {
				require.Error(t, err)
				assert.Equal(t, tc.err, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.result, plain(res))
		})
	}
}

func counterProto() *Function {
	fn := NewFunction("test", "counter", 2, nil)
	fn.MaxRegisters = 2
	fn.Upvalues = []UpvalueDesc{{Name: "x", ParentLocal: true, Index: 0}}
	for _, inst := range []uint32{
		bytecode.IAB(bytecode.GETUPVAL, 0, 0),
		bytecode.IAsBx(bytecode.LOADINT, 1, 1),
		bytecode.IABC(bytecode.ADD, 0, 0, 1),
		bytecode.IAB(bytecode.SETUPVAL, 0, 0),
		bytecode.IAB(bytecode.RETURN, 0, 2),
	} {
		fn.AddInstruction(inst, 2)
	}
	return fn
}

func readerProto() *Function {
	fn := NewFunction("test", "reader", 2, nil)
	fn.MaxRegisters = 1
	fn.Upvalues = []UpvalueDesc{{Name: "x", ParentLocal: true, Index: 0}}
	fn.AddInstruction(bytecode.IAB(bytecode.GETUPVAL, 0, 0), 2)
	fn.AddInstruction(bytecode.IAB(bytecode.RETURN, 0, 2), 2)
	return fn
}

func TestVM_Closures(t *testing.T) {
	t.Parallel()

	t.Run("shared cell", func(t *testing.T) {
		t.Parallel()
		s := newTestState()
		proto := testProto(s, nil, []uint32{
			bytecode.IAsBx(bytecode.LOADINT, 0, 10),
			bytecode.IABx(bytecode.CLOSURE, 1, 0),
			bytecode.IAB(bytecode.MOVE, 2, 1),
			bytecode.IABC(bytecode.CALL, 2, 1, 2),
			bytecode.IAB(bytecode.MOVE, 3, 1),
			bytecode.IABC(bytecode.CALL, 3, 1, 2),
			bytecode.IAB(bytecode.MOVE, 4, 0),
			bytecode.IAB(bytecode.RETURN, 2, 4),
		}, counterProto())
		res, err := s.Call(s.NewClosure(proto))
		require.NoError(t, err)
		assert.Equal(t, []any{11.0, 12.0, 12.0}, res)
	})

	t.Run("SETLOCAL writes through", func(t *testing.T) {
		t.Parallel()
		s := newTestState()
		proto := testProto(s, nil, []uint32{
			bytecode.IAsBx(bytecode.LOADINT, 0, 1),
			bytecode.IABx(bytecode.CLOSURE, 1, 0),
			bytecode.IAsBx(bytecode.LOADINT, 2, 5),
			bytecode.IAB(bytecode.SETLOCAL, 0, 2),
			bytecode.IAB(bytecode.MOVE, 3, 1),
			bytecode.IABC(bytecode.CALL, 3, 1, 2),
			bytecode.IAB(bytecode.RETURN, 3, 2),
		}, readerProto())
		res, err := s.Call(s.NewClosure(proto))
		require.NoError(t, err)
		assert.Equal(t, []any{5.0}, res)
	})

	t.Run("MOVE starts a fresh slot", func(t *testing.T) {
		t.Parallel()
		s := newTestState()
		proto := testProto(s, nil, []uint32{
			bytecode.IAsBx(bytecode.LOADINT, 0, 1),
			bytecode.IABx(bytecode.CLOSURE, 1, 0),
			bytecode.IAsBx(bytecode.LOADINT, 2, 5),
			bytecode.IAB(bytecode.MOVE, 0, 2),
			bytecode.IAB(bytecode.MOVE, 3, 1),
			bytecode.IABC(bytecode.CALL, 3, 1, 2),
			bytecode.IAB(bytecode.RETURN, 3, 2),
		}, readerProto())
		res, err := s.Call(s.NewClosure(proto))
		require.NoError(t, err)
		assert.Equal(t, []any{1.0}, res)
	})
}

func TestState_CallUnwindsOnError(t *testing.T) {
	t.Parallel()
	cfg := conf.Default()
	cfg.MaxCallDepth = 50
	s := NewState(context.Background(), cfg)

	recurse := NewFunction("test", "recurse", 1, nil)
	recurse.MaxRegisters = 1
	recurse.Constants = []any{s.NewString("recurse")}
	for _, inst := range []uint32{
		bytecode.IABx(bytecode.GETGLOBAL, 0, 0),
		bytecode.IABC(bytecode.CALL, 0, 1, 1),
		bytecode.IAB(bytecode.RETURN, 0, 1),
	} {
		recurse.AddInstruction(inst, 1)
	}
	cl := s.NewClosure(recurse)
	require.NoError(t, s.SetGlobal("recurse", cl))

	_, err := s.Call(cl)
	require.Error(t, err)
	assert.True(t, lerrors.Is(err, lerrors.RuntimeErr))
	assert.Contains(t, err.Error(), "stack overflow")
	assert.Empty(t, s.calls)
	assert.Equal(t, 0, s.top)

	res, err := s.Call(s.GetGlobal("type"), 1.0)
	require.NoError(t, err)
	assert.Equal(t, []any{"number"}, plain(res))
}

func TestState_NativeErrorsAreHostErrors(t *testing.T) {
	t.Parallel()
	s := newTestState()
	proto := testProto(s, []any{"tonumber"}, []uint32{
		bytecode.IABx(bytecode.GETGLOBAL, 0, 0),
		bytecode.IABC(bytecode.CALL, 0, 1, 1),
		bytecode.IAB(bytecode.RETURN, 0, 1),
	})
	_, err := s.Call(s.NewClosure(proto))
	require.Error(t, err)
	assert.True(t, lerrors.Is(err, lerrors.HostErr))
	assert.Equal(t, "test:1: bad argument #1 to 'tonumber' (value expected, got no value)", err.Error())
}

func TestState_CallFunctionFitsResults(t *testing.T) {
	t.Parallel()
	s := newTestState()
	proto := testProto(s, nil, []uint32{
		bytecode.IAsBx(bytecode.LOADINT, 0, 1),
		bytecode.IAsBx(bytecode.LOADINT, 1, 2),
		bytecode.IAsBx(bytecode.LOADINT, 2, 3),
		bytecode.IAB(bytecode.RETURN, 0, 4),
	})
	cl := s.NewClosure(proto)
	res, err := s.CallFunction(cl, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0}, res)
	res, err = s.CallFunction(cl, nil, 5)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0, 3.0, nil, nil}, res)
}

func TestState_ResultsPastStackLimit(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		desc   string
		callee func(s *State) any
	}{
		{
			desc: "lua function",
			callee: func(s *State) any {
				fn := NewFunction("test", "empty", 1, nil)
				fn.MaxRegisters = 1
				fn.AddInstruction(bytecode.IAB(bytecode.RETURN, 0, 1), 1)
				return s.NewClosure(fn)
			},
		},
		{
			desc: "go function",
			callee: func(*State) any {
				return Fn("empty", func(*State) (int, error) { return 0, nil })
			},
		},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			cfg := conf.Default()
			cfg.InitialStackSize = 16
			cfg.MaxStackSize = 64
			s := NewState(context.Background(), cfg)
			require.NoError(t, s.SetGlobal("callee", tc.callee(s)))
			proto := testProto(s, []any{"callee"}, []uint32{
				bytecode.IABx(bytecode.GETGLOBAL, 0, 0),
				bytecode.IABC(bytecode.CALL, 0, 1, 201),
				bytecode.IAB(bytecode.RETURN, 0, 1),
			})

			_, err := s.Call(s.NewClosure(proto))
			require.Error(t, err)
			assert.True(t, lerrors.Is(err, lerrors.RuntimeErr))
			assert.ErrorIs(t, err, errStackOverflow)
			assert.Equal(t, "test:1: stack overflow", err.Error())
			assert.Empty(t, s.calls)
			assert.Equal(t, 0, s.top)
		})
	}
}

func TestEnsureStack(t *testing.T) {
	t.Parallel()
	cfg := conf.Default()
	cfg.InitialStackSize = 4
	cfg.MaxStackSize = 64
	s := NewState(context.Background(), cfg)
	require.NoError(t, s.ensureStack(10))
	assert.GreaterOrEqual(t, len(s.stack), 10)
	assert.ErrorIs(t, s.ensureStack(65), errStackOverflow)
}

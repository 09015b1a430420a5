package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytecodeABC(t *testing.T) {
	t.Parallel()
	t.Run("iAB", func(t *testing.T) {
		t.Parallel()
		code := IAB(MOVE, 12, 22)
		assert.Equal(t, MOVE, GetOp(code))
		assert.Equal(t, int64(12), GetA(code))
		assert.Equal(t, int64(22), GetB(code))
		assert.Equal(t, int64(0), GetC(code))
		assert.Equal(t, TypeABC, Kind(code))
	})

	t.Run("iABC", func(t *testing.T) {
		t.Parallel()
		code := IABC(ADD, 249, 250, 255)
		assert.Equal(t, ADD, GetOp(code))
		assert.Equal(t, int64(249), GetA(code))
		assert.Equal(t, int64(250), GetB(code))
		assert.Equal(t, int64(255), GetC(code))
		assert.Equal(t, TypeABC, Kind(code))
	})

	t.Run("iABx", func(t *testing.T) {
		t.Parallel()
		code := IABx(LOADK, 12, 65535)
		assert.Equal(t, LOADK, GetOp(code))
		assert.Equal(t, int64(12), GetA(code))
		assert.Equal(t, int64(65535), GetBx(code))
		assert.Equal(t, TypeABx, Kind(code))
	})

	t.Run("iAsBx", func(t *testing.T) {
		t.Parallel()
		for _, offset := range []int16{-32768, -1, 0, 1, 32767} {
			code := IAsBx(JMPFALSE, 7, offset)
			assert.Equal(t, JMPFALSE, GetOp(code))
			assert.Equal(t, int64(7), GetA(code))
			assert.Equal(t, int64(offset), GetsBx(code))
			assert.Equal(t, TypeAsBx, Kind(code))
		}
	})
}

func TestSetsBx(t *testing.T) {
	t.Parallel()
	code := IAsBx(JMPNIL, 3, 0)
	patched := SetsBx(code, -12)
	assert.Equal(t, JMPNIL, GetOp(patched))
	assert.Equal(t, int64(3), GetA(patched))
	assert.Equal(t, int64(-12), GetsBx(patched))
	assert.Equal(t, int64(40), GetsBx(SetsBx(patched, 40)))
}

func TestToString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "MOVE       1     2     0    ", ToString(IAB(MOVE, 1, 2)))
	assert.Equal(t, "LOADK      0     3          ", ToString(IABx(LOADK, 0, 3)))
	assert.Equal(t, "JMP        0     -4         ", ToString(IAsBx(JMP, 0, -4)))
	assert.Equal(t, "UNDEFINED", Op(200).String())
}

func TestWritesA(t *testing.T) {
	t.Parallel()
	assert.True(t, WritesA(IABx(GETGLOBAL, 0, 0)))
	assert.True(t, WritesA(IABC(CALL, 0, 1, 2)))
	assert.False(t, WritesA(IABC(SETTABLE, 0, 1, 2)))
	assert.False(t, WritesA(IAB(SETLIST, 0, 3)))
	assert.False(t, WritesA(IAB(SETUPVAL, 0, 1)))
}

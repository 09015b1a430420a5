package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	t.Parallel()
	testcases := []struct {
		pattern string
		val     any
		output  string
	}{
		{pattern: "%d", val: float64(42), output: "42"},
		{pattern: "%i", val: float64(-7.9), output: "-7"},
		{pattern: "%5d", val: float64(42), output: "   42"},
		{pattern: "%-5d|", val: float64(42), output: "42   |"},
		{pattern: "%05d", val: float64(42), output: "00042"},
		{pattern: "%x", val: float64(255), output: "ff"},
		{pattern: "%X", val: float64(255), output: "FF"},
		{pattern: "%#x", val: float64(255), output: "0xff"},
		{pattern: "%o", val: float64(8), output: "10"},
		{pattern: "%c", val: float64(65), output: "A"},
		{pattern: "%f", val: float64(1.5), output: "1.500000"},
		{pattern: "%.2f", val: float64(3.14159), output: "3.14"},
		{pattern: "%g", val: float64(42), output: "42"},
		{pattern: "%g", val: float64(1) / 3, output: "0.333333"},
		{pattern: "%e", val: float64(42), output: "4.200000e+01"},
		{pattern: "%s", val: "test this", output: "test this"},
		{pattern: "%.3s", val: "alongword", output: "alo"},
		{pattern: "%s", val: nil, output: "nil"},
		{pattern: "%d", val: "12", output: "12"},
		{pattern: "%q", val: "a \"b\"\n", output: `"a \"b\"\n"`},
		{pattern: "100%%", val: nil, output: "100%"},
	}

	for _, tc := range testcases {
		out, err := String(tc.pattern, tc.val)
		require.NoError(t, err, tc.pattern)
		assert.Equal(t, tc.output, out, tc.pattern)
	}
}

func TestStringErrors(t *testing.T) {
	t.Parallel()
	_, err := String("%d")
	require.EqualError(t, err, "bad argument #2 to 'format' (no value)")
	_, err = String("%d", "abc")
	require.EqualError(t, err, "bad argument #2 to 'format' (number expected, got string)")
	_, err = String("%y", float64(1))
	require.EqualError(t, err, "invalid option '%y' to 'format'")
	_, err = String("abc %")
	require.Error(t, err)
}

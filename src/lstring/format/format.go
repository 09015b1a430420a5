// Package format contains the behaviour for formatting a string based on formatting
// specifiers in a string.
// A format specifier follows the form:
//
//	%[flags][width][.precision]specifier
//
// Flags:
// - - : left justify ensuring width
// - + : always show sign +/-
// - \s : (space) show sign if only -
// - # : prefix 0x for hex variables, prefix 0 for octal
// - 0 : Left pad with 0 instead of space when width is suppied
// Width: Number, * is not supported
// Precision: .n minimum digits for integers, decimals for floats, max length for strings
// Specifiers:
// - d, i: int
// - u: uint
// - o: unsigned octal
// - x: unsigned hex int
// - X: unsigned hex int (uppercase)
// - c: character
// - f: float
// - e, E: scientific notation
// - g, G: shortest representation: %e or %f
// - s: string
// - q: quoted string that can be read back
// - %%: %
//
// Arguments are go values, numbers are float64 and strings are string.
package format

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// String will format a string with a template with formatting directives. Please
// see package description for more information on the directives.
func String(tmpl string, args ...any) (string, error) {
	var buf strings.Builder
	argIndex := 0

	for i := 0; i < len(tmpl); i++ {
		ch := tmpl[i]
		if ch != '%' {
			buf.WriteByte(ch)
			continue
		}

		fmtSpecStart := i
		i++
		if i >= len(tmpl) {
			return "", errors.New("invalid conversion '%' to 'format'")
		} else if tmpl[i] == '%' {
			buf.WriteByte('%')
			continue
		}

		var hasPrec bool
		i, hasPrec = consumeFlags(tmpl, i)
		if i >= len(tmpl) {
			return "", fmt.Errorf("invalid conversion '%s' to 'format'", tmpl[fmtSpecStart:])
		}
		if argIndex >= len(args) {
			return "", fmt.Errorf("bad argument #%d to 'format' (no value)", argIndex+2)
		}
		arg := args[argIndex]
		argIndex++

		fmtSpec := tmpl[fmtSpecStart:i]
		fmtKind := tmpl[i]
		switch fmtKind {
		case 'c', 'd', 'i', 'u', 'o', 'x', 'X':
			num, ok := toFloat(arg)
			if !ok {
				return "", fmt.Errorf("bad argument #%d to 'format' (number expected, got %s)", argIndex+1, typeOf(arg))
			}
			intval := int64(num)
			switch fmtKind {
			case 'c':
				buf.WriteString(fmt.Sprintf(fmtSpec+"c", rune(byte(intval))))
			case 'd', 'i':
				buf.WriteString(fmt.Sprintf(fmtSpec+"d", intval))
			case 'u':
				buf.WriteString(fmt.Sprintf(fmtSpec+"d", uint64(intval)))
			default:
				buf.WriteString(fmt.Sprintf(fmtSpec+string(fmtKind), uint64(intval)))
			}
		case 'e', 'E', 'f', 'g', 'G':
			num, ok := toFloat(arg)
			if !ok {
				return "", fmt.Errorf("bad argument #%d to 'format' (number expected, got %s)", argIndex+1, typeOf(arg))
			}
			if !hasPrec {
				fmtSpec += ".6"
			}
			buf.WriteString(fmt.Sprintf(fmtSpec+string(fmtKind), num))
		case 's':
			buf.WriteString(fmt.Sprintf(fmtSpec+"s", toString(arg)))
		case 'q':
			if str, ok := arg.(string); ok {
				buf.WriteString(Quote(str))
			} else {
				buf.WriteString(toString(arg))
			}
		default:
			return "", fmt.Errorf("invalid option '%%%c' to 'format'", fmtKind)
		}
	}

	return buf.String(), nil
}

// Quote wraps a string in double quotes escaping it so that it reads back to
// the same string.
func Quote(str string) string {
	var buf strings.Builder
	buf.WriteByte('"')
	for i := 0; i < len(str); i++ {
		switch ch := str[i]; ch {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(ch)
		case '\n':
			buf.WriteString("\\n")
		case '\r':
			buf.WriteString("\\r")
		case 0:
			buf.WriteString("\\0")
		default:
			if ch < ' ' || ch == 127 {
				buf.WriteString("\\" + strconv.Itoa(int(ch)))
			} else {
				buf.WriteByte(ch)
			}
		}
	}
	buf.WriteByte('"')
	return buf.String()
}

func consumeFlags(tmpl string, i int) (int, bool) {
	for i < len(tmpl) && strings.IndexByte("-+ #0", tmpl[i]) >= 0 {
		i++
	}
	for i < len(tmpl) && isDigit(tmpl[i]) {
		i++
	}
	hasPrec := false
	if i < len(tmpl) && tmpl[i] == '.' {
		hasPrec = true
		i++
		for i < len(tmpl) && isDigit(tmpl[i]) {
			i++
		}
	}
	return i, hasPrec
}

func isDigit(ch byte) bool { return '0' <= ch && ch <= '9' }

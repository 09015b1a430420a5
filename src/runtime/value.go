// Package runtime holds the values, call stack, garbage collector, bytecode
// interpreter and standard library of luna.
//
// A value is a Go any holding one of nil, bool, float64, *String, *Table,
// *Closure, *Upvalue, *UserData or *GoFunc. Only registers of a running frame
// ever hold an *Upvalue, and every register read dereferences it.
package runtime

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type (
	// NativeFunction is the calling convention of functions implemented in Go.
	// Arguments are read from the state with the Get functions and results are
	// pushed with the Push functions, the returned count says how many of the
	// pushed values are results.
	NativeFunction func(*State) (int, error)
	// GoFunc is a go func usable by the vm.
	GoFunc struct {
		val  NativeFunction
		name string
	}
)

// Fn creates a value that is usable by the vm from a function. This enables exposing
// a go function to the VM.
func Fn(name string, fn NativeFunction) *GoFunc {
	return &GoFunc{name: name, val: fn}
}

// Name is the name the function was registered with.
func (fn *GoFunc) Name() string { return fn.name }

func (fn *GoFunc) String() string {
	return fmt.Sprintf("function: builtin: %s", fn.name)
}

func typeName(in any) string {
	switch in.(type) {
	case nil:
		return "nil"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case *String:
		return "string"
	case *Closure, *GoFunc:
		return "function"
	case *Table:
		return "table"
	case *UserData:
		return "userdata"
	case *Upvalue:
		return "upvalue"
	default:
		return fmt.Sprintf("%T", in)
	}
}

// TypeName returns the name of the type of a value as the type function
// reports it.
func TypeName(in any) string { return typeName(in) }

func toBool(in any) bool {
	switch tin := in.(type) {
	case nil:
		return false
	case bool:
		return tin
	default:
		return true
	}
}

// numberToString formats a number as an integer when it is whole and with
// %.14g otherwise.
func numberToString(num float64) string {
	switch {
	case math.IsInf(num, 1):
		return "inf"
	case math.IsInf(num, -1):
		return "-inf"
	case math.IsNaN(num):
		return "nan"
	case num == math.Trunc(num) && math.Abs(num) < 1e15:
		return strconv.FormatFloat(num, 'f', -1, 64)
	default:
		return fmt.Sprintf("%.14g", num)
	}
}

// parseNumber converts a string the way tonumber does, surrounding spaces are
// allowed and hex integers are accepted.
func parseNumber(str string, base int) (float64, bool) {
	str = strings.TrimSpace(str)
	if str == "" {
		return 0, false
	}
	if base != 10 {
		ival, err := strconv.ParseInt(str, base, 64)
		return float64(ival), err == nil
	}
	neg := false
	if rest, ok := strings.CutPrefix(str, "-"); ok {
		neg, str = true, rest
	}
	var num float64
	if hex, ok := strings.CutPrefix(strings.ToLower(str), "0x"); ok {
		ival, err := strconv.ParseUint(hex, 16, 64)
		if err != nil {
			return 0, false
		}
		num = float64(ival)
	} else {
		if strings.ContainsAny(str, "xXpP_") || strings.HasPrefix(str, "+") || strings.EqualFold(str, "inf") ||
			strings.EqualFold(str, "infinity") || strings.EqualFold(str, "nan") {
			return 0, false
		}
		fval, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return 0, false
		}
		num = fval
	}
	if neg {
		num = -num
	}
	return num, true
}

// ToString will format a vm value to a printable string.
func ToString(val any) string {
	switch tin := val.(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(tin)
	case float64:
		return numberToString(tin)
	case *String:
		return tin.val
	case *Table:
		return fmt.Sprintf("table: %p", tin)
	case *Closure:
		return fmt.Sprintf("function: %p", tin)
	case *UserData:
		return fmt.Sprintf("userdata: %p", tin)
	case *Upvalue:
		return ToString(tin.Value)
	case fmt.Stringer:
		return tin.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

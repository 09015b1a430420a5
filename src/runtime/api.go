package runtime

import (
	"errors"
	"fmt"
	"strings"
)

// GetStackSize is the number of values between the base of the running
// native call and the top of the stack, its argument count until it pushes.
func (s *State) GetStackSize() int {
	if ci := s.frame(); ci != nil {
		return s.top - ci.base
	}
	return s.top
}

func (s *State) stackIndex(i int) int {
	if i < 0 {
		return s.top + i
	}
	base := 0
	if ci := s.frame(); ci != nil {
		base = ci.base
	}
	return base + i
}

// GetValue returns the value at i, counted from 0 at the base of the call or
// from the top when negative. Out of range indexes hold nil.
func (s *State) GetValue(i int) any {
	idx := s.stackIndex(i)
	if ci := s.frame(); idx < 0 || idx >= s.top || (ci != nil && idx < ci.base) {
		return nil
	}
	return deref(s.stack[idx])
}

// GetNumber returns the number at i and false when it is not a number.
func (s *State) GetNumber(i int) (float64, bool) {
	num, ok := s.GetValue(i).(float64)
	return num, ok
}

// GetString returns the string at i, numbers are converted.
func (s *State) GetString(i int) (string, bool) {
	switch val := s.GetValue(i).(type) {
	case *String:
		return val.val, true
	case float64:
		return numberToString(val), true
	default:
		return "", false
	}
}

// GetTable returns the table at i.
func (s *State) GetTable(i int) (*Table, bool) {
	tbl, ok := s.GetValue(i).(*Table)
	return tbl, ok
}

// GetUserData returns the userdata at i.
func (s *State) GetUserData(i int) (*UserData, bool) {
	ud, ok := s.GetValue(i).(*UserData)
	return ud, ok
}

// PushValue pushes any value on top of the stack.
func (s *State) PushValue(val any) {
	if err := s.ensureStack(s.top + 1); err != nil {
		return
	}
	s.stack[s.top] = val
	s.top++
}

// PushNil pushes nil.
func (s *State) PushNil() { s.PushValue(nil) }

// PushBool pushes a boolean.
func (s *State) PushBool(val bool) { s.PushValue(val) }

// PushNumber pushes a number.
func (s *State) PushNumber(num float64) { s.PushValue(num) }

// PushString interns and pushes a string.
func (s *State) PushString(str string) { s.PushValue(s.NewString(str)) }

// PushTable pushes a table.
func (s *State) PushTable(tbl *Table) { s.PushValue(tbl) }

// PushUserData pushes a userdata.
func (s *State) PushUserData(ud *UserData) { s.PushValue(ud) }

// CheckArgs validates the arguments of a native call. Each assertion is a type
// name or several joined with |, prefixed with ~ when the argument is
// optional. The type "value" accepts anything.
func (s *State) CheckArgs(methodName string, assertions ...string) error {
	nargs := s.GetStackSize()
	for i, assertion := range assertions {
		optional := strings.HasPrefix(assertion, "~")
		expected := strings.TrimPrefix(assertion, "~")
		if i >= nargs && !optional {
			return argumentErr(i+1, methodName, fmt.Errorf("%v expected, got no value", expected))
		} else if i >= nargs {
			return nil
		} else if expected == "value" {
			continue
		}

		valType := typeName(s.GetValue(i))
		if optional && valType == "nil" {
			continue
		}
		typeFound := false
		for _, name := range strings.Split(expected, "|") {
			if name == valType {
				typeFound = true
				break
			}
		}
		if !typeFound {
			return argumentErr(i+1, methodName, fmt.Errorf("%v expected, got %v", strings.ReplaceAll(expected, "|", " or "), valType))
		}
	}
	return nil
}

func argumentErr(nArg int, methodName string, err error) error {
	return fmt.Errorf("bad argument #%v to '%v' (%w)", nArg, methodName, err)
}

// optNumber reads an optional number argument.
func (s *State) optNumber(i int, def float64) float64 {
	if num, ok := s.GetNumber(i); ok {
		return num
	}
	return def
}

func (s *State) checkInt(methodName string, i int) (int, error) {
	num, ok := s.GetNumber(i)
	if !ok {
		if str, isStr := s.GetString(i); isStr {
			if parsed, valid := parseNumber(str, 10); valid {
				return int(parsed), nil
			}
		}
		return 0, argumentErr(i+1, methodName, errors.New("number expected"))
	}
	return int(num), nil
}

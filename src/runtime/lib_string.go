package runtime

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/airtrack/luna-sub000/src/lstring"
)

func createStringLib(s *State) *Table {
	lib := s.newLib("string", libFuncs{
		"byte":    stdStringByte,
		"char":    stdStringChar,
		"format":  stdStringFormat,
		"len":     stdStringLen,
		"lower":   stdStringLower,
		"rep":     stdStringRep,
		"reverse": stdStringReverse,
		"sub":     stdStringSub,
		"upper":   stdStringUpper,
	})
	s.strLib = lib
	return lib
}

func stdStringLen(s *State) (int, error) {
	if err := s.CheckArgs("string.len", "string|number"); err != nil {
		return 0, err
	}
	str, _ := s.GetString(0)
	s.PushNumber(float64(len(str)))
	return 1, nil
}

func stdStringSub(s *State) (int, error) {
	if err := s.CheckArgs("string.sub", "string|number", "~number", "~number"); err != nil {
		return 0, err
	}
	str, _ := s.GetString(0)
	start := s.optNumber(1, 1)
	end := s.optNumber(2, -1)
	s.PushString(lstring.Substring(str, int64(start), int64(end)))
	return 1, nil
}

func stdStringUpper(s *State) (int, error) {
	if err := s.CheckArgs("string.upper", "string|number"); err != nil {
		return 0, err
	}
	str, _ := s.GetString(0)
	s.PushString(cases.Upper(language.Und).String(str))
	return 1, nil
}

func stdStringLower(s *State) (int, error) {
	if err := s.CheckArgs("string.lower", "string|number"); err != nil {
		return 0, err
	}
	str, _ := s.GetString(0)
	s.PushString(cases.Lower(language.Und).String(str))
	return 1, nil
}

func stdStringRep(s *State) (int, error) {
	if err := s.CheckArgs("string.rep", "string|number", "number", "~string"); err != nil {
		return 0, err
	}
	str, _ := s.GetString(0)
	count, _ := s.GetNumber(1)
	sep, _ := s.GetString(2)
	if total := (len(str) + len(sep)) * int(count); total > s.cfg.MaxStackSize*64 {
		return 0, errors.New("resulting string too large")
	}
	s.PushString(lstring.Repeat(str, sep, int64(count)))
	return 1, nil
}

func stdStringReverse(s *State) (int, error) {
	if err := s.CheckArgs("string.reverse", "string|number"); err != nil {
		return 0, err
	}
	str, _ := s.GetString(0)
	s.PushString(lstring.Reverse(str))
	return 1, nil
}

func stdStringByte(s *State) (int, error) {
	if err := s.CheckArgs("string.byte", "string|number", "~number", "~number"); err != nil {
		return 0, err
	}
	str, _ := s.GetString(0)
	start := s.optNumber(1, 1)
	end := s.optNumber(2, start)
	substr := lstring.Substring(str, int64(start), int64(end))
	for i, n := 0, len(substr); i < n; i++ {
		s.PushNumber(float64(substr[i]))
	}
	return len(substr), nil
}

func stdStringChar(s *State) (int, error) {
	var str strings.Builder
	for i, n := 0, s.GetStackSize(); i < n; i++ {
		point, ok := s.GetNumber(i)
		if !ok {
			return 0, argumentErr(i+1, "string.char", errors.New("number expected, got "+typeName(s.GetValue(i))))
		} else if point < 0 || point > 255 {
			return 0, argumentErr(i+1, "string.char", errors.New("value out of range"))
		}
		str.WriteByte(byte(point))
	}
	s.PushString(str.String())
	return 1, nil
}

func stdStringFormat(s *State) (int, error) {
	if err := s.CheckArgs("string.format", "string|number"); err != nil {
		return 0, err
	}
	pattern, _ := s.GetString(0)
	args := make([]any, s.GetStackSize()-1)
	for i := range args {
		switch val := s.GetValue(i + 1).(type) {
		case *String:
			args[i] = val.val
		case float64, nil:
			args[i] = val
		default:
			args[i] = ToString(val)
		}
	}
	str, err := lstring.Format(pattern, args...)
	if err != nil {
		return 0, err
	}
	s.PushString(str)
	return 1, nil
}

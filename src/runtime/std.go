package runtime

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/airtrack/luna-sub000/src/conf"
)

type libFuncs map[string]NativeFunction

func openLibs(s *State) {
	s.register(s.Globals, "", libFuncs{
		"assert":         stdAssert,
		"collectgarbage": stdCollectgarbage,
		"dofile":         stdDoFile,
		"error":          stdError,
		"ipairs":         stdIPairs,
		"load":           stdLoad,
		"next":           stdNext,
		"pairs":          stdPairs,
		"print":          stdPrint,
		"rawequal":       stdRawEq,
		"rawlen":         stdRawLen,
		"select":         stdSelect,
		"tonumber":       stdToNumber,
		"tostring":       stdToString,
		"type":           stdType,
		"unpack":         stdTableUnpack,
		"warn":           stdWarn,
	})
	_ = s.SetGlobal("_G", s.Globals)
	_ = s.SetGlobal("_VERSION", s.NewString(conf.LUNAVERSION))
	libs := map[string]func(*State) *Table{
		"io":     createIOLib,
		"math":   createMathLib,
		"os":     createOSLib,
		"string": createStringLib,
		"table":  createTableLib,
	}
	for name, factory := range libs {
		_ = s.SetGlobal(name, factory(s))
	}
}

// register sets every function of fns in tbl, naming them prefix.name.
func (s *State) register(tbl *Table, prefix string, fns libFuncs) {
	for name, fn := range fns {
		fullName := name
		if prefix != "" {
			fullName = prefix + "." + name
		}
		_ = tbl.Set(s.NewString(name), Fn(fullName, fn))
	}
}

func (s *State) newLib(prefix string, fns libFuncs) *Table {
	tbl := s.NewTable()
	s.register(tbl, prefix, fns)
	return tbl
}

func stdPrint(s *State) (int, error) {
	nargs := s.GetStackSize()
	strParts := make([]string, nargs)
	for i := 0; i < nargs; i++ {
		strParts[i] = ToString(s.GetValue(i))
	}
	_, err := fmt.Fprintln(s.Stdout, strings.Join(strParts, "\t"))
	return 0, err
}

// stdWarn prints its string arguments to stderr when warnings are enabled in
// the config.
func stdWarn(s *State) (int, error) {
	nargs := s.GetStackSize()
	assertions := make([]string, max(nargs, 1))
	for i := range assertions {
		assertions[i] = "string|number"
	}
	if err := s.CheckArgs("warn", assertions...); err != nil {
		return 0, err
	} else if !s.cfg.Warn {
		return 0, nil
	}
	parts := make([]string, nargs)
	for i := 0; i < nargs; i++ {
		parts[i], _ = s.GetString(i)
	}
	_, err := fmt.Fprintf(s.Stderr, "luna warning: %s\n", strings.Join(parts, ""))
	return 0, err
}

func stdType(s *State) (int, error) {
	if err := s.CheckArgs("type", "value"); err != nil {
		return 0, err
	}
	s.PushString(typeName(s.GetValue(0)))
	return 1, nil
}

func stdToString(s *State) (int, error) {
	if err := s.CheckArgs("tostring", "value"); err != nil {
		return 0, err
	}
	s.PushString(ToString(s.GetValue(0)))
	return 1, nil
}

func stdToNumber(s *State) (int, error) {
	if err := s.CheckArgs("tonumber", "value", "~number"); err != nil {
		return 0, err
	}
	base := int(s.optNumber(1, 10))
	if base < 2 || base > 36 {
		return 0, argumentErr(2, "tonumber", errors.New("base out of range"))
	}
	switch val := s.GetValue(0).(type) {
	case float64:
		if base == 10 {
			s.PushNumber(val)
			return 1, nil
		}
	case *String:
		if num, ok := parseNumber(val.val, base); ok {
			s.PushNumber(num)
			return 1, nil
		}
	}
	s.PushNil()
	return 1, nil
}

func stdNext(s *State) (int, error) {
	if err := s.CheckArgs("next", "table", "~value"); err != nil {
		return 0, err
	}
	tbl, _ := s.GetTable(0)
	key, val, err := tbl.Next(s.GetValue(1))
	if err != nil {
		return 0, err
	} else if key == nil {
		s.PushNil()
		return 1, nil
	}
	s.PushValue(key)
	s.PushValue(val)
	return 2, nil
}

func stdPairs(s *State) (int, error) {
	if err := s.CheckArgs("pairs", "table"); err != nil {
		return 0, err
	}
	s.PushValue(Fn("next", stdNext))
	s.PushValue(s.GetValue(0))
	s.PushNil()
	return 3, nil
}

func stdIPairsIterator(s *State) (int, error) {
	tbl, ok := s.GetTable(0)
	if !ok {
		return 0, argumentErr(1, "ipairs", errors.New("table expected"))
	}
	i := s.optNumber(1, 0) + 1
	val := tbl.Get(i)
	if val == nil {
		s.PushNil()
		return 1, nil
	}
	s.PushNumber(i)
	s.PushValue(val)
	return 2, nil
}

func stdIPairs(s *State) (int, error) {
	if err := s.CheckArgs("ipairs", "table"); err != nil {
		return 0, err
	}
	s.PushValue(Fn("ipairs.next", stdIPairsIterator))
	s.PushValue(s.GetValue(0))
	s.PushNumber(0)
	return 3, nil
}

func stdAssert(s *State) (int, error) {
	if err := s.CheckArgs("assert", "value", "~value"); err != nil {
		return 0, err
	} else if toBool(s.GetValue(0)) {
		return s.GetStackSize(), nil
	} else if msg := s.GetValue(1); msg != nil {
		return 0, errors.New(ToString(msg))
	}
	return 0, errors.New("assertion failed!")
}

func stdError(s *State) (int, error) {
	if err := s.CheckArgs("error", "~value"); err != nil {
		return 0, err
	}
	errObj := s.GetValue(0)
	if errObj == nil {
		return 0, errors.New("nil")
	}
	return 0, errors.New(ToString(errObj))
}

func stdSelect(s *State) (int, error) {
	if err := s.CheckArgs("select", "number|string"); err != nil {
		return 0, err
	}
	rest := s.GetStackSize() - 1
	if str, ok := s.GetValue(0).(*String); ok {
		if str.val != "#" {
			return 0, argumentErr(1, "select", errors.New("number expected, got string"))
		}
		s.PushNumber(float64(rest))
		return 1, nil
	}
	sel, _ := s.GetNumber(0)
	n := int(sel)
	if n < 0 {
		n += rest + 1
		if n < 1 {
			return 0, argumentErr(1, "select", errors.New("index out of range"))
		}
	} else if n == 0 {
		return 0, argumentErr(1, "select", errors.New("index out of range"))
	}
	if n > rest {
		return 0, nil
	}
	return rest - n + 1, nil
}

func stdRawEq(s *State) (int, error) {
	if err := s.CheckArgs("rawequal", "value", "value"); err != nil {
		return 0, err
	}
	s.PushBool(valuesEqual(s.GetValue(0), s.GetValue(1)))
	return 1, nil
}

func stdRawLen(s *State) (int, error) {
	if err := s.CheckArgs("rawlen", "string|table"); err != nil {
		return 0, err
	}
	switch val := s.GetValue(0).(type) {
	case *String:
		s.PushNumber(float64(len(val.val)))
	case *Table:
		s.PushNumber(float64(val.Len()))
	}
	return 1, nil
}

func stdCollectgarbage(s *State) (int, error) {
	if err := s.CheckArgs("collectgarbage", "~string"); err != nil {
		return 0, err
	}
	mode := "collect"
	if str, ok := s.GetString(0); ok {
		mode = str
	}
	switch mode {
	case "collect":
		s.Collect(conf.GCGENERATIONS - 1)
		s.PushNumber(0)
	case "step":
		s.Collect(0)
		s.PushBool(true)
	case "count":
		s.PushNumber(float64(s.Heap.Total()))
	case "generation":
		for gen := 0; gen < conf.GCGENERATIONS; gen++ {
			s.PushNumber(float64(s.Heap.Size(gen)))
		}
		return conf.GCGENERATIONS, nil
	default:
		return 0, argumentErr(1, "collectgarbage", fmt.Errorf("invalid option '%s'", mode))
	}
	return 1, nil
}

func stdLoad(s *State) (int, error) {
	if err := s.CheckArgs("load", "string|function", "~string"); err != nil {
		return 0, err
	}
	chunkname := "=(load)"
	if name, ok := s.GetString(1); ok {
		chunkname = name
	}
	var src strings.Builder
	if str, ok := s.GetString(0); ok {
		src.WriteString(str)
	} else {
		reader := s.GetValue(0)
		for {
			res, err := s.CallFunction(reader, nil, 1)
			if err != nil {
				return 0, err
			}
			piece, ok := res[0].(*String)
			if !ok || piece.val == "" {
				break
			}
			src.WriteString(piece.val)
		}
	}
	cl, err := s.load(chunkname, strings.NewReader(src.String()))
	if err != nil {
		s.PushNil()
		s.PushString(err.Error())
		return 2, nil
	}
	s.PushValue(cl)
	return 1, nil
}

func stdDoFile(s *State) (int, error) {
	if err := s.CheckArgs("dofile", "string"); err != nil {
		return 0, err
	}
	path, _ := s.GetString(0)
	file, err := os.Open(path)
	if err != nil {
		return 0, argumentErr(1, "dofile", fmt.Errorf("cannot open %v", path))
	}
	defer file.Close()
	cl, err := s.load(path, file)
	if err != nil {
		return 0, err
	}
	res, err := s.CallFunction(cl, nil, ResultsAny)
	if err != nil {
		return 0, err
	}
	for _, val := range res {
		s.PushValue(val)
	}
	return len(res), nil
}

// load compiles a chunk with the installed compiler and wraps it in a closure.
func (s *State) load(module string, src io.Reader) (*Closure, error) {
	if s.Compile == nil {
		return nil, errors.New("no compiler installed")
	}
	proto, err := s.Compile(s, module, src)
	if err != nil {
		return nil, err
	}
	return s.NewClosure(proto), nil
}

func isInteger(num float64) bool {
	return num == math.Trunc(num) && !math.IsInf(num, 0)
}

package runtime

import (
	"errors"
	"slices"
	"strings"

	"github.com/airtrack/luna-sub000/src/bytecode"
)

func createTableLib(s *State) *Table {
	return s.newLib("table", libFuncs{
		"concat": stdTableConcat,
		"insert": stdTableInsert,
		"remove": stdTableRemove,
		"sort":   stdTableSort,
		"unpack": stdTableUnpack,
	})
}

func stdTableConcat(s *State) (int, error) {
	if err := s.CheckArgs("table.concat", "table", "~string|number", "~number", "~number"); err != nil {
		return 0, err
	}
	tbl, _ := s.GetTable(0)
	sep, _ := s.GetString(1)
	i := int(s.optNumber(2, 1))
	j := int(s.optNumber(3, float64(tbl.Len())))
	strParts := []string{}
	for k := i; k <= j; k++ {
		str, ok := concatString(tbl.Get(float64(k)))
		if !ok {
			return 0, argumentErr(1, "table.concat", errors.New("invalid value at index "+numberToString(float64(k))+" in table for 'concat'"))
		}
		strParts = append(strParts, str)
	}
	s.PushString(strings.Join(strParts, sep))
	return 1, nil
}

func stdTableInsert(s *State) (int, error) {
	if err := s.CheckArgs("table.insert", "table", "value", "~value"); err != nil {
		return 0, err
	}
	tbl, _ := s.GetTable(0)
	switch s.GetStackSize() {
	case 2:
		return 0, tbl.Set(float64(tbl.Len()+1), s.GetValue(1))
	case 3:
		pos, ok := s.GetNumber(1)
		if !ok {
			return 0, argumentErr(2, "table.insert", errors.New("number expected, got "+typeName(s.GetValue(1))))
		}
		if err := tbl.Insert(int(pos), s.GetValue(2)); err != nil {
			return 0, argumentErr(2, "table.insert", err)
		}
		return 0, nil
	default:
		return 0, errors.New("wrong number of arguments to 'insert'")
	}
}

func stdTableRemove(s *State) (int, error) {
	if err := s.CheckArgs("table.remove", "table", "~number"); err != nil {
		return 0, err
	}
	tbl, _ := s.GetTable(0)
	if tbl.Len() == 0 {
		return 0, nil
	}
	pos := int(s.optNumber(1, float64(tbl.Len())))
	s.PushValue(tbl.Remove(pos))
	return 1, nil
}

func stdTableUnpack(s *State) (int, error) {
	if err := s.CheckArgs("unpack", "table", "~number", "~number"); err != nil {
		return 0, err
	}
	tbl, _ := s.GetTable(0)
	i := int(s.optNumber(1, 1))
	j := int(s.optNumber(2, float64(tbl.Len())))
	if j-i >= s.cfg.MaxStackSize {
		return 0, errors.New("too many results to unpack")
	}
	for k := i; k <= j; k++ {
		s.PushValue(tbl.Get(float64(k)))
	}
	return max(j-i+1, 0), nil
}

func stdTableSort(s *State) (int, error) {
	if err := s.CheckArgs("table.sort", "table", "~function"); err != nil {
		return 0, err
	}
	tbl, _ := s.GetTable(0)
	comp := s.GetValue(1)
	var sortErr error
	slices.SortStableFunc(tbl.array, func(l, r any) int {
		if sortErr != nil {
			return 0
		}
		less, err := s.sortLess(comp, l, r)
		if err != nil {
			sortErr = err
			return 0
		} else if less {
			return -1
		}
		greater, err := s.sortLess(comp, r, l)
		if err != nil {
			sortErr = err
		} else if greater {
			return 1
		}
		return 0
	})
	return 0, sortErr
}

func (s *State) sortLess(comp, l, r any) (bool, error) {
	if comp != nil {
		res, err := s.CallFunction(comp, []any{l, r}, 1)
		if err != nil {
			return false, err
		}
		return toBool(res[0]), nil
	}
	less, ok := compare(bytecode.LT, l, r)
	if !ok {
		return false, errors.New("attempt to compare " + typeName(l) + " with " + typeName(r))
	}
	return less, nil
}

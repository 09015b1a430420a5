package runtime

import (
	"errors"
	"math"
	"time"
)

func createMathLib(s *State) *Table {
	lib := s.newLib("math", libFuncs{
		"abs":        stdMathFn("abs", math.Abs),
		"acos":       stdMathFn("acos", math.Acos),
		"asin":       stdMathFn("asin", math.Asin),
		"atan":       stdMathFn("atan", math.Atan),
		"ceil":       stdMathFn("ceil", math.Ceil),
		"cos":        stdMathFn("cos", math.Cos),
		"exp":        stdMathFn("exp", math.Exp),
		"floor":      stdMathFn("floor", math.Floor),
		"log":        stdMathFn("log", math.Log),
		"log10":      stdMathFn("log10", math.Log10),
		"sin":        stdMathFn("sin", math.Sin),
		"sqrt":       stdMathFn("sqrt", math.Sqrt),
		"tan":        stdMathFn("tan", math.Tan),
		"fmod":       stdMathFmod,
		"modf":       stdMathModf,
		"pow":        stdMathPow,
		"max":        stdMathMax,
		"min":        stdMathMin,
		"random":     stdMathRandom,
		"randomseed": stdMathRandomSeed,
	})
	_ = lib.Set(s.NewString("huge"), math.Inf(1))
	_ = lib.Set(s.NewString("pi"), math.Pi)
	return lib
}

func stdMathFn(name string, fn func(float64) float64) NativeFunction {
	return func(s *State) (int, error) {
		if err := s.CheckArgs("math."+name, "number"); err != nil {
			return 0, err
		}
		num, _ := s.GetNumber(0)
		s.PushNumber(fn(num))
		return 1, nil
	}
}

func stdMathFmod(s *State) (int, error) {
	if err := s.CheckArgs("math.fmod", "number", "number"); err != nil {
		return 0, err
	}
	x, _ := s.GetNumber(0)
	y, _ := s.GetNumber(1)
	s.PushNumber(math.Mod(x, y))
	return 1, nil
}

func stdMathModf(s *State) (int, error) {
	if err := s.CheckArgs("math.modf", "number"); err != nil {
		return 0, err
	}
	num, _ := s.GetNumber(0)
	whole, frac := math.Modf(num)
	s.PushNumber(whole)
	s.PushNumber(frac)
	return 2, nil
}

func stdMathPow(s *State) (int, error) {
	if err := s.CheckArgs("math.pow", "number", "number"); err != nil {
		return 0, err
	}
	x, _ := s.GetNumber(0)
	y, _ := s.GetNumber(1)
	s.PushNumber(math.Pow(x, y))
	return 1, nil
}

func mathFold(name string, pick func(a, b float64) float64) NativeFunction {
	return func(s *State) (int, error) {
		if err := s.CheckArgs(name, "number"); err != nil {
			return 0, err
		}
		res, _ := s.GetNumber(0)
		for i := 1; i < s.GetStackSize(); i++ {
			num, ok := s.GetNumber(i)
			if !ok {
				return 0, argumentErr(i+1, name, errors.New("number expected"))
			}
			res = pick(res, num)
		}
		s.PushNumber(res)
		return 1, nil
	}
}

var (
	stdMathMax = mathFold("math.max", math.Max)
	stdMathMin = mathFold("math.min", math.Min)
)

func stdMathRandomSeed(s *State) (int, error) {
	if err := s.CheckArgs("math.randomseed", "~number"); err != nil {
		return 0, err
	}
	seed := time.Now().UnixNano()
	if num, ok := s.GetNumber(0); ok {
		seed = int64(num)
	}
	s.rand.Seed(seed)
	return 0, nil
}

func stdMathRandom(s *State) (int, error) {
	if err := s.CheckArgs("math.random", "~number", "~number"); err != nil {
		return 0, err
	}
	switch s.GetStackSize() {
	case 0:
		s.PushNumber(s.rand.Float64())
		return 1, nil
	case 1:
		upper, _ := s.GetNumber(0)
		if upper < 1 {
			return 0, argumentErr(1, "math.random", errors.New("interval is empty"))
		}
		s.PushNumber(float64(1 + s.rand.Int63n(int64(upper))))
		return 1, nil
	default:
		lower, _ := s.GetNumber(0)
		upper, _ := s.GetNumber(1)
		if lower > upper {
			return 0, argumentErr(2, "math.random", errors.New("interval is empty"))
		}
		s.PushNumber(float64(int64(lower) + s.rand.Int63n(int64(upper)-int64(lower)+1)))
		return 1, nil
	}
}

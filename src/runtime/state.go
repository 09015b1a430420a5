package runtime

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/tliron/commonlog"

	"github.com/airtrack/luna-sub000/src/conf"
	"github.com/airtrack/luna-sub000/src/lerrors"
)

type (
	// Compiler turns source into a prototype. The runtime does not depend on
	// the code generator so the embedder installs one on the state for load
	// and dofile.
	Compiler func(state *State, module string, src io.Reader) (*Function, error)
	callInfo struct {
		closure    *Closure
		native     *GoFunc
		funcIdx    int
		base       int
		pc         int
		expected   int
		varargBase int
		numVarArgs int
	}
	// State is one interpreter: the value stack, the call frames, the heap and
	// the globals. A state must only be used from one goroutine at a time.
	State struct {
		ctx      context.Context
		cfg      conf.Config
		Heap     *Heap
		Strings  *StringPool
		Globals  *Table
		Registry *Table
		Stdout   io.Writer
		Stderr   io.Writer
		Stdin    *bufio.Reader
		Compile  Compiler
		stack    []any
		top      int
		calls    []*callInfo
		steps    int
		rand     *rand.Rand
		strLib   *Table
		started  time.Time
	}
)

// ResultsAny asks a call for every result it produces.
const ResultsAny = -1

var (
	errStackOverflow = errors.New("stack overflow")
	vmLog            = commonlog.GetLogger("luna.vm")
)

// NewState creates a state with the standard library loaded into its globals.
func NewState(ctx context.Context, cfg conf.Config) *State {
	heap := newHeap(cfg.GC)
	pool := newStringPool(heap)
	heap.pool = pool
	state := &State{
		ctx:     ctx,
		cfg:     cfg,
		Heap:    heap,
		Strings: pool,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Stdin:   bufio.NewReader(os.Stdin),
		stack:   make([]any, cfg.InitialStackSize),
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
		started: time.Now(),
	}
	state.Globals = state.NewTable()
	state.Registry = state.NewTable()
	openLibs(state)
	return state
}

// Config returns the configuration the state was created with.
func (s *State) Config() conf.Config { return s.cfg }

// NewString interns a string in the state's pool.
func (s *State) NewString(str string) *String { return s.Strings.Intern(str) }

// NewTable allocates an empty table tracked by the collector.
func (s *State) NewTable() *Table {
	tbl := newTable(0, 0)
	s.Heap.track(tbl)
	return tbl
}

// NewUserData wraps data in a userdata tracked by the collector.
func (s *State) NewUserData(data any, meta *Table) *UserData {
	ud := &UserData{Data: data, metatable: meta}
	s.Heap.track(ud)
	return ud
}

// NewClosure creates a closure without upvalues, used for chunks.
func (s *State) NewClosure(proto *Function) *Closure {
	cl := &Closure{proto: proto}
	s.Heap.track(cl)
	return cl
}

// SetGlobal sets a global by name.
func (s *State) SetGlobal(name string, val any) error {
	return s.Globals.Set(s.NewString(name), val)
}

// GetGlobal gets a global by name.
func (s *State) GetGlobal(name string) any {
	return s.Globals.Get(s.NewString(name))
}

// Call calls fn with args from the host and returns all of its results. When
// the call fails the stack is unwound to where it was so that the state can
// be used again.
func (s *State) Call(fn any, args ...any) ([]any, error) {
	depth, top := len(s.calls), s.top
	res, err := s.CallFunction(fn, args, ResultsAny)
	if err != nil {
		clear(s.stack[top:s.liveExtent()])
		s.calls = s.calls[:depth]
		s.top = top
	}
	return res, err
}

// CallFunction calls fn above the current top of the stack and returns its
// results, padded or truncated to nresults unless nresults is ResultsAny.
// Natives use it to call back into lua.
func (s *State) CallFunction(fn any, args []any, nresults int) ([]any, error) {
	funcIdx := s.top
	if err := s.ensureStack(funcIdx + len(args) + 1); err != nil {
		return nil, err
	}
	s.stack[funcIdx] = fn
	copy(s.stack[funcIdx+1:], args)
	s.top = funcIdx + len(args) + 1
	if err := s.call(funcIdx, len(args), ResultsAny); err != nil {
		return nil, err
	}
	res := make([]any, s.top-funcIdx)
	copy(res, s.stack[funcIdx:s.top])
	clear(s.stack[funcIdx:s.top])
	s.top = funcIdx
	if nresults != ResultsAny {
		res = fitValues(res, nresults)
	}
	return res, nil
}

func fitValues(vals []any, want int) []any {
	if len(vals) >= want {
		return vals[:want]
	}
	return append(vals, make([]any, want-len(vals))...)
}

// call invokes the value at funcIdx with nargs arguments above it and runs it
// to completion.
func (s *State) call(funcIdx, nargs, expected int) error {
	depth := len(s.calls)
	isLua, err := s.precall(funcIdx, nargs, expected)
	if err != nil || !isLua {
		return err
	}
	return s.run(depth)
}

// precall sets up the frame for a call. Closures get a frame that the
// interpreter loop picks up, natives are run to completion.
func (s *State) precall(funcIdx, nargs, expected int) (bool, error) {
	if len(s.calls) >= s.cfg.MaxCallDepth {
		return false, errStackOverflow
	}
	switch fn := deref(s.stack[funcIdx]).(type) {
	case *Closure:
		return true, s.pushFrame(fn, funcIdx, nargs, expected)
	case *GoFunc:
		return false, s.callNative(fn, funcIdx, nargs, expected)
	default:
		return false, fmt.Errorf("attempt to call a %s value", typeName(fn))
	}
}

func (s *State) pushFrame(cl *Closure, funcIdx, nargs, expected int) error {
	proto := cl.proto
	ci := &callInfo{closure: cl, funcIdx: funcIdx, expected: expected}
	if proto.IsVararg {
		ci.base = funcIdx + 1 + nargs
		ci.varargBase = funcIdx + 1 + proto.NumParams
		ci.numVarArgs = max(nargs-proto.NumParams, 0)
	} else {
		ci.base = funcIdx + 1
	}
	if err := s.ensureStack(ci.base + proto.MaxRegisters); err != nil {
		return err
	}
	if proto.IsVararg {
		for i := 0; i < proto.NumParams; i++ {
			var arg any
			if i < nargs {
				arg = s.stack[funcIdx+1+i]
			}
			s.stack[ci.base+i] = arg
		}
		clear(s.stack[ci.base+proto.NumParams : ci.base+proto.MaxRegisters])
	} else {
		clear(s.stack[ci.base+min(nargs, proto.NumParams) : ci.base+proto.MaxRegisters])
	}
	s.top = ci.base + proto.MaxRegisters
	s.calls = append(s.calls, ci)
	return nil
}

func (s *State) callNative(fn *GoFunc, funcIdx, nargs, expected int) error {
	ci := &callInfo{native: fn, funcIdx: funcIdx, base: funcIdx + 1, expected: expected}
	s.calls = append(s.calls, ci)
	s.top = ci.base + nargs
	n, err := fn.val(s)
	s.calls = s.calls[:len(s.calls)-1]
	if err != nil {
		var lerr *lerrors.Error
		if errors.As(err, &lerr) {
			return err
		}
		return &hostError{err: err}
	}
	n = min(n, s.top-ci.base)
	return s.moveResults(s.top-n, n, funcIdx, expected)
}

// moveResults copies n values at src to dst, padding or truncating to
// expected. With ResultsAny the top is left right after the results. Results
// that do not fit under the stack limit are a stack overflow.
func (s *State) moveResults(src, n, dst, expected int) error {
	want := expected
	if want == ResultsAny {
		want = n
	}
	if err := s.ensureStack(dst + want); err != nil {
		return err
	}
	copy(s.stack[dst:dst+min(n, want)], s.stack[src:src+min(n, want)])
	if want > n {
		clear(s.stack[dst+n : dst+want])
	}
	if expected == ResultsAny {
		s.top = dst + want
	}
	return nil
}

func (s *State) ensureStack(size int) error {
	if size <= len(s.stack) {
		return nil
	} else if size > s.cfg.MaxStackSize {
		return errStackOverflow
	}
	grown := make([]any, min(max(size, 2*len(s.stack)), s.cfg.MaxStackSize))
	vmLog.Debugf("stack grown from %d to %d slots", len(s.stack), len(grown))
	copy(grown, s.stack)
	s.stack = grown
	return nil
}

// liveExtent is the end of the part of the stack any frame can see.
func (s *State) liveExtent() int {
	extent := s.top
	for _, ci := range s.calls {
		if ci.closure != nil {
			extent = max(extent, ci.base+ci.closure.proto.MaxRegisters)
		}
	}
	return min(extent, len(s.stack))
}

func (s *State) frame() *callInfo {
	if len(s.calls) == 0 {
		return nil
	}
	return s.calls[len(s.calls)-1]
}

// Collect runs a collection of generations 0 through upto.
func (s *State) Collect(upto int) {
	upto = min(max(upto, 0), conf.GCGENERATIONS-1)
	extent := s.liveExtent()
	clear(s.stack[extent:])
	s.Heap.collect(upto, func(m *marker) {
		for _, val := range s.stack[:extent] {
			m.mark(val)
		}
		for _, ci := range s.calls {
			if ci.closure != nil {
				m.mark(ci.closure)
			}
		}
		m.mark(s.Globals)
		m.mark(s.Registry)
	})
}

func (s *State) maybeCollect() {
	if upto := s.Heap.pending(); upto >= 0 {
		s.Collect(upto)
	}
}

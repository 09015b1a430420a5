package luna

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/airtrack/luna-sub000/src/codegen"
	"github.com/airtrack/luna-sub000/src/conf"
	"github.com/airtrack/luna-sub000/src/parse"
	"github.com/airtrack/luna-sub000/src/runtime"
	"github.com/airtrack/luna-sub000/src/semantic"
)

// NewState creates a state with the standard library loaded and the compiler
// installed.
func NewState(ctx context.Context, cfg conf.Config) *runtime.State {
	state := runtime.NewState(ctx, cfg)
	state.Compile = Compile
	return state
}

// Compile parses, annotates and generates src into the prototype of its main
// function. Constant strings are interned in the state's pool.
func Compile(state *runtime.State, module string, src io.Reader) (*runtime.Function, error) {
	chunk, err := parse.Parse(module, src)
	if err != nil {
		return nil, err
	} else if err := semantic.Analyze(chunk); err != nil {
		return nil, err
	}
	return codegen.Generate(state, chunk)
}

// DoString compiles and runs src, returning the values the chunk returns.
func DoString(state *runtime.State, module, src string) ([]any, error) {
	return do(state, module, strings.NewReader(src))
}

// DoFile compiles and runs the file at path.
func DoFile(state *runtime.State, path string) ([]any, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can not open file %s: %w", path, err)
	}
	defer func() { _ = src.Close() }()
	return do(state, path, src)
}

func do(state *runtime.State, module string, src io.Reader) ([]any, error) {
	proto, err := Compile(state, module, src)
	if err != nil {
		return nil, err
	}
	return state.Call(state.NewClosure(proto))
}

// String runs src in a fresh state with the default configuration.
func String(module, src string) ([]any, error) {
	return DoString(NewState(context.Background(), conf.Default()), module, src)
}

package runtime

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

const (
	replPrompt         = "> "
	replContinuePrompt = ">> "
	replModule         = "stdin"
)

// REPL will start an interactive repl reading, compiling and running lua code
// line by line until the input ends.
func (s *State) REPL() error {
	rl, err := readline.New(replPrompt)
	if err != nil {
		return err
	}
	defer rl.Close()

	buf := bytes.NewBuffer(nil)
	for {
		src, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if buf.Len() > 0 {
					rl.SetPrompt(replPrompt)
					buf.Reset()
					fmt.Fprint(s.Stderr, "Press ctrl-c again to quit.\n")
					continue
				}
				break
			} else if errors.Is(err, io.EOF) {
				break
			}
			fmt.Fprintln(s.Stderr, err)
			continue
		}

		buf.WriteString(src + "\n")
		if s.evalLine(buf.String()) {
			rl.SetPrompt(replContinuePrompt)
			continue
		}
		rl.SetPrompt(replPrompt)
		buf.Reset()
	}
	return nil
}

// evalLine compiles and runs one chunk of repl input, reporting true when the
// input is incomplete and more lines are needed. The input is first tried as
// an expression so that its values are printed.
func (s *State) evalLine(src string) bool {
	if s.Compile == nil {
		fmt.Fprintln(s.Stderr, "no compiler installed")
		return false
	}
	proto, err := s.Compile(s, replModule, strings.NewReader("return "+src))
	if err != nil {
		proto, err = s.Compile(s, replModule, strings.NewReader(src))
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		fmt.Fprintln(s.Stderr, err)
		return false
	}

	res, err := s.Call(s.NewClosure(proto))
	if err != nil {
		fmt.Fprintln(s.Stderr, err)
		return false
	} else if len(res) > 0 {
		strParts := make([]string, len(res))
		for i, val := range res {
			strParts[i] = ToString(val)
		}
		fmt.Fprintln(s.Stdout, strings.Join(strParts, "\t"))
	}
	return false
}

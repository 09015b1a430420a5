package runtime

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/airtrack/luna-sub000/src/lfile"
)

const fileMetaKey = "FILE*"

type (
	// stdStream forwards to the stream currently set on the state so that
	// redirecting Stdout after creation also redirects io.write.
	stdStream struct {
		s    *State
		kind int
	}
)

func (std stdStream) Read(p []byte) (int, error) { return std.s.Stdin.Read(p) }

func (std stdStream) Write(p []byte) (int, error) {
	if std.kind == 2 {
		return std.s.Stderr.Write(p)
	}
	return std.s.Stdout.Write(p)
}

func createIOLib(s *State) *Table {
	methods := s.newLib("file", libFuncs{
		"close": stdIOFileClose,
		"read":  stdIOFileRead,
		"write": stdIOFileWrite,
	})
	meta := s.NewTable()
	_ = meta.Set(s.NewString("__index"), methods)
	_ = meta.Set(s.NewString("__name"), s.NewString(fileMetaKey))
	_ = s.Registry.Set(s.NewString(fileMetaKey), meta)

	lib := s.newLib("io", libFuncs{
		"open":  stdIOOpen,
		"read":  stdIORead,
		"write": stdIOWrite,
	})
	stdin := s.NewUserData(lfile.NewStd("<stdin>", stdStream{s: s}, nil), meta)
	stdout := s.NewUserData(lfile.NewStd("<stdout>", nil, stdStream{s: s, kind: 1}), meta)
	stderr := s.NewUserData(lfile.NewStd("<stderr>", nil, stdStream{s: s, kind: 2}), meta)
	_ = lib.Set(s.NewString("stdin"), stdin)
	_ = lib.Set(s.NewString("stdout"), stdout)
	_ = lib.Set(s.NewString("stderr"), stderr)
	return lib
}

func (s *State) checkFile(methodName string, i int) (*lfile.File, error) {
	if ud, ok := s.GetUserData(i); ok {
		if file, isFile := ud.Data.(*lfile.File); isFile {
			return file, nil
		}
	}
	return nil, argumentErr(i+1, methodName, fmt.Errorf("file expected, got %s", typeName(s.GetValue(i))))
}

func (s *State) stdFile(name string) *lfile.File {
	lib, _ := s.GetGlobal("io").(*Table)
	if lib == nil {
		return nil
	}
	if ud, ok := lib.Get(s.NewString(name)).(*UserData); ok {
		file, _ := ud.Data.(*lfile.File)
		return file
	}
	return nil
}

func stdIOOpen(s *State) (int, error) {
	if err := s.CheckArgs("io.open", "string", "~string"); err != nil {
		return 0, err
	}
	path, _ := s.GetString(0)
	mode := "r"
	if str, ok := s.GetString(1); ok {
		mode = str
	}
	file, err := lfile.Open(path, mode)
	if err != nil {
		msg := err.Error()
		var perr *fs.PathError
		if errors.As(err, &perr) {
			msg = fmt.Sprintf("%s: %v", path, perr.Err)
		}
		s.PushNil()
		s.PushString(msg)
		return 2, nil
	}
	meta, _ := s.Registry.Get(s.NewString(fileMetaKey)).(*Table)
	s.PushUserData(s.NewUserData(file, meta))
	return 1, nil
}

func stdIOWrite(s *State) (int, error) {
	file := s.stdFile("stdout")
	if file == nil {
		return 0, errors.New("standard output is not available")
	}
	return s.writeFile(file, "io.write", 0)
}

func stdIOFileWrite(s *State) (int, error) {
	file, err := s.checkFile("file:write", 0)
	if err != nil {
		return 0, err
	}
	return s.writeFile(file, "file:write", 1)
}

func (s *State) writeFile(file *lfile.File, methodName string, first int) (int, error) {
	for i := first; i < s.GetStackSize(); i++ {
		str, ok := s.GetString(i)
		if !ok {
			return 0, argumentErr(i+1, methodName, fmt.Errorf("string expected, got %s", typeName(s.GetValue(i))))
		}
		if err := file.Write(str); err != nil {
			s.PushNil()
			s.PushString(err.Error())
			return 2, nil
		}
	}
	s.PushBool(true)
	return 1, nil
}

func stdIORead(s *State) (int, error) {
	file := s.stdFile("stdin")
	if file == nil {
		return 0, errors.New("standard input is not available")
	}
	return s.readFile(file, 0)
}

func stdIOFileRead(s *State) (int, error) {
	file, err := s.checkFile("file:read", 0)
	if err != nil {
		return 0, err
	}
	return s.readFile(file, 1)
}

func (s *State) readFile(file *lfile.File, first int) (int, error) {
	formats := []any{}
	for i := first; i < s.GetStackSize(); i++ {
		switch val := s.GetValue(i).(type) {
		case *String:
			formats = append(formats, val.val)
		case float64:
			formats = append(formats, val)
		default:
			return 0, argumentErr(i+1, "read", errors.New("invalid format"))
		}
	}
	if len(formats) == 0 {
		formats = append(formats, "*l")
	}
	res, err := file.Read(formats)
	if err != nil {
		return 0, err
	}
	for _, val := range res {
		if str, ok := val.(string); ok {
			s.PushString(str)
		} else {
			s.PushValue(val)
		}
	}
	return len(res), nil
}

func stdIOFileClose(s *State) (int, error) {
	file, err := s.checkFile("file:close", 0)
	if err != nil {
		return 0, err
	}
	if err := file.Close(); err != nil {
		s.PushNil()
		s.PushString(err.Error())
		return 2, nil
	}
	s.PushBool(true)
	return 1, nil
}

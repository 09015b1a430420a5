// Package lfile is a wrapper around os files to make them easier to use from
// the io library.
package lfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// File is a lua file handle.
type File struct {
	Path      string
	Closed    bool
	reader    *bufio.Reader
	writer    io.Writer
	handle    *os.File
	isstdpipe bool
	readOnly  bool
	writeOnly bool
}

var (
	errClosed    = errors.New("attempt to use a closed file")
	errReadOnly  = errors.New("file is read only")
	errWriteOnly = errors.New("file is write only")
)

// NewStd wraps a standard stream. Closing it is a no-op.
func NewStd(path string, in io.Reader, out io.Writer) *File {
	file := &File{Path: path, isstdpipe: true, writer: out}
	if in != nil {
		if buffered, ok := in.(*bufio.Reader); ok {
			file.reader = buffered
		} else {
			file.reader = bufio.NewReader(in)
		}
	}
	file.readOnly = out == nil
	file.writeOnly = in == nil
	return file
}

// Open will create a new lua file handle with a mode of r, w, a, r+, w+ or
// a+, optionally followed by b.
func Open(path, mode string) (*File, error) {
	flags, readOnly, writeOnly, err := parseMode(mode)
	if err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}
	return &File{
		Path:      path,
		handle:    file,
		reader:    bufio.NewReader(file),
		writer:    file,
		readOnly:  readOnly,
		writeOnly: writeOnly,
	}, nil
}

func parseMode(mode string) (flags int, readOnly, writeOnly bool, err error) {
	switch strings.TrimSuffix(mode, "b") {
	case "r":
		return os.O_RDONLY, true, false, nil
	case "w":
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, false, true, nil
	case "a":
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, false, true, nil
	case "r+":
		return os.O_RDWR, false, false, nil
	case "w+":
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC, false, false, nil
	case "a+":
		return os.O_RDWR | os.O_CREATE | os.O_APPEND, false, false, nil
	default:
		return 0, false, false, fmt.Errorf("invalid mode '%s'", mode)
	}
}

func (f *File) String() string {
	if f.Closed {
		return "file (closed)"
	}
	return fmt.Sprintf("file (%p)", f)
}

// Close will close and flush the file.
func (f *File) Close() error {
	if f.Closed || f.isstdpipe {
		return nil
	}
	f.Closed = true
	if err := f.handle.Sync(); err != nil {
		_ = f.handle.Close()
		return err
	}
	return f.handle.Close()
}

// Destroy closes the file when its handle is collected.
func (f *File) Destroy() { _ = f.Close() }

func (f *File) Write(data string) error {
	if f.Closed {
		return errClosed
	} else if f.readOnly {
		return errReadOnly
	}
	_, err := io.WriteString(f.writer, data)
	return err
}

// Read reads one value per format. A format is a byte count or one of "*l"
// for a line without its newline, "*L" for a line with it, "*n" for a number
// and "*a" for the rest of the file. Reading stops at the end of the file and
// the results gathered so far are returned with nil for the format that hit
// it.
func (f *File) Read(formats []any) ([]any, error) {
	if f.Closed {
		return nil, errClosed
	} else if f.writeOnly {
		return nil, errWriteOnly
	}

	results := []any{}
	for _, mode := range formats {
		switch fmode := mode.(type) {
		case float64:
			if fmode == 0 {
				if _, err := f.reader.Peek(1); err != nil {
					return append(results, nil), nil
				}
				results = append(results, "")
				continue
			}
			buf := make([]byte, int(fmode))
			n, err := io.ReadFull(f.reader, buf)
			if n == 0 && err != nil {
				return append(results, nil), nil
			}
			results = append(results, string(buf[:n]))
		case string:
			switch strings.TrimPrefix(fmode, "*") {
			case "n":
				var num float64
				if _, err := fmt.Fscan(f.reader, &num); err != nil {
					return append(results, nil), nil
				}
				results = append(results, num)
			case "a":
				buf, err := io.ReadAll(f.reader)
				if err != nil {
					return nil, err
				}
				results = append(results, string(buf))
			case "l", "L":
				text, err := f.reader.ReadString('\n')
				if errors.Is(err, io.EOF) && text == "" {
					return append(results, nil), nil
				} else if err != nil && !errors.Is(err, io.EOF) {
					return nil, err
				} else if fmode == "*L" || fmode == "L" {
					results = append(results, text)
				} else {
					results = append(results, strings.TrimRight(text, "\r\n"))
				}
			default:
				return nil, fmt.Errorf("invalid format '%v'", fmode)
			}
		default:
			return nil, fmt.Errorf("invalid format '%v'", mode)
		}
	}
	return results, nil
}

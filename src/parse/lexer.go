package parse

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/airtrack/luna-sub000/src/lerrors"
)

var escapeCodes = map[rune]rune{
	'a':  '\x07', // bell
	'b':  '\x08', // backspace
	'f':  '\x0C', // form feed
	'n':  '\n',   // newline
	'r':  '\r',   // carriage return
	't':  '\t',   // tab
	'v':  '\x0B', // vertical tab
	'\\': '\\',   // backslash
	'"':  '"',    // quote
	'\'': '\'',   // apostrophe
	'\n': '\n',   // escaped line break
}

type lexer struct {
	module string
	rdr    *bufio.Reader
	peeked []*token
	LineInfo
}

func newLexer(module string, src io.Reader) *lexer {
	return &lexer{
		module:   module,
		LineInfo: LineInfo{Line: 1},
		rdr:      bufio.NewReaderSize(src, 4096),
		peeked:   []*token{},
	}
}

func (lex *lexer) errf(msg string, data ...any) error {
	return lex.err(fmt.Errorf(msg, data...))
}

// err wraps a failure with the current position. Running out of input is
// still reported as io.EOF so that callers can ask for more.
func (lex *lexer) err(err error) error {
	if errors.Is(err, io.EOF) {
		return err
	}
	return &lerrors.Error{
		Module: lex.module,
		Kind:   lerrors.LexerErr,
		Line:   lex.Line,
		Column: lex.Column,
		Err:    err,
	}
}

func (lex *lexer) peek() rune {
	ch, _, err := lex.rdr.ReadRune()
	if err != nil {
		return 0
	}
	_ = lex.rdr.UnreadRune()
	return ch
}

func (lex *lexer) next() (rune, error) {
	ch, _, err := lex.rdr.ReadRune()
	if err != nil {
		return ch, lex.err(err)
	}
	if ch == '\n' {
		lex.Line++
		lex.Column = 0
	} else {
		lex.Column++
	}
	return ch, nil
}

func (lex *lexer) skipWhitespace() error {
	for {
		if ch := lex.peek(); ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' || ch == '\v' {
			if _, err := lex.next(); err != nil {
				return err
			}
			continue
		}
		return nil
	}
}

func (lex *lexer) tokenVal(tk tokenType) (*token, error) {
	return &token{Kind: tk, LineInfo: LineInfo{Line: lex.Line, Column: lex.Column - int64(len(tk)) + 1}}, nil
}

func (lex *lexer) takeTokenVal(tk tokenType) (*token, error) {
	if _, err := lex.next(); err != nil {
		return nil, err
	}
	return lex.tokenVal(tk)
}

// back pushes a token so that it is returned by the next call to Next.
func (lex *lexer) back(tk *token) {
	lex.peeked = append(lex.peeked, tk)
}

// Peek returns the next token without consuming it. At the end of input it
// returns an EOS token.
func (lex *lexer) Peek() (*token, error) {
	if len(lex.peeked) == 0 {
		tk, err := lex.Next()
		if err != nil {
			return &token{Kind: tokenEOS, LineInfo: lex.LineInfo}, err
		}
		lex.peeked = append(lex.peeked, tk)
	}
	return lex.peeked[len(lex.peeked)-1], nil
}

// Next consumes a token, comments are skipped. At the end of input an EOS
// token is returned.
func (lex *lexer) Next() (*token, error) {
	if len(lex.peeked) != 0 {
		top := lex.peeked[len(lex.peeked)-1]
		lex.peeked = lex.peeked[:len(lex.peeked)-1]
		return top, nil
	}
	if lex.peek() == '#' && lex.Line == 1 && lex.Column == 0 {
		if err := lex.skipLine(); err != nil {
			return lex.eos(err)
		}
	}
	for {
		if err := lex.skipWhitespace(); err != nil {
			return nil, err
		}
		ch, err := lex.next()
		if err != nil {
			return lex.eos(err)
		}
		if ch == '-' && lex.peek() == '-' {
			if err := lex.skipComment(); err != nil {
				return lex.eos(err)
			}
			continue
		}
		return lex.lexToken(ch)
	}
}

func (lex *lexer) eos(err error) (*token, error) {
	if errors.Is(err, io.EOF) {
		return &token{Kind: tokenEOS, LineInfo: lex.LineInfo}, nil
	}
	return nil, err
}

func (lex *lexer) lexToken(ch rune) (*token, error) {
	peekCh := lex.peek()
	switch {
	case ch == '-':
		return lex.tokenVal(tokenMinus)
	case ch == '[' && (peekCh == '=' || peekCh == '['):
		return lex.parseBracketedString()
	case ch == '[':
		return lex.tokenVal(tokenOpenBracket)
	case ch == '=' && peekCh == '=':
		return lex.takeTokenVal(tokenEq)
	case ch == '=':
		return lex.tokenVal(tokenAssign)
	case ch == '<' && peekCh == '=':
		return lex.takeTokenVal(tokenLe)
	case ch == '<':
		return lex.tokenVal(tokenLt)
	case ch == '>' && peekCh == '=':
		return lex.takeTokenVal(tokenGe)
	case ch == '>':
		return lex.tokenVal(tokenGt)
	case ch == '~' && peekCh == '=':
		return lex.takeTokenVal(tokenNe)
	case ch == '/':
		return lex.tokenVal(tokenDivide)
	case ch == '.':
		if unicode.IsDigit(peekCh) {
			return lex.parseNumber(ch)
		} else if peekCh == '.' {
			if _, err := lex.next(); err != nil {
				return nil, err
			}
			if lex.peek() == '.' {
				return lex.takeTokenVal(tokenDots)
			}
			return lex.tokenVal(tokenConcat)
		}
		return lex.tokenVal(tokenPeriod)
	case ch == '+':
		return lex.tokenVal(tokenAdd)
	case ch == '*':
		return lex.tokenVal(tokenMultiply)
	case ch == '%':
		return lex.tokenVal(tokenModulo)
	case ch == '^':
		return lex.tokenVal(tokenExponent)
	case ch == ':':
		return lex.tokenVal(tokenColon)
	case ch == ',':
		return lex.tokenVal(tokenComma)
	case ch == ';':
		return lex.tokenVal(tokenSemiColon)
	case ch == '#':
		return lex.tokenVal(tokenLength)
	case ch == '(':
		return lex.tokenVal(tokenOpenParen)
	case ch == ')':
		return lex.tokenVal(tokenCloseParen)
	case ch == '{':
		return lex.tokenVal(tokenOpenCurly)
	case ch == '}':
		return lex.tokenVal(tokenCloseCurly)
	case ch == ']':
		return lex.tokenVal(tokenCloseBracket)
	case ch == '"' || ch == '\'':
		return lex.parseString(ch)
	case unicode.IsDigit(ch):
		return lex.parseNumber(ch)
	case unicode.IsLetter(ch) || ch == '_':
		return lex.parseIdentifier(ch)
	}
	return nil, lex.errf("unexpected character %q", ch)
}

func (lex *lexer) parseIdentifier(start rune) (*token, error) {
	linfo := lex.LineInfo
	var ident bytes.Buffer
	ident.WriteRune(start)
	for {
		peekCh := lex.peek()
		if !unicode.IsLetter(peekCh) && !unicode.IsDigit(peekCh) && peekCh != '_' {
			break
		}
		if err := lex.writeNext(&ident); err != nil {
			return nil, err
		}
	}
	strVal := ident.String()
	if kw, ok := keywords[strVal]; ok {
		return &token{Kind: kw, LineInfo: linfo}, nil
	}
	return &token{Kind: tokenIdentifier, StringVal: strVal, LineInfo: linfo}, nil
}

// parseString reads a quoted string. Supported escapes are the C-like single
// character escapes, \xXX and \ddd.
func (lex *lexer) parseString(delimiter rune) (*token, error) {
	linfo := lex.LineInfo
	var str bytes.Buffer
	for {
		ch, err := lex.next()
		if err != nil {
			return nil, err
		}
		switch {
		case ch == delimiter:
			return &token{Kind: tokenString, StringVal: str.String(), LineInfo: linfo}, nil
		case ch == '\n':
			return nil, lex.errf("unfinished string")
		case ch != '\\':
			str.WriteRune(ch)
			continue
		}

		ch, err = lex.next()
		if err != nil {
			return nil, err
		}
		if esc, ok := escapeCodes[ch]; ok {
			str.WriteRune(esc)
		} else if ch == 'x' {
			var hexNumber bytes.Buffer
			for i := 0; i < 2; i++ {
				if !isHexDigit(lex.peek()) {
					return nil, lex.errf("hexadecimal digit expected near %q", `\x`+hexNumber.String())
				}
				if err := lex.writeNext(&hexNumber); err != nil {
					return nil, err
				}
			}
			ivalue, _ := strconv.ParseUint(hexNumber.String(), 16, 8)
			str.WriteByte(byte(ivalue))
		} else if unicode.IsDigit(ch) {
			var number bytes.Buffer
			number.WriteRune(ch)
			for i := 0; i < 2; i++ {
				if !unicode.IsDigit(lex.peek()) {
					break
				}
				if err := lex.writeNext(&number); err != nil {
					return nil, err
				}
			}
			ivalue, err := strconv.ParseUint(number.String(), 10, 8)
			if err != nil {
				return nil, lex.errf("decimal escape too large near %q", `\`+number.String())
			}
			str.WriteByte(byte(ivalue))
		} else {
			return nil, lex.errf("unexpected escape code \\%s", string(ch))
		}
	}
}

func (lex *lexer) parseNumber(start rune) (*token, error) {
	linfo := lex.LineInfo
	var number bytes.Buffer
	number.WriteRune(start)

	if start == '0' && (lex.peek() == 'x' || lex.peek() == 'X') {
		if err := lex.writeNext(&number); err != nil {
			return nil, err
		} else if err := lex.consumeDigits(&number, true); err != nil {
			return nil, err
		}
		ivalue, err := strconv.ParseUint(number.String()[2:], 16, 64)
		if err != nil {
			return nil, lex.errf("malformed number near %v", number.String())
		}
		return &token{Kind: tokenNumber, FloatVal: float64(ivalue), LineInfo: linfo}, nil
	}

	if err := lex.consumeDigits(&number, false); err != nil {
		return nil, err
	}
	if start != '.' && lex.peek() == '.' {
		if err := lex.writeNext(&number); err != nil {
			return nil, err
		} else if err := lex.consumeDigits(&number, false); err != nil {
			return nil, err
		}
	}
	if peekCh := lex.peek(); peekCh == 'e' || peekCh == 'E' {
		if err := lex.writeNext(&number); err != nil {
			return nil, err
		}
		if ch := lex.peek(); ch == '-' || ch == '+' {
			if err := lex.writeNext(&number); err != nil {
				return nil, err
			}
		}
		if err := lex.consumeDigits(&number, false); err != nil {
			return nil, err
		}
	}
	if ch := lex.peek(); unicode.IsLetter(ch) || ch == '_' {
		return nil, lex.errf("malformed number near %v%c", number.String(), ch)
	}

	fval, err := strconv.ParseFloat(strings.TrimPrefix(number.String(), "+"), 64)
	if err != nil {
		return nil, lex.errf("malformed number near %v", number.String())
	}
	return &token{Kind: tokenNumber, FloatVal: fval, LineInfo: linfo}, nil
}

func (lex *lexer) consumeDigits(number *bytes.Buffer, withHex bool) error {
	for {
		ch := lex.peek()
		if !unicode.IsDigit(ch) && (!withHex || !isHexDigit(ch)) {
			return nil
		} else if err := lex.writeNext(number); err != nil {
			return err
		}
	}
}

func (lex *lexer) writeNext(buf *bytes.Buffer) error {
	ch, err := lex.next()
	if err != nil {
		return err
	}
	buf.WriteRune(ch)
	return nil
}

func (lex *lexer) skipLine() error {
	for {
		if ch, err := lex.next(); err != nil {
			return err
		} else if ch == '\n' {
			return nil
		}
	}
}

// skipComment is called after the first '-' has been consumed.
func (lex *lexer) skipComment() error {
	if _, err := lex.next(); err != nil {
		return err
	}
	if lex.peek() == '[' {
		if _, err := lex.next(); err != nil {
			return err
		}
		if ch := lex.peek(); ch == '[' || ch == '=' {
			_, err := lex.parseBracketed()
			return err
		}
	}
	return lex.skipLine()
}

func (lex *lexer) parseBracketedString() (*token, error) {
	linfo := lex.LineInfo
	str, err := lex.parseBracketed()
	if err != nil {
		return nil, err
	}
	return &token{Kind: tokenString, StringVal: str, LineInfo: linfo}, nil
}

// parseBracketed reads a long bracket [==[ ... ]==] after its first '[' has
// been consumed. A newline directly after the opening bracket is dropped.
func (lex *lexer) parseBracketed() (string, error) {
	level := 0
	for {
		ch, err := lex.next()
		if err != nil {
			return "", err
		} else if ch == '=' {
			level++
		} else if ch == '[' {
			break
		} else {
			return "", lex.errf("malformed bracketed string, expected [ or = and found %q", ch)
		}
	}
	closing := "]" + strings.Repeat("=", level) + "]"

	var str strings.Builder
	if lex.peek() == '\n' {
		if _, err := lex.next(); err != nil {
			return "", err
		}
	}
	for {
		ch, err := lex.next()
		if err != nil {
			return "", err
		}
		str.WriteRune(ch)
		if ch == ']' && strings.HasSuffix(str.String(), closing) {
			out := str.String()
			return out[:len(out)-len(closing)], nil
		}
	}
}

func isHexDigit(ch rune) bool {
	return unicode.IsDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

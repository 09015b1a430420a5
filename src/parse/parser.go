// Package parse turns source text into the syntax tree consumed by the
// semantic pass and the code generator.
package parse

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/airtrack/luna-sub000/src/ast"
	"github.com/airtrack/luna-sub000/src/lerrors"
)

// ErrUnexpectedEOF is wrapped by parse errors raised because the input ended
// too early. The repl uses it to ask for another line.
var ErrUnexpectedEOF = fmt.Errorf("unexpected end of input: %w", io.EOF)

// Parser is the object that will parse a file and return its syntax tree.
type Parser struct {
	lex    *lexer
	module string
}

// File is a helper function around Parse to open and close a file automatically.
func File(path string) (*ast.Chunk, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()
	return Parse(path, src)
}

// Parse parses a whole chunk read from src.
func Parse(module string, src io.Reader) (*ast.Chunk, error) {
	p := &Parser{module: module, lex: newLexer(module, src)}
	block, err := p.block()
	if err != nil {
		return nil, err
	}
	if tk, err := p.peek(); err != nil {
		return nil, err
	} else if tk.Kind != tokenEOS {
		return nil, p.parseErr(tk, fmt.Errorf("'<eof>' expected near %v", tk))
	}
	return &ast.Chunk{Pos: ast.At(1), Module: module, Block: block}, nil
}

func (p *Parser) parseErr(tk *token, err error) error {
	if err == nil {
		return nil
	}
	var luaErr *lerrors.Error
	if errors.As(err, &luaErr) {
		return err
	} else if errors.Is(err, io.EOF) {
		err = ErrUnexpectedEOF
	}
	newErr := &lerrors.Error{
		Kind:   lerrors.ParserErr,
		Module: p.module,
		Err:    err,
	}
	if tk != nil {
		newErr.Line = tk.Line
		newErr.Column = tk.Column
	}
	return newErr
}

func (p *Parser) peek() (*token, error) {
	tk, err := p.lex.Peek()
	if err != nil {
		return tk, p.parseErr(tk, err)
	}
	return tk, nil
}

func (p *Parser) consumeToken(tt tokenType) (*token, error) {
	tk, err := p.lex.Next()
	if err != nil {
		return nil, p.parseErr(tk, err)
	} else if tk.Kind == tokenEOS && tt != tokenEOS {
		return nil, p.parseErr(tk, fmt.Errorf("%q expected: %w", tt, ErrUnexpectedEOF))
	} else if tt != tk.Kind {
		return nil, p.parseErr(tk, fmt.Errorf("%q expected near %v", tt, tk))
	}
	return tk, nil
}

func (p *Parser) next(tt tokenType) error {
	_, err := p.consumeToken(tt)
	return err
}

// accept consumes the next token if it is of kind tt.
func (p *Parser) accept(tt tokenType) (bool, error) {
	tk, err := p.peek()
	if err != nil {
		return false, err
	} else if tk.Kind != tt {
		return false, nil
	}
	return true, p.next(tt)
}

func (p *Parser) block() (*ast.Block, error) {
	tk, err := p.peek()
	if err != nil {
		return nil, err
	}
	block := &ast.Block{Pos: ast.At(tk.Line)}
	for {
		if follow, err := p.blockFollow(); err != nil {
			return nil, err
		} else if follow {
			break
		}
		tk, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tk.Kind == tokenReturn {
			stmt, err := p.retstat()
			if err != nil {
				return nil, err
			}
			block.Stmts = append(block.Stmts, stmt)
			break
		}
		stmt, err := p.stat()
		if err != nil {
			return nil, err
		} else if stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
	}
	end, err := p.peek()
	if err != nil {
		return nil, err
	}
	block.EndLine = end.Line
	return block, nil
}

func (p *Parser) blockFollow() (bool, error) {
	ptk, err := p.peek()
	if err != nil {
		return false, err
	}
	switch ptk.Kind {
	case tokenElse, tokenElseif, tokenEnd, tokenEOS, tokenUntil:
		return true, nil
	default:
		return false, nil
	}
}

func (p *Parser) stat() (ast.Stmt, error) {
	tk, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch tk.Kind {
	case tokenSemiColon:
		return nil, p.next(tokenSemiColon)
	case tokenLocal:
		return p.localstat()
	case tokenFunction:
		return p.funcstat()
	case tokenDo:
		return p.dostat()
	case tokenIf:
		return p.ifstat()
	case tokenWhile:
		return p.whilestat()
	case tokenFor:
		return p.forstat()
	case tokenRepeat:
		return p.repeatstat()
	case tokenBreak:
		if err := p.next(tokenBreak); err != nil {
			return nil, err
		}
		return &ast.Break{Pos: ast.At(tk.Line)}, nil
	default:
		return p.exprstat()
	}
}

func (p *Parser) exprstat() (ast.Stmt, error) {
	tk, err := p.peek()
	if err != nil {
		return nil, err
	}
	expr, err := p.suffixedexp()
	if err != nil {
		return nil, err
	}
	switch expr.(type) {
	case *ast.Call, *ast.MethodCall:
		return &ast.CallStmt{Pos: ast.At(tk.Line), Call: expr}, nil
	}
	if ptk, err := p.peek(); err != nil {
		return nil, err
	} else if ptk.Kind == tokenAssign || ptk.Kind == tokenComma {
		return p.assignment(tk, expr)
	}
	return nil, p.parseErr(tk, fmt.Errorf("syntax error near %v", tk))
}

func (p *Parser) assignment(tk *token, first ast.Expr) (ast.Stmt, error) {
	targets := []ast.Expr{first}
	for {
		if ok, err := p.accept(tokenComma); err != nil {
			return nil, err
		} else if !ok {
			break
		}
		ptk, err := p.peek()
		if err != nil {
			return nil, err
		}
		target, err := p.suffixedexp()
		if err != nil {
			return nil, err
		}
		if !isAssignable(target) {
			return nil, p.parseErr(ptk, fmt.Errorf("cannot assign to %v", ptk))
		}
		targets = append(targets, target)
	}
	if !isAssignable(first) {
		return nil, p.parseErr(tk, fmt.Errorf("cannot assign to %v", tk))
	}
	if err := p.next(tokenAssign); err != nil {
		return nil, err
	}
	exprs, err := p.explist()
	if err != nil {
		return nil, err
	}
	return &ast.Assign{Pos: ast.At(tk.Line), Targets: targets, Exprs: exprs}, nil
}

func isAssignable(expr ast.Expr) bool {
	switch expr.(type) {
	case *ast.Name, *ast.Index:
		return true
	default:
		return false
	}
}

func (p *Parser) localstat() (ast.Stmt, error) {
	tk, err := p.consumeToken(tokenLocal)
	if err != nil {
		return nil, err
	}
	if ok, err := p.accept(tokenFunction); err != nil {
		return nil, err
	} else if ok {
		name, err := p.consumeToken(tokenIdentifier)
		if err != nil {
			return nil, err
		}
		fn, err := p.funcbody(name.StringVal, false, tk.Line)
		if err != nil {
			return nil, err
		}
		return &ast.LocalFunction{Pos: ast.At(tk.Line), Name: name.StringVal, Func: fn}, nil
	}

	stmt := &ast.Local{Pos: ast.At(tk.Line)}
	for {
		name, err := p.consumeToken(tokenIdentifier)
		if err != nil {
			return nil, err
		}
		stmt.Names = append(stmt.Names, name.StringVal)
		if ok, err := p.accept(tokenComma); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if ok, err := p.accept(tokenAssign); err != nil {
		return nil, err
	} else if ok {
		if stmt.Exprs, err = p.explist(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

// funcstat parses function a.b.c:d() end. A method gets self as its
// first parameter.
func (p *Parser) funcstat() (ast.Stmt, error) {
	tk, err := p.consumeToken(tokenFunction)
	if err != nil {
		return nil, err
	}
	name, err := p.consumeToken(tokenIdentifier)
	if err != nil {
		return nil, err
	}
	fullName := name.StringVal
	var target ast.Expr = &ast.Name{Pos: ast.At(name.Line), Name: name.StringVal}
	hasSelf := false
	for {
		ptk, err := p.peek()
		if err != nil {
			return nil, err
		}
		if ptk.Kind != tokenPeriod && ptk.Kind != tokenColon {
			break
		}
		if err := p.next(ptk.Kind); err != nil {
			return nil, err
		}
		key, err := p.consumeToken(tokenIdentifier)
		if err != nil {
			return nil, err
		}
		fullName += string(ptk.Kind) + key.StringVal
		target = &ast.Index{
			Pos: ast.At(key.Line),
			Obj: target,
			Key: &ast.String{Pos: ast.At(key.Line), Value: key.StringVal},
		}
		if ptk.Kind == tokenColon {
			hasSelf = true
			break
		}
	}
	fn, err := p.funcbody(fullName, hasSelf, tk.Line)
	if err != nil {
		return nil, err
	}
	return &ast.FunctionStmt{Pos: ast.At(tk.Line), Target: target, Func: fn}, nil
}

// funcbody parses from the parameter list to the closing end.
func (p *Parser) funcbody(name string, hasSelf bool, line int64) (*ast.Function, error) {
	fn := &ast.Function{Pos: ast.At(line), Name: name}
	if hasSelf {
		fn.Params = append(fn.Params, "self")
	}
	if err := p.next(tokenOpenParen); err != nil {
		return nil, err
	}
	if ok, err := p.accept(tokenCloseParen); err != nil {
		return nil, err
	} else if !ok {
		for {
			tk, err := p.lex.Next()
			if err != nil {
				return nil, p.parseErr(tk, err)
			}
			if tk.Kind == tokenDots {
				fn.HasVarArg = true
				break
			} else if tk.Kind == tokenEOS {
				return nil, p.parseErr(tk, ErrUnexpectedEOF)
			} else if tk.Kind != tokenIdentifier {
				return nil, p.parseErr(tk, fmt.Errorf("<name> expected near %v", tk))
			}
			fn.Params = append(fn.Params, tk.StringVal)
			if ok, err := p.accept(tokenComma); err != nil {
				return nil, err
			} else if !ok {
				break
			}
		}
		if err := p.next(tokenCloseParen); err != nil {
			return nil, err
		}
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	fn.Body = body
	return fn, p.next(tokenEnd)
}

func (p *Parser) retstat() (ast.Stmt, error) {
	tk, err := p.consumeToken(tokenReturn)
	if err != nil {
		return nil, err
	}
	stmt := &ast.Return{Pos: ast.At(tk.Line)}
	if follow, err := p.blockFollow(); err != nil {
		return nil, err
	} else if follow {
		return stmt, nil
	}
	if ok, err := p.accept(tokenSemiColon); err != nil || ok {
		return stmt, err
	}
	if stmt.Exprs, err = p.explist(); err != nil {
		return nil, err
	}
	_, err = p.accept(tokenSemiColon)
	return stmt, err
}

func (p *Parser) dostat() (ast.Stmt, error) {
	tk, err := p.consumeToken(tokenDo)
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &ast.Do{Pos: ast.At(tk.Line), Body: body}, p.next(tokenEnd)
}

// ifstat parses an if chain, every elseif becomes a nested *ast.If in the
// else branch of the previous one.
func (p *Parser) ifstat() (ast.Stmt, error) {
	tk, err := p.consumeToken(tokenIf)
	if err != nil {
		return nil, err
	}
	stmt, err := p.ifblock(tk)
	if err != nil {
		return nil, err
	}
	return stmt, p.next(tokenEnd)
}

func (p *Parser) ifblock(tk *token) (*ast.If, error) {
	cond, err := p.expression()
	if err != nil {
		return nil, err
	} else if err := p.next(tokenThen); err != nil {
		return nil, err
	}
	then, err := p.block()
	if err != nil {
		return nil, err
	}
	stmt := &ast.If{Pos: ast.At(tk.Line), Cond: cond, Then: then}
	ptk, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch ptk.Kind {
	case tokenElseif:
		if err := p.next(tokenElseif); err != nil {
			return nil, err
		}
		if stmt.Else, err = p.ifblock(ptk); err != nil {
			return nil, err
		}
	case tokenElse:
		if err := p.next(tokenElse); err != nil {
			return nil, err
		}
		elseBlock, err := p.block()
		if err != nil {
			return nil, err
		}
		stmt.Else = elseBlock
	}
	return stmt, nil
}

func (p *Parser) whilestat() (ast.Stmt, error) {
	tk, err := p.consumeToken(tokenWhile)
	if err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	} else if err := p.next(tokenDo); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &ast.While{Pos: ast.At(tk.Line), Cond: cond, Body: body}, p.next(tokenEnd)
}

func (p *Parser) repeatstat() (ast.Stmt, error) {
	tk, err := p.consumeToken(tokenRepeat)
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	} else if err := p.next(tokenUntil); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	return &ast.Repeat{Pos: ast.At(tk.Line), Body: body, Cond: cond}, nil
}

func (p *Parser) forstat() (ast.Stmt, error) {
	tk, err := p.consumeToken(tokenFor)
	if err != nil {
		return nil, err
	}
	name, err := p.consumeToken(tokenIdentifier)
	if err != nil {
		return nil, err
	}
	ptk, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch ptk.Kind {
	case tokenAssign:
		return p.fornum(tk, name)
	case tokenComma, tokenIn:
		return p.forlist(tk, name)
	default:
		return nil, p.parseErr(ptk, fmt.Errorf("'=' or 'in' expected near %v", ptk))
	}
}

func (p *Parser) fornum(tk, name *token) (ast.Stmt, error) {
	stmt := &ast.NumericFor{Pos: ast.At(tk.Line), Var: name.StringVal}
	var err error
	if err = p.next(tokenAssign); err != nil {
		return nil, err
	} else if stmt.Init, err = p.expression(); err != nil {
		return nil, err
	} else if err = p.next(tokenComma); err != nil {
		return nil, err
	} else if stmt.Limit, err = p.expression(); err != nil {
		return nil, err
	}
	if ok, err := p.accept(tokenComma); err != nil {
		return nil, err
	} else if ok {
		if stmt.Step, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if err := p.next(tokenDo); err != nil {
		return nil, err
	}
	if stmt.Body, err = p.block(); err != nil {
		return nil, err
	}
	return stmt, p.next(tokenEnd)
}

func (p *Parser) forlist(tk, first *token) (ast.Stmt, error) {
	stmt := &ast.GenericFor{Pos: ast.At(tk.Line), Names: []string{first.StringVal}}
	for {
		if ok, err := p.accept(tokenComma); err != nil {
			return nil, err
		} else if !ok {
			break
		}
		name, err := p.consumeToken(tokenIdentifier)
		if err != nil {
			return nil, err
		}
		stmt.Names = append(stmt.Names, name.StringVal)
	}
	var err error
	if err = p.next(tokenIn); err != nil {
		return nil, err
	} else if stmt.Exprs, err = p.explist(); err != nil {
		return nil, err
	} else if err = p.next(tokenDo); err != nil {
		return nil, err
	} else if stmt.Body, err = p.block(); err != nil {
		return nil, err
	}
	return stmt, p.next(tokenEnd)
}

func (p *Parser) explist() ([]ast.Expr, error) {
	exprs := []ast.Expr{}
	for {
		expr, err := p.expression()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
		if ok, err := p.accept(tokenComma); err != nil {
			return nil, err
		} else if !ok {
			return exprs, nil
		}
	}
}

func (p *Parser) expression() (ast.Expr, error) {
	return p.expr(0)
}

// expr parses binary and unary expressions with precedence climbing, only
// operators binding tighter than limit are consumed.
func (p *Parser) expr(limit int) (ast.Expr, error) {
	var desc ast.Expr
	tk, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tk.isUnary() {
		if err = p.next(tk.Kind); err != nil {
			return nil, err
		}
		operand, err := p.expr(unaryPriority)
		if err != nil {
			return nil, err
		}
		desc = &ast.UnOp{Pos: ast.At(tk.Line), Op: tokenToUnaryOp[tk.Kind], Operand: operand}
	} else if desc, err = p.simpleexp(); err != nil {
		return nil, err
	}
	op, err := p.peek()
	if err != nil {
		return nil, err
	}
	for op.isBinary() && binaryPriority[op.Kind][0] > limit {
		if err := p.next(op.Kind); err != nil {
			return nil, err
		}
		rdesc, err := p.expr(binaryPriority[op.Kind][1])
		if err != nil {
			return nil, err
		}
		desc = &ast.BinOp{Pos: ast.At(op.Line), Op: tokenToBinaryOp[op.Kind], Left: desc, Right: rdesc}
		if op, err = p.peek(); err != nil {
			return nil, err
		}
	}
	return desc, nil
}

func (p *Parser) simpleexp() (ast.Expr, error) {
	tk, err := p.peek()
	if err != nil {
		return nil, err
	}
	pos := ast.At(tk.Line)
	switch tk.Kind {
	case tokenNumber:
		return &ast.Number{Pos: pos, Value: tk.FloatVal}, p.next(tk.Kind)
	case tokenString:
		return &ast.String{Pos: pos, Value: tk.StringVal}, p.next(tk.Kind)
	case tokenNil:
		return &ast.Nil{Pos: pos}, p.next(tk.Kind)
	case tokenTrue:
		return &ast.Bool{Pos: pos, Value: true}, p.next(tk.Kind)
	case tokenFalse:
		return &ast.Bool{Pos: pos, Value: false}, p.next(tk.Kind)
	case tokenDots:
		return &ast.VarArg{Pos: pos}, p.next(tk.Kind)
	case tokenOpenCurly:
		return p.constructor()
	case tokenFunction:
		if err := p.next(tokenFunction); err != nil {
			return nil, err
		}
		return p.funcbody("", false, tk.Line)
	default:
		return p.suffixedexp()
	}
}

func (p *Parser) primaryexp() (ast.Expr, error) {
	tk, err := p.lex.Next()
	if err != nil {
		return nil, p.parseErr(tk, err)
	}
	switch tk.Kind {
	case tokenIdentifier:
		return &ast.Name{Pos: ast.At(tk.Line), Name: tk.StringVal}, nil
	case tokenOpenParen:
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		return &ast.Paren{Pos: ast.At(tk.Line), Inner: inner}, p.next(tokenCloseParen)
	case tokenEOS:
		return nil, p.parseErr(tk, ErrUnexpectedEOF)
	default:
		return nil, p.parseErr(tk, fmt.Errorf("unexpected symbol near %v", tk))
	}
}

func (p *Parser) suffixedexp() (ast.Expr, error) {
	expr, err := p.primaryexp()
	if err != nil {
		return nil, err
	}
	for {
		ptk, err := p.peek()
		if err != nil {
			return nil, err
		}
		pos := ast.At(ptk.Line)
		switch ptk.Kind {
		case tokenPeriod:
			if err := p.next(tokenPeriod); err != nil {
				return nil, err
			}
			key, err := p.consumeToken(tokenIdentifier)
			if err != nil {
				return nil, err
			}
			expr = &ast.Index{Pos: pos, Obj: expr, Key: &ast.String{Pos: pos, Value: key.StringVal}}
		case tokenOpenBracket:
			if err := p.next(tokenOpenBracket); err != nil {
				return nil, err
			}
			key, err := p.expression()
			if err != nil {
				return nil, err
			} else if err := p.next(tokenCloseBracket); err != nil {
				return nil, err
			}
			expr = &ast.Index{Pos: pos, Obj: expr, Key: key}
		case tokenColon:
			if err := p.next(tokenColon); err != nil {
				return nil, err
			}
			method, err := p.consumeToken(tokenIdentifier)
			if err != nil {
				return nil, err
			}
			args, err := p.funcargs()
			if err != nil {
				return nil, err
			}
			expr = &ast.MethodCall{Pos: pos, Receiver: expr, Method: method.StringVal, Args: args}
		case tokenOpenParen, tokenString, tokenOpenCurly:
			args, err := p.funcargs()
			if err != nil {
				return nil, err
			}
			expr = &ast.Call{Pos: pos, Func: expr, Args: args}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) funcargs() ([]ast.Expr, error) {
	ptk, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch ptk.Kind {
	case tokenOpenParen:
		if err := p.next(tokenOpenParen); err != nil {
			return nil, err
		}
		if ok, err := p.accept(tokenCloseParen); err != nil {
			return nil, err
		} else if ok {
			return []ast.Expr{}, nil
		}
		exprs, err := p.explist()
		if err != nil {
			return nil, err
		}
		return exprs, p.next(tokenCloseParen)
	case tokenOpenCurly:
		expr, err := p.constructor()
		return []ast.Expr{expr}, err
	case tokenString:
		return []ast.Expr{&ast.String{Pos: ast.At(ptk.Line), Value: ptk.StringVal}}, p.next(tokenString)
	default:
		return nil, p.parseErr(ptk, fmt.Errorf("function arguments expected near %v", ptk))
	}
}

func (p *Parser) constructor() (ast.Expr, error) {
	tk, err := p.consumeToken(tokenOpenCurly)
	if err != nil {
		return nil, err
	}
	tbl := &ast.Table{Pos: ast.At(tk.Line)}
	for {
		ptk, err := p.peek()
		if err != nil {
			return nil, err
		}
		pos := ast.At(ptk.Line)
		switch ptk.Kind {
		case tokenCloseCurly:
			return tbl, p.next(tokenCloseCurly)
		case tokenIdentifier:
			name, err := p.consumeToken(tokenIdentifier)
			if err != nil {
				return nil, err
			}
			if ok, err := p.accept(tokenAssign); err != nil {
				return nil, err
			} else if ok {
				val, err := p.expression()
				if err != nil {
					return nil, err
				}
				tbl.Fields = append(tbl.Fields, &ast.NamedField{Pos: pos, Name: name.StringVal, Value: val})
			} else {
				p.lex.back(name)
				val, err := p.expression()
				if err != nil {
					return nil, err
				}
				tbl.Fields = append(tbl.Fields, &ast.ArrayField{Pos: pos, Value: val})
			}
		case tokenOpenBracket:
			if err := p.next(tokenOpenBracket); err != nil {
				return nil, err
			}
			key, err := p.expression()
			if err != nil {
				return nil, err
			} else if err := p.next(tokenCloseBracket); err != nil {
				return nil, err
			} else if err := p.next(tokenAssign); err != nil {
				return nil, err
			}
			val, err := p.expression()
			if err != nil {
				return nil, err
			}
			tbl.Fields = append(tbl.Fields, &ast.IndexField{Pos: pos, Key: key, Value: val})
		default:
			val, err := p.expression()
			if err != nil {
				return nil, err
			}
			tbl.Fields = append(tbl.Fields, &ast.ArrayField{Pos: pos, Value: val})
		}
		ptk, err = p.peek()
		if err != nil {
			return nil, err
		}
		if ptk.Kind != tokenComma && ptk.Kind != tokenSemiColon {
			return tbl, p.next(tokenCloseCurly)
		}
		if err := p.next(ptk.Kind); err != nil {
			return nil, err
		}
	}
}

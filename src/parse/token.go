package parse

import (
	"fmt"

	"github.com/airtrack/luna-sub000/src/ast"
)

type (
	// LineInfo is the position of a token in the source.
	LineInfo struct {
		Line   int64
		Column int64
	}
	tokenType string
	token     struct {
		LineInfo
		Kind      tokenType
		StringVal string
		FloatVal  float64
	}
)

const (
	tokenAdd          tokenType = "+"
	tokenMinus        tokenType = "-"
	tokenMultiply     tokenType = "*"
	tokenDivide       tokenType = "/"
	tokenModulo       tokenType = "%"
	tokenExponent     tokenType = "^"
	tokenAssign       tokenType = "="
	tokenColon        tokenType = ":"
	tokenComma        tokenType = ","
	tokenPeriod       tokenType = "."
	tokenSemiColon    tokenType = ";"
	tokenLength       tokenType = "#"
	tokenOpenParen    tokenType = "("
	tokenCloseParen   tokenType = ")"
	tokenOpenCurly    tokenType = "{"
	tokenCloseCurly   tokenType = "}"
	tokenOpenBracket  tokenType = "["
	tokenCloseBracket tokenType = "]"
	tokenAnd          tokenType = "and"
	tokenBreak        tokenType = "break"
	tokenDo           tokenType = "do"
	tokenElse         tokenType = "else"
	tokenElseif       tokenType = "elseif"
	tokenEnd          tokenType = "end"
	tokenFalse        tokenType = "false"
	tokenFor          tokenType = "for"
	tokenFunction     tokenType = "function"
	tokenIf           tokenType = "if"
	tokenIn           tokenType = "in"
	tokenLocal        tokenType = "local"
	tokenNil          tokenType = "nil"
	tokenNot          tokenType = "not"
	tokenOr           tokenType = "or"
	tokenRepeat       tokenType = "repeat"
	tokenReturn       tokenType = "return"
	tokenThen         tokenType = "then"
	tokenTrue         tokenType = "true"
	tokenUntil        tokenType = "until"
	tokenWhile        tokenType = "while"
	tokenConcat       tokenType = ".."
	tokenDots         tokenType = "..."
	tokenEq           tokenType = "=="
	tokenGe           tokenType = ">="
	tokenGt           tokenType = ">"
	tokenLe           tokenType = "<="
	tokenLt           tokenType = "<"
	tokenNe           tokenType = "~="
	tokenNumber       tokenType = "number"
	tokenIdentifier   tokenType = "identifier"
	tokenString       tokenType = "string"
	tokenEOS          tokenType = "<EOS>"
)

const unaryPriority = 8

// left, right priority for binary ops.
var (
	binaryPriority = map[tokenType][2]int{
		tokenOr:       {1, 1},
		tokenAnd:      {2, 2},
		tokenEq:       {3, 3},
		tokenLt:       {3, 3},
		tokenLe:       {3, 3},
		tokenGt:       {3, 3},
		tokenGe:       {3, 3},
		tokenNe:       {3, 3},
		tokenConcat:   {5, 4},
		tokenAdd:      {6, 6},
		tokenMinus:    {6, 6},
		tokenMultiply: {7, 7},
		tokenModulo:   {7, 7},
		tokenDivide:   {7, 7},
		tokenExponent: {10, 9},
	}
	keywords = map[string]tokenType{
		string(tokenAnd):      tokenAnd,
		string(tokenTrue):     tokenTrue,
		string(tokenFalse):    tokenFalse,
		string(tokenNil):      tokenNil,
		string(tokenBreak):    tokenBreak,
		string(tokenDo):       tokenDo,
		string(tokenElse):     tokenElse,
		string(tokenElseif):   tokenElseif,
		string(tokenEnd):      tokenEnd,
		string(tokenFor):      tokenFor,
		string(tokenFunction): tokenFunction,
		string(tokenIf):       tokenIf,
		string(tokenIn):       tokenIn,
		string(tokenLocal):    tokenLocal,
		string(tokenNot):      tokenNot,
		string(tokenOr):       tokenOr,
		string(tokenRepeat):   tokenRepeat,
		string(tokenReturn):   tokenReturn,
		string(tokenThen):     tokenThen,
		string(tokenUntil):    tokenUntil,
		string(tokenWhile):    tokenWhile,
	}
	tokenToBinaryOp = map[tokenType]ast.BinaryOp{
		tokenOr:       ast.OpOr,
		tokenAnd:      ast.OpAnd,
		tokenEq:       ast.OpEq,
		tokenLt:       ast.OpLt,
		tokenLe:       ast.OpLe,
		tokenGt:       ast.OpGt,
		tokenGe:       ast.OpGe,
		tokenNe:       ast.OpNe,
		tokenConcat:   ast.OpConcat,
		tokenAdd:      ast.OpAdd,
		tokenMinus:    ast.OpSub,
		tokenMultiply: ast.OpMul,
		tokenModulo:   ast.OpMod,
		tokenDivide:   ast.OpDiv,
		tokenExponent: ast.OpPow,
	}
	tokenToUnaryOp = map[tokenType]ast.UnaryOp{
		tokenNot:    ast.OpNot,
		tokenLength: ast.OpLen,
		tokenMinus:  ast.OpNeg,
	}
)

func (tk *token) String() string {
	switch tk.Kind {
	case tokenNumber:
		return fmt.Sprintf("%v", tk.FloatVal)
	case tokenIdentifier:
		return fmt.Sprintf("<%v>", tk.StringVal)
	case tokenString:
		return fmt.Sprintf("%q", tk.StringVal)
	default:
		return string(tk.Kind)
	}
}

func (tk *token) isUnary() bool {
	_, ok := tokenToUnaryOp[tk.Kind]
	return ok
}

func (tk *token) isBinary() bool {
	_, ok := binaryPriority[tk.Kind]
	return ok
}

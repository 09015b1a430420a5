// Package ast holds the syntax tree produced by the parser. Nodes form closed
// sum types: every statement implements Stmt and every expression implements
// Expr, so passes over the tree are a type switch per node kind.
//
// The semantic pass fills in the annotation fields (Scoping, Semantic, Loop,
// Multi and ValueCount) that the code generator relies on.
package ast

type (
	// Node is anything in the tree that can report where it came from.
	Node interface {
		Line() int64
	}
	// Stmt is a statement node.
	Stmt interface {
		Node
		stmtNode()
	}
	// Expr is an expression node.
	Expr interface {
		Node
		exprNode()
	}
	// Field is a single entry in a table constructor.
	Field interface {
		Node
		fieldNode()
	}
	// Pos records the source line of a node.
	Pos struct {
		LineNum int64
	}
)

// Line returns the source line the node started on.
func (p Pos) Line() int64 { return p.LineNum }

// At is a shorthand constructor for a Pos.
func At(line int64) Pos { return Pos{LineNum: line} }

// Scoping classifies where a name is bound.
type Scoping int

const (
	// ScopingGlobal names fall through to the global table.
	ScopingGlobal Scoping = iota
	// ScopingLocal names are bound in the current function.
	ScopingLocal
	// ScopingUpvalue names are bound in an enclosing function.
	ScopingUpvalue
)

func (s Scoping) String() string {
	switch s {
	case ScopingLocal:
		return "local"
	case ScopingUpvalue:
		return "upvalue"
	default:
		return "global"
	}
}

// Semantic tells whether a name or index is being read or assigned.
type Semantic int

const (
	// SemanticRead is a use of the value.
	SemanticRead Semantic = iota
	// SemanticWrite is an assignment target.
	SemanticWrite
)

// BinaryOp is an infix operator.
type BinaryOp string

// UnaryOp is a prefix operator.
type UnaryOp string

const (
	OpAdd    BinaryOp = "+"
	OpSub    BinaryOp = "-"
	OpMul    BinaryOp = "*"
	OpDiv    BinaryOp = "/"
	OpPow    BinaryOp = "^"
	OpMod    BinaryOp = "%"
	OpConcat BinaryOp = ".."
	OpLt     BinaryOp = "<"
	OpLe     BinaryOp = "<="
	OpGt     BinaryOp = ">"
	OpGe     BinaryOp = ">="
	OpEq     BinaryOp = "=="
	OpNe     BinaryOp = "~="
	OpAnd    BinaryOp = "and"
	OpOr     BinaryOp = "or"

	OpNeg UnaryOp = "-"
	OpNot UnaryOp = "not"
	OpLen UnaryOp = "#"
)

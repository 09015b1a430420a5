package ast

type (
	// Nil is the nil literal.
	Nil struct{ Pos }
	// Bool is true or false.
	Bool struct {
		Pos
		Value bool
	}
	// Number is a numeric literal, all numbers are floats.
	Number struct {
		Pos
		Value float64
	}
	// String is a string literal.
	String struct {
		Pos
		Value string
	}
	// VarArg is the ... expression.
	VarArg struct{ Pos }
	// Function is a function literal. Method definitions already carry the
	// implicit self as their first param.
	Function struct {
		Pos
		Name      string
		Params    []string
		HasVarArg bool
		Body      *Block
	}
	// Table is a table constructor. Multi is set when the last field is a
	// positional field that expands to all of its values.
	Table struct {
		Pos
		Fields []Field
		Multi  bool
	}
	// ArrayField is a positional table field.
	ArrayField struct {
		Pos
		Value Expr
	}
	// NamedField is a name = value table field.
	NamedField struct {
		Pos
		Name  string
		Value Expr
	}
	// IndexField is a [key] = value table field.
	IndexField struct {
		Pos
		Key   Expr
		Value Expr
	}
	// BinOp is an infix expression.
	BinOp struct {
		Pos
		Op          BinaryOp
		Left, Right Expr
	}
	// UnOp is a prefix expression.
	UnOp struct {
		Pos
		Op      UnaryOp
		Operand Expr
	}
	// Name is a reference to a variable.
	Name struct {
		Pos
		Name     string
		Scoping  Scoping
		Semantic Semantic
	}
	// Index is obj[key] or obj.key.
	Index struct {
		Pos
		Obj      Expr
		Key      Expr
		Semantic Semantic
	}
	// Call is a function call. Multi is set when the last argument expands
	// to all of its values.
	Call struct {
		Pos
		Func  Expr
		Args  []Expr
		Multi bool
	}
	// MethodCall is receiver:method(args).
	MethodCall struct {
		Pos
		Receiver Expr
		Method   string
		Args     []Expr
		Multi    bool
	}
	// Paren is a parenthesised expression which truncates to a single value.
	Paren struct {
		Pos
		Inner Expr
	}
)

func (*Nil) exprNode()        {}
func (*Bool) exprNode()       {}
func (*Number) exprNode()     {}
func (*String) exprNode()     {}
func (*VarArg) exprNode()     {}
func (*Function) exprNode()   {}
func (*Table) exprNode()      {}
func (*BinOp) exprNode()      {}
func (*UnOp) exprNode()       {}
func (*Name) exprNode()       {}
func (*Index) exprNode()      {}
func (*Call) exprNode()       {}
func (*MethodCall) exprNode() {}
func (*Paren) exprNode()      {}

func (*ArrayField) fieldNode() {}
func (*NamedField) fieldNode() {}
func (*IndexField) fieldNode() {}

// IsMulti reports whether an expression can produce more or less than one
// value, only calls and ... can.
func IsMulti(expr Expr) bool {
	switch expr.(type) {
	case *Call, *MethodCall, *VarArg:
		return true
	default:
		return false
	}
}

package ast

type (
	// Chunk is a compiled unit, its block is the body of a vararg function.
	Chunk struct {
		Pos
		Module string
		Block  *Block
	}
	// Block is a list of statements with its own lexical scope. A return
	// statement can only be the last entry.
	Block struct {
		Pos
		Stmts   []Stmt
		EndLine int64
	}
	// Do is do ... end.
	Do struct {
		Pos
		Body *Block
	}
	// While is while cond do ... end.
	While struct {
		Pos
		Cond Expr
		Body *Block
	}
	// Repeat is repeat ... until cond. Cond is inside the scope of Body.
	Repeat struct {
		Pos
		Body *Block
		Cond Expr
	}
	// If is if cond then ... [else ...] end, Else is nil, an *If for elseif or
	// a *Block for else.
	If struct {
		Pos
		Cond Expr
		Then *Block
		Else Stmt
	}
	// NumericFor is for var = init, limit[, step] do ... end.
	NumericFor struct {
		Pos
		Var               string
		Init, Limit, Step Expr
		Body              *Block
	}
	// GenericFor is for names in exprs do ... end.
	GenericFor struct {
		Pos
		Names      []string
		Exprs      []Expr
		Multi      bool
		ValueCount int
		Body       *Block
	}
	// FunctionStmt is function a.b.c:d() ... end, Target is a global or
	// local Name or an Index chain.
	FunctionStmt struct {
		Pos
		Target Expr
		Func   *Function
	}
	// LocalFunction is local function name() ... end.
	LocalFunction struct {
		Pos
		Name string
		Func *Function
	}
	// Local is local names = exprs.
	Local struct {
		Pos
		Names      []string
		Exprs      []Expr
		Multi      bool
		ValueCount int
	}
	// Assign is targets = exprs.
	Assign struct {
		Pos
		Targets    []Expr
		Exprs      []Expr
		Multi      bool
		ValueCount int
	}
	// CallStmt is a call used as a statement, its results are discarded.
	CallStmt struct {
		Pos
		Call Expr
	}
	// Return is return exprs.
	Return struct {
		Pos
		Exprs []Expr
		Multi bool
	}
	// Break exits Loop, which is one of *While, *Repeat, *NumericFor or
	// *GenericFor.
	Break struct {
		Pos
		Loop Stmt
	}
)

func (*Chunk) stmtNode()         {}
func (*Block) stmtNode()         {}
func (*Do) stmtNode()            {}
func (*While) stmtNode()         {}
func (*Repeat) stmtNode()        {}
func (*If) stmtNode()            {}
func (*NumericFor) stmtNode()    {}
func (*GenericFor) stmtNode()    {}
func (*FunctionStmt) stmtNode()  {}
func (*LocalFunction) stmtNode() {}
func (*Local) stmtNode()         {}
func (*Assign) stmtNode()        {}
func (*CallStmt) stmtNode()      {}
func (*Return) stmtNode()        {}
func (*Break) stmtNode()         {}

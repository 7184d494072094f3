package parser

// Op identifies an expression operator. Precedence (lowest to
// highest) follows spec §4.J: OpOr, OpAnd, comparisons, unary
// Not, In/NotIn, then function calls and atoms bind tightest.
type Op byte

const (
	OpOr Op = iota + 1
	OpAnd
	OpEq
	OpNeq
	OpLt
	OpGt
	OpLe
	OpGe
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNot
	OpIn
	OpNotIn
	OpUnaryMinus
	OpUnaryPlus
)

// Expr is a node in a FILTER/BIND/HAVING/ORDER-BY expression tree.
// Exactly one of the fields below is meaningful, selected by Kind.
type Expr struct {
	Kind ExprKind

	// ExprBinary / ExprUnary
	Op    Op
	Left  *Expr
	Right *Expr

	// ExprTerm: a variable or constant term (IRI/literal/blank node).
	Term Term

	// ExprCall: a built-in function application. Name is
	// upper-cased for case-insensitive dispatch.
	Name      string
	Args      []*Expr
	Distinct  bool // DISTINCT inside an aggregate call
	Star      bool // COUNT(*)
	Separator string
	HasSeparator bool // SEPARATOR= was given explicitly to GROUP_CONCAT

	// ExprExists: FILTER EXISTS / NOT EXISTS.
	Pattern *GroupGraphPattern
	Negated bool
}

// ExprKind discriminates the Expr union.
type ExprKind byte

const (
	ExprBinary ExprKind = iota + 1
	ExprUnary
	ExprTerm
	ExprCall
	ExprExists
)

func binary(op Op, l, r *Expr) *Expr { return &Expr{Kind: ExprBinary, Op: op, Left: l, Right: r} }
func unary(op Op, e *Expr) *Expr     { return &Expr{Kind: ExprUnary, Op: op, Left: e} }
func termExpr(t Term) *Expr          { return &Expr{Kind: ExprTerm, Term: t} }

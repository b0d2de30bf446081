// Package queryir implements the Query IR (spec §3, §4.3): a tagged tree
// representing one SELECT statement, including sub-queries and CTEs,
// produced by a parser collaborator (internal/sqllower) and owned
// read-only by the validator for the duration of one validation.
package queryir

import "github.com/brokerdb/sqlguard/internal/ident"

// Status is the outcome of producing a Query from source text.
type Status int

const (
	// StatusOK means the tree below is a complete, well-formed SELECT.
	StatusOK Status = iota
	// StatusParseError means the parser collaborator rejected the input;
	// Diagnostic carries its message. The validator treats this as an
	// immediate VERR_PARSE_FAIL.
	StatusParseError
	// StatusUnsupported means the parser recognized a construct
	// deliberately outside scope (DML/DDL, set operations, recursive
	// CTEs). Window functions and lateral joins instead become
	// ExprUnsupported / FromUnsupported nodes inside an OK query. The
	// validator treats this status as an immediate VERR_UNSUPPORTED_QUERY.
	StatusUnsupported
)

// Query is one SELECT statement (or sub-select, or CTE body).
type Query struct {
	Status     Status
	Diagnostic string

	SelectItems []SelectItem
	FromItems   []FromItem
	Joins       []Join
	Ctes        []Cte

	Where   *Expr
	GroupBy []*Expr
	Having  *Expr
	OrderBy []*Expr

	// LimitValue is signed; -1 means "no LIMIT clause present".
	LimitValue int64

	HasDistinct bool
	HasOffset   bool
}

// NSelect reports the number of SELECT output columns, used by the
// validator's plan-length invariant (spec §8).
func (q *Query) NSelect() int { return len(q.SelectItems) }

// FromItemKind tags the variant of a FromItem.
type FromItemKind int

const (
	FromBaseRel FromItemKind = iota
	FromSubquery
	FromCteRef
	FromValues
	FromUnsupported
)

// FromItem is one entry of a FROM clause or a JOIN's right-hand side.
// Alias is empty when the source text gave none.
type FromItem struct {
	Kind FromItemKind

	// BaseRel
	Schema ident.Identifier
	Name   ident.Identifier

	// Subquery
	Subquery *Query

	// CteRef
	CteName ident.Identifier

	// Values
	ValuesColumns []ident.Identifier

	Alias ident.Identifier
}

// HasAlias reports whether the source text gave this item an explicit
// alias, distinct from a BaseRel's own name serving as an implicit one.
func (f FromItem) HasAlias() bool { return !f.Alias.Empty() }

// EffectiveAlias returns the alias the validator's alias table should key
// on: the explicit alias if given, or (for an unambiguous BaseRel or CTE
// reference with no alias) its own unqualified name.
func (f FromItem) EffectiveAlias() ident.Identifier {
	if !f.Alias.Empty() {
		return f.Alias
	}
	switch f.Kind {
	case FromBaseRel:
		return f.Name
	case FromCteRef:
		return f.CteName
	}
	return ""
}

// JoinKind tags the kind of a JOIN. Only INNER survives VERR_JOIN_NOT_INNER.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
	JoinUnsupported
)

// Join is one JOIN clause: kind, right-hand side, and an optional ON
// predicate (absent for CROSS JOIN).
type Join struct {
	Kind JoinKind
	Rhs  FromItem
	On   *Expr
}

// SelectItem is one entry of a SELECT list.
type SelectItem struct {
	Alias ident.Identifier // empty if the source gave no AS
	Value *Expr
}

// Cte is one WITH-clause binding: a name and the Query it names.
type Cte struct {
	Name ident.Identifier
	Body *Query
}

// ExprKind tags the variant of an Expr.
type ExprKind int

const (
	ExprColRef ExprKind = iota
	ExprParam
	ExprLiteral
	ExprUnaryNot
	ExprBinary
	ExprIn
	ExprCase
	ExprFuncCall
	ExprWindowFunc
	ExprCast
	ExprSubquery
	ExprUnsupported
)

// BinaryKind tags the operator of an ExprBinary node.
type BinaryKind int

const (
	BinAnd BinaryKind = iota
	BinOr
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
	BinLike
	BinNotLike
)

// LiteralKind tags the Go type backing an ExprLiteral node's value.
type LiteralKind int

const (
	LiteralInt LiteralKind = iota
	LiteralFloat
	LiteralString
	LiteralBool
	LiteralNull
)

// CaseArm is one WHEN/THEN pair of a CASE expression.
type CaseArm struct {
	When *Expr
	Then *Expr
}

// Expr is one node of an expression tree. Every node carries Kind plus
// only the fields its variant uses; unused fields are zero. This mirrors
// the IR's tagged-tree shape directly rather than splitting into one Go
// type per variant, keeping the validator's rule walk a single type
// switch on Kind.
type Expr struct {
	Kind ExprKind

	// ColRef: qualifier is the alias this reference resolves against. It
	// is empty when the source wrote an unqualified column; the validator
	// resolves such a reference against the query's single FROM relation
	// (in ORDER BY / GROUP BY, against an output alias) and otherwise
	// rejects it as unresolved.
	Qualifier ident.Identifier
	Column    ident.Identifier

	// Param
	ParamIndex uint32

	// Literal
	LitKind   LiteralKind
	LitInt    int64
	LitFloat  float64
	LitString string
	LitBool   bool

	// UnaryNot
	Operand *Expr

	// Binary
	BinKind BinaryKind
	Lhs     *Expr
	Rhs     *Expr

	// In
	InLhs   *Expr
	InItems []*Expr

	// Case
	CaseArg  *Expr // optional simple-CASE argument
	CaseArms []CaseArm
	CaseElse *Expr // optional

	// FuncCall
	FuncSchema   ident.Identifier
	FuncName     ident.Identifier
	FuncArgs     []*Expr
	FuncDistinct bool
	FuncStar     bool

	// WindowFunc
	WindowFn          *Expr // the underlying FuncCall
	WindowPartitionBy []*Expr
	WindowOrderBy     []*Expr
	WindowHasFrame    bool

	// Cast
	CastExpr *Expr
	CastType ident.Identifier

	// Subquery
	Subquery *Query
}

// IsPlainColRef reports whether e is exactly a bare column reference with
// no wrapping expression — the shape the validator's output-plan step and
// VERR_SENSITIVE_SELECT_EXPR rule both test for.
func (e *Expr) IsPlainColRef() bool {
	return e != nil && e.Kind == ExprColRef
}

package sqllower

import (
	"strconv"
	"strings"

	"vitess.io/vitess/go/vt/sqlparser"

	"github.com/brokerdb/sqlguard/internal/ident"
	"github.com/brokerdb/sqlguard/internal/queryir"
)

// lowerExpr lowers one vitess expression node into an Expr owned by the
// lowerer's arena. Anything the IR has no variant for (regex match,
// bitwise operators, JSON path access, interval arithmetic, EXISTS) comes
// back as ExprUnsupported: a leaf the validator's rules will refuse to
// resolve as a column or a safe function, which is always a reject, never
// a silent accept.
func (l *lowerer) lowerExpr(e sqlparser.Expr) *queryir.Expr {
	switch n := e.(type) {
	case *sqlparser.ColName:
		out := l.arena.NewExpr(queryir.ExprColRef)
		out.Qualifier = ident.New(n.Qualifier.Name.String())
		out.Column = ident.New(n.Name.String())
		return out

	case *sqlparser.Argument:
		return l.lowerParam(n.Name)

	case *sqlparser.Literal:
		return l.lowerLiteral(n)

	case sqlparser.BoolVal:
		out := l.arena.NewExpr(queryir.ExprLiteral)
		out.LitKind = queryir.LiteralBool
		out.LitBool = bool(n)
		return out

	case *sqlparser.NullVal:
		out := l.arena.NewExpr(queryir.ExprLiteral)
		out.LitKind = queryir.LiteralNull
		return out

	case *sqlparser.AndExpr:
		return l.lowerBinary(queryir.BinAnd, n.Left, n.Right)
	case *sqlparser.OrExpr:
		return l.lowerBinary(queryir.BinOr, n.Left, n.Right)

	case *sqlparser.NotExpr:
		out := l.arena.NewExpr(queryir.ExprUnaryNot)
		out.Operand = l.lowerExpr(n.Expr)
		return out

	case *sqlparser.ParenExpr:
		return l.lowerExpr(n.Expr)

	case *sqlparser.ComparisonExpr:
		return l.lowerComparison(n)

	case *sqlparser.RangeCond:
		return l.lowerRangeCond(n)

	case *sqlparser.CaseExpr:
		return l.lowerCase(n)

	case *sqlparser.FuncExpr:
		return l.lowerFuncExpr(n)

	case *sqlparser.ConvertExpr:
		out := l.arena.NewExpr(queryir.ExprCast)
		out.CastExpr = l.lowerExpr(n.Expr)
		if n.Type != nil {
			out.CastType = ident.New(n.Type.Type)
		}
		return out

	case *sqlparser.Subquery:
		out := l.arena.NewExpr(queryir.ExprSubquery)
		out.Subquery = l.lowerSelectStatement(n.Select)
		return out

	default:
		return l.arena.NewExpr(queryir.ExprUnsupported)
	}
}

// lowerParam decodes the ":vN" bind-variable name sqllower.go's pre-pass
// rewrote "$N" into, recovering the original 1-based parameter index.
func (l *lowerer) lowerParam(name string) *queryir.Expr {
	out := l.arena.NewExpr(queryir.ExprParam)
	trimmed := strings.TrimPrefix(name, "v")
	if n, err := strconv.ParseUint(trimmed, 10, 32); err == nil {
		out.ParamIndex = uint32(n)
	} else {
		out.Kind = queryir.ExprUnsupported
	}
	return out
}

func (l *lowerer) lowerLiteral(n *sqlparser.Literal) *queryir.Expr {
	out := l.arena.NewExpr(queryir.ExprLiteral)
	switch n.Type {
	case sqlparser.IntVal:
		out.LitKind = queryir.LiteralInt
		if v, err := strconv.ParseInt(n.Val, 10, 64); err == nil {
			out.LitInt = v
		}
	case sqlparser.FloatVal:
		out.LitKind = queryir.LiteralFloat
		if v, err := strconv.ParseFloat(n.Val, 64); err == nil {
			out.LitFloat = v
		}
	case sqlparser.StrVal:
		out.LitKind = queryir.LiteralString
		out.LitString = n.Val
	default:
		// Hex/bit/date/time literals have no dedicated LiteralKind; keep the
		// raw text so diagnostics can still quote the offending value.
		out.LitKind = queryir.LiteralString
		out.LitString = n.Val
	}
	return out
}

func (l *lowerer) lowerBinary(kind queryir.BinaryKind, lhs, rhs sqlparser.Expr) *queryir.Expr {
	out := l.arena.NewExpr(queryir.ExprBinary)
	out.BinKind = kind
	out.Lhs = l.lowerExpr(lhs)
	out.Rhs = l.lowerExpr(rhs)
	return out
}

func (l *lowerer) lowerComparison(n *sqlparser.ComparisonExpr) *queryir.Expr {
	switch n.Operator {
	case sqlparser.InOp:
		return l.lowerIn(n.Left, n.Right)
	case sqlparser.NotInOp:
		// NOT IN is normalized to NOT(IN(...)) per spec §3's IR invariants.
		out := l.arena.NewExpr(queryir.ExprUnaryNot)
		out.Operand = l.lowerIn(n.Left, n.Right)
		return out
	}

	kind, ok := comparisonBinKind(n.Operator)
	if !ok {
		return l.arena.NewExpr(queryir.ExprUnsupported)
	}
	return l.lowerBinary(kind, n.Left, n.Right)
}

func comparisonBinKind(op sqlparser.ComparisonExprOperator) (queryir.BinaryKind, bool) {
	switch op {
	case sqlparser.EqualOp:
		return queryir.BinEq, true
	case sqlparser.NotEqualOp:
		return queryir.BinNe, true
	case sqlparser.LessThanOp:
		return queryir.BinLt, true
	case sqlparser.LessEqualOp:
		return queryir.BinLe, true
	case sqlparser.GreaterThanOp:
		return queryir.BinGt, true
	case sqlparser.GreaterEqualOp:
		return queryir.BinGe, true
	case sqlparser.LikeOp:
		return queryir.BinLike, true
	case sqlparser.NotLikeOp:
		return queryir.BinNotLike, true
	default:
		return 0, false
	}
}

// lowerIn handles both "x IN (a, b, c)" (ValTuple right-hand side) and
// "x IN (subquery)"; ANY/ALL forms are normalized to one of these two
// shapes by the grammar already, per spec §3.
func (l *lowerer) lowerIn(lhs sqlparser.Expr, rhs sqlparser.Expr) *queryir.Expr {
	out := l.arena.NewExpr(queryir.ExprIn)
	out.InLhs = l.lowerExpr(lhs)
	switch items := rhs.(type) {
	case sqlparser.ValTuple:
		for _, it := range items {
			out.InItems = append(out.InItems, l.lowerExpr(it))
		}
	default:
		out.InItems = []*queryir.Expr{l.lowerExpr(rhs)}
	}
	return out
}

func (l *lowerer) lowerRangeCond(n *sqlparser.RangeCond) *queryir.Expr {
	// BETWEEN a AND b  ==  x >= a AND x <= b (spec §3: normalized to a
	// Binary tree). NOT BETWEEN wraps the same tree in UnaryNot.
	ge := l.lowerBinary(queryir.BinGe, n.Left, n.From)
	le := l.lowerBinary(queryir.BinLe, n.Left, n.To)
	conj := l.arena.NewExpr(queryir.ExprBinary)
	conj.BinKind = queryir.BinAnd
	conj.Lhs = ge
	conj.Rhs = le
	if n.Operator == sqlparser.NotBetweenOp {
		out := l.arena.NewExpr(queryir.ExprUnaryNot)
		out.Operand = conj
		return out
	}
	return conj
}

func (l *lowerer) lowerCase(n *sqlparser.CaseExpr) *queryir.Expr {
	out := l.arena.NewExpr(queryir.ExprCase)
	if n.Expr != nil {
		out.CaseArg = l.lowerExpr(n.Expr)
	}
	for _, w := range n.Whens {
		out.CaseArms = append(out.CaseArms, queryir.CaseArm{
			When: l.lowerExpr(w.Cond),
			Then: l.lowerExpr(w.Val),
		})
	}
	if n.Else != nil {
		out.CaseElse = l.lowerExpr(n.Else)
	}
	return out
}

func (l *lowerer) lowerFuncExpr(n *sqlparser.FuncExpr) *queryir.Expr {
	out := l.arena.NewExpr(queryir.ExprFuncCall)
	if !n.Qualifier.IsEmpty() {
		out.FuncSchema = ident.New(n.Qualifier.String())
	}
	out.FuncName = ident.New(n.Name.String())
	out.FuncDistinct = n.Distinct
	for _, arg := range n.Exprs {
		switch a := arg.(type) {
		case *sqlparser.StarExpr:
			out.FuncStar = true
		case *sqlparser.AliasedExpr:
			out.FuncArgs = append(out.FuncArgs, l.lowerExpr(a.Expr))
		}
	}
	return out
}

package sqllower

import (
	"vitess.io/vitess/go/vt/sqlparser"

	"github.com/brokerdb/sqlguard/internal/ident"
	"github.com/brokerdb/sqlguard/internal/queryir"
)

// lowerTableExprs flattens a FROM clause into the IR's separate FromItems
// (the "driving" items, comma-joined) and Joins (explicit JOIN clauses)
// lists, matching queryir.Query's shape: FromItems always has at least
// one entry (the leftmost table of the first TableExprs element); every
// JoinTableExpr elsewhere contributes exactly one Join.
func (l *lowerer) lowerTableExprs(exprs sqlparser.TableExprs) ([]queryir.FromItem, []queryir.Join) {
	var froms []queryir.FromItem
	var joins []queryir.Join
	for _, e := range exprs {
		f, j := l.lowerTableExpr(e)
		froms = append(froms, f...)
		joins = append(joins, j...)
	}
	return froms, joins
}

// lowerTableExpr returns the FromItem(s) and Join(s) contributed by one
// element of a FROM clause. A plain table or derived table contributes one
// FromItem; a JoinTableExpr contributes its left side's items/joins plus
// one additional Join for its own right side.
func (l *lowerer) lowerTableExpr(e sqlparser.TableExpr) ([]queryir.FromItem, []queryir.Join) {
	switch t := e.(type) {
	case *sqlparser.AliasedTableExpr:
		return []queryir.FromItem{l.lowerAliasedTableExpr(t)}, nil

	case *sqlparser.JoinTableExpr:
		leftFroms, leftJoins := l.lowerTableExpr(t.LeftExpr)
		rhs, _ := l.lowerTableExpr(t.RightExpr)
		var rhsItem queryir.FromItem
		if len(rhs) == 1 {
			rhsItem = rhs[0]
		} else {
			rhsItem = queryir.FromItem{Kind: queryir.FromUnsupported}
		}
		join := queryir.Join{Kind: joinKind(t.Join), Rhs: rhsItem}
		if t.Condition.On != nil {
			join.On = l.lowerExpr(t.Condition.On)
		}
		return leftFroms, append(leftJoins, join)

	case *sqlparser.ParenTableExpr:
		return l.lowerTableExprs(t.Exprs)

	default:
		return []queryir.FromItem{{Kind: queryir.FromUnsupported}}, nil
	}
}

func (l *lowerer) lowerAliasedTableExpr(t *sqlparser.AliasedTableExpr) queryir.FromItem {
	var item queryir.FromItem
	switch expr := t.Expr.(type) {
	case sqlparser.TableName:
		item = queryir.FromItem{
			Kind:   queryir.FromBaseRel,
			Schema: ident.New(expr.Qualifier.String()),
			Name:   ident.New(expr.Name.String()),
		}
	case *sqlparser.DerivedTable:
		if expr.Lateral {
			// LATERAL derived tables are an explicit Non-goal; the caller
			// (lowerSelect, via the owning Query) has no direct handle on
			// this FromItem to flip Query.Status, so we surface it as
			// FromUnsupported, which the validator's ruleUnsupportedConstruct
			// rejects as VERR_UNSUPPORTED_QUERY.
			// Callers constructing a top-level Query from raw SQL should
			// prefer checking for "LATERAL" textually before lowering if
			// precise diagnostics matter; the IR-level fallback here is
			// deliberately conservative (reject), never silently accept.
			item = queryir.FromItem{Kind: queryir.FromUnsupported}
		} else {
			item = queryir.FromItem{
				Kind:     queryir.FromSubquery,
				Subquery: l.lowerSelectStatement(expr.Select),
			}
		}
	default:
		item = queryir.FromItem{Kind: queryir.FromUnsupported}
	}
	if !t.As.IsEmpty() {
		item.Alias = ident.New(t.As.String())
	}
	return item
}

func joinKind(jt sqlparser.JoinType) queryir.JoinKind {
	switch jt {
	case sqlparser.NormalJoinType:
		return queryir.JoinInner
	case sqlparser.LeftJoinType:
		return queryir.JoinLeft
	case sqlparser.RightJoinType:
		return queryir.JoinRight
	default:
		// StraightJoinType and the NATURAL variants have no explicit
		// column-to-column ON clause the validator can check, and MySQL's
		// grammar (which vitess implements) has no FULL OUTER JOIN —
		// queryir.JoinFull exists for the IR's generality but nothing here
		// ever produces it.
		return queryir.JoinUnsupported
	}
}
